// Copyright 2026 The Nodexec Authors
// SPDX-License-Identifier: Apache-2.0

// Package layout derives the sandbox directory paths used to isolate
// per-user, per-application, and per-container state on a node.
//
// All derivations follow the fixed template
//
//	<root>/usercache/<user>/appcache/<appId>/<containerId>
//
// with a parallel, flatter template for log directories
//
//	<logRoot>/<appId>/<containerId>
//
// The functions are pure string concatenation: no filesystem access, no
// normalization beyond what filepath.Join performs. Derived paths are
// later the targets of privileged deletion and privileged writes, so
// path components must be validated with ValidateComponent before they
// reach these functions from untrusted input.
package layout

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// userCacheDir is the per-user subdirectory under each local root.
	userCacheDir = "usercache"

	// appCacheDir is the per-application subdirectory under a user
	// cache directory.
	appCacheDir = "appcache"

	// LauncherScript is the filename of the container launch script
	// staged into the application directory.
	LauncherScript = "launch_container.sh"
)

// UserCacheRoot returns the usercache directory under root:
// root/usercache.
func UserCacheRoot(root string) string {
	return filepath.Join(root, userCacheDir)
}

// UserDir returns the user cache directory under root:
// root/usercache/user.
func UserDir(root, user string) string {
	return filepath.Join(root, userCacheDir, user)
}

// AppDir returns the application directory under root:
// root/usercache/user/appcache/appID.
func AppDir(root, user, appID string) string {
	return filepath.Join(UserDir(root, user), appCacheDir, appID)
}

// ContainerWorkDir returns the container work directory under root:
// root/usercache/user/appcache/appID/containerID.
func ContainerWorkDir(root, user, appID, containerID string) string {
	return filepath.Join(AppDir(root, user, appID), containerID)
}

// ContainerLauncherFile returns the path of the launch script inside an
// application directory.
func ContainerLauncherFile(appDir string) string {
	return filepath.Join(appDir, LauncherScript)
}

// AppLogDir returns the application log directory under logRoot:
// logRoot/appID.
func AppLogDir(logRoot, appID string) string {
	return filepath.Join(logRoot, appID)
}

// ContainerLogDir returns the container log directory under logRoot:
// logRoot/appID/containerID.
func ContainerLogDir(logRoot, appID, containerID string) string {
	return filepath.Join(AppLogDir(logRoot, appID), containerID)
}

// ValidateComponent rejects path components that could escape the
// sandbox template: empty strings, path separators, and the "." and
// ".." entries. Every caller-supplied user, application, and container
// name must pass through here before path derivation.
func ValidateComponent(name string) error {
	if name == "" {
		return fmt.Errorf("empty path component")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("path component %q not allowed", name)
	}
	if strings.ContainsRune(name, '/') {
		return fmt.Errorf("path component %q contains a separator", name)
	}
	return nil
}

// Confines reports whether path is lexically contained under root. Both
// are cleaned before comparison; the root itself confines itself. This
// is a lexical check only: it does not resolve symlinks, which is why
// deletion additionally walks with O_NOFOLLOW handles.
func Confines(root, path string) bool {
	root = filepath.Clean(root)
	path = filepath.Clean(path)
	if root == "/" {
		return strings.HasPrefix(path, "/")
	}
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}
