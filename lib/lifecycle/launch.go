// Copyright 2026 The Nodexec Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/fleetgrid/nodexec/lib/identity"
	"github.com/fleetgrid/nodexec/lib/layout"
	"github.com/fleetgrid/nodexec/lib/resourcespec"
)

// cgroupsResourceKey is the only resource constraint mechanism the
// helper knows how to apply: each value is the path of a cgroup tasks
// file that receives the helper's pid before exec, placing the
// container process in that cgroup.
const cgroupsResourceKey = "cgroups"

// LaunchRequest carries everything needed to launch one container.
type LaunchRequest struct {
	// Ident is the validated owner the container runs as.
	Ident identity.Identity

	// AppID and ContainerID name the container within the sandbox
	// path template.
	AppID       string
	ContainerID string

	// WorkDir is the container work directory. Must resolve under one
	// of LocalRoots.
	WorkDir string

	// LaunchScript is the script the container process executes. It is
	// copied into WorkDir before exec.
	LaunchScript string

	// Credentials is the opaque credentials file staged into WorkDir.
	Credentials string

	// PIDFile receives the helper's own pid, written immediately
	// before the image replacement so it always names exactly the
	// process that executes the script.
	PIDFile string

	// LocalRoots and LogRoots are the configured directory roots.
	LocalRoots []string
	LogRoots   []string

	// Resources, if non-nil, is the resource constraint applied before
	// exec. Only the "cgroups" key is supported.
	Resources *resourcespec.Spec
}

// LaunchContainer stages the container work and log directories, copies
// the launch script and credentials into the work directory, applies
// the resource constraint while still privileged, narrows to the owner,
// writes the pid file, and replaces the process image with the launch
// script.
//
// On success this function does not return. The new process is made a
// session leader before exec so that group signaling reaches the whole
// container process tree.
func (m *Manager) LaunchContainer(req LaunchRequest) error {
	for _, component := range []string{req.Ident.Name, req.AppID, req.ContainerID} {
		if err := layout.ValidateComponent(component); err != nil {
			return fmt.Errorf("%w: %v", ErrStaging, err)
		}
	}

	workDir := filepath.Clean(req.WorkDir)
	if !confinedToAny(req.LocalRoots, workDir) {
		return fmt.Errorf("%w: work directory %q is outside all local roots", ErrStaging, workDir)
	}

	if err := m.stageAppDirs(req.Ident, req.AppID, req.LocalRoots, req.LogRoots); err != nil {
		return fmt.Errorf("%w: staging directories: %v", ErrStaging, err)
	}
	if err := makeOwnedDir(workDir, userDirMode, req.Ident.UID, req.Ident.GID); err != nil {
		return fmt.Errorf("%w: staging directories: %v", ErrStaging, err)
	}
	for _, root := range req.LogRoots {
		dir := layout.ContainerLogDir(root, req.AppID, req.ContainerID)
		if err := makeOwnedDir(dir, logDirMode, req.Ident.UID, m.priv.ServiceGID()); err != nil {
			return fmt.Errorf("%w: staging directories: %v", ErrStaging, err)
		}
	}

	script := filepath.Join(workDir, layout.LauncherScript)
	if err := copyOwnedFile(req.LaunchScript, script, scriptMode, req.Ident); err != nil {
		return fmt.Errorf("%w: staging credentials: copying launch script: %v", ErrStaging, err)
	}
	if req.Credentials != "" {
		dest := filepath.Join(workDir, filepath.Base(req.Credentials))
		if err := copyOwnedFile(req.Credentials, dest, credFileMode, req.Ident); err != nil {
			return fmt.Errorf("%w: staging credentials: %v", ErrStaging, err)
		}
	}

	// Resource constraints need privilege (cgroup files are root-owned)
	// and must be in place before the container process exists.
	if err := applyResources(req.Resources); err != nil {
		return err
	}

	if err := m.priv.Narrow(req.Ident); err != nil {
		return err
	}

	if err := writePIDFile(req.PIDFile); err != nil {
		return fmt.Errorf("%w: writing pid file: %v", ErrLaunch, err)
	}

	if err := os.Chdir(workDir); err != nil {
		return fmt.Errorf("%w: entering work directory: %v", ErrLaunch, err)
	}

	m.logger.Info("launching container",
		"user", req.Ident.Name,
		"app", req.AppID,
		"container", req.ContainerID,
		"workdir", workDir,
	)

	// Become a session leader so the container and its children form a
	// process group that signal-container can target as a unit. EPERM
	// means we already lead one.
	if _, err := unix.Setsid(); err != nil && err != unix.EPERM {
		return fmt.Errorf("%w: setsid: %v", ErrLaunch, err)
	}

	return execImage([]string{"/bin/bash", script})
}

// applyResources applies a parsed resource constraint. Only the cgroups
// mechanism is supported; anything else is a malformed request, not a
// silent no-op.
func applyResources(spec *resourcespec.Spec) error {
	if spec == nil || spec.Key == "" {
		return nil
	}
	if spec.Key != cgroupsResourceKey {
		return fmt.Errorf("%w: unsupported resource key %q", resourcespec.ErrMalformed, spec.Key)
	}

	pid := []byte(strconv.Itoa(os.Getpid()) + "\n")
	for _, path := range spec.Values {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
		if err != nil {
			return fmt.Errorf("%w: opening cgroup file %s: %v", ErrLaunch, path, err)
		}
		if _, err := f.Write(pid); err != nil {
			f.Close()
			return fmt.Errorf("%w: writing pid to cgroup file %s: %v", ErrLaunch, path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("%w: closing cgroup file %s: %v", ErrLaunch, path, err)
		}
	}
	return nil
}

// writePIDFile writes this process's pid as plain ASCII decimal. The
// pid is our own: after the exec that follows, it is the container's,
// with no window where the file names a stale or wrong process.
func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), pidFileMode)
}

// confinedToAny reports whether path lies under at least one root.
func confinedToAny(roots []string, path string) bool {
	for _, root := range roots {
		if layout.Confines(root, path) {
			return true
		}
	}
	return false
}
