// Copyright 2026 The Nodexec Authors
// SPDX-License-Identifier: Apache-2.0

// Package lifecycle stages container directories and credentials,
// launches container processes under narrowed identity, and delivers
// signals to them.
//
// Every operation follows the same staging discipline: directories
// first, credentials second, privilege narrowing third, and image
// replacement last. Each step's failure aborts the remaining steps and
// the error names the failing step. Once the image replacement starts
// there is no rollback, so all validation must complete before it.
package lifecycle

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/fleetgrid/nodexec/lib/identity"
	"github.com/fleetgrid/nodexec/lib/layout"
	"github.com/fleetgrid/nodexec/lib/privilege"
)

// Lifecycle errors.
var (
	// ErrStaging wraps a filesystem failure while preparing
	// directories or credentials, before any privilege change.
	ErrStaging = errors.New("staging failed")

	// ErrLaunch reports a failed process image replacement.
	ErrLaunch = errors.New("process launch failed")

	// ErrSignalDelivery reports a signal that could not be delivered.
	ErrSignalDelivery = errors.New("signal delivery failed")
)

// Directory and file modes for staged state. User caches and work
// directories are private to the owning user; log directories carry
// the service gid so the node manager can collect logs after the
// helper has narrowed away from its own privilege.
const (
	cacheRootMode = 0o755
	userDirMode   = 0o750
	logDirMode    = 0o770
	credFileMode  = 0o600
	scriptMode    = 0o700
	pidFileMode   = 0o644
)

// Manager performs the lifecycle operations. It holds the process-wide
// privilege context; operations that must run as the target user narrow
// through it.
type Manager struct {
	priv   *privilege.Context
	logger *slog.Logger
}

// NewManager returns a Manager using priv for identity transitions.
func NewManager(priv *privilege.Context, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{priv: priv, logger: logger}
}

// InitializeUser creates the per-root usercache/<user> directory across
// every supplied local root, owned by the user and private to them.
// Idempotent: an already-initialized user succeeds without error.
func (m *Manager) InitializeUser(ident identity.Identity, localRoots []string) error {
	if err := layout.ValidateComponent(ident.Name); err != nil {
		return fmt.Errorf("%w: user name: %v", ErrStaging, err)
	}

	for _, root := range localRoots {
		if err := ensureDir(layout.UserCacheRoot(root), cacheRootMode); err != nil {
			return fmt.Errorf("%w: staging directories: %v", ErrStaging, err)
		}
		dir := layout.UserDir(root, ident.Name)
		if err := makeOwnedDir(dir, userDirMode, ident.UID, ident.GID); err != nil {
			return fmt.Errorf("%w: staging directories: %v", ErrStaging, err)
		}
		m.logger.Info("initialized user cache", "user", ident.Name, "dir", dir)
	}
	return nil
}

// InitializeApp creates the application directory on every local root
// and the application log directory on every log root, stages the
// credentials file into the application directory, narrows to the
// user, and replaces the process image with command.
//
// On success this function does not return: the process becomes
// command. Any error before the image replacement leaves the caller's
// process running.
func (m *Manager) InitializeApp(ident identity.Identity, appID, credentialsFile string, command []string, localRoots, logRoots []string) error {
	if err := layout.ValidateComponent(ident.Name); err != nil {
		return fmt.Errorf("%w: user name: %v", ErrStaging, err)
	}
	if err := layout.ValidateComponent(appID); err != nil {
		return fmt.Errorf("%w: application id: %v", ErrStaging, err)
	}
	if len(command) == 0 {
		return fmt.Errorf("%w: empty command", ErrLaunch)
	}
	if len(localRoots) == 0 {
		return fmt.Errorf("%w: no local roots configured", ErrStaging)
	}

	if err := m.stageAppDirs(ident, appID, localRoots, logRoots); err != nil {
		return fmt.Errorf("%w: staging directories: %v", ErrStaging, err)
	}

	appDir := layout.AppDir(localRoots[0], ident.Name, appID)
	credDest := filepath.Join(appDir, filepath.Base(credentialsFile))
	if err := copyOwnedFile(credentialsFile, credDest, credFileMode, ident); err != nil {
		return fmt.Errorf("%w: staging credentials: %v", ErrStaging, err)
	}
	m.logger.Info("staged application", "user", ident.Name, "app", appID, "dir", appDir)

	if err := m.priv.Narrow(ident); err != nil {
		return err
	}

	return execImage(command)
}

// stageAppDirs creates user and application directories on every local
// root and the application log directory on every log root.
func (m *Manager) stageAppDirs(ident identity.Identity, appID string, localRoots, logRoots []string) error {
	for _, root := range localRoots {
		// The cache root stays service-owned and traversable so every
		// user's subtree below it remains reachable.
		if err := ensureDir(layout.UserCacheRoot(root), cacheRootMode); err != nil {
			return err
		}
		if err := makeOwnedDir(layout.UserDir(root, ident.Name), userDirMode, ident.UID, ident.GID); err != nil {
			return err
		}
		if err := makeOwnedDir(layout.AppDir(root, ident.Name, appID), userDirMode, ident.UID, ident.GID); err != nil {
			return err
		}
	}
	for _, root := range logRoots {
		// Group-owned by the service so logs stay collectable.
		if err := makeOwnedDir(layout.AppLogDir(root, appID), logDirMode, ident.UID, m.priv.ServiceGID()); err != nil {
			return err
		}
	}
	return nil
}

// ensureDir creates dir if missing and enforces mode. Ownership is left
// to whoever runs the helper; these are shared parents, not user state.
func ensureDir(dir string, mode os.FileMode) error {
	if err := os.MkdirAll(dir, mode); err != nil {
		return err
	}
	return os.Chmod(dir, mode)
}

// makeOwnedDir creates dir (and parents) if missing, then enforces mode
// and, when running privileged, ownership. Safe to call on an existing
// directory.
func makeOwnedDir(dir string, mode os.FileMode, uid, gid int) error {
	if err := os.MkdirAll(dir, mode); err != nil {
		return err
	}
	// MkdirAll applies the umask; enforce the exact mode.
	if err := os.Chmod(dir, mode); err != nil {
		return err
	}
	if os.Geteuid() == 0 {
		if err := os.Chown(dir, uid, gid); err != nil {
			return err
		}
	}
	return nil
}

// copyOwnedFile copies src to dest verbatim with the given mode, owned
// by ident when running privileged. The content is an opaque blob; it
// is never parsed here.
func copyOwnedFile(src, dest string, mode os.FileMode, ident identity.Identity) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	// Re-assert the mode: O_CREATE honors the umask and an existing
	// destination keeps its old bits.
	if err := out.Chmod(mode); err != nil {
		out.Close()
		return err
	}
	if os.Geteuid() == 0 {
		if err := out.Chown(ident.UID, ident.GID); err != nil {
			out.Close()
			return err
		}
	}
	return out.Close()
}

// execImage replaces the process image with command. It returns only on
// failure.
func execImage(command []string) error {
	path, err := exec.LookPath(command[0])
	if err != nil {
		return fmt.Errorf("%w: resolving %q: %v", ErrLaunch, command[0], err)
	}
	if err := unix.Exec(path, command, os.Environ()); err != nil {
		return fmt.Errorf("%w: exec %s: %v", ErrLaunch, path, err)
	}
	panic("unreachable: exec returned without error")
}
