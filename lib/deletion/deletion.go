// Copyright 2026 The Nodexec Authors
// SPDX-License-Identifier: Apache-2.0

// Package deletion removes user-owned directory subtrees under the
// narrowed identity of their owner.
//
// Deletion is the most dangerous operation the helper performs: the
// target is named by the caller and the filesystem underneath can be
// mutated concurrently by the very user whose files are being removed.
// The walk therefore never trusts a path string twice. Each directory
// is opened once with O_NOFOLLOW and all of its children are examined
// and unlinked relative to that open handle (fstatat/openat/unlinkat),
// so a rename or symlink swap between listing and descent cannot
// redirect the walk outside the subtree. Symbolic links are unlinked as
// entries, never dereferenced; hard-linked files lose only the one
// directory entry inside the subtree.
//
// Before any filesystem mutation the target is checked for lexical
// confinement under one of the configured local or log roots, and the
// calling process must already be narrowed to the owning user.
package deletion

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/fleetgrid/nodexec/lib/identity"
	"github.com/fleetgrid/nodexec/lib/layout"
	"github.com/fleetgrid/nodexec/lib/privilege"
)

// Deletion errors.
var (
	// ErrPathNotAllowed reports a target outside every configured root.
	ErrPathNotAllowed = errors.New("path not allowed")

	// ErrTraversalDenied reports a blocked symlink-follow attempt: the
	// deletion target was swapped for a symbolic link while the helper
	// was operating on it.
	ErrTraversalDenied = errors.New("path traversal denied")

	// ErrFilesystem wraps an underlying OS failure during the walk.
	ErrFilesystem = errors.New("filesystem error")
)

// openFlags opens directories without following symlinks. O_NONBLOCK
// guards against the entry having been swapped for a FIFO.
const openFlags = unix.O_RDONLY | unix.O_DIRECTORY | unix.O_NOFOLLOW | unix.O_NONBLOCK | unix.O_CLOEXEC

// Deleter removes subtrees confined to a fixed set of roots.
type Deleter struct {
	roots  []string
	logger *slog.Logger
}

// NewDeleter returns a Deleter confined to roots. Typically the roots
// are the policy's local.dirs and log.dirs combined.
func NewDeleter(roots []string, logger *slog.Logger) *Deleter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deleter{roots: roots, logger: logger}
}

// DeleteAsUser removes baseDir (or, when subDirs is non-empty, each
// subDir resolved relative to baseDir) and everything beneath it,
// acting as ident. The privilege context is narrowed to ident first
// (or verified to already be narrowed to ident) so the OS permission
// model, not this process's residual privilege, governs what can be
// unlinked. The single exception is owner-set permission bits: a
// mode-000 file or directory is still removable by its owner acting
// through this engine.
//
// Validation failures (confinement, empty path) occur before any
// mutation. Mid-walk failures are collected best-effort; the first
// fatal error is returned after the walk finishes what it can, and a
// failed walk never escapes the confinement boundary.
func (d *Deleter) DeleteAsUser(priv *privilege.Context, ident identity.Identity, baseDir string, subDirs []string) error {
	if baseDir == "" {
		return fmt.Errorf("%w: empty base directory", ErrPathNotAllowed)
	}
	baseDir = filepath.Clean(baseDir)
	if !filepath.IsAbs(baseDir) {
		return fmt.Errorf("%w: %q is not absolute", ErrPathNotAllowed, baseDir)
	}
	if !d.confined(baseDir) {
		return fmt.Errorf("%w: %q is outside all configured roots", ErrPathNotAllowed, baseDir)
	}

	// Resolve and validate every target before deleting anything, so a
	// bad entry in subDirs cannot leave a half-deleted batch.
	targets := []string{baseDir}
	if len(subDirs) > 0 {
		targets = targets[:0]
		for _, sub := range subDirs {
			target := filepath.Join(baseDir, sub)
			if !layout.Confines(baseDir, target) || target == baseDir {
				return fmt.Errorf("%w: subpath %q escapes %q", ErrPathNotAllowed, sub, baseDir)
			}
			targets = append(targets, target)
		}
	}

	if err := priv.Narrow(ident); err != nil {
		return err
	}

	var firstErr error
	for _, target := range targets {
		d.logger.Info("deleting subtree", "path", target, "user", ident.Name)
		if err := d.deleteTree(target); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// confined reports whether path lies under at least one configured root.
func (d *Deleter) confined(path string) bool {
	for _, root := range d.roots {
		if layout.Confines(root, path) {
			return true
		}
	}
	return false
}

// deleteTree removes the entry at path and, if it is a directory, its
// whole subtree. A target that does not exist is a success: the caller
// wanted it gone and it is gone.
func (d *Deleter) deleteTree(path string) error {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		if err == unix.ENOENT {
			return nil
		}
		return fmt.Errorf("%w: lstat %s: %v", ErrFilesystem, path, err)
	}

	// Non-directories (symlinks included) are just directory entries to
	// unlink. A symlink's target is never touched.
	if st.Mode&unix.S_IFMT != unix.S_IFDIR {
		if err := unix.Unlink(path); err != nil && err != unix.ENOENT {
			return fmt.Errorf("%w: unlink %s: %v", ErrFilesystem, path, err)
		}
		return nil
	}

	fd, err := openDir(unix.AT_FDCWD, path)
	if err != nil {
		if err == unix.ELOOP || err == unix.ENOTDIR {
			// The directory was swapped for a symlink between lstat and
			// open. Refuse to follow it.
			return fmt.Errorf("%w: %s was replaced by a symlink during deletion", ErrTraversalDenied, path)
		}
		if err == unix.ENOENT {
			return nil
		}
		return fmt.Errorf("%w: open %s: %v", ErrFilesystem, path, err)
	}

	walkErr := d.removeContents(fd, path)

	if err := unix.Rmdir(path); err != nil && err != unix.ENOENT {
		if walkErr == nil {
			walkErr = fmt.Errorf("%w: rmdir %s: %v", ErrFilesystem, path, err)
		}
	}
	return walkErr
}

// openDir opens the directory entry name relative to dirFd without
// following symlinks. A directory whose owner-set mode denies access is
// reopened after restoring owner permissions on the entry. The owner
// may always chmod their own files, so this widens nothing.
func openDir(dirFd int, name string) (int, error) {
	fd, err := unix.Openat(dirFd, name, openFlags, 0)
	if err == unix.EACCES {
		if chmodErr := unix.Fchmodat(dirFd, name, 0o700, 0); chmodErr == nil {
			fd, err = unix.Openat(dirFd, name, openFlags, 0)
		}
	}
	if err != nil {
		return -1, err
	}
	return fd, nil
}

// removeContents empties the directory open on fd, recursing through
// child directories via their own handles. It takes ownership of fd.
// Best-effort: every entry is attempted and the first failure is
// reported after the rest have been tried.
func (d *Deleter) removeContents(fd int, dirPath string) error {
	dir := os.NewFile(uintptr(fd), dirPath)
	defer dir.Close()

	// The walk needs write and execute permission on this directory to
	// unlink children; the owner may have removed them. Restoring them
	// through the already-open handle cannot be redirected by a rename.
	var dirStat unix.Stat_t
	if err := unix.Fstat(fd, &dirStat); err == nil {
		if dirStat.Mode&0o700 != 0o700 {
			_ = unix.Fchmod(fd, 0o700)
		}
	}

	names, err := dir.Readdirnames(-1)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", ErrFilesystem, dirPath, err)
	}

	var firstErr error
	record := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, name := range names {
		var st unix.Stat_t
		if err := unix.Fstatat(fd, name, &st, unix.AT_SYMLINK_NOFOLLOW); err != nil {
			if err == unix.ENOENT {
				continue
			}
			record(fmt.Errorf("%w: stat %s/%s: %v", ErrFilesystem, dirPath, name, err))
			continue
		}

		if st.Mode&unix.S_IFMT != unix.S_IFDIR {
			// Files, symlinks, sockets, FIFOs: unlink the entry only.
			// Other hard links to the same inode stay intact.
			if err := unix.Unlinkat(fd, name, 0); err != nil && err != unix.ENOENT {
				record(fmt.Errorf("%w: unlink %s/%s: %v", ErrFilesystem, dirPath, name, err))
			}
			continue
		}

		childFd, err := openDir(fd, name)
		if err != nil {
			if err == unix.ELOOP || err == unix.ENOTDIR {
				// Swapped for a symlink after fstatat. Unlink the link
				// entry instead of descending through it.
				if err := unix.Unlinkat(fd, name, 0); err != nil && err != unix.ENOENT {
					record(fmt.Errorf("%w: unlink swapped entry %s/%s: %v", ErrFilesystem, dirPath, name, err))
				}
				continue
			}
			if err == unix.ENOENT {
				continue
			}
			record(fmt.Errorf("%w: open %s/%s: %v", ErrFilesystem, dirPath, name, err))
			continue
		}

		if err := d.removeContents(childFd, filepath.Join(dirPath, name)); err != nil {
			record(err)
		}
		if err := unix.Unlinkat(fd, name, unix.AT_REMOVEDIR); err != nil && err != unix.ENOENT {
			record(fmt.Errorf("%w: rmdir %s/%s: %v", ErrFilesystem, dirPath, name, err))
		}
	}

	return firstErr
}
