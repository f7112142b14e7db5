// Copyright 2026 The Nodexec Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/fleetgrid/nodexec/lib/identity"
)

// SignalContainer narrows to ident and delivers sig to pid. If the
// target established its own process group (it is a group leader), the
// whole group is signaled so children are reached too; otherwise only
// the single pid.
//
// The actual security enforcement is the OS permission model: after
// narrowing, the kernel only permits signaling processes the target
// user owns. This function's job is to be narrowed to the correct
// claimed owner before sending. Delivery is fire-and-forget; a process
// that exited between the group check and the kill counts as delivered.
func (m *Manager) SignalContainer(ident identity.Identity, pid int, sig unix.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("%w: invalid pid %d", ErrSignalDelivery, pid)
	}

	if err := m.priv.Narrow(ident); err != nil {
		return err
	}

	pgid, err := unix.Getpgid(pid)
	if err != nil {
		if err == unix.ESRCH {
			return fmt.Errorf("%w: no such process %d", ErrSignalDelivery, pid)
		}
		return fmt.Errorf("%w: getpgid %d: %v", ErrSignalDelivery, pid, err)
	}

	target := pid
	if pgid == pid {
		target = -pid
	}

	if err := unix.Kill(target, sig); err != nil {
		if err == unix.ESRCH {
			return nil
		}
		return fmt.Errorf("%w: kill %d with %v: %v", ErrSignalDelivery, target, sig, err)
	}

	m.logger.Info("delivered signal", "user", ident.Name, "pid", pid, "signal", sig, "group", pgid == pid)
	return nil
}
