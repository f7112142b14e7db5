// Copyright 2026 The Nodexec Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"errors"
	"os/exec"
	"syscall"
	"testing"

	"golang.org/x/sys/unix"
)

// startSleeper starts a sleep child, optionally in its own session so
// it leads a process group. Returns the command; the caller must Wait.
func startSleeper(t *testing.T, ownSession bool) *exec.Cmd {
	t.Helper()

	cmd := exec.Command("sleep", "60")
	if ownSession {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	}
	if err := cmd.Start(); err != nil {
		t.Fatalf("starting sleep child: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	})
	return cmd
}

// waitSignaled waits for cmd and returns the signal that terminated it.
func waitSignaled(t *testing.T, cmd *exec.Cmd) unix.Signal {
	t.Helper()

	err := cmd.Wait()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("child did not exit with a wait status: %v", err)
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		t.Fatalf("unexpected wait status type %T", exitErr.Sys())
	}
	if !status.Signaled() {
		t.Fatalf("child exited without a signal: %v", err)
	}
	return unix.Signal(status.Signal())
}

func TestSignalContainerSinglePID(t *testing.T) {
	m, ident := newTestManager(t)

	cmd := startSleeper(t, false)
	if err := m.SignalContainer(ident, cmd.Process.Pid, unix.SIGQUIT); err != nil {
		t.Fatalf("SignalContainer failed: %v", err)
	}

	if sig := waitSignaled(t, cmd); sig != unix.SIGQUIT {
		t.Errorf("child terminated by %v, want SIGQUIT", sig)
	}
}

func TestSignalContainerGroup(t *testing.T) {
	m, ident := newTestManager(t)

	cmd := startSleeper(t, true)
	pid := cmd.Process.Pid

	// The child runs in its own session, so it leads a process group
	// and the signal targets the whole group.
	pgid, err := unix.Getpgid(pid)
	if err != nil {
		t.Fatalf("getpgid: %v", err)
	}
	if pgid != pid {
		t.Fatalf("child is not a group leader: pgid %d, pid %d", pgid, pid)
	}

	if err := m.SignalContainer(ident, pid, unix.SIGKILL); err != nil {
		t.Fatalf("SignalContainer failed: %v", err)
	}

	if sig := waitSignaled(t, cmd); sig != unix.SIGKILL {
		t.Errorf("child terminated by %v, want SIGKILL", sig)
	}
}

func TestSignalContainerInvalidPID(t *testing.T) {
	m, ident := newTestManager(t)

	if err := m.SignalContainer(ident, 0, unix.SIGTERM); !errors.Is(err, ErrSignalDelivery) {
		t.Errorf("SignalContainer(0) = %v, want ErrSignalDelivery", err)
	}
	if err := m.SignalContainer(ident, -5, unix.SIGTERM); !errors.Is(err, ErrSignalDelivery) {
		t.Errorf("SignalContainer(-5) = %v, want ErrSignalDelivery", err)
	}
}

func TestSignalContainerMissingProcess(t *testing.T) {
	m, ident := newTestManager(t)

	// Reap a child first so its pid is known-dead.
	cmd := startSleeper(t, false)
	if err := cmd.Process.Kill(); err != nil {
		t.Fatalf("killing child: %v", err)
	}
	_ = cmd.Wait()

	if err := m.SignalContainer(ident, cmd.Process.Pid, unix.SIGTERM); !errors.Is(err, ErrSignalDelivery) {
		t.Errorf("signaling dead pid = %v, want ErrSignalDelivery", err)
	}
}
