// Copyright 2026 The Nodexec Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/fleetgrid/nodexec/lib/lifecycle"
	"github.com/fleetgrid/nodexec/lib/privilege"
)

// signalContainerCmd implements "signal-container".
func signalContainerCmd(args []string, priv *privilege.Context, logger *slog.Logger) error {
	fs := pflag.NewFlagSet("signal-container", pflag.ContinueOnError)
	configPath := fs.String("config", "", "Path to the policy file")
	userName := fs.String("user", "", "Target user (required)")
	pid := fs.Int("pid", 0, "Process id to signal (required)")
	signal := fs.Int("signal", int(unix.SIGTERM), "Signal number to deliver")
	fs.Usage = func() {
		fmt.Print(`nodexec signal-container - Deliver a signal to a container process or group

If the target process leads its own process group, the whole group is
signaled; otherwise only the single pid.

USAGE
    nodexec signal-container --user <name> --pid <pid> [--signal <num>]

FLAGS
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userName == "" {
		return fmt.Errorf("--user is required")
	}
	if *pid == 0 {
		return fmt.Errorf("--pid is required")
	}

	_, ident, err := resolveTarget(*configPath, *userName)
	if err != nil {
		return err
	}

	manager := lifecycle.NewManager(priv, logger)
	return manager.SignalContainer(ident, *pid, unix.Signal(*signal))
}
