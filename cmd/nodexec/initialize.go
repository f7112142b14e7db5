// Copyright 2026 The Nodexec Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/fleetgrid/nodexec/lib/lifecycle"
	"github.com/fleetgrid/nodexec/lib/privilege"
	"github.com/fleetgrid/nodexec/lib/resourcespec"
)

// initializeUserCmd implements "initialize-user".
func initializeUserCmd(args []string, priv *privilege.Context, logger *slog.Logger) error {
	fs := pflag.NewFlagSet("initialize-user", pflag.ContinueOnError)
	configPath := fs.String("config", "", "Path to the policy file")
	userName := fs.String("user", "", "Target user (required)")
	localDirs := fs.String("local-dirs", "", "Override policy local.dirs (comma-separated)")
	fs.Usage = func() {
		fmt.Print(`nodexec initialize-user - Create the per-root user cache directories

USAGE
    nodexec initialize-user --user <name> [flags]

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

	pol, ident, err := resolveTarget(*configPath, *userName)
	if err != nil {
		return err
	}

	manager := lifecycle.NewManager(priv, logger)
	return manager.InitializeUser(ident, roots(resourcespec.SplitValues(*localDirs), pol.LocalDirs))
}

// initializeAppCmd implements "initialize-app". On success the process
// image is replaced by the command after "--" and this never returns.
func initializeAppCmd(args []string, priv *privilege.Context, logger *slog.Logger) error {
	fs := pflag.NewFlagSet("initialize-app", pflag.ContinueOnError)
	configPath := fs.String("config", "", "Path to the policy file")
	userName := fs.String("user", "", "Target user (required)")
	appID := fs.String("app", "", "Application id (required)")
	credentials := fs.String("credentials", "", "Credentials file to stage (required)")
	localDirs := fs.String("local-dirs", "", "Override policy local.dirs (comma-separated)")
	logDirs := fs.String("log-dirs", "", "Override policy log.dirs (comma-separated)")
	fs.Usage = func() {
		fmt.Print(`nodexec initialize-app - Stage an application and exec its first process

USAGE
    nodexec initialize-app --user <name> --app <id> --credentials <file> [flags] -- <command>...

FLAGS
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	switch {
	case *userName == "":
		return fmt.Errorf("--user is required")
	case *appID == "":
		return fmt.Errorf("--app is required")
	case *credentials == "":
		return fmt.Errorf("--credentials is required")
	}
	command := fs.Args()
	if len(command) == 0 {
		return fmt.Errorf("command is required after --")
	}

	pol, ident, err := resolveTarget(*configPath, *userName)
	if err != nil {
		return err
	}

	manager := lifecycle.NewManager(priv, logger)
	return manager.InitializeApp(ident, *appID, *credentials, command,
		roots(resourcespec.SplitValues(*localDirs), pol.LocalDirs),
		roots(resourcespec.SplitValues(*logDirs), pol.LogDirs))
}
