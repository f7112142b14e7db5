// Copyright 2026 The Nodexec Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/fleetgrid/nodexec/lib/deletion"
	"github.com/fleetgrid/nodexec/lib/privilege"
)

// deleteAsUserCmd implements "delete-as-user". Positional arguments
// after the flags are subpaths deleted relative to --dir; without them
// --dir itself is deleted.
func deleteAsUserCmd(args []string, priv *privilege.Context, logger *slog.Logger) error {
	fs := pflag.NewFlagSet("delete-as-user", pflag.ContinueOnError)
	configPath := fs.String("config", "", "Path to the policy file")
	userName := fs.String("user", "", "Target user (required)")
	baseDir := fs.String("dir", "", "Base directory to delete under (required)")
	fs.Usage = func() {
		fmt.Print(`nodexec delete-as-user - Recursively delete a user-owned subtree as that user

USAGE
    nodexec delete-as-user --user <name> --dir <path> [subdir...]

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
	if *baseDir == "" {
		return fmt.Errorf("--dir is required")
	}

	pol, ident, err := resolveTarget(*configPath, *userName)
	if err != nil {
		return err
	}

	deleter := deletion.NewDeleter(pol.Roots(), logger)
	return deleter.DeleteAsUser(priv, ident, *baseDir, fs.Args())
}
