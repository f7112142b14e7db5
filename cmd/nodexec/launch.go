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

// maxResourceSpec bounds the scan of the --resources descriptor.
const maxResourceSpec = 4096

// launchContainerCmd implements "launch-container". On success the
// process image is replaced by the launch script and this never
// returns.
func launchContainerCmd(args []string, priv *privilege.Context, logger *slog.Logger) error {
	fs := pflag.NewFlagSet("launch-container", pflag.ContinueOnError)
	configPath := fs.String("config", "", "Path to the policy file")
	userName := fs.String("user", "", "Target user (required)")
	appID := fs.String("app", "", "Application id (required)")
	containerID := fs.String("container", "", "Container id (required)")
	workDir := fs.String("workdir", "", "Container work directory (required)")
	script := fs.String("script", "", "Launch script to copy and exec (required)")
	credentials := fs.String("credentials", "", "Credentials file to stage")
	pidFile := fs.String("pidfile", "", "File that receives the container pid (required)")
	resources := fs.String("resources", "", "Resource constraint (key:value1,value2,...)")
	localDirs := fs.String("local-dirs", "", "Override policy local.dirs (comma-separated)")
	logDirs := fs.String("log-dirs", "", "Override policy log.dirs (comma-separated)")
	fs.Usage = func() {
		fmt.Print(`nodexec launch-container - Stage and exec a container launch script

USAGE
    nodexec launch-container --user <name> --app <id> --container <id> \
        --workdir <dir> --script <file> --pidfile <file> [flags]

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
	case *containerID == "":
		return fmt.Errorf("--container is required")
	case *workDir == "":
		return fmt.Errorf("--workdir is required")
	case *script == "":
		return fmt.Errorf("--script is required")
	case *pidFile == "":
		return fmt.Errorf("--pidfile is required")
	}

	// Parse the resource descriptor before touching the filesystem so a
	// malformed spec is a clean, side-effect-free rejection.
	var spec *resourcespec.Spec
	if *resources != "" {
		parsed, err := resourcespec.Parse(*resources, maxResourceSpec)
		if err != nil {
			return err
		}
		spec = &parsed
	}

	pol, ident, err := resolveTarget(*configPath, *userName)
	if err != nil {
		return err
	}

	manager := lifecycle.NewManager(priv, logger)
	return manager.LaunchContainer(lifecycle.LaunchRequest{
		Ident:        ident,
		AppID:        *appID,
		ContainerID:  *containerID,
		WorkDir:      *workDir,
		LaunchScript: *script,
		Credentials:  *credentials,
		PIDFile:      *pidFile,
		LocalRoots:   roots(resourcespec.SplitValues(*localDirs), pol.LocalDirs),
		LogRoots:     roots(resourcespec.SplitValues(*logDirs), pol.LogDirs),
		Resources:    spec,
	})
}
