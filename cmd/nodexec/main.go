// Copyright 2026 The Nodexec Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fleetgrid/nodexec/lib/identity"
	"github.com/fleetgrid/nodexec/lib/policy"
	"github.com/fleetgrid/nodexec/lib/privilege"
	"github.com/fleetgrid/nodexec/lib/process"
)

const version = "1.2.0"

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("NODEXEC_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	// The real uid/gid identify the invoking service: the setuid bit
	// changed only the effective ids. Bind them before anything else so
	// no later code path can claim a different invoker.
	priv := privilege.NewContext()
	if err := priv.BindService(os.Getuid(), os.Getgid()); err != nil {
		process.Fatal(err)
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(process.ExitUsage)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "initialize-user":
		err = initializeUserCmd(args, priv, logger)
	case "initialize-app":
		err = initializeAppCmd(args, priv, logger)
	case "launch-container":
		err = launchContainerCmd(args, priv, logger)
	case "signal-container":
		err = signalContainerCmd(args, priv, logger)
	case "delete-as-user":
		err = deleteAsUserCmd(args, priv, logger)
	case "check-setup":
		err = checkSetupCmd(args)
	case "version", "--version", "-v":
		fmt.Printf("nodexec %s\n", version)
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(process.ExitUsage)
	}

	if err != nil {
		process.Fatal(err)
	}
}

func printUsage() {
	fmt.Print(`nodexec - privileged as-user operations helper for the node manager

USAGE
    nodexec <command> [flags] [-- <args>...]

COMMANDS
    initialize-user   Create the per-root user cache directories
    initialize-app    Stage an application and exec its first process
    launch-container  Stage and exec a container launch script
    signal-container  Deliver a signal to a container process or group
    delete-as-user    Recursively delete a user-owned subtree as that user
    check-setup       Validate the policy file and helper privileges
    version           Show version

POLICY
    The policy file is read from --config, or NODEXEC_CONFIG, or
    ` + policy.DefaultPath + `. It sets banned.users, min.user.id,
    allowed.system.users, local.dirs, and log.dirs.

ENVIRONMENT
    NODEXEC_CONFIG  Path to the policy file
    NODEXEC_DEBUG   Enable debug logging
`)
}

// loadPolicy resolves the policy file: explicit flag first, then the
// environment, then the packaged default path.
func loadPolicy(configPath string) (*policy.Policy, error) {
	if configPath != "" {
		return policy.LoadFile(configPath)
	}
	if envPath := os.Getenv("NODEXEC_CONFIG"); envPath != "" {
		return policy.LoadFile(envPath)
	}
	return policy.LoadFile(policy.DefaultPath)
}

// resolveTarget loads the policy and validates the requested user
// against it. Every as-user operation starts here; no mutation happens
// before this returns.
func resolveTarget(configPath, userName string) (*policy.Policy, identity.Identity, error) {
	pol, err := loadPolicy(configPath)
	if err != nil {
		return nil, identity.Identity{}, err
	}
	ident, err := identity.Validate(userName, pol)
	if err != nil {
		return nil, identity.Identity{}, err
	}
	return pol, ident, nil
}

// roots returns override if non-empty, otherwise fallback. Commands
// accept explicit root lists but default to the policy's.
func roots(override, fallback []string) []string {
	if len(override) > 0 {
		return override
	}
	return fallback
}
