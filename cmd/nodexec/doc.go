// Copyright 2026 The Nodexec Authors
// SPDX-License-Identifier: Apache-2.0

// nodexec is the privileged helper the node manager invokes to perform
// filesystem and process operations as unprivileged job owners.
//
// It is installed setuid root. On every invocation it records the
// invoking service's real uid/gid, validates the requested target user
// against the policy file, irreversibly narrows to that user, performs
// exactly one operation, and exits (or replaces its own image with the
// container process).
//
// Usage:
//
//	nodexec initialize-user   --user <name>
//	nodexec initialize-app    --user <name> --app <id> --credentials <file> -- <command>...
//	nodexec launch-container  --user <name> --app <id> --container <id> --workdir <dir> \
//	                          --script <file> --pidfile <file> [--credentials <file>] \
//	                          [--resources key:v1,v2]
//	nodexec signal-container  --user <name> --pid <pid> --signal <num>
//	nodexec delete-as-user    --user <name> --dir <path> [subdir...]
//	nodexec check-setup
package main
