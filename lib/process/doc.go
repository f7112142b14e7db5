// Copyright 2026 The Nodexec Authors
// SPDX-License-Identifier: Apache-2.0

// Package process maps nodexec's error taxonomy to its stable exit
// statuses and provides the standard binary entrypoint error handler.
package process
