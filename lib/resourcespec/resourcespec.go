// Copyright 2026 The Nodexec Authors
// SPDX-License-Identifier: Apache-2.0

// Package resourcespec parses the small delimited string formats the
// node manager passes across the helper boundary: comma-separated value
// lists and `key:value1,value2,...` resource descriptors.
//
// Parsing is total over bounded input. Every scan is capped by a
// caller-supplied maximum so that a malformed or adversarial string can
// never cause an unbounded scan; input longer than the cap is rejected,
// not truncated.
package resourcespec

import (
	"errors"
	"fmt"
	"strings"
)

// valueDelimiter separates values from each other.
const valueDelimiter = ","

// keySeparator separates the key from its value list.
const keySeparator = ":"

// ErrMalformed reports a resource descriptor that does not follow the
// key:value1,value2,... form.
var ErrMalformed = errors.New("malformed resource spec")

// Spec is a parsed resource descriptor: a key naming the constraint
// mechanism and its ordered values.
type Spec struct {
	Key    string
	Values []string
}

// SplitValues splits a comma-separated list into its non-empty values,
// preserving order. Empty segments (leading, trailing, or doubled
// commas) are dropped rather than reported; the configuration format
// tolerates them.
func SplitValues(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, valueDelimiter)
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

// Key returns the portion of s before the first colon, scanning at most
// max bytes. An empty key, a missing separator within the bound, or
// input exceeding the bound is malformed.
func Key(s string, max int) (string, error) {
	if len(s) > max {
		return "", fmt.Errorf("%w: input exceeds %d bytes", ErrMalformed, max)
	}
	idx := strings.Index(s, keySeparator)
	if idx < 0 {
		return "", fmt.Errorf("%w: missing %q separator in %q", ErrMalformed, keySeparator, s)
	}
	if idx == 0 {
		return "", fmt.Errorf("%w: empty key in %q", ErrMalformed, s)
	}
	return s[:idx], nil
}

// Values returns the comma-separated values after the first colon,
// scanning at most max bytes.
func Values(s string, max int) ([]string, error) {
	if len(s) > max {
		return nil, fmt.Errorf("%w: input exceeds %d bytes", ErrMalformed, max)
	}
	idx := strings.Index(s, keySeparator)
	if idx < 0 {
		return nil, fmt.Errorf("%w: missing %q separator in %q", ErrMalformed, keySeparator, s)
	}
	return SplitValues(s[idx+1:]), nil
}

// Parse parses a full key:value1,value2,... descriptor, scanning at
// most max bytes.
func Parse(s string, max int) (Spec, error) {
	key, err := Key(s, max)
	if err != nil {
		return Spec{}, err
	}
	values, err := Values(s, max)
	if err != nil {
		return Spec{}, err
	}
	return Spec{Key: key, Values: values}, nil
}
