// Copyright 2026 The Nodexec Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy loads the helper's security policy file.
//
// The policy file is the single source of truth for which users this
// helper may act as and which directory roots it may mutate. It is
// loaded from an explicit --config flag, the NODEXEC_CONFIG environment
// variable, or DefaultPath, in that order; there is no search path, so
// the effective policy is always auditable from one file.
//
// The file is YAML with the historical dotted key names:
//
//	banned.users: vulture,zuul
//	min.user.id: 1000
//	allowed.system.users: daemon,bin
//	local.dirs: /data/local-1,/data/local-2
//	log.dirs: /var/log/containers
//
// List-valued keys are comma-separated strings, not YAML sequences,
// matching the format consumed by the node manager's own configuration.
package policy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/fleetgrid/nodexec/lib/resourcespec"
)

// DefaultPath is where the policy file is installed by packaging.
const DefaultPath = "/etc/nodexec/nodexec.yaml"

// ErrConfig reports a missing, unreadable, or invalid policy file.
var ErrConfig = errors.New("invalid configuration")

// DefaultMinUserID is the minimum target uid when the policy file does
// not set one. 1000 is the first regular-user uid on common distros;
// anything below it is a system account unless whitelisted.
const DefaultMinUserID = 1000

// rawPolicy is the on-disk shape. Comma lists stay strings here and are
// split during Load so the parsed Policy exposes real slices and sets.
type rawPolicy struct {
	BannedUsers        string `yaml:"banned.users"`
	MinUserID          *int   `yaml:"min.user.id"`
	AllowedSystemUsers string `yaml:"allowed.system.users"`
	LocalDirs          string `yaml:"local.dirs"`
	LogDirs            string `yaml:"log.dirs"`
}

// Policy is the parsed helper policy.
type Policy struct {
	// BannedUsers are account names this helper refuses to act as,
	// regardless of uid.
	BannedUsers map[string]bool

	// MinUserID is the lowest uid eligible as a target identity unless
	// the name is in AllowedSystemUsers.
	MinUserID int

	// AllowedSystemUsers are account names exempt from the MinUserID
	// check only. They are still subject to the banned and root checks.
	AllowedSystemUsers map[string]bool

	// LocalDirs are the work-directory roots the helper may create and
	// delete under. Each is an independent confinement boundary.
	LocalDirs []string

	// LogDirs are the log-directory roots, confined the same way.
	LogDirs []string
}

// Load loads the policy from NODEXEC_CONFIG.
func Load() (*Policy, error) {
	path := os.Getenv("NODEXEC_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("%w: NODEXEC_CONFIG environment variable not set; "+
			"set it to the path of the nodexec.yaml policy file, or use --config", ErrConfig)
	}
	return LoadFile(path)
}

// LoadFile loads the policy from an explicit path.
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading policy file: %v", ErrConfig, err)
	}

	var raw rawPolicy
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing policy file %s: %v", ErrConfig, path, err)
	}

	pol := &Policy{
		BannedUsers:        toSet(resourcespec.SplitValues(raw.BannedUsers)),
		MinUserID:          DefaultMinUserID,
		AllowedSystemUsers: toSet(resourcespec.SplitValues(raw.AllowedSystemUsers)),
		LocalDirs:          resourcespec.SplitValues(raw.LocalDirs),
		LogDirs:            resourcespec.SplitValues(raw.LogDirs),
	}
	if raw.MinUserID != nil {
		pol.MinUserID = *raw.MinUserID
	}

	if err := pol.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid policy in %s: %v", ErrConfig, path, err)
	}
	return pol, nil
}

// Validate checks the policy for values that would weaken the helper's
// guarantees.
func (p *Policy) Validate() error {
	var errs []error

	if p.MinUserID < 1 {
		errs = append(errs, fmt.Errorf("min.user.id must be at least 1, got %d", p.MinUserID))
	}

	for _, dir := range p.LocalDirs {
		if !filepath.IsAbs(dir) {
			errs = append(errs, fmt.Errorf("local.dirs entry %q is not absolute", dir))
		}
	}
	for _, dir := range p.LogDirs {
		if !filepath.IsAbs(dir) {
			errs = append(errs, fmt.Errorf("log.dirs entry %q is not absolute", dir))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Roots returns every configured root, local and log, as one slice.
// Deletion confinement checks against this set.
func (p *Policy) Roots() []string {
	roots := make([]string, 0, len(p.LocalDirs)+len(p.LogDirs))
	roots = append(roots, p.LocalDirs...)
	roots = append(roots, p.LogDirs...)
	return roots
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
