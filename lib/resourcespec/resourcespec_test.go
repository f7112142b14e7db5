// Copyright 2026 The Nodexec Authors
// SPDX-License-Identifier: Apache-2.0

package resourcespec

import (
	"errors"
	"reflect"
	"testing"
)

const testScanLimit = 4096

func TestSplitValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"single", "alpha", []string{"alpha"}},
		{"multiple", "alpha,beta,gamma", []string{"alpha", "beta", "gamma"}},
		{"empty segments dropped", ",alpha,,beta,", []string{"alpha", "beta"}},
		{"whitespace trimmed", " alpha , beta ", []string{"alpha", "beta"}},
		{"only delimiters", ",,,", nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SplitValues(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitValues(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	spec, err := Parse("cgroups=/sys/fs/cgroup/memory/tasks", testScanLimit)
	if err == nil {
		t.Fatalf("expected error for missing colon, got %+v", spec)
	}
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}

	spec, err = Parse("cgroups:/a/tasks,/b/tasks", testScanLimit)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if spec.Key != "cgroups" {
		t.Errorf("key = %q, want %q", spec.Key, "cgroups")
	}
	want := []string{"/a/tasks", "/b/tasks"}
	if !reflect.DeepEqual(spec.Values, want) {
		t.Errorf("values = %v, want %v", spec.Values, want)
	}
}

func TestParseEmptyKey(t *testing.T) {
	t.Parallel()

	if _, err := Parse(":v1,v2", testScanLimit); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed for empty key, got %v", err)
	}
}

func TestParseEmptyValues(t *testing.T) {
	t.Parallel()

	spec, err := Parse("none:", testScanLimit)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if spec.Values != nil {
		t.Errorf("expected nil values, got %v", spec.Values)
	}
}

func TestScanBound(t *testing.T) {
	t.Parallel()

	long := "k:" + string(make([]byte, 100))
	if _, err := Parse(long, 10); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed for over-long input, got %v", err)
	}

	// Within bounds the same shape parses.
	if _, err := Parse("k:v", 10); err != nil {
		t.Errorf("Parse within bound failed: %v", err)
	}
}

func TestKeyAndValues(t *testing.T) {
	t.Parallel()

	key, err := Key("cgroups:/x/tasks", testScanLimit)
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if key != "cgroups" {
		t.Errorf("key = %q, want %q", key, "cgroups")
	}

	values, err := Values("cgroups:/x/tasks", testScanLimit)
	if err != nil {
		t.Fatalf("Values failed: %v", err)
	}
	if len(values) != 1 || values[0] != "/x/tasks" {
		t.Errorf("values = %v, want [/x/tasks]", values)
	}
}
