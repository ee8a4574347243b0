// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package version

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "4.0.0", want: "4.0.0"},
		{in: "v4.0.0", want: "4.0.0"},
		{in: "3.4.1", want: "3.4.1"},
		{in: "4.1", want: "4.1.0"}, // canonicalized
		{in: "", wantErr: true},
		{in: "banana", wantErr: true},
		{in: "4.0.0.0", wantErr: true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Parse(%q) expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.in, got.String(), tt.want)
		}
	}
}

func TestResolve_FallsBackToBundled(t *testing.T) {
	if got := Resolve(""); !got.IsBundled() {
		t.Errorf("Resolve(\"\") = %v, want bundled", got)
	}
	if got := Resolve("not-a-version"); !got.IsBundled() {
		t.Errorf("Resolve(garbage) = %v, want bundled", got)
	}
	if got := Resolve("4.2.0"); got.IsBundled() || got.String() != "4.2.0" {
		t.Errorf("Resolve(4.2.0) = %v, want 4.2.0", got)
	}
}

func TestOrdering(t *testing.T) {
	older := MustParse("3.9.9")
	newer := MustParse("4.0.0")

	if !newer.AtLeast(older) {
		t.Error("4.0.0 should be at least 3.9.9")
	}
	if !newer.AtLeast(newer) {
		t.Error("AtLeast should be inclusive")
	}
	if !older.Before(newer) {
		t.Error("3.9.9 should be before 4.0.0")
	}
	if older.AtLeast(MinDynamicRouting) {
		t.Error("3.9.9 should not satisfy the dynamic routing threshold")
	}
	if !newer.AtLeast(MinPartialSemanticMode) {
		t.Error("4.0.0 should satisfy the partial semantic threshold")
	}
}

func TestThresholdOrdering(t *testing.T) {
	// The gates must be monotonically non-decreasing; the selector's
	// first-match logic relies on it.
	if !MinSeparateSyntax.AtLeast(MinInferredProjectPerRoot) {
		t.Error("separate syntax threshold below inferred-project threshold")
	}
	if !MinDynamicRouting.AtLeast(MinSeparateSyntax) {
		t.Error("dynamic routing threshold below separate syntax threshold")
	}
}
