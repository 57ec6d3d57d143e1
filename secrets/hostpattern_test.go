// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import "testing"

func TestMatchHost(t *testing.T) {
	tests := []struct {
		pattern  string
		hostname string
		want     bool
	}{
		{"*.example.com", "foo.example.com", true},
		{"*.example.com", "a.b.example.com", true},
		{"*.example.com", "example.com", false},
		{"*.example.com", "foo.example.org", false},
		{"*.example.com", "fooexample.com", false},
		{"*", "anything.at.all", true},
		{"*", "localhost", true},
		{"api.example.com", "api.example.com", true},
		{"api.example.com", "API.Example.COM", true},
		{"API.EXAMPLE.COM", "api.example.com", true},
		{"api.example.com", "api.example.com.", true},
		{"api.example.com", "api.example.com.evil.net", false},
		{"api.example.com", "evil-api.example.com", false},
		// Dots are literal, not regex wildcards.
		{"api.example.com", "apixexample.com", false},
		{"api.*.com", "api.example.com", true},
		{"api.*.com", "api.com", false},
		{"a*a", "a", false},
		{"a*a", "aa", true},
	}

	for _, test := range tests {
		t.Run(test.pattern+"/"+test.hostname, func(t *testing.T) {
			if got := MatchHost(test.pattern, test.hostname); got != test.want {
				t.Errorf("MatchHost(%q, %q) = %v, want %v", test.pattern, test.hostname, got, test.want)
			}
		})
	}
}

func TestMatchAny(t *testing.T) {
	patterns := []string{"api.example.com", "*.internal"}
	if !MatchAny(patterns, "svc.internal") {
		t.Error("expected svc.internal to match")
	}
	if MatchAny(patterns, "evil.example.com") {
		t.Error("expected evil.example.com not to match")
	}
	if MatchAny(nil, "api.example.com") {
		t.Error("expected no match against an empty list")
	}
}
