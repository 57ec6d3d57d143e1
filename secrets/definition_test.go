// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	input := `
# API credentials
GITHUB_TOKEN@api.github.com, *.githubusercontent.com
OPENAI_KEY@api.openai.com=sk-abc=def==

EMPTY_LITERAL@example.com=
`
	entries, warnings := Parse([]byte(input))
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	want := []Entry{
		{Name: "GITHUB_TOKEN", Hosts: []string{"api.github.com", "*.githubusercontent.com"}},
		{Name: "OPENAI_KEY", Hosts: []string{"api.openai.com"}, Value: "sk-abc=def==", HasValue: true},
		{Name: "EMPTY_LITERAL", Hosts: []string{"example.com"}, Value: "", HasValue: true},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("Parse() =\n%+v\nwant\n%+v", entries, want)
	}
}

func TestParseSkipsMalformedLines(t *testing.T) {
	input := "GOOD_ONE@a.example.com\nno-at-sign-here\nGOOD_TWO@b.example.com=value\n"

	entries, warnings := Parse([]byte(input))
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}
	if entries[0].Name != "GOOD_ONE" || entries[1].Name != "GOOD_TWO" {
		t.Errorf("unexpected entries: %+v", entries)
	}
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1: %v", len(warnings), warnings)
	}
	if warnings[0].Line != 2 {
		t.Errorf("warning line = %d, want 2", warnings[0].Line)
	}
}

func TestParseWarnings(t *testing.T) {
	tests := []struct {
		name        string
		line        string
		wantEntry   bool
		wantMessage string
	}{
		{"missing at", "TOKEN", false, "missing '@'"},
		{"empty name", "@api.example.com", false, "empty secret name"},
		{"invalid name", "1TOKEN@api.example.com", false, "invalid secret name"},
		{"dash in name", "MY-TOKEN@api.example.com", false, "invalid secret name"},
		{"no hosts", "TOKEN@", false, "no hosts"},
		{"only commas", "TOKEN@ , ,=value", false, "no hosts"},
		{"url host", "TOKEN@https://api.example.com", true, "looks like a URL"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			entries, warnings := Parse([]byte(test.line))
			if got := len(entries) == 1; got != test.wantEntry {
				t.Errorf("entry kept = %v, want %v", got, test.wantEntry)
			}
			if len(warnings) != 1 {
				t.Fatalf("got %d warnings, want 1: %v", len(warnings), warnings)
			}
			if !strings.Contains(warnings[0].Message, test.wantMessage) {
				t.Errorf("warning %q does not contain %q", warnings[0].Message, test.wantMessage)
			}
		})
	}
}

func TestParseWarningsNeverContainValue(t *testing.T) {
	input := "TOKEN@=super-secret-value\nOTHER@http://x.example.com=another-secret\n"
	_, warnings := Parse([]byte(input))
	if len(warnings) == 0 {
		t.Fatal("expected warnings")
	}
	for _, warning := range warnings {
		if strings.Contains(warning.String(), "secret-value") || strings.Contains(warning.String(), "another-secret") {
			t.Errorf("warning leaks value: %s", warning)
		}
	}
}

func TestParseDuplicateKeepsFirst(t *testing.T) {
	entries, warnings := Parse([]byte("TOKEN@a.example.com=first\nTOKEN@b.example.com=second\n"))
	if len(entries) != 1 || entries[0].Value != "first" {
		t.Errorf("entries = %+v, want only the first definition", entries)
	}
	if len(warnings) != 1 || warnings[0].Line != 2 {
		t.Errorf("warnings = %v, want one on line 2", warnings)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	entries := []Entry{
		{Name: "A", Hosts: []string{"a.example.com"}},
		{Name: "B_2", Hosts: []string{"*.example.com", "example.org"}, Value: "v", HasValue: true},
		{Name: "_C", Hosts: []string{"*"}, Value: "x=y=z", HasValue: true},
		{Name: "D", Hosts: []string{"d.example.com"}, Value: "", HasValue: true},
		{Name: "E", Hosts: []string{"e.example.com"}, Value: "has@at,and,commas", HasValue: true},
	}

	for _, entry := range entries {
		t.Run(entry.Name, func(t *testing.T) {
			line := Format(entry)
			parsed, warnings := Parse([]byte(line))
			if len(warnings) != 0 {
				t.Fatalf("Parse(%q) warnings: %v", line, warnings)
			}
			if len(parsed) != 1 || !reflect.DeepEqual(parsed[0], entry) {
				t.Errorf("Parse(Format(e)) = %+v, want %+v", parsed, entry)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets")
	if err := os.WriteFile(path, []byte("TOKEN@api.example.com\n"), 0600); err != nil {
		t.Fatal(err)
	}

	entries, _, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	// The file is re-read, so edits show up on the next call.
	if err := os.WriteFile(path, []byte("TOKEN@api.example.com\nOTHER@x.example.com\n"), 0600); err != nil {
		t.Fatal(err)
	}
	entries, _, err = ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d entries after edit, want 2", len(entries))
	}
}

func TestLookup(t *testing.T) {
	entries := []Entry{{Name: "A"}, {Name: "B"}}
	if entry, ok := Lookup(entries, "B"); !ok || entry.Name != "B" {
		t.Errorf("Lookup(B) = %+v, %v", entry, ok)
	}
	if _, ok := Lookup(entries, "C"); ok {
		t.Error("Lookup(C) found an entry")
	}
}
