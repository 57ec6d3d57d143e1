// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
)

// Entry is one parsed secret definition.
type Entry struct {
	// Name is an identifier ([A-Za-z_][A-Za-z0-9_]*), also used as the
	// host environment variable when HasValue is false.
	Name string

	// Hosts are the destination patterns allowed to receive the value.
	Hosts []string

	// Value is the literal value from the definition, valid only when
	// HasValue is true.
	Value string

	// HasValue distinguishes "NAME@host=" (an empty literal) from
	// "NAME@host" (read from the environment).
	HasValue bool
}

// Warning describes a line that was skipped or looks wrong. Message
// never contains a secret value.
type Warning struct {
	Line    int
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Message)
}

// ParseFile reads and parses path. Callers must not cache the result:
// the file is the source of truth on every access.
func ParseFile(path string) ([]Entry, []Warning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	entries, warnings := Parse(data)
	return entries, warnings, nil
}

// Parse parses secrets file content. Malformed lines are skipped with
// a Warning; they never fail the whole file.
func Parse(data []byte) ([]Entry, []Warning) {
	var entries []Entry
	var warnings []Warning
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry, lineWarnings, ok := parseLine(line)
		for _, message := range lineWarnings {
			warnings = append(warnings, Warning{Line: lineNumber, Message: message})
		}
		if !ok {
			continue
		}
		if seen[entry.Name] {
			warnings = append(warnings, Warning{
				Line:    lineNumber,
				Message: fmt.Sprintf("duplicate definition of %s ignored", entry.Name),
			})
			continue
		}
		seen[entry.Name] = true
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		warnings = append(warnings, Warning{
			Line:    lineNumber + 1,
			Message: fmt.Sprintf("stopped reading: %v", err),
		})
	}

	return entries, warnings
}

func parseLine(line string) (Entry, []string, bool) {
	name, rest, found := strings.Cut(line, "@")
	if !found {
		return Entry{}, []string{"missing '@' between name and hosts"}, false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Entry{}, []string{"empty secret name"}, false
	}
	if !IsValidName(name) {
		return Entry{}, []string{fmt.Sprintf("invalid secret name %q", name)}, false
	}

	hostList, value, hasValue := strings.Cut(rest, "=")

	var hosts []string
	var warnings []string
	for _, host := range strings.Split(hostList, ",") {
		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}
		if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
			warnings = append(warnings, fmt.Sprintf(
				"host %q for %s looks like a URL; hosts are bare hostnames", host, name))
		}
		hosts = append(hosts, host)
	}
	if len(hosts) == 0 {
		return Entry{}, append(warnings, fmt.Sprintf("no hosts for %s", name)), false
	}

	return Entry{Name: name, Hosts: hosts, Value: value, HasValue: hasValue}, warnings, true
}

// IsValidName reports whether name is an identifier usable as a secret
// name: [A-Za-z_][A-Za-z0-9_]*.
func IsValidName(name string) bool {
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return name != ""
}

// Format renders entry as a secrets file line. Parse(Format(e)) yields
// e for any entry Parse can produce.
func Format(entry Entry) string {
	line := entry.Name + "@" + strings.Join(entry.Hosts, ",")
	if entry.HasValue {
		line += "=" + entry.Value
	}
	return line
}

// Lookup returns the entry named name.
func Lookup(entries []Entry, name string) (Entry, bool) {
	for _, entry := range entries {
		if entry.Name == name {
			return entry, true
		}
	}
	return Entry{}, false
}
