// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import "strings"

// MatchHost reports whether hostname matches pattern. Matching is
// case-insensitive and anchored at both ends; "*" matches any run of
// characters, including dots. "*" alone matches every host, and
// "*.example.com" matches "a.example.com" but not "example.com".
func MatchHost(pattern, hostname string) bool {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	hostname = strings.ToLower(strings.TrimSuffix(hostname, "."))

	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == hostname
	}

	if !strings.HasPrefix(hostname, parts[0]) {
		return false
	}
	rest := hostname[len(parts[0]):]

	for _, middle := range parts[1 : len(parts)-1] {
		index := strings.Index(rest, middle)
		if index == -1 {
			return false
		}
		rest = rest[index+len(middle):]
	}

	return strings.HasSuffix(rest, parts[len(parts)-1])
}

// MatchAny reports whether hostname matches at least one pattern.
func MatchAny(patterns []string, hostname string) bool {
	for _, pattern := range patterns {
		if MatchHost(pattern, hostname) {
			return true
		}
	}
	return false
}
