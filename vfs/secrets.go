// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/gondolin/lib/clock"
	"github.com/bureau-foundation/gondolin/secrets"
)

// SecretsDirectoryConfig configures a SecretsDirectory.
type SecretsDirectoryConfig struct {
	// Source supplies the current secret definitions. Required.
	Source secrets.Source

	// StaticNames are secrets configured outside the secrets file.
	// They are always present.
	StaticNames []string

	// Registry issues the placeholder served for each name. Required.
	Registry *secrets.Registry

	Clock  clock.Clock
	Logger *slog.Logger
}

// SecretsDirectory serves one file per secret. A file's content, and
// therefore its size, is the secret's placeholder token.
type SecretsDirectory struct {
	readOnly
	source      secrets.Source
	staticNames []string
	registry    *secrets.Registry
	logger      *slog.Logger
}

var _ ReadOnlyDirectory = (*SecretsDirectory)(nil)

// NewSecretsDirectory creates a SecretsDirectory.
func NewSecretsDirectory(config SecretsDirectoryConfig) (*SecretsDirectory, error) {
	if config.Source == nil {
		return nil, fmt.Errorf("secrets source is required")
	}
	if config.Registry == nil {
		return nil, fmt.Errorf("placeholder registry is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	directory := &SecretsDirectory{
		source:      config.Source,
		staticNames: config.StaticNames,
		registry:    config.Registry,
		logger:      config.Logger,
	}
	directory.readOnly = readOnly{provider: directory, modTime: config.Clock.Now()}
	return directory, nil
}

func (d *SecretsDirectory) names() ([]string, error) {
	entries, err := d.source.Entries()
	if err != nil {
		return nil, err
	}
	return secretNames(entries, d.staticNames), nil
}

// content issues the placeholder lazily so a name added to the file
// mid-session gets a token on first access.
func (d *SecretsDirectory) content(name string) ([]byte, bool, error) {
	if !contains(d.staticNames, name) {
		entries, err := d.source.Entries()
		if err != nil {
			return nil, false, err
		}
		if _, found := secrets.Lookup(entries, name); !found {
			return nil, false, nil
		}
	}
	return []byte(d.registry.Placeholder(name)), true, nil
}

// secretNames is the deduplicated union of file and static names.
func secretNames(entries []secrets.Entry, staticNames []string) []string {
	seen := make(map[string]bool, len(entries)+len(staticNames))
	names := make([]string, 0, len(entries)+len(staticNames))
	for _, name := range staticNames {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, entry := range entries {
		if !seen[entry.Name] {
			seen[entry.Name] = true
			names = append(names, entry.Name)
		}
	}
	return names
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
