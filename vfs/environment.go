// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/bureau-foundation/gondolin/lib/clock"
	"github.com/bureau-foundation/gondolin/secrets"
)

// EnvironmentDirectoryConfig configures an EnvironmentDirectory.
type EnvironmentDirectoryConfig struct {
	// Names are the host environment variables to propagate. Ignored
	// when All is set.
	Names []string

	// All propagates every host environment variable.
	All bool

	// Secrets supplies the current secret definitions. Every secret
	// name is withheld. Required.
	Secrets secrets.Source

	// StaticSecretNames are withheld as well.
	StaticSecretNames []string

	// LookupEnv and Environ read the host environment. Defaults:
	// os.LookupEnv and os.Environ.
	LookupEnv func(string) (string, bool)
	Environ   func() []string

	Clock  clock.Clock
	Logger *slog.Logger
}

// EnvironmentDirectory serves raw host environment values, one file
// per variable. Names that are secrets are never served: a guest
// must not read the real value of a name it takes for a plain
// variable.
type EnvironmentDirectory struct {
	readOnly
	config EnvironmentDirectoryConfig
}

var _ ReadOnlyDirectory = (*EnvironmentDirectory)(nil)

// NewEnvironmentDirectory creates an EnvironmentDirectory.
func NewEnvironmentDirectory(config EnvironmentDirectoryConfig) (*EnvironmentDirectory, error) {
	if config.Secrets == nil {
		return nil, fmt.Errorf("secrets source is required")
	}
	if config.LookupEnv == nil {
		config.LookupEnv = os.LookupEnv
	}
	if config.Environ == nil {
		config.Environ = os.Environ
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	directory := &EnvironmentDirectory{config: config}
	directory.readOnly = readOnly{provider: directory, modTime: config.Clock.Now()}
	return directory, nil
}

func (d *EnvironmentDirectory) names() ([]string, error) {
	withheld, err := d.withheld()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, name := range d.candidates() {
		if !withheld[name] {
			names = append(names, name)
		}
	}
	return names, nil
}

func (d *EnvironmentDirectory) content(name string) ([]byte, bool, error) {
	if !contains(d.candidates(), name) {
		return nil, false, nil
	}
	// A secrets read failure withholds everything rather than risk
	// serving a secret's value.
	withheld, err := d.withheld()
	if err != nil {
		return nil, false, err
	}
	if withheld[name] {
		return nil, false, nil
	}

	value, ok := d.config.LookupEnv(name)
	if !ok {
		d.config.Logger.Warn("propagated environment variable not set on host", "name", name)
	}
	return []byte(value), true, nil
}

// candidates are the names eligible before secrets are withheld.
func (d *EnvironmentDirectory) candidates() []string {
	source := d.config.Names
	if d.config.All {
		source = nil
		for _, pair := range d.config.Environ() {
			name, _, _ := strings.Cut(pair, "=")
			source = append(source, name)
		}
	}

	seen := make(map[string]bool, len(source))
	names := make([]string, 0, len(source))
	for _, name := range source {
		if validFileName(name) && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

func (d *EnvironmentDirectory) withheld() (map[string]bool, error) {
	entries, err := d.config.Secrets.Entries()
	if err != nil {
		return nil, fmt.Errorf("reading secrets: %w", err)
	}
	withheld := make(map[string]bool)
	for _, name := range secretNames(entries, d.config.StaticSecretNames) {
		withheld[name] = true
	}
	return withheld, nil
}

func validFileName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.Contains(name, "/")
}
