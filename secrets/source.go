// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/gondolin/lib/metrics"
	"github.com/bureau-foundation/gondolin/lib/sealed"
	"github.com/bureau-foundation/gondolin/lib/secret"
)

// Source produces the current secret definitions. Implementations
// re-read their backing store on every call.
type Source interface {
	Entries() ([]Entry, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() ([]Entry, error)

// Entries calls f.
func (f SourceFunc) Entries() ([]Entry, error) { return f() }

// FileSource reads definitions from a secrets file. A path ending in
// ".age" is decrypted with Identity on every read.
type FileSource struct {
	Path string

	// Identity is the age identity for encrypted files. The caller
	// owns it and closes it after the source is no longer used.
	Identity *secret.Buffer

	Logger  *slog.Logger
	Metrics *metrics.Collector
}

// Entries reads and parses the file. A file that does not exist yields
// no entries so secrets can be added without a restart. Parse
// warnings are logged, not returned.
func (s *FileSource) Entries() ([]Entry, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		s.Metrics.RecordSecretsRead("missing")
		return nil, nil
	}
	if err != nil {
		s.Metrics.RecordSecretsRead("error")
		return nil, fmt.Errorf("reading secrets file %s: %w", s.Path, err)
	}

	var entries []Entry
	var warnings []Warning
	if filepath.Ext(s.Path) == ".age" {
		entries, warnings, err = s.parseSealed(data)
		if err != nil {
			s.Metrics.RecordSecretsRead("error")
			return nil, err
		}
	} else {
		entries, warnings = Parse(data)
		secret.Zero(data)
	}

	for _, warning := range warnings {
		logger.Warn("secrets file", "path", s.Path, "line", warning.Line, "warning", warning.Message)
	}
	s.Metrics.RecordParseWarnings(len(warnings))
	s.Metrics.RecordSecretsRead("ok")
	return entries, nil
}

func (s *FileSource) parseSealed(ciphertext []byte) ([]Entry, []Warning, error) {
	if s.Identity == nil {
		return nil, nil, fmt.Errorf("secrets file %s is encrypted but no identity is configured", s.Path)
	}
	plaintext, err := sealed.Decrypt(ciphertext, s.Identity)
	if err != nil {
		return nil, nil, fmt.Errorf("decrypting secrets file %s: %w", s.Path, err)
	}
	if plaintext == nil {
		return nil, nil, nil
	}
	defer plaintext.Close()

	entries, warnings := Parse(plaintext.Bytes())
	return entries, warnings, nil
}
