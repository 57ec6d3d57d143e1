// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"os"
	"sync"
)

// DefaultPlaceholderPrefix marks placeholder tokens so they are
// recognizable in guest configuration and request headers.
const DefaultPlaceholderPrefix = "GONDOLIN_SECRET_"

// placeholderRandomBytes is the entropy in each token.
const placeholderRandomBytes = 24

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// Prefix is prepended to every token. Default:
	// DefaultPlaceholderPrefix.
	Prefix string

	// LookupEnv reads the host environment. Default: os.LookupEnv.
	LookupEnv func(string) (string, bool)

	// Logger receives missing-value warnings. Default: slog.Default().
	Logger *slog.Logger
}

// Registry binds secret names to placeholder tokens for the lifetime of
// one guest session. Tokens are created on first request, so names
// added to the secrets file after the session started are registered
// lazily. A token is never rotated. Registry is safe for concurrent
// use.
type Registry struct {
	prefix    string
	lookupEnv func(string) (string, bool)
	logger    *slog.Logger

	mu     sync.Mutex
	tokens map[string]string // name -> token
	names  map[string]string // token -> name
}

// NewRegistry creates an empty Registry.
func NewRegistry(config RegistryConfig) *Registry {
	if config.Prefix == "" {
		config.Prefix = DefaultPlaceholderPrefix
	}
	if config.LookupEnv == nil {
		config.LookupEnv = os.LookupEnv
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Registry{
		prefix:    config.Prefix,
		lookupEnv: config.LookupEnv,
		logger:    config.Logger,
		tokens:    make(map[string]string),
		names:     make(map[string]string),
	}
}

// Placeholder returns name's token, generating it on the first call.
func (r *Registry) Placeholder(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if token, ok := r.tokens[name]; ok {
		return token
	}

	random := make([]byte, placeholderRandomBytes)
	// crypto/rand.Read never returns an error.
	rand.Read(random)
	token := r.prefix + hex.EncodeToString(random)

	r.tokens[name] = token
	r.names[token] = name
	return token
}

// Name returns the secret name a token was issued for.
func (r *Registry) Name(token string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.names[token]
	return name, ok
}

// Placeholders returns a snapshot of every issued name to token
// binding.
func (r *Registry) Placeholders() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make(map[string]string, len(r.tokens))
	for name, token := range r.tokens {
		snapshot[name] = token
	}
	return snapshot
}

// Resolve returns entry's live value: the literal value when the
// definition has one, otherwise the host environment variable of the
// same name. A missing or empty value logs a warning and returns "".
// Callers treat "" as missing, never as a valid secret.
func (r *Registry) Resolve(entry Entry) string {
	if entry.HasValue {
		if entry.Value == "" {
			r.logger.Warn("secret has an empty literal value", "secret", entry.Name)
		}
		return entry.Value
	}
	value, ok := r.lookupEnv(entry.Name)
	if !ok || value == "" {
		r.logger.Warn("secret value missing from host environment", "secret", entry.Name)
		return ""
	}
	return value
}
