// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package egress

import (
	"fmt"
	"io"

	"github.com/bureau-foundation/gondolin/lib/codec"
	"github.com/bureau-foundation/gondolin/lib/secret"
	"github.com/bureau-foundation/gondolin/secrets"
)

// StaticSecretPayload is the CBOR document piped to the daemon's stdin
// by whatever launches it. The launcher decrypts its own credential
// store; the daemon never sees that store's key.
type StaticSecretPayload struct {
	Secrets []StaticSecretRecord `cbor:"secrets"`
}

// StaticSecretRecord is one static secret on the wire.
type StaticSecretRecord struct {
	Name  string   `cbor:"name"`
	Hosts []string `cbor:"hosts"`
	Value []byte   `cbor:"value"`
}

// ReadStaticSecrets reads a CBOR StaticSecretPayload from reader to
// completion (stdin is one-shot) and moves every value into a
// secret.Buffer. The raw payload and decoded values are zeroed. The
// caller closes the returned buffers with CloseStaticSecrets.
func ReadStaticSecrets(reader io.Reader) ([]StaticSecret, error) {
	rawBuffer, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading static secret payload: %w", err)
	}
	defer secret.Zero(rawBuffer)

	if len(rawBuffer) == 0 {
		return nil, fmt.Errorf("static secret payload is empty")
	}

	var payload StaticSecretPayload
	if err := codec.Unmarshal(rawBuffer, &payload); err != nil {
		return nil, fmt.Errorf("parsing static secret payload: %w", err)
	}
	defer func() {
		for _, record := range payload.Secrets {
			secret.Zero(record.Value)
		}
	}()

	static := make([]StaticSecret, 0, len(payload.Secrets))
	seen := make(map[string]bool, len(payload.Secrets))
	for _, record := range payload.Secrets {
		if !secrets.IsValidName(record.Name) {
			CloseStaticSecrets(static)
			return nil, fmt.Errorf("static secret has invalid name %q", record.Name)
		}
		if seen[record.Name] {
			CloseStaticSecrets(static)
			return nil, fmt.Errorf("static secret %s appears twice", record.Name)
		}
		if len(record.Hosts) == 0 {
			CloseStaticSecrets(static)
			return nil, fmt.Errorf("static secret %s has no hosts", record.Name)
		}
		seen[record.Name] = true

		var value *secret.Buffer
		if len(record.Value) > 0 {
			value, err = secret.NewFromBytes(record.Value)
			if err != nil {
				CloseStaticSecrets(static)
				return nil, fmt.Errorf("creating buffer for static secret %s: %w", record.Name, err)
			}
		}
		static = append(static, StaticSecret{Name: record.Name, Hosts: record.Hosts, Value: value})
	}
	return static, nil
}

// CloseStaticSecrets releases every value buffer.
func CloseStaticSecrets(static []StaticSecret) {
	for _, item := range static {
		if item.Value != nil {
			item.Value.Close()
		}
	}
}
