// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package egress

import (
	"bytes"
	"testing"

	"github.com/bureau-foundation/gondolin/lib/codec"
)

func encodePayload(t *testing.T, payload StaticSecretPayload) []byte {
	t.Helper()
	data, err := codec.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return data
}

func TestReadStaticSecrets(t *testing.T) {
	data := encodePayload(t, StaticSecretPayload{Secrets: []StaticSecretRecord{
		{Name: "API_KEY", Hosts: []string{"api.example.com"}, Value: []byte("key-value")},
		{Name: "EMPTY", Hosts: []string{"*"}},
	}})

	static, err := ReadStaticSecrets(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadStaticSecrets: %v", err)
	}
	defer CloseStaticSecrets(static)

	if len(static) != 2 {
		t.Fatalf("got %d secrets, want 2", len(static))
	}
	if static[0].Name != "API_KEY" || static[0].Value.String() != "key-value" {
		t.Errorf("first secret = %s", static[0].Name)
	}
	if static[1].Value != nil {
		t.Error("empty value should have no buffer")
	}
}

func TestReadStaticSecretsRejects(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", nil},
		{"garbage", []byte{0xff, 0x00, 0x13}},
		{"invalid name", encodePayload(t, StaticSecretPayload{Secrets: []StaticSecretRecord{
			{Name: "not valid", Hosts: []string{"*"}, Value: []byte("v")},
		}})},
		{"no hosts", encodePayload(t, StaticSecretPayload{Secrets: []StaticSecretRecord{
			{Name: "KEY", Value: []byte("v")},
		}})},
		{"duplicate", encodePayload(t, StaticSecretPayload{Secrets: []StaticSecretRecord{
			{Name: "KEY", Hosts: []string{"*"}, Value: []byte("a")},
			{Name: "KEY", Hosts: []string{"*"}, Value: []byte("b")},
		}})},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := ReadStaticSecrets(bytes.NewReader(test.payload)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
