// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

type testPayload struct {
	Name  string   `cbor:"name"`
	Hosts []string `cbor:"hosts"`
}

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]any{"b": 1, "a": 2, "c": []string{"x"}}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("Marshal output differs between calls")
		}
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	data, err := Marshal(map[string]any{
		"name":    "GITHUB_TOKEN",
		"hosts":   []string{"api.github.com"},
		"comment": "added by a newer launcher",
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var payload testPayload
	if err := Unmarshal(data, &payload); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if payload.Name != "GITHUB_TOKEN" {
		t.Errorf("Name = %q, want GITHUB_TOKEN", payload.Name)
	}
	if len(payload.Hosts) != 1 || payload.Hosts[0] != "api.github.com" {
		t.Errorf("Hosts = %v, want [api.github.com]", payload.Hosts)
	}
}

func TestUnmarshalAnyUsesStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"nested": map[string]any{"k": "v"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	outer, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type %T, want map[string]any", decoded)
	}
	if _, ok := outer["nested"].(map[string]any); !ok {
		t.Errorf("nested type %T, want map[string]any", outer["nested"])
	}
}
