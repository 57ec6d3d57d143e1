// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"

	"github.com/zeebo/blake3"
)

// redactedText is what every formatting path of Redacted prints.
const redactedText = "[REDACTED]"

// Redacted is a sensitive string that must not reach a log. It prints
// as [REDACTED] through fmt verbs and slog.
type Redacted string

// String implements fmt.Stringer.
func (r Redacted) String() string { return redactedText }

// GoString implements fmt.GoStringer for %#v.
func (r Redacted) GoString() string { return redactedText }

// LogValue implements slog.LogValuer.
func (r Redacted) LogValue() slog.Value { return slog.StringValue(redactedText) }

// fingerprintKey is generated once per process. Fingerprints are
// therefore stable within a process and meaningless outside it.
var fingerprintKey = func() []byte {
	key := make([]byte, 32)
	rand.Read(key)
	return key
}()

// Fingerprint returns a 16-hex-character keyed BLAKE3 digest of value.
// An empty value fingerprints as the empty string.
func Fingerprint(value []byte) string {
	if len(value) == 0 {
		return ""
	}
	hasher, err := blake3.NewKeyed(fingerprintKey)
	if err != nil {
		// NewKeyed only fails for a key that is not 32 bytes.
		panic("secret: fingerprint key: " + err.Error())
	}
	hasher.Write(value)
	return hex.EncodeToString(hasher.Sum(nil)[:8])
}
