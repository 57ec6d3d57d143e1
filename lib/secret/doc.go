// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds host-side secret material outside the Go heap
// and keeps it out of logs.
//
// [Buffer] allocates memory via mmap(MAP_ANONYMOUS), locks it with
// mlock so it is never swapped, and marks it MADV_DONTDUMP so it never
// lands in a core dump. Close zeroes and unmaps it. Statically
// configured egress secrets and decrypted secrets files live in a
// Buffer for as long as they are needed.
//
// [Redacted] wraps a sensitive string for structured logging: its
// slog.LogValue and fmt forms print a placeholder, never the value.
// [Fingerprint] derives a short keyed BLAKE3 digest of a value so log
// lines can correlate "the same secret" across events without the
// digest being usable to confirm a guess outside this process.
//
// Depends on golang.org/x/sys/unix and github.com/zeebo/blake3.
package secret
