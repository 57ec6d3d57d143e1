// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed lets operators keep the host-side secrets file
// encrypted at rest with age (filippo.io/age). The file is decrypted on
// every read, so rotating the ciphertext on disk takes effect on the
// next access exactly like editing a plaintext file.
//
// Identities and decrypted plaintext are returned as *secret.Buffer
// values (mmap-backed, locked against swap, zeroed on close). Both
// binary and ASCII-armored ciphertext are accepted.
//
// [GenerateKeypair] and [Encrypt] exist for tooling and tests; the
// daemon only calls [ReadIdentityFile] and [DecryptFile].
package sealed
