// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the CBOR encoding used for host-side IPC payloads,
// such as the static secret bundle a launcher pipes into the egress
// daemon. Encoding uses RFC 8949 Core Deterministic Encoding so the
// same payload always produces the same bytes; decoding ignores
// unknown fields so older daemons accept newer launchers.
package codec
