// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package egress inspects HTTP requests leaving the guest and swaps
// placeholder tokens for real secret values at the last moment.
//
// [Interceptor] exposes the two hooks a guest networking layer calls
// on every outbound request:
//
//   - [Interceptor.IsIPAllowed] applies the global destination
//     allow-list.
//   - [Interceptor.OnRequestHead] rewrites header values, replacing
//     each placeholder with its live value only when the destination
//     matches that secret's hosts. A placeholder bound for any other
//     host aborts the request with a [*BlockedError]. Basic
//     credentials are decoded, rewritten, and re-encoded.
//
// Independently of placeholders, every header value (and decoded Basic
// payload) is scanned for each secret's resolved value. A raw value
// bound for a host outside its allow-list is blocked as well, which
// catches a guest that learned a value through another channel.
//
// Secrets come from two places. Dynamic secrets are re-read from a
// [secrets.Source] on every request. Static secrets ([StaticSecret])
// are fixed at startup, usually read from a CBOR payload on stdin by
// [ReadStaticSecrets]; a static secret shadows a dynamic one with the
// same name.
//
// [Proxy] wraps an Interceptor as a plain-HTTP forward proxy.
package egress
