// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [SocketDir] creates a short-named directory under /tmp for Unix
// domain sockets, which are limited to 108-byte paths and therefore
// cannot live under a deeply nested t.TempDir().
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// safety valve so tests never hang on a channel that is never fed.
// They are the only place tests use real wall-clock timeouts.
package testutil
