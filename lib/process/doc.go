// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds entrypoint helpers for gondolin binaries: the
// raw stderr error report used before (or instead of) the structured
// logger, and exit-code propagation for commands that mirror a remote
// process's exit status.
package process
