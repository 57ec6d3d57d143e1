// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secrets parses secret definitions and maps secret names to
// opaque placeholder tokens.
//
// A secrets file holds one definition per line:
//
//	# comment
//	GITHUB_TOKEN@api.github.com,*.githubusercontent.com
//	OPENAI_KEY@api.openai.com=sk-literal-value
//
// The name before the first "@" is the secret's name and, when no
// literal value follows the first "=", the host environment variable
// its live value is read from. The comma-separated hosts are wildcard
// patterns (see [MatchHost]) naming the destinations allowed to
// receive the real value.
//
// The file is re-read on every access through a [Source]; nothing
// caches parsed entries, so secrets and their hosts change without a
// restart. A [Registry] binds each name to one random placeholder for
// its lifetime. The guest only ever sees placeholders; the egress
// layer swaps them for the value resolved by [Registry.Resolve] at
// the moment a request leaves for an allowed host.
package secrets
