// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the wall-clock operations gondolin depends
// on, so exec timeouts can be tested without sleeping. Production code
// takes [Real]; tests take [Fake] and call [FakeClock.Advance].
package clock
