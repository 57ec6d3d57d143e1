// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics holds the Prometheus instruments shared by the
// secrets, egress, and remote exec layers. Every [Collector] owns a
// private registry; nothing registers on the global default.
//
// All recording methods accept a nil *Collector and do nothing, so
// components take an optional Metrics field without guarding each call.
package metrics
