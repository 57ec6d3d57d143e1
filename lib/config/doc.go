// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for gondolin
// binaries.
//
// Configuration is loaded from a single file specified by either the
// GONDOLIN_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search.
//
// The file may contain environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production defaults are stricter: FUSE
// mounts are not exposed to other users and the egress proxy only
// listens on loopback.
//
// Path fields support ${HOME}, ${GONDOLIN_STATE}, and ${VAR:-default}
// expansion after loading. Secret values never appear in this file:
// the secrets file holds definitions, and static secrets arrive on a
// pipe.
package config
