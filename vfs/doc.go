// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package vfs exposes secrets and host environment data to a guest as
// flat, synthetic, read-only directories.
//
// [ReadOnlyDirectory] is the capability every variant implements:
// stat, lstat, readdir, and open for reading succeed; every mutation
// fails with EROFS; unknown names fail with ENOENT. Errors are
// *fs.PathError values carrying the errno, so errors.Is(err,
// fs.ErrNotExist) works and a filesystem adapter can return the errno
// unchanged.
//
// [SecretsDirectory] serves one file per secret whose content is the
// secret's placeholder token, never its value. [EnvironmentDirectory]
// serves raw host environment values for non-secret names. Both
// recompute their listing from the live secrets source on every call.
//
// The directories are mounted once each. Package vfs/fuse mounts any
// ReadOnlyDirectory through FUSE.
package vfs
