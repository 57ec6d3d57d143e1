// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package remoteexec runs commands in a remote guest session over one
// long-lived socket connection, multiplexing any number of concurrent
// executions.
//
// The connection is a WebSocket over a Unix-domain socket. Text
// messages carry JSON control messages:
//
//	→ {"type":"exec","id":1,"cmd":"/bin/sh","argv":["-c","ls"],"stdin":false,"pty":false}
//	← {"type":"exec_response","id":1,"exit_code":0}
//	← {"type":"error","id":1,"code":"spawn_failed","message":"..."}
//	← {"type":"status","state":"ready"}
//
// Binary messages carry output frames (see [Frame]): a channel byte
// (1 stdout, 2 stderr), a big-endian uint32 session id, then payload.
// Frames for different sessions interleave freely; within a session
// they arrive in order.
//
// [Client] follows the state machine Disconnected → Connecting →
// Connected → Closed. Messages issued before the connection is up are
// queued and flushed in order. A transport failure rejects every
// pending execution with [ErrConnectionClosed] and leaves the client
// Closed until [Client.Connect] is called again.
//
// [Client.Exec] returns an [*Exec]: [Exec.Wait] yields the
// [ExecResult], and [Exec.Output] / [Exec.Stderr] return readers that
// replay a stream from its start and end once it is fully drained.
// Cancelling an execution's context or reaching its timeout rejects
// that execution only. The protocol has no kill message, so the remote
// process may keep running.
package remoteexec
