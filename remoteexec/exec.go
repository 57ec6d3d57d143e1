// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remoteexec

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/bureau-foundation/gondolin/lib/clock"
	"github.com/bureau-foundation/gondolin/lib/metrics"
)

var (
	// ErrConnectionClosed rejects every pending execution when the
	// transport fails or the client is closed, and any new Exec on a
	// Closed client.
	ErrConnectionClosed = errors.New("remoteexec: connection closed")

	// ErrTimeout rejects an execution whose timeout elapsed.
	ErrTimeout = errors.New("remoteexec: execution timed out")

	// ErrOutputLimitExceeded rejects an execution whose buffered
	// output passed the client's MaxOutputBytes.
	ErrOutputLimitExceeded = errors.New("remoteexec: output limit exceeded")
)

// ExecOptions configures one execution.
type ExecOptions struct {
	// Args are the arguments after the command.
	Args []string

	// Env is KEY=VALUE pairs for the remote process.
	Env []string

	// Cwd is the remote working directory.
	Cwd string

	// Timeout rejects the execution once elapsed. Zero uses the
	// client's default; negative disables it.
	Timeout time.Duration
}

// ExecResult is the final state of a completed execution.
type ExecResult struct {
	ExitCode int32

	// Signal is the terminating signal when HasSignal is set.
	Signal    int32
	HasSignal bool

	// OK is ExitCode == 0 && !HasSignal.
	OK bool

	Stdout []byte
	Stderr []byte
}

// Exec is one execution in flight or finished.
type Exec struct {
	id      uint32
	stdout  *stream
	stderr  *stream
	metrics *metrics.Collector

	// maxOutput bounds buffered bytes; zero is unlimited.
	maxOutput int64

	mu       sync.Mutex
	buffered int64
	timer    *clock.Timer
	stopCtx  func() bool
	finished bool

	once   sync.Once
	done   chan struct{}
	result ExecResult
	err    error
}

func newExec(id uint32, maxOutput int64, collector *metrics.Collector) *Exec {
	return &Exec{
		id:        id,
		stdout:    newStream(),
		stderr:    newStream(),
		metrics:   collector,
		maxOutput: maxOutput,
		done:      make(chan struct{}),
	}
}

// ID returns the session id on the connection.
func (e *Exec) ID() uint32 { return e.id }

// Done is closed once the execution has a result or an error.
func (e *Exec) Done() <-chan struct{} { return e.done }

// Wait blocks until the execution finishes or ctx is done. A done ctx
// only stops the wait; the execution continues.
func (e *Exec) Wait(ctx context.Context) (ExecResult, error) {
	select {
	case <-e.done:
		return e.result, e.err
	case <-ctx.Done():
		return ExecResult{}, ctx.Err()
	}
}

// Output returns a reader over stdout from the start of the execution.
// It ends with io.EOF once the execution completes and every byte has
// been read, or with the execution's error if it was rejected.
func (e *Exec) Output() io.ReadCloser { return e.stdout.reader() }

// Stderr is Output for stderr.
func (e *Exec) Stderr() io.ReadCloser { return e.stderr.reader() }

// appendFrame routes a payload to its stream, enforcing the output cap.
func (e *Exec) appendFrame(channel Channel, payload []byte) error {
	e.mu.Lock()
	if e.maxOutput > 0 && e.buffered+int64(len(payload)) > e.maxOutput {
		e.mu.Unlock()
		return ErrOutputLimitExceeded
	}
	e.buffered += int64(len(payload))
	e.mu.Unlock()

	e.metrics.ExecOutputBuffered(len(payload))
	if channel == ChannelStderr {
		e.stderr.append(payload)
	} else {
		e.stdout.append(payload)
	}
	return nil
}

// setCancellation attaches the timeout and context hooks. If the
// execution already finished they are stopped immediately.
func (e *Exec) setCancellation(timer *clock.Timer, stopCtx func() bool) {
	e.mu.Lock()
	finished := e.finished
	if !finished {
		e.timer = timer
		e.stopCtx = stopCtx
	}
	e.mu.Unlock()
	if finished {
		if timer != nil {
			timer.Stop()
		}
		if stopCtx != nil {
			stopCtx()
		}
	}
}

// finish records the outcome once. Streams close after the result is
// set, so a reader woken by the close always finds the result ready.
func (e *Exec) finish(result ExecResult, err error) {
	e.once.Do(func() {
		e.mu.Lock()
		timer, stopCtx, buffered := e.timer, e.stopCtx, e.buffered
		e.timer, e.stopCtx = nil, nil
		e.finished = true
		e.mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		if stopCtx != nil {
			stopCtx()
		}

		if err == nil {
			result.OK = result.ExitCode == 0 && !result.HasSignal
			result.Stdout = e.stdout.bytes()
			result.Stderr = e.stderr.bytes()
		}
		e.result = result
		e.err = err
		e.metrics.ExecSessionFinished(outcome(result, err), int(buffered))

		e.stdout.close(err)
		e.stderr.close(err)
		close(e.done)
	})
}

func outcome(result ExecResult, err error) string {
	var execErr *ExecError
	switch {
	case err == nil && result.OK:
		return "ok"
	case err == nil:
		return "failed"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrConnectionClosed):
		return "connection_closed"
	case errors.Is(err, ErrOutputLimitExceeded):
		return "output_limit"
	case errors.As(err, &execErr):
		return "remote_error"
	default:
		return "error"
	}
}
