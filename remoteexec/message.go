// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remoteexec

import "fmt"

// Control message types.
const (
	MessageExec         = "exec"
	MessageExecResponse = "exec_response"
	MessageError        = "error"
	MessageStatus       = "status"
)

// ExecMessage starts a command. Argv holds the arguments after Cmd.
// Stdin and PTY are always false: output is streamed, input is not.
type ExecMessage struct {
	Type  string   `json:"type"`
	ID    uint32   `json:"id"`
	Cmd   string   `json:"cmd"`
	Argv  []string `json:"argv,omitempty"`
	Env   []string `json:"env,omitempty"`
	Cwd   string   `json:"cwd,omitempty"`
	Stdin bool     `json:"stdin"`
	PTY   bool     `json:"pty"`
}

// ExecResponseMessage reports a command's exit.
type ExecResponseMessage struct {
	Type     string `json:"type"`
	ID       uint32 `json:"id"`
	ExitCode int32  `json:"exit_code"`
	Signal   *int32 `json:"signal,omitempty"`
}

// ErrorMessage reports that a command failed to run. ID 0 refers to
// the connection rather than a session.
type ErrorMessage struct {
	Type    string `json:"type"`
	ID      uint32 `json:"id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusMessage reports the remote session host's state.
type StatusMessage struct {
	Type    string `json:"type"`
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

// inboundMessage is the union of every message the client receives.
type inboundMessage struct {
	Type     string `json:"type"`
	ID       uint32 `json:"id"`
	ExitCode int32  `json:"exit_code"`
	Signal   *int32 `json:"signal"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	State    string `json:"state"`
}

// ExecError is the rejection for a session the remote reported an
// error for.
type ExecError struct {
	Code    string
	Message string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("remote exec failed (%s): %s", e.Code, e.Message)
}
