// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remoteexec

import "strings"

// DefaultPath is injected by the default shims when the caller sets no
// PATH.
const DefaultPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// FlagRewrite replaces a leading argument sequence.
type FlagRewrite struct {
	From []string
	To   []string
}

// ShellShim substitutes an interpreter the guest lacks with one it
// has. When the command matches From, it becomes To, the first
// matching FlagRewrite is applied to the leading arguments, and
// InjectPath is added to the environment if no PATH is set.
type ShellShim struct {
	From         []string
	To           string
	FlagRewrites []FlagRewrite
	InjectPath   string

	// LoginOnly restricts the shim to invocations whose leading
	// arguments match one of FlagRewrites. Other invocations of the
	// command are sent unchanged.
	LoginOnly bool
}

// DefaultShellShims map bash login shells onto the POSIX shell that
// minimal guest images ship. Non-login bash invocations such as
// "bash -c" pass through, since their scripts may use bash syntax.
var DefaultShellShims = []ShellShim{
	{
		From: []string{"bash", "/bin/bash", "/usr/bin/bash", "/usr/local/bin/bash"},
		To:   "/bin/sh",
		FlagRewrites: []FlagRewrite{
			{From: []string{"-lc"}, To: []string{"-c"}},
			{From: []string{"-l", "-c"}, To: []string{"-c"}},
			{From: []string{"--login", "-c"}, To: []string{"-c"}},
			{From: []string{"-l"}, To: nil},
			{From: []string{"--login"}, To: nil},
		},
		InjectPath: DefaultPath,
		LoginOnly:  true,
	},
}

// applyShims rewrites a command for the guest. The first shim that
// applies wins; the inputs are not modified.
func applyShims(shims []ShellShim, command string, args, env []string) (string, []string, []string) {
	for _, shim := range shims {
		if !containsString(shim.From, command) {
			continue
		}
		rewritten, matched := rewriteFlags(shim.FlagRewrites, args)
		if shim.LoginOnly && !matched {
			continue
		}
		return shim.To, rewritten, injectPath(env, shim.InjectPath)
	}
	return command, args, env
}

// rewriteFlags applies the first rewrite whose From prefixes args.
// matched reports whether one did.
func rewriteFlags(rewrites []FlagRewrite, args []string) (rewritten []string, matched bool) {
	for _, rewrite := range rewrites {
		if !hasPrefix(args, rewrite.From) {
			continue
		}
		rewritten = make([]string, 0, len(args)-len(rewrite.From)+len(rewrite.To))
		rewritten = append(rewritten, rewrite.To...)
		return append(rewritten, args[len(rewrite.From):]...), true
	}
	return args, false
}

func injectPath(env []string, path string) []string {
	if path == "" {
		return env
	}
	for _, pair := range env {
		if strings.HasPrefix(pair, "PATH=") {
			return env
		}
	}
	injected := make([]string, 0, len(env)+1)
	injected = append(injected, env...)
	return append(injected, "PATH="+path)
}

func hasPrefix(args, prefix []string) bool {
	if len(prefix) == 0 || len(args) < len(prefix) {
		return false
	}
	for index := range prefix {
		if args[index] != prefix[index] {
			return false
		}
	}
	return true
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
