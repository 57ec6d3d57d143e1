// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remoteexec

import (
	"slices"
	"testing"
)

func TestApplyDefaultShims(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		args     []string
		env      []string
		wantCmd  string
		wantArgs []string
		wantEnv  []string
	}{
		{
			name:     "bash login command",
			command:  "bash",
			args:     []string{"-lc", "echo hi"},
			wantCmd:  "/bin/sh",
			wantArgs: []string{"-c", "echo hi"},
			wantEnv:  []string{"PATH=" + DefaultPath},
		},
		{
			name:     "split login flags",
			command:  "/bin/bash",
			args:     []string{"-l", "-c", "ls"},
			env:      []string{"HOME=/root"},
			wantCmd:  "/bin/sh",
			wantArgs: []string{"-c", "ls"},
			wantEnv:  []string{"HOME=/root", "PATH=" + DefaultPath},
		},
		{
			name:     "long login flag",
			command:  "/usr/bin/bash",
			args:     []string{"--login", "-c", "ls"},
			wantCmd:  "/bin/sh",
			wantArgs: []string{"-c", "ls"},
			wantEnv:  []string{"PATH=" + DefaultPath},
		},
		{
			name:     "caller path kept",
			command:  "bash",
			args:     []string{"-lc", "ls"},
			env:      []string{"PATH=/opt/bin"},
			wantCmd:  "/bin/sh",
			wantArgs: []string{"-c", "ls"},
			wantEnv:  []string{"PATH=/opt/bin"},
		},
		{
			name:     "non-login bash untouched",
			command:  "bash",
			args:     []string{"-c", "[[ -n $BASH_VERSION ]] && echo bash"},
			wantCmd:  "bash",
			wantArgs: []string{"-c", "[[ -n $BASH_VERSION ]] && echo bash"},
		},
		{
			name:     "bash script untouched",
			command:  "/bin/bash",
			args:     []string{"build.sh", "-l"},
			wantCmd:  "/bin/bash",
			wantArgs: []string{"build.sh", "-l"},
		},
		{
			name:     "bare login shell",
			command:  "bash",
			args:     []string{"--login"},
			wantCmd:  "/bin/sh",
			wantArgs: []string{},
			wantEnv:  []string{"PATH=" + DefaultPath},
		},
		{
			name:     "other command untouched",
			command:  "/usr/bin/python3",
			args:     []string{"-lc"},
			wantCmd:  "/usr/bin/python3",
			wantArgs: []string{"-lc"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			command, args, env := applyShims(DefaultShellShims, test.command, test.args, test.env)
			if command != test.wantCmd {
				t.Errorf("command = %q, want %q", command, test.wantCmd)
			}
			if !slices.Equal(args, test.wantArgs) {
				t.Errorf("args = %q, want %q", args, test.wantArgs)
			}
			if !slices.Equal(env, test.wantEnv) {
				t.Errorf("env = %q, want %q", env, test.wantEnv)
			}
		})
	}
}

func TestApplyShimsDoesNotModifyInput(t *testing.T) {
	args := []string{"-lc", "true"}
	env := []string{"HOME=/root"}
	applyShims(DefaultShellShims, "bash", args, env)
	if !slices.Equal(args, []string{"-lc", "true"}) {
		t.Errorf("args modified: %q", args)
	}
	if !slices.Equal(env, []string{"HOME=/root"}) {
		t.Errorf("env modified: %q", env)
	}
}

func TestApplyShimsEmptyTable(t *testing.T) {
	command, args, _ := applyShims(nil, "bash", []string{"-lc", "true"}, nil)
	if command != "bash" || !slices.Equal(args, []string{"-lc", "true"}) {
		t.Errorf("applyShims(nil) = %q %q, want unchanged", command, args)
	}
}

func TestApplyShimsWithoutLoginOnly(t *testing.T) {
	shims := []ShellShim{{
		From:         []string{"python"},
		To:           "/usr/bin/python3",
		FlagRewrites: []FlagRewrite{{From: []string{"-3"}, To: nil}},
	}}

	command, args, env := applyShims(shims, "python", []string{"script.py"}, nil)
	if command != "/usr/bin/python3" || !slices.Equal(args, []string{"script.py"}) {
		t.Errorf("applyShims = %q %q, want /usr/bin/python3 [script.py]", command, args)
	}
	if len(env) != 0 {
		t.Errorf("env = %q, want none injected", env)
	}
}
