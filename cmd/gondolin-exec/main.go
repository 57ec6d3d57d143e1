// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Gondolin-exec runs one command in a guest session and streams its
// output:
//
//	gondolin-exec [flags] -- command [args...]
//
// Stdout and stderr are copied as frames arrive. The process exits
// with the remote command's exit code, or 128+signal when the command
// was killed by a signal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/gondolin/lib/config"
	"github.com/bureau-foundation/gondolin/lib/process"
	"github.com/bureau-foundation/gondolin/lib/version"
	"github.com/bureau-foundation/gondolin/remoteexec"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		socketPath  string
		timeout     time.Duration
		env         []string
		cwd         string
		noShims     bool
		debug       bool
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("gondolin-exec", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to gondolin.yaml; supplies socket and timeout defaults")
	flagSet.StringVar(&socketPath, "socket", "", "guest exec socket (overrides config)")
	flagSet.DurationVar(&timeout, "timeout", 0, "command timeout (overrides config; negative disables)")
	flagSet.StringArrayVarP(&env, "env", "e", nil, "KEY=VALUE for the remote command (repeatable)")
	flagSet.StringVar(&cwd, "cwd", "", "remote working directory")
	flagSet.BoolVar(&noShims, "no-shims", false, "send the command as given, without shell rewriting")
	flagSet.BoolVar(&debug, "debug", false, "enable debug logging")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.SetInterspersed(false)
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		version.Print("gondolin-exec")
		return nil
	}

	args := flagSet.Args()
	if len(args) == 0 {
		return fmt.Errorf("usage: gondolin-exec [flags] -- command [args...]")
	}

	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	clientConfig := remoteexec.Config{
		SocketPath: socketPath,
		Logger:     logger,
	}
	if configPath != "" {
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		configTimeout, err := cfg.ExecTimeout()
		if err != nil {
			return err
		}
		if clientConfig.SocketPath == "" {
			clientConfig.SocketPath = cfg.Exec.SocketPath
		}
		clientConfig.DefaultTimeout = configTimeout
		clientConfig.MaxOutputBytes = cfg.Exec.MaxOutputBytes
	}
	if clientConfig.SocketPath == "" {
		return fmt.Errorf("--socket or --config is required")
	}
	if noShims {
		clientConfig.Shims = []remoteexec.ShellShim{}
	}

	client, err := remoteexec.NewClient(clientConfig)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to %s: %w", clientConfig.SocketPath, err)
	}

	exec, err := client.Exec(ctx, args[0], remoteexec.ExecOptions{
		Args:    args[1:],
		Env:     env,
		Cwd:     cwd,
		Timeout: timeout,
	})
	if err != nil {
		return err
	}

	var copies sync.WaitGroup
	copyStream := func(destination io.Writer, source io.ReadCloser) {
		defer copies.Done()
		defer source.Close()
		// The stream error repeats the execution error Wait returns.
		_, _ = io.Copy(destination, source)
	}
	copies.Add(2)
	go copyStream(os.Stdout, exec.Output())
	go copyStream(os.Stderr, exec.Stderr())

	<-exec.Done()
	copies.Wait()

	result, err := exec.Wait(context.Background())
	if err != nil {
		return err
	}
	switch {
	case result.HasSignal:
		return &process.ExitError{Code: 128 + int(result.Signal)}
	case result.ExitCode != 0:
		return &process.ExitError{Code: int(result.ExitCode)}
	}
	return nil
}
