// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Gondolin-secrets runs the host side of a guest session's secret
// handling: the placeholder mounts the guest reads secrets from, the
// host environment mount, and the egress proxy that swaps placeholders
// for real values on the way out.
//
// The guest never sees a real secret value. It reads placeholder
// tokens from the secrets mount and sends them in HTTP headers; the
// proxy substitutes the real value only when the destination host is
// allowed for that secret, and blocks any request that already carries
// a real value.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/gondolin/egress"
	"github.com/bureau-foundation/gondolin/lib/config"
	"github.com/bureau-foundation/gondolin/lib/metrics"
	"github.com/bureau-foundation/gondolin/lib/process"
	"github.com/bureau-foundation/gondolin/lib/sealed"
	"github.com/bureau-foundation/gondolin/lib/secret"
	"github.com/bureau-foundation/gondolin/lib/version"
	"github.com/bureau-foundation/gondolin/secrets"
	"github.com/bureau-foundation/gondolin/vfs"
	vfsfuse "github.com/bureau-foundation/gondolin/vfs/fuse"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var configPath string
	var debug bool
	var showVersion bool

	flagSet := pflag.NewFlagSet("gondolin-secrets", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to gondolin.yaml (default: $GONDOLIN_CONFIG)")
	flagSet.BoolVar(&debug, "debug", false, "enable debug logging")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		version.Print("gondolin-secrets")
		return nil
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Info("starting gondolin-secrets",
		"version", version.Info(),
		"environment", cfg.Environment,
		"secrets_file", cfg.Secrets.File,
	)

	collector := metrics.NewCollector()

	var identity *secret.Buffer
	if cfg.Secrets.IdentityFile != "" {
		identity, err = sealed.ReadIdentityFile(cfg.Secrets.IdentityFile)
		if err != nil {
			return fmt.Errorf("reading age identity: %w", err)
		}
		defer identity.Close()
	}

	source := &secrets.FileSource{
		Path:     cfg.Secrets.File,
		Identity: identity,
		Logger:   logger,
		Metrics:  collector,
	}
	registry := secrets.NewRegistry(secrets.RegistryConfig{
		Prefix: cfg.Secrets.PlaceholderPrefix,
		Logger: logger,
	})

	var static []egress.StaticSecret
	if cfg.Egress.StaticSecretsFromStdin {
		static, err = egress.ReadStaticSecrets(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading static secrets from stdin: %w", err)
		}
		defer egress.CloseStaticSecrets(static)
		logger.Info("loaded static secrets", "count", len(static))
	}

	interceptor, err := egress.New(egress.Config{
		AllowedHosts: cfg.Egress.AllowedHosts,
		Source:       source,
		Static:       static,
		Registry:     registry,
		Logger:       logger,
		Metrics:      collector,
	})
	if err != nil {
		return fmt.Errorf("creating egress interceptor: %w", err)
	}

	var servers []*fuse.Server
	defer func() {
		for _, server := range servers {
			if err := server.Unmount(); err != nil {
				logger.Error("unmounting", "error", err)
			}
		}
	}()

	if cfg.Mounts.SecretsDir != "" {
		directory, err := vfs.NewSecretsDirectory(vfs.SecretsDirectoryConfig{
			Source:      source,
			StaticNames: interceptor.StaticNames(),
			Registry:    registry,
			Logger:      logger,
		})
		if err != nil {
			return fmt.Errorf("creating secrets directory: %w", err)
		}
		server, err := vfsfuse.Mount(vfsfuse.Options{
			Mountpoint: cfg.Mounts.SecretsDir,
			Directory:  directory,
			Name:       "gondolin-secrets",
			AllowOther: cfg.Mounts.AllowOther,
			Logger:     logger,
		})
		if err != nil {
			return fmt.Errorf("mounting secrets directory: %w", err)
		}
		servers = append(servers, server)
		logger.Info("secrets directory mounted", "mountpoint", cfg.Mounts.SecretsDir)
	}

	if cfg.Mounts.EnvDir != "" {
		directory, err := vfs.NewEnvironmentDirectory(vfs.EnvironmentDirectoryConfig{
			Names:             cfg.Mounts.EnvNames,
			All:               cfg.Mounts.EnvAll,
			Secrets:           source,
			StaticSecretNames: interceptor.StaticNames(),
			Logger:            logger,
		})
		if err != nil {
			return fmt.Errorf("creating environment directory: %w", err)
		}
		server, err := vfsfuse.Mount(vfsfuse.Options{
			Mountpoint: cfg.Mounts.EnvDir,
			Directory:  directory,
			Name:       "gondolin-env",
			AllowOther: cfg.Mounts.AllowOther,
			Logger:     logger,
		})
		if err != nil {
			return fmt.Errorf("mounting environment directory: %w", err)
		}
		servers = append(servers, server)
		logger.Info("environment directory mounted", "mountpoint", cfg.Mounts.EnvDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var httpServers []*http.Server
	serveErrors := make(chan error, 2)

	if cfg.Egress.ListenAddress != "" {
		proxy, err := egress.NewProxy(egress.ProxyConfig{
			Interceptor: interceptor,
			Logger:      logger,
		})
		if err != nil {
			return fmt.Errorf("creating egress proxy: %w", err)
		}
		server, err := listenAndServe(cfg.Egress.ListenAddress, proxy, serveErrors)
		if err != nil {
			return fmt.Errorf("starting egress proxy: %w", err)
		}
		httpServers = append(httpServers, server)
		logger.Info("egress proxy listening", "address", cfg.Egress.ListenAddress)
	}

	if cfg.Metrics.ListenAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		server, err := listenAndServe(cfg.Metrics.ListenAddress, mux, serveErrors)
		if err != nil {
			return fmt.Errorf("starting metrics endpoint: %w", err)
		}
		httpServers = append(httpServers, server)
		logger.Info("metrics listening", "address", cfg.Metrics.ListenAddress)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case runErr = <-serveErrors:
		logger.Error("server failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, server := range httpServers {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown error", "address", server.Addr, "error", err)
		}
	}

	logger.Info("shutdown complete")
	return runErr
}

// listenAndServe binds address synchronously so a bad address fails
// startup, then serves in the background. Serve errors other than a
// clean shutdown are sent to errs.
func listenAndServe(address string, handler http.Handler, errs chan<- error) (*http.Server, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	server := &http.Server{
		Addr:              address,
		Handler:           handler,
		ReadHeaderTimeout: 30 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("serving %s: %w", address, err)
		}
	}()
	return server, nil
}
