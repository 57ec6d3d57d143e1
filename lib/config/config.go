// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for gondolin.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// State is the base directory for runtime files (sockets, mounts).
	State string `yaml:"state"`

	Secrets SecretsConfig `yaml:"secrets"`
	Mounts  MountsConfig  `yaml:"mounts"`
	Egress  EgressConfig  `yaml:"egress"`
	Exec    ExecConfig    `yaml:"exec"`
	Metrics MetricsConfig `yaml:"metrics"`

	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Secrets *SecretsConfig `yaml:"secrets,omitempty"`
	Mounts  *MountsConfig  `yaml:"mounts,omitempty"`
	Egress  *EgressConfig  `yaml:"egress,omitempty"`
	Exec    *ExecConfig    `yaml:"exec,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// SecretsConfig locates the secrets definition file.
type SecretsConfig struct {
	// File is the secrets definition file, re-read on every access.
	// A ".age" suffix means the file is age-encrypted.
	File string `yaml:"file"`

	// IdentityFile is the age identity used to decrypt File. Required
	// only when File ends in ".age".
	IdentityFile string `yaml:"identity_file"`

	// PlaceholderPrefix prefixes every placeholder token.
	// Default: GONDOLIN_SECRET_
	PlaceholderPrefix string `yaml:"placeholder_prefix"`
}

// MountsConfig configures the synthetic read-only directories.
type MountsConfig struct {
	// SecretsDir is where the placeholder directory is mounted. Empty
	// disables the mount.
	SecretsDir string `yaml:"secrets_dir"`

	// EnvDir is where the environment directory is mounted. Empty
	// disables the mount.
	EnvDir string `yaml:"env_dir"`

	// AllowOther lets users other than the mounter (the guest's uid)
	// read the mounts. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool `yaml:"allow_other"`

	// EnvNames lists the host environment variables propagated into
	// EnvDir.
	EnvNames []string `yaml:"env_names"`

	// EnvAll propagates the whole host environment instead of EnvNames.
	EnvAll bool `yaml:"env_all"`
}

// EgressConfig configures the forward proxy guest HTTP traffic leaves
// through.
type EgressConfig struct {
	// ListenAddress is the proxy's TCP listen address. Empty disables
	// the proxy.
	ListenAddress string `yaml:"listen_address"`

	// AllowedHosts restricts destinations. Empty allows every host.
	AllowedHosts []string `yaml:"allowed_hosts"`

	// StaticSecretsFromStdin reads a CBOR static secret payload from
	// stdin at startup.
	StaticSecretsFromStdin bool `yaml:"static_secrets_from_stdin"`
}

// ExecConfig configures the remote exec client.
type ExecConfig struct {
	// SocketPath is the remote session host's Unix socket.
	SocketPath string `yaml:"socket_path"`

	// Timeout bounds each command, as a Go duration. "0" disables it.
	// Default: 10m
	Timeout string `yaml:"timeout"`

	// MaxOutputBytes caps buffered stdout+stderr per command.
	// Default: 64 MiB
	MaxOutputBytes int64 `yaml:"max_output_bytes"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// ListenAddress serves /metrics. Empty disables the endpoint.
	ListenAddress string `yaml:"listen_address"`
}

// Default returns the default configuration. The defaults give every
// field a sensible value; the config file is still required by Load.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultState := filepath.Join(homeDir, ".cache", "gondolin")

	return &Config{
		Environment: Development,
		State:       defaultState,
		Secrets: SecretsConfig{
			File:              "${GONDOLIN_STATE}/secrets",
			PlaceholderPrefix: "GONDOLIN_SECRET_",
		},
		Mounts: MountsConfig{
			AllowOther: true,
		},
		Egress: EgressConfig{
			ListenAddress: "127.0.0.1:8118",
		},
		Exec: ExecConfig{
			SocketPath:     "${GONDOLIN_STATE}/exec.sock",
			Timeout:        "10m",
			MaxOutputBytes: 64 << 20,
		},
	}
}

// Load loads configuration from the GONDOLIN_CONFIG environment
// variable. There is no fallback: if it is unset, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv("GONDOLIN_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("GONDOLIN_CONFIG environment variable not set; " +
			"set it to the path of your gondolin.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			c.Mounts.AllowOther = false
			if host, port, err := net.SplitHostPort(c.Egress.ListenAddress); err == nil && host == "" {
				c.Egress.ListenAddress = net.JoinHostPort("127.0.0.1", port)
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Secrets != nil {
		overrideString(&c.Secrets.File, overrides.Secrets.File)
		overrideString(&c.Secrets.IdentityFile, overrides.Secrets.IdentityFile)
		overrideString(&c.Secrets.PlaceholderPrefix, overrides.Secrets.PlaceholderPrefix)
	}

	if overrides.Mounts != nil {
		overrideString(&c.Mounts.SecretsDir, overrides.Mounts.SecretsDir)
		overrideString(&c.Mounts.EnvDir, overrides.Mounts.EnvDir)
		// Bools are always applied from an override section.
		c.Mounts.AllowOther = overrides.Mounts.AllowOther
		c.Mounts.EnvAll = overrides.Mounts.EnvAll
		if len(overrides.Mounts.EnvNames) > 0 {
			c.Mounts.EnvNames = overrides.Mounts.EnvNames
		}
	}

	if overrides.Egress != nil {
		overrideString(&c.Egress.ListenAddress, overrides.Egress.ListenAddress)
		if len(overrides.Egress.AllowedHosts) > 0 {
			c.Egress.AllowedHosts = overrides.Egress.AllowedHosts
		}
		c.Egress.StaticSecretsFromStdin = overrides.Egress.StaticSecretsFromStdin
	}

	if overrides.Exec != nil {
		overrideString(&c.Exec.SocketPath, overrides.Exec.SocketPath)
		overrideString(&c.Exec.Timeout, overrides.Exec.Timeout)
		if overrides.Exec.MaxOutputBytes > 0 {
			c.Exec.MaxOutputBytes = overrides.Exec.MaxOutputBytes
		}
	}

	if overrides.Metrics != nil {
		overrideString(&c.Metrics.ListenAddress, overrides.Metrics.ListenAddress)
	}
}

func overrideString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"GONDOLIN_STATE": c.State,
		"HOME":           os.Getenv("HOME"),
	}

	c.State = expandVars(c.State, vars)
	vars["GONDOLIN_STATE"] = c.State

	c.Secrets.File = expandVars(c.Secrets.File, vars)
	c.Secrets.IdentityFile = expandVars(c.Secrets.IdentityFile, vars)
	c.Mounts.SecretsDir = expandVars(c.Mounts.SecretsDir, vars)
	c.Mounts.EnvDir = expandVars(c.Mounts.EnvDir, vars)
	c.Exec.SocketPath = expandVars(c.Exec.SocketPath, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}, preferring vars over
// the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name := parts[1]
		defaultValue := parts[2]

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// ExecTimeout parses Exec.Timeout. Zero means no timeout.
func (c *Config) ExecTimeout() (time.Duration, error) {
	if c.Exec.Timeout == "" {
		return 0, nil
	}
	timeout, err := time.ParseDuration(c.Exec.Timeout)
	if err != nil {
		return 0, fmt.Errorf("exec.timeout: %w", err)
	}
	return timeout, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Secrets.File == "" {
		errs = append(errs, errors.New("secrets.file is required"))
	}
	if filepath.Ext(c.Secrets.File) == ".age" && c.Secrets.IdentityFile == "" {
		errs = append(errs, errors.New("secrets.identity_file is required for an age-encrypted secrets file"))
	}
	if c.Secrets.PlaceholderPrefix == "" {
		errs = append(errs, errors.New("secrets.placeholder_prefix is required"))
	}

	if c.Mounts.EnvAll && len(c.Mounts.EnvNames) > 0 {
		errs = append(errs, errors.New("mounts.env_all and mounts.env_names are mutually exclusive"))
	}
	if c.Mounts.SecretsDir != "" && c.Mounts.SecretsDir == c.Mounts.EnvDir {
		errs = append(errs, errors.New("mounts.secrets_dir and mounts.env_dir must differ"))
	}

	if c.Egress.ListenAddress != "" {
		if _, _, err := net.SplitHostPort(c.Egress.ListenAddress); err != nil {
			errs = append(errs, fmt.Errorf("egress.listen_address: %w", err))
		}
	}
	if c.Metrics.ListenAddress != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.ListenAddress); err != nil {
			errs = append(errs, fmt.Errorf("metrics.listen_address: %w", err))
		}
	}

	if timeout, err := c.ExecTimeout(); err != nil {
		errs = append(errs, err)
	} else if timeout < 0 {
		errs = append(errs, errors.New("exec.timeout must not be negative"))
	}
	if c.Exec.MaxOutputBytes < 0 {
		errs = append(errs, errors.New("exec.max_output_bytes must not be negative"))
	}

	return errors.Join(errs...)
}
