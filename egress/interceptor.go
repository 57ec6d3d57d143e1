// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package egress

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/bureau-foundation/gondolin/lib/metrics"
	"github.com/bureau-foundation/gondolin/lib/secret"
	"github.com/bureau-foundation/gondolin/secrets"
)

// BlockReason classifies a blocked request.
type BlockReason string

const (
	// ReasonHostNotAllowed: the destination is outside the global
	// allow-list.
	ReasonHostNotAllowed BlockReason = "host_not_allowed"

	// ReasonPlaceholder: a placeholder was bound for a host outside
	// its secret's hosts.
	ReasonPlaceholder BlockReason = "placeholder_not_allowed"

	// ReasonRawValue: a secret's real value was bound for a host
	// outside its hosts.
	ReasonRawValue BlockReason = "raw_value_not_allowed"
)

// BlockedError aborts a request. It names the secret and host, never
// the value or the token.
type BlockedError struct {
	Secret string
	Host   string
	Reason BlockReason
}

func (e *BlockedError) Error() string {
	switch e.Reason {
	case ReasonHostNotAllowed:
		return fmt.Sprintf("egress to %s is not allowed", e.Host)
	case ReasonRawValue:
		return fmt.Sprintf("value of secret %s may not be sent to %s", e.Secret, e.Host)
	default:
		return fmt.Sprintf("secret %s may not be sent to %s", e.Secret, e.Host)
	}
}

// RequestInfo describes a connection the guest is opening.
type RequestInfo struct {
	Hostname string
	IP       net.IP
	Port     int
	Protocol string
}

// Request is the head of an outbound HTTP request.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
}

// StaticSecret is a secret fixed at startup rather than read from the
// secrets file.
type StaticSecret struct {
	Name  string
	Hosts []string
	Value *secret.Buffer
}

// Config configures an Interceptor.
type Config struct {
	// AllowedHosts restricts every destination. Empty allows all.
	AllowedHosts []string

	// Source supplies dynamic secrets, re-read on every request. May
	// be nil when only static secrets are used.
	Source secrets.Source

	// Static secrets take precedence over dynamic ones of the same
	// name. The Interceptor borrows the buffers; the caller closes
	// them.
	Static []StaticSecret

	// Registry maps names to the placeholders the guest was given.
	// Required.
	Registry *secrets.Registry

	Logger  *slog.Logger
	Metrics *metrics.Collector
}

// Interceptor implements the egress hooks. It is safe for concurrent
// use.
type Interceptor struct {
	allowedHosts []string
	source       secrets.Source
	static       []StaticSecret
	registry     *secrets.Registry
	logger       *slog.Logger
	metrics      *metrics.Collector
}

// New creates an Interceptor.
func New(config Config) (*Interceptor, error) {
	if config.Registry == nil {
		return nil, fmt.Errorf("placeholder registry is required")
	}
	for _, static := range config.Static {
		if !secrets.IsValidName(static.Name) {
			return nil, fmt.Errorf("static secret has invalid name %q", static.Name)
		}
		if len(static.Hosts) == 0 {
			return nil, fmt.Errorf("static secret %s has no hosts", static.Name)
		}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Interceptor{
		allowedHosts: config.AllowedHosts,
		source:       config.Source,
		static:       config.Static,
		registry:     config.Registry,
		logger:       config.Logger,
		metrics:      config.Metrics,
	}, nil
}

// StaticNames returns the names of the static secrets.
func (i *Interceptor) StaticNames() []string {
	names := make([]string, len(i.static))
	for index, static := range i.static {
		names[index] = static.Name
	}
	return names
}

// IsIPAllowed reports whether the guest may connect to info's host.
func (i *Interceptor) IsIPAllowed(info RequestInfo) bool {
	if len(i.allowedHosts) == 0 {
		return true
	}
	hostname := info.Hostname
	if hostname == "" && info.IP != nil {
		hostname = info.IP.String()
	}
	allowed := secrets.MatchAny(i.allowedHosts, hostname)
	if !allowed {
		i.logger.Warn("egress destination not allowed",
			"host", hostname,
			"port", info.Port,
			"protocol", info.Protocol,
		)
		i.metrics.RecordEgress(string(ReasonHostNotAllowed))
	}
	return allowed
}

// liveSecret is one secret resolved for a single request.
type liveSecret struct {
	name  string
	hosts []string
	value string
	// token is empty when no placeholder was ever issued.
	token string
}

func (s *liveSecret) allows(host string) bool {
	return secrets.MatchAny(s.hosts, host)
}

// OnRequestHead returns a copy of request with placeholders replaced
// by live values, or a *BlockedError. The input is not modified.
func (i *Interceptor) OnRequestHead(request *Request) (*Request, error) {
	if request.URL == nil {
		return nil, fmt.Errorf("request has no URL")
	}
	host := strings.ToLower(request.URL.Hostname())

	live, err := i.liveSecrets()
	if err != nil {
		i.metrics.RecordEgress("secrets_unavailable")
		return nil, err
	}

	header := make(http.Header, len(request.Header))
	for key, values := range request.Header {
		rewritten := make([]string, len(values))
		for index, value := range values {
			rewritten[index], err = i.rewriteValue(key, value, host, live)
			if err != nil {
				return nil, i.blocked(err)
			}
		}
		header[key] = rewritten
	}

	i.metrics.RecordEgress("")
	return &Request{Method: request.Method, URL: request.URL, Header: header}, nil
}

func (i *Interceptor) blocked(err error) error {
	var blockedErr *BlockedError
	if errors.As(err, &blockedErr) {
		i.logger.Warn("egress request blocked",
			"secret", blockedErr.Secret,
			"host", blockedErr.Host,
			"reason", string(blockedErr.Reason),
		)
		i.metrics.RecordEgress(string(blockedErr.Reason))
	}
	return err
}

// liveSecrets resolves every static and dynamic secret for one
// request.
func (i *Interceptor) liveSecrets() ([]liveSecret, error) {
	placeholders := i.registry.Placeholders()

	live := make([]liveSecret, 0, len(i.static))
	staticNames := make(map[string]bool, len(i.static))
	for _, static := range i.static {
		staticNames[static.Name] = true
		value := ""
		if static.Value != nil {
			value = static.Value.String()
		}
		live = append(live, liveSecret{
			name:  static.Name,
			hosts: static.Hosts,
			value: value,
			token: placeholders[static.Name],
		})
	}

	if i.source == nil {
		return live, nil
	}
	entries, err := i.source.Entries()
	if err != nil {
		return nil, fmt.Errorf("reading secrets: %w", err)
	}
	for _, entry := range entries {
		if staticNames[entry.Name] {
			i.logger.Warn("dynamic secret shadowed by static secret of the same name",
				"secret", entry.Name)
			continue
		}
		live = append(live, liveSecret{
			name:  entry.Name,
			hosts: entry.Hosts,
			value: i.registry.Resolve(entry),
			token: placeholders[entry.Name],
		})
	}
	return live, nil
}

// rewriteValue checks one header value and substitutes placeholders.
func (i *Interceptor) rewriteValue(key, value, host string, live []liveSecret) (string, error) {
	if http.CanonicalHeaderKey(key) == "Authorization" {
		if rewritten, ok, err := i.rewriteBasic(value, host, live); ok || err != nil {
			return rewritten, err
		}
	}
	return i.substitute(value, host, live)
}

// rewriteBasic handles "Basic <base64(user:pass)>". ok is false when
// value is not a decodable Basic credential.
func (i *Interceptor) rewriteBasic(value, host string, live []liveSecret) (rewritten string, ok bool, err error) {
	scheme, encoded, found := strings.Cut(value, " ")
	if !found || !strings.EqualFold(scheme, "Basic") {
		return "", false, nil
	}
	decoded, decodeErr := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if decodeErr != nil {
		return "", false, nil
	}
	defer secret.Zero(decoded)

	// The header as sent is scanned as well as the decoded payload.
	if _, err := i.substitute(value, host, live); err != nil {
		return "", true, err
	}
	substituted, err := i.substitute(string(decoded), host, live)
	if err != nil {
		return "", true, err
	}
	return scheme + " " + base64.StdEncoding.EncodeToString([]byte(substituted)), true, nil
}

// substitute scans value for raw secret values, then replaces
// placeholders. Both checks run against the original value.
func (i *Interceptor) substitute(value, host string, live []liveSecret) (string, error) {
	for index := range live {
		candidate := &live[index]
		if candidate.value != "" && strings.Contains(value, candidate.value) && !candidate.allows(host) {
			return "", &BlockedError{Secret: candidate.name, Host: host, Reason: ReasonRawValue}
		}
	}

	result := value
	for index := range live {
		candidate := &live[index]
		if candidate.token == "" || !strings.Contains(value, candidate.token) {
			continue
		}
		if !candidate.allows(host) {
			return "", &BlockedError{Secret: candidate.name, Host: host, Reason: ReasonPlaceholder}
		}
		result = strings.ReplaceAll(result, candidate.token, candidate.value)
		i.logger.Debug("secret substituted",
			"secret", candidate.name,
			"host", host,
			"fingerprint", secret.Fingerprint([]byte(candidate.value)),
		)
	}
	return result, nil
}
