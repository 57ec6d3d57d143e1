// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package egress

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ProxyConfig configures a Proxy.
type ProxyConfig struct {
	// Interceptor applies both egress hooks. Required.
	Interceptor *Interceptor

	// Transport sends rewritten requests upstream. Default: a clone of
	// http.DefaultTransport that ignores proxy environment variables.
	Transport http.RoundTripper

	Logger *slog.Logger
}

// Proxy is a plain-HTTP forward proxy for guest egress. The guest sets
// it as HTTP_PROXY; every request passes IsIPAllowed and
// OnRequestHead before it is forwarded. CONNECT is refused: this
// proxy does not intercept TLS, so it cannot see placeholders inside a
// tunnel.
type Proxy struct {
	interceptor *Interceptor
	transport   http.RoundTripper
	logger      *slog.Logger
}

// NewProxy creates a Proxy.
func NewProxy(config ProxyConfig) (*Proxy, error) {
	if config.Interceptor == nil {
		return nil, fmt.Errorf("interceptor is required")
	}
	if config.Transport == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = nil
		config.Transport = transport
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Proxy{
		interceptor: config.Interceptor,
		transport:   config.Transport,
		logger:      config.Logger,
	}, nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	if r.Method == http.MethodConnect {
		p.logger.Warn("egress CONNECT refused", "host", r.Host)
		http.Error(w, "CONNECT is not supported by this proxy", http.StatusMethodNotAllowed)
		return
	}
	if !r.URL.IsAbs() || r.URL.Hostname() == "" {
		http.Error(w, "proxy requests must use an absolute URL", http.StatusBadRequest)
		return
	}
	if r.URL.Scheme != "http" {
		http.Error(w, fmt.Sprintf("unsupported scheme %q", r.URL.Scheme), http.StatusBadRequest)
		return
	}

	info := RequestInfo{
		Hostname: r.URL.Hostname(),
		IP:       net.ParseIP(r.URL.Hostname()),
		Port:     urlPort(r.URL.Port(), 80),
		Protocol: "http",
	}
	if !p.interceptor.IsIPAllowed(info) {
		writeBlocked(w, &BlockedError{Host: info.Hostname, Reason: ReasonHostNotAllowed})
		return
	}

	header := make(http.Header, len(r.Header))
	connectionHeaders := connectionTokens(r.Header)
	for key, values := range r.Header {
		if isHopByHopHeader(key) || connectionHeaders[strings.ToLower(key)] {
			continue
		}
		header[key] = values
	}

	rewritten, err := p.interceptor.OnRequestHead(&Request{Method: r.Method, URL: r.URL, Header: header})
	if err != nil {
		var blockedErr *BlockedError
		if errors.As(err, &blockedErr) {
			writeBlocked(w, blockedErr)
			return
		}
		p.logger.Error("egress interception failed", "host", info.Hostname, "error", err)
		http.Error(w, "egress interception failed", http.StatusServiceUnavailable)
		return
	}

	upstreamRequest, err := http.NewRequestWithContext(r.Context(), r.Method, rewritten.URL.String(), r.Body)
	if err != nil {
		http.Error(w, "failed to create request", http.StatusInternalServerError)
		return
	}
	upstreamRequest.Header = rewritten.Header
	upstreamRequest.ContentLength = r.ContentLength

	response, err := p.transport.RoundTrip(upstreamRequest)
	if err != nil {
		p.logger.Warn("upstream request failed",
			"host", info.Hostname,
			"error", err,
			"duration", time.Since(startTime),
		)
		http.Error(w, "upstream request failed", http.StatusBadGateway)
		return
	}
	defer response.Body.Close()

	responseConnectionHeaders := connectionTokens(response.Header)
	for key, values := range response.Header {
		if isHopByHopHeader(key) || responseConnectionHeaders[strings.ToLower(key)] {
			continue
		}
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(response.StatusCode)
	bytesCopied, _ := io.Copy(w, response.Body)

	p.logger.Info("egress request complete",
		"method", r.Method,
		"host", info.Hostname,
		"status", response.StatusCode,
		"bytes", bytesCopied,
		"duration", time.Since(startTime),
	)
}

func writeBlocked(w http.ResponseWriter, blockedErr *BlockedError) {
	http.Error(w, "request blocked: "+blockedErr.Error(), http.StatusForbidden)
}

func urlPort(port string, fallback int) int {
	if port == "" {
		return fallback
	}
	value, err := strconv.Atoi(port)
	if err != nil {
		return fallback
	}
	return value
}

var hopByHopHeaders = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"proxy-connection":    true,
	"te":                  true,
	"trailer":             true,
	"transfer-encoding":   true,
	"upgrade":             true,
}

func isHopByHopHeader(name string) bool {
	return hopByHopHeaders[strings.ToLower(name)]
}

// connectionTokens returns the headers named in Connection, which are
// hop-by-hop for this message only.
func connectionTokens(header http.Header) map[string]bool {
	tokens := make(map[string]bool)
	for _, value := range header.Values("Connection") {
		for _, token := range strings.Split(value, ",") {
			if token = strings.TrimSpace(token); token != "" {
				tokens[strings.ToLower(token)] = true
			}
		}
	}
	return tokens
}
