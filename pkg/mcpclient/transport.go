package mcpclient

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	stdioPrefix = "stdio://"
	ssePrefix   = "sse://"
)

// BuildTransport turns an endpoint spec into an MCP transport:
//
//	stdio://cmd args         subprocess over stdin/stdout
//	sse://host/path          SSE, https assumed
//	http+sse://host/path     SSE
//	http+stream://host/path  streamable HTTP
//	http(s)://host/path      SSE, or streamable HTTP when the path ends in /mcp
//	anything else            a command line
func BuildTransport(_ context.Context, spec string) (mcpsdk.Transport, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("mcp transport: endpoint is empty")
	}
	lowered := strings.ToLower(spec)
	switch {
	case strings.HasPrefix(lowered, stdioPrefix):
		return commandTransport(spec[len(stdioPrefix):])
	case strings.HasPrefix(lowered, ssePrefix):
		endpoint, err := normalizeURL(spec[len(ssePrefix):], true)
		if err != nil {
			return nil, fmt.Errorf("mcp transport: invalid SSE endpoint: %w", err)
		}
		return &mcpsdk.SSEClientTransport{Endpoint: endpoint}, nil
	}

	if u, err := url.Parse(spec); err == nil && u.Scheme != "" {
		base, hint, hasHint := strings.Cut(strings.ToLower(u.Scheme), "+")
		if base == "http" || base == "https" {
			plain := *u
			plain.Scheme = base
			endpoint, err := normalizeURL(plain.String(), false)
			if err != nil {
				return nil, fmt.Errorf("mcp transport: invalid endpoint: %w", err)
			}
			switch {
			case !hasHint && strings.HasSuffix(strings.TrimRight(u.Path, "/"), "/mcp"):
				return &mcpsdk.StreamableClientTransport{Endpoint: endpoint}, nil
			case !hasHint || hint == "sse":
				return &mcpsdk.SSEClientTransport{Endpoint: endpoint}, nil
			case hint == "stream" || hint == "streamable" || hint == "http":
				return &mcpsdk.StreamableClientTransport{Endpoint: endpoint}, nil
			default:
				return nil, fmt.Errorf("mcp transport: unsupported hint %q", hint)
			}
		}
	}
	return commandTransport(spec)
}

// commandTransport starts the server outside any call's context; closing
// the session ends the process.
func commandTransport(cmdline string) (mcpsdk.Transport, error) {
	parts := strings.Fields(cmdline)
	if len(parts) == 0 {
		return nil, fmt.Errorf("mcp transport: stdio command is empty")
	}
	// #nosec G204 -- the command comes from operator config
	cmd := exec.Command(parts[0], parts[1:]...)
	return &mcpsdk.CommandTransport{Command: cmd}, nil
}

func normalizeURL(raw string, guessScheme bool) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("endpoint is empty")
	}
	if guessScheme && !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host")
	}
	u.Scheme = scheme
	return u.String(), nil
}
