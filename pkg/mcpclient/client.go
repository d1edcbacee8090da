// Package mcpclient exposes an MCP server as the chat tool provider.
package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harunnryd/mcpchat/pkg/errorsx"
	"github.com/harunnryd/mcpchat/pkg/llm"
	"github.com/harunnryd/mcpchat/pkg/resilience"
	"github.com/harunnryd/mcpchat/pkg/value"
)

type Config struct {
	Endpoint       string
	ConnectRetries int
	RetryBackoff   time.Duration
	ClientName     string
	ClientVersion  string
}

// Client connects lazily and reconnects on the next call after a failed
// session.
type Client struct {
	cfg       Config
	impl      *mcpsdk.Client
	transport func(ctx context.Context, spec string) (mcpsdk.Transport, error)
	retry     resilience.RetryPolicy
	logger    *slog.Logger

	mu      sync.Mutex
	session *mcpsdk.ClientSession
}

func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.ClientName == "" {
		cfg.ClientName = "mcpchat"
	}
	if cfg.ClientVersion == "" {
		cfg.ClientVersion = "dev"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:       cfg,
		impl:      mcpsdk.NewClient(&mcpsdk.Implementation{Name: cfg.ClientName, Version: cfg.ClientVersion}, nil),
		transport: BuildTransport,
		retry:     resilience.NewRetryPolicy(cfg.ConnectRetries, cfg.RetryBackoff),
		logger:    logger,
	}
}

func (c *Client) connect(ctx context.Context) (*mcpsdk.ClientSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return c.session, nil
	}
	attempt := 0
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		tr, err := c.transport(ctx, c.cfg.Endpoint)
		if err != nil {
			return err
		}
		s, err := c.impl.Connect(ctx, tr, nil)
		if err != nil {
			c.logger.Warn("mcp_connect_failed", "endpoint", c.cfg.Endpoint, "attempt", attempt, "error", err)
			return err
		}
		c.session = s
		return nil
	})
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("mcp connect %s: %w", c.cfg.Endpoint, err), errorsx.ReasonMCPConnect)
	}
	c.logger.Info("mcp_connected", "endpoint", c.cfg.Endpoint, "attempts", attempt)
	return c.session, nil
}

// drop discards s when it no longer answers pings.
func (c *Client) drop(ctx context.Context, s *mcpsdk.ClientSession) {
	if err := s.Ping(ctx, nil); err == nil {
		return
	}
	c.mu.Lock()
	if c.session == s {
		c.session = nil
	}
	c.mu.Unlock()
	_ = s.Close()
	c.logger.Warn("mcp_session_dropped", "endpoint", c.cfg.Endpoint)
}

func (c *Client) ListTools(ctx context.Context) ([]llm.Tool, error) {
	s, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	var tools []llm.Tool
	for tool, err := range s.Tools(ctx, nil) {
		if err != nil {
			c.drop(ctx, s)
			return nil, errorsx.Wrap(fmt.Errorf("mcp list tools: %w", err), errorsx.ReasonMCPConnect)
		}
		tools = append(tools, toTool(tool))
	}
	return tools, nil
}

func toTool(t *mcpsdk.Tool) llm.Tool {
	return llm.Tool{
		Name:        t.Name,
		Description: t.Description,
		Schema:      value.FromAny(t.InputSchema),
	}
}

// Invoke calls a tool. A result flagged isError comes back as an error
// carrying the tool's text.
func (c *Client) Invoke(ctx context.Context, name string, args *value.Map) (value.Value, error) {
	s, err := c.connect(ctx)
	if err != nil {
		return value.Null(), err
	}
	raw := json.RawMessage("{}")
	if args != nil {
		if b, err := args.MarshalJSON(); err == nil {
			raw = b
		}
	}
	res, err := s.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: raw})
	if err != nil {
		c.drop(ctx, s)
		return value.Null(), errorsx.Wrap(err, errorsx.ReasonToolInvoke)
	}
	if res.IsError {
		msg := joinText(res.Content)
		if msg == "" {
			msg = "tool reported an error"
		}
		return value.Null(), errorsx.New(errorsx.ReasonToolInvoke, "%s", msg)
	}
	return resultValue(res), nil
}

// resultValue prefers structured content. Text that is itself JSON is
// parsed so formatting can see its shape.
func resultValue(res *mcpsdk.CallToolResult) value.Value {
	if res.StructuredContent != nil {
		return structured(res.StructuredContent)
	}
	text := joinText(res.Content)
	if text == "" {
		return value.Object(nil)
	}
	if v, err := value.ParseString(text); err == nil {
		return v
	}
	return value.String(text)
}

func structured(sc any) value.Value {
	if raw, ok := sc.(json.RawMessage); ok {
		if v, err := value.Parse(raw); err == nil {
			return v
		}
	}
	return value.FromAny(sc)
}

func joinText(content []mcpsdk.Content) string {
	var parts []string
	for _, c := range content {
		if t, ok := c.(*mcpsdk.TextContent); ok && t.Text != "" {
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Ping reports whether the server is reachable, connecting if needed.
func (c *Client) Ping(ctx context.Context) error {
	s, err := c.connect(ctx)
	if err != nil {
		return err
	}
	if err := s.Ping(ctx, nil); err != nil {
		c.drop(ctx, s)
		return errorsx.Wrap(err, errorsx.ReasonMCPConnect)
	}
	return nil
}

// Ready reports whether a session is currently open.
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// ServerInfo returns the connected server's name and version.
func (c *Client) ServerInfo() (name, version string) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return "", ""
	}
	res := s.InitializeResult()
	if res == nil || res.ServerInfo == nil {
		return "", ""
	}
	return res.ServerInfo.Name, res.ServerInfo.Version
}

func (c *Client) Close() error {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close()
}
