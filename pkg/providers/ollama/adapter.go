// Package ollama streams chat responses from an Ollama server's /api/chat.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harunnryd/mcpchat/pkg/configutil"
	"github.com/harunnryd/mcpchat/pkg/llm"
	"github.com/harunnryd/mcpchat/pkg/resilience"
	"github.com/harunnryd/mcpchat/pkg/value"
)

type Settings struct {
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

var SettingsSchema = configutil.Schema{
	Required: []string{"base_url"},
	Optional: []string{"model", "timeout_ms"},
}

type Adapter struct {
	BaseURL string
	Model   string
	Client  *http.Client
	// NewID names tool calls, which Ollama leaves unnamed.
	NewID func() string
}

func NewAdapter(s Settings) *Adapter {
	timeout := 120 * time.Second
	if s.TimeoutMS > 0 {
		timeout = time.Duration(s.TimeoutMS) * time.Millisecond
	}
	if s.BaseURL == "" {
		s.BaseURL = "http://localhost:11434"
	}
	if s.Model == "" {
		s.Model = "llama3.1"
	}
	return &Adapter{
		BaseURL: strings.TrimRight(s.BaseURL, "/"),
		Model:   s.Model,
		Client:  &http.Client{Timeout: timeout},
		NewID:   uuid.NewString,
	}
}

func (a *Adapter) Name() string { return "ollama" }

func (a *Adapter) DefaultModel() string { return a.Model }

type chatMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
}

type chatToolCall struct {
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type chatRequest struct {
	Model    string             `json:"model"`
	Messages []chatMessage      `json:"messages"`
	Tools    []llm.FunctionTool `json:"tools,omitempty"`
	Stream   bool               `json:"stream"`
	Options  map[string]any     `json:"options,omitempty"`
}

type chatChunk struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error"`
}

func (a *Adapter) Stream(ctx context.Context, req llm.Request) (<-chan llm.Delta, error) {
	body, err := a.buildRequest(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/api/chat", body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := a.client().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		msg, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, resilience.RateLimitError{Provider: "ollama", Message: string(msg)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("ollama chat: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	out := make(chan llm.Delta, 64)
	go func() {
		defer resp.Body.Close()
		defer close(out)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var chunk chatChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				continue
			}
			if chunk.Error != "" {
				a.send(ctx, out, llm.Delta{Err: errors.New("ollama chat: " + chunk.Error)})
				return
			}
			d := a.normalize(chunk.Message)
			if d.Content != "" || len(d.ToolCalls) > 0 {
				if !a.send(ctx, out, d) {
					return
				}
			}
			if chunk.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			a.send(ctx, out, llm.Delta{Err: fmt.Errorf("ollama chat: %w", err)})
		}
	}()
	return out, nil
}

func (a *Adapter) send(ctx context.Context, out chan<- llm.Delta, d llm.Delta) bool {
	select {
	case out <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

// normalize converts one NDJSON message. Ollama sends each tool call whole,
// without an id and with object arguments.
func (a *Adapter) normalize(msg chatMessage) llm.Delta {
	d := llm.Delta{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		args := strings.TrimSpace(string(tc.Function.Arguments))
		if strings.HasPrefix(args, `"`) {
			// Some models return the arguments as a JSON string.
			if s, err := value.Parse(tc.Function.Arguments); err == nil {
				args, _ = s.AsString()
			}
		}
		d.ToolCalls = append(d.ToolCalls, llm.ToolCallFragment{
			ID:                a.newID(),
			NameFragment:      tc.Function.Name,
			ArgumentsFragment: args,
		})
	}
	return d
}

func (a *Adapter) buildRequest(req llm.Request) (*bytes.Buffer, error) {
	model := req.Model
	if model == "" {
		model = a.Model
	}
	body := chatRequest{
		Model:    model,
		Messages: make([]chatMessage, 0, len(req.Messages)),
		Stream:   true,
		Options:  map[string]any{"temperature": req.Temperature},
	}
	for _, m := range req.Messages {
		cm := chatMessage{Role: string(m.Role), Content: m.Content}
		for _, call := range m.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, chatToolCall{Function: chatFunction{
				Name:      call.Name,
				Arguments: json.RawMessage(call.ArgumentsJSON()),
			}})
		}
		body.Messages = append(body.Messages, cm)
	}
	if len(req.Tools) > 0 && req.ToolChoice != llm.ToolChoiceNone {
		body.Tools = llm.FunctionTools(req.Tools)
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(b), nil
}

// Models lists locally available models via /api/tags.
func (a *Adapter) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama tags: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama tags: status %d", resp.StatusCode)
	}
	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("ollama tags: %w", err)
	}
	out := make([]string, 0, len(payload.Models))
	for _, m := range payload.Models {
		out = append(out, m.Name)
	}
	return out, nil
}

func (a *Adapter) newID() string {
	if a.NewID != nil {
		return a.NewID()
	}
	return uuid.NewString()
}

func (a *Adapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return http.DefaultClient
}
