// Package openai streams chat completions from OpenAI-compatible APIs.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/harunnryd/mcpchat/pkg/configutil"
	"github.com/harunnryd/mcpchat/pkg/llm"
	"github.com/harunnryd/mcpchat/pkg/resilience"
)

// Settings are decoded from llm.providers.<name>.settings.
type Settings struct {
	APIKey            string `mapstructure:"api_key"`
	Model             string `mapstructure:"model"`
	BaseURL           string `mapstructure:"base_url"`
	TimeoutMS         int    `mapstructure:"timeout_ms"`
	UseCircuitBreaker *bool  `mapstructure:"use_circuit_breaker"`
	CircuitThreshold  int    `mapstructure:"circuit_threshold"`
	CircuitCooldownMS int    `mapstructure:"circuit_cooldown_ms"`
}

var SettingsSchema = configutil.Schema{
	Required: []string{"api_key"},
	Optional: []string{"model", "base_url", "timeout_ms", "use_circuit_breaker", "circuit_threshold", "circuit_cooldown_ms"},
}

type Adapter struct {
	client *goopenai.Client
	model  string
}

func NewAdapter(apiKey, model string) *Adapter {
	return NewAdapterWithSettings(Settings{APIKey: apiKey, Model: model})
}

func NewAdapterWithSettings(s Settings) *Adapter {
	cfg := goopenai.DefaultConfig(s.APIKey)
	if s.BaseURL != "" {
		cfg.BaseURL = s.BaseURL
	}
	timeout := 60 * time.Second
	if s.TimeoutMS > 0 {
		timeout = time.Duration(s.TimeoutMS) * time.Millisecond
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	if s.Model == "" {
		s.Model = goopenai.GPT4oMini
	}
	return &Adapter{client: goopenai.NewClientWithConfig(cfg), model: s.Model}
}

func (a *Adapter) Name() string { return "openai" }

func (a *Adapter) DefaultModel() string { return a.model }

// Models lists the configured model only; the account-wide list is large
// and mostly irrelevant to chat.
func (a *Adapter) Models(ctx context.Context) ([]string, error) {
	return []string{a.model}, nil
}

func (a *Adapter) Stream(ctx context.Context, req llm.Request) (<-chan llm.Delta, error) {
	stream, err := a.client.CreateChatCompletionStream(ctx, a.buildRequest(req))
	if err != nil {
		return nil, classify(err)
	}
	out := make(chan llm.Delta, 64)
	go func() {
		defer close(out)
		defer stream.Close()
		// Only the first fragment of a call carries its id; later ones
		// carry the index.
		ids := make(map[int]string)
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				send(ctx, out, llm.Delta{Err: classify(err)})
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			d := normalize(resp.Choices[0].Delta, ids)
			if d.Content == "" && len(d.ToolCalls) == 0 {
				continue
			}
			if !send(ctx, out, d) {
				return
			}
		}
	}()
	return out, nil
}

func send(ctx context.Context, out chan<- llm.Delta, d llm.Delta) bool {
	select {
	case out <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

func normalize(delta goopenai.ChatCompletionStreamChoiceDelta, ids map[int]string) llm.Delta {
	d := llm.Delta{Content: delta.Content}
	for _, tc := range delta.ToolCalls {
		id := tc.ID
		if tc.Index != nil {
			if id != "" {
				ids[*tc.Index] = id
			} else {
				id = ids[*tc.Index]
			}
		}
		d.ToolCalls = append(d.ToolCalls, llm.ToolCallFragment{
			ID:                id,
			NameFragment:      tc.Function.Name,
			ArgumentsFragment: tc.Function.Arguments,
		})
	}
	return d
}

func (a *Adapter) buildRequest(req llm.Request) goopenai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = a.model
	}
	out := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    toMessages(req.Messages),
		Temperature: float32(req.Temperature),
		Stream:      true,
	}
	if len(req.Tools) > 0 {
		for _, t := range llm.FunctionTools(req.Tools) {
			out.Tools = append(out.Tools, goopenai.Tool{
				Type: goopenai.ToolTypeFunction,
				Function: &goopenai.FunctionDefinition{
					Name:        t.Function.Name,
					Description: t.Function.Description,
					Parameters:  t.Function.Parameters,
				},
			})
		}
		choice := req.ToolChoice
		if choice == "" {
			choice = llm.ToolChoiceAuto
		}
		out.ToolChoice = string(choice)
	}
	return out
}

func toMessages(msgs []llm.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		msg := goopenai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, call := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, goopenai.ToolCall{
				ID:   call.ID,
				Type: goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{
					Name:      call.Name,
					Arguments: call.ArgumentsJSON(),
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

// classify maps HTTP 429 onto resilience.RateLimitError.
func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return resilience.RateLimitError{Provider: "openai", Message: "openai rate limited: " + apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return resilience.RateLimitError{Provider: "openai", Message: "openai rate limited: " + strconv.Itoa(reqErr.HTTPStatusCode)}
	}
	return fmt.Errorf("openai stream: %w", err)
}
