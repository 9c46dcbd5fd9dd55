// Package llm is the language model boundary used by the intent analyzer,
// the specialists' enhancement step and the synthesizer.
//
// [Client] is the only interface the rest of the module depends on.
// [OpenAI] implements it against any OpenAI-compatible endpoint; [Fake]
// replays scripted responses in tests.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Iron-Ham/basecamp/internal/errors"
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a completion request.
type Request struct {
	// Agent names the caller ("orchestrator", "trail_agent", "synthesizer").
	// Providers use it to pick a per-agent model.
	Agent string
	// Model overrides the provider's model choice when set.
	Model    string
	Messages []Message
	// Temperature overrides the provider default when non-nil.
	Temperature *float64
	// JSON asks the provider for a JSON object response.
	JSON bool
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a completion result.
type Response struct {
	Content      string
	Model        string
	FinishReason string
	Usage        Usage
}

// Client completes chat requests.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// System builds a two-message request from a system prompt and user text.
func System(agent, system, user string) Request {
	return Request{
		Agent: agent,
		Messages: []Message{
			{Role: RoleSystem, Content: system},
			{Role: RoleUser, Content: user},
		},
	}
}

// Temperature returns a pointer for Request.Temperature.
func Temperature(t float64) *float64 {
	return &t
}

// CompleteJSON sends req in JSON mode and decodes the reply into v.
// Empty replies fail with errors.ErrEmptyResponse; undecodable ones with a
// parse error that classifies as LLM_RECOVERABLE.
func CompleteJSON(ctx context.Context, c Client, req Request, v any) (*Response, error) {
	req.JSON = true
	resp, err := c.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return resp, fmt.Errorf("%s: %w", req.Agent, errors.ErrEmptyResponse)
	}
	if err := DecodeJSON(resp.Content, v); err != nil {
		return resp, err
	}
	return resp, nil
}

// DecodeJSON extracts the JSON object from content and unmarshals it.
func DecodeJSON(content string, v any) error {
	raw := ExtractJSON(content)
	if raw == "" {
		return fmt.Errorf("parse model output: no json object found")
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("parse model output: %w", err)
	}
	return nil
}
