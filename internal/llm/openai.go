package llm

import (
	"context"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/Iron-Ham/basecamp/internal/config"
	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/logging"
)

// endpoint identifies the provider in error records and logs.
const endpoint = "llm"

// OpenAI is a Client for OpenAI-compatible chat completion APIs. All
// requests share one token bucket so concurrent specialists cannot exceed
// the configured request rate.
type OpenAI struct {
	client  *openai.Client
	cfg     config.LLMConfig
	limiter *rate.Limiter
	logger  *logging.Logger
}

// NewOpenAI creates a provider from the llm configuration section. It fails
// with errors.ErrMissingAPIKey when no key is configured and no base URL
// points at a keyless local server.
func NewOpenAI(cfg config.LLMConfig, logger *logging.Logger) (*OpenAI, error) {
	key := cfg.ResolvedAPIKey()
	if key == "" && cfg.BaseURL == "" {
		return nil, errors.NewConfigError("llm.api_key", "openai api key missing", errors.ErrMissingAPIKey)
	}

	oc := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout()}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = max(1, int(cfg.RequestsPerSecond))
	}

	return &OpenAI{
		client:  openai.NewClientWithConfig(oc),
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logging.OrNop(logger),
	}, nil
}

// Complete sends one chat completion request.
func (o *OpenAI) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "wait for llm rate limit")
	}

	model := req.Model
	if model == "" {
		model = o.cfg.ModelFor(req.Agent)
	}
	temp := o.cfg.Temperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	creq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: float32(temp),
	}
	if req.JSON {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := o.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		o.logger.Warn("llm request failed", "agent", req.Agent, "model", model, "error", err.Error())
		return nil, toolError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.NewToolError(endpoint, "no choices returned", errors.ErrEmptyResponse)
	}

	o.logger.Debug("llm request completed",
		"agent", req.Agent,
		"model", resp.Model,
		"total_tokens", resp.Usage.TotalTokens)

	choice := resp.Choices[0]
	return &Response{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// toolError attaches the HTTP status of a provider failure so the
// classifier can tell 429 and 5xx from 401.
func toolError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return errors.NewToolError(endpoint, apiErr.Message, err).WithStatusCode(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return errors.NewToolError(endpoint, "request failed", err).WithStatusCode(reqErr.HTTPStatusCode)
	}
	return errors.NewToolError(endpoint, "request failed", err)
}
