package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	ctxpkg "github.com/stupiduntilnot/termagent/internal/context"
	modelpkg "github.com/stupiduntilnot/termagent/internal/model"
)

const (
	GroqBaseURL     = "https://api.groq.com/openai/v1"
	LMStudioBaseURL = "http://localhost:1234/v1"

	// lmStudioKey is a placeholder; LM Studio ignores the key but the
	// client requires one.
	lmStudioKey = "lm-studio"
)

// Client is a chat completions client for any OpenAI-compatible endpoint.
type Client struct {
	api         *goopenai.Client
	temperature float32

	mu    sync.Mutex
	model string
}

// NewClient creates a client. An empty baseURL targets api.openai.com and an
// empty model is resolved on first use through ListModels.
func NewClient(apiKey, baseURL, model string, timeout time.Duration) *Client {
	cfg := goopenai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{
		api:   goopenai.NewClientWithConfig(cfg),
		model: model,
	}
}

// NewGroq targets the Groq OpenAI-compatible endpoint.
func NewGroq(apiKey, model string, timeout time.Duration) *Client {
	return NewClient(apiKey, GroqBaseURL, model, timeout)
}

// NewLMStudio targets a local LM Studio server. Sampling is fixed at 0.7.
func NewLMStudio(baseURL, model string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = LMStudioBaseURL
	}
	c := NewClient(lmStudioKey, baseURL, model, timeout)
	c.temperature = 0.7
	return c
}

// WithTemperature overrides the sampling temperature. Zero leaves the
// server default.
func (c *Client) WithTemperature(t float32) *Client {
	c.temperature = t
	return c
}

// Model returns the configured or auto-selected model.
func (c *Client) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// ChatCompletion sends the conversation and returns the first choice.
func (c *Client) ChatCompletion(ctx context.Context, messages []ctxpkg.Message) (modelpkg.CompletionResponse, error) {
	model, err := c.EnsureModel(ctx)
	if err != nil {
		return modelpkg.CompletionResponse{}, err
	}

	req := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    toChatMessages(messages),
		Temperature: c.temperature,
	}
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return modelpkg.CompletionResponse{}, describeError(err)
	}

	result := modelpkg.CompletionResponse{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) == 0 {
		result.Content = "(empty model response)"
		return result, nil
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		result.Content = "(empty model response)"
		return result, nil
	}
	result.Content = content
	return result, nil
}

// ListModels returns the model ids the endpoint serves. It doubles as a
// connection check.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	list, err := c.api.ListModels(ctx)
	if err != nil {
		return nil, describeError(err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// EnsureModel returns the configured model, selecting the first listed one
// when none is set.
func (c *Client) EnsureModel(ctx context.Context) (string, error) {
	if m := c.Model(); m != "" {
		return m, nil
	}
	ids, err := c.ListModels(ctx)
	if err != nil {
		return "", fmt.Errorf("model auto-select failed: %w", err)
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("model auto-select failed: endpoint lists no models")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.model == "" {
		c.model = ids[0]
	}
	return c.model, nil
}

func toChatMessages(messages []ctxpkg.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func describeError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai non-success status=%d: %s", apiErr.HTTPStatusCode, truncate(apiErr.Message, 400))
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("openai non-success status=%d: %w", reqErr.HTTPStatusCode, reqErr.Err)
	}
	return fmt.Errorf("openai request failed: %w", err)
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
