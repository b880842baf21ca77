package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"CryptoAssist/pkg/config"
	xhttp "CryptoAssist/pkg/http"
	"CryptoAssist/pkg/logger"
)

const systemPrompt = "You are a cryptocurrency market analyst. Answer with concise technical analysis. " +
	"Always state a clear BUY, SELL or HOLD view and how confident you are."

// ErrEmptyResponse is returned when the backend answers without any choice.
var ErrEmptyResponse = errors.New("llm: empty response")

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Client is a reasoning backend speaking the OpenAI-compatible chat
// completions API (Groq, OpenAI, local gateways).
type Client struct {
	cfg    config.LLMConfig
	http   *xhttp.Client
	log    *logger.Logger
	system string
}

func New(cfg config.LLMConfig, log *logger.Logger, opts ...xhttp.ClientOption) *Client {
	if log == nil {
		log = logger.Nop()
	}
	base := []xhttp.ClientOption{xhttp.WithTimeout(cfg.CallTimeout)}
	if cfg.APIKey != "" {
		base = append(base, xhttp.WithHeader("Authorization", "Bearer "+cfg.APIKey))
	}
	return &Client{
		cfg:    cfg,
		http:   xhttp.NewClient(append(base, opts...)...),
		log:    log.With(logger.String("component", "llm"), logger.String("model", cfg.Model)),
		system: systemPrompt,
	}
}

// Ask sends prompt as a single-turn conversation and returns the answer text.
func (c *Client) Ask(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: c.system},
			{Role: "user", Content: prompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	var resp chatResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions",
		Body:   req,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("llm chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	c.log.Debug("llm answered",
		logger.Int("prompt_tokens", resp.Usage.PromptTokens),
		logger.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// CloseSessions is a no-op: chat completions are stateless.
func (c *Client) CloseSessions(context.Context) error {
	return nil
}
