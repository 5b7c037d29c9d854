// Package chat calls an OpenAI-compatible chat completion endpoint.
package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/platform/integrations"
)

// SystemPrompt keeps the assistant to general health information.
const SystemPrompt = "You are HealthHub's wellness assistant. Give general health and lifestyle " +
	"information only. Do not diagnose conditions or prescribe treatment, and recommend seeing a " +
	"clinician for anything specific. If the user describes an emergency, tell them to contact " +
	"local emergency services immediately."

var ErrNotConfigured = errors.New("chat integration is not configured")

// ErrEmptyReply is returned when the provider answers without any choices.
var ErrEmptyReply = errors.New("chat completion returned no content")

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

type Client struct {
	integrations.Base
	cfg Config
}

func New(cfg Config, logger zerolog.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 400
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.4
	}
	return &Client{Base: integrations.NewBase("chat", logger), cfg: cfg}
}

func (c *Client) Configured() bool {
	return c.cfg.APIKey != "" && c.cfg.BaseURL != ""
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Complete sends messages behind the system prompt and returns the first
// choice. It does not fall back; callers decide what to serve on error.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	body := completionRequest{
		Model:       c.cfg.Model,
		Messages:    append([]Message{{Role: RoleSystem, Content: SystemPrompt}}, messages...),
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
	req, err := integrations.NewJSONRequest(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/chat/completions", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	var resp completionResponse
	if err := c.DoJSON(req, &resp); err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyReply
	}
	c.Live()
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
