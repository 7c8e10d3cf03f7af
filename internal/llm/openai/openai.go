// Package openai talks to any OpenAI-compatible chat completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tahcohcat/meechain/config"
	"github.com/tahcohcat/meechain/internal/logger"
)

const defaultBaseURL = "https://api.openai.com/v1"

var ErrModelNotFound = errors.New("openai: model not available")

type Client struct {
	apiKey     string
	baseURL    string
	config     *config.OpenAIConfig
	logger     *logger.Log
	httpClient *http.Client
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// apiError is the body OpenAI sends alongside non-2xx statuses.
type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func NewClient(cfg *config.OpenAIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		config:  cfg,
		logger:  logger.New().With("llm", "openai"),
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}, nil
}

// Complete sends one system+user exchange and asks for a JSON object back.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	req := chatRequest{
		Model:          c.config.Model,
		Temperature:    0.3,
		MaxTokens:      c.config.MaxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	if system != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: system})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: prompt})

	var resp chatResponse
	if err := c.call(ctx, http.MethodPost, "/chat/completions", req, &resp); err != nil {
		c.logger.WithError(err).Error("chat completion failed")
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices in response")
	}

	c.logger.Debug(fmt.Sprintf("completion used %d tokens", resp.Usage.TotalTokens))
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) IsModelAvailable(ctx context.Context) error {
	var list modelList
	if err := c.call(ctx, http.MethodGet, "/models", nil, &list); err != nil {
		return err
	}

	ids := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		if m.ID == c.config.Model {
			return nil
		}
		ids = append(ids, m.ID)
	}
	return fmt.Errorf("%w: %s not in %v", ErrModelNotFound, c.config.Model, ids)
}

// call performs one authenticated JSON round trip. in may be nil.
func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("openai: encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openai: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("openai: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("openai: status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("openai: status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("openai: decode response: %w", err)
	}
	return nil
}
