// Package openai implements ai.Client against an OpenAI-compatible
// chat-completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/scriptingcat/scriptingcat/pkg/ai"
)

const (
	// DefaultBaseURL is the OpenAI-compatible endpoint used in production.
	DefaultBaseURL = "https://api.aimlapi.com/v1"

	// DefaultModel is the chat model used for analysis and generation.
	DefaultModel = "gpt-4o-mini"
)

// Config contains configuration for the OpenAI-compatible client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string

	// RequestTimeout bounds each upstream call (default: 60s)
	RequestTimeout time.Duration
}

// Client implements ai.Client. Transport or parse failures never reach the
// caller as errors: analysis and generation substitute the deterministic
// fallback payloads, polish hands the transcript back untouched.
type Client struct {
	config Config
	client *http.Client
	logger zerolog.Logger
}

// New creates a new client for an OpenAI-compatible chat-completions API.
func New(config Config, logger zerolog.Logger) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 60 * time.Second
	}

	return &Client{
		config: config,
		client: &http.Client{Timeout: config.RequestTimeout},
		logger: logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze implements ai.Client.
func (c *Client) Analyze(ctx context.Context, content, platform, language string) (*ai.Analysis, error) {
	raw, err := c.complete(ctx, chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: analysisSystemPrompt(language)},
			{Role: "user", Content: analysisUserPrompt(content, platform, language)},
		},
		Temperature: 0.7,
		MaxTokens:   2000,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn().Err(err).Msg("analysis request failed, using fallback")
		return ai.DefaultAnalysis(language), nil
	}

	var analysis ai.Analysis
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &analysis); err != nil {
		c.logger.Warn().Err(err).Msg("analysis response unparseable, using fallback")
		return ai.DefaultAnalysis(language), nil
	}
	return &analysis, nil
}

// Generate implements ai.Client.
func (c *Client) Generate(ctx context.Context, analysis *ai.Analysis, req ai.Requirements, variations int, language string) ([]ai.Script, error) {
	if variations < 1 {
		variations = 1
	}

	raw, err := c.complete(ctx, chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: generationSystemPrompt(variations, language)},
			{Role: "user", Content: generationUserPrompt(analysis, req, variations, language)},
		},
		Temperature: 0.8,
		MaxTokens:   3000,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn().Err(err).Msg("generation request failed, using fallback")
		return ai.FallbackScripts(analysis, req, variations, language), nil
	}

	var payload struct {
		Scripts []ai.Script `json:"scripts"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &payload); err != nil || len(payload.Scripts) == 0 {
		c.logger.Warn().Err(err).Msg("generation response unparseable, using fallback")
		return ai.FallbackScripts(analysis, req, variations, language), nil
	}
	return payload.Scripts, nil
}

// Polish implements ai.Client.
func (c *Client) Polish(ctx context.Context, transcript, language string) (string, error) {
	raw, err := c.complete(ctx, chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: polishSystemPrompt(language)},
			{Role: "user", Content: transcript},
		},
		Temperature: 0.3,
		MaxTokens:   2000,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.logger.Warn().Err(err).Msg("polish request failed, keeping raw transcript")
		return transcript, nil
	}

	polished := strings.TrimSpace(stripCodeFence(raw))
	if polished == "" {
		return transcript, nil
	}
	return polished, nil
}

// complete posts one chat-completion request and returns the first choice's
// content.
func (c *Client) complete(ctx context.Context, payload chatRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var completion chatResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no response content")
	}
	return completion.Choices[0].Message.Content, nil
}

// stripCodeFence removes a ```json / ``` wrapper when the model fences its
// output.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	} else {
		return s
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
