// Package llm talks to the OpenRouter chat completions API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"wbzero-canvas/application/ports"
	appErrors "wbzero-canvas/pkg/errors"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "anthropic/claude-3.5-haiku"

	requestTimeout = 60 * time.Second
	maxBodyBytes   = 1 << 20
)

// Config holds the OpenRouter connection settings.
type Config struct {
	APIKey   string
	Model    string
	BaseURL  string
	Referer  string
	AppTitle string
}

// OpenRouterClient implements ports.ChatCompleter against OpenRouter. Calls
// go through a circuit breaker so a failing upstream sheds load quickly
// instead of tying up request handlers for the full timeout.
type OpenRouterClient struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewOpenRouterClient creates a client. Empty model and base URL fall back
// to the defaults.
func NewOpenRouterClient(cfg Config, logger *zap.Logger) *OpenRouterClient {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openrouter",
		MaxRequests: 2,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 3 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &OpenRouterClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: requestTimeout},
		breaker: breaker,
		logger:  logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one system+user exchange and returns the raw assistant
// message content.
func (c *OpenRouterClient) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		return c.complete(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", appErrors.NewExternalError("openrouter", err)
		}
		return "", err
	}
	return out.(string), nil
}

func (c *OpenRouterClient) complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.Referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.AppTitle != "" {
		httpReq.Header.Set("X-Title", c.cfg.AppTitle)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", appErrors.NewExternalError("openrouter", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", appErrors.NewExternalError("openrouter", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("openrouter request failed",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncate(raw, 512)))
		return "", appErrors.NewExternalError("openrouter", fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", appErrors.NewExternalError("openrouter", err)
	}
	if parsed.Error != nil {
		return "", appErrors.NewExternalError("openrouter", errors.New(parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", appErrors.NewExternalError("openrouter", errors.New("empty choices in response"))
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
