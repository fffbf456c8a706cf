package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// OpenAICompatClient talks to any OpenAI-compatible chat completions API.
// The reference deployment points it at Groq.
type OpenAICompatClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// OpenAICompatConfig holds client configuration.
type OpenAICompatConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultOpenAICompatConfig returns the reference defaults.
func DefaultOpenAICompatConfig(apiKey string) OpenAICompatConfig {
	return OpenAICompatConfig{
		APIKey:  apiKey,
		BaseURL: "https://api.groq.com/openai/v1",
		Model:   "llama3-70b-8192",
		Timeout: 120 * time.Second,
	}
}

// NewOpenAICompatClient builds a client from config, filling defaults for
// empty fields.
func NewOpenAICompatClient(config OpenAICompatConfig, logger *zap.Logger) *OpenAICompatClient {
	defaults := DefaultOpenAICompatConfig(config.APIKey)
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAICompatClient{
		apiKey:     config.APIKey,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		model:      config.Model,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

// Available reports whether a credential is configured.
func (c *OpenAICompatClient) Available() bool {
	return c.apiKey != ""
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate sends a chat completion request. Every failure path returns the
// empty string after logging; callers must treat "" as no opinion.
func (c *OpenAICompatClient) Generate(ctx context.Context, systemPrompt, userPrompt string) string {
	if !c.Available() {
		c.logger.Debug("llm unavailable: no api key configured")
		return ""
	}

	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		c.logger.Warn("llm request marshal failed", zap.Error(err))
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		c.logger.Warn("llm request build failed", zap.Error(err))
		return ""
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("llm call failed", zap.Error(err))
		return ""
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.logger.Warn("llm response read failed", zap.Error(err))
		return ""
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		c.logger.Warn("llm response parse failed",
			zap.Int("status", resp.StatusCode), zap.Error(err))
		return ""
	}
	if parsed.Error != nil {
		c.logger.Warn("llm api error",
			zap.String("type", parsed.Error.Type),
			zap.String("message", parsed.Error.Message))
		return ""
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("llm non-200 response",
			zap.Int("status", resp.StatusCode),
			zap.String("body", fmt.Sprintf("%.300s", data)))
		return ""
	}
	if len(parsed.Choices) == 0 {
		c.logger.Debug("llm returned no choices")
		return ""
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		c.logger.Debug("llm returned empty content")
	}
	LogResponse(c.logger, "chat", systemPrompt, userPrompt, content)
	return content
}
