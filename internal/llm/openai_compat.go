package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/umsafe/umsafe/internal/config"
	"github.com/umsafe/umsafe/pkg/models"
)

// Default endpoints per backend kind. All three speak the OpenAI
// chat-completions wire protocol.
const (
	groqEndpoint   = "https://api.groq.com/openai/v1"
	openAIEndpoint = "https://api.openai.com/v1"
	ollamaEndpoint = "http://localhost:11434/v1"
)

// maxErrorBody bounds how much of an upstream error body we keep.
const maxErrorBody = 2048

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// OpenAICompat is a streaming client for OpenAI-compatible endpoints.
type OpenAICompat struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// NewOpenAICompat builds a client from config. The endpoint defaults per
// backend kind and can be overridden for self-hosted deployments.
func NewOpenAICompat(cfg config.ModelConfig) *OpenAICompat {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		switch cfg.Kind {
		case "openai":
			endpoint = openAIEndpoint
		case "ollama":
			endpoint = ollamaEndpoint
		default:
			endpoint = groqEndpoint
		}
	}

	return &OpenAICompat{
		endpoint:    strings.TrimRight(endpoint, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      &http.Client{Timeout: cfg.Timeout},
	}
}

// StreamChat sends the system prompt plus conversation upstream and
// invokes onDelta for every content fragment until the stream ends.
func (c *OpenAICompat) StreamChat(ctx context.Context, system string, messages []models.InboundMessage, onDelta func(delta string) error) error {
	req := chatRequest{
		Model:       c.model,
		Messages:    make([]chatMessage, 0, len(messages)+1),
		Stream:      true,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	req.Messages = append(req.Messages, chatMessage{Role: "system", Content: system})
	for _, m := range messages {
		req.Messages = append(req.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("llm: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("llm: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		log.Error().
			Int("status", httpResp.StatusCode).
			Str("model", c.model).
			Msg("model upstream error")
		return &UpstreamError{Status: httpResp.StatusCode, Body: string(snippet)}
	}

	scanner := bufio.NewScanner(httpResp.Body)
	// Single deltas are small, but some servers batch events per line.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return nil
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			log.Debug().Err(err).Msg("skipping unparseable stream chunk")
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		if err := onDelta(chunk.Choices[0].Delta.Content); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("llm: read stream: %w", err)
	}
	return nil
}
