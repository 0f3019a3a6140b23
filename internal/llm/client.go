package llm

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
)

const (
	DefaultEmbeddingModel = "cohere/embed-english-v3.0"
	DefaultChatModel      = "anthropic/claude-3-5-sonnet"
	DefaultMaxTokens      = 200
	DefaultTemperature    = 0.7
	DefaultTimeout        = 30 * time.Second
)

// ErrNotConfigured is returned when no inference endpoint or key is set.
var ErrNotConfigured = errors.New("inference provider not configured")

var marshalJSON = json.Marshal

var defaultHTTPClient = &http.Client{Timeout: DefaultTimeout}

// Client talks to an OpenAI-compatible inference endpoint.
type Client struct {
	APIBase        string
	APIKey         string
	EmbeddingModel string
	ChatModel      string
	MaxTokens      int
	// Temperature overrides DefaultTemperature when set; zero is a valid value.
	Temperature    *float64
	RedactPatterns []string
	HTTPClient     *http.Client
}

func (c *Client) configured() bool {
	return c != nil && strings.TrimSpace(c.APIBase) != "" && strings.TrimSpace(c.APIKey) != ""
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return defaultHTTPClient
	}
	return c.HTTPClient
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if !c.configured() {
		return nil, ErrNotConfigured
	}
	model := c.EmbeddingModel
	if strings.TrimSpace(model) == "" {
		model = DefaultEmbeddingModel
	}
	var out embeddingResponse
	if err := c.post(ctx, "/v1/embeddings", embeddingRequest{Input: text, Model: model}, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, errors.New("inference: empty embedding")
	}
	return out.Data[0].Embedding, nil
}

// Chat returns the first completion choice for messages.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	if !c.configured() {
		return "", ErrNotConfigured
	}
	req := chatRequest{
		Model:       c.ChatModel,
		Messages:    messages,
		MaxTokens:   c.MaxTokens,
		Temperature: DefaultTemperature,
	}
	if strings.TrimSpace(req.Model) == "" {
		req.Model = DefaultChatModel
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	if c.Temperature != nil {
		req.Temperature = *c.Temperature
	}
	var out chatResponse
	if err := c.post(ctx, "/v1/chat/completions", req, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", errors.New("inference: empty completion")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := marshalJSON(in)
	if err != nil {
		return err
	}
	base := strings.TrimRight(strings.TrimSpace(c.APIBase), "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("inference %s status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("inference %s decode: %w", path, err)
	}
	return nil
}
