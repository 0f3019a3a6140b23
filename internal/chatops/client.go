package chatops

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

	"approvalhub/internal/metrics"
)

const DefaultSlackAPIURL = "https://slack.com/api"

var defaultSlackHTTPClient = &http.Client{Timeout: 10 * time.Second}

// SlackClient calls the Slack Web API methods this service needs.
type SlackClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (c *SlackClient) PublishView(ctx context.Context, userID string, view View) error {
	return c.call(ctx, "views.publish", map[string]any{"user_id": userID, "view": view})
}

func (c *SlackClient) PostMessage(ctx context.Context, channel, text string) error {
	return c.call(ctx, "chat.postMessage", map[string]any{"channel": channel, "text": text})
}

func (c *SlackClient) call(ctx context.Context, method string, payload any) (err error) {
	defer func() {
		metrics.SlackAPICallsTotal.WithLabelValues(method, metrics.Outcome(err)).Inc()
	}()
	if c == nil || strings.TrimSpace(c.Token) == "" {
		return errors.New("slack bot token not configured")
	}
	client := c.Client
	if client == nil {
		client = defaultSlackHTTPClient
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		base = DefaultSlackAPIURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/"+method, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.Token)
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack %s status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out slackResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("slack %s: %w", method, err)
	}
	if !out.OK {
		return fmt.Errorf("slack %s: %s", method, out.Error)
	}
	return nil
}
