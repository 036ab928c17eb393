package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/takurajunia/agrivus-mobile-sub002/internal/pkg/chat/domain"
)

var (
	// ErrUnauthorized means the token was missing, expired or rejected. Callers
	// must surface a "please log in" condition, not a generic network error.
	ErrUnauthorized = errors.New("api: unauthorized")
	// ErrServer wraps 5xx responses.
	ErrServer = errors.New("api: server error")
)

// Client reads the messaging endpoints of the market API. All methods are
// idempotent and safe to retry.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient constructs an API client for the given base URL and token.
func NewClient(baseURL, token string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// Conversations fetches the full ordered conversation list for the current
// user, annotated with other-participant summaries and unread counts.
func (c *Client) Conversations(ctx context.Context) ([]domain.Conversation, error) {
	var out []domain.Conversation
	if err := c.get(ctx, "/api/v1/conversations", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Messages fetches the ordered message history of one conversation.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("api: conversation id is required")
	}
	var out []domain.Message
	if err := c.get(ctx, "/api/v1/conversations/"+conversationID+"/messages", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UnreadCount fetches the server-computed total of unread messages. The
// directory keeps its own per-conversation counters and never reconciles
// against this value; it exists for badge display.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.get(ctx, "/api/v1/messages/unread-count", &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("url", url), zap.Error(err))
		return fmt.Errorf("api: get %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn("server error", zap.String("url", url), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: status %d: %s", ErrServer, resp.StatusCode, string(body))
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("api: get %s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s response: %w", path, err)
	}
	return nil
}
