package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Generator failure classes. Callers must not persist a challenge when any
// of these are returned.
var (
	// ErrTimeout means the bot did not answer within the request budget.
	ErrTimeout = errors.New("generation timed out")

	// ErrUnavailable means the bot rejected the request or could not be
	// reached.
	ErrUnavailable = errors.New("generation unavailable")

	// ErrMalformedResponse means the bot answered but no structured reply
	// could be extracted from its event stream.
	ErrMalformedResponse = errors.New("malformed generation response")
)

// DefaultTimeout bounds one generation call end to end.
const DefaultTimeout = 20 * time.Second

// request is the wire body the bot endpoint expects.
type request struct {
	RequestID    string `json:"request_id"`
	Content      string `json:"content"`
	SessionID    string `json:"session_id"`
	BotAppKey    string `json:"bot_app_key"`
	VisitorBizID string `json:"visitor_biz_id"`
	Stream       string `json:"stream"`
}

// Client calls the external challenge-content bot.
type Client struct {
	url     string
	appKey  string
	timeout time.Duration
	http    *http.Client
}

// NewClient creates a generator client for the given bot endpoint and
// application credential. A non-positive timeout uses DefaultTimeout.
func NewClient(url, appKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:     url,
		appKey:  appKey,
		timeout: timeout,
		http:    &http.Client{},
	}
}

// Generate sends the payload to the bot and extracts the structured reply.
// The group id doubles as the bot session and visitor identity so the bot
// keeps per-group conversation state.
func (c *Client) Generate(ctx context.Context, groupID string, payload RequestPayload) (*Reply, error) {
	content, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	body, err := json.Marshal(request{
		RequestID:    uuid.New().String(),
		Content:      string(content),
		SessionID:    groupID,
		BotAppKey:    c.appKey,
		VisitorBizID: groupID,
		Stream:       "disable",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	reply := ExtractReply(string(text))
	if reply == nil {
		return nil, ErrMalformedResponse
	}
	return reply, nil
}
