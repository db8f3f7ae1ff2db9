package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"darkroom/internal/config"
	"darkroom/internal/services"
)

// HTTPDoer describes the HTTP client used by the Telegram service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the Telegram Bot API. Long polls carry their own deadline,
// so the underlying HTTP client has no global timeout; per-request contexts
// bound everything else.
type Client struct {
	token       string
	baseURL     string
	httpClient  HTTPDoer
	pollTimeout time.Duration
	reqTimeout  time.Duration
	sendTimeout time.Duration
}

// Option customizes the Telegram client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client (used in tests).
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.httpClient = doer
		}
	}
}

// New constructs a Telegram Bot API client from configuration.
func New(cfg *config.Config, opts ...Option) *Client {
	client := &Client{
		token:       cfg.Telegram.BotToken,
		baseURL:     strings.TrimRight(cfg.Telegram.BaseURL, "/"),
		httpClient:  &http.Client{},
		pollTimeout: time.Duration(cfg.Telegram.PollTimeout) * time.Second,
		reqTimeout:  time.Duration(cfg.Telegram.RequestTimeout) * time.Second,
		sendTimeout: time.Duration(cfg.Telegram.UploadTimeout) * time.Second,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

func (c *Client) fileURL(path string) string {
	return fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, path)
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

// Updates long polls getUpdates starting at the given offset. The caller
// advances the offset to update_id+1 for each processed update so a restart
// never replays handled messages.
func (c *Client) Updates(ctx context.Context, offset int64) ([]Update, error) {
	params := url.Values{}
	params.Set("timeout", strconv.Itoa(int(c.pollTimeout/time.Second)))
	if offset > 0 {
		params.Set("offset", strconv.FormatInt(offset, 10))
	}

	// The server holds the request open for pollTimeout; allow slack on top.
	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout+10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.methodURL("getUpdates")+"?"+params.Encode(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "telegram", "get updates", "build request", err)
	}
	raw, err := c.do(req, "get updates")
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, services.Wrap(services.ErrTransport, "telegram", "get updates", "decode result", err)
	}
	return updates, nil
}

// SendMessage delivers a text message. Fire and forget: the caller logs the
// error and moves on, there is no retry.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	body, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return services.Wrap(services.ErrTransport, "telegram", "send message", "encode body", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.reqTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return services.Wrap(services.ErrTransport, "telegram", "send message", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(req, "send message")
	return err
}

func (c *Client) do(req *http.Request, operation string) (json.RawMessage, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "telegram", operation, "request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "telegram", operation, "read response", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, services.Wrap(services.ErrTransport, "telegram", operation, "decode response", err)
	}
	if !parsed.OK {
		detail := strings.TrimSpace(parsed.Description)
		if detail == "" {
			detail = fmt.Sprintf("http %d", resp.StatusCode)
		}
		return nil, services.Wrap(services.ErrTransport, "telegram", operation, detail, nil)
	}
	return parsed.Result, nil
}
