package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"darkroom/internal/config"
	"darkroom/internal/services"
	"darkroom/internal/workflows"
)

// HTTPDoer describes the HTTP client used by the ComfyUI service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Outcome is the terminal state of one awaited job.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeFailed
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// Client submits workflow graphs to a ComfyUI server and polls them to a
// terminal state.
type Client struct {
	baseURL   string
	inputDir  string
	outputDir string

	httpClient    HTTPDoer
	submitRetries int
	retryDelay    time.Duration
	pollInterval  time.Duration
	awaitTimeout  time.Duration

	logger *slog.Logger
}

// Option customizes the ComfyUI client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client (used in tests).
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.httpClient = doer
		}
	}
}

// New constructs a ComfyUI client from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Client {
	client := &Client{
		baseURL:       strings.TrimRight(cfg.Comfy.BaseURL, "/"),
		inputDir:      cfg.Comfy.InputDir,
		outputDir:     cfg.Comfy.OutputDir,
		httpClient:    &http.Client{Timeout: time.Duration(cfg.Comfy.RequestTimeout) * time.Second},
		submitRetries: cfg.Comfy.SubmitRetries,
		retryDelay:    time.Duration(cfg.Comfy.RetryDelay) * time.Second,
		pollInterval:  time.Duration(cfg.Comfy.PollInterval) * time.Second,
		awaitTimeout:  time.Duration(cfg.Comfy.AwaitTimeout) * time.Second,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type submitRequest struct {
	Prompt workflows.Graph `json:"prompt"`
}

type submitResponse struct {
	PromptID string `json:"prompt_id"`
}

// Submit serializes the graph and queues it on the server, retrying up to
// the configured bound with a fixed delay on any transport error. Returns
// the backend job id on success.
func (c *Client) Submit(ctx context.Context, graph workflows.Graph) (string, error) {
	encoded, err := json.Marshal(submitRequest{Prompt: graph})
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "comfy", "submit", "encode graph", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.submitRetries; attempt++ {
		jobID, err := c.submitOnce(ctx, encoded)
		if err == nil {
			return jobID, nil
		}
		lastErr = err
		c.logger.Warn("workflow submit failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.submitRetries),
			slog.Any("error", err))
		if attempt < c.submitRetries {
			select {
			case <-ctx.Done():
				return "", services.Wrap(services.ErrTransport, "comfy", "submit", "canceled", ctx.Err())
			case <-time.After(c.retryDelay):
			}
		}
	}
	return "", services.Wrap(services.ErrTransport, "comfy", "submit", "retries exhausted", lastErr)
}

func (c *Client) submitOnce(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post workflow: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read submit response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("submit returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var result submitResponse
	if err := json.Unmarshal(payload, &result); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if result.PromptID == "" {
		return "", fmt.Errorf("submit response missing prompt id")
	}
	return result.PromptID, nil
}

type historyStatus struct {
	Completed bool            `json:"completed"`
	ExecInfo  json.RawMessage `json:"exec_info"`
}

type historyRecord struct {
	Status historyStatus `json:"status"`
}

// AwaitCompletion polls the job until the server reports completion, reports
// an execution error, or the configured timeout elapses. A 404 or a history
// response without the job yet means "not yet known" and keeps polling;
// transport errors during polling are logged and retried on the next tick.
func (c *Client) AwaitCompletion(ctx context.Context, jobID string) Outcome {
	deadline := time.Now().Add(c.awaitTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		done, outcome, err := c.checkOnce(ctx, jobID)
		if err != nil {
			c.logger.Warn("poll job status", slog.String("job_id", jobID), slog.Any("error", err))
		} else if done {
			return outcome
		}

		if !time.Now().Before(deadline) {
			return OutcomeTimedOut
		}
		select {
		case <-ctx.Done():
			return OutcomeTimedOut
		case <-ticker.C:
		}
	}
}

func (c *Client) checkOnce(ctx context.Context, jobID string) (bool, Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/history/"+jobID, nil)
	if err != nil {
		return false, 0, fmt.Errorf("build history request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, 0, fmt.Errorf("query history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// The server has no record yet; still pending.
		return false, 0, nil
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, 0, fmt.Errorf("read history response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return false, 0, fmt.Errorf("history returned %d", resp.StatusCode)
	}

	var records map[string]historyRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return false, 0, fmt.Errorf("decode history response: %w", err)
	}
	record, ok := records[jobID]
	if !ok {
		return false, 0, nil
	}
	if record.Status.Completed {
		return true, OutcomeCompleted, nil
	}
	if len(record.Status.ExecInfo) > 0 && strings.Contains(strings.ToLower(string(record.Status.ExecInfo)), "error") {
		return true, OutcomeFailed, nil
	}
	return false, 0, nil
}

// Health verifies the server answers at its base URL, with the same bounded
// retry discipline as Submit. Used as a startup preflight.
func (c *Client) Health(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= c.submitRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
		if err != nil {
			return services.Wrap(services.ErrConfiguration, "comfy", "health", "build request", err)
		}
		resp, err := c.httpClient.Do(req)
		if err == nil {
			resp.Body.Close()
			return nil
		}
		lastErr = err
		if attempt < c.submitRetries {
			select {
			case <-ctx.Done():
				return services.Wrap(services.ErrTransport, "comfy", "health", "canceled", ctx.Err())
			case <-time.After(c.retryDelay):
			}
		}
	}
	return services.Wrap(services.ErrTransport, "comfy", "health", "server unreachable", lastErr)
}
