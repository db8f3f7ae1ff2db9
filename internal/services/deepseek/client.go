package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"darkroom/internal/config"
)

const (
	defaultBaseURL     = "https://api.deepseek.com"
	defaultModel       = "deepseek-chat"
	defaultHTTPTimeout = 30 * time.Second
)

// Client wraps the DeepSeek chat completion API for free-text intent
// classification.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option customizes the DeepSeek client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// NewClient constructs a DeepSeek API client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// NewFromConfig builds a client from application configuration, or nil when
// classification is disabled.
func NewFromConfig(cfg *config.Config) *Client {
	if cfg == nil || !cfg.DeepSeek.Enabled {
		return nil
	}
	client := NewClient(cfg.DeepSeek.APIKey, WithBaseURL(cfg.DeepSeek.BaseURL))
	if cfg.DeepSeek.Model != "" {
		client.model = cfg.DeepSeek.Model
	}
	if cfg.DeepSeek.TimeoutSeconds > 0 {
		client.httpClient = &http.Client{Timeout: time.Duration(cfg.DeepSeek.TimeoutSeconds) * time.Second}
	}
	return client
}

// ActionKind enumerates the intents the classifier can return.
type ActionKind int

const (
	// ActionReply carries plain conversational text back to the chat.
	ActionReply ActionKind = iota
	// ActionSwitchTemplate switches the chat's active template.
	ActionSwitchTemplate
	// ActionGenerateImage requests a text-to-image job.
	ActionGenerateImage
	// ActionListTasks asks for the account's queued tasks.
	ActionListTasks
)

// Action is the typed result of classifying one free-text message.
type Action struct {
	Kind     ActionKind
	Template string
	Prompt   string
	Reply    string
}

// Classify maps free text onto one of the known actions, or a plain reply.
func (c *Client) Classify(ctx context.Context, text, currentTemplate string, templates []string) (Action, error) {
	var empty Action
	text = strings.TrimSpace(text)
	if text == "" {
		return empty, errors.New("deepseek classify: text required")
	}
	if c.apiKey == "" {
		return empty, errors.New("deepseek classify: api key required")
	}

	requestBody := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: buildSystemPrompt(currentTemplate, templates)},
			{Role: "user", Content: text},
		},
		Tools:       buildTools(templates),
		ToolChoice:  "auto",
		Temperature: 0.3,
	}
	encoded, err := json.Marshal(requestBody)
	if err != nil {
		return empty, fmt.Errorf("deepseek classify: encode request: %w", err)
	}
	endpoint, err := url.JoinPath(c.baseURL, "/chat/completions")
	if err != nil {
		return empty, fmt.Errorf("deepseek classify: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return empty, fmt.Errorf("deepseek classify: request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, fmt.Errorf("deepseek classify: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, fmt.Errorf("deepseek classify: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return empty, fmt.Errorf("deepseek classify: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return empty, fmt.Errorf("deepseek classify: decode response: %w", err)
	}
	if completion.Error != nil {
		return empty, fmt.Errorf("deepseek classify: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	if len(completion.Choices) == 0 {
		return empty, errors.New("deepseek classify: empty choices")
	}

	message := completion.Choices[0].Message
	if len(message.ToolCalls) > 0 {
		return parseToolCall(message.ToolCalls[0])
	}
	content := strings.TrimSpace(message.Content)
	if content == "" {
		return empty, errors.New("deepseek classify: empty content")
	}
	return Action{Kind: ActionReply, Reply: content}, nil
}

func parseToolCall(call toolCall) (Action, error) {
	var empty Action
	var args struct {
		TemplateName string `json:"template_name"`
		Prompt       string `json:"prompt"`
	}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return empty, fmt.Errorf("deepseek classify: parse tool arguments: %w", err)
		}
	}
	switch call.Function.Name {
	case toolSwitchTemplate:
		if strings.TrimSpace(args.TemplateName) == "" {
			return empty, errors.New("deepseek classify: switch call missing template name")
		}
		return Action{Kind: ActionSwitchTemplate, Template: args.TemplateName}, nil
	case toolTextToImage:
		if strings.TrimSpace(args.Prompt) == "" {
			return empty, errors.New("deepseek classify: generate call missing prompt")
		}
		return Action{Kind: ActionGenerateImage, Prompt: args.Prompt}, nil
	case toolListTasks:
		return Action{Kind: ActionListTasks}, nil
	default:
		return empty, fmt.Errorf("deepseek classify: unknown tool %q", call.Function.Name)
	}
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []tool        `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type toolCall struct {
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content   string     `json:"content"`
			ToolCalls []toolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}
