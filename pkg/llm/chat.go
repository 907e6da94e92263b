package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAzureAPIVersion is used when ChatConfig.APIVersion is empty.
const DefaultAzureAPIVersion = "2024-02-01"

// ChatConfig configures a chat-completions client.
//
// With Deployment set the client talks to Azure OpenAI:
//
//	{Endpoint}/openai/deployments/{Deployment}/chat/completions?api-version={APIVersion}
//
// Otherwise it talks to an OpenAI-compatible server:
//
//	{Endpoint}/v1/chat/completions
type ChatConfig struct {
	Name       string
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
	Model      string
	MaxTokens  int
	HTTPClient *http.Client
}

// ChatClient calls a chat-completions API.
type ChatClient struct {
	cfg    ChatConfig
	client *http.Client
}

// NewChatClient creates a chat-completions client.
func NewChatClient(cfg ChatConfig) *ChatClient {
	if cfg.Name == "" {
		cfg.Name = "openai"
		if cfg.Deployment != "" {
			cfg.Name = "azure-openai"
		}
	}
	if cfg.Deployment != "" && cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAzureAPIVersion
	}
	return &ChatClient{cfg: cfg, client: defaultHTTPClient(cfg.HTTPClient)}
}

// Name returns the provider name used in logs and metrics.
func (c *ChatClient) Name() string { return c.cfg.Name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends the request as a chat completion.
func (c *ChatClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if c.cfg.Endpoint == "" {
		return nil, fmt.Errorf("%s: %w: endpoint is empty", c.cfg.Name, ErrNotConfigured)
	}

	start := time.Now()

	body := chatRequest{
		Model:       firstNonEmpty(req.Model, c.cfg.Model),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = c.cfg.MaxTokens
	}
	if req.SystemPrompt != "" {
		body.Messages = append(body.Messages, chatMessage{Role: string(RoleSystem), Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		if c.cfg.Deployment != "" {
			headers["api-key"] = c.cfg.APIKey
		} else {
			headers["Authorization"] = "Bearer " + c.cfg.APIKey
		}
	}

	var out chatResponse
	if err := postJSON(ctx, c.client, c.cfg.Name, c.url(), headers, body, &out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("%s: %w: no choices", c.cfg.Name, ErrEmptyResponse)
	}

	return &CompletionResponse{
		Content:      strings.TrimSpace(out.Choices[0].Message.Content),
		Model:        out.Model,
		FinishReason: out.Choices[0].FinishReason,
		Usage: TokenUsage{
			InputTokens:  out.Usage.PromptTokens,
			OutputTokens: out.Usage.CompletionTokens,
			TotalTokens:  out.Usage.TotalTokens,
		},
		Duration: time.Since(start),
	}, nil
}

func (c *ChatClient) url() string {
	base := strings.TrimRight(normalizeEndpoint(c.cfg.Endpoint), "/")
	if c.cfg.Deployment != "" {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			base, url.PathEscape(c.cfg.Deployment), url.QueryEscape(c.cfg.APIVersion))
	}
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base + "/chat/completions"
}

func normalizeEndpoint(endpoint string) string {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return "https://" + endpoint
	}
	return endpoint
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
