package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultPromptBaseURL is the public generateContent endpoint.
const DefaultPromptBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// DefaultPromptModel is used when PromptConfig.Model is empty.
const DefaultPromptModel = "gemini-1.5-flash"

// PromptConfig configures a single-prompt generateContent client.
type PromptConfig struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string

	// Generation defaults, overridden per request when set there.
	Temperature     float64
	MaxOutputTokens int
	TopP            float64
	TopK            int

	HTTPClient *http.Client
}

// PromptClient calls a single-prompt generateContent API.
type PromptClient struct {
	cfg    PromptConfig
	client *http.Client
}

// NewPromptClient creates a generateContent client.
func NewPromptClient(cfg PromptConfig) *PromptClient {
	if cfg.Name == "" {
		cfg.Name = "gemini"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultPromptBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultPromptModel
	}
	return &PromptClient{cfg: cfg, client: defaultHTTPClient(cfg.HTTPClient)}
}

// Name returns the provider name used in logs and metrics.
func (c *PromptClient) Name() string { return c.cfg.Name }

type promptPart struct {
	Text string `json:"text"`
}

type promptContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []promptPart `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
	TopK            int     `json:"topK,omitempty"`
}

type promptRequest struct {
	Contents         []promptContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type promptResponse struct {
	Candidates []struct {
		Content      promptContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

// Complete flattens the request into one prompt and generates text.
func (c *PromptClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w: API key is empty", c.cfg.Name, ErrNotConfigured)
	}

	start := time.Now()
	model := firstNonEmpty(req.Model, c.cfg.Model)

	body := promptRequest{
		Contents: []promptContent{{
			Role:  string(RoleUser),
			Parts: []promptPart{{Text: req.Flatten()}},
		}},
		GenerationConfig: generationConfig{
			Temperature:     pickFloat(req.Temperature, c.cfg.Temperature),
			MaxOutputTokens: pickInt(req.MaxTokens, c.cfg.MaxOutputTokens),
			TopP:            pickFloat(req.TopP, c.cfg.TopP),
			TopK:            pickInt(req.TopK, c.cfg.TopK),
		},
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(model))
	headers := map[string]string{"x-goog-api-key": c.cfg.APIKey}

	var out promptResponse
	if err := postJSON(ctx, c.client, c.cfg.Name, endpoint, headers, body, &out); err != nil {
		return nil, err
	}
	if len(out.Candidates) == 0 {
		return nil, fmt.Errorf("%s: %w: no candidates", c.cfg.Name, ErrEmptyResponse)
	}

	var text strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	return &CompletionResponse{
		Content:      strings.TrimSpace(text.String()),
		Model:        firstNonEmpty(out.ModelVersion, model),
		FinishReason: out.Candidates[0].FinishReason,
		Usage: TokenUsage{
			InputTokens:  out.UsageMetadata.PromptTokenCount,
			OutputTokens: out.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  out.UsageMetadata.TotalTokenCount,
		},
		Duration: time.Since(start),
	}, nil
}

func pickFloat(v, fallback float64) float64 {
	if v != 0 {
		return v
	}
	return fallback
}

func pickInt(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}
