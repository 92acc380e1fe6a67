package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/envutil"
	"github.com/yungbote/seoflow-backend/internal/platform/httpx"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

// OpenAIConfig covers any OpenAI-compatible chat completions endpoint
// (OpenAI, OpenRouter, Together, local gateways).
type OpenAIConfig struct {
	Name       string
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	Pricing    Pricing
}

func OpenAIConfigFromEnv() OpenAIConfig {
	return OpenAIConfig{
		Name:       envutil.String("LLM_PROVIDER_NAME", "openai"),
		BaseURL:    strings.TrimRight(envutil.String("LLM_BASE_URL", "https://api.openai.com"), "/"),
		APIKey:     envutil.String("LLM_API_KEY", ""),
		Model:      envutil.String("LLM_MODEL", "gpt-4o-mini"),
		Timeout:    envutil.Seconds("LLM_TIMEOUT_SECONDS", 180*time.Second),
		MaxRetries: envutil.Int("LLM_MAX_RETRIES", 3),
	}
}

type openAIProvider struct {
	log        *logger.Logger
	cfg        OpenAIConfig
	httpClient *http.Client
}

func NewOpenAI(log *logger.Logger, cfg OpenAIConfig) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing LLM_API_KEY")
	}
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.Pricing == nil {
		cfg.Pricing = DefaultPricing()
	}
	return &openAIProvider{
		log:        log.With("provider", cfg.Name),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (p *openAIProvider) Name() string { return p.cfg.Name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	Temperature    *float64          `json:"temperature,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *openAIProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.cfg.Model
	}
	body := chatRequest{Model: model, MaxTokens: req.MaxTokens, Temperature: req.Temperature}
	if s := strings.TrimSpace(req.System); s != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: s})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})
	if req.JSON {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}

	var resp chatResponse
	err := httpx.Retry(ctx, p.cfg.MaxRetries, time.Second, 10*time.Second,
		func(attempt int, sleep time.Duration, err error) {
			p.log.Warn("LLM request retrying", "model", model, "attempt", attempt, "sleep", sleep.String(), "error", err)
		},
		func() error { return p.post(ctx, "/v1/chat/completions", body, &resp) },
	)
	if err != nil {
		status := 0
		if sc, ok := err.(httpx.HTTPStatusCoder); ok {
			status = sc.HTTPStatusCode()
		}
		return nil, &apperr.ExternalProviderError{Provider: p.cfg.Name, StatusCode: status, Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, apperr.Provider(p.cfg.Name, fmt.Errorf("no choices in response"))
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return nil, apperr.Provider(p.cfg.Name, fmt.Errorf("model refused: %s", msg.Refusal))
	}
	if resp.Model != "" {
		model = resp.Model
	}
	in, out := resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	if in == 0 && out == 0 {
		in = estimateTokens(req.System) + estimateTokens(req.Prompt)
		out = estimateTokens(msg.Content)
	}
	return &Completion{
		Content:      msg.Content,
		Provider:     p.cfg.Name,
		Model:        model,
		InputTokens:  in,
		OutputTokens: out,
		Cost:         p.cfg.Pricing.Cost(model, in, out),
	}, nil
}

func (p *openAIProvider) post(ctx context.Context, path string, body any, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpx.StatusError{StatusCode: resp.StatusCode, Body: string(raw), RetryAfter: httpx.RetryAfter(resp)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// FromEnv builds the primary provider and, when LLM_FALLBACK_API_KEY is set, a
// fallback provider tried after the primary fails.
func FromEnv(log *logger.Logger) (Provider, error) {
	primary, err := NewOpenAI(log, OpenAIConfigFromEnv())
	if err != nil {
		return nil, err
	}
	if envutil.String("LLM_FALLBACK_API_KEY", "") == "" {
		return primary, nil
	}
	fb := OpenAIConfigFromEnv()
	fb.Name = envutil.String("LLM_FALLBACK_PROVIDER_NAME", "fallback")
	fb.BaseURL = strings.TrimRight(envutil.String("LLM_FALLBACK_BASE_URL", fb.BaseURL), "/")
	fb.APIKey = envutil.String("LLM_FALLBACK_API_KEY", "")
	fb.Model = envutil.String("LLM_FALLBACK_MODEL", fb.Model)
	secondary, err := NewOpenAI(log, fb)
	if err != nil {
		return nil, fmt.Errorf("fallback provider: %w", err)
	}
	return WithFallback(primary, secondary), nil
}
