package classifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/frontline-backend/internal/observability"
	"github.com/yungbote/frontline-backend/internal/pkg/httpx"
	"github.com/yungbote/frontline-backend/internal/pkg/logger"
)

type ProviderConfig struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string
	// Subject names the conflict in the prompt.
	Subject   string
	MaxTokens int
	Retry     httpx.RetryPolicy
}

// Provider is one OpenAI-compatible chat endpoint.
type Provider struct {
	cfg    ProviderConfig
	client *openai.Client
	log    *logger.Logger
}

func NewProvider(baseLog *logger.Logger, cfg ProviderConfig) *Provider {
	oc := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Subject == "" {
		cfg.Subject = "the Syrian civil war"
	}
	if cfg.Retry == (httpx.RetryPolicy{}) {
		cfg.Retry = httpx.RetryPolicy{Initial: 2 * time.Second, Max: 20 * time.Second, MaxRetries: 2}
	}
	return &Provider{
		cfg:    cfg,
		client: openai.NewClientWithConfig(oc),
		log:    baseLog.With("service", "ClassifierProvider", "provider", cfg.Name),
	}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) Classify(ctx context.Context, contextText, originURL string) (*Result, error) {
	start := time.Now()
	req := openai.ChatCompletionRequest{
		Model: p.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(p.cfg.Subject, contextText, originURL)},
		},
		Temperature:    0.1,
		MaxTokens:      p.cfg.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	var content string
	err := httpx.Retry(ctx, p.cfg.Retry, func() error {
		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return wrapAPIError(err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%s: empty choices", p.cfg.Name)
		}
		content = resp.Choices[0].Message.Content
		return nil
	}, func(err error, wait time.Duration) {
		p.log.Debug("classifier retry", "error", err, "wait", wait.String())
	})
	if err != nil {
		observability.Current().ObserveClassifier(p.cfg.Name, "error", time.Since(start))
		return nil, fmt.Errorf("%s: %w", p.cfg.Name, err)
	}
	res, err := ParseResult(content)
	if err != nil {
		observability.Current().ObserveClassifier(p.cfg.Name, "bad_response", time.Since(start))
		return nil, fmt.Errorf("%s: %w", p.cfg.Name, err)
	}
	observability.Current().ObserveClassifier(p.cfg.Name, "ok", time.Since(start))
	return res, nil
}

// wrapAPIError surfaces the HTTP status of go-openai errors as an httpx.StatusError so the
// shared retry classification applies.
func wrapAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return fmt.Errorf("%s: %w", apiErr.Message, &httpx.StatusError{Code: apiErr.HTTPStatusCode})
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return fmt.Errorf("%v: %w", reqErr.Err, &httpx.StatusError{Code: reqErr.HTTPStatusCode})
	}
	return err
}
