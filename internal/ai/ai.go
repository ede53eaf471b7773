// Package ai drafts reply suggestions for support tickets through one of
// several LLM providers, selected by the installation settings.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/supportdesk/internal/config"
	"github.com/spec-kit/supportdesk/internal/domain"
	"github.com/spec-kit/supportdesk/internal/observability"
)

var (
	// ErrNotConfigured is returned before any network call when AI replies are
	// disabled, the key is missing or the provider is unknown.
	ErrNotConfigured = errors.New("ai replies are not configured")
	// ErrEmptyCompletion is returned when a provider answers without text.
	ErrEmptyCompletion = errors.New("provider returned an empty completion")
)

// ProviderError is a typed failure from a provider backend.
type ProviderError struct {
	Provider   domain.AIProvider
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Request is the provider-neutral completion request.
type Request struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	System      string
	Prompt      string
}

// Provider is one backend.
type Provider interface {
	Name() domain.AIProvider
	Generate(ctx context.Context, req Request) (string, error)
}

// Adapter dispatches reply generation to the configured provider.
type Adapter struct {
	providers map[domain.AIProvider]Provider
	timeout   time.Duration
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewAdapter wires the three production backends.
func NewAdapter(cfg config.AIConfig, metrics *observability.Metrics, logger *zap.Logger) *Adapter {
	httpClient := &http.Client{Timeout: cfg.Timeout()}
	return NewAdapterWithProviders(cfg.Timeout(), metrics, logger,
		NewOpenAI(cfg.OpenAIBaseURL, httpClient),
		NewAnthropic(cfg.AnthropicURL, httpClient),
		NewGemini(cfg.GeminiBaseURL, httpClient),
	)
}

// NewAdapterWithProviders builds an adapter over explicit backends.
func NewAdapterWithProviders(timeout time.Duration, metrics *observability.Metrics, logger *zap.Logger, providers ...Provider) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Adapter{
		providers: make(map[domain.AIProvider]Provider, len(providers)),
		timeout:   timeout,
		metrics:   metrics,
		logger:    logger,
	}
	for _, p := range providers {
		a.providers[p.Name()] = p
	}
	return a
}

// GenerateReply drafts a reply for ticket given its chronological thread.
// authorNames resolves reply authors for the transcript and may be nil.
// The completion text is returned verbatim.
func (a *Adapter) GenerateReply(ctx context.Context, settings domain.AISettings, ticket domain.Ticket, thread []domain.Reply, authorNames map[int64]string) (string, error) {
	if !settings.Enabled || strings.TrimSpace(settings.APIKey) == "" {
		return "", ErrNotConfigured
	}
	provider, ok := a.providers[settings.Provider]
	if !ok {
		return "", ErrNotConfigured
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	req := Request{
		APIKey:      strings.TrimSpace(settings.APIKey),
		Model:       settings.Model,
		MaxTokens:   settings.MaxTokens,
		Temperature: settings.Temperature,
		System:      SystemPrompt,
		Prompt:      BuildContext(ticket, thread, authorNames),
	}

	start := time.Now()
	text, err := provider.Generate(ctx, req)
	if err == nil && strings.TrimSpace(text) == "" {
		err = &ProviderError{Provider: provider.Name(), Err: ErrEmptyCompletion}
	}
	if err != nil {
		a.metrics.RecordGeneration(string(provider.Name()), "error")
		a.logger.Warn("reply generation failed",
			zap.String("provider", string(provider.Name())),
			zap.Int64("ticket_id", ticket.ID),
			zap.Error(err))
		var perr *ProviderError
		if !errors.As(err, &perr) {
			err = &ProviderError{Provider: provider.Name(), Err: err}
		}
		return "", err
	}

	a.metrics.RecordGeneration(string(provider.Name()), "ok")
	a.logger.Debug("reply generated",
		zap.String("provider", string(provider.Name())),
		zap.Int64("ticket_id", ticket.ID),
		zap.Duration("duration", time.Since(start)))
	return text, nil
}
