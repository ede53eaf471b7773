package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/spec-kit/supportdesk/internal/domain"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// Anthropic implements Provider over the Messages API. The system prompt
// travels in its own field, never as a message.
type Anthropic struct {
	baseURL    string
	httpClient *http.Client
}

// NewAnthropic creates the provider. An empty baseURL uses the SDK default.
func NewAnthropic(baseURL string, httpClient *http.Client) *Anthropic {
	return &Anthropic{baseURL: baseURL, httpClient: httpClient}
}

func (p *Anthropic) Name() domain.AIProvider { return domain.AIProviderAnthropic }

func (p *Anthropic) Generate(ctx context.Context, req Request) (string, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(req.APIKey),
		option.WithMaxRetries(0),
	}
	if p.baseURL != "" {
		opts = append(opts, option.WithBaseURL(p.baseURL))
	}
	if p.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(p.httpClient))
	}
	client := anthropic.NewClient(opts...)

	model := req.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		System:    []anthropic.TextBlockParam{{Type: "text", Text: req.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(req.Temperature),
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &ProviderError{Provider: p.Name(), StatusCode: apiErr.StatusCode, Message: apiErr.Error(), Err: err}
		}
		return "", &ProviderError{Provider: p.Name(), Err: err}
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}
