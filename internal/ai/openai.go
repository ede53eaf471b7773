package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/spec-kit/supportdesk/internal/domain"
)

const defaultOpenAIModel = "gpt-4o-mini"

// reasoningPrefixes detects model families that reject system messages and
// take max_completion_tokens instead of max_tokens.
var reasoningPrefixes = []string{"o1", "o3", "o4", "gpt-5"}

// OpenAI implements Provider over the Chat Completions API.
type OpenAI struct {
	baseURL    string
	httpClient *http.Client
}

// NewOpenAI creates the provider. An empty baseURL uses the SDK default.
func NewOpenAI(baseURL string, httpClient *http.Client) *OpenAI {
	return &OpenAI{baseURL: baseURL, httpClient: httpClient}
}

func (p *OpenAI) Name() domain.AIProvider { return domain.AIProviderOpenAI }

func (p *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
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
	client := openai.NewClient(opts...)

	resp, err := client.Chat.Completions.New(ctx, buildOpenAIParams(req))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &ProviderError{Provider: p.Name(), StatusCode: apiErr.StatusCode, Message: apiErr.Message, Err: err}
		}
		return "", &ProviderError{Provider: p.Name(), Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: p.Name(), Err: ErrEmptyCompletion}
	}
	return resp.Choices[0].Message.Content, nil
}

// buildOpenAIParams shapes the request for the model family: reasoning
// models get the system prompt folded into the user turn.
func buildOpenAIParams(req Request) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	params := openai.ChatCompletionNewParams{Model: model}

	if IsReasoningModel(model) {
		params.Messages = []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.System + "\n\n" + req.Prompt),
		}
		if req.MaxTokens > 0 {
			params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
		}
		return params
	}

	params.Messages = []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(req.System),
		openai.UserMessage(req.Prompt),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	params.Temperature = openai.Float(req.Temperature)
	return params
}

// IsReasoningModel reports whether model belongs to the reasoning families.
func IsReasoningModel(model string) bool {
	model = strings.ToLower(model)
	for _, prefix := range reasoningPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}
