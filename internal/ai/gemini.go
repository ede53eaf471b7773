package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spec-kit/supportdesk/internal/domain"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-1.5-flash"
)

// Gemini implements Provider over the generateContent REST endpoint.
type Gemini struct {
	baseURL    string
	httpClient *http.Client
}

// NewGemini creates the provider. An empty baseURL uses the public endpoint.
func NewGemini(baseURL string, httpClient *http.Client) *Gemini {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Gemini{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func (p *Gemini) Name() domain.AIProvider { return domain.AIProviderGemini }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	Error *geminiError `json:"error"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (p *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = defaultGeminiModel
	}
	wire := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		},
	}
	if req.System != "" {
		wire.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Err: fmt.Errorf("marshaling request: %w", err)}
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, url.PathEscape(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Err: fmt.Errorf("creating request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", req.APIKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Err: fmt.Errorf("sending request: %w", err)}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), StatusCode: httpResp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	var decoded geminiResponse
	decodeErr := json.Unmarshal(raw, &decoded)
	if httpResp.StatusCode != http.StatusOK || decoded.Error != nil {
		message := strings.TrimSpace(string(raw))
		if decodeErr == nil && decoded.Error != nil {
			message = decoded.Error.Message
		}
		return "", &ProviderError{Provider: p.Name(), StatusCode: httpResp.StatusCode, Message: message}
	}
	if decodeErr != nil {
		return "", &ProviderError{Provider: p.Name(), StatusCode: httpResp.StatusCode, Err: fmt.Errorf("decoding response: %w", decodeErr)}
	}
	if len(decoded.Candidates) == 0 {
		return "", &ProviderError{Provider: p.Name(), Err: ErrEmptyCompletion}
	}

	var text strings.Builder
	for _, part := range decoded.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	return text.String(), nil
}
