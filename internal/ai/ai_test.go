package ai_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spec-kit/supportdesk/internal/ai"
	"github.com/spec-kit/supportdesk/internal/domain"
)

type countingProvider struct {
	name  domain.AIProvider
	calls int
	last  ai.Request
	text  string
	err   error
}

func (p *countingProvider) Name() domain.AIProvider { return p.name }

func (p *countingProvider) Generate(_ context.Context, req ai.Request) (string, error) {
	p.calls++
	p.last = req
	return p.text, p.err
}

type capturedRequest struct {
	path   string
	header http.Header
	body   map[string]any
}

func captureServer(status int, response string, captured *capturedRequest) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		captured.path = r.URL.Path
		captured.header = r.Header.Clone()
		captured.body = map[string]any{}
		_ = json.Unmarshal(raw, &captured.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
}

var ticket = domain.Ticket{
	ID:          4,
	OwnerID:     10,
	Subject:     "Cannot log in",
	Description: "The login page spins forever.",
	Priority:    domain.TicketPriorityHigh,
	Status:      domain.TicketStatusNew,
}

func settingsFor(provider domain.AIProvider, model string) domain.AISettings {
	return domain.AISettings{
		Enabled:     true,
		Provider:    provider,
		APIKey:      "test-key",
		Model:       model,
		MaxTokens:   300,
		Temperature: 0.4,
	}
}

var _ = Describe("Adapter", func() {
	var provider *countingProvider

	BeforeEach(func() {
		provider = &countingProvider{name: domain.AIProviderOpenAI, text: "Happy to help."}
	})

	DescribeTable("refuses to call a provider when not configured",
		func(mutate func(*domain.AISettings)) {
			adapter := ai.NewAdapterWithProviders(time.Second, nil, nil, provider)
			settings := settingsFor(domain.AIProviderOpenAI, "")
			mutate(&settings)

			_, err := adapter.GenerateReply(context.Background(), settings, ticket, nil, nil)
			Expect(errors.Is(err, ai.ErrNotConfigured)).To(BeTrue())
			Expect(provider.calls).To(BeZero())
		},
		Entry("disabled", func(s *domain.AISettings) { s.Enabled = false }),
		Entry("missing key", func(s *domain.AISettings) { s.APIKey = "  " }),
		Entry("unknown provider", func(s *domain.AISettings) { s.Provider = "watson" }),
	)

	It("returns the completion verbatim", func() {
		provider.text = "  Line one.\n\nLine two.  "
		adapter := ai.NewAdapterWithProviders(time.Second, nil, nil, provider)

		text, err := adapter.GenerateReply(context.Background(), settingsFor(domain.AIProviderOpenAI, ""), ticket, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("  Line one.\n\nLine two.  "))
		Expect(provider.last.System).To(Equal(ai.SystemPrompt))
		Expect(provider.last.MaxTokens).To(Equal(300))
	})

	It("treats an empty completion as a provider error", func() {
		provider.text = "   "
		adapter := ai.NewAdapterWithProviders(time.Second, nil, nil, provider)

		_, err := adapter.GenerateReply(context.Background(), settingsFor(domain.AIProviderOpenAI, ""), ticket, nil, nil)
		var perr *ai.ProviderError
		Expect(errors.As(err, &perr)).To(BeTrue())
		Expect(errors.Is(err, ai.ErrEmptyCompletion)).To(BeTrue())
	})

	It("wraps plain provider failures", func() {
		provider.err = errors.New("connection reset")
		adapter := ai.NewAdapterWithProviders(time.Second, nil, nil, provider)

		_, err := adapter.GenerateReply(context.Background(), settingsFor(domain.AIProviderOpenAI, ""), ticket, nil, nil)
		var perr *ai.ProviderError
		Expect(errors.As(err, &perr)).To(BeTrue())
		Expect(perr.Provider).To(Equal(domain.AIProviderOpenAI))
	})
})

var _ = Describe("BuildContext", func() {
	It("labels replies by ticket ownership in order", func() {
		thread := []domain.Reply{
			{ID: 1, AuthorID: 10, Body: "Still broken"},
			{ID: 2, AuthorID: 20, Body: "Clearing the cache may help"},
			{ID: 3, AuthorID: 30, Body: "Escalated"},
		}
		names := map[int64]string{10: "Cathy", 20: "Bob"}

		prompt := ai.BuildContext(ticket, thread, names)
		Expect(prompt).To(ContainSubstring("Subject: Cannot log in"))
		Expect(prompt).To(ContainSubstring("Category: Uncategorized"))
		Expect(prompt).To(ContainSubstring("[CUSTOMER] Cathy:\nStill broken"))
		Expect(prompt).To(ContainSubstring("[SUPPORT AGENT] Bob:\nClearing the cache may help"))
		Expect(prompt).To(ContainSubstring("[SUPPORT AGENT]:\nEscalated"))
		Expect(strings.Index(prompt, "Still broken")).To(BeNumerically("<", strings.Index(prompt, "Escalated")))
		Expect(prompt).To(HaveSuffix(ai.InstructionSuffix))
	})
})

var _ = Describe("OpenAI", func() {
	const completion = `{"id":"c1","object":"chat.completion","created":1,"model":"m",
		"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Hello from OpenAI"}}]}`

	var (
		captured capturedRequest
		server   *httptest.Server
		adapter  *ai.Adapter
	)

	BeforeEach(func() {
		captured = capturedRequest{}
		server = captureServer(http.StatusOK, completion, &captured)
		adapter = ai.NewAdapterWithProviders(5*time.Second, nil, nil, ai.NewOpenAI(server.URL+"/v1/", server.Client()))
	})

	AfterEach(func() {
		server.Close()
	})

	It("sends system and user messages with temperature for chat models", func() {
		text, err := adapter.GenerateReply(context.Background(), settingsFor(domain.AIProviderOpenAI, "gpt-4o"), ticket, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("Hello from OpenAI"))

		Expect(captured.path).To(HaveSuffix("/chat/completions"))
		Expect(captured.header.Get("Authorization")).To(Equal("Bearer test-key"))
		messages := captured.body["messages"].([]any)
		Expect(messages).To(HaveLen(2))
		Expect(messages[0].(map[string]any)["role"]).To(Equal("system"))
		Expect(captured.body).To(HaveKeyWithValue("max_tokens", BeNumerically("==", 300)))
		Expect(captured.body).To(HaveKey("temperature"))
	})

	It("folds the system prompt into the user turn for reasoning models", func() {
		_, err := adapter.GenerateReply(context.Background(), settingsFor(domain.AIProviderOpenAI, "o3-mini"), ticket, nil, nil)
		Expect(err).NotTo(HaveOccurred())

		messages := captured.body["messages"].([]any)
		Expect(messages).To(HaveLen(1))
		first := messages[0].(map[string]any)
		Expect(first["role"]).To(Equal("user"))
		Expect(first["content"]).To(HavePrefix(ai.SystemPrompt))
		Expect(captured.body).To(HaveKeyWithValue("max_completion_tokens", BeNumerically("==", 300)))
		Expect(captured.body).NotTo(HaveKey("max_tokens"))
		Expect(captured.body).NotTo(HaveKey("temperature"))
	})

	DescribeTable("IsReasoningModel",
		func(model string, expected bool) {
			Expect(ai.IsReasoningModel(model)).To(Equal(expected))
		},
		Entry("o1", "o1-preview", true),
		Entry("o4", "o4-mini", true),
		Entry("gpt-5", "GPT-5", true),
		Entry("gpt-4o", "gpt-4o-mini", false),
	)
})

var _ = Describe("Anthropic", func() {
	It("sends the system prompt as a top-level field", func() {
		var captured capturedRequest
		server := captureServer(http.StatusOK, `{"id":"msg_1","type":"message","role":"assistant","model":"claude",
			"content":[{"type":"text","text":"Hello from Claude"}],"stop_reason":"end_turn",
			"usage":{"input_tokens":1,"output_tokens":1}}`, &captured)
		defer server.Close()
		adapter := ai.NewAdapterWithProviders(5*time.Second, nil, nil, ai.NewAnthropic(server.URL+"/", server.Client()))

		text, err := adapter.GenerateReply(context.Background(), settingsFor(domain.AIProviderAnthropic, ""), ticket, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("Hello from Claude"))

		Expect(captured.path).To(HaveSuffix("/v1/messages"))
		Expect(captured.header.Get("X-Api-Key")).To(Equal("test-key"))
		Expect(captured.body).To(HaveKeyWithValue("model", "claude-3-5-haiku-latest"))
		Expect(captured.body).To(HaveKey("system"))
		messages := captured.body["messages"].([]any)
		Expect(messages).To(HaveLen(1))
		Expect(messages[0].(map[string]any)["role"]).To(Equal("user"))
	})
})

var _ = Describe("Gemini", func() {
	It("posts to generateContent with a system instruction", func() {
		var captured capturedRequest
		server := captureServer(http.StatusOK, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello "},{"text":"from Gemini"}]}}]}`, &captured)
		defer server.Close()
		adapter := ai.NewAdapterWithProviders(5*time.Second, nil, nil, ai.NewGemini(server.URL, server.Client()))

		text, err := adapter.GenerateReply(context.Background(), settingsFor(domain.AIProviderGemini, ""), ticket, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("Hello from Gemini"))

		Expect(captured.path).To(Equal("/v1beta/models/gemini-1.5-flash:generateContent"))
		Expect(captured.header.Get("x-goog-api-key")).To(Equal("test-key"))
		Expect(captured.body).To(HaveKey("systemInstruction"))
		config := captured.body["generationConfig"].(map[string]any)
		Expect(config["maxOutputTokens"]).To(BeNumerically("==", 300))
	})

	It("surfaces the API error message and status", func() {
		var captured capturedRequest
		server := captureServer(http.StatusTooManyRequests,
			`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`, &captured)
		defer server.Close()
		adapter := ai.NewAdapterWithProviders(5*time.Second, nil, nil, ai.NewGemini(server.URL, server.Client()))

		_, err := adapter.GenerateReply(context.Background(), settingsFor(domain.AIProviderGemini, ""), ticket, nil, nil)
		var perr *ai.ProviderError
		Expect(errors.As(err, &perr)).To(BeTrue())
		Expect(perr.StatusCode).To(Equal(http.StatusTooManyRequests))
		Expect(perr.Message).To(Equal("quota exceeded"))
	})
})
