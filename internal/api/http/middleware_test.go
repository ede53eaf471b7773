package http_test

import (
	"context"
	"io"
	"net/http/httptest"
	"time"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/spec-kit/supportdesk/internal/ai"
	httptransport "github.com/spec-kit/supportdesk/internal/api/http"
	"github.com/spec-kit/supportdesk/internal/domain"
	"github.com/spec-kit/supportdesk/internal/observability"
)

type slowProvider struct {
	delay time.Duration
}

func (slowProvider) Name() domain.AIProvider { return domain.AIProviderOpenAI }

func (p slowProvider) Generate(ctx context.Context, _ ai.Request) (string, error) {
	select {
	case <-time.After(p.delay):
		return "Drafted after a while.", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func waitOrDeadline(delay time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		select {
		case <-time.After(delay):
			return c.SendString("done")
		case <-c.UserContext().Done():
			return c.UserContext().Err()
		}
	}
}

var _ = Describe("request timeout", func() {
	const (
		requestTimeout = 50 * time.Millisecond
		providerDelay  = 150 * time.Millisecond
		aiTimeout      = 2 * time.Second
	)

	var app *fiber.App

	BeforeEach(func() {
		logger := zap.NewNop()
		metrics := observability.NewMetrics()
		adapter := ai.NewAdapterWithProviders(aiTimeout, metrics, logger, slowProvider{delay: providerDelay})
		settings := domain.AISettings{Enabled: true, Provider: domain.AIProviderOpenAI, APIKey: "test-key"}

		app = fiber.New(fiber.Config{DisableStartupMessage: true})
		httptransport.RegisterMiddlewares(app, logger, metrics, requestTimeout)
		app.Post("/ai/generate-reply", func(c *fiber.Ctx) error {
			text, err := adapter.GenerateReply(c.UserContext(), settings, domain.Ticket{ID: 1, Subject: "Slow"}, nil, nil)
			if err != nil {
				return err
			}
			return c.JSON(fiber.Map{"success": true, "reply": text})
		})
		app.Post("/gdpr/cleanup", waitOrDeadline(providerDelay))
		app.Get("/tickets", waitOrDeadline(providerDelay))
	})

	send := func(method, path string) (int, string) {
		resp, err := app.Test(httptest.NewRequest(method, path, nil), -1)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp.StatusCode, string(raw)
	}

	It("lets AI drafts run until the provider timeout", func() {
		status, body := send(fiber.MethodPost, "/ai/generate-reply")
		Expect(status).To(Equal(fiber.StatusOK), body)
		Expect(body).To(ContainSubstring("Drafted after a while."))
	})

	It("lets a retention cleanup finish", func() {
		status, body := send(fiber.MethodPost, "/gdpr/cleanup/")
		Expect(status).To(Equal(fiber.StatusOK), body)
	})

	It("still bounds ordinary routes", func() {
		status, _ := send(fiber.MethodGet, "/tickets")
		Expect(status).To(Equal(fiber.StatusInternalServerError))
	})
})
