package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"sync"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/supportdesk/internal/ai"
	"github.com/spec-kit/supportdesk/internal/api/dto"
	httptransport "github.com/spec-kit/supportdesk/internal/api/http"
	"github.com/spec-kit/supportdesk/internal/api/http/handlers"
	"github.com/spec-kit/supportdesk/internal/auth"
	"github.com/spec-kit/supportdesk/internal/cache"
	"github.com/spec-kit/supportdesk/internal/config"
	"github.com/spec-kit/supportdesk/internal/domain"
	"github.com/spec-kit/supportdesk/internal/events"
	"github.com/spec-kit/supportdesk/internal/mail"
	"github.com/spec-kit/supportdesk/internal/observability"
	"github.com/spec-kit/supportdesk/internal/persistence"
	"github.com/spec-kit/supportdesk/internal/repository"
	"github.com/spec-kit/supportdesk/internal/repository/sqldb"
	"github.com/spec-kit/supportdesk/internal/service"
	"github.com/spec-kit/supportdesk/internal/worker"
)

type outbox struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (o *outbox) Send(_ context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) to(email string) []mail.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []mail.Message
	for _, msg := range o.sent {
		if msg.ToEmail == email {
			out = append(out, msg)
		}
	}
	return out
}

type session struct {
	token string
	nonce string
	id    int64
}

type testServer struct {
	app        *fiber.App
	principals repository.PrincipalRepository
	outbox     *outbox
}

func newTestServer() *testServer {
	ctx := context.Background()
	logger := zap.NewNop()

	db, err := persistence.OpenSQL(ctx, config.DatabaseConfig{
		Driver:        "sqlite3",
		DSN:           ":memory:",
		RunMigrations: true,
	}, logger)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(db.Close)

	tickets := sqldb.NewTicketRepository(db.DB)
	replies := sqldb.NewReplyRepository(db.DB)
	principals := sqldb.NewPrincipalRepository(db.DB)
	settingsRepo := sqldb.NewSettingsRepository(db.DB)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	tokens := auth.NewTokenManager("test-secret", 60, 60)
	sent := &outbox{}

	settings := service.NewSettingsService(settingsRepo, logger)
	authService := service.NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, principals, tokens, logger)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: tickets,
		ReplyRepo:  replies,
		Logger:     logger,
	})
	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo:    tickets,
		ReplyRepo:     replies,
		PrincipalRepo: principals,
		Dispatcher:    dispatcher,
		Logger:        logger,
	})
	gdpr := service.NewGDPRService(service.GDPRDependencies{
		TicketRepo: tickets,
		ReplyRepo:  replies,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	team := service.NewTeamService(principals, tickets, cache.Nop{}, logger)
	notifications := service.NewNotificationService(sent, "http://desk.test", metrics, logger)
	assistant := service.NewReplyAssistant(tickets, replies, principals, ai.NewAdapter(config.AIConfig{}, metrics, logger), logger)
	worker.StartNotificationWorker(dispatcher, notifications, team)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, 0)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler("supportdesk", "test", map[string]handlers.Pinger{"sqlite3": db}),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, settings),
		Lifecycle:      handlers.NewLifecycleHandler(lifecycle, settings),
		Settings:       handlers.NewSettingsHandler(settings),
		AI:             handlers.NewAIHandler(assistant, settings),
		Team:           handlers.NewTeamHandler(team),
		GDPR:           handlers.NewGDPRHandler(gdpr, settings),
		Metrics:        metrics,
		AuthMiddleware: auth.NewAuthMiddleware(tokens, principals, true),
	})

	return &testServer{app: app, principals: principals, outbox: sent}
}

func (s *testServer) do(method, path string, body any, sess *session) (int, []byte) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if sess != nil {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+sess.token)
		if sess.nonce != "" {
			req.Header.Set(auth.NonceHeader, sess.nonce)
		}
	}
	resp, err := s.app.Test(req, -1)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp.StatusCode, raw
}

func (s *testServer) doJSON(method, path string, body any, sess *session, out any) int {
	status, raw := s.do(method, path, body, sess)
	Expect(json.Unmarshal(raw, out)).To(Succeed(), string(raw))
	return status
}

func (s *testServer) register(name, email string) *session {
	var resp dto.SessionResponse
	status := s.doJSON(fiber.MethodPost, "/auth/register", dto.RegisterRequest{
		Name:     name,
		Email:    email,
		Password: "correct-horse",
	}, nil, &resp)
	Expect(status).To(Equal(fiber.StatusCreated))
	return &session{token: resp.Token, nonce: resp.Nonce, id: resp.Principal.ID}
}

func (s *testServer) login(email, password string) *session {
	var resp dto.SessionResponse
	status := s.doJSON(fiber.MethodPost, "/auth/login", dto.LoginRequest{Email: email, Password: password}, nil, &resp)
	Expect(status).To(Equal(fiber.StatusOK))
	return &session{token: resp.Token, nonce: resp.Nonce, id: resp.Principal.ID}
}

func (s *testServer) provisionAdmin() *session {
	hash, err := auth.HashPassword("admin-password", bcrypt.MinCost)
	Expect(err).NotTo(HaveOccurred())
	Expect(s.principals.Create(context.Background(), &domain.Principal{
		DisplayName:  "Ada Admin",
		Email:        "admin@example.com",
		PasswordHash: hash,
		Roles:        []domain.Role{domain.RoleAdministrator},
	})).To(Succeed())
	return s.login("admin@example.com", "admin-password")
}

func (s *testServer) openTicket(sess *session, subject string) int64 {
	var resp struct {
		Success  bool  `json:"success"`
		TicketID int64 `json:"ticket_id"`
	}
	status := s.doJSON(fiber.MethodPost, "/tickets", dto.CreateTicketRequest{
		Subject:     subject,
		Description: "Nothing works after the update.",
	}, sess, &resp)
	Expect(status).To(Equal(fiber.StatusCreated))
	Expect(resp.Success).To(BeTrue())
	return resp.TicketID
}

type errorBody struct {
	Success bool           `json:"success"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

var _ = Describe("HTTP routes", func() {
	var (
		server   *testServer
		customer *session
	)

	BeforeEach(func() {
		server = newTestServer()
		customer = server.register("Cathy Customer", "cathy@example.com")
	})

	Describe("probes and metrics", func() {
		It("reports liveness and readiness", func() {
			status, raw := server.do(fiber.MethodGet, "/health/live", nil, nil)
			Expect(status).To(Equal(fiber.StatusOK))
			Expect(string(raw)).To(ContainSubstring(`"alive"`))

			var ready map[string]any
			Expect(server.doJSON(fiber.MethodGet, "/health/ready", nil, nil, &ready)).To(Equal(fiber.StatusOK))
			Expect(ready["dependencies"]).To(HaveKeyWithValue("sqlite3", "ok"))
		})

		It("exposes request metrics", func() {
			server.do(fiber.MethodGet, "/health/live", nil, nil)
			status, raw := server.do(fiber.MethodGet, "/metrics", nil, nil)
			Expect(status).To(Equal(fiber.StatusOK))
			Expect(string(raw)).To(ContainSubstring("supportdesk_http_requests_total"))
		})

		It("answers unknown routes with the error envelope", func() {
			var body errorBody
			Expect(server.doJSON(fiber.MethodGet, "/nope", nil, nil, &body)).To(Equal(fiber.StatusNotFound))
			Expect(body.Success).To(BeFalse())
			Expect(body.Code).To(Equal("NOT_FOUND"))
		})
	})

	Describe("authentication", func() {
		It("registers customers with the customer role", func() {
			var resp dto.SessionResponse
			status := server.doJSON(fiber.MethodPost, "/auth/register", dto.RegisterRequest{
				Name:     "Dan",
				Email:    "Dan@Example.com",
				Password: "long-enough",
			}, nil, &resp)
			Expect(status).To(Equal(fiber.StatusCreated))
			Expect(resp.Token).NotTo(BeEmpty())
			Expect(resp.Nonce).NotTo(BeEmpty())
			Expect(resp.Principal.Email).To(Equal("dan@example.com"))
			Expect(resp.Principal.Roles).To(Equal([]domain.Role{domain.RoleCustomer}))
		})

		It("rejects duplicate emails and short passwords", func() {
			var body errorBody
			status := server.doJSON(fiber.MethodPost, "/auth/register", dto.RegisterRequest{
				Name: "Again", Email: "cathy@example.com", Password: "long-enough",
			}, nil, &body)
			Expect(status).To(Equal(fiber.StatusConflict))
			Expect(body.Code).To(Equal("CONFLICT"))

			status = server.doJSON(fiber.MethodPost, "/auth/register", dto.RegisterRequest{
				Name: "Short", Email: "short@example.com", Password: "abc",
			}, nil, &body)
			Expect(status).To(Equal(fiber.StatusBadRequest))
			Expect(body.Details).To(HaveKeyWithValue("field", "password"))
		})

		It("rejects bad credentials and missing tokens", func() {
			var body errorBody
			status := server.doJSON(fiber.MethodPost, "/auth/login", dto.LoginRequest{
				Email: "cathy@example.com", Password: "wrong-password",
			}, nil, &body)
			Expect(status).To(Equal(fiber.StatusUnauthorized))

			status = server.doJSON(fiber.MethodGet, "/tickets", nil, nil, &body)
			Expect(status).To(Equal(fiber.StatusUnauthorized))
			Expect(body.Code).To(Equal("UNAUTHORIZED"))
		})

		It("issues fresh nonces", func() {
			var resp map[string]any
			status := server.doJSON(fiber.MethodGet, "/auth/nonce", nil, &session{token: customer.token}, &resp)
			Expect(status).To(Equal(fiber.StatusOK))
			Expect(resp["nonce"]).NotTo(BeEmpty())
		})

		It("requires a nonce on mutating requests", func() {
			var body errorBody
			noNonce := &session{token: customer.token}
			status := server.doJSON(fiber.MethodPost, "/tickets", dto.CreateTicketRequest{
				Subject: "Printer", Description: "Jammed",
			}, noNonce, &body)
			Expect(status).To(Equal(fiber.StatusForbidden))
			Expect(body.Success).To(BeFalse())
			Expect(body.Code).To(Equal("FORBIDDEN"))

			other := server.register("Otto Other", "otto@example.com")
			forged := &session{token: customer.token, nonce: other.nonce}
			status = server.doJSON(fiber.MethodPost, "/tickets", dto.CreateTicketRequest{
				Subject: "Printer", Description: "Jammed",
			}, forged, &body)
			Expect(status).To(Equal(fiber.StatusForbidden))

			status, _ = server.do(fiber.MethodGet, "/tickets", nil, noNonce)
			Expect(status).To(Equal(fiber.StatusOK))
		})
	})

	Describe("tickets", func() {
		var (
			admin    *session
			ticketID int64
		)

		BeforeEach(func() {
			admin = server.provisionAdmin()
			ticketID = server.openTicket(customer, "Cannot log in")
		})

		It("validates the create payload", func() {
			var body errorBody
			status := server.doJSON(fiber.MethodPost, "/tickets", dto.CreateTicketRequest{Subject: "  "}, customer, &body)
			Expect(status).To(Equal(fiber.StatusBadRequest))
			Expect(body.Code).To(Equal("VALIDATION_FAILED"))
			Expect(body.Details).To(HaveKeyWithValue("field", "subject"))
		})

		It("lets owners and administrators read a ticket", func() {
			var ticket dto.TicketResponse
			Expect(server.doJSON(fiber.MethodGet, fmt.Sprintf("/tickets/%d", ticketID), nil, customer, &ticket)).
				To(Equal(fiber.StatusOK))
			Expect(ticket.Subject).To(Equal("Cannot log in"))
			Expect(ticket.Status).To(Equal(domain.TicketStatusNew))
			Expect(ticket.Priority).To(Equal(domain.TicketPriorityNormal))
			Expect(ticket.CustomerEmail).To(Equal("cathy@example.com"))

			Expect(server.doJSON(fiber.MethodGet, fmt.Sprintf("/tickets/%d", ticketID), nil, admin, &ticket)).
				To(Equal(fiber.StatusOK))

			other := server.register("Otto Other", "otto@example.com")
			var body errorBody
			Expect(server.doJSON(fiber.MethodGet, fmt.Sprintf("/tickets/%d", ticketID), nil, other, &body)).
				To(Equal(fiber.StatusNotFound))
			Expect(body.Code).To(Equal("NOT_FOUND"))
			Expect(server.doJSON(fiber.MethodGet, fmt.Sprintf("/tickets/%d/replies", ticketID), nil, other, &body)).
				To(Equal(fiber.StatusNotFound))

			var list []dto.TicketResponse
			Expect(server.doJSON(fiber.MethodGet, "/tickets", nil, other, &list)).To(Equal(fiber.StatusOK))
			Expect(list).To(BeEmpty())

			Expect(server.doJSON(fiber.MethodGet, "/tickets/9999", nil, admin, &body)).To(Equal(fiber.StatusNotFound))
			Expect(server.doJSON(fiber.MethodGet, "/tickets/abc", nil, admin, &body)).To(Equal(fiber.StatusBadRequest))
		})

		It("changes status and writes a system note", func() {
			var ticket dto.TicketResponse
			status := server.doJSON(fiber.MethodPatch, fmt.Sprintf("/tickets/%d", ticketID),
				map[string]any{"status": "in_progress"}, admin, &ticket)
			Expect(status).To(Equal(fiber.StatusOK))
			Expect(ticket.Status).To(Equal(domain.TicketStatusInProgress))

			var replies []dto.ReplyResponse
			Expect(server.doJSON(fiber.MethodGet, fmt.Sprintf("/tickets/%d/replies", ticketID), nil, customer, &replies)).
				To(Equal(fiber.StatusOK))
			Expect(replies).To(HaveLen(1))
			Expect(replies[0].IsSystemNote).To(BeTrue())
			Expect(server.outbox.to("cathy@example.com")).To(HaveLen(1))

			var body errorBody
			status = server.doJSON(fiber.MethodPatch, fmt.Sprintf("/tickets/%d", ticketID),
				map[string]any{"status": "RESOLVED"}, customer, &body)
			Expect(status).To(Equal(fiber.StatusForbidden))

			status = server.doJSON(fiber.MethodPatch, fmt.Sprintf("/tickets/%d", ticketID),
				map[string]any{"status": "CLOSED"}, admin, &body)
			Expect(status).To(Equal(fiber.StatusBadRequest))
		})

		It("assigns to a team member and notifies them", func() {
			agent := server.register("Bob Agent", "bob@example.com")

			var member dto.PrincipalResponse
			status := server.doJSON(fiber.MethodPost, "/team-members", dto.AddTeamMemberRequest{
				Email: "bob@example.com",
				Role:  domain.RoleSupportAgent,
			}, admin, &member)
			Expect(status).To(Equal(fiber.StatusCreated))
			Expect(member.Roles).To(ContainElement(domain.RoleSupportAgent))

			var resp struct {
				Success bool               `json:"success"`
				Ticket  dto.TicketResponse `json:"ticket"`
			}
			status = server.doJSON(fiber.MethodPatch, fmt.Sprintf("/tickets/%d/assign", ticketID),
				dto.AssignTicketRequest{AssigneeID: &agent.id}, admin, &resp)
			Expect(status).To(Equal(fiber.StatusOK))
			Expect(resp.Success).To(BeTrue())
			Expect(resp.Ticket.AssigneeID).To(HaveValue(Equal(agent.id)))
			Expect(server.outbox.to("bob@example.com")).To(HaveLen(1))

			var list []dto.TicketResponse
			Expect(server.doJSON(fiber.MethodGet, "/tickets", nil, agent, &list)).To(Equal(fiber.StatusOK))
			Expect(list).To(HaveLen(1))

			var stats []map[string]any
			Expect(server.doJSON(fiber.MethodGet, "/team-members/stats", nil, admin, &stats)).To(Equal(fiber.StatusOK))
			Expect(stats).To(ContainElement(HaveKeyWithValue("assigned", BeNumerically("==", 1))))

			status = server.doJSON(fiber.MethodPatch, fmt.Sprintf("/tickets/%d/assign", ticketID),
				map[string]any{"assignee_id": 0}, admin, &resp)
			Expect(status).To(Equal(fiber.StatusOK))
			Expect(resp.Ticket.AssigneeID).To(BeNil())
		})

		It("threads replies newest first unless asked otherwise", func() {
			var created map[string]any
			for _, text := range []string{"first", "second"} {
				status := server.doJSON(fiber.MethodPost, fmt.Sprintf("/tickets/%d/replies", ticketID),
					dto.CreateReplyRequest{Reply: text}, customer, &created)
				Expect(status).To(Equal(fiber.StatusCreated))
				Expect(created).To(HaveKeyWithValue("success", true))
				Expect(created).To(HaveKey("reply_id"))
			}

			var replies []dto.ReplyResponse
			server.doJSON(fiber.MethodGet, fmt.Sprintf("/tickets/%d/replies", ticketID), nil, customer, &replies)
			Expect(replies).To(HaveLen(2))
			Expect(replies[0].Body).To(Equal("second"))

			server.doJSON(fiber.MethodGet, fmt.Sprintf("/tickets/%d/replies?order=asc", ticketID), nil, customer, &replies)
			Expect(replies[0].Body).To(Equal("first"))
		})

		It("rejects AI drafts while the feature is disabled", func() {
			var body errorBody
			status := server.doJSON(fiber.MethodPost, "/ai/generate-reply",
				dto.GenerateReplyRequest{TicketID: ticketID}, admin, &body)
			Expect(status).To(Equal(fiber.StatusBadRequest))
			Expect(body.Code).To(Equal("NOT_CONFIGURED"))
		})
	})

	Describe("settings", func() {
		It("is restricted to administrators", func() {
			var body errorBody
			Expect(server.doJSON(fiber.MethodGet, "/settings", nil, customer, &body)).To(Equal(fiber.StatusForbidden))
			Expect(body.Code).To(Equal("FORBIDDEN"))
		})

		It("masks the provider key on the way out", func() {
			admin := server.provisionAdmin()

			next := domain.DefaultSettings()
			next.AI.Enabled = true
			next.AI.APIKey = "sk-abcdefghijkl"
			var saved domain.Settings
			Expect(server.doJSON(fiber.MethodPost, "/settings", next, admin, &saved)).To(Equal(fiber.StatusOK))
			Expect(saved.AI.APIKey).To(Equal("********ijkl"))

			// Sending the masked key back keeps the stored one.
			next.AI.APIKey = saved.AI.APIKey
			next.General.DefaultPriority = domain.TicketPriorityHigh
			Expect(server.doJSON(fiber.MethodPost, "/settings", next, admin, &saved)).To(Equal(fiber.StatusOK))

			var loaded domain.Settings
			Expect(server.doJSON(fiber.MethodGet, "/settings", nil, admin, &loaded)).To(Equal(fiber.StatusOK))
			Expect(loaded.AI.APIKey).To(Equal("********ijkl"))
			Expect(loaded.General.DefaultPriority).To(Equal(domain.TicketPriorityHigh))

			next.Retention.RetentionDays = 5
			var body errorBody
			Expect(server.doJSON(fiber.MethodPost, "/settings", next, admin, &body)).To(Equal(fiber.StatusBadRequest))
			Expect(body.Details).To(HaveKeyWithValue("field", "retention.retention_days"))
		})
	})

	Describe("gdpr", func() {
		It("exports and anonymizes the caller's data", func() {
			ticketID := server.openTicket(customer, "Change my address")

			var export domain.DataExport
			Expect(server.doJSON(fiber.MethodGet, "/gdpr/my-data", nil, customer, &export)).To(Equal(fiber.StatusOK))
			Expect(export.Principal.Email).To(Equal("cathy@example.com"))
			Expect(export.Tickets).To(HaveLen(1))

			var body errorBody
			Expect(server.doJSON(fiber.MethodDelete, "/gdpr/my-data?type=shred", nil, customer, &body)).
				To(Equal(fiber.StatusBadRequest))

			var result dto.CleanupResponse
			Expect(server.doJSON(fiber.MethodDelete, "/gdpr/my-data", nil, customer, &result)).To(Equal(fiber.StatusOK))
			Expect(result.Success).To(BeTrue())
			Expect(result.Anonymized).To(Equal(1))

			admin := server.provisionAdmin()
			var ticket dto.TicketResponse
			Expect(server.doJSON(fiber.MethodGet, fmt.Sprintf("/tickets/%d", ticketID), nil, admin, &ticket)).
				To(Equal(fiber.StatusOK))
			Expect(ticket.OwnerID).To(Equal(domain.AnonymousPrincipalID))
			Expect(ticket.CustomerEmail).To(Equal(domain.AnonymizedEmail))
			Expect(ticket.AnonymizedAt).NotTo(BeNil())
		})

		It("guards retention administration", func() {
			var body errorBody
			Expect(server.doJSON(fiber.MethodGet, "/gdpr/data-retention", nil, customer, &body)).
				To(Equal(fiber.StatusForbidden))

			admin := server.provisionAdmin()
			Expect(server.doJSON(fiber.MethodPost, "/gdpr/cleanup", nil, admin, &body)).To(Equal(fiber.StatusBadRequest))
			Expect(body.Code).To(Equal("NOT_CONFIGURED"))

			var retention dto.RetentionResponse
			status := server.doJSON(fiber.MethodPost, "/gdpr/data-retention", domain.RetentionSettings{
				Enabled:                true,
				RetentionDays:          30,
				AnonymizeInsteadDelete: true,
			}, admin, &retention)
			Expect(status).To(Equal(fiber.StatusOK))
			Expect(retention.Enabled).To(BeTrue())
			Expect(retention.EligibleNow).To(Equal(0))

			var result dto.CleanupResponse
			Expect(server.doJSON(fiber.MethodPost, "/gdpr/cleanup", nil, admin, &result)).To(Equal(fiber.StatusOK))
			Expect(result.Success).To(BeTrue())
			Expect(result.Processed).To(Equal(0))
		})
	})
})
