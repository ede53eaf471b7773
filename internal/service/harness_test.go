package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/supportdesk/internal/domain"
	"github.com/spec-kit/supportdesk/internal/events"
)

type harness struct {
	store     *memoryStore
	mailer    *recordingMailer
	counts    *recordingCounts
	tickets   *TicketService
	lifecycle *LifecycleService
	gdpr      *GDPRService
	team      *TeamService
	settings  domain.Settings

	admin    *domain.Principal
	manager  *domain.Principal
	agent    *domain.Principal
	agent2   *domain.Principal
	customer *domain.Principal
	other    *domain.Principal
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := newMemoryStore()
	mailer := &recordingMailer{}
	counts := newRecordingCounts()
	dispatcher := events.NewInMemoryDispatcher(nil)

	h := &harness{
		store:    store,
		mailer:   mailer,
		counts:   counts,
		settings: domain.DefaultSettings(),
	}
	h.tickets = NewTicketService(TicketDependencies{
		TicketRepo: store.ticketRepo(),
		ReplyRepo:  store.replyRepo(),
	})
	h.lifecycle = NewLifecycleService(LifecycleDependencies{
		TicketRepo:    store.ticketRepo(),
		ReplyRepo:     store.replyRepo(),
		PrincipalRepo: store.principalRepo(),
		Dispatcher:    dispatcher,
	})
	h.gdpr = NewGDPRService(GDPRDependencies{
		TicketRepo: store.ticketRepo(),
		ReplyRepo:  store.replyRepo(),
		Dispatcher: dispatcher,
		Now:        func() time.Time { return store.now },
	})
	h.team = NewTeamService(store.principalRepo(), store.ticketRepo(), counts, nil)

	NewNotificationService(mailer, "https://desk.example.com", nil, nil).RegisterHandlers(dispatcher)
	h.team.RegisterHandlers(dispatcher)

	h.admin = store.addPrincipal("Ada Admin", "ada@example.com", domain.RoleAdministrator)
	h.manager = store.addPrincipal("Max Manager", "max@example.com", domain.RoleSupportManager)
	h.agent = store.addPrincipal("Bob Agent", "bob@example.com", domain.RoleSupportAgent)
	h.agent2 = store.addPrincipal("Carol Agent", "carol@example.com", domain.RoleSupportAgent)
	h.customer = store.addPrincipal("Cathy Customer", "cathy@example.com", domain.RoleCustomer)
	h.other = store.addPrincipal("Oscar Other", "oscar@example.com", domain.RoleCustomer)
	return h
}

func (h *harness) openTicket(t *testing.T, owner *domain.Principal) *domain.Ticket {
	t.Helper()
	ticket, err := h.tickets.CreateTicket(context.Background(), owner, &h.settings, TicketCreateInput{
		Subject:     "Printer on fire",
		Description: "It is on fire.",
	})
	require.NoError(t, err)
	return ticket
}

func notes(replies []domain.Reply) []string {
	var out []string
	for _, r := range replies {
		if r.IsSystemNote {
			out = append(out, r.Body)
		}
	}
	return out
}
