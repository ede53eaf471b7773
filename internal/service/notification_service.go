package service

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/supportdesk/internal/domain"
	"github.com/spec-kit/supportdesk/internal/events"
	"github.com/spec-kit/supportdesk/internal/mail"
	"github.com/spec-kit/supportdesk/internal/observability"
)

// NotificationEvent names a lifecycle email.
type NotificationEvent string

const (
	NotifyAssignment   NotificationEvent = "assignment"
	NotifyReassignment NotificationEvent = "reassignment"
	NotifyStatusChange NotificationEvent = "status_change"
)

// NotificationContext carries everything a template may reference.
type NotificationContext struct {
	Ticket    domain.Ticket
	Settings  domain.Settings
	Actor     *domain.Principal
	Assignee  *domain.Principal
	Previous  *domain.Principal
	OldStatus domain.TicketStatus
	NewStatus domain.TicketStatus
	// ToPrevious selects the informational variant sent to the replaced assignee.
	ToPrevious bool
	OccurredAt time.Time
}

// NotificationService renders and sends lifecycle emails.
type NotificationService struct {
	mailer  mail.Mailer
	siteURL string
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(mailer mail.Mailer, siteURL string, metrics *observability.Metrics, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		mailer:  mailer,
		siteURL: strings.TrimRight(siteURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// RegisterHandlers subscribes to lifecycle events.
func (n *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok || event.Settings == nil {
		return fmt.Errorf("malformed %s event", event.Type)
	}
	n.Notify(ctx, NotifyStatusChange, NotificationContext{
		Ticket:     event.Ticket,
		Settings:   *event.Settings,
		Actor:      event.Actor,
		OldStatus:  payload.OldStatus,
		NewStatus:  payload.NewStatus,
		OccurredAt: event.Timestamp,
	})
	return nil
}

// handleTicketAssigned sends to both assignees on a reassignment, to the new
// assignee otherwise, and to nobody when the ticket was unassigned.
func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok || event.Settings == nil {
		return fmt.Errorf("malformed %s event", event.Type)
	}
	if payload.Assignee == nil {
		return nil
	}
	nc := NotificationContext{
		Ticket:     event.Ticket,
		Settings:   *event.Settings,
		Actor:      event.Actor,
		Assignee:   payload.Assignee,
		Previous:   payload.Previous,
		OccurredAt: event.Timestamp,
	}
	if !IsReassignment(payload.Previous, payload.Assignee) {
		n.Notify(ctx, NotifyAssignment, nc)
		return nil
	}
	n.Notify(ctx, NotifyReassignment, nc)
	nc.ToPrevious = true
	n.Notify(ctx, NotifyReassignment, nc)
	return nil
}

// Notify sends one email. It returns true when the email was sent or the event
// is disabled in settings, and false when it could not be delivered. Failures
// are logged and never returned.
func (n *NotificationService) Notify(ctx context.Context, event NotificationEvent, nc NotificationContext) bool {
	if !eventEnabled(nc.Settings.Notifications, event) {
		n.metrics.RecordNotification(string(event), "disabled")
		return true
	}

	toName, toEmail := n.recipient(event, nc)
	logger := n.logger.With(
		zap.String("event", string(event)),
		zap.Int64("ticket_id", nc.Ticket.ID),
		zap.String("to", toEmail))
	if toEmail == "" {
		logger.Warn("notification skipped: recipient has no email")
		n.metrics.RecordNotification(string(event), "failed")
		return false
	}

	subjectTpl, bodyTpl := n.templates(event, nc)
	values := n.placeholders(nc)
	msg := mail.Message{
		FromName:  nc.Settings.Notifications.FromName,
		FromEmail: nc.Settings.Notifications.FromEmail,
		ToName:    toName,
		ToEmail:   toEmail,
		Subject:   renderTemplate(subjectTpl, values, false),
		HTMLBody:  renderTemplate(bodyTpl, values, true),
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		logger.Warn("notification failed", zap.Error(err))
		n.metrics.RecordNotification(string(event), "failed")
		return false
	}
	n.metrics.RecordNotification(string(event), "sent")
	return true
}

func eventEnabled(settings domain.NotificationSettings, event NotificationEvent) bool {
	switch event {
	case NotifyAssignment:
		return settings.Assignment
	case NotifyReassignment:
		return settings.Reassignment
	case NotifyStatusChange:
		return settings.StatusChange
	}
	return false
}

func (n *NotificationService) recipient(event NotificationEvent, nc NotificationContext) (string, string) {
	switch {
	case event == NotifyStatusChange:
		return nc.Ticket.CustomerName, nc.Ticket.CustomerEmail
	case nc.ToPrevious && nc.Previous != nil:
		return nc.Previous.DisplayName, nc.Previous.Email
	case nc.Assignee != nil:
		return nc.Assignee.DisplayName, nc.Assignee.Email
	}
	return "", ""
}

func (n *NotificationService) templates(event NotificationEvent, nc NotificationContext) (string, string) {
	s := nc.Settings.Notifications
	switch {
	case event == NotifyStatusChange:
		return orDefault(s.StatusChangeSubject, defaultStatusChangeSubject), orDefault(s.StatusChangeTemplate, defaultStatusChangeTemplate)
	case event == NotifyReassignment && nc.ToPrevious:
		return previousAssigneeSubject, previousAssigneeTemplate
	case event == NotifyReassignment:
		return orDefault(s.ReassignmentSubject, defaultReassignmentSubject), orDefault(s.ReassignmentTemplate, defaultReassignmentTemplate)
	default:
		return orDefault(s.AssignmentSubject, defaultAssignmentSubject), orDefault(s.AssignmentTemplate, defaultAssignmentTemplate)
	}
}

func (n *NotificationService) placeholders(nc NotificationContext) map[string]string {
	t := nc.Ticket
	category := "-"
	if t.Category != nil && *t.Category != "" {
		category = *t.Category
	}
	occurred := nc.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return map[string]string{
		"ticket_id":              strconv.FormatInt(t.ID, 10),
		"ticket_subject":         t.Subject,
		"ticket_priority":        string(t.Priority),
		"ticket_category":        category,
		"ticket_status":          string(t.Status),
		"old_status":             string(nc.OldStatus),
		"new_status":             string(nc.NewStatus),
		"customer_name":          t.CustomerName,
		"customer_email":         t.CustomerEmail,
		"assignee_name":          optionalName(nc.Assignee),
		"previous_assignee_name": optionalName(nc.Previous),
		"actor_name":             optionalName(nc.Actor),
		"created_at":             t.CreatedAt.UTC().Format(time.RFC1123),
		"updated_at":             t.UpdatedAt.UTC().Format(time.RFC1123),
		"occurred_at":            occurred.UTC().Format(time.RFC1123),
		"ticket_url":             n.ticketURL(nc.Settings.General, t.ID),
	}
}

func (n *NotificationService) ticketURL(general domain.GeneralSettings, id int64) string {
	base := general.TicketURLBase
	if base == "" {
		base = n.siteURL + "/tickets"
	}
	return fmt.Sprintf("%s/%d", strings.TrimRight(base, "/"), id)
}

// renderTemplate substitutes {name} placeholders. Unknown placeholders are left as written.
func renderTemplate(tpl string, values map[string]string, escape bool) string {
	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		if escape {
			value = html.EscapeString(value)
		}
		pairs = append(pairs, "{"+key+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

func optionalName(p *domain.Principal) string {
	if p == nil {
		return ""
	}
	return DisplayName(p)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
