// Package mail delivers rendered notification emails.
package mail

import (
	"context"
	"errors"
	"fmt"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/spec-kit/supportdesk/internal/config"
)

// Message is one outbound email.
type Message struct {
	FromName  string
	FromEmail string
	ToName    string
	ToEmail   string
	Subject   string
	HTMLBody  string
	TextBody  string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends through an SMTP relay.
type SMTPMailer struct {
	cfg    config.MailConfig
	logger *zap.Logger
}

// NewSMTPMailer builds a mailer for the configured relay.
func NewSMTPMailer(cfg config.MailConfig, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, logger: logger}
}

// Send dials the relay and delivers msg. Headers fall back to the
// configured sender when msg leaves them empty.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if msg.ToEmail == "" {
		return errors.New("recipient address is empty")
	}
	fromName, fromEmail := msg.FromName, msg.FromEmail
	if fromEmail == "" {
		fromEmail = m.cfg.FromEmail
	}
	if fromName == "" {
		fromName = m.cfg.FromName
	}

	out := gomail.NewMsg()
	if err := out.FromFormat(fromName, fromEmail); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := out.AddToFormat(msg.ToName, msg.ToEmail); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(gomail.TypeTextHTML, msg.HTMLBody)
	if msg.TextBody != "" {
		out.AddAlternativeString(gomail.TypeTextPlain, msg.TextBody)
	}

	client, err := gomail.NewClient(m.cfg.Host, m.clientOptions()...)
	if err != nil {
		return fmt.Errorf("build smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	m.logger.Debug("mail sent", zap.String("to", msg.ToEmail), zap.String("subject", msg.Subject))
	return nil
}

func (m *SMTPMailer) clientOptions() []gomail.Option {
	opts := []gomail.Option{gomail.WithPort(m.cfg.Port)}
	if m.cfg.TLSDisabled {
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.cfg.Username),
			gomail.WithPassword(m.cfg.Password),
		)
	}
	return opts
}
