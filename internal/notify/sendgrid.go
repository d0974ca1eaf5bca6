package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/wolfman30/storage-assistant/pkg/logging"
)

type sendgridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender delivers confirmations through the SendGrid v3 mail API.
type SendGridSender struct {
	client sendgridAPI
	from   From
	logger *logging.Logger
}

// NewSendGridSender returns nil when apiKey is empty.
func NewSendGridSender(apiKey string, from From, logger *logging.Logger) *SendGridSender {
	if apiKey == "" {
		return nil
	}
	return newSendGridSender(sendgrid.NewSendClient(apiKey), from, logger)
}

func newSendGridSender(client sendgridAPI, from From, logger *logging.Logger) *SendGridSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &SendGridSender{client: client, from: from.withDefaults(), logger: logger}
}

func (s *SendGridSender) SendConfirmation(ctx context.Context, c Confirmation) error {
	if s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	response, err := s.client.SendWithContext(ctx, s.message(c))
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "request_id", c.RequestID)
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "request_id", c.RequestID)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("booking confirmation sent via sendgrid", "request_id", c.RequestID, "status", response.StatusCode)
	return nil
}

func (s *SendGridSender) message(c Confirmation) *mail.SGMailV3 {
	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(c.ToName, c.To))
	if c.RequestID != "" {
		p.SetCustomArg("request_id", c.RequestID)
	}

	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(s.from.Name, s.from.Email))
	if s.from.ReplyTo != "" {
		m.SetReplyTo(mail.NewEmail(s.from.Name, s.from.ReplyTo))
	}
	m.Subject = c.Subject
	m.AddPersonalizations(p)
	m.AddCategories(confirmationCategory)
	// SendGrid requires text/plain ahead of text/html.
	m.AddContent(mail.NewContent("text/plain", c.Text))
	if c.HTML != "" {
		m.AddContent(mail.NewContent("text/html", c.HTML))
	}
	return m
}

var _ Sender = (*SendGridSender)(nil)
