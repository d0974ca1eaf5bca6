package notify

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/wolfman30/storage-assistant/internal/calendar"
	"github.com/wolfman30/storage-assistant/internal/records"
	"github.com/wolfman30/storage-assistant/pkg/logging"
)

const (
	defaultFromName = "Storage Assistant"

	// confirmationCategory tags provider analytics so booking mail can be
	// told apart from anything else sent from the same account.
	confirmationCategory = "booking_confirmation"
)

// Confirmation is a rendered booking confirmation for one customer.
type Confirmation struct {
	RequestID string
	To        string
	ToName    string
	Subject   string
	Text      string
	HTML      string
}

// Sender delivers booking confirmations.
type Sender interface {
	SendConfirmation(ctx context.Context, c Confirmation) error
}

// From is the business mailbox confirmations are sent from. Customer replies
// go to ReplyTo when set, otherwise to Email.
type From struct {
	Email   string
	Name    string
	ReplyTo string
}

func (f From) withDefaults() From {
	if strings.TrimSpace(f.Name) == "" {
		f.Name = defaultFromName
	}
	if strings.TrimSpace(f.ReplyTo) == "" {
		f.ReplyTo = f.Email
	}
	return f
}

// BookingNotifier emails customers when their service request is booked.
type BookingNotifier struct {
	sender Sender
	loc    *time.Location
	logger *logging.Logger
}

func NewBookingNotifier(sender Sender, loc *time.Location, logger *logging.Logger) *BookingNotifier {
	if sender == nil {
		panic("notify: sender cannot be nil")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingNotifier{sender: sender, loc: loc, logger: logger}
}

// BookingConfirmed sends the confirmation email for req. Requests without a
// customer email are skipped.
func (n *BookingNotifier) BookingConfirmed(ctx context.Context, req records.ServiceRequest, slot calendar.TimeSlot) error {
	if strings.TrimSpace(req.CustomerEmail) == "" {
		n.logger.Debug("notify: booking has no customer email, skipping confirmation", "request_id", req.ID)
		return nil
	}
	c, err := composeConfirmation(req, slot, n.loc)
	if err != nil {
		return err
	}
	if err := n.sender.SendConfirmation(ctx, c); err != nil {
		return fmt.Errorf("notify: booking confirmation: %w", err)
	}
	return nil
}

type confirmationView struct {
	Name        string
	Service     string
	When        string
	Description string
	Reference   string
}

var (
	confirmationText = texttemplate.Must(texttemplate.New("confirmation.txt").Option("missingkey=error").Parse(
		`Hi {{.Name}},

Your storage {{.Service}} is booked for {{.When}}.
{{if .Description}}
Details: {{.Description}}{{end}}{{if .Reference}}
Reference: {{.Reference}}{{end}}

Reply to this email if anything needs to change.
`))

	confirmationHTML = htmltemplate.Must(htmltemplate.New("confirmation.html").Option("missingkey=error").Parse(
		`<p>Hi {{.Name}},</p>
<p>Your storage {{.Service}} is booked for <strong>{{.When}}</strong>.</p>
{{if .Description}}<p>Details: {{.Description}}</p>
{{end}}{{if .Reference}}<p>Reference: <code>{{.Reference}}</code></p>
{{end}}<p>Reply to this email if anything needs to change.</p>
`))
)

func composeConfirmation(req records.ServiceRequest, slot calendar.TimeSlot, loc *time.Location) (Confirmation, error) {
	view := confirmationView{
		Name:        firstNonEmpty(strings.TrimSpace(req.CustomerName), "there"),
		Service:     firstNonEmpty(string(req.Type), "service request"),
		When:        "a time to be confirmed",
		Description: strings.TrimSpace(req.Description),
		Reference:   req.ID,
	}
	if req.PreferredDate != nil {
		view.When = req.PreferredDate.In(loc).Format("Monday, January 2, 2006")
		if slot != "" {
			view.When += " at " + string(slot)
		}
	}

	var text, html bytes.Buffer
	if err := confirmationText.Execute(&text, view); err != nil {
		return Confirmation{}, fmt.Errorf("notify: render text confirmation: %w", err)
	}
	if err := confirmationHTML.Execute(&html, view); err != nil {
		return Confirmation{}, fmt.Errorf("notify: render html confirmation: %w", err)
	}
	return Confirmation{
		RequestID: req.ID,
		To:        strings.TrimSpace(req.CustomerEmail),
		ToName:    strings.TrimSpace(req.CustomerName),
		Subject:   fmt.Sprintf("Your storage %s is booked", view.Service),
		Text:      text.String(),
		HTML:      html.String(),
	}, nil
}

// LogSender logs confirmations instead of sending them; used when no email
// provider is configured.
type LogSender struct {
	logger *logging.Logger
}

func NewLogSender(logger *logging.Logger) *LogSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendConfirmation(ctx context.Context, c Confirmation) error {
	s.logger.Info("email disabled, confirmation not sent", "request_id", c.RequestID, "to", c.To, "subject", c.Subject)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
