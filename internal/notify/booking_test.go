package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wolfman30/storage-assistant/internal/records"
)

type recordingSender struct {
	sent []Confirmation
	err  error
}

func (r *recordingSender) SendConfirmation(ctx context.Context, c Confirmation) error {
	r.sent = append(r.sent, c)
	return r.err
}

func TestBookingNotifier_SendsConfirmation(t *testing.T) {
	sender := &recordingSender{}
	notifier := NewBookingNotifier(sender, time.UTC, nil)
	when := time.Date(2024, 6, 10, 11, 0, 0, 0, time.UTC)

	err := notifier.BookingConfirmed(context.Background(), records.ServiceRequest{
		ID:            "rec001",
		Type:          records.TypeCollection,
		CustomerName:  "Jane",
		CustomerEmail: " jane@x.com ",
		Description:   "Ten boxes",
		PreferredDate: &when,
	}, "11:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sender.sent))
	}
	c := sender.sent[0]
	if c.To != "jane@x.com" || c.ToName != "Jane" {
		t.Errorf("unexpected recipient %q <%s>", c.ToName, c.To)
	}
	if c.RequestID != "rec001" {
		t.Errorf("expected request id rec001, got %q", c.RequestID)
	}
	if c.Subject != "Your storage collection is booked" {
		t.Errorf("unexpected subject %q", c.Subject)
	}
	for _, want := range []string{"Hi Jane", "Monday, June 10, 2024 at 11:00", "Details: Ten boxes", "Reference: rec001"} {
		if !strings.Contains(c.Text, want) {
			t.Errorf("text missing %q:\n%s", want, c.Text)
		}
	}
	if !strings.Contains(c.HTML, "<strong>Monday, June 10, 2024 at 11:00</strong>") {
		t.Errorf("html missing booked time:\n%s", c.HTML)
	}
}

func TestComposeConfirmation_EscapesCustomerInputInHTML(t *testing.T) {
	c, err := composeConfirmation(records.ServiceRequest{
		CustomerName:  "<b>Jo</b>",
		CustomerEmail: "jo@x.com",
		Description:   `boxes & "bags"`,
	}, "", time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(c.HTML, "<b>Jo</b>") {
		t.Errorf("customer name was not escaped:\n%s", c.HTML)
	}
	if !strings.Contains(c.HTML, "&lt;b&gt;Jo&lt;/b&gt;") {
		t.Errorf("expected escaped name in html:\n%s", c.HTML)
	}
	if !strings.Contains(c.Text, "Hi <b>Jo</b>") {
		t.Errorf("plain text should carry the name as typed:\n%s", c.Text)
	}
}

func TestComposeConfirmation_Defaults(t *testing.T) {
	c, err := composeConfirmation(records.ServiceRequest{CustomerEmail: "a@b.c"}, "9:00", time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Subject != "Your storage service request is booked" {
		t.Errorf("unexpected subject %q", c.Subject)
	}
	for _, want := range []string{"Hi there", "a time to be confirmed"} {
		if !strings.Contains(c.Text, want) {
			t.Errorf("text missing %q:\n%s", want, c.Text)
		}
	}
	for _, absent := range []string{"Details:", "Reference:"} {
		if strings.Contains(c.Text, absent) {
			t.Errorf("text should omit %q:\n%s", absent, c.Text)
		}
	}
}

func TestBookingNotifier_SkipsWithoutEmail(t *testing.T) {
	sender := &recordingSender{}
	notifier := NewBookingNotifier(sender, nil, nil)
	if err := notifier.BookingConfirmed(context.Background(), records.ServiceRequest{CustomerName: "Jane"}, "9:00"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Error("expected no email without a customer address")
	}
}

func TestBookingNotifier_PropagatesSendError(t *testing.T) {
	notifier := NewBookingNotifier(&recordingSender{err: errors.New("down")}, nil, nil)
	err := notifier.BookingConfirmed(context.Background(), records.ServiceRequest{CustomerEmail: "a@b.c"}, "")
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}

func TestFromDefaults(t *testing.T) {
	f := From{Email: "bookings@example.com"}.withDefaults()
	if f.Name != defaultFromName {
		t.Errorf("expected default name, got %q", f.Name)
	}
	if f.ReplyTo != "bookings@example.com" {
		t.Errorf("expected reply-to to fall back to sender, got %q", f.ReplyTo)
	}

	f = From{Email: "noreply@example.com", Name: "Acme Storage", ReplyTo: "desk@example.com"}.withDefaults()
	if f.Name != "Acme Storage" || f.ReplyTo != "desk@example.com" {
		t.Errorf("configured values should be kept, got %+v", f)
	}
}

func TestLogSender_NeverFails(t *testing.T) {
	if err := NewLogSender(nil).SendConfirmation(context.Background(), Confirmation{To: "a@b.c"}); err != nil {
		t.Errorf("log sender should not return error, got: %v", err)
	}
}
