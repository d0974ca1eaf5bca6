package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSender_BuildsConfirmationInput(t *testing.T) {
	api := &fakeSES{}
	sender := newSESSender(api, From{Email: "noreply@example.com", Name: "Acme Storage"}, nil)

	err := sender.SendConfirmation(context.Background(), Confirmation{
		RequestID: "rec.001",
		To:        "jane@x.com",
		ToName:    "Jane",
		Subject:   "Booked",
		Text:      "plain",
		HTML:      "<p>rich</p>",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in := api.input
	if got := aws.ToString(in.FromEmailAddress); got != "Acme Storage <noreply@example.com>" {
		t.Errorf("unexpected from %q", got)
	}
	if len(in.Destination.ToAddresses) != 1 || in.Destination.ToAddresses[0] != "Jane <jane@x.com>" {
		t.Errorf("unexpected to %v", in.Destination.ToAddresses)
	}
	if len(in.ReplyToAddresses) != 1 || in.ReplyToAddresses[0] != "noreply@example.com" {
		t.Errorf("reply-to should fall back to the sender, got %v", in.ReplyToAddresses)
	}
	body := in.Content.Simple.Body
	if aws.ToString(body.Text.Data) != "plain" || body.Html == nil || aws.ToString(body.Html.Data) != "<p>rich</p>" {
		t.Errorf("unexpected body %+v", body)
	}
	tags := map[string]string{}
	for _, tag := range in.EmailTags {
		tags[aws.ToString(tag.Name)] = aws.ToString(tag.Value)
	}
	if tags["category"] != confirmationCategory {
		t.Errorf("missing category tag, got %v", tags)
	}
	if tags["request_id"] != "rec_001" {
		t.Errorf("request_id tag should be sanitized, got %q", tags["request_id"])
	}
}

func TestSESSender_OmitsHTMLAndRequestTagWhenEmpty(t *testing.T) {
	api := &fakeSES{}
	sender := newSESSender(api, From{Email: "noreply@example.com", ReplyTo: "desk@example.com"}, nil)
	if err := sender.SendConfirmation(context.Background(), Confirmation{To: "a@b.c", Subject: "s", Text: "t"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.input.Content.Simple.Body.Html != nil {
		t.Error("html body should be nil")
	}
	if api.input.Destination.ToAddresses[0] != "a@b.c" {
		t.Errorf("unexpected to %v", api.input.Destination.ToAddresses)
	}
	if api.input.ReplyToAddresses[0] != "desk@example.com" {
		t.Errorf("unexpected reply-to %v", api.input.ReplyToAddresses)
	}
	if len(api.input.EmailTags) != 1 {
		t.Errorf("expected only the category tag, got %d", len(api.input.EmailTags))
	}
}

func TestSESSender_PropagatesError(t *testing.T) {
	sender := newSESSender(&fakeSES{err: errors.New("throttled")}, From{Email: "noreply@example.com"}, nil)
	if err := sender.SendConfirmation(context.Background(), Confirmation{To: "a@b.c"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewSESSender_NilClient(t *testing.T) {
	if sender := NewSESSender(nil, From{}, nil); sender != nil {
		t.Error("expected nil sender for nil client")
	}
}
