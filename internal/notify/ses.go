package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/wolfman30/storage-assistant/pkg/logging"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender delivers confirmations through AWS SES.
type SESSender struct {
	client sesAPI
	from   From
	logger *logging.Logger
}

func NewSESSender(client *sesv2.Client, from From, logger *logging.Logger) *SESSender {
	if client == nil {
		return nil
	}
	return newSESSender(client, from, logger)
}

func newSESSender(client sesAPI, from From, logger *logging.Logger) *SESSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &SESSender{client: client, from: from.withDefaults(), logger: logger}
}

func (s *SESSender) SendConfirmation(ctx context.Context, c Confirmation) error {
	if s.client == nil {
		return fmt.Errorf("notify: SES client not configured")
	}

	output, err := s.client.SendEmail(ctx, s.input(c))
	if err != nil {
		s.logger.Error("SES send failed", "error", err, "request_id", c.RequestID)
		return fmt.Errorf("notify: SES send failed: %w", err)
	}

	s.logger.Info("booking confirmation sent via SES", "request_id", c.RequestID, "message_id", aws.ToString(output.MessageId))
	return nil
}

func (s *SESSender) input(c Confirmation) *sesv2.SendEmailInput {
	to := c.To
	if c.ToName != "" {
		to = fmt.Sprintf("%s <%s>", c.ToName, c.To)
	}
	body := &types.Body{Text: utf8Content(c.Text)}
	if c.HTML != "" {
		body.Html = utf8Content(c.HTML)
	}
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", s.from.Name, s.from.Email)),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{Subject: utf8Content(c.Subject), Body: body},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("category"), Value: aws.String(confirmationCategory)},
		},
	}
	if s.from.ReplyTo != "" {
		input.ReplyToAddresses = []string{s.from.ReplyTo}
	}
	if c.RequestID != "" {
		input.EmailTags = append(input.EmailTags, types.MessageTag{
			Name:  aws.String("request_id"),
			Value: aws.String(sesTagValue(c.RequestID)),
		})
	}
	return input
}

func utf8Content(data string) *types.Content {
	return &types.Content{Data: aws.String(data), Charset: aws.String("UTF-8")}
}

// sesTagValue maps v onto the characters SES accepts in tag values:
// ASCII letters, digits, '_' and '-'.
func sesTagValue(v string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, v)
}

var _ Sender = (*SESSender)(nil)
