package completion

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/storage-assistant/internal/observability/metrics"
	"github.com/wolfman30/storage-assistant/internal/records"
	"github.com/wolfman30/storage-assistant/pkg/logging"
)

// ErrMissingCredential reports that no completion provider could be configured.
var ErrMissingCredential = errors.New("completion: missing completion provider credential")

// Fixed replies used when generation cannot produce text.
const (
	ReplyUnavailable = "I apologize, but I'm having trouble connecting to the AI service at the moment."
	ReplyEmpty       = "I apologize, but I couldn't process your request at the moment."
)

const (
	defaultTimeout     = 20 * time.Second
	replyMaxTokens     = 500
	replyTemperature   = 0.7
	extractMaxTokens   = 300
	intentSchemaName   = "service_request_intent"
	intentSchemaDetail = "Service request detected in a storage customer's message"
)

// Engine turns a customer message plus history into a reply or an intent.
// Neither operation returns an error: failures resolve to fixed fallback values.
type Engine struct {
	client  LLMClient
	faqs    records.FAQSource
	timeout time.Duration
	logger  *logging.Logger
	metrics *metrics.ChatMetrics
	loc     *time.Location
	now     func() time.Time
}

type Option func(*Engine)

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMetrics(m *metrics.ChatMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLocation sets the zone used to tell the model today's date.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine builds an engine. A nil client is allowed and makes every call
// fail with ErrMissingCredential; a nil faqs source omits the FAQ supplement.
func NewEngine(client LLMClient, faqs records.FAQSource, opts ...Option) *Engine {
	e := &Engine{
		client:  client,
		faqs:    faqs,
		timeout: defaultTimeout,
		logger:  logging.Default(),
		loc:     time.UTC,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GenerateReply returns the assistant's free-text answer to message.
func (e *Engine) GenerateReply(ctx context.Context, message string, history []ChatMessage) string {
	started := time.Now()
	faqs := e.listFAQs(ctx)

	resp, err := e.complete(ctx, LLMRequest{
		System:      []string{replySystemPrompt(faqs)},
		Messages:    withCurrent(history, message),
		MaxTokens:   replyMaxTokens,
		Temperature: replyTemperature,
	})
	if err != nil {
		e.logger.Error("reply generation failed", "error", err)
		e.observe("reply", outcomeFor(err), started)
		return ReplyUnavailable
	}
	if resp.Text == "" {
		e.observe("reply", "empty", started)
		return ReplyEmpty
	}
	e.observe("reply", "ok", started)
	return resp.Text
}

// ExtractIntent classifies message. Any failure yields a non-request intent.
func (e *Engine) ExtractIntent(ctx context.Context, message string, history []ChatMessage) ExtractedIntent {
	started := time.Now()
	resp, err := e.complete(ctx, LLMRequest{
		System:      []string{extractionPrompt, extractionContext(e.now().In(e.loc))},
		Messages:    withCurrent(history, message),
		MaxTokens:   extractMaxTokens,
		Temperature: 0,
		JSON: &JSONSchema{
			Name:        intentSchemaName,
			Description: intentSchemaDetail,
			Schema:      IntentSchema(),
		},
	})
	if err != nil {
		e.logger.Error("intent extraction failed", "error", err)
		e.observe("extract", outcomeFor(err), started)
		return ExtractedIntent{}
	}
	intent, err := parseIntent(resp.Text)
	if err != nil {
		e.logger.Warn("intent extraction returned malformed output", "error", err)
		e.observe("extract", "invalid", started)
		return ExtractedIntent{}
	}
	e.observe("extract", "ok", started)
	return intent
}

func (e *Engine) complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	if e.client == nil {
		return LLMResponse{}, ErrMissingCredential
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.client.Complete(ctx, req)
}

// listFAQs is best-effort: failures drop the supplement.
func (e *Engine) listFAQs(ctx context.Context) []records.FAQ {
	if e.faqs == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	faqs, err := e.faqs.ListFAQs(ctx)
	if err != nil {
		e.logger.Warn("faq lookup failed, replying without supplement", "error", err)
		e.metrics.ObserveSwallowed("records", "list_faqs")
		return nil
	}
	return faqs
}

func (e *Engine) observe(operation, outcome string, started time.Time) {
	e.metrics.ObserveCompletion(operation, outcome, time.Since(started).Seconds())
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

func withCurrent(history []ChatMessage, message string) []ChatMessage {
	msgs := make([]ChatMessage, 0, len(history)+1)
	msgs = append(msgs, history...)
	return append(msgs, ChatMessage{Role: ChatRoleUser, Content: message})
}
