package chat

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/storage-assistant/internal/calendar"
	"github.com/wolfman30/storage-assistant/internal/completion"
	"github.com/wolfman30/storage-assistant/internal/observability/metrics"
	"github.com/wolfman30/storage-assistant/internal/records"
	"github.com/wolfman30/storage-assistant/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	defaultFormDelay      = time.Second
	defaultStaleTurnAfter = 2 * time.Minute

	// lockStripes bounds the number of session mutexes regardless of how
	// many ids callers present.
	lockStripes = 64
)

// Completer produces replies and intents. Both calls absorb their own failures.
type Completer interface {
	GenerateReply(ctx context.Context, message string, history []completion.ChatMessage) string
	ExtractIntent(ctx context.Context, message string, history []completion.ChatMessage) completion.ExtractedIntent
}

// RecordStore is the part of the record store a chat turn writes to.
type RecordStore interface {
	LogInquiry(ctx context.Context, message, response string) (*records.Inquiry, error)
	CreateServiceRequest(ctx context.Context, req records.ServiceRequest) (*records.ServiceRequest, error)
}

// Scheduler derives free slots and books calendar events.
type Scheduler interface {
	AvailableSlotsForDate(ctx context.Context, date time.Time) []calendar.TimeSlot
	BookEvent(ctx context.Context, req records.ServiceRequest) (*calendar.Event, error)
}

// Notifier is told about confirmed bookings.
type Notifier interface {
	BookingConfirmed(ctx context.Context, req records.ServiceRequest, slot calendar.TimeSlot) error
}

// Options tunes an Orchestrator. Zero values select defaults.
type Options struct {
	FormDelay      time.Duration
	Location       *time.Location
	StaleTurnAfter time.Duration
	Notifier       Notifier
	Logger         *logging.Logger
	Metrics        *metrics.ChatMetrics
	Clock          func() time.Time
}

// Orchestrator drives the per-session chat state machine.
type Orchestrator struct {
	engine    Completer
	records   RecordStore
	scheduler Scheduler
	sessions  SessionStore
	notifier  Notifier

	formDelay time.Duration
	loc       *time.Location
	staleTurn time.Duration
	logger    *logging.Logger
	metrics   *metrics.ChatMetrics
	tracer    trace.Tracer
	now       func() time.Time

	locks [lockStripes]sync.Mutex
}

// NewOrchestrator wires the chat flow. A nil scheduler offers no slots and
// skips calendar booking.
func NewOrchestrator(engine Completer, store RecordStore, scheduler Scheduler, sessions SessionStore, opts Options) *Orchestrator {
	if engine == nil {
		panic("chat: completion engine cannot be nil")
	}
	if store == nil {
		panic("chat: record store cannot be nil")
	}
	if sessions == nil {
		sessions = NewMemorySessionStore()
	}
	o := &Orchestrator{
		engine:    engine,
		records:   store,
		scheduler: scheduler,
		sessions:  sessions,
		notifier:  opts.Notifier,
		formDelay: opts.FormDelay,
		loc:       opts.Location,
		staleTurn: opts.StaleTurnAfter,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		tracer:    otel.Tracer("storage.internal.chat"),
		now:       opts.Clock,
	}
	if o.formDelay <= 0 {
		o.formDelay = defaultFormDelay
	}
	if o.loc == nil {
		o.loc = time.UTC
	}
	if o.staleTurn <= 0 {
		o.staleTurn = defaultStaleTurnAfter
	}
	if o.logger == nil {
		o.logger = logging.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// FormDelay is how long after a detected request the booking form opens.
func (o *Orchestrator) FormDelay() time.Duration {
	return o.formDelay
}

// lockFor maps id onto one of a fixed set of mutexes. Sessions sharing a
// stripe only contend for the short load-modify-save in update.
func (o *Orchestrator) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &o.locks[h.Sum32()%lockStripes]
}

func (o *Orchestrator) lock(id string) func() {
	m := o.lockFor(id)
	m.Lock()
	return m.Unlock
}

// update loads a session under its lock, applies fn and saves the result.
func (o *Orchestrator) update(ctx context.Context, id string, fn func(s *Session) error) (*Session, error) {
	unlock := o.lock(id)
	defer unlock()

	session, err := o.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(session); err != nil {
		return nil, err
	}
	session.UpdatedAt = o.now()
	if err := o.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// StartSession creates a session whose transcript holds the greeting.
func (o *Orchestrator) StartSession(ctx context.Context) (Snapshot, error) {
	now := o.now()
	session := &Session{
		ID:         uuid.New().String(),
		Transcript: Transcript{}.Append(SenderAssistant, GreetingMessage, now),
		State:      StateIdle,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := o.sessions.Save(ctx, session); err != nil {
		return Snapshot{}, err
	}
	return session.snapshot(now), nil
}

// Snapshot returns the current observable state of a session.
func (o *Orchestrator) Snapshot(ctx context.Context, id string) (Snapshot, error) {
	session, err := o.sessions.Get(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	return session.snapshot(o.now()), nil
}

type turnResult struct {
	intent completion.ExtractedIntent
	reply  string
}

// SendMessage runs one user turn: extraction and reply generation in
// parallel, inquiry logging, then the optional hand-off to the booking form.
func (o *Orchestrator) SendMessage(ctx context.Context, id, text string) (Snapshot, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Snapshot{}, ErrEmptyMessage
	}
	ctx, span := o.tracer.Start(ctx, "chat.send_message", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	var history []completion.ChatMessage
	_, err := o.update(ctx, id, func(s *Session) error {
		now := o.now()
		if s.Loading && s.TurnStartedAt != nil && now.Sub(*s.TurnStartedAt) < o.staleTurn {
			return ErrTurnInFlight
		}
		history = s.Transcript.History()
		s.Transcript = s.Transcript.Append(SenderUser, text, now)
		s.Loading = true
		s.TurnStartedAt = &now
		s.State = StateReplying
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	result, turnErr := o.runTurn(ctx, text, history)
	if turnErr != nil {
		span.RecordError(turnErr)
		o.logger.Error("chat turn failed", "session_id", id, "error", turnErr)
	} else {
		o.logInquiry(ctx, text, result.reply)
	}

	var draft *BookingDraft
	var slots []calendar.TimeSlot
	if turnErr == nil && result.intent.IsServiceRequest {
		d := draftFromIntent(result.intent, text, o.loc)
		if d.PreferredDate != nil {
			slots = o.availableSlots(ctx, *d.PreferredDate)
			d.Slot = firstSlot(slots)
		}
		draft = &d
	}

	// The session is saved even if the caller has gone away so it never
	// stays stuck in the loading state.
	saveCtx := context.WithoutCancel(ctx)
	session, err := o.update(saveCtx, id, func(s *Session) error {
		now := o.now()
		s.Loading = false
		s.TurnStartedAt = nil
		switch {
		case turnErr != nil:
			s.Transcript = s.Transcript.Append(SenderAssistant, TurnFailureMessage, now)
			o.metrics.ObserveTurn("failure")
			if s.Draft == nil {
				s.State = StateIdle
			} else {
				s.State = StateAwaitingBookingForm
			}
		case draft != nil:
			s.Transcript = s.Transcript.Append(SenderAssistant, FormPromptMessage, now)
			opens := now.Add(o.formDelay)
			s.Draft = draft
			s.FormOpensAt = &opens
			s.AvailableSlots = slots
			s.State = StateAwaitingBookingForm
			o.metrics.ObserveTurn("form_prompt")
		default:
			s.Transcript = s.Transcript.Append(SenderAssistant, result.reply, now)
			if s.Draft == nil {
				s.State = StateIdle
			} else {
				s.State = StateAwaitingBookingForm
			}
			o.metrics.ObserveTurn("reply")
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return session.snapshot(o.now()), nil
}

// runTurn issues extraction and reply generation as two independent tasks
// and joins them. Only a panic or a cancelled context fails the turn; the
// engine already absorbs provider errors.
func (o *Orchestrator) runTurn(ctx context.Context, text string, history []completion.ChatMessage) (turnResult, error) {
	var result turnResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		defer recoverTask("extract_intent", &err)
		result.intent = o.engine.ExtractIntent(gctx, text, history)
		return nil
	})
	g.Go(func() (err error) {
		defer recoverTask("generate_reply", &err)
		result.reply = o.engine.GenerateReply(gctx, text, history)
		return nil
	})
	if err := g.Wait(); err != nil {
		return turnResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return turnResult{}, fmt.Errorf("chat: turn abandoned: %w", err)
	}
	return result, nil
}

func recoverTask(name string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("chat: %s panicked: %v\n%s", name, r, debug.Stack())
	}
}

// logInquiry is best-effort and always records the generated reply.
func (o *Orchestrator) logInquiry(ctx context.Context, message, reply string) {
	if _, err := o.records.LogInquiry(ctx, message, reply); err != nil {
		o.logger.Warn("inquiry logging failed", "error", err)
		o.metrics.ObserveSwallowed("records", "log_inquiry")
	}
}

func (o *Orchestrator) availableSlots(ctx context.Context, date time.Time) []calendar.TimeSlot {
	if o.scheduler == nil {
		return []calendar.TimeSlot{}
	}
	return o.scheduler.AvailableSlotsForDate(ctx, date)
}

func firstSlot(slots []calendar.TimeSlot) calendar.TimeSlot {
	if len(slots) == 0 {
		return ""
	}
	return slots[0]
}

// SelectDate sets the draft's preferred date, re-derives slots and selects
// the first free one.
func (o *Orchestrator) SelectDate(ctx context.Context, id string, date time.Time) (Snapshot, error) {
	slots := o.availableSlots(ctx, date)
	session, err := o.update(ctx, id, func(s *Session) error {
		if s.Submitting {
			return ErrTurnInFlight
		}
		o.ensureForm(s)
		d := date
		s.Draft.PreferredDate = &d
		s.Draft.Slot = firstSlot(slots)
		s.AvailableSlots = slots
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return session.snapshot(o.now()), nil
}

// UpdateDraft replaces the draft fields. A new preferred date re-derives the
// slots; otherwise a chosen slot must be one of the offered ones.
func (o *Orchestrator) UpdateDraft(ctx context.Context, id string, draft BookingDraft) (Snapshot, error) {
	current, err := o.sessions.Get(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	var (
		dateChanged bool
		slots       []calendar.TimeSlot
	)
	var prev *time.Time
	if current.Draft != nil {
		prev = current.Draft.PreferredDate
	}
	if !sameDay(prev, draft.PreferredDate, o.loc) {
		dateChanged = true
		if draft.PreferredDate != nil {
			slots = o.availableSlots(ctx, *draft.PreferredDate)
		}
	}

	session, err := o.update(ctx, id, func(s *Session) error {
		if s.Submitting {
			return ErrTurnInFlight
		}
		o.ensureForm(s)
		next := draft
		if next.Type == "" {
			next.Type = records.TypeCollection
		}
		if dateChanged {
			s.AvailableSlots = slots
			if next.Slot == "" || !slices.Contains(slots, next.Slot) {
				next.Slot = firstSlot(slots)
			}
		} else if next.Slot != "" && !slices.Contains(s.AvailableSlots, next.Slot) {
			return ErrSlotUnavailable
		}
		s.Draft = next.clone()
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return session.snapshot(o.now()), nil
}

// ensureForm opens the form immediately when there is no draft yet.
func (o *Orchestrator) ensureForm(s *Session) {
	if s.Draft != nil {
		return
	}
	d := DefaultDraft()
	now := o.now()
	s.Draft = &d
	s.FormOpensAt = &now
	s.State = StateAwaitingBookingForm
}

// CloseBookingForm dismisses the form without booking.
func (o *Orchestrator) CloseBookingForm(ctx context.Context, id string) (Snapshot, error) {
	session, err := o.update(ctx, id, func(s *Session) error {
		if s.Submitting {
			return ErrTurnInFlight
		}
		s.closeForm()
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return session.snapshot(o.now()), nil
}

// SubmitBooking persists the draft as a pending service request, attempts to
// put it on the calendar and confirms it in the transcript.
//
// Creating the request is load-bearing: its failure leaves the form open and
// appends an error message. Calendar booking and the confirmation email are
// best-effort, so the confirmation is shown even when they fail.
func (o *Orchestrator) SubmitBooking(ctx context.Context, id string, draft BookingDraft) (Snapshot, error) {
	if err := draft.Validate(); err != nil {
		o.metrics.ObserveBooking("incomplete")
		return Snapshot{}, err
	}
	if !slices.Contains(calendar.BusinessSlots(), draft.Slot) {
		o.metrics.ObserveBooking("slot_unavailable")
		return Snapshot{}, fmt.Errorf("%w: %s is outside business hours", ErrSlotUnavailable, draft.Slot)
	}
	when, ok := draft.Slot.At(*draft.PreferredDate, o.loc)
	if !ok {
		o.metrics.ObserveBooking("incomplete")
		return Snapshot{}, fmt.Errorf("%w: slot %q", ErrIncompleteBooking, draft.Slot)
	}
	ctx, span := o.tracer.Start(ctx, "chat.submit_booking", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	current, err := o.sessions.Get(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	var fetched []calendar.TimeSlot
	if o.scheduler != nil && !o.formShowsDate(current, draft.PreferredDate) {
		fetched = o.availableSlots(ctx, *draft.PreferredDate)
	}

	_, err = o.update(ctx, id, func(s *Session) error {
		if s.Submitting || s.Loading {
			return ErrTurnInFlight
		}
		offered := o.offeredSlots(s, draft.PreferredDate, fetched)
		if !slices.Contains(offered, draft.Slot) {
			o.metrics.ObserveBooking("slot_unavailable")
			return fmt.Errorf("%w: %s", ErrSlotUnavailable, draft.Slot)
		}
		o.ensureForm(s)
		s.AvailableSlots = offered
		s.Draft = draft.clone()
		s.Submitting = true
		s.State = StateBooking
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	reqType := draft.Type
	if reqType == "" {
		reqType = records.TypeCollection
	}
	created, createErr := o.records.CreateServiceRequest(ctx, records.ServiceRequest{
		Type:          reqType,
		Status:        records.StatusPending,
		CustomerName:  strings.TrimSpace(draft.CustomerName),
		CustomerEmail: strings.TrimSpace(draft.CustomerEmail),
		CustomerPhone: strings.TrimSpace(draft.CustomerPhone),
		Description:   draft.Description,
		PreferredDate: &when,
	})
	saveCtx := context.WithoutCancel(ctx)
	if createErr != nil {
		span.RecordError(createErr)
		o.logger.Error("service request creation failed", "session_id", id, "error", createErr)
		o.metrics.ObserveBooking("create_failed")
		session, err := o.update(saveCtx, id, func(s *Session) error {
			s.Transcript = s.Transcript.Append(SenderAssistant, BookingErrorMessage, o.now())
			s.Submitting = false
			s.State = StateAwaitingBookingForm
			return nil
		})
		if err != nil {
			return Snapshot{}, err
		}
		return session.snapshot(o.now()), nil
	}

	if o.scheduler != nil {
		if _, err := o.scheduler.BookEvent(ctx, *created); err != nil {
			o.logger.Warn("calendar booking failed, confirming anyway", "session_id", id, "request_id", created.ID, "error", err)
			o.metrics.ObserveSwallowed("calendar", "book_event")
		}
	}
	if o.notifier != nil {
		if err := o.notifier.BookingConfirmed(ctx, *created, draft.Slot); err != nil {
			o.logger.Warn("booking confirmation email failed", "request_id", created.ID, "error", err)
			o.metrics.ObserveSwallowed("notify", "booking_confirmed")
		}
	}
	o.metrics.ObserveBooking("created")

	session, err := o.update(saveCtx, id, func(s *Session) error {
		s.Transcript = s.Transcript.Append(SenderAssistant, ConfirmationMessage(created.Type, when, draft.Slot), o.now())
		s.closeForm()
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return session.snapshot(o.now()), nil
}

func (o *Orchestrator) formShowsDate(s *Session, date *time.Time) bool {
	return s.Draft != nil && s.Draft.PreferredDate != nil && sameDay(s.Draft.PreferredDate, date, o.loc)
}

// offeredSlots is what a submission for date may pick from: the slots already
// on the form for that date, otherwise the freshly fetched ones. Without a
// scheduler every business slot is offered.
func (o *Orchestrator) offeredSlots(s *Session, date *time.Time, fetched []calendar.TimeSlot) []calendar.TimeSlot {
	switch {
	case o.scheduler == nil:
		return calendar.BusinessSlots()
	case o.formShowsDate(s, date):
		return s.AvailableSlots
	default:
		return fetched
	}
}

// IsNotFound reports whether err means the session does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}
