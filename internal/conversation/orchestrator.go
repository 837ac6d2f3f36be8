package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/vetchat-ai-platform/internal/appointments"
	"github.com/wolfman30/vetchat-ai-platform/internal/booking"
	"github.com/wolfman30/vetchat-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/vetchat-ai-platform/pkg/logging"
)

// Invalid-input errors, rejected at the boundary before any state change.
var (
	ErrInvalidSession = errors.New("conversation: valid session token is required")
	ErrEmptyMessage   = errors.New("conversation: message is required")
)

const apologyReply = "I'm sorry, I'm having trouble responding right now. Please try again in a moment."

// AppointmentSaver persists finalized bookings.
type AppointmentSaver interface {
	Save(ctx context.Context, appt *appointments.Appointment) error
}

// TurnRequest is one inbound visitor message.
type TurnRequest struct {
	SessionToken string
	Message      string
	ContextPatch map[string]string
}

// TurnResponse is the reply plus the booking snapshot after the turn.
type TurnResponse struct {
	Reply        string
	SessionToken string
	BookingState booking.State
}

// Orchestrator processes chat turns: it loads the conversation, routes the
// message to the booking dialogue or the answer generator, and persists the
// updated state. Each turn is a read-modify-write cycle against a single
// conversation, so turns are serialized per session token; turns for
// distinct tokens run concurrently.
type Orchestrator struct {
	store    Store
	appts    AppointmentSaver
	detector *booking.Detector
	answers  AnswerGenerator
	logger   *logging.Logger
	metrics  *metrics.ChatMetrics
	tracer   trace.Tracer
	now      func() time.Time

	locks sync.Map // session token -> *sync.Mutex
}

// NewOrchestrator wires the turn orchestrator. answers may be nil, in which
// case free-text questions get the apology reply.
func NewOrchestrator(store Store, appts AppointmentSaver, answers AnswerGenerator, logger *logging.Logger, chatMetrics *metrics.ChatMetrics) *Orchestrator {
	if store == nil {
		panic("conversation: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{
		store:    store,
		appts:    appts,
		detector: booking.NewDetector(),
		answers:  answers,
		logger:   logger,
		metrics:  chatMetrics,
		tracer:   otel.Tracer("vetchat.internal.conversation"),
		now:      time.Now,
	}
}

// validSessionToken rejects empty tokens and the literal strings widgets send
// when their stored session variable was never initialized.
func validSessionToken(token string) bool {
	token = strings.TrimSpace(token)
	return token != "" && token != "undefined" && token != "null"
}

// EnsureSession loads the conversation for token, creating and persisting a
// fresh one (with a newly minted UUID token if the given one is unusable).
// contextPatch is only applied to newly created conversations.
func (o *Orchestrator) EnsureSession(ctx context.Context, token string, contextPatch map[string]string) (*Conversation, error) {
	ctx, span := o.tracer.Start(ctx, "conversation.ensure_session")
	defer span.End()

	var conv *Conversation
	if validSessionToken(token) {
		loaded, err := o.store.Load(ctx, strings.TrimSpace(token))
		if err != nil {
			return nil, err
		}
		conv = loaded
	}

	if conv == nil {
		sessionID := strings.TrimSpace(token)
		if !validSessionToken(sessionID) {
			sessionID = uuid.NewString()
		}
		now := o.now().UTC()
		conv = &Conversation{
			SessionID: sessionID,
			Context:   map[string]string{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		conv.MergeContext(contextPatch)
		if err := o.store.Save(ctx, conv); err != nil {
			return nil, err
		}
		o.logger.Info("conversation created", "session_id", conv.SessionID)
	}

	span.SetAttributes(attribute.String("vetchat.session_id", conv.SessionID))
	return conv, nil
}

// GetConversation returns the conversation for token, or nil when unknown.
func (o *Orchestrator) GetConversation(ctx context.Context, token string) (*Conversation, error) {
	if !validSessionToken(token) {
		return nil, nil
	}
	return o.store.Load(ctx, strings.TrimSpace(token))
}

// ProcessTurn handles one visitor message end to end. Invalid input is
// rejected before any state changes; every other failure is absorbed into the
// reply so a turn never surfaces a system error to the visitor.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	ctx, span := o.tracer.Start(ctx, "conversation.process_turn")
	defer span.End()

	if !validSessionToken(req.SessionToken) {
		return nil, ErrInvalidSession
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	token := strings.TrimSpace(req.SessionToken)
	span.SetAttributes(attribute.String("vetchat.session_id", token))

	mu := o.sessionLock(token)
	mu.Lock()
	defer mu.Unlock()

	conv, err := o.store.Load(ctx, token)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		conv = &Conversation{
			SessionID: token,
			Context:   map[string]string{},
			CreatedAt: o.now().UTC(),
		}
	}
	conv.MergeContext(req.ContextPatch)
	prior := conv.Booking

	now := o.now().UTC()
	conv.Append(RoleUser, req.Message, now)

	reply, state := o.dispatch(ctx, conv, message, now)

	conv.Append(RoleBot, reply, o.now().UTC())
	conv.Booking = state
	conv.UpdatedAt = o.now().UTC()

	if err := o.store.Save(ctx, conv); err != nil {
		// The advanced state was never recorded; a step reply here would
		// make the next message land in the wrong field. Apologize and
		// report the state as stored.
		span.RecordError(err)
		o.logger.Error("failed to save conversation", "session_id", token, "error", err)
		return &TurnResponse{
			Reply:        apologyReply,
			SessionToken: conv.SessionID,
			BookingState: prior,
		}, nil
	}

	return &TurnResponse{
		Reply:        reply,
		SessionToken: conv.SessionID,
		BookingState: state,
	}, nil
}

// sessionLock returns the mutex serializing turns for one session token.
func (o *Orchestrator) sessionLock(token string) *sync.Mutex {
	mu, _ := o.locks.LoadOrStore(token, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// dispatch routes the message by priority: cancellation, booking entry,
// in-progress continuation, then the answer generator.
func (o *Orchestrator) dispatch(ctx context.Context, conv *Conversation, message string, now time.Time) (string, booking.State) {
	state := conv.Booking

	switch {
	case state.InProgress && o.detector.IsCancellation(message):
		turn := booking.Cancel()
		o.metrics.ObserveTurn(metrics.OutcomeCancelled)
		return turn.Reply, turn.State

	case !state.InProgress && o.detector.IsBookingIntent(message):
		turn := booking.Start()
		o.metrics.ObserveTurn(metrics.OutcomeBookingStarted)
		return turn.Reply, turn.State

	case state.InProgress:
		turn := booking.Next(state, message, now)
		if turn.Completed == nil {
			o.metrics.ObserveTurn(metrics.OutcomeBookingStep)
			return turn.Reply, turn.State
		}
		return o.finalizeBooking(ctx, conv, turn)

	default:
		return o.answer(ctx, conv, message), state
	}
}

// finalizeBooking persists the completed record before the conversation is
// saved with the reset state, so a crash between the two writes cannot lose
// the booking. On persistence failure the flow is held at the confirm step.
func (o *Orchestrator) finalizeBooking(ctx context.Context, conv *Conversation, turn booking.Turn) (string, booking.State) {
	date, err := time.Parse("2006-01-02", turn.Completed.PreferredDate)
	if err != nil {
		// Validation guarantees a parseable date; treat anything else as a
		// persistence failure and hold for retry.
		o.logger.Error("completed booking has unparseable date", "session_id", conv.SessionID, "date", turn.Completed.PreferredDate)
		o.metrics.ObserveTurn(metrics.OutcomeBookingRetry)
		return turn.RetryReply, turn.RetryState
	}

	appt := &appointments.Appointment{
		SessionID:     conv.SessionID,
		PetOwnerName:  turn.Completed.PetOwnerName,
		PetName:       turn.Completed.PetName,
		PhoneNumber:   turn.Completed.PhoneNumber,
		PreferredDate: date,
		PreferredTime: turn.Completed.PreferredTime,
		Status:        appointments.StatusPending,
		Context: appointments.ContextSnapshot{
			UserID:   conv.Context["userId"],
			UserName: conv.Context["userName"],
			Source:   conv.Context["source"],
		},
		CreatedAt: o.now().UTC(),
	}

	if o.appts == nil {
		o.logger.Error("no appointment store configured, holding booking for retry", "session_id", conv.SessionID)
		o.metrics.ObserveTurn(metrics.OutcomeBookingRetry)
		return turn.RetryReply, turn.RetryState
	}
	if err := o.appts.Save(ctx, appt); err != nil {
		o.logger.Error("failed to persist booking", "session_id", conv.SessionID, "error", err)
		o.metrics.ObserveTurn(metrics.OutcomeBookingRetry)
		return turn.RetryReply, turn.RetryState
	}

	o.logger.Info("appointment booked",
		"session_id", conv.SessionID,
		"appointment_id", appt.ID,
		"preferred_date", turn.Completed.PreferredDate,
		"preferred_time", turn.Completed.PreferredTime,
	)
	o.metrics.ObserveTurn(metrics.OutcomeBookingDone)
	o.metrics.ObserveBookingCreated()
	return turn.Reply, turn.State
}

// answer invokes the answer generator, substituting an apology on any
// failure so the turn still completes.
func (o *Orchestrator) answer(ctx context.Context, conv *Conversation, message string) string {
	if o.answers == nil {
		o.metrics.ObserveTurn(metrics.OutcomeAnswerFailed)
		return apologyReply
	}

	started := o.now()
	reply, err := o.answers.Generate(ctx, message, conv.Messages)
	o.metrics.ObserveLLMLatency(time.Since(started).Seconds())
	if err != nil {
		o.logger.Warn("answer generation failed", "session_id", conv.SessionID, "error", err)
		o.metrics.ObserveTurn(metrics.OutcomeAnswerFailed)
		return apologyReply
	}

	o.metrics.ObserveTurn(metrics.OutcomeAnswer)
	return reply
}
