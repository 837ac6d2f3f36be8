package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/vetchat-ai-platform/internal/appointments"
	"github.com/wolfman30/vetchat-ai-platform/internal/booking"
	"github.com/wolfman30/vetchat-ai-platform/pkg/logging"
)

type stubAnswers struct {
	reply string
	err   error
	calls int
}

func (s *stubAnswers) Generate(_ context.Context, _ string, _ []Message) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type fakeApptStore struct {
	saved []*appointments.Appointment
	err   error
}

func (f *fakeApptStore) Save(_ context.Context, appt *appointments.Appointment) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, appt)
	return nil
}

// flakyStore fails saves on demand, passing everything else through.
type flakyStore struct {
	Store
	failSaves bool
}

func (f *flakyStore) Save(ctx context.Context, conv *Conversation) error {
	if f.failSaves {
		return errors.New("redis: connection refused")
	}
	return f.Store.Save(ctx, conv)
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *stubAnswers, *fakeApptStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	answers := &stubAnswers{reply: "Dogs need annual checkups."}
	appts := &fakeApptStore{}
	orc := NewOrchestrator(NewRedisStore(client), appts, answers, logging.Default(), nil)
	return orc, answers, appts
}

func turn(t *testing.T, orc *Orchestrator, session, message string) *TurnResponse {
	t.Helper()
	resp, err := orc.ProcessTurn(context.Background(), TurnRequest{SessionToken: session, Message: message})
	require.NoError(t, err)
	return resp
}

func TestProcessTurnRejectsInvalidInput(t *testing.T) {
	orc, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	for _, token := range []string{"", "   ", "undefined", "null"} {
		_, err := orc.ProcessTurn(ctx, TurnRequest{SessionToken: token, Message: "hello"})
		assert.ErrorIs(t, err, ErrInvalidSession, "token %q", token)
	}

	_, err := orc.ProcessTurn(ctx, TurnRequest{SessionToken: "sess-1", Message: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	// Nothing was persisted by the rejected turns.
	conv, err := orc.GetConversation(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func TestProcessTurnAnswersFreeTextQuestions(t *testing.T) {
	orc, answers, _ := newTestOrchestrator(t)

	resp := turn(t, orc, "sess-answer", "how often should I deworm a puppy?")
	assert.Equal(t, "Dogs need annual checkups.", resp.Reply)
	assert.Equal(t, "sess-answer", resp.SessionToken)
	assert.False(t, resp.BookingState.InProgress)
	assert.Equal(t, 1, answers.calls)

	// Both messages landed in the transcript.
	conv, err := orc.GetConversation(context.Background(), "sess-answer")
	require.NoError(t, err)
	require.NotNil(t, conv)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, RoleUser, conv.Messages[0].Role)
	assert.Equal(t, RoleBot, conv.Messages[1].Role)
}

func TestProcessTurnRecoversFromGeneratorFailure(t *testing.T) {
	orc, answers, _ := newTestOrchestrator(t)
	answers.err = errors.New("backend unavailable")

	resp := turn(t, orc, "sess-fail", "what should I feed my cat?")
	assert.Equal(t, apologyReply, resp.Reply)

	// The failed turn is still recorded.
	conv, err := orc.GetConversation(context.Background(), "sess-fail")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
}

func TestProcessTurnWithoutGeneratorApologizes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	orc := NewOrchestrator(NewRedisStore(client), &fakeApptStore{}, nil, logging.Default(), nil)

	resp := turn(t, orc, "sess-nogen", "hello there")
	assert.Equal(t, apologyReply, resp.Reply)
}

func TestEndToEndBookingScenario(t *testing.T) {
	orc, answers, appts := newTestOrchestrator(t)
	session := "sess-book"

	messages := []string{
		"I want to book an appointment",
		"Jane Doe",
		"Rex",
		"555-1234",
		"2099-01-01",
		"14:30",
	}

	var last *TurnResponse
	for _, msg := range messages {
		last = turn(t, orc, session, msg)
	}

	for _, want := range []string{"Jane Doe", "Rex", "555-1234", "2099-01-01", "14:30"} {
		assert.Contains(t, last.Reply, want)
	}
	assert.False(t, last.BookingState.InProgress)

	require.Len(t, appts.saved, 1)
	appt := appts.saved[0]
	assert.Equal(t, session, appt.SessionID)
	assert.Equal(t, appointments.StatusPending, appt.Status)
	assert.Equal(t, "Jane Doe", appt.PetOwnerName)
	assert.Equal(t, "Rex", appt.PetName)
	assert.Equal(t, "2099-01-01", appt.PreferredDate.Format("2006-01-02"))
	assert.Equal(t, "14:30", appt.PreferredTime)

	// The generator was never consulted during the flow.
	assert.Equal(t, 0, answers.calls)
}

func TestBookingCopiesContextSnapshot(t *testing.T) {
	orc, _, appts := newTestOrchestrator(t)
	session := "sess-ctx"

	_, err := orc.ProcessTurn(context.Background(), TurnRequest{
		SessionToken: session,
		Message:      "book an appointment please",
		ContextPatch: map[string]string{"userId": "u-7", "userName": "Jane", "source": "widget"},
	})
	require.NoError(t, err)

	for _, msg := range []string{"Jane Doe", "Rex", "555-1234", "2099-01-01", "14:30"} {
		turn(t, orc, session, msg)
	}

	require.Len(t, appts.saved, 1)
	assert.Equal(t, appointments.ContextSnapshot{UserID: "u-7", UserName: "Jane", Source: "widget"}, appts.saved[0].Context)
}

func TestReentryGuard(t *testing.T) {
	orc, _, _ := newTestOrchestrator(t)
	session := "sess-reentry"

	turn(t, orc, session, "I want to book an appointment")
	turn(t, orc, session, "Jane Doe")

	// Booking keywords mid-flow are treated as the current step's answer.
	resp := turn(t, orc, session, "I'd like to book an appointment for my dog")
	assert.Equal(t, booking.StepPhone, resp.BookingState.Step)
	assert.Equal(t, "I'd like to book an appointment for my dog", resp.BookingState.PetName)
}

func TestCancellationAtEveryStep(t *testing.T) {
	orc, _, _ := newTestOrchestrator(t)

	prefixes := [][]string{
		{},
		{"Jane Doe"},
		{"Jane Doe", "Rex"},
		{"Jane Doe", "Rex", "555-1234"},
		{"Jane Doe", "Rex", "555-1234", "2099-01-01"},
	}

	for i, prefix := range prefixes {
		session := uuid.NewString()
		turn(t, orc, session, "I want to book an appointment")
		for _, msg := range prefix {
			turn(t, orc, session, msg)
		}

		resp := turn(t, orc, session, "actually, cancel that")
		assert.Equal(t, booking.State{}, resp.BookingState, "prefix %d", i)
		assert.Contains(t, resp.Reply, "cancelled")
	}
}

func TestCancellationTakesPrecedenceOverBookingIntent(t *testing.T) {
	orc, _, _ := newTestOrchestrator(t)
	session := "sess-precedence"

	turn(t, orc, session, "book an appointment")
	resp := turn(t, orc, session, "cancel the appointment booking")
	assert.False(t, resp.BookingState.InProgress)
}

func TestValidationFailureRequiresFullRecollection(t *testing.T) {
	orc, _, appts := newTestOrchestrator(t)
	session := "sess-restart"

	turn(t, orc, session, "I want to book an appointment")
	turn(t, orc, session, "Jane Doe")
	turn(t, orc, session, "Rex")
	turn(t, orc, session, "abc") // invalid phone, caught at confirm
	turn(t, orc, session, "2099-01-01")
	resp := turn(t, orc, session, "14:30")

	assert.Contains(t, resp.Reply, "start over")
	assert.Equal(t, booking.StepOwnerName, resp.BookingState.Step)
	assert.Empty(t, appts.saved)

	// A fresh run from scratch succeeds.
	for _, msg := range []string{"Jane Doe", "Rex", "555-1234", "2099-01-01", "14:30"} {
		resp = turn(t, orc, session, msg)
	}
	assert.False(t, resp.BookingState.InProgress)
	require.Len(t, appts.saved, 1)
}

func TestPersistFailureHoldsAtConfirm(t *testing.T) {
	orc, _, appts := newTestOrchestrator(t)
	appts.err = errors.New("db down")
	session := "sess-retry"

	for _, msg := range []string{"I want to book an appointment", "Jane Doe", "Rex", "555-1234", "2099-01-01"} {
		turn(t, orc, session, msg)
	}
	resp := turn(t, orc, session, "14:30")

	assert.Contains(t, resp.Reply, "error booking your appointment")
	assert.True(t, resp.BookingState.InProgress)
	assert.Equal(t, booking.StepConfirm, resp.BookingState.Step)
	assert.Empty(t, appts.saved)

	// Once persistence recovers, the next message triggers a fresh confirm
	// attempt regardless of its content.
	appts.err = nil
	resp = turn(t, orc, session, "did that work?")
	assert.False(t, resp.BookingState.InProgress)
	require.Len(t, appts.saved, 1)
	assert.Equal(t, "Jane Doe", appts.saved[0].PetOwnerName)
}

func TestSaveFailureApologizesAndKeepsStoredState(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := &flakyStore{Store: NewRedisStore(client)}
	orc := NewOrchestrator(store, &fakeApptStore{}, &stubAnswers{reply: "ok"}, logging.Default(), nil)
	session := "sess-outage"

	resp := turn(t, orc, session, "I want to book an appointment")
	require.Equal(t, booking.StepOwnerName, resp.BookingState.Step)

	// The answer given during the outage was not recorded; the visitor must
	// not be told the flow advanced.
	store.failSaves = true
	resp = turn(t, orc, session, "Jane Doe")
	assert.Equal(t, apologyReply, resp.Reply)
	assert.Equal(t, booking.StepOwnerName, resp.BookingState.Step)
	assert.Empty(t, resp.BookingState.OwnerName)

	// Repeating the answer after recovery lands it in the right field.
	store.failSaves = false
	resp = turn(t, orc, session, "Jane Doe")
	assert.Contains(t, resp.Reply, "Jane Doe")
	assert.Equal(t, booking.StepPetName, resp.BookingState.Step)
	assert.Equal(t, "Jane Doe", resp.BookingState.OwnerName)

	resp = turn(t, orc, session, "Rex")
	assert.Equal(t, "Jane Doe", resp.BookingState.OwnerName)
	assert.Equal(t, "Rex", resp.BookingState.PetName)
}

func TestConcurrentTurnsAreSerializedPerSession(t *testing.T) {
	orc, _, _ := newTestOrchestrator(t)
	session := "sess-burst"
	const turns = 8

	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := orc.ProcessTurn(context.Background(), TurnRequest{
				SessionToken: session,
				Message:      fmt.Sprintf("question %d", i),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// Every turn's user and bot message survived the burst.
	conv, err := orc.GetConversation(context.Background(), session)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Len(t, conv.Messages, 2*turns)
}

func TestContextPatchIsMerged(t *testing.T) {
	orc, _, _ := newTestOrchestrator(t)
	session := "sess-merge"
	ctx := context.Background()

	_, err := orc.ProcessTurn(ctx, TurnRequest{
		SessionToken: session,
		Message:      "hello",
		ContextPatch: map[string]string{"userId": "u-1", "source": "widget"},
	})
	require.NoError(t, err)

	_, err = orc.ProcessTurn(ctx, TurnRequest{
		SessionToken: session,
		Message:      "hello again",
		ContextPatch: map[string]string{"source": "mobile"},
	})
	require.NoError(t, err)

	conv, err := orc.GetConversation(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"userId": "u-1", "source": "mobile"}, conv.Context)
}

func TestEnsureSessionMintsTokenForInvalidInput(t *testing.T) {
	orc, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	for _, token := range []string{"", "undefined", "null"} {
		conv, err := orc.EnsureSession(ctx, token, nil)
		require.NoError(t, err)
		_, parseErr := uuid.Parse(conv.SessionID)
		assert.NoError(t, parseErr, "token %q should mint a UUID", token)
	}
}

func TestEnsureSessionReturnsExistingConversation(t *testing.T) {
	orc, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	created, err := orc.EnsureSession(ctx, "sess-existing", map[string]string{"userId": "u-1"})
	require.NoError(t, err)

	turn(t, orc, created.SessionID, "hello")

	// Context patches are only applied at creation time.
	again, err := orc.EnsureSession(ctx, "sess-existing", map[string]string{"userId": "u-2"})
	require.NoError(t, err)
	assert.Equal(t, "u-1", again.Context["userId"])
	assert.Len(t, again.Messages, 2)
}

func TestEnsureSessionKeepsLegacyToken(t *testing.T) {
	orc, _, _ := newTestOrchestrator(t)

	conv, err := orc.EnsureSession(context.Background(), "legacy-token-42", nil)
	require.NoError(t, err)
	assert.Equal(t, "legacy-token-42", conv.SessionID)
}

func TestTurnsForDistinctSessionsAreIndependent(t *testing.T) {
	orc, _, _ := newTestOrchestrator(t)

	turn(t, orc, "sess-a", "I want to book an appointment")
	respB := turn(t, orc, "sess-b", "what do kittens eat?")

	assert.False(t, respB.BookingState.InProgress)

	convA, err := orc.GetConversation(context.Background(), "sess-a")
	require.NoError(t, err)
	assert.True(t, convA.Booking.InProgress)
}

func TestTimestampsAreAppendOrdered(t *testing.T) {
	orc, _, _ := newTestOrchestrator(t)
	session := "sess-ts"

	turn(t, orc, session, "first")
	turn(t, orc, session, "second")

	conv, err := orc.GetConversation(context.Background(), session)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 4)
	for i := 1; i < len(conv.Messages); i++ {
		assert.False(t, conv.Messages[i].Timestamp.Before(conv.Messages[i-1].Timestamp))
	}
}
