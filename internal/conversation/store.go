package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/vetchat-ai-platform/internal/booking"
)

// Store loads and saves conversations. Load returns (nil, nil) for an
// unknown session token.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Conversation, error)
	Save(ctx context.Context, conv *Conversation) error
}

// conversationDoc is the stored shape. The booking snapshot is kept as the
// legacy string map so documents written by earlier deployments stay
// readable, including entries whose values are empty strings.
type conversationDoc struct {
	SessionID        string            `json:"sessionId"`
	Messages         []Message         `json:"messages"`
	Context          map[string]string `json:"context"`
	AppointmentState map[string]string `json:"appointmentState"`
	CreatedAt        string            `json:"createdAt,omitempty"`
	UpdatedAt        string            `json:"updatedAt,omitempty"`
}

// RedisStore keeps conversation documents in Redis as JSON. Documents have no
// TTL: sessions are only removed by out-of-band maintenance.
type RedisStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

// NewRedisStore creates a Redis-backed conversation store.
func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	return &RedisStore{
		redis:  client,
		tracer: otel.Tracer("vetchat.internal.conversation.store"),
	}
}

const timeLayout = "2006-01-02T15:04:05.000Z"

func conversationKey(sessionID string) string {
	return fmt.Sprintf("conversation:%s", sessionID)
}

func parseDocTime(raw string, dst *time.Time) {
	if raw == "" {
		return
	}
	if t, err := time.Parse(timeLayout, raw); err == nil {
		*dst = t
		return
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		*dst = t
	}
}

// Load fetches a conversation document.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (*Conversation, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load")
	defer span.End()

	if strings.TrimSpace(sessionID) == "" {
		return nil, nil
	}

	data, err := s.redis.Get(ctx, conversationKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load %s: %w", sessionID, err)
	}

	var doc conversationDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode %s: %w", sessionID, err)
	}

	conv := &Conversation{
		SessionID: doc.SessionID,
		Messages:  doc.Messages,
		Context:   doc.Context,
		Booking:   booking.FromWire(doc.AppointmentState),
	}
	if conv.SessionID == "" {
		conv.SessionID = sessionID
	}
	if conv.Context == nil {
		conv.Context = map[string]string{}
	}
	parseDocTime(doc.CreatedAt, &conv.CreatedAt)
	parseDocTime(doc.UpdatedAt, &conv.UpdatedAt)
	return conv, nil
}

// Save writes the conversation document back, replacing the previous one.
func (s *RedisStore) Save(ctx context.Context, conv *Conversation) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save")
	defer span.End()

	if conv == nil || strings.TrimSpace(conv.SessionID) == "" {
		return fmt.Errorf("conversation: cannot save conversation without session id")
	}

	doc := conversationDoc{
		SessionID:        conv.SessionID,
		Messages:         conv.Messages,
		Context:          conv.Context,
		AppointmentState: conv.Booking.ToWire(),
	}
	if !conv.CreatedAt.IsZero() {
		doc.CreatedAt = conv.CreatedAt.UTC().Format(timeLayout)
	}
	if !conv.UpdatedAt.IsZero() {
		doc.UpdatedAt = conv.UpdatedAt.UTC().Format(timeLayout)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to encode %s: %w", conv.SessionID, err)
	}
	if err := s.redis.Set(ctx, conversationKey(conv.SessionID), data, 0).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist %s: %w", conv.SessionID, err)
	}
	return nil
}
