// Package conversation holds the chat turn orchestration: conversation
// persistence, the answer generator backed by Gemini, and the glue between
// visitor messages and the booking dialogue.
package conversation

import (
	"time"

	"github.com/wolfman30/vetchat-ai-platform/internal/booking"
)

const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// Message is a single entry in a conversation transcript. The log is
// append-only; messages are never reordered or deleted.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the per-visitor session state, keyed by an opaque session
// token. Tokens are minted as UUIDs but legacy non-UUID values are accepted.
type Conversation struct {
	SessionID string
	Messages  []Message
	Context   map[string]string // userId, userName, source
	Booking   booking.State
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Append adds a message to the transcript.
func (c *Conversation) Append(role, content string, at time.Time) {
	c.Messages = append(c.Messages, Message{Role: role, Content: content, Timestamp: at})
}

// MergeContext applies a shallow last-write-wins patch to the context map.
func (c *Conversation) MergeContext(patch map[string]string) {
	if len(patch) == 0 {
		return
	}
	if c.Context == nil {
		c.Context = make(map[string]string, len(patch))
	}
	for k, v := range patch {
		c.Context[k] = v
	}
}
