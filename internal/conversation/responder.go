package conversation

import (
	"context"
	"errors"
	"strings"
	"time"
)

// systemPrompt scopes the assistant to veterinary topics.
const systemPrompt = `You are a helpful veterinary assistant chatbot. Your role is to:

1. Answer questions about pet care, veterinary topics, and animal health
2. Provide information about pet wellness, vaccination schedules, diet and
   nutrition, common illnesses and symptoms, and preventive care
3. Help users book veterinary appointments when they express intent to do so

IMPORTANT RULES:
- ONLY answer questions related to veterinary topics, pet care, and animal health
- If asked about non-veterinary topics, politely decline: "I'm a veterinary assistant and can only help with pet care and veterinary-related questions. How can I assist you with your pet today?"
- Be friendly, professional, and empathetic
- Keep responses concise but informative
- Do NOT provide specific medical diagnoses or replace professional veterinary consultation
- Always recommend consulting a veterinarian for serious health concerns`

// historyWindow caps how much transcript is sent with each completion.
const historyWindow = 10

// AnswerGenerator produces a free-text reply for messages outside the
// booking flow.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt string, history []Message) (string, error)
}

// Responder is the LLM-backed answer generator. Every call is bounded by a
// timeout; expiry is surfaced as an ordinary error the orchestrator recovers
// from.
type Responder struct {
	llm     LLMClient
	timeout time.Duration
}

// NewResponder creates a responder over the given client.
func NewResponder(llm LLMClient, timeout time.Duration) *Responder {
	if llm == nil {
		panic("conversation: responder requires an llm client")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Responder{llm: llm, timeout: timeout}
}

// Generate asks the model for a reply to prompt given the transcript so far.
// history is expected to already include the prompt as its last user entry.
func (r *Responder) Generate(ctx context.Context, prompt string, history []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	messages := chatMessages(history)
	if len(messages) == 0 || messages[len(messages)-1].Role != ChatRoleUser {
		messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: prompt})
	}

	resp, err := r.llm.Complete(ctx, LLMRequest{
		System:   []string{systemPrompt},
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", errors.New("conversation: model returned an empty reply")
	}
	return text, nil
}

// chatMessages maps the tail of the transcript to LLM chat messages.
func chatMessages(history []Message) []ChatMessage {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	out := make([]ChatMessage, 0, len(history))
	for _, msg := range history {
		role := ChatRoleUser
		if msg.Role == RoleBot {
			role = ChatRoleAssistant
		}
		out = append(out, ChatMessage{Role: role, Content: msg.Content})
	}
	return out
}
