package conversation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/vetchat-ai-platform/pkg/logging"
)

// Handler wires the chat HTTP surface to the turn orchestrator. Response
// shapes match what the embedded widget already expects.
type Handler struct {
	orchestrator *Orchestrator
	logger       *logging.Logger
}

// NewHandler creates a chat handler.
func NewHandler(orchestrator *Orchestrator, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{orchestrator: orchestrator, logger: logger}
}

type sessionRequest struct {
	SessionID string            `json:"sessionId"`
	Context   map[string]string `json:"context"`
}

type sessionResponse struct {
	SessionID        string            `json:"sessionId"`
	Context          map[string]string `json:"context"`
	AppointmentState map[string]string `json:"appointmentState"`
	Messages         []Message         `json:"messages"`
}

// Session handles POST /api/chat/session: get-or-create a conversation.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	conv, err := h.orchestrator.EnsureSession(r.Context(), req.SessionID, req.Context)
	if err != nil {
		h.logger.Error("session creation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	h.writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:        conv.SessionID,
		Context:          conv.Context,
		AppointmentState: conv.Booking.ToWire(),
		Messages:         messagesOrEmpty(conv.Messages),
	})
}

type messageRequest struct {
	SessionID string            `json:"sessionId"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context"`
}

type messageResponse struct {
	Response         string            `json:"response"`
	SessionID        string            `json:"sessionId"`
	AppointmentState map[string]string `json:"appointmentState"`
}

// Message handles POST /api/chat/message: one chat turn.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.orchestrator.ProcessTurn(r.Context(), TurnRequest{
		SessionToken: req.SessionID,
		Message:      req.Message,
		ContextPatch: req.Context,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidSession) || errors.Is(err, ErrEmptyMessage) {
			h.writeError(w, http.StatusBadRequest, "Valid session ID and message are required")
			return
		}
		h.logger.Error("message handling failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to process message")
		return
	}

	h.writeJSON(w, http.StatusOK, messageResponse{
		Response:         resp.Reply,
		SessionID:        resp.SessionToken,
		AppointmentState: resp.BookingState.ToWire(),
	})
}

type conversationResponse struct {
	SessionID        string            `json:"sessionId"`
	Messages         []Message         `json:"messages"`
	Context          map[string]string `json:"context"`
	AppointmentState map[string]string `json:"appointmentState"`
}

// History handles GET /api/conversations/{sessionID}.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conv, err := h.orchestrator.GetConversation(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("conversation fetch failed", "session_id", sessionID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch conversation")
		return
	}
	if conv == nil {
		h.writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	h.writeJSON(w, http.StatusOK, conversationResponse{
		SessionID:        conv.SessionID,
		Messages:         messagesOrEmpty(conv.Messages),
		Context:          conv.Context,
		AppointmentState: conv.Booking.ToWire(),
	})
}

func messagesOrEmpty(msgs []Message) []Message {
	if msgs == nil {
		return []Message{}
	}
	return msgs
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
