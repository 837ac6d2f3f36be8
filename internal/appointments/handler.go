package appointments

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/vetchat-ai-platform/pkg/logging"
)

// Handler serves read access to persisted appointments.
type Handler struct {
	repo   *Repository
	logger *logging.Logger
}

// NewHandler creates an appointments handler.
func NewHandler(repo *Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// GetBySession handles GET /api/appointments/session/{sessionID} and returns
// the latest appointment for the session.
func (h *Handler) GetBySession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "session ID required", http.StatusBadRequest)
		return
	}

	appt, err := h.repo.FindLatestBySession(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to fetch appointment", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch appointment")
		return
	}
	if appt == nil {
		writeError(w, http.StatusNotFound, "Appointment not found")
		return
	}

	h.writeJSON(w, http.StatusOK, appt)
}

// List handles GET /api/appointments, newest first, capped at 100.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	appts, err := h.repo.List(r.Context(), 100)
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch appointments")
		return
	}
	if appts == nil {
		appts = []Appointment{}
	}

	h.writeJSON(w, http.StatusOK, appts)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
