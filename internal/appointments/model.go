// Package appointments persists finalized appointment requests produced by
// the booking dialogue and serves read access to them.
package appointments

import (
	"time"

	"github.com/google/uuid"
)

// Status is the operator-facing appointment status. Records are always
// created as pending; later transitions belong to an operator workflow.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// ContextSnapshot is the conversation context denormalized onto the
// appointment at creation time.
type ContextSnapshot struct {
	UserID   string `json:"userId,omitempty"`
	UserName string `json:"userName,omitempty"`
	Source   string `json:"source,omitempty"`
}

// Appointment is a finalized, validated booking. A session may own several
// appointments over its lifetime (cancel and rebook); everything but Status
// is immutable after creation.
type Appointment struct {
	ID            uuid.UUID       `json:"id"`
	SessionID     string          `json:"sessionId"`
	PetOwnerName  string          `json:"petOwnerName"`
	PetName       string          `json:"petName"`
	PhoneNumber   string          `json:"phoneNumber"`
	PreferredDate time.Time       `json:"preferredDate"`
	PreferredTime string          `json:"preferredTime"`
	Status        Status          `json:"status"`
	Context       ContextSnapshot `json:"context"`
	CreatedAt     time.Time       `json:"createdAt"`
}
