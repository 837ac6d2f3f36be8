package appointments

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository persists appointments to PostgreSQL.
type Repository struct {
	db *sql.DB
}

// NewRepository creates an appointment repository.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		panic("appointments: db required")
	}
	return &Repository{db: db}
}

// Save inserts a new appointment row. Missing ID, status, and creation time
// are filled in with defaults.
func (r *Repository) Save(ctx context.Context, appt *Appointment) error {
	if appt == nil {
		return fmt.Errorf("appointments: nil appointment")
	}
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	if appt.Status == "" {
		appt.Status = StatusPending
	}
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO appointments (
			id, session_id, pet_owner_name, pet_name, phone_number,
			preferred_date, preferred_time, status,
			context_user_id, context_user_name, context_source, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, appt.ID, appt.SessionID, appt.PetOwnerName, appt.PetName, appt.PhoneNumber,
		appt.PreferredDate, appt.PreferredTime, string(appt.Status),
		appt.Context.UserID, appt.Context.UserName, appt.Context.Source, appt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("appointments: failed to insert: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT id, session_id, pet_owner_name, pet_name, phone_number,
		   preferred_date, preferred_time, status,
		   COALESCE(context_user_id, ''), COALESCE(context_user_name, ''),
		   COALESCE(context_source, ''), created_at
	FROM appointments
`

// FindLatestBySession returns the most recent appointment for a session
// token, or nil when the session has never completed a booking.
func (r *Repository) FindLatestBySession(ctx context.Context, sessionID string) (*Appointment, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+`
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, sessionID)

	appt, err := scanAppointment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: failed to load latest for session: %w", err)
	}
	return appt, nil
}

// List returns appointments newest first, capped at limit.
func (r *Repository) List(ctx context.Context, limit int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, selectColumns+`
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("appointments: failed to list: %w", err)
	}
	defer rows.Close()

	var appts []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: failed to scan row: %w", err)
		}
		appts = append(appts, *appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: failed to read rows: %w", err)
	}
	return appts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*Appointment, error) {
	var appt Appointment
	var status string
	err := row.Scan(
		&appt.ID, &appt.SessionID, &appt.PetOwnerName, &appt.PetName, &appt.PhoneNumber,
		&appt.PreferredDate, &appt.PreferredTime, &status,
		&appt.Context.UserID, &appt.Context.UserName, &appt.Context.Source, &appt.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	appt.Status = Status(status)
	return &appt, nil
}
