package storage

import (
	"context"

	"github.com/clinicbook/clinicbook/libs/db"
)

// Notification is the delivery record for one rendered message. One
// appointment accumulates a row per status change per channel.
type Notification struct {
	AppointmentID string
	EventType     string
	Channel       string
	Recipient     string
	Subject       string
	Body          string
	Status        string
	ErrorReason   string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (appointment_id, event_type, channel, recipient, subject, body, status, error_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.AppointmentID, n.EventType, n.Channel, n.Recipient, n.Subject, n.Body, n.Status, n.ErrorReason)
	return err
}

// ListForAppointment is the support view: what did we send, when, and
// did it land.
func (r *Repository) ListForAppointment(ctx context.Context, appointmentID string) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT appointment_id, event_type, channel, recipient, subject, body, status, error_reason
		FROM notifications
		WHERE appointment_id = $1
		ORDER BY id
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.AppointmentID, &n.EventType, &n.Channel, &n.Recipient, &n.Subject, &n.Body, &n.Status, &n.ErrorReason); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
