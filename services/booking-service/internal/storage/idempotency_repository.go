package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Idempotency keys let a patient's client retry a booking POST without
// double-booking: the first attempt records the appointment it
// created, later attempts replay it.

// LockIdempotencyKey claims or re-reads the key row under a row lock,
// so a concurrent retry waits for the first attempt to finalize.
// It returns the appointment id already bound to the key, if any.
func (r *AppointmentRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (string, error) {
	appointmentID, err := r.selectIdempotencyForUpdate(ctx, tx, key)
	if err == nil {
		return appointmentID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (idempotency_key)
		VALUES ($1)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, key)
	if err != nil {
		return "", err
	}

	return r.selectIdempotencyForUpdate(ctx, tx, key)
}

func (r *AppointmentRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, key, appointmentID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $2,
			updated_at = now()
		WHERE idempotency_key = $1
	`, key, appointmentID)
	return err
}

func (r *AppointmentRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, key string) (string, error) {
	var appointmentID string
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(appointment_id::text, '')
		FROM booking_idempotency_keys
		WHERE idempotency_key = $1
		FOR UPDATE
	`, key).Scan(&appointmentID)
	return appointmentID, err
}
