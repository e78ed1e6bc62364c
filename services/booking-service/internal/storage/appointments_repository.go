package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicbook/clinicbook/libs/db"
	"github.com/clinicbook/clinicbook/services/booking-service/internal/model"
)

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const appointmentColumns = `
	id::text, patient_name, patient_email, patient_phone, service_id::text,
	appointment_at, end_time, status, COALESCE(shift, ''), token_number,
	notes, cancelled_at, COALESCE(cancel_reason, ''), created_at`

func (r *AppointmentRepository) Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error) {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	var shift *string
	if appt.Shift != model.ShiftNone {
		s := string(appt.Shift)
		shift = &s
	}
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, patient_name, patient_email, patient_phone, service_id,
			 appointment_at, end_time, status, shift, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id::text
	`, appt.ID, appt.PatientName, appt.PatientEmail, appt.PatientPhone, appt.ServiceID,
		appt.AppointmentAt, appt.EndTime, appt.Status, shift, appt.Notes).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	return scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id))
}

func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	return scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id))
}

// HasOverlap is the read half of the overlap guard. It runs inside the
// same transaction as the insert/update it protects and locks the rows
// it finds, so a concurrent writer touching the same window blocks
// until this transaction commits. The exclusion constraint on the
// table backs the remaining insert/insert race.
func (r *AppointmentRepository) HasOverlap(ctx context.Context, tx pgx.Tx, serviceID string, start, end time.Time, excludeID string) (bool, error) {
	var id string
	err := tx.QueryRow(ctx, `
		SELECT id::text
		FROM appointments
		WHERE service_id = $1
			AND shift IS NULL
			AND status <> 'cancelled'
			AND appointment_at < $3
			AND end_time > $2
			AND ($4 = '' OR id::text <> $4)
		LIMIT 1
		FOR UPDATE
	`, serviceID, start, end, excludeID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetStatus persists a status change; tokenNumber is written only when
// non-nil (first confirmation of a shift booking). Cancellations stamp
// cancelled_at and keep the row: appointment history stays queryable.
func (r *AppointmentRepository) SetStatus(ctx context.Context, tx pgx.Tx, id string, status model.Status, tokenNumber *int, cancelReason string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
			token_number = COALESCE($3, token_number),
			cancelled_at = CASE WHEN $2 = 'cancelled' THEN now() ELSE cancelled_at END,
			cancel_reason = CASE WHEN $2 = 'cancelled' THEN $4 ELSE cancel_reason END,
			updated_at = now()
		WHERE id = $1
	`, id, status, tokenNumber, cancelReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Move rewrites the appointment window after a reschedule. end_time is
// always recomputed by the caller from the service duration.
func (r *AppointmentRepository) Move(ctx context.Context, tx pgx.Tx, id string, at, end time.Time, status model.Status) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET appointment_at = $2,
			end_time = $3,
			status = $4,
			updated_at = now()
		WHERE id = $1
	`, id, at, end, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// NextTokenNumber allocates the next queue number for a clinic-local
// day and shift. The counter row's lock serializes concurrent
// confirmations for the same pair; numbers are issued once and never
// reclaimed, even if the appointment is later cancelled.
func (r *AppointmentRepository) NextTokenNumber(ctx context.Context, tx pgx.Tx, day string, shift model.Shift) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		INSERT INTO shift_token_counters (day, shift, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (day, shift) DO UPDATE
		SET last_number = shift_token_counters.last_number + 1
		RETURNING last_number
	`, day, shift).Scan(&n)
	return n, err
}

// ListBusyBetween returns the non-cancelled appointments overlapping
// [start, end), used to block the availability grid. One range read
// serves a whole multi-day availability request.
func (r *AppointmentRepository) ListBusyBetween(ctx context.Context, start, end time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status <> 'cancelled'
			AND appointment_at < $2
			AND end_time > $1
		ORDER BY appointment_at ASC
	`, start, end)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *AppointmentRepository) List(ctx context.Context, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		ORDER BY appointment_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var shift string
	err := row.Scan(
		&appt.ID,
		&appt.PatientName,
		&appt.PatientEmail,
		&appt.PatientPhone,
		&appt.ServiceID,
		&appt.AppointmentAt,
		&appt.EndTime,
		&appt.Status,
		&shift,
		&appt.TokenNumber,
		&appt.Notes,
		&appt.CancelledAt,
		&appt.CancelReason,
		&appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Shift = model.Shift(shift)
	return appt, nil
}

// IsConflict reports an exclusion-constraint violation: two slot-mode
// bookings raced and the loser's insert hit appointments_no_overlap.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
