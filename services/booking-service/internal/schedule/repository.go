package schedule

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinicbook/clinicbook/libs/db"
)

// Repository reads and writes the clinic opening configuration. The
// booking flow only ever reads; mutation happens through the admin
// endpoints.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetConfig loads the weekly default configuration, seeding the row on
// first use so a fresh database behaves sensibly (morning 09:00-13:00,
// evening 17:00-21:00).
func (r *Repository) GetConfig(ctx context.Context) (Config, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO schedule_config (id)
		VALUES (1)
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	err = r.pool.QueryRow(ctx, `
		SELECT morning_enabled, morning_start_minute, morning_end_minute,
			evening_enabled, evening_start_minute, evening_end_minute
		FROM schedule_config
		WHERE id = 1
	`).Scan(
		&cfg.MorningEnabled,
		&cfg.Morning.StartMinute,
		&cfg.Morning.EndMinute,
		&cfg.EveningEnabled,
		&cfg.Evening.StartMinute,
		&cfg.Evening.EndMinute,
	)
	return cfg, err
}

func (r *Repository) UpdateConfig(ctx context.Context, cfg Config) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO schedule_config
			(id, morning_enabled, morning_start_minute, morning_end_minute,
			 evening_enabled, evening_start_minute, evening_end_minute)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET morning_enabled = EXCLUDED.morning_enabled,
			morning_start_minute = EXCLUDED.morning_start_minute,
			morning_end_minute = EXCLUDED.morning_end_minute,
			evening_enabled = EXCLUDED.evening_enabled,
			evening_start_minute = EXCLUDED.evening_start_minute,
			evening_end_minute = EXCLUDED.evening_end_minute,
			updated_at = now()
	`, cfg.MorningEnabled, cfg.Morning.StartMinute, cfg.Morning.EndMinute,
		cfg.EveningEnabled, cfg.Evening.StartMinute, cfg.Evening.EndMinute)
	return err
}

// GetException returns the override for a date, or nil when none
// exists (meaning the global defaults apply).
func (r *Repository) GetException(ctx context.Context, date string) (*Exception, error) {
	exc, err := scanException(r.pool.QueryRow(ctx, `
		SELECT id::text, exception_date::text, morning_open, evening_open,
			morning_start_minute, morning_end_minute,
			evening_start_minute, evening_end_minute,
			reason, created_at
		FROM schedule_exceptions
		WHERE exception_date = $1
	`, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return exc, nil
}

// UpsertException creates or replaces the override for its date.
func (r *Repository) UpsertException(ctx context.Context, exc Exception) (string, error) {
	if exc.ID == "" {
		exc.ID = uuid.NewString()
	}
	var morningStart, morningEnd, eveningStart, eveningEnd *int
	if exc.MorningWindow != nil {
		morningStart, morningEnd = &exc.MorningWindow.StartMinute, &exc.MorningWindow.EndMinute
	}
	if exc.EveningWindow != nil {
		eveningStart, eveningEnd = &exc.EveningWindow.StartMinute, &exc.EveningWindow.EndMinute
	}

	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO schedule_exceptions
			(id, exception_date, morning_open, evening_open,
			 morning_start_minute, morning_end_minute,
			 evening_start_minute, evening_end_minute, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (exception_date) DO UPDATE
		SET morning_open = EXCLUDED.morning_open,
			evening_open = EXCLUDED.evening_open,
			morning_start_minute = EXCLUDED.morning_start_minute,
			morning_end_minute = EXCLUDED.morning_end_minute,
			evening_start_minute = EXCLUDED.evening_start_minute,
			evening_end_minute = EXCLUDED.evening_end_minute,
			reason = EXCLUDED.reason,
			updated_at = now()
		RETURNING id::text
	`, exc.ID, exc.Date, exc.MorningOpen, exc.EveningOpen,
		morningStart, morningEnd, eveningStart, eveningEnd, exc.Reason).Scan(&id)
	return id, err
}

func (r *Repository) DeleteException(ctx context.Context, date string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM schedule_exceptions
		WHERE exception_date = $1
	`, date)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) ListExceptions(ctx context.Context, from, to string) ([]Exception, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, exception_date::text, morning_open, evening_open,
			morning_start_minute, morning_end_minute,
			evening_start_minute, evening_end_minute,
			reason, created_at
		FROM schedule_exceptions
		WHERE exception_date >= $1 AND exception_date <= $2
		ORDER BY exception_date ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Exception
	for rows.Next() {
		exc, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *exc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanException(row pgx.Row) (*Exception, error) {
	var exc Exception
	var morningStart, morningEnd, eveningStart, eveningEnd *int
	err := row.Scan(
		&exc.ID,
		&exc.Date,
		&exc.MorningOpen,
		&exc.EveningOpen,
		&morningStart,
		&morningEnd,
		&eveningStart,
		&eveningEnd,
		&exc.Reason,
		&exc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if morningStart != nil && morningEnd != nil {
		exc.MorningWindow = &Window{StartMinute: *morningStart, EndMinute: *morningEnd}
	}
	if eveningStart != nil && eveningEnd != nil {
		exc.EveningWindow = &Window{StartMinute: *eveningStart, EndMinute: *eveningEnd}
	}
	return &exc, nil
}
