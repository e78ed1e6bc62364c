package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicbook/clinicbook/libs/db"
	"github.com/clinicbook/clinicbook/services/booking-service/internal/model"
)

// ServiceRepository manages the clinic's service catalog. The booking
// flow only reads it (to derive end_time from the duration).
type ServiceRepository struct {
	pool *db.Pool
}

func NewServiceRepository(pool *db.Pool) *ServiceRepository {
	return &ServiceRepository{pool: pool}
}

func (r *ServiceRepository) Create(ctx context.Context, name string, durationMins int, price string, description string) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO services (id, name, duration_minutes, price, description)
		VALUES ($1, $2, $3, $4, $5)
	`, id, name, durationMins, price, description)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *ServiceRepository) Get(ctx context.Context, id string) (model.Service, error) {
	var s model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, duration_minutes, price::text, description, active, created_at
		FROM services
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.DurationMins, &s.Price, &s.Description, &s.Active, &s.CreatedAt)
	return s, err
}

func (r *ServiceRepository) List(ctx context.Context, limit int) ([]model.Service, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name, duration_minutes, price::text, description, active, created_at
		FROM services
		WHERE active
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.DurationMins, &s.Price, &s.Description, &s.Active, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
