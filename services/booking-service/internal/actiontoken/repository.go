package actiontoken

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinicbook/clinicbook/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Issue stores the hash of a fresh raw token inside the caller's
// transaction, so tokens only exist for notifications that committed.
func (r *Repository) Issue(ctx context.Context, tx pgx.Tx, appointmentID, actionType, rawToken string, now time.Time) (Token, error) {
	tok := Token{
		ID:            uuid.NewString(),
		Hash:          HashToken(rawToken),
		AppointmentID: appointmentID,
		ActionType:    actionType,
		ExpiresAt:     now.Add(TTL),
		CreatedAt:     now,
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO action_tokens (id, token_hash, appointment_id, action_type, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, tok.ID, tok.Hash, tok.AppointmentID, tok.ActionType, tok.ExpiresAt)
	if err != nil {
		return Token{}, err
	}
	return tok, nil
}

// GetByHashForUpdate locks the token row for the redeem transaction so
// two concurrent redemptions of the same link serialize; the loser then
// sees used_at set.
func (r *Repository) GetByHashForUpdate(ctx context.Context, tx pgx.Tx, hash string) (Token, error) {
	var tok Token
	err := tx.QueryRow(ctx, `
		SELECT id::text, token_hash, appointment_id::text, action_type, expires_at, used_at, created_at
		FROM action_tokens
		WHERE token_hash = $1
		FOR UPDATE
	`, hash).Scan(&tok.ID, &tok.Hash, &tok.AppointmentID, &tok.ActionType, &tok.ExpiresAt, &tok.UsedAt, &tok.CreatedAt)
	if err != nil {
		return Token{}, err
	}
	return tok, nil
}

// Consume marks the token used. It runs in the same transaction as the
// guarded cancel/reschedule: the mark and the change land together or
// not at all.
func (r *Repository) Consume(ctx context.Context, tx pgx.Tx, id string, now time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE action_tokens
		SET used_at = $2
		WHERE id = $1 AND used_at IS NULL
	`, id, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteExpiredBefore purges token rows whose expiry predates cutoff.
// Redemption never deletes; only the sweeper does.
func (r *Repository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM action_tokens
		WHERE expires_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
