package actiontoken

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/clinicbook/clinicbook/services/booking-service/internal/model"
)

// Action tokens let a patient cancel or reschedule from an email link
// without authenticating: single use, 24 hours, one action each.

const (
	ActionCancel     = "cancel"
	ActionReschedule = "reschedule"

	// TTL is fixed at issue time.
	TTL = 24 * time.Hour
	// Purge retention: consumed or not, a token row is swept once its
	// expiry is this far in the past.
	PurgeAfterExpiry = 48 * time.Hour
)

const (
	ReasonAlreadyUsed          = "TOKEN_ALREADY_USED"
	ReasonExpired              = "TOKEN_EXPIRED"
	ReasonAppointmentCancelled = "APPOINTMENT_CANCELLED"
	ReasonWrongActionType      = "WRONG_ACTION_TYPE"
)

// TokenError carries the specific rejection reason so the caller can
// show a precise message.
type TokenError struct {
	Reason string
}

func (e *TokenError) Error() string { return e.Reason }

func IsTokenError(err error) (*TokenError, bool) {
	var te *TokenError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

type Token struct {
	ID            string
	Hash          string
	AppointmentID string
	ActionType    string
	ExpiresAt     time.Time
	UsedAt        *time.Time
	CreatedAt     time.Time
}

// NewRawToken returns the opaque value embedded in the patient's link.
// Only its SHA-256 hash is stored.
func NewRawToken() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Evaluate decides whether a token may be redeemed for the given
// action against the appointment it references. Rejection reasons are
// checked in a fixed priority: already used, then expired, then
// appointment cancelled, then action mismatch.
func Evaluate(tok Token, apptStatus model.Status, action string, now time.Time) error {
	if tok.UsedAt != nil {
		return &TokenError{Reason: ReasonAlreadyUsed}
	}
	if now.After(tok.ExpiresAt) {
		return &TokenError{Reason: ReasonExpired}
	}
	if apptStatus == model.StatusCancelled {
		return &TokenError{Reason: ReasonAppointmentCancelled}
	}
	if tok.ActionType != action {
		return &TokenError{Reason: ReasonWrongActionType}
	}
	return nil
}
