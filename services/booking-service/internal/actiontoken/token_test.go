package actiontoken

import (
	"testing"
	"time"

	"github.com/clinicbook/clinicbook/services/booking-service/internal/model"
)

func validToken(now time.Time) Token {
	return Token{
		ID:            "tok-1",
		AppointmentID: "appt-1",
		ActionType:    ActionCancel,
		ExpiresAt:     now.Add(TTL),
		CreatedAt:     now,
	}
}

func TestEvaluateAccepts(t *testing.T) {
	now := time.Now().UTC()
	if err := Evaluate(validToken(now), model.StatusPending, ActionCancel, now); err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
}

func TestEvaluateRejectionReasons(t *testing.T) {
	now := time.Now().UTC()
	used := now.Add(-time.Hour)

	cases := []struct {
		name   string
		mutate func(*Token)
		status model.Status
		action string
		reason string
	}{
		{
			name:   "used",
			mutate: func(tok *Token) { tok.UsedAt = &used },
			status: model.StatusPending,
			action: ActionCancel,
			reason: ReasonAlreadyUsed,
		},
		{
			name:   "expired",
			mutate: func(tok *Token) { tok.ExpiresAt = now.Add(-time.Minute) },
			status: model.StatusPending,
			action: ActionCancel,
			reason: ReasonExpired,
		},
		{
			name:   "appointment cancelled",
			mutate: func(tok *Token) {},
			status: model.StatusCancelled,
			action: ActionCancel,
			reason: ReasonAppointmentCancelled,
		},
		{
			name:   "wrong action",
			mutate: func(tok *Token) {},
			status: model.StatusPending,
			action: ActionReschedule,
			reason: ReasonWrongActionType,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tok := validToken(now)
			tc.mutate(&tok)
			err := Evaluate(tok, tc.status, tc.action, now)
			te, ok := IsTokenError(err)
			if !ok {
				t.Fatalf("expected TokenError, got %v", err)
			}
			if te.Reason != tc.reason {
				t.Fatalf("reason = %s, want %s", te.Reason, tc.reason)
			}
		})
	}
}

// A used token on a cancelled appointment must still report "used":
// the checks run in a fixed priority order.
func TestEvaluatePriorityOrder(t *testing.T) {
	now := time.Now().UTC()
	used := now.Add(-time.Hour)

	tok := validToken(now)
	tok.UsedAt = &used
	tok.ExpiresAt = now.Add(-time.Minute)
	err := Evaluate(tok, model.StatusCancelled, ActionReschedule, now)
	te, ok := IsTokenError(err)
	if !ok || te.Reason != ReasonAlreadyUsed {
		t.Fatalf("expected %s first, got %v", ReasonAlreadyUsed, err)
	}

	tok = validToken(now)
	tok.ExpiresAt = now.Add(-time.Minute)
	err = Evaluate(tok, model.StatusCancelled, ActionReschedule, now)
	te, ok = IsTokenError(err)
	if !ok || te.Reason != ReasonExpired {
		t.Fatalf("expected %s before appointment state, got %v", ReasonExpired, err)
	}

	tok = validToken(now)
	err = Evaluate(tok, model.StatusCancelled, ActionReschedule, now)
	te, ok = IsTokenError(err)
	if !ok || te.Reason != ReasonAppointmentCancelled {
		t.Fatalf("expected %s before action mismatch, got %v", ReasonAppointmentCancelled, err)
	}
}

func TestEvaluateExactExpiryBoundary(t *testing.T) {
	now := time.Now().UTC()
	tok := validToken(now)
	tok.ExpiresAt = now
	// Not yet past the deadline.
	if err := Evaluate(tok, model.StatusPending, ActionCancel, now); err != nil {
		t.Fatalf("token at its exact expiry instant rejected: %v", err)
	}
}

func TestNewRawTokenShape(t *testing.T) {
	raw, err := NewRawToken()
	if err != nil {
		t.Fatalf("NewRawToken failed: %v", err)
	}
	if len(raw) != 64 {
		t.Fatalf("raw token length = %d, want 64 hex chars", len(raw))
	}
	other, err := NewRawToken()
	if err != nil {
		t.Fatalf("NewRawToken failed: %v", err)
	}
	if raw == other {
		t.Fatal("two raw tokens should never collide")
	}
}

func TestHashTokenDeterministic(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Fatal("hash must be deterministic")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Fatal("different tokens must hash differently")
	}
	if len(HashToken("abc")) != 64 {
		t.Fatalf("hash length = %d, want 64", len(HashToken("abc")))
	}
}
