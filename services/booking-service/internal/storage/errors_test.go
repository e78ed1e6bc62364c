package storage

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Both booking and reschedule rely on IsConflict to turn the exclusion
// constraint's 23P01 into a caller-visible conflict, including when the
// driver error arrives wrapped.
func TestIsConflictExclusionViolation(t *testing.T) {
	exclusion := &pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"}
	if !IsConflict(exclusion) {
		t.Fatal("23P01 must be classified as a conflict")
	}
	if !IsConflict(fmt.Errorf("move appointment: %w", exclusion)) {
		t.Fatal("wrapped 23P01 must still be classified as a conflict")
	}
}

func TestIsConflictIgnoresOtherCodes(t *testing.T) {
	if IsConflict(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("unique violation is not an overlap conflict")
	}
	if IsConflict(fmt.Errorf("plain failure")) {
		t.Fatal("non-pg errors are never conflicts")
	}
}

func TestIsNotFoundWrapped(t *testing.T) {
	if !IsNotFound(pgx.ErrNoRows) {
		t.Fatal("pgx.ErrNoRows must be not-found")
	}
	if !IsNotFound(fmt.Errorf("get appointment: %w", pgx.ErrNoRows)) {
		t.Fatal("wrapped pgx.ErrNoRows must still be not-found")
	}
	if IsNotFound(fmt.Errorf("plain failure")) {
		t.Fatal("unrelated errors are not not-found")
	}
}
