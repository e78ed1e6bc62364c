package actiontoken

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestIsNotFoundMatchesWrapped(t *testing.T) {
	if !IsNotFound(pgx.ErrNoRows) {
		t.Fatal("pgx.ErrNoRows must be not-found")
	}
	if !IsNotFound(fmt.Errorf("load token: %w", pgx.ErrNoRows)) {
		t.Fatal("wrapped pgx.ErrNoRows must still be not-found")
	}
	if IsNotFound(fmt.Errorf("plain failure")) {
		t.Fatal("unrelated errors are not not-found")
	}
}
