package booking

import (
	"testing"

	"github.com/clinicbook/clinicbook/services/booking-service/internal/model"
)

func TestCanTransitionTable(t *testing.T) {
	cases := []struct {
		from model.Status
		to   model.Status
		want bool
	}{
		{model.StatusPending, model.StatusConfirmed, true},
		{model.StatusPending, model.StatusCancelled, true},
		{model.StatusPending, model.StatusCompleted, false},
		{model.StatusConfirmed, model.StatusCompleted, true},
		{model.StatusConfirmed, model.StatusCancelled, true},
		{model.StatusConfirmed, model.StatusPending, false},
		{model.StatusCompleted, model.StatusCancelled, false},
		{model.StatusCompleted, model.StatusPending, false},
		{model.StatusCancelled, model.StatusConfirmed, false},
		{model.StatusCancelled, model.StatusPending, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestCanTransitionSameStatus(t *testing.T) {
	for _, s := range []model.Status{model.StatusPending, model.StatusConfirmed, model.StatusCompleted, model.StatusCancelled} {
		if !CanTransition(s, s) {
			t.Errorf("CanTransition(%s, %s) should allow the no-op", s, s)
		}
	}
}

func TestCanTransitionUnknownStatus(t *testing.T) {
	if CanTransition(model.Status("archived"), model.StatusPending) {
		t.Fatal("unknown source status must not transition")
	}
}
