package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/clinicbook/clinicbook/services/booking-service/internal/actiontoken"
	"github.com/clinicbook/clinicbook/services/booking-service/internal/booking"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriteEngineErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &booking.ValidationError{Msg: "bad input"}, http.StatusBadRequest},
		{"not found", &booking.NotFoundError{Resource: "appointment", ID: "x"}, http.StatusNotFound},
		{"conflict", &booking.ConflictError{Msg: "overlap"}, http.StatusConflict},
		{"token used", &actiontoken.TokenError{Reason: actiontoken.ReasonAlreadyUsed}, http.StatusConflict},
		{"token expired", &actiontoken.TokenError{Reason: actiontoken.ReasonExpired}, http.StatusGone},
		{"appointment cancelled", &actiontoken.TokenError{Reason: actiontoken.ReasonAppointmentCancelled}, http.StatusGone},
		{"wrong action", &actiontoken.TokenError{Reason: actiontoken.ReasonWrongActionType}, http.StatusBadRequest},
		{"opaque", errors.New("pg down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeEngineError(rec, discardLogger(), tc.err)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestWriteEngineErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeEngineError(rec, discardLogger(), errors.New("connect: host db-primary refused"))
	if strings.Contains(rec.Body.String(), "db-primary") {
		t.Fatalf("internal error detail leaked: %s", rec.Body.String())
	}
}

func TestWriteEngineErrorTokenReasonInBody(t *testing.T) {
	rec := httptest.NewRecorder()
	writeEngineError(rec, discardLogger(), &actiontoken.TokenError{Reason: actiontoken.ReasonExpired})
	if !strings.Contains(rec.Body.String(), actiontoken.ReasonExpired) {
		t.Fatalf("body %q should carry the machine-readable reason", rec.Body.String())
	}
}
