package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/clinicbook/clinicbook/services/booking-service/internal/actiontoken"
	"github.com/clinicbook/clinicbook/services/booking-service/internal/booking"
	"github.com/clinicbook/clinicbook/services/booking-service/internal/model"
)

type appointmentResponse struct {
	AppointmentID string `json:"appointment_id"`
	PatientName   string `json:"patient_name"`
	ServiceID     string `json:"service_id"`
	AppointmentAt string `json:"appointment_at"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	Shift         string `json:"shift,omitempty"`
	TokenNumber   *int   `json:"token_number,omitempty"`
	Notes         string `json:"notes,omitempty"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	CancelReason  string `json:"cancel_reason,omitempty"`
}

func toAppointmentResponse(appt *model.Appointment) appointmentResponse {
	resp := appointmentResponse{
		AppointmentID: appt.ID,
		PatientName:   appt.PatientName,
		ServiceID:     appt.ServiceID,
		AppointmentAt: appt.AppointmentAt.Format(time.RFC3339),
		EndTime:       appt.EndTime.Format(time.RFC3339),
		Status:        string(appt.Status),
		Shift:         string(appt.Shift),
		TokenNumber:   appt.TokenNumber,
		Notes:         appt.Notes,
		CancelReason:  appt.CancelReason,
	}
	if appt.CancelledAt != nil {
		resp.CancelledAt = appt.CancelledAt.Format(time.RFC3339)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeEngineError maps the engine's typed errors onto HTTP statuses.
// Anything untyped is a persistence failure: logged, returned opaque.
func writeEngineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if te, ok := actiontoken.IsTokenError(err); ok {
		switch te.Reason {
		case actiontoken.ReasonAlreadyUsed:
			http.Error(w, te.Reason, http.StatusConflict)
		case actiontoken.ReasonExpired, actiontoken.ReasonAppointmentCancelled:
			http.Error(w, te.Reason, http.StatusGone)
		default:
			http.Error(w, te.Reason, http.StatusBadRequest)
		}
		return
	}
	switch {
	case booking.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case booking.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	case booking.IsConflict(err):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		logger.Error("engine error", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
