package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/clinicbook/clinicbook/services/booking-service/internal/booking"
	"github.com/clinicbook/clinicbook/services/booking-service/internal/model"
)

type Handler struct {
	engine *booking.Engine
	logger *slog.Logger
}

func New(engine *booking.Engine, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("Idempotency-Key"))
}

// Availability returns the bookable 30-minute grid slots for a service
// over a clinic-local date range. end defaults to start.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	serviceID := strings.TrimSpace(q.Get("service_id"))
	start := strings.TrimSpace(q.Get("start"))
	end := strings.TrimSpace(q.Get("end"))
	if end == "" {
		end = start
	}

	days, err := h.engine.Availability(r.Context(), serviceID, start, end)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	type dayResponse struct {
		Date        string   `json:"date"`
		Booked      []string `json:"booked"`
		Available   []string `json:"available"`
		FullyBooked bool     `json:"fully_booked"`
	}
	out := make([]dayResponse, 0, len(days))
	for _, d := range days {
		out = append(out, dayResponse{
			Date:        d.Date,
			Booked:      formatTimes(d.Booked),
			Available:   formatTimes(d.Available),
			FullyBooked: d.FullyBooked,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": out})
}

func formatTimes(ts []time.Time) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Format(time.RFC3339))
	}
	return out
}

// Shifts returns the resolved opening rule for one date: the global
// weekly config with any date exception already applied.
func (h *Handler) Shifts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	date := strings.TrimSpace(r.URL.Query().Get("date"))
	day, err := h.engine.ShiftAvailability(r.Context(), date)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date": date,
		"morning": map[string]any{
			"open":         day.MorningOpen,
			"start_minute": day.Morning.StartMinute,
			"end_minute":   day.Morning.EndMinute,
		},
		"evening": map[string]any{
			"open":         day.EveningOpen,
			"start_minute": day.Evening.StartMinute,
			"end_minute":   day.Evening.EndMinute,
		},
	})
}

type patientPayload struct {
	Name  string `json:"patient_name"`
	Email string `json:"patient_email"`
	Phone string `json:"patient_phone"`
}

func (p patientPayload) info() booking.PatientInfo {
	return booking.PatientInfo{
		Name:  strings.TrimSpace(p.Name),
		Email: strings.TrimSpace(p.Email),
		Phone: strings.TrimSpace(p.Phone),
	}
}

// Book creates a slot-mode appointment at an exact start time.
// A replayed Idempotency-Key returns the original appointment with 200.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		patientPayload
		ServiceID string `json:"service_id"`
		StartTime string `json:"start_time"`
		Notes     string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	var start time.Time
	if s := strings.TrimSpace(req.StartTime); s != "" {
		var err error
		start, err = time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, "invalid start_time (want RFC3339)", http.StatusBadRequest)
			return
		}
	}

	appt, replayed, err := h.engine.BookSlot(r.Context(), booking.BookSlotRequest{
		Patient:        req.info(),
		ServiceID:      strings.TrimSpace(req.ServiceID),
		StartTime:      start,
		Notes:          strings.TrimSpace(req.Notes),
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, toAppointmentResponse(appt))
}

// BookShift creates a shift-mode appointment for a date and named
// half-day window. The queue token is assigned on confirmation, not
// here.
func (h *Handler) BookShift(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		patientPayload
		ServiceID string `json:"service_id"`
		Date      string `json:"date"`
		Shift     string `json:"shift"`
		Notes     string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	appt, replayed, err := h.engine.BookShift(r.Context(), booking.BookShiftRequest{
		Patient:        req.info(),
		ServiceID:      strings.TrimSpace(req.ServiceID),
		Date:           strings.TrimSpace(req.Date),
		Shift:          model.Shift(strings.TrimSpace(req.Shift)),
		Notes:          strings.TrimSpace(req.Notes),
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, toAppointmentResponse(appt))
}
