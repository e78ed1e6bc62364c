package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/clinicbook/clinicbook/services/booking-service/internal/booking"
	"github.com/clinicbook/clinicbook/services/booking-service/internal/model"
	"github.com/clinicbook/clinicbook/services/booking-service/internal/schedule"
	"github.com/clinicbook/clinicbook/services/booking-service/internal/storage"
)

// AdminHandler serves the clinic staff surface: appointment lifecycle,
// the service catalog, and the schedule configuration. It sits behind
// the gateway's staff auth in deployment; the service itself only
// validates payloads.
type AdminHandler struct {
	engine   *booking.Engine
	services *storage.ServiceRepository
	schedule *schedule.Repository
	logger   *slog.Logger
}

func NewAdmin(engine *booking.Engine, services *storage.ServiceRepository, scheduleRepo *schedule.Repository, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{engine: engine, services: services, schedule: scheduleRepo, logger: logger}
}

// Appointments lists recent appointments, or fetches one when ?id is
// given.
func (h *AdminHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if id := strings.TrimSpace(r.URL.Query().Get("id")); id != "" {
		appt, err := h.engine.GetAppointment(r.Context(), id)
		if err != nil {
			writeEngineError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	appts, err := h.engine.ListAppointments(r.Context(), limit)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	out := make([]appointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, toAppointmentResponse(&appts[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": out})
}

// AppointmentStatus applies one lifecycle transition. Requesting the
// appointment's current status succeeds without side effects.
func (h *AdminHandler) AppointmentStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		AppointmentID string `json:"appointment_id"`
		Status        string `json:"status"`
		Reason        string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id is required", http.StatusBadRequest)
		return
	}

	appt, err := h.engine.SetStatus(r.Context(), req.AppointmentID, model.Status(strings.TrimSpace(req.Status)), strings.TrimSpace(req.Reason))
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

// Services lists the active catalog or creates a new entry.
func (h *AdminHandler) Services(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listServices(w, r)
	case http.MethodPost:
		h.createService(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) listServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.services.List(r.Context(), 200)
	if err != nil {
		http.Error(w, "failed to list services", http.StatusInternalServerError)
		return
	}

	type serviceResponse struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		DurationMinutes int    `json:"duration_minutes"`
		Price           string `json:"price"`
		Description     string `json:"description,omitempty"`
	}
	out := make([]serviceResponse, 0, len(services))
	for _, s := range services {
		out = append(out, serviceResponse{
			ID:              s.ID,
			Name:            s.Name,
			DurationMinutes: s.DurationMins,
			Price:           s.Price,
			Description:     s.Description,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": out})
}

func (h *AdminHandler) createService(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            string `json:"name"`
		DurationMinutes int    `json:"duration_minutes"`
		Price           string `json:"price"`
		Description     string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if req.DurationMinutes <= 0 || req.DurationMinutes > 8*60 {
		http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
		return
	}
	if req.Price == "" {
		req.Price = "0"
	}

	id, err := h.services.Create(r.Context(), req.Name, req.DurationMinutes, req.Price, strings.TrimSpace(req.Description))
	if err != nil {
		http.Error(w, "failed to create service", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

type windowPayload struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

func (p windowPayload) window() schedule.Window {
	return schedule.Window{StartMinute: p.StartMinute, EndMinute: p.EndMinute}
}

// ScheduleConfig reads or replaces the clinic-wide weekly default.
func (h *AdminHandler) ScheduleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg, err := h.schedule.GetConfig(r.Context())
		if err != nil {
			http.Error(w, "failed to load schedule config", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"morning_enabled": cfg.MorningEnabled,
			"morning_window":  windowPayload{cfg.Morning.StartMinute, cfg.Morning.EndMinute},
			"evening_enabled": cfg.EveningEnabled,
			"evening_window":  windowPayload{cfg.Evening.StartMinute, cfg.Evening.EndMinute},
		})

	case http.MethodPut:
		var req struct {
			MorningEnabled bool          `json:"morning_enabled"`
			MorningWindow  windowPayload `json:"morning_window"`
			EveningEnabled bool          `json:"evening_enabled"`
			EveningWindow  windowPayload `json:"evening_window"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		cfg := schedule.Config{
			MorningEnabled: req.MorningEnabled,
			Morning:        req.MorningWindow.window(),
			EveningEnabled: req.EveningEnabled,
			Evening:        req.EveningWindow.window(),
		}
		if !cfg.Morning.Valid() || !cfg.Evening.Valid() {
			http.Error(w, "invalid shift window", http.StatusBadRequest)
			return
		}
		if err := h.schedule.UpdateConfig(r.Context(), cfg); err != nil {
			http.Error(w, "failed to update schedule config", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ScheduleExceptions lists, upserts, or removes date-specific overrides.
func (h *AdminHandler) ScheduleExceptions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listExceptions(w, r)
	case http.MethodPut:
		h.upsertException(w, r)
	case http.MethodDelete:
		h.deleteException(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) listExceptions(w http.ResponseWriter, r *http.Request) {
	from := strings.TrimSpace(r.URL.Query().Get("from"))
	to := strings.TrimSpace(r.URL.Query().Get("to"))
	if !validDateOrEmpty(from) || !validDateOrEmpty(to) {
		http.Error(w, "invalid date range (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	excs, err := h.schedule.ListExceptions(r.Context(), from, to)
	if err != nil {
		http.Error(w, "failed to list exceptions", http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(excs))
	for _, exc := range excs {
		out = append(out, exceptionResponse(exc))
	}
	writeJSON(w, http.StatusOK, map[string]any{"exceptions": out})
}

func exceptionResponse(exc schedule.Exception) map[string]any {
	resp := map[string]any{
		"id":     exc.ID,
		"date":   exc.Date,
		"reason": exc.Reason,
	}
	if exc.MorningOpen != nil {
		resp["morning_open"] = *exc.MorningOpen
	}
	if exc.EveningOpen != nil {
		resp["evening_open"] = *exc.EveningOpen
	}
	if exc.MorningWindow != nil {
		resp["morning_window"] = windowPayload{exc.MorningWindow.StartMinute, exc.MorningWindow.EndMinute}
	}
	if exc.EveningWindow != nil {
		resp["evening_window"] = windowPayload{exc.EveningWindow.StartMinute, exc.EveningWindow.EndMinute}
	}
	return resp
}

func (h *AdminHandler) upsertException(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date          string         `json:"date"`
		MorningOpen   *bool          `json:"morning_open"`
		EveningOpen   *bool          `json:"evening_open"`
		MorningWindow *windowPayload `json:"morning_window"`
		EveningWindow *windowPayload `json:"evening_window"`
		Reason        string         `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Date = strings.TrimSpace(req.Date)
	if !validDateOrEmpty(req.Date) || req.Date == "" {
		http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	exc := schedule.Exception{
		Date:        req.Date,
		MorningOpen: req.MorningOpen,
		EveningOpen: req.EveningOpen,
		Reason:      strings.TrimSpace(req.Reason),
	}
	if req.MorningWindow != nil {
		win := req.MorningWindow.window()
		if !win.Valid() {
			http.Error(w, "invalid morning_window", http.StatusBadRequest)
			return
		}
		exc.MorningWindow = &win
	}
	if req.EveningWindow != nil {
		win := req.EveningWindow.window()
		if !win.Valid() {
			http.Error(w, "invalid evening_window", http.StatusBadRequest)
			return
		}
		exc.EveningWindow = &win
	}

	id, err := h.schedule.UpsertException(r.Context(), exc)
	if err != nil {
		http.Error(w, "failed to save exception", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "date": exc.Date})
}

func (h *AdminHandler) deleteException(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if !validDateOrEmpty(date) || date == "" {
		http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	deleted, err := h.schedule.DeleteException(r.Context(), date)
	if err != nil {
		http.Error(w, "failed to delete exception", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "exception not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validDateOrEmpty(s string) bool {
	if s == "" {
		return true
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
