package booking

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clinicbook/clinicbook/libs/db"
	"github.com/clinicbook/clinicbook/services/booking-service/internal/actiontoken"
	"github.com/clinicbook/clinicbook/services/booking-service/internal/availability"
	"github.com/clinicbook/clinicbook/services/booking-service/internal/model"
	"github.com/clinicbook/clinicbook/services/booking-service/internal/outbox"
	"github.com/clinicbook/clinicbook/services/booking-service/internal/schedule"
	"github.com/clinicbook/clinicbook/services/booking-service/internal/storage"
)

const dateLayout = "2006-01-02"

// Engine owns every appointment mutation. All writes run in a single
// transaction per operation; the overlap guard and the token counter
// take their row locks inside that transaction, and the notification
// event is appended to the outbox before commit.
type Engine struct {
	pool     *db.Pool
	appts    *storage.AppointmentRepository
	services *storage.ServiceRepository
	schedule *schedule.Repository
	tokens   *actiontoken.Repository
	outbox   *outbox.Repository
	logger   *slog.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewEngine(
	pool *db.Pool,
	appts *storage.AppointmentRepository,
	services *storage.ServiceRepository,
	scheduleRepo *schedule.Repository,
	tokens *actiontoken.Repository,
	outboxRepo *outbox.Repository,
	logger *slog.Logger,
	loc *time.Location,
) *Engine {
	return &Engine{
		pool:     pool,
		appts:    appts,
		services: services,
		schedule: scheduleRepo,
		tokens:   tokens,
		outbox:   outboxRepo,
		logger:   logger,
		loc:      loc,
		now:      time.Now,
	}
}

// Location is the clinic's fixed timezone. Every calendar-day boundary
// in the engine is computed here, never in UTC or the caller's zone.
func (e *Engine) Location() *time.Location { return e.loc }

type PatientInfo struct {
	Name  string
	Email string
	Phone string
}

func (p PatientInfo) validate() error {
	if p.Name == "" {
		return invalidf("patient name is required")
	}
	return nil
}

type BookSlotRequest struct {
	Patient        PatientInfo
	ServiceID      string
	StartTime      time.Time
	Notes          string
	IdempotencyKey string
}

// BookSlot books a fixed time interval on the 30-minute grid. The
// overlap check and the insert share one transaction, so two callers
// racing for the same window cannot both pass: the loser gets a
// ConflictError either from the locked read or from the exclusion
// constraint at commit. A retried Idempotency-Key replays the original
// appointment instead of booking again.
func (e *Engine) BookSlot(ctx context.Context, req BookSlotRequest) (*model.Appointment, bool, error) {
	if err := req.Patient.validate(); err != nil {
		return nil, false, err
	}
	if req.ServiceID == "" {
		return nil, false, invalidf("service_id is required")
	}
	if req.StartTime.IsZero() {
		return nil, false, invalidf("start_time is required")
	}

	svc, err := e.getService(ctx, req.ServiceID)
	if err != nil {
		return nil, false, err
	}

	start := req.StartTime.In(e.loc)
	if !availability.OnGrid(start, svc.Duration()) {
		return nil, false, invalidf("start_time must be a 30-minute grid slot between 09:00 and 18:00 with room for the service duration")
	}
	appt := &model.Appointment{
		PatientName:   req.Patient.Name,
		PatientEmail:  req.Patient.Email,
		PatientPhone:  req.Patient.Phone,
		ServiceID:     svc.ID,
		AppointmentAt: start,
		EndTime:       start.Add(svc.Duration()),
		Status:        model.StatusPending,
		Shift:         model.ShiftNone,
		Notes:         req.Notes,
		CreatedAt:     e.now().In(e.loc),
	}

	replayed := false
	err = e.inTx(ctx, func(tx pgx.Tx) error {
		if done, err := e.replayIdempotent(ctx, tx, req.IdempotencyKey, appt); err != nil || done {
			replayed = done
			return err
		}
		overlap, err := e.appts.HasOverlap(ctx, tx, svc.ID, appt.AppointmentAt, appt.EndTime, "")
		if err != nil {
			return err
		}
		if overlap {
			return conflictf("requested time overlaps an existing appointment")
		}
		if _, err := e.appts.Create(ctx, tx, appt); err != nil {
			if storage.IsConflict(err) {
				return conflictf("requested time overlaps an existing appointment")
			}
			return err
		}
		if err := e.finalizeIdempotent(ctx, tx, req.IdempotencyKey, appt.ID); err != nil {
			return err
		}
		return e.emitStatusEvent(ctx, tx, appt, "")
	})
	if err != nil {
		return nil, false, err
	}
	if !replayed {
		e.logger.Info("appointment booked", "appointment_id", appt.ID, "service_id", svc.ID, "at", appt.AppointmentAt)
	}
	return appt, replayed, nil
}

type BookShiftRequest struct {
	Patient        PatientInfo
	ServiceID      string
	Date           string // YYYY-MM-DD, clinic-local
	Shift          model.Shift
	Notes          string
	IdempotencyKey string
}

// BookShift books a named half-day window. There is no per-slot
// capacity limit: the booking is accepted whenever the resolved
// opening rule says the shift is open, and a queue token is assigned
// later, on confirmation.
func (e *Engine) BookShift(ctx context.Context, req BookShiftRequest) (*model.Appointment, bool, error) {
	if err := req.Patient.validate(); err != nil {
		return nil, false, err
	}
	if req.ServiceID == "" {
		return nil, false, invalidf("service_id is required")
	}
	if !req.Shift.Valid() {
		return nil, false, invalidf("shift must be morning or evening")
	}
	dayStart, err := e.parseLocalDate(req.Date)
	if err != nil {
		return nil, false, err
	}

	svc, err := e.getService(ctx, req.ServiceID)
	if err != nil {
		return nil, false, err
	}

	day, err := e.resolveDay(ctx, req.Date)
	if err != nil {
		return nil, false, err
	}
	win, open := day.Open(string(req.Shift))
	if !open {
		return nil, false, invalidf("%s shift is closed on %s", req.Shift, req.Date)
	}

	// A shift booking has no exact time; it is anchored at the shift's
	// opening so day-range and token queries see it on the right date.
	at, _ := win.On(dayStart)
	appt := &model.Appointment{
		PatientName:   req.Patient.Name,
		PatientEmail:  req.Patient.Email,
		PatientPhone:  req.Patient.Phone,
		ServiceID:     svc.ID,
		AppointmentAt: at,
		EndTime:       at.Add(svc.Duration()),
		Status:        model.StatusPending,
		Shift:         req.Shift,
		Notes:         req.Notes,
		CreatedAt:     e.now().In(e.loc),
	}

	replayed := false
	err = e.inTx(ctx, func(tx pgx.Tx) error {
		if done, err := e.replayIdempotent(ctx, tx, req.IdempotencyKey, appt); err != nil || done {
			replayed = done
			return err
		}
		if _, err := e.appts.Create(ctx, tx, appt); err != nil {
			return err
		}
		if err := e.finalizeIdempotent(ctx, tx, req.IdempotencyKey, appt.ID); err != nil {
			return err
		}
		return e.emitStatusEvent(ctx, tx, appt, "")
	})
	if err != nil {
		return nil, false, err
	}
	if !replayed {
		e.logger.Info("shift appointment booked", "appointment_id", appt.ID, "date", req.Date, "shift", req.Shift)
	}
	return appt, replayed, nil
}

// replayIdempotent loads the appointment previously bound to the key,
// if any, into appt and reports whether the booking should be skipped.
func (e *Engine) replayIdempotent(ctx context.Context, tx pgx.Tx, key string, appt *model.Appointment) (bool, error) {
	if key == "" {
		return false, nil
	}
	boundID, err := e.appts.LockIdempotencyKey(ctx, tx, key)
	if err != nil {
		return false, err
	}
	if boundID == "" {
		return false, nil
	}
	existing, err := e.appts.GetForUpdate(ctx, tx, boundID)
	if err != nil {
		return false, err
	}
	*appt = existing
	return true, nil
}

func (e *Engine) finalizeIdempotent(ctx context.Context, tx pgx.Tx, key, appointmentID string) error {
	if key == "" {
		return nil
	}
	return e.appts.FinalizeIdempotency(ctx, tx, key, appointmentID)
}

// SetStatus applies one transition from the state table. Requesting
// the current status is an idempotent no-op: nothing is written, no
// event is emitted, no token is allocated. The first transition into
// confirmed for a shift booking allocates its queue token in the same
// transaction as the status write.
func (e *Engine) SetStatus(ctx context.Context, id string, newStatus model.Status, reason string) (*model.Appointment, error) {
	if !newStatus.Valid() {
		return nil, invalidf("unknown status %q", newStatus)
	}

	var appt model.Appointment
	err := e.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		appt, err = e.appts.GetForUpdate(ctx, tx, id)
		if err != nil {
			if storage.IsNotFound(err) {
				return &NotFoundError{Resource: "appointment", ID: id}
			}
			return err
		}

		if appt.Status == newStatus {
			return nil
		}
		if !CanTransition(appt.Status, newStatus) {
			return conflictf("cannot transition appointment from %s to %s", appt.Status, newStatus)
		}

		var tokenNumber *int
		if newStatus == model.StatusConfirmed && appt.Shift != model.ShiftNone && appt.TokenNumber == nil {
			n, err := e.appts.NextTokenNumber(ctx, tx, e.localDay(appt.AppointmentAt), appt.Shift)
			if err != nil {
				return err
			}
			tokenNumber = &n
		}

		if err := e.appts.SetStatus(ctx, tx, appt.ID, newStatus, tokenNumber, reason); err != nil {
			return err
		}
		appt.Status = newStatus
		if tokenNumber != nil {
			appt.TokenNumber = tokenNumber
		}
		if newStatus == model.StatusCancelled {
			now := e.now().In(e.loc)
			appt.CancelledAt = &now
			appt.CancelReason = reason
		}
		return e.emitStatusEvent(ctx, tx, &appt, reason)
	})
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

// Cancel is the soft delete: history stays queryable forever.
func (e *Engine) Cancel(ctx context.Context, id, reason string) (*model.Appointment, error) {
	return e.SetStatus(ctx, id, model.StatusCancelled, reason)
}

// RedeemCancelToken cancels the appointment a cancel link points at.
// Token consumption and the cancellation commit together.
func (e *Engine) RedeemCancelToken(ctx context.Context, rawToken, reason string) (*model.Appointment, error) {
	var appt model.Appointment
	err := e.inTx(ctx, func(tx pgx.Tx) error {
		tok, target, err := e.loadTokenTarget(ctx, tx, rawToken, actiontoken.ActionCancel)
		if err != nil {
			return err
		}
		appt = target

		if !CanTransition(appt.Status, model.StatusCancelled) {
			return conflictf("cannot cancel a %s appointment", appt.Status)
		}
		if err := e.appts.SetStatus(ctx, tx, appt.ID, model.StatusCancelled, nil, reason); err != nil {
			return err
		}
		appt.Status = model.StatusCancelled
		now := e.now().In(e.loc)
		appt.CancelledAt = &now
		appt.CancelReason = reason

		if err := e.tokens.Consume(ctx, tx, tok.ID, e.now().UTC()); err != nil {
			return err
		}
		return e.emitStatusEvent(ctx, tx, &appt, reason)
	})
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

// RedeemRescheduleToken moves the appointment to a new start and
// resets it to pending for re-confirmation. Slot-mode moves re-run the
// overlap guard excluding the appointment itself; an already-assigned
// queue token is neither cleared nor reused.
func (e *Engine) RedeemRescheduleToken(ctx context.Context, rawToken string, newStart time.Time) (*model.Appointment, error) {
	if newStart.IsZero() {
		return nil, invalidf("new start_time is required")
	}

	var appt model.Appointment
	err := e.inTx(ctx, func(tx pgx.Tx) error {
		tok, target, err := e.loadTokenTarget(ctx, tx, rawToken, actiontoken.ActionReschedule)
		if err != nil {
			return err
		}
		appt = target

		if appt.Status.Terminal() {
			return conflictf("cannot reschedule a %s appointment", appt.Status)
		}

		svc, err := e.getService(ctx, appt.ServiceID)
		if err != nil {
			return err
		}

		start := newStart.In(e.loc)
		end := start.Add(svc.Duration())
		if appt.Mode() == model.ModeSlot {
			if !availability.OnGrid(start, svc.Duration()) {
				return invalidf("start_time must be a 30-minute grid slot between 09:00 and 18:00 with room for the service duration")
			}
			overlap, err := e.appts.HasOverlap(ctx, tx, svc.ID, start, end, appt.ID)
			if err != nil {
				return err
			}
			if overlap {
				return conflictf("requested time overlaps an existing appointment")
			}
		}

		prevStatus := appt.Status
		if err := e.appts.Move(ctx, tx, appt.ID, start, end, model.StatusPending); err != nil {
			if storage.IsConflict(err) {
				return conflictf("requested time overlaps an existing appointment")
			}
			return err
		}
		appt.AppointmentAt = start
		appt.EndTime = end
		appt.Status = model.StatusPending

		if err := e.tokens.Consume(ctx, tx, tok.ID, e.now().UTC()); err != nil {
			return err
		}
		if prevStatus != model.StatusPending {
			return e.emitStatusEvent(ctx, tx, &appt, "")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func (e *Engine) loadTokenTarget(ctx context.Context, tx pgx.Tx, rawToken, action string) (actiontoken.Token, model.Appointment, error) {
	tok, err := e.tokens.GetByHashForUpdate(ctx, tx, actiontoken.HashToken(rawToken))
	if err != nil {
		if actiontoken.IsNotFound(err) {
			return actiontoken.Token{}, model.Appointment{}, &NotFoundError{Resource: "action token", ID: "provided"}
		}
		return actiontoken.Token{}, model.Appointment{}, err
	}
	appt, err := e.appts.GetForUpdate(ctx, tx, tok.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			return actiontoken.Token{}, model.Appointment{}, &NotFoundError{Resource: "appointment", ID: tok.AppointmentID}
		}
		return actiontoken.Token{}, model.Appointment{}, err
	}
	if err := actiontoken.Evaluate(tok, appt.Status, action, e.now().UTC()); err != nil {
		return actiontoken.Token{}, model.Appointment{}, err
	}
	return tok, appt, nil
}

// DayAvailabilityReport is the per-date result of an availability
// range query.
type DayAvailabilityReport struct {
	Date        string
	Booked      []time.Time
	Available   []time.Time
	FullyBooked bool
}

// Availability computes the bookable grid slots for a service across a
// date range. It performs one appointment range read for the whole
// request, then evaluates each clinic-local day.
func (e *Engine) Availability(ctx context.Context, serviceID, startDate, endDate string) ([]DayAvailabilityReport, error) {
	if serviceID == "" {
		return nil, invalidf("service_id is required")
	}
	rangeStart, err := e.parseLocalDate(startDate)
	if err != nil {
		return nil, err
	}
	rangeEndDay, err := e.parseLocalDate(endDate)
	if err != nil {
		return nil, err
	}
	if rangeEndDay.Before(rangeStart) {
		return nil, invalidf("end date is before start date")
	}
	if rangeEndDay.Sub(rangeStart) > 62*24*time.Hour {
		return nil, invalidf("date range is limited to 62 days")
	}

	svc, err := e.getService(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	rangeEnd := rangeEndDay.AddDate(0, 0, 1)
	busy, err := e.appts.ListBusyBetween(ctx, rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}

	var out []DayAvailabilityReport
	for dayStart := rangeStart; dayStart.Before(rangeEnd); dayStart = dayStart.AddDate(0, 0, 1) {
		dayEnd := dayStart.AddDate(0, 0, 1)
		var intervals []availability.Interval
		for _, b := range busy {
			if b.AppointmentAt.Before(dayEnd) && b.EndTime.After(dayStart) {
				intervals = append(intervals, availability.Interval{
					Start: b.AppointmentAt.In(e.loc),
					End:   b.EndTime.In(e.loc),
				})
			}
		}
		day := availability.ComputeDay(dayStart, svc.Duration(), intervals)
		out = append(out, DayAvailabilityReport{
			Date:        dayStart.Format(dateLayout),
			Booked:      day.Booked,
			Available:   day.Available,
			FullyBooked: day.FullyBooked,
		})
	}
	return out, nil
}

// ShiftAvailability resolves the opening rule for one date: the
// date-specific exception, when present, strictly overrides the global
// weekly configuration per shift.
func (e *Engine) ShiftAvailability(ctx context.Context, date string) (schedule.DayAvailability, error) {
	if _, err := e.parseLocalDate(date); err != nil {
		return schedule.DayAvailability{}, err
	}
	return e.resolveDay(ctx, date)
}

func (e *Engine) resolveDay(ctx context.Context, date string) (schedule.DayAvailability, error) {
	cfg, err := e.schedule.GetConfig(ctx)
	if err != nil {
		return schedule.DayAvailability{}, err
	}
	exc, err := e.schedule.GetException(ctx, date)
	if err != nil {
		return schedule.DayAvailability{}, err
	}
	return schedule.ResolveDay(cfg, exc), nil
}

func (e *Engine) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	appt, err := e.appts.Get(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, &NotFoundError{Resource: "appointment", ID: id}
		}
		return nil, err
	}
	return &appt, nil
}

func (e *Engine) ListAppointments(ctx context.Context, limit int) ([]model.Appointment, error) {
	return e.appts.List(ctx, limit)
}

// emitStatusEvent appends exactly one outbox event for an effective
// status change. Pending and confirmed notifications carry fresh
// single-use action tokens so the email can embed cancel/reschedule
// links; terminal notifications carry none.
func (e *Engine) emitStatusEvent(ctx context.Context, tx pgx.Tx, appt *model.Appointment, reason string) error {
	payload := map[string]any{
		"appointment_id": appt.ID,
		"patient_name":   appt.PatientName,
		"patient_email":  appt.PatientEmail,
		"patient_phone":  appt.PatientPhone,
		"service_id":     appt.ServiceID,
		"appointment_at": appt.AppointmentAt.Format(time.RFC3339),
		"end_time":       appt.EndTime.Format(time.RFC3339),
		"status":         string(appt.Status),
		"shift":          string(appt.Shift),
		"notes":          appt.Notes,
	}
	if appt.TokenNumber != nil {
		payload["token_number"] = *appt.TokenNumber
	}
	if reason != "" {
		payload["reason"] = reason
	}

	if appt.Status == model.StatusPending || appt.Status == model.StatusConfirmed {
		now := e.now().UTC()
		rawCancel, err := actiontoken.NewRawToken()
		if err != nil {
			return err
		}
		if _, err := e.tokens.Issue(ctx, tx, appt.ID, actiontoken.ActionCancel, rawCancel, now); err != nil {
			return err
		}
		rawReschedule, err := actiontoken.NewRawToken()
		if err != nil {
			return err
		}
		if _, err := e.tokens.Issue(ctx, tx, appt.ID, actiontoken.ActionReschedule, rawReschedule, now); err != nil {
			return err
		}
		payload["cancel_token"] = rawCancel
		payload["reschedule_token"] = rawReschedule
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return e.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     topicForStatus(appt.Status),
		Payload:       raw,
	})
}

func topicForStatus(s model.Status) string {
	switch s {
	case model.StatusConfirmed:
		return outbox.TopicAppointmentConfirmed
	case model.StatusCompleted:
		return outbox.TopicAppointmentCompleted
	case model.StatusCancelled:
		return outbox.TopicAppointmentCancelled
	default:
		return outbox.TopicAppointmentRequested
	}
}

func (e *Engine) getService(ctx context.Context, id string) (model.Service, error) {
	svc, err := e.services.Get(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Service{}, &NotFoundError{Resource: "service", ID: id}
		}
		return model.Service{}, err
	}
	if svc.DurationMins <= 0 {
		return model.Service{}, invalidf("service %s has a non-positive duration", id)
	}
	return svc, nil
}

// parseLocalDate returns clinic-local midnight for a YYYY-MM-DD date.
func (e *Engine) parseLocalDate(date string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, date, e.loc)
	if err != nil {
		return time.Time{}, invalidf("invalid date %q (want YYYY-MM-DD)", date)
	}
	return t, nil
}

// localDay is the clinic-local calendar day a timestamp falls on; the
// token counter is keyed by it.
func (e *Engine) localDay(t time.Time) string {
	return t.In(e.loc).Format(dateLayout)
}

func (e *Engine) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
