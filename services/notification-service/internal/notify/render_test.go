package notify

import (
	"strings"
	"testing"
	"time"
)

func karachi(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Karachi")
	if err != nil {
		t.Fatalf("LoadLocation failed: %v", err)
	}
	return loc
}

func baseEvent() AppointmentEvent {
	return AppointmentEvent{
		AppointmentID: "a1",
		PatientName:   "Ayesha",
		PatientEmail:  "ayesha@example.com",
		AppointmentAt: "2025-06-01T09:00:00+05:00",
		EndTime:       "2025-06-01T09:30:00+05:00",
		Status:        "pending",
	}
}

func TestRenderPendingIncludesActionLinks(t *testing.T) {
	evt := baseEvent()
	evt.CancelToken = "cancel-raw"
	evt.RescheduleToken = "resched-raw"

	msg := Render(evt, "https://clinic.example/self", karachi(t))
	if !strings.Contains(msg.Body, "https://clinic.example/self/cancel?token=cancel-raw") {
		t.Fatalf("cancel link missing:\n%s", msg.Body)
	}
	if !strings.Contains(msg.Body, "https://clinic.example/self/reschedule?token=resched-raw") {
		t.Fatalf("reschedule link missing:\n%s", msg.Body)
	}
	if !strings.Contains(msg.Body, "Sunday, 1 June 2025 at 09:00") {
		t.Fatalf("clinic-local time missing:\n%s", msg.Body)
	}
}

func TestRenderConfirmedShiftCarriesQueueNumber(t *testing.T) {
	n := 7
	evt := baseEvent()
	evt.Status = "confirmed"
	evt.Shift = "morning"
	evt.TokenNumber = &n

	msg := Render(evt, "https://clinic.example", karachi(t))
	if !strings.Contains(msg.Body, "queue number for the morning shift is 7") {
		t.Fatalf("queue number missing:\n%s", msg.Body)
	}
	if !strings.Contains(msg.SMS, "Queue number 7") {
		t.Fatalf("sms missing queue number: %s", msg.SMS)
	}
}

func TestRenderCancelledHasNoLinks(t *testing.T) {
	evt := baseEvent()
	evt.Status = "cancelled"
	evt.Reason = "patient no-show"

	msg := Render(evt, "https://clinic.example", karachi(t))
	if strings.Contains(msg.Body, "token=") {
		t.Fatalf("terminal notification must not carry action links:\n%s", msg.Body)
	}
	if !strings.Contains(msg.Body, "patient no-show") {
		t.Fatalf("cancellation reason missing:\n%s", msg.Body)
	}
}

func TestValidate(t *testing.T) {
	evt := baseEvent()
	if err := evt.Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}
	evt.AppointmentID = ""
	if err := evt.Validate(); err == nil {
		t.Fatal("missing appointment_id must fail validation")
	}
}
