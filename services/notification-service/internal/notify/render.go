package notify

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AppointmentEvent is the payload published by the booking engine on
// every effective status change.
type AppointmentEvent struct {
	AppointmentID   string `json:"appointment_id"`
	PatientName     string `json:"patient_name"`
	PatientEmail    string `json:"patient_email"`
	PatientPhone    string `json:"patient_phone"`
	ServiceID       string `json:"service_id"`
	AppointmentAt   string `json:"appointment_at"`
	EndTime         string `json:"end_time"`
	Status          string `json:"status"`
	Shift           string `json:"shift"`
	Notes           string `json:"notes"`
	TokenNumber     *int   `json:"token_number"`
	Reason          string `json:"reason"`
	CancelToken     string `json:"cancel_token"`
	RescheduleToken string `json:"reschedule_token"`
}

func (e AppointmentEvent) Validate() error {
	if e.AppointmentID == "" || e.Status == "" {
		return errors.New("missing appointment_id or status")
	}
	if e.AppointmentAt == "" {
		return errors.New("missing appointment_at")
	}
	return nil
}

// Message is a rendered notification, ready for a channel sender.
type Message struct {
	Subject string
	Body    string
	SMS     string
}

const whenLayout = "Monday, 2 January 2006 at 15:04"

// Render builds the patient-facing text for one status change. Action
// links are only present while the appointment is still actionable;
// terminal notifications carry none.
func Render(evt AppointmentEvent, baseURL string, loc *time.Location) Message {
	when := evt.AppointmentAt
	if t, err := time.Parse(time.RFC3339, evt.AppointmentAt); err == nil {
		when = t.In(loc).Format(whenLayout)
	}
	name := strings.TrimSpace(evt.PatientName)
	if name == "" {
		name = "there"
	}

	var subject string
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)

	switch evt.Status {
	case "pending":
		subject = "We received your appointment request"
		if evt.Shift != "" {
			fmt.Fprintf(&b, "Your %s shift appointment request for %s has been received.\n", evt.Shift, when)
			b.WriteString("You will get your queue number once the clinic confirms it.\n")
		} else {
			fmt.Fprintf(&b, "Your appointment request for %s has been received.\n", when)
		}
		b.WriteString("We will email you again once it is confirmed.\n")
	case "confirmed":
		subject = "Your appointment is confirmed"
		fmt.Fprintf(&b, "Your appointment on %s is confirmed.\n", when)
		if evt.TokenNumber != nil {
			fmt.Fprintf(&b, "Your queue number for the %s shift is %d.\n", evt.Shift, *evt.TokenNumber)
		}
	case "completed":
		subject = "Thank you for your visit"
		fmt.Fprintf(&b, "Your appointment on %s is complete. We hope to see you again.\n", when)
	case "cancelled":
		subject = "Your appointment was cancelled"
		fmt.Fprintf(&b, "Your appointment on %s has been cancelled.\n", when)
		if evt.Reason != "" {
			fmt.Fprintf(&b, "Reason: %s\n", evt.Reason)
		}
	default:
		subject = "Appointment update"
		fmt.Fprintf(&b, "Your appointment on %s was updated to %s.\n", when, evt.Status)
	}

	if evt.CancelToken != "" || evt.RescheduleToken != "" {
		b.WriteString("\nNeed to make a change? These links work once and expire in 24 hours:\n")
		if evt.CancelToken != "" {
			fmt.Fprintf(&b, "Cancel: %s/cancel?token=%s\n", strings.TrimRight(baseURL, "/"), evt.CancelToken)
		}
		if evt.RescheduleToken != "" {
			fmt.Fprintf(&b, "Reschedule: %s/reschedule?token=%s\n", strings.TrimRight(baseURL, "/"), evt.RescheduleToken)
		}
	}

	sms := fmt.Sprintf("Appointment %s: %s.", evt.Status, when)
	if evt.Status == "confirmed" && evt.TokenNumber != nil {
		sms = fmt.Sprintf("Appointment confirmed for %s. Queue number %d.", when, *evt.TokenNumber)
	}

	return Message{Subject: subject, Body: b.String(), SMS: sms}
}
