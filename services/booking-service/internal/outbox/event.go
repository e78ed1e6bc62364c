package outbox

// Event is the envelope appended inside a booking transaction. The
// Kafka topic equals EventType, one event kind per topic:
//
//	clinic.appointment.requested.v1
//	clinic.appointment.confirmed.v1
//	clinic.appointment.completed.v1
//	clinic.appointment.cancelled.v1
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	TopicAppointmentRequested = "clinic.appointment.requested.v1"
	TopicAppointmentConfirmed = "clinic.appointment.confirmed.v1"
	TopicAppointmentCompleted = "clinic.appointment.completed.v1"
	TopicAppointmentCancelled = "clinic.appointment.cancelled.v1"
)
