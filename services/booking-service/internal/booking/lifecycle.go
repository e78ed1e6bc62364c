package booking

import "github.com/clinicbook/clinicbook/services/booking-service/internal/model"

// CanTransition is the exhaustive appointment state table. Same-status
// writes are allowed everywhere but treated by the engine as idempotent
// no-ops: no notification, no token allocation. completed and cancelled
// are terminal.
func CanTransition(from, to model.Status) bool {
	switch from {
	case model.StatusPending:
		return to == model.StatusPending || to == model.StatusConfirmed || to == model.StatusCancelled
	case model.StatusConfirmed:
		return to == model.StatusConfirmed || to == model.StatusCompleted || to == model.StatusCancelled
	case model.StatusCompleted:
		return to == model.StatusCompleted
	case model.StatusCancelled:
		return to == model.StatusCancelled
	}
	return false
}
