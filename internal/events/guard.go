package events

import (
	"time"

	"ms-events/internal/models"
)

// AssertEditable fails with ErrEventLocked once the event has started.
// Terms and attendance are frozen from start_time on.
func AssertEditable(ev models.Event, now time.Time) error {
	if now.Before(ev.StartTime) {
		return nil
	}
	return ErrEventLocked
}
