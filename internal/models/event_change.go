package models

import (
	"time"

	"github.com/google/uuid"
)

type EventChangeType string

const (
	EventCreated     EventChangeType = "event.created"
	EventUpdated     EventChangeType = "event.updated"
	AttendanceJoined EventChangeType = "attendance.joined"
	AttendanceLeft   EventChangeType = "attendance.left"
)

// EventChange is the message published to the change feed after a write
// has committed. Consumers key on EventID.
type EventChange struct {
	MessageID     uuid.UUID       `json:"message_id"`
	Type          EventChangeType `json:"type"`
	EventID       string          `json:"event_id"`
	UserID        string          `json:"user_id,omitempty"`
	AttendeeCount int             `json:"attendee_count"`
	Capacity      int             `json:"capacity"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// NewEventChange builds a change message for the given event snapshot.
func NewEventChange(kind EventChangeType, ev Event, userID string, at time.Time) EventChange {
	return EventChange{
		MessageID:     uuid.New(),
		Type:          kind,
		EventID:       ev.ID,
		UserID:        userID,
		AttendeeCount: ev.AttendeeCount,
		Capacity:      ev.Capacity,
		OccurredAt:    at,
	}
}
