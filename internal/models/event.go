package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Event is the persisted event record. AttendeeCount always equals the
// number of event_attendees rows for the event and never exceeds Capacity.
type Event struct {
	bun.BaseModel `bun:"table:events,alias:event"`

	ID            string    `bun:"id,pk" json:"id"`
	CreatorID     string    `bun:"creator_id,notnull" json:"creator_id"`
	Title         string    `bun:"title,notnull" json:"title"`
	Description   string    `bun:"description,notnull" json:"description"`
	Capacity      int       `bun:"capacity,notnull,default:1" json:"capacity"`
	StartTime     time.Time `bun:"start_time,notnull" json:"start_time"`
	EndTime       time.Time `bun:"end_time,notnull" json:"end_time"`
	AttendeeCount int       `bun:"attendee_count,notnull,default:0" json:"attendee_count"`
	Version       int64     `bun:"version,notnull,default:1" json:"-"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}

// EventAttendee is one membership row; the composite key keeps a user from
// appearing twice in the same event.
type EventAttendee struct {
	bun.BaseModel `bun:"table:event_attendees,alias:ea"`

	EventID  string    `bun:"event_id,pk"`
	UserID   string    `bun:"user_id,pk"`
	JoinedAt time.Time `bun:"joined_at,notnull"`
}

// EventView is the API representation of an event.
type EventView struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Capacity    int           `json:"capacity"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	Status      string        `json:"status"`
	Creator     UserSummary   `json:"creator"`
	Attendees   []UserSummary `json:"attendees"`
	CreatedAt   time.Time     `json:"created_at"`
}

// EventPage is one page of a filtered listing.
type EventPage struct {
	Count   int         `json:"count"`
	Results []EventView `json:"results"`
}
