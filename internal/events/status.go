package events

import (
	"fmt"
	"time"

	"ms-events/internal/models"
)

type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusOngoing  Status = "ongoing"
	StatusPast     Status = "past"
)

// Classify places an event on the timeline relative to now. An event whose
// end_time equals now is already Past.
func Classify(ev models.Event, now time.Time) Status {
	switch {
	case now.Before(ev.StartTime):
		return StatusUpcoming
	case !ev.EndTime.After(now):
		return StatusPast
	default:
		return StatusOngoing
	}
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusUpcoming, StatusOngoing, StatusPast:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}
