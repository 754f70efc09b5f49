package events_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-events/internal/events"
	"ms-events/internal/models"
)

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

func timePtr(t time.Time) *time.Time { return &t }

func fullInput(start time.Time) events.EventInput {
	return events.EventInput{
		Title:       strPtr("Go meetup"),
		Description: strPtr("Talks and pizza"),
		Capacity:    intPtr(10),
		StartTime:   timePtr(start),
		EndTime:     timePtr(start.Add(2 * time.Hour)),
	}
}

func fields(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verr *events.ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	assert.ErrorIs(t, err, events.ErrValidation)
	return verr.Fields
}

func TestNewEvent(t *testing.T) {
	now := t0.Add(-24 * time.Hour)
	in := fullInput(t0)
	in.Title = strPtr("  Go meetup  ")

	ev, err := events.NewEvent(in, "creator", "id-1", now)
	require.NoError(t, err)
	assert.Equal(t, "id-1", ev.ID)
	assert.Equal(t, "creator", ev.CreatorID)
	assert.Equal(t, "Go meetup", ev.Title)
	assert.Equal(t, 10, ev.Capacity)
	assert.Equal(t, 0, ev.AttendeeCount)
	assert.Equal(t, int64(1), ev.Version)
	assert.True(t, ev.StartTime.Equal(t0))
}

func TestNewEventDefaultsCapacity(t *testing.T) {
	in := fullInput(t0)
	in.Capacity = nil

	ev, err := events.NewEvent(in, "creator", "id-1", t0.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, events.MinCapacity, ev.Capacity)
}

func TestNewEventValidation(t *testing.T) {
	now := t0

	tests := []struct {
		name  string
		edit  func(in *events.EventInput)
		field string
	}{
		{"start in the past", func(in *events.EventInput) {
			in.StartTime = timePtr(now.Add(-time.Minute))
		}, "start_time"},
		{"end in the past", func(in *events.EventInput) {
			in.StartTime = timePtr(now.Add(-2 * time.Hour))
			in.EndTime = timePtr(now.Add(-time.Hour))
		}, "end_time"},
		{"start equals end", func(in *events.EventInput) {
			in.EndTime = in.StartTime
		}, "start_time"},
		{"start after end", func(in *events.EventInput) {
			in.EndTime = timePtr(in.StartTime.Add(-time.Minute))
		}, "start_time"},
		{"blank title", func(in *events.EventInput) { in.Title = strPtr("   ") }, "title"},
		{"blank description", func(in *events.EventInput) { in.Description = strPtr("") }, "description"},
		{"title too long", func(in *events.EventInput) { in.Title = strPtr(strings.Repeat("x", 256)) }, "title"},
		{"zero capacity", func(in *events.EventInput) { in.Capacity = intPtr(0) }, "capacity"},
		{"capacity too large", func(in *events.EventInput) { in.Capacity = intPtr(events.MaxCapacity + 1) }, "capacity"},
		{"missing title", func(in *events.EventInput) { in.Title = nil }, "title"},
		{"missing end", func(in *events.EventInput) { in.EndTime = nil }, "end_time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := fullInput(now.Add(time.Hour))
			tt.edit(&in)
			_, err := events.NewEvent(in, "creator", "id", now)
			assert.Contains(t, fields(t, err), tt.field)
		})
	}
}

func TestNewEventCapacityBounds(t *testing.T) {
	for _, c := range []int{events.MinCapacity, events.MaxCapacity} {
		in := fullInput(t0)
		in.Capacity = intPtr(c)
		ev, err := events.NewEvent(in, "creator", "id", t0.Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, c, ev.Capacity)
	}
}

func TestEventInputRejectsExplicitNull(t *testing.T) {
	var in events.EventInput
	require.NoError(t, json.Unmarshal([]byte(`{"title": null, "capacity": 4}`), &in))
	assert.Nil(t, in.Title)
	require.NotNil(t, in.Capacity)
	assert.Equal(t, 4, *in.Capacity)

	ev := models.Event{ID: "e", Title: "Old", Description: "d", Capacity: 5, StartTime: t0, EndTime: t0.Add(time.Hour)}
	_, err := events.ApplyUpdate(ev, in, t0.Add(-time.Hour), true)
	assert.Equal(t, []string{"This field may not be null."}, fields(t, err)["title"])
}

func baseEvent() models.Event {
	return models.Event{
		ID:            "e1",
		CreatorID:     "creator",
		Title:         "Old title",
		Description:   "Old description",
		Capacity:      5,
		StartTime:     t0,
		EndTime:       t0.Add(2 * time.Hour),
		AttendeeCount: 3,
		Version:       4,
	}
}

func TestApplyUpdatePartial(t *testing.T) {
	now := t0.Add(-time.Hour)

	next, err := events.ApplyUpdate(baseEvent(), events.EventInput{Title: strPtr("New title")}, now, true)
	require.NoError(t, err)
	assert.Equal(t, "New title", next.Title)
	assert.Equal(t, "Old description", next.Description)
	assert.Equal(t, 5, next.Capacity)
	assert.True(t, next.StartTime.Equal(t0))
}

func TestApplyUpdatePartialRejectsBlankTitle(t *testing.T) {
	ev := baseEvent()
	got, err := events.ApplyUpdate(ev, events.EventInput{Title: strPtr("")}, t0.Add(-time.Hour), true)
	assert.Contains(t, fields(t, err), "title")
	assert.Equal(t, ev, got)
}

func TestApplyUpdatePartialChecksMergedWindow(t *testing.T) {
	in := events.EventInput{EndTime: timePtr(t0.Add(-time.Minute))}
	_, err := events.ApplyUpdate(baseEvent(), in, t0.Add(-time.Hour), true)
	assert.Contains(t, fields(t, err), "start_time")
}

func TestApplyUpdateFullRequiresAllFields(t *testing.T) {
	_, err := events.ApplyUpdate(baseEvent(), events.EventInput{Title: strPtr("x")}, t0.Add(-time.Hour), false)
	got := fields(t, err)
	for _, f := range []string{"description", "capacity", "start_time", "end_time"} {
		assert.Contains(t, got, f)
	}
	assert.NotContains(t, got, "title")
}

func TestApplyUpdateCapacityBelowAttendees(t *testing.T) {
	_, err := events.ApplyUpdate(baseEvent(), events.EventInput{Capacity: intPtr(2)}, t0.Add(-time.Hour), true)
	assert.Contains(t, fields(t, err), "capacity")

	next, err := events.ApplyUpdate(baseEvent(), events.EventInput{Capacity: intPtr(3)}, t0.Add(-time.Hour), true)
	require.NoError(t, err)
	assert.Equal(t, 3, next.Capacity)
}
