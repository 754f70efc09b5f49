package events_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-events/internal/events"
)

func parse(t *testing.T, raw string) events.Filter {
	t.Helper()
	q, err := url.ParseQuery(raw)
	require.NoError(t, err)
	f, err := events.ParseFilter(q, events.DefaultPageLimit, events.MaxPageLimit)
	require.NoError(t, err)
	return f
}

func TestParseFilterDefaults(t *testing.T) {
	f := parse(t, "")
	assert.Nil(t, f.StartsBefore)
	assert.Nil(t, f.StartsAfter)
	assert.Nil(t, f.Status)
	assert.False(t, f.Attending)
	assert.False(t, f.Created)
	assert.False(t, f.Descending)
	assert.Equal(t, 0, f.Offset)
	assert.Equal(t, events.DefaultPageLimit, f.Limit)
}

func TestParseFilterValues(t *testing.T) {
	f := parse(t, "starts_before=2030-06-02T00:00:00Z&starts_after=2030-06-01T00:00:00%2B02:00&attending=true&created=1&status=ongoing&sort=-start_time&offset=5&limit=500")

	require.NotNil(t, f.StartsBefore)
	assert.True(t, f.StartsBefore.Equal(time.Date(2030, 6, 2, 0, 0, 0, 0, time.UTC)))
	require.NotNil(t, f.StartsAfter)
	assert.True(t, f.StartsAfter.Equal(time.Date(2030, 5, 31, 22, 0, 0, 0, time.UTC)))
	assert.True(t, f.Attending)
	assert.True(t, f.Created)
	require.NotNil(t, f.Status)
	assert.Equal(t, events.StatusOngoing, *f.Status)
	assert.True(t, f.Descending)
	assert.Equal(t, 5, f.Offset)
	assert.Equal(t, events.MaxPageLimit, f.Limit)
}

func TestParseFilterRejectsBadValues(t *testing.T) {
	q, _ := url.ParseQuery("starts_before=yesterday&attending=maybe&status=finished&sort=title&offset=-1&limit=0")
	_, err := events.ParseFilter(q, events.DefaultPageLimit, events.MaxPageLimit)
	got := fields(t, err)
	for _, name := range []string{"starts_before", "attending", "status", "sort", "offset", "limit"} {
		assert.Contains(t, got, name)
	}
}

func TestPlanFalseFlagsImposeNothing(t *testing.T) {
	p := parse(t, "attending=false&created=false").Plan(t0, "caller")
	assert.Empty(t, p.AttendeeID)
	assert.Empty(t, p.CreatorID)
}

func TestPlanFlags(t *testing.T) {
	p := parse(t, "attending=true&created=true").Plan(t0, "caller")
	assert.Equal(t, "caller", p.AttendeeID)
	assert.Equal(t, "caller", p.CreatorID)
}

func TestPlanStatus(t *testing.T) {
	up := parse(t, "status=upcoming").Plan(t0, "u")
	require.NotNil(t, up.StartTimeGTE)
	assert.True(t, up.StartTimeGTE.Equal(t0))
	assert.Nil(t, up.EndTimeLTE)

	past := parse(t, "status=past").Plan(t0, "u")
	require.NotNil(t, past.EndTimeLTE)
	assert.True(t, past.EndTimeLTE.Equal(t0))
	assert.Nil(t, past.StartTimeGTE)

	ongoing := parse(t, "status=ongoing").Plan(t0, "u")
	require.NotNil(t, ongoing.StartTimeLTE)
	require.NotNil(t, ongoing.EndTimeGTE)
	assert.True(t, ongoing.StartTimeLTE.Equal(t0))
	assert.True(t, ongoing.EndTimeGTE.Equal(t0))
}

func TestPlanUpcomingBoundary(t *testing.T) {
	// An event starting exactly now matches the upcoming filter but is
	// classified as ongoing.
	ev := baseEvent()
	plan := parse(t, "status=upcoming").Plan(ev.StartTime, "u")
	require.NotNil(t, plan.StartTimeGTE)
	assert.False(t, ev.StartTime.Before(*plan.StartTimeGTE))
	assert.Equal(t, events.StatusOngoing, events.Classify(ev, ev.StartTime))
}

func TestPlanKeepsTighterBounds(t *testing.T) {
	p := parse(t, "status=upcoming&starts_after=2030-07-01T00:00:00Z").Plan(t0, "u")
	require.NotNil(t, p.StartTimeGTE)
	assert.True(t, p.StartTimeGTE.Equal(time.Date(2030, 7, 1, 0, 0, 0, 0, time.UTC)))

	p = parse(t, "status=upcoming&starts_after=2020-01-01T00:00:00Z").Plan(t0, "u")
	assert.True(t, p.StartTimeGTE.Equal(t0))

	p = parse(t, "status=ongoing&starts_before=2020-01-01T00:00:00Z").Plan(t0, "u")
	assert.True(t, p.StartTimeLTE.Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
}
