package events

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Filter is the parsed form of the list query string. Nil pointers mean
// the parameter was not supplied.
type Filter struct {
	StartsBefore *time.Time
	StartsAfter  *time.Time
	Attending    bool
	Created      bool
	Status       *Status
	Descending   bool
	Offset       int
	Limit        int
}

// QueryPlan is the storage-facing translation of a Filter. Every non-nil
// bound is inclusive and all predicates compose with AND.
type QueryPlan struct {
	StartTimeLTE *time.Time
	StartTimeGTE *time.Time
	EndTimeLTE   *time.Time
	EndTimeGTE   *time.Time
	AttendeeID   string
	CreatorID    string
	Descending   bool
	Offset       int
	Limit        int
}

var boolValues = map[string]bool{
	"true": true, "1": true, "yes": true, "on": true,
	"false": false, "0": false, "no": false, "off": false,
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, err
	}
	return normalize(t), nil
}

// ParseFilter reads the list parameters. Unknown parameters are ignored.
func ParseFilter(q url.Values, defaultLimit, maxLimit int) (Filter, error) {
	f := Filter{Limit: defaultLimit}
	verr := &ValidationError{}

	for _, name := range []string{"starts_before", "starts_after"} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := parseTime(raw)
		if err != nil {
			verr.Add(name, "Enter a valid date/time.")
			continue
		}
		if name == "starts_before" {
			f.StartsBefore = &t
		} else {
			f.StartsAfter = &t
		}
	}

	for _, name := range []string{"attending", "created"} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		b, ok := boolValues[strings.ToLower(raw)]
		if !ok {
			verr.Add(name, "Must be a valid boolean.")
			continue
		}
		if name == "attending" {
			f.Attending = b
		} else {
			f.Created = b
		}
	}

	if raw := q.Get("status"); raw != "" {
		st, err := ParseStatus(raw)
		if err != nil {
			verr.Add("status", "Select a valid choice. "+raw+" is not one of the available choices.")
		} else {
			f.Status = &st
		}
	}

	switch raw := q.Get("sort"); raw {
	case "", "start_time":
	case "-start_time":
		f.Descending = true
	default:
		verr.Add("sort", "Select a valid choice. "+raw+" is not one of the available choices.")
	}

	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			verr.Add("offset", "Must be a non-negative integer.")
		} else {
			f.Offset = n
		}
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			verr.Add("limit", "Must be a positive integer.")
		} else {
			f.Limit = min(n, maxLimit)
		}
	}

	if err := verr.OrNil(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

// Plan translates the filter for a caller at the given instant. The
// upcoming bound is start_time >= now, which is inclusive where Classify
// is not; both behaviors are kept as they are.
func (f Filter) Plan(now time.Time, callerID string) QueryPlan {
	p := QueryPlan{
		StartTimeLTE: f.StartsBefore,
		StartTimeGTE: f.StartsAfter,
		Descending:   f.Descending,
		Offset:       f.Offset,
		Limit:        f.Limit,
	}
	if f.Attending {
		p.AttendeeID = callerID
	}
	if f.Created {
		p.CreatorID = callerID
	}
	if f.Status == nil {
		return p
	}

	at := normalize(now)
	switch *f.Status {
	case StatusUpcoming:
		p.StartTimeGTE = later(p.StartTimeGTE, at)
	case StatusPast:
		p.EndTimeLTE = &at
	case StatusOngoing:
		p.StartTimeLTE = earlier(p.StartTimeLTE, at)
		p.EndTimeGTE = &at
	}
	return p
}

// later keeps the tighter of two lower bounds.
func later(cur *time.Time, t time.Time) *time.Time {
	if cur != nil && cur.After(t) {
		return cur
	}
	return &t
}

// earlier keeps the tighter of two upper bounds.
func earlier(cur *time.Time, t time.Time) *time.Time {
	if cur != nil && cur.Before(t) {
		return cur
	}
	return &t
}
