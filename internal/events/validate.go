package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"ms-events/internal/models"
)

const (
	MinCapacity    = 1
	MaxCapacity    = 1_000_000
	MaxTitleLength = 255
)

// EventInput carries the mutable fields of an event. A nil field is absent
// from the request, which matters for partial updates.
type EventInput struct {
	Title       *string    `json:"title" validate:"omitnil,max=255"`
	Description *string    `json:"description" validate:"omitnil"`
	Capacity    *int       `json:"capacity" validate:"omitnil,min=1,max=1000000"`
	StartTime   *time.Time `json:"start_time" validate:"omitnil"`
	EndTime     *time.Time `json:"end_time" validate:"omitnil"`

	nulls []string
}

var inputFields = []string{"title", "description", "capacity", "start_time", "end_time"}

// UnmarshalJSON remembers fields sent as an explicit null so they can be
// rejected instead of being treated as absent.
func (in *EventInput) UnmarshalJSON(b []byte) error {
	type plain EventInput
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*in = EventInput(p)
	in.nulls = nil
	for _, name := range inputFields {
		if v, ok := raw[name]; ok && bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			in.nulls = append(in.nulls, name)
		}
	}
	return nil
}

func (in EventInput) isNull(field string) bool {
	for _, name := range in.nulls {
		if name == field {
			return true
		}
	}
	return false
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func checkTags(in EventInput, verr *ValidationError) {
	err := validate.Struct(in)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add(nonFieldKey, err.Error())
		return
	}
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "max":
			if fe.Field() == "capacity" {
				verr.Add(fe.Field(), fmt.Sprintf("Ensure this value is less than or equal to %d.", MaxCapacity))
			} else {
				verr.Add(fe.Field(), fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param()))
			}
		case "min":
			verr.Add(fe.Field(), fmt.Sprintf("Ensure this value is greater than or equal to %d.", MinCapacity))
		default:
			verr.Add(fe.Field(), fmt.Sprintf("Failed on the %q rule.", fe.Tag()))
		}
	}
}

func blank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) == ""
}

func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// checkFields validates every present field against the create rules.
func checkFields(in EventInput, now time.Time, verr *ValidationError) {
	checkTags(in, verr)
	for _, name := range in.nulls {
		verr.Add(name, "This field may not be null.")
	}
	if blank(in.Title) {
		verr.Add("title", "This field may not be blank.")
	}
	if blank(in.Description) {
		verr.Add("description", "This field may not be blank.")
	}
	if in.StartTime != nil && in.StartTime.Before(now) {
		verr.Add("start_time", "Start time has to be in the future")
	}
	if in.EndTime != nil && in.EndTime.Before(now) {
		verr.Add("end_time", "End time has to be in the future")
	}
}

func requireFields(in EventInput, verr *ValidationError, withCapacity bool) {
	present := map[string]bool{
		"title":       in.Title != nil,
		"description": in.Description != nil,
		"capacity":    in.Capacity != nil || !withCapacity,
		"start_time":  in.StartTime != nil,
		"end_time":    in.EndTime != nil,
	}
	for _, name := range inputFields {
		if !present[name] && !in.isNull(name) {
			verr.Add(name, "This field is required.")
		}
	}
}

func checkWindow(start, end time.Time, verr *ValidationError) {
	if !start.Before(end) {
		verr.Add("start_time", "Start time must be less than end time.")
	}
}

// NewEvent validates a create request and builds the event record.
// Capacity defaults to MinCapacity when absent.
func NewEvent(in EventInput, creatorID, id string, now time.Time) (models.Event, error) {
	verr := &ValidationError{}
	requireFields(in, verr, false)
	checkFields(in, now, verr)
	if in.StartTime != nil && in.EndTime != nil {
		checkWindow(*in.StartTime, *in.EndTime, verr)
	}
	if err := verr.OrNil(); err != nil {
		return models.Event{}, err
	}

	capacity := MinCapacity
	if in.Capacity != nil {
		capacity = *in.Capacity
	}
	return models.Event{
		ID:          id,
		CreatorID:   creatorID,
		Title:       strings.TrimSpace(*in.Title),
		Description: strings.TrimSpace(*in.Description),
		Capacity:    capacity,
		StartTime:   normalize(*in.StartTime),
		EndTime:     normalize(*in.EndTime),
		Version:     1,
		CreatedAt:   normalize(now),
	}, nil
}

// ApplyUpdate validates the input and returns a copy of ev with the present
// fields applied. A full update requires every mutable field.
func ApplyUpdate(ev models.Event, in EventInput, now time.Time, partial bool) (models.Event, error) {
	verr := &ValidationError{}
	if !partial {
		requireFields(in, verr, true)
	}
	checkFields(in, now, verr)

	next := ev
	if in.Title != nil {
		next.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		next.Description = strings.TrimSpace(*in.Description)
	}
	if in.StartTime != nil {
		next.StartTime = normalize(*in.StartTime)
	}
	if in.EndTime != nil {
		next.EndTime = normalize(*in.EndTime)
	}
	if in.Capacity != nil {
		next.Capacity = *in.Capacity
		if next.Capacity < ev.AttendeeCount {
			verr.Add("capacity", fmt.Sprintf("Capacity cannot be lower than the current number of attendees (%d).", ev.AttendeeCount))
		}
	}
	if in.StartTime != nil || in.EndTime != nil {
		checkWindow(next.StartTime, next.EndTime, verr)
	}
	if err := verr.OrNil(); err != nil {
		return ev, err
	}
	return next, nil
}
