package events

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound          = errors.New("event not found")
	ErrEventLocked       = errors.New("event has already started")
	ErrCapacityExhausted = errors.New("event capacity is full")
	ErrPermission        = errors.New("only the event creator may modify the event")
	ErrConflict          = errors.New("event was modified concurrently")
	ErrValidation        = errors.New("validation failed")
)

// ValidationError collects user-fixable problems keyed by field name.
// A key of "non_field_errors" holds problems spanning several fields.
type ValidationError struct {
	Fields map[string][]string
}

const nonFieldKey = "non_field_errors"

func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// OrNil returns nil when nothing was collected.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], "; ")))
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
