package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-events/internal/events"
	"ms-events/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateEvent(ctx context.Context, ev models.Event) error {
	_, err := d.Bun.NewInsert().Model(&ev).Exec(ctx)
	return err
}

func (d *DB) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	var ev models.Event
	err := d.Bun.NewSelect().
		Model(&ev).
		Where("event.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, events.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// SaveEvent writes the mutable fields only if the stored version still
// equals expectedVersion.
func (d *DB) SaveEvent(ctx context.Context, ev models.Event, expectedVersion int64) error {
	res, err := d.Bun.NewUpdate().
		Table("events").
		Set("title = ?", ev.Title).
		Set("description = ?", ev.Description).
		Set("capacity = ?", ev.Capacity).
		Set("start_time = ?", ev.StartTime).
		Set("end_time = ?", ev.EndTime).
		Set("version = version + 1").
		Where("id = ?", ev.ID).
		Where("version = ?", expectedVersion).
		Where("attendee_count <= ?", ev.Capacity).
		Exec(ctx)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return events.ErrConflict
	}
	return nil
}

func (d *DB) IsAttending(ctx context.Context, eventID, userID string) (bool, error) {
	return isAttending(ctx, d.Bun, eventID, userID)
}

func isAttending(ctx context.Context, idb bun.IDB, eventID, userID string) (bool, error) {
	return idb.NewSelect().
		Model((*models.EventAttendee)(nil)).
		Where("event_id = ?", eventID).
		Where("user_id = ?", userID).
		Exists(ctx)
}

// AddAttendee claims a seat and records the membership in one transaction.
// The counter update only succeeds while attendee_count < capacity, so two
// concurrent callers can never both take the last seat. It reports false
// when the user was already attending.
func (d *DB) AddAttendee(ctx context.Context, eventID, userID string, at time.Time) (bool, error) {
	added := false
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		attending, err := isAttending(ctx, tx, eventID, userID)
		if err != nil {
			return err
		}
		if attending {
			return nil
		}

		res, err := tx.NewUpdate().
			Table("events").
			Set("attendee_count = attendee_count + 1").
			Set("version = version + 1").
			Where("id = ?", eventID).
			Where("attendee_count < capacity").
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return events.ErrCapacityExhausted
		}

		row := models.EventAttendee{EventID: eventID, UserID: userID, JoinedAt: at.UTC()}
		res, err = tx.NewInsert().
			Model(&row).
			On("CONFLICT DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err = res.RowsAffected(); err != nil {
			return err
		}
		if n == 0 {
			return errAlreadyMember
		}
		added = true
		return nil
	})
	if errors.Is(err, errAlreadyMember) {
		return false, nil
	}
	if err != nil && !errors.Is(err, events.ErrCapacityExhausted) {
		return false, fmt.Errorf("failed to add attendee: %w", err)
	}
	return added, err
}

// errAlreadyMember rolls back the counter bump when a concurrent request
// inserted the same membership first.
var errAlreadyMember = errors.New("already a member")

// RemoveAttendee deletes the membership and releases its seat. It reports
// false when there was nothing to remove.
func (d *DB) RemoveAttendee(ctx context.Context, eventID, userID string) (bool, error) {
	removed := false
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*models.EventAttendee)(nil)).
			Where("event_id = ?", eventID).
			Where("user_id = ?", userID).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		_, err = tx.NewUpdate().
			Table("events").
			Set("attendee_count = attendee_count - 1").
			Set("version = version + 1").
			Where("id = ?", eventID).
			Exec(ctx)
		if err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to remove attendee: %w", err)
	}
	return removed, nil
}
