package db

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-events/internal/events"
	"ms-events/internal/models"
)

// ListEvents applies every bound of the plan conjunctively and returns one
// page together with the total number of matches.
func (d *DB) ListEvents(ctx context.Context, plan events.QueryPlan) ([]models.Event, int, error) {
	var evs []models.Event
	q := d.Bun.NewSelect().Model(&evs)

	if plan.StartTimeLTE != nil {
		q = q.Where("event.start_time <= ?", *plan.StartTimeLTE)
	}
	if plan.StartTimeGTE != nil {
		q = q.Where("event.start_time >= ?", *plan.StartTimeGTE)
	}
	if plan.EndTimeLTE != nil {
		q = q.Where("event.end_time <= ?", *plan.EndTimeLTE)
	}
	if plan.EndTimeGTE != nil {
		q = q.Where("event.end_time >= ?", *plan.EndTimeGTE)
	}
	if plan.CreatorID != "" {
		q = q.Where("event.creator_id = ?", plan.CreatorID)
	}
	if plan.AttendeeID != "" {
		q = q.Where("EXISTS (SELECT 1 FROM event_attendees AS ea WHERE ea.event_id = event.id AND ea.user_id = ?)", plan.AttendeeID)
	}

	if plan.Descending {
		q = q.OrderExpr("event.start_time DESC, event.id DESC")
	} else {
		q = q.OrderExpr("event.start_time ASC, event.id ASC")
	}
	if plan.Limit > 0 {
		q = q.Limit(plan.Limit)
	}
	if plan.Offset > 0 {
		q = q.Offset(plan.Offset)
	}

	count, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query events: %w", err)
	}
	return evs, count, nil
}

type attendeeRow struct {
	EventID  string `bun:"event_id"`
	ID       string `bun:"id"`
	Username string `bun:"username"`
	Email    string `bun:"email"`
}

// Summaries batch-loads the creator and attendee summaries of evs. Users
// unknown to the local table (external identity provider subjects) are
// returned with their id only.
func (d *DB) Summaries(ctx context.Context, evs []models.Event) (map[string]models.UserSummary, map[string][]models.UserSummary, error) {
	creators := make(map[string]models.UserSummary)
	attendees := make(map[string][]models.UserSummary)
	if len(evs) == 0 {
		return creators, attendees, nil
	}

	eventIDs := make([]string, 0, len(evs))
	creatorIDs := make([]string, 0, len(evs))
	for _, ev := range evs {
		eventIDs = append(eventIDs, ev.ID)
		if _, seen := creators[ev.CreatorID]; !seen {
			creators[ev.CreatorID] = models.UserSummary{ID: ev.CreatorID}
			creatorIDs = append(creatorIDs, ev.CreatorID)
		}
	}

	var users []models.User
	err := d.Bun.NewSelect().
		Model(&users).
		Column("id", "username", "email").
		Where("u.id IN (?)", bun.In(creatorIDs)).
		Scan(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load creators: %w", err)
	}
	for _, u := range users {
		creators[u.ID] = u.Summary()
	}

	var rows []attendeeRow
	err = d.Bun.NewSelect().
		TableExpr("event_attendees AS ea").
		Join("LEFT JOIN users AS u ON u.id = ea.user_id").
		ColumnExpr("ea.event_id, ea.user_id AS id").
		ColumnExpr("COALESCE(u.username, '') AS username, COALESCE(u.email, '') AS email").
		Where("ea.event_id IN (?)", bun.In(eventIDs)).
		OrderExpr("ea.joined_at ASC, ea.user_id ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load attendees: %w", err)
	}
	for _, r := range rows {
		attendees[r.EventID] = append(attendees[r.EventID], models.UserSummary{ID: r.ID, Username: r.Username, Email: r.Email})
	}

	return creators, attendees, nil
}
