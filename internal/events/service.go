package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-events/internal/clock"
	"ms-events/internal/logger"
	"ms-events/internal/models"
)

type DBLayer interface {
	CreateEvent(ctx context.Context, ev models.Event) error
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
	SaveEvent(ctx context.Context, ev models.Event, expectedVersion int64) error
	IsAttending(ctx context.Context, eventID, userID string) (bool, error)
	AddAttendee(ctx context.Context, eventID, userID string, at time.Time) (bool, error)
	RemoveAttendee(ctx context.Context, eventID, userID string) (bool, error)
	ListEvents(ctx context.Context, plan QueryPlan) ([]models.Event, int, error)
	Summaries(ctx context.Context, evs []models.Event) (map[string]models.UserSummary, map[string][]models.UserSummary, error)
}

// Publisher sends change messages to the feed. Implementations must be safe
// for concurrent use.
type Publisher interface {
	Publish(topic string, key string, value []byte) error
}

type Topics struct {
	Created string
	Updated string
	Joined  string
	Left    string
}

type Options struct {
	Topics        Topics
	UpdateRetries int
	DefaultLimit  int
	MaxLimit      int
}

type Service struct {
	DB        DBLayer
	Publisher Publisher
	Clock     clock.Clock
	Logger    *logger.Logger
	opts      Options
}

func NewService(db DBLayer, publisher Publisher, clk clock.Clock, log *logger.Logger, opts Options) *Service {
	if opts.UpdateRetries < 1 {
		opts.UpdateRetries = 3
	}
	if opts.DefaultLimit < 1 {
		opts.DefaultLimit = DefaultPageLimit
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = max(MaxPageLimit, opts.DefaultLimit)
	}
	return &Service{DB: db, Publisher: publisher, Clock: clk, Logger: log, opts: opts}
}

func (s *Service) Options() Options {
	return s.opts
}

// ---------------- MUTATION ----------------

func (s *Service) Create(ctx context.Context, in EventInput, creatorID string) (*models.EventView, error) {
	now := s.Clock.Now()
	ev, err := NewEvent(in, creatorID, uuid.NewString(), now)
	if err != nil {
		return nil, err
	}
	if err := s.DB.CreateEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	s.Logger.LogEvent("CREATE", ev.ID, fmt.Sprintf("created by %s, capacity %d", creatorID, ev.Capacity))
	s.publish(s.opts.Topics.Created, models.EventCreated, ev, "")

	return s.view(ctx, ev, now)
}

// Update applies a full or partial update on behalf of callerID. A lost
// version race reloads the event and re-applies the input.
func (s *Service) Update(ctx context.Context, eventID string, in EventInput, callerID string, partial bool) (*models.EventView, error) {
	for attempt := 1; attempt <= s.opts.UpdateRetries; attempt++ {
		ev, err := s.DB.GetEventByID(ctx, eventID)
		if err != nil {
			return nil, err
		}
		if ev.CreatorID != callerID {
			return nil, ErrPermission
		}

		now := s.Clock.Now()
		if err := AssertEditable(*ev, now); err != nil {
			return nil, err
		}

		next, err := ApplyUpdate(*ev, in, now, partial)
		if err != nil {
			return nil, err
		}

		err = s.DB.SaveEvent(ctx, next, ev.Version)
		if errors.Is(err, ErrConflict) {
			s.Logger.Warn("EVENT", fmt.Sprintf("update of %s lost a version race (attempt %d/%d)", eventID, attempt, s.opts.UpdateRetries))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update event %s: %w", eventID, err)
		}

		next.Version = ev.Version + 1
		s.Logger.LogEvent("UPDATE", eventID, fmt.Sprintf("updated by %s (partial=%t)", callerID, partial))
		s.publish(s.opts.Topics.Updated, models.EventUpdated, next, "")
		return s.view(ctx, next, now)
	}
	return nil, ErrConflict
}

// ---------------- ATTENDANCE ----------------

// Attend adds userID to the attendees. Attending twice is a no-op.
func (s *Service) Attend(ctx context.Context, eventID, userID string) (*models.Event, error) {
	ev, err := s.DB.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	now := s.Clock.Now()
	if err := AssertEditable(*ev, now); err != nil {
		return nil, err
	}

	attending, err := s.DB.IsAttending(ctx, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check attendance: %w", err)
	}
	if attending {
		return ev, nil
	}

	added, err := s.DB.AddAttendee(ctx, eventID, userID, now)
	if err != nil {
		if errors.Is(err, ErrCapacityExhausted) {
			s.Logger.LogEvent("ATTEND", eventID, fmt.Sprintf("rejected %s: capacity %d exhausted", userID, ev.Capacity))
		}
		return nil, err
	}

	ev, err = s.DB.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if added {
		s.Logger.LogEvent("ATTEND", eventID, fmt.Sprintf("%s joined (%d/%d)", userID, ev.AttendeeCount, ev.Capacity))
		s.publish(s.opts.Topics.Joined, models.AttendanceJoined, *ev, userID)
	}
	return ev, nil
}

// Cancel removes userID from the attendees. Cancelling while not attending
// is a no-op.
func (s *Service) Cancel(ctx context.Context, eventID, userID string) (*models.Event, error) {
	ev, err := s.DB.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := AssertEditable(*ev, s.Clock.Now()); err != nil {
		return nil, err
	}

	attending, err := s.DB.IsAttending(ctx, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check attendance: %w", err)
	}
	if !attending {
		return ev, nil
	}

	removed, err := s.DB.RemoveAttendee(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	ev, err = s.DB.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if removed {
		s.Logger.LogEvent("CANCEL", eventID, fmt.Sprintf("%s left (%d/%d)", userID, ev.AttendeeCount, ev.Capacity))
		s.publish(s.opts.Topics.Left, models.AttendanceLeft, *ev, userID)
	}
	return ev, nil
}

// ---------------- QUERIES ----------------

func (s *Service) Get(ctx context.Context, eventID string) (*models.EventView, error) {
	ev, err := s.DB.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, *ev, s.Clock.Now())
}

func (s *Service) List(ctx context.Context, f Filter, callerID string) (*models.EventPage, error) {
	now := s.Clock.Now()
	items, count, err := s.DB.ListEvents(ctx, f.Plan(now, callerID))
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	views, err := s.views(ctx, items, now)
	if err != nil {
		return nil, err
	}
	return &models.EventPage{Count: count, Results: views}, nil
}

func (s *Service) view(ctx context.Context, ev models.Event, now time.Time) (*models.EventView, error) {
	views, err := s.views(ctx, []models.Event{ev}, now)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *Service) views(ctx context.Context, evs []models.Event, now time.Time) ([]models.EventView, error) {
	result := make([]models.EventView, 0, len(evs))
	if len(evs) == 0 {
		return result, nil
	}

	creators, attendees, err := s.DB.Summaries(ctx, evs)
	if err != nil {
		return nil, fmt.Errorf("failed to load event members: %w", err)
	}

	for _, ev := range evs {
		members := attendees[ev.ID]
		if members == nil {
			members = []models.UserSummary{}
		}
		result = append(result, models.EventView{
			ID:          ev.ID,
			Title:       ev.Title,
			Description: ev.Description,
			Capacity:    ev.Capacity,
			StartTime:   ev.StartTime,
			EndTime:     ev.EndTime,
			Status:      string(Classify(ev, now)),
			Creator:     creators[ev.CreatorID],
			Attendees:   members,
			CreatedAt:   ev.CreatedAt,
		})
	}
	return result, nil
}

// publish runs after the write has committed; failures are logged only.
func (s *Service) publish(topic string, kind models.EventChangeType, ev models.Event, userID string) {
	if s.Publisher == nil || topic == "" {
		return
	}
	value, err := json.Marshal(models.NewEventChange(kind, ev, userID, s.Clock.Now()))
	if err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to marshal %s message: %v", kind, err))
		return
	}
	if err := s.Publisher.Publish(topic, ev.ID, value); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish %s for event %s: %v", kind, ev.ID, err))
	}
}
