package service

import (
	"context"

	"github.com/acervo-cultural/acervo/pkg/models"
	"github.com/acervo-cultural/acervo/pkg/store"
)

// EventsService manages the events collection.
type EventsService struct {
	repo  repo[models.Event]
	clock Clock
}

// NewEventsService returns an events service. A nil clock uses time.Now.
func NewEventsService(s store.Store, clock Clock) *EventsService {
	return &EventsService{
		repo:  repo[models.Event]{store: s, collection: models.CollectionEvents},
		clock: clock,
	}
}

// Create stores a new event with zeroed counters and returns its id.
func (s *EventsService) Create(ctx context.Context, e models.Event) (string, error) {
	now := s.clock.Now()
	e.ID = ""
	e.Date = stamp(e.Date)
	e.Views, e.Likes = 0, 0
	e.CreatedAt, e.UpdatedAt = now, now
	if e.Images == nil {
		e.Images = []string{}
	}
	return s.repo.add(ctx, e)
}

// GetAll returns events by date, newest first. A non-positive limit returns all.
func (s *EventsService) GetAll(ctx context.Context, limit int) ([]models.Event, error) {
	return s.repo.find(ctx, s.repo.query().Order("date", true).Take(limit))
}

// GetByID returns the event, or nil when it does not exist.
func (s *EventsService) GetByID(ctx context.Context, id string) (*models.Event, error) {
	return s.repo.get(ctx, id)
}

// GetByYear returns the events dated in year, newest first.
// Events carry no year field, so the year is matched on the decoded dates.
func (s *EventsService) GetByYear(ctx context.Context, year int) ([]models.Event, error) {
	all, err := s.GetAll(ctx, 0)
	if err != nil {
		return nil, err
	}
	out := make([]models.Event, 0)
	for _, e := range all {
		if e.Date.Year() == year {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetByCategory returns the events of a category, newest first.
func (s *EventsService) GetByCategory(ctx context.Context, category string) ([]models.Event, error) {
	return s.repo.find(ctx, s.repo.query().Eq("category", category).Order("date", true))
}

// GetByType returns the events of an event type, newest first.
func (s *EventsService) GetByType(ctx context.Context, t models.EventType) ([]models.Event, error) {
	return s.repo.find(ctx, s.repo.query().Eq("type", t).Order("date", true))
}

// GetFeatured returns featured events, newest first.
func (s *EventsService) GetFeatured(ctx context.Context, limit int) ([]models.Event, error) {
	return s.repo.find(ctx, s.repo.query().Eq("isFeatured", true).Order("date", true).Take(limit))
}

// GetHighlighted returns highlighted events, newest first.
func (s *EventsService) GetHighlighted(ctx context.Context, limit int) ([]models.Event, error) {
	return s.repo.find(ctx, s.repo.query().Eq("isHighlighted", true).Order("date", true).Take(limit))
}

// Update merges the set fields of patch into the event and refreshes updatedAt.
func (s *EventsService) Update(ctx context.Context, id string, patch models.EventPatch) error {
	if patch.Date != nil {
		d := stamp(*patch.Date)
		patch.Date = &d
	}
	fields, err := patchFields(patch, s.clock.Now())
	if err != nil {
		return err
	}
	return s.repo.update(ctx, id, fields)
}

// Delete removes the event. Likes and views pointing at it are left in place.
func (s *EventsService) Delete(ctx context.Context, id string) error {
	return s.repo.delete(ctx, id)
}

func (s *EventsService) IncrementViews(ctx context.Context, id string) error {
	return s.repo.increment(ctx, id, "views", 1, s.clock.Now())
}

func (s *EventsService) IncrementLikes(ctx context.Context, id string) error {
	return s.repo.increment(ctx, id, "likes", 1, s.clock.Now())
}

func (s *EventsService) DecrementLikes(ctx context.Context, id string) error {
	return s.repo.increment(ctx, id, "likes", -1, s.clock.Now())
}

// Subscribe delivers the newest limit events, and again after every change to them.
func (s *EventsService) Subscribe(ctx context.Context, limit int, fn func([]models.Event, error)) (store.Unsubscribe, error) {
	return s.repo.subscribe(ctx, s.repo.query().Order("date", true).Take(limit), fn)
}

// SubscribeFeatured is the live version of GetFeatured.
func (s *EventsService) SubscribeFeatured(ctx context.Context, limit int, fn func([]models.Event, error)) (store.Unsubscribe, error) {
	return s.repo.subscribe(ctx, s.repo.query().Eq("isFeatured", true).Order("date", true).Take(limit), fn)
}
