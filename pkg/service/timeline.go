package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/acervo-cultural/acervo/pkg/models"
	"github.com/acervo-cultural/acervo/pkg/store"
)

// TimelineService manages the timeline collection.
//
// The year of an entry is derived from its date on creation and whenever the
// date changes; callers cannot set it independently.
type TimelineService struct {
	repo  repo[models.TimelineEvent]
	clock Clock
}

// NewTimelineService returns a timeline service. A nil clock uses time.Now.
func NewTimelineService(s store.Store, clock Clock) *TimelineService {
	return &TimelineService{
		repo:  repo[models.TimelineEvent]{store: s, collection: models.CollectionTimeline},
		clock: clock,
	}
}

func (s *TimelineService) newest() store.Query {
	return s.repo.query().Order("date", true)
}

// Create stores a new timeline entry and returns its id. The date must parse with
// models.ParseDate and is stored in the form models.NormalizeDate returns.
func (s *TimelineService) Create(ctx context.Context, e models.TimelineEvent) (string, error) {
	date, err := models.NormalizeDate(e.Date)
	if err != nil {
		return "", fmt.Errorf("failed to create timeline entry: %w", err)
	}
	year, err := models.YearOf(date)
	if err != nil {
		return "", fmt.Errorf("failed to create timeline entry: %w", err)
	}

	now := s.clock.Now()
	e.ID = ""
	e.Date = date
	e.Year = year
	e.Views, e.Likes = 0, 0
	e.CreatedAt, e.UpdatedAt = now, now
	if e.Images == nil {
		e.Images = []string{}
	}
	return s.repo.add(ctx, e)
}

// GetAll returns entries by date, newest first. A non-positive limit returns all.
func (s *TimelineService) GetAll(ctx context.Context, limit int) ([]models.TimelineEvent, error) {
	return s.repo.find(ctx, s.newest().Take(limit))
}

// GetByID returns the entry, or nil when it does not exist.
func (s *TimelineService) GetByID(ctx context.Context, id string) (*models.TimelineEvent, error) {
	return s.repo.get(ctx, id)
}

// GetByYear returns the entries of a year, newest first.
func (s *TimelineService) GetByYear(ctx context.Context, year int) ([]models.TimelineEvent, error) {
	return s.repo.find(ctx, s.newest().Eq("year", year))
}

// GetByType returns the entries of an event type, newest first.
func (s *TimelineService) GetByType(ctx context.Context, t models.EventType) ([]models.TimelineEvent, error) {
	return s.repo.find(ctx, s.newest().Eq("type", t))
}

// GetByEvent returns the entries that originate from an event.
func (s *TimelineService) GetByEvent(ctx context.Context, eventID string) ([]models.TimelineEvent, error) {
	return s.repo.find(ctx, s.newest().Eq("eventId", eventID))
}

// GetHighlighted returns highlighted entries, newest first.
func (s *TimelineService) GetHighlighted(ctx context.Context, limit int) ([]models.TimelineEvent, error) {
	return s.repo.find(ctx, s.newest().Eq("isHighlighted", true).Take(limit))
}

// GetYears returns the distinct years that have entries, most recent first.
func (s *TimelineService) GetYears(ctx context.Context) ([]int, error) {
	all, err := s.repo.find(ctx, s.repo.query())
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool)
	years := make([]int, 0)
	for _, e := range all {
		if !seen[e.Year] {
			seen[e.Year] = true
			years = append(years, e.Year)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years, nil
}

// Update merges the set fields of patch and refreshes updatedAt. A new date also
// moves the entry to that date's year.
func (s *TimelineService) Update(ctx context.Context, id string, patch models.TimelinePatch) error {
	fields, err := patchFields(patch, s.clock.Now())
	if err != nil {
		return err
	}
	if patch.Date != nil {
		date, err := models.NormalizeDate(*patch.Date)
		if err != nil {
			return fmt.Errorf("failed to update timeline entry %s: %w", id, err)
		}
		year, err := models.YearOf(date)
		if err != nil {
			return fmt.Errorf("failed to update timeline entry %s: %w", id, err)
		}
		fields["date"] = date
		fields["year"] = year
	}
	return s.repo.update(ctx, id, fields)
}

// Delete removes the entry.
func (s *TimelineService) Delete(ctx context.Context, id string) error {
	return s.repo.delete(ctx, id)
}

func (s *TimelineService) IncrementViews(ctx context.Context, id string) error {
	return s.repo.increment(ctx, id, "views", 1, s.clock.Now())
}

func (s *TimelineService) IncrementLikes(ctx context.Context, id string) error {
	return s.repo.increment(ctx, id, "likes", 1, s.clock.Now())
}

func (s *TimelineService) DecrementLikes(ctx context.Context, id string) error {
	return s.repo.increment(ctx, id, "likes", -1, s.clock.Now())
}

// Subscribe delivers the newest limit entries, and again after every change to them.
func (s *TimelineService) Subscribe(ctx context.Context, limit int, fn func([]models.TimelineEvent, error)) (store.Unsubscribe, error) {
	return s.repo.subscribe(ctx, s.newest().Take(limit), fn)
}

// SubscribeByYear is the live version of GetByYear.
func (s *TimelineService) SubscribeByYear(ctx context.Context, year int, fn func([]models.TimelineEvent, error)) (store.Unsubscribe, error) {
	return s.repo.subscribe(ctx, s.newest().Eq("year", year), fn)
}
