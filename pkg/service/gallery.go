package service

import (
	"context"

	"github.com/acervo-cultural/acervo/pkg/models"
	"github.com/acervo-cultural/acervo/pkg/store"
)

// GalleryService manages the gallery collection. Items are ordered by creation time.
type GalleryService struct {
	repo  repo[models.GalleryItem]
	clock Clock
}

// NewGalleryService returns a gallery service. A nil clock uses time.Now.
func NewGalleryService(s store.Store, clock Clock) *GalleryService {
	return &GalleryService{
		repo:  repo[models.GalleryItem]{store: s, collection: models.CollectionGallery},
		clock: clock,
	}
}

func (s *GalleryService) newest() store.Query {
	return s.repo.query().Order("createdAt", true)
}

// Create stores a new gallery item with zeroed counters and returns its id.
func (s *GalleryService) Create(ctx context.Context, item models.GalleryItem) (string, error) {
	now := s.clock.Now()
	item.ID = ""
	item.Views, item.Likes = 0, 0
	item.CreatedAt, item.UpdatedAt = now, now
	if item.Tags == nil {
		item.Tags = []string{}
	}
	return s.repo.add(ctx, item)
}

// GetAll returns the newest items. A non-positive limit returns all.
func (s *GalleryService) GetAll(ctx context.Context, limit int) ([]models.GalleryItem, error) {
	return s.repo.find(ctx, s.newest().Take(limit))
}

// GetByID returns the item, or nil when it does not exist.
func (s *GalleryService) GetByID(ctx context.Context, id string) (*models.GalleryItem, error) {
	return s.repo.get(ctx, id)
}

// GetByYear returns the items of a year, newest first.
func (s *GalleryService) GetByYear(ctx context.Context, year int) ([]models.GalleryItem, error) {
	return s.repo.find(ctx, s.newest().Eq("year", year))
}

// GetByType returns the images or the videos, newest first.
func (s *GalleryService) GetByType(ctx context.Context, t models.MediaType) ([]models.GalleryItem, error) {
	return s.repo.find(ctx, s.newest().Eq("type", t))
}

// GetByEvent returns the media attached to an event, newest first.
func (s *GalleryService) GetByEvent(ctx context.Context, eventID string) ([]models.GalleryItem, error) {
	return s.repo.find(ctx, s.newest().Eq("eventId", eventID))
}

// GetHighlighted returns highlighted items, newest first.
func (s *GalleryService) GetHighlighted(ctx context.Context, limit int) ([]models.GalleryItem, error) {
	return s.repo.find(ctx, s.newest().Eq("isHighlighted", true).Take(limit))
}

// Update merges the set fields of patch into the item and refreshes updatedAt.
func (s *GalleryService) Update(ctx context.Context, id string, patch models.GalleryPatch) error {
	fields, err := patchFields(patch, s.clock.Now())
	if err != nil {
		return err
	}
	return s.repo.update(ctx, id, fields)
}

// Delete removes the item document. The uploaded asset is not touched.
func (s *GalleryService) Delete(ctx context.Context, id string) error {
	return s.repo.delete(ctx, id)
}

func (s *GalleryService) IncrementViews(ctx context.Context, id string) error {
	return s.repo.increment(ctx, id, "views", 1, s.clock.Now())
}

func (s *GalleryService) IncrementLikes(ctx context.Context, id string) error {
	return s.repo.increment(ctx, id, "likes", 1, s.clock.Now())
}

func (s *GalleryService) DecrementLikes(ctx context.Context, id string) error {
	return s.repo.increment(ctx, id, "likes", -1, s.clock.Now())
}

// Subscribe delivers the newest limit items, and again after every change to them.
func (s *GalleryService) Subscribe(ctx context.Context, limit int, fn func([]models.GalleryItem, error)) (store.Unsubscribe, error) {
	return s.repo.subscribe(ctx, s.newest().Take(limit), fn)
}

// SubscribeByEvent is the live version of GetByEvent.
func (s *GalleryService) SubscribeByEvent(ctx context.Context, eventID string, fn func([]models.GalleryItem, error)) (store.Unsubscribe, error) {
	return s.repo.subscribe(ctx, s.newest().Eq("eventId", eventID), fn)
}
