package service

import (
	"context"
	"fmt"

	"github.com/acervo-cultural/acervo/pkg/models"
	"github.com/acervo-cultural/acervo/pkg/store"
)

// StatisticsService maintains the statistics singleton shown on the admin dashboard.
// The snapshot is recomputed on demand and may lag behind the collections.
type StatisticsService struct {
	store store.Store
	clock Clock
}

// NewStatisticsService returns a statistics service. A nil clock uses time.Now.
func NewStatisticsService(s store.Store, clock Clock) *StatisticsService {
	return &StatisticsService{store: s, clock: clock}
}

// Get returns the last computed snapshot, or nil when none was computed yet.
func (s *StatisticsService) Get(ctx context.Context) (*models.Statistics, error) {
	return repo[models.Statistics]{store: s.store, collection: models.CollectionStatistics}.
		get(ctx, models.StatisticsID)
}

// counters is the subset of fields every counted item shares.
type counters struct {
	Type  models.EventType `json:"type"`
	Views int64            `json:"views"`
	Likes int64            `json:"likes"`
}

// Recompute scans the collections, stores a fresh snapshot and returns it.
func (s *StatisticsService) Recompute(ctx context.Context) (*models.Statistics, error) {
	stats := models.Statistics{
		ID:           models.StatisticsID,
		EventsByType: make(map[models.EventType]int),
	}

	for _, coll := range []string{models.CollectionEvents, models.CollectionGallery, models.CollectionTimeline} {
		items, err := repo[counters]{store: s.store, collection: coll}.find(ctx, store.NewQuery(coll))
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			stats.TotalViews += item.Views
			stats.TotalLikes += item.Likes
		}
		switch coll {
		case models.CollectionEvents:
			stats.TotalEvents = len(items)
			for _, item := range items {
				stats.EventsByType[item.Type]++
			}
		case models.CollectionGallery:
			stats.TotalGalleryItems = len(items)
		case models.CollectionTimeline:
			stats.TotalTimelineEvents = len(items)
		}
	}

	users, err := s.store.Find(ctx, store.NewQuery(models.CollectionUsers))
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	stats.TotalUsers = len(users)
	stats.UpdatedAt = s.clock.Now()

	data, err := store.Encode(stats)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, models.CollectionStatistics, models.StatisticsID, data); err != nil {
		return nil, fmt.Errorf("failed to store statistics: %w", err)
	}
	return &stats, nil
}
