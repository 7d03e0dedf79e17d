package live

import (
	"context"

	"github.com/acervo-cultural/acervo/pkg/models"
	"github.com/acervo-cultural/acervo/pkg/service"
	"github.com/acervo-cultural/acervo/pkg/store"
)

// EventsFeed is the live list of events with its mutations.
type EventsFeed struct {
	*Feed[models.Event]
	svc *service.EventsService
}

// Events opens a feed of the newest limit events.
func Events(ctx context.Context, svc *service.EventsService, limit int) *EventsFeed {
	return &EventsFeed{
		Feed: NewFeed(ctx, func(ctx context.Context, fn func([]models.Event, error)) (store.Unsubscribe, error) {
			return svc.Subscribe(ctx, limit, fn)
		}),
		svc: svc,
	}
}

func (h *EventsFeed) Create(ctx context.Context, e models.Event) (string, error) {
	return h.svc.Create(ctx, e)
}

func (h *EventsFeed) Update(ctx context.Context, id string, patch models.EventPatch) error {
	return h.svc.Update(ctx, id, patch)
}

func (h *EventsFeed) Delete(ctx context.Context, id string) error {
	return h.svc.Delete(ctx, id)
}

// FeaturedEvents fetches the featured events once.
func FeaturedEvents(ctx context.Context, svc *service.EventsService, limit int) *Query[models.Event] {
	return NewQuery(ctx, func(ctx context.Context) ([]models.Event, error) {
		return svc.GetFeatured(ctx, limit)
	})
}

// GalleryFeed is the live gallery with its mutations.
type GalleryFeed struct {
	*Feed[models.GalleryItem]
	svc *service.GalleryService
}

// Gallery opens a feed of the newest limit gallery items.
func Gallery(ctx context.Context, svc *service.GalleryService, limit int) *GalleryFeed {
	return &GalleryFeed{
		Feed: NewFeed(ctx, func(ctx context.Context, fn func([]models.GalleryItem, error)) (store.Unsubscribe, error) {
			return svc.Subscribe(ctx, limit, fn)
		}),
		svc: svc,
	}
}

// EventGallery opens a feed of the media attached to one event.
func EventGallery(ctx context.Context, svc *service.GalleryService, eventID string) *GalleryFeed {
	return &GalleryFeed{
		Feed: NewFeed(ctx, func(ctx context.Context, fn func([]models.GalleryItem, error)) (store.Unsubscribe, error) {
			return svc.SubscribeByEvent(ctx, eventID, fn)
		}),
		svc: svc,
	}
}

func (h *GalleryFeed) Create(ctx context.Context, item models.GalleryItem) (string, error) {
	return h.svc.Create(ctx, item)
}

func (h *GalleryFeed) Update(ctx context.Context, id string, patch models.GalleryPatch) error {
	return h.svc.Update(ctx, id, patch)
}

func (h *GalleryFeed) Delete(ctx context.Context, id string) error {
	return h.svc.Delete(ctx, id)
}

// HighlightedGallery fetches the highlighted gallery items once.
func HighlightedGallery(ctx context.Context, svc *service.GalleryService, limit int) *Query[models.GalleryItem] {
	return NewQuery(ctx, func(ctx context.Context) ([]models.GalleryItem, error) {
		return svc.GetHighlighted(ctx, limit)
	})
}

// TimelineFeed is the live timeline with its mutations.
type TimelineFeed struct {
	*Feed[models.TimelineEvent]
	svc *service.TimelineService
}

// Timeline opens a feed of the newest limit timeline entries.
func Timeline(ctx context.Context, svc *service.TimelineService, limit int) *TimelineFeed {
	return &TimelineFeed{
		Feed: NewFeed(ctx, func(ctx context.Context, fn func([]models.TimelineEvent, error)) (store.Unsubscribe, error) {
			return svc.Subscribe(ctx, limit, fn)
		}),
		svc: svc,
	}
}

// TimelineYear opens a feed of one year of the timeline.
func TimelineYear(ctx context.Context, svc *service.TimelineService, year int) *TimelineFeed {
	return &TimelineFeed{
		Feed: NewFeed(ctx, func(ctx context.Context, fn func([]models.TimelineEvent, error)) (store.Unsubscribe, error) {
			return svc.SubscribeByYear(ctx, year, fn)
		}),
		svc: svc,
	}
}

func (h *TimelineFeed) Create(ctx context.Context, e models.TimelineEvent) (string, error) {
	return h.svc.Create(ctx, e)
}

func (h *TimelineFeed) Update(ctx context.Context, id string, patch models.TimelinePatch) error {
	return h.svc.Update(ctx, id, patch)
}

func (h *TimelineFeed) Delete(ctx context.Context, id string) error {
	return h.svc.Delete(ctx, id)
}

// TimelineYears fetches the distinct timeline years once.
func TimelineYears(ctx context.Context, svc *service.TimelineService) *Query[int] {
	return NewQuery(ctx, svc.GetYears)
}

// Statistics fetches the statistics snapshot, computing it when none is stored.
// Refetch reloads the stored snapshot; use Recompute to refresh it first.
func Statistics(ctx context.Context, svc *service.StatisticsService) *StatisticsQuery {
	return &StatisticsQuery{
		Query: NewQuery(ctx, func(ctx context.Context) ([]models.Statistics, error) {
			stats, err := svc.Get(ctx)
			if err != nil {
				return nil, err
			}
			if stats == nil {
				if stats, err = svc.Recompute(ctx); err != nil {
					return nil, err
				}
			}
			return []models.Statistics{*stats}, nil
		}),
		svc: svc,
	}
}

// StatisticsQuery is the statistics view.
type StatisticsQuery struct {
	*Query[models.Statistics]
	svc *service.StatisticsService
}

// Recompute refreshes the stored snapshot and then refetches it.
func (q *StatisticsQuery) Recompute(ctx context.Context) error {
	if _, err := q.svc.Recompute(ctx); err != nil {
		return err
	}
	q.Refetch()
	return nil
}

// UserLikes fetches a user's likes once, newest first.
func UserLikes(ctx context.Context, svc *service.LikesService, userID string) *Query[models.Like] {
	return NewQuery(ctx, func(ctx context.Context) ([]models.Like, error) {
		return svc.GetUserLikes(ctx, userID)
	})
}

// LikeState is whether one user likes one item, with a toggle.
type LikeState struct {
	*Query[bool]
	svc      *service.LikesService
	userID   string
	itemID   string
	itemType models.ItemType
}

// Like fetches whether userID likes the item.
func Like(ctx context.Context, svc *service.LikesService, userID, itemID string, itemType models.ItemType) *LikeState {
	return &LikeState{
		Query: NewQuery(ctx, func(ctx context.Context) ([]bool, error) {
			liked, err := svc.IsLiked(ctx, userID, itemID, itemType)
			if err != nil {
				return nil, err
			}
			return []bool{liked}, nil
		}),
		svc:      svc,
		userID:   userID,
		itemID:   itemID,
		itemType: itemType,
	}
}

// Liked reports the last fetched value.
func (h *LikeState) Liked() bool {
	liked, _ := h.State().First()
	return liked
}

// Toggle flips the like and refetches the state.
func (h *LikeState) Toggle(ctx context.Context) (bool, error) {
	liked, err := h.svc.ToggleLike(ctx, h.userID, h.itemID, h.itemType)
	if err != nil {
		return false, err
	}
	h.Refetch()
	return liked, nil
}

// ViewRecord records one view of an item when opened. Its state holds whether the
// view was counted.
type ViewRecord struct {
	q *Query[bool]
}

// View records a view of the item by the session carried in ctx.
// The write is not cancelled by Close; closing only drops its result.
func View(ctx context.Context, svc *service.ViewsService, itemID string, itemType models.ItemType, userID string) *ViewRecord {
	write := context.WithoutCancel(ctx)
	return &ViewRecord{q: NewQuery(ctx, func(context.Context) ([]bool, error) {
		counted, err := svc.AddView(write, itemID, itemType, userID)
		if err != nil {
			return nil, err
		}
		return []bool{counted}, nil
	})}
}

func (v *ViewRecord) State() State[bool] {
	return v.q.State()
}

func (v *ViewRecord) Wait(ctx context.Context) (State[bool], error) {
	return v.q.Wait(ctx)
}

func (v *ViewRecord) Close() {
	v.q.Close()
}
