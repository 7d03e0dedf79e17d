package service

import (
	"context"
	"fmt"

	"github.com/acervo-cultural/acervo/pkg/models"
	"github.com/acervo-cultural/acervo/pkg/session"
	"github.com/acervo-cultural/acervo/pkg/store"
)

// ViewsService counts item views once per browsing session.
// The session id is read from the context with session.FromContext.
type ViewsService struct {
	store store.Store
	clock Clock
}

// NewViewsService returns a views service. A nil clock uses time.Now.
func NewViewsService(s store.Store, clock Clock) *ViewsService {
	return &ViewsService{store: s, clock: clock}
}

func (s *ViewsService) match(itemID string, itemType models.ItemType, sessionID string) store.Query {
	return store.NewQuery(models.CollectionViews).
		Eq("itemId", itemID).
		Eq("itemType", itemType).
		Eq("sessionId", sessionID)
}

// AddView records a view of the item by the context's session. The first view of a
// session inserts a view row and increments the item's view counter in one batch;
// later views of the same session change nothing. It reports whether the view counted.
//
// The existing-view check and the insert are separate operations, so two concurrent
// calls from the same session can both count.
func (s *ViewsService) AddView(ctx context.Context, itemID string, itemType models.ItemType, userID string) (bool, error) {
	if !itemType.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownItemType, itemType)
	}
	sessionID, ok := session.FromContext(ctx)
	if !ok {
		return false, ErrNoSession
	}

	existing, err := s.store.Find(ctx, s.match(itemID, itemType, sessionID).Take(1))
	if err != nil {
		return false, fmt.Errorf("failed to check existing view: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	now := s.clock.Now()
	view, err := store.Encode(models.View{
		ItemID:    itemID,
		ItemType:  itemType,
		SessionID: sessionID,
		UserID:    userID,
		CreatedAt: now,
	})
	if err != nil {
		return false, err
	}

	b := store.NewBatch()
	b.Create(models.CollectionViews, view)
	bump(b, itemType.Collection(), itemID, "views", 1, now)
	if err := s.store.Commit(ctx, b); err != nil {
		return false, fmt.Errorf("failed to add view: %w", err)
	}
	return true, nil
}

// HasViewed reports whether the context's session already viewed the item.
func (s *ViewsService) HasViewed(ctx context.Context, itemID string, itemType models.ItemType) (bool, error) {
	sessionID, ok := session.FromContext(ctx)
	if !ok {
		return false, ErrNoSession
	}
	rows, err := s.store.Find(ctx, s.match(itemID, itemType, sessionID).Take(1))
	if err != nil {
		return false, fmt.Errorf("failed to check view: %w", err)
	}
	return len(rows) > 0, nil
}
