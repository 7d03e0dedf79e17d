package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/acervo-cultural/acervo/pkg/models"
	"github.com/acervo-cultural/acervo/pkg/store"
)

// LikesService records likes and keeps the like counters of items.
//
// Uniqueness of (userId, itemId, itemType) is checked with a query before the insert.
// The store has no uniqueness constraint, so two concurrent AddLike calls can still
// both insert a row.
type LikesService struct {
	store store.Store
	repo  repo[models.Like]
	clock Clock
}

// NewLikesService returns a likes service. A nil clock uses time.Now.
func NewLikesService(s store.Store, clock Clock) *LikesService {
	return &LikesService{
		store: s,
		repo:  repo[models.Like]{store: s, collection: models.CollectionLikes},
		clock: clock,
	}
}

func (s *LikesService) match(userID, itemID string, itemType models.ItemType) store.Query {
	return s.repo.query().
		Eq("userId", userID).
		Eq("itemId", itemID).
		Eq("itemType", itemType)
}

// AddLike inserts a like row and increments the item's like counter in one batch.
// The item's updatedAt is refreshed with the counter.
// It returns ErrAlreadyLiked when the user already likes the item.
func (s *LikesService) AddLike(ctx context.Context, userID, itemID string, itemType models.ItemType) error {
	if !itemType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownItemType, itemType)
	}

	existing, err := s.store.Find(ctx, s.match(userID, itemID, itemType).Take(1))
	if err != nil {
		return fmt.Errorf("failed to check existing like: %w", err)
	}
	if len(existing) > 0 {
		return ErrAlreadyLiked
	}

	now := s.clock.Now()
	like, err := store.Encode(models.Like{
		UserID:    userID,
		ItemID:    itemID,
		ItemType:  itemType,
		CreatedAt: now,
	})
	if err != nil {
		return err
	}

	b := store.NewBatch()
	b.Create(models.CollectionLikes, like)
	bump(b, itemType.Collection(), itemID, "likes", 1, now)
	if err := s.store.Commit(ctx, b); err != nil {
		return fmt.Errorf("failed to add like: %w", err)
	}
	return nil
}

// RemoveLike deletes every like row of (userID, itemID, itemType) and decrements the
// item's like counter by one in one batch. The decrement is one even when duplicate
// rows were deleted. Removing a like that does not exist does nothing.
func (s *LikesService) RemoveLike(ctx context.Context, userID, itemID string, itemType models.ItemType) error {
	if !itemType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownItemType, itemType)
	}

	rows, err := s.store.Find(ctx, s.match(userID, itemID, itemType))
	if err != nil {
		return fmt.Errorf("failed to find like: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	b := store.NewBatch()
	for _, row := range rows {
		b.Delete(models.CollectionLikes, row.ID)
	}
	bump(b, itemType.Collection(), itemID, "likes", -1, s.clock.Now())
	if err := s.store.Commit(ctx, b); err != nil {
		return fmt.Errorf("failed to remove like: %w", err)
	}
	return nil
}

// IsLiked reports whether the user likes the item.
func (s *LikesService) IsLiked(ctx context.Context, userID, itemID string, itemType models.ItemType) (bool, error) {
	rows, err := s.store.Find(ctx, s.match(userID, itemID, itemType).Take(1))
	if err != nil {
		return false, fmt.Errorf("failed to check like: %w", err)
	}
	return len(rows) > 0, nil
}

// ToggleLike likes the item if the user does not like it yet and unlikes it otherwise.
// It returns whether the item is liked afterwards.
func (s *LikesService) ToggleLike(ctx context.Context, userID, itemID string, itemType models.ItemType) (bool, error) {
	liked, err := s.IsLiked(ctx, userID, itemID, itemType)
	if err != nil {
		return false, err
	}
	if liked {
		return false, s.RemoveLike(ctx, userID, itemID, itemType)
	}
	if err := s.AddLike(ctx, userID, itemID, itemType); err != nil {
		return false, err
	}
	return true, nil
}

// GetUserLikes returns the user's likes, most recent first. Only userId is filtered
// in the store; the ordering happens here.
func (s *LikesService) GetUserLikes(ctx context.Context, userID string) ([]models.Like, error) {
	likes, err := s.repo.find(ctx, s.repo.query().Eq("userId", userID))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(likes, func(i, j int) bool {
		return likes[i].CreatedAt.After(likes[j].CreatedAt)
	})
	return likes, nil
}
