package service

import (
	"context"
	"fmt"

	"github.com/acervo-cultural/acervo/pkg/models"
	"github.com/acervo-cultural/acervo/pkg/store"
)

// Identity is what the identity provider tells us about a signed-in user.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
	PhotoURL    string
}

// UsersService manages the mirrored user profiles.
type UsersService struct {
	repo  repo[models.User]
	clock Clock
}

// NewUsersService returns a users service. A nil clock uses time.Now.
func NewUsersService(s store.Store, clock Clock) *UsersService {
	return &UsersService{
		repo:  repo[models.User]{store: s, collection: models.CollectionUsers},
		clock: clock,
	}
}

// EnsureProfile returns the profile of id, creating it with role viewer on first sign-in.
// Existing profiles are returned as stored; their role is never changed here.
func (s *UsersService) EnsureProfile(ctx context.Context, id Identity) (*models.User, error) {
	existing, err := s.repo.get(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock.Now()
	u := models.User{
		Email:       id.Email,
		DisplayName: id.DisplayName,
		PhotoURL:    id.PhotoURL,
		Role:        models.RoleViewer,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	data, err := store.Encode(u)
	if err != nil {
		return nil, err
	}
	if err := s.repo.store.Set(ctx, models.CollectionUsers, id.UserID, data); err != nil {
		return nil, fmt.Errorf("failed to create profile %s: %w", id.UserID, err)
	}
	u.ID = id.UserID
	return &u, nil
}

// GetByID returns the profile, or nil when it does not exist.
func (s *UsersService) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.get(ctx, id)
}

// GetAll returns every profile, newest first.
func (s *UsersService) GetAll(ctx context.Context) ([]models.User, error) {
	return s.repo.find(ctx, s.repo.query().Order("createdAt", true))
}

// Update merges the set fields of patch and refreshes updatedAt.
func (s *UsersService) Update(ctx context.Context, id string, patch models.UserPatch) error {
	if patch.Role != nil && !patch.Role.Valid() {
		return fmt.Errorf("invalid role %q", *patch.Role)
	}
	fields, err := patchFields(patch, s.clock.Now())
	if err != nil {
		return err
	}
	return s.repo.update(ctx, id, fields)
}

// SetRole changes the role of a user.
func (s *UsersService) SetRole(ctx context.Context, id string, role models.Role) error {
	return s.Update(ctx, id, models.UserPatch{Role: &role})
}

// Delete removes the profile. The user's likes are left in place.
func (s *UsersService) Delete(ctx context.Context, id string) error {
	return s.repo.delete(ctx, id)
}
