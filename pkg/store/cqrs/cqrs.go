package cqrs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/acervo-cultural/acervo/pkg/store"
)

// MigrationMode defines the mode of database migration
type MigrationMode string

const (
	// ModeSingle operates with only the primary store.
	ModeSingle MigrationMode = "single"

	// ModeReadOnly rejects all writes while reads continue from the primary store.
	ModeReadOnly MigrationMode = "read_only"

	// ModeSwitching reads from the secondary store while writes still go to primary.
	ModeSwitching MigrationMode = "switching"

	// ModeReversed uses the secondary store for both reads and writes.
	ModeReversed MigrationMode = "reversed"
)

// ParseMode validates a mode name.
func ParseMode(s string) (MigrationMode, error) {
	switch m := MigrationMode(s); m {
	case ModeSingle, ModeReadOnly, ModeSwitching, ModeReversed:
		return m, nil
	default:
		return "", fmt.Errorf("unknown migration mode %q", s)
	}
}

// CQRSStore implements store.Store on top of a primary and a secondary store without
// dual-writing. Which store serves reads and which takes writes depends on the mode.
type CQRSStore struct {
	primary     store.Store
	secondary   store.Store
	mode        MigrationMode
	collections []string
	log         zerolog.Logger
	mu          sync.RWMutex
}

var _ store.Store = (*CQRSStore)(nil)

// NewCQRSStore creates a CQRS store. collections lists what the sync methods copy.
func NewCQRSStore(primary, secondary store.Store, mode MigrationMode, collections []string, log zerolog.Logger) *CQRSStore {
	return &CQRSStore{
		primary:     primary,
		secondary:   secondary,
		mode:        mode,
		collections: collections,
		log:         log.With().Str("store", "cqrs").Logger(),
	}
}

// SetMode changes the migration mode. Leaving read_only is only allowed towards
// switching or single, and modes that need the secondary store require one.
func (c *CQRSStore) SetMode(mode MigrationMode) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == ModeReadOnly && mode != ModeSwitching && mode != ModeSingle && mode != ModeReadOnly {
		return fmt.Errorf("can only transition from read_only to switching or single mode")
	}
	if c.secondary == nil && (mode == ModeSwitching || mode == ModeReversed) {
		return fmt.Errorf("mode %s requires a secondary store", mode)
	}

	c.log.Info().Str("from", string(c.mode)).Str("to", string(mode)).Msg("migration mode changed")
	c.mode = mode
	return nil
}

// GetMode returns the current migration mode
func (c *CQRSStore) GetMode() MigrationMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// SwapStores swaps primary and secondary stores.
// This is used after a successful migration to make the secondary the new primary.
func (c *CQRSStore) SwapStores() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.secondary == nil {
		return errors.New("no secondary store to swap with")
	}
	c.primary, c.secondary = c.secondary, c.primary
	return nil
}

func (c *CQRSStore) getReadStore() store.Store {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch c.mode {
	case ModeSwitching, ModeReversed:
		return c.secondary
	default:
		return c.primary
	}
}

func (c *CQRSStore) getWriteStore() (store.Store, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.mode == ModeReadOnly {
		return nil, store.ErrReadOnly
	}
	if c.mode == ModeReversed {
		return c.secondary, nil
	}
	return c.primary, nil
}

// Migrate prepares the schema of both stores, primary first.
func (c *CQRSStore) Migrate(ctx context.Context) error {
	if err := c.primary.Migrate(ctx); err != nil {
		return fmt.Errorf("primary migration failed: %w", err)
	}
	if c.secondary != nil {
		if err := c.secondary.Migrate(ctx); err != nil {
			return fmt.Errorf("secondary migration failed: %w", err)
		}
	}
	return nil
}

// Close closes both stores
func (c *CQRSStore) Close() error {
	var primaryErr, secondaryErr error

	primaryErr = c.primary.Close()
	if c.secondary != nil {
		secondaryErr = c.secondary.Close()
	}

	if primaryErr != nil {
		return primaryErr
	}
	return secondaryErr
}

func (c *CQRSStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	s, err := c.getWriteStore()
	if err != nil {
		return "", err
	}
	return s.Add(ctx, collection, data)
}

func (c *CQRSStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	s, err := c.getWriteStore()
	if err != nil {
		return err
	}
	return s.Set(ctx, collection, id, data)
}

func (c *CQRSStore) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	return c.getReadStore().Get(ctx, collection, id)
}

func (c *CQRSStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	s, err := c.getWriteStore()
	if err != nil {
		return err
	}
	return s.Update(ctx, collection, id, fields)
}

func (c *CQRSStore) Delete(ctx context.Context, collection, id string) error {
	s, err := c.getWriteStore()
	if err != nil {
		return err
	}
	return s.Delete(ctx, collection, id)
}

func (c *CQRSStore) Find(ctx context.Context, q store.Query) ([]store.Document, error) {
	return c.getReadStore().Find(ctx, q)
}

func (c *CQRSStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	s, err := c.getWriteStore()
	if err != nil {
		return err
	}
	return s.Increment(ctx, collection, id, field, delta)
}

func (c *CQRSStore) Commit(ctx context.Context, b *store.Batch) error {
	s, err := c.getWriteStore()
	if err != nil {
		return err
	}
	return s.Commit(ctx, b)
}

func (c *CQRSStore) Subscribe(ctx context.Context, q store.Query, fn store.Listener) (store.Unsubscribe, error) {
	return c.getReadStore().Subscribe(ctx, q, fn)
}
