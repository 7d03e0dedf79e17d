package cqrs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acervo-cultural/acervo/pkg/store"
)

// stampFields are the document fields consulted, in order, for a modification time.
var stampFields = []string{"updatedAt", "lastUpdated", "createdAt"}

// SyncResult counts what a sync copied per collection.
type SyncResult struct {
	Copied  map[string]int
	Skipped map[string]int
	Failed  map[string]int
}

// Total returns the number of copied documents.
func (r SyncResult) Total() int {
	n := 0
	for _, c := range r.Copied {
		n += c
	}
	return n
}

// SyncMissedUpdates copies documents modified in [since, until) from the primary to the
// secondary store. A zero since copies everything up to until; a zero until has no upper bound.
func (c *CQRSStore) SyncMissedUpdates(ctx context.Context, since, until time.Time) (SyncResult, error) {
	c.mu.RLock()
	from, to := c.primary, c.secondary
	c.mu.RUnlock()
	return c.syncMissedUpdates(ctx, from, to, since, until)
}

// ReverseSyncMissedUpdates copies documents modified in [since, until) from the secondary
// back to the primary store, for rollback after running in reversed mode.
func (c *CQRSStore) ReverseSyncMissedUpdates(ctx context.Context, since, until time.Time) (SyncResult, error) {
	c.mu.RLock()
	from, to := c.secondary, c.primary
	c.mu.RUnlock()
	return c.syncMissedUpdates(ctx, from, to, since, until)
}

// syncMissedUpdates scans every collection of from and upserts the documents whose
// modification stamp falls in the window. Failing to read a collection aborts the sync;
// failing to write one document is logged and counted, and the sync continues.
func (c *CQRSStore) syncMissedUpdates(ctx context.Context, from, to store.Store, since, until time.Time) (SyncResult, error) {
	result := SyncResult{
		Copied:  make(map[string]int),
		Skipped: make(map[string]int),
		Failed:  make(map[string]int),
	}
	if from == nil || to == nil {
		return result, errors.New("sync requires both a primary and a secondary store")
	}

	for _, collection := range c.collections {
		docs, err := from.Find(ctx, store.NewQuery(collection))
		if err != nil {
			return result, fmt.Errorf("failed to list %s: %w", collection, err)
		}

		for _, doc := range docs {
			if !inWindow(doc, since, until) {
				result.Skipped[collection]++
				continue
			}
			if err := to.Set(ctx, collection, doc.ID, doc.Data); err != nil {
				if ctx.Err() != nil {
					return result, ctx.Err()
				}
				c.log.Warn().Err(err).Str("collection", collection).Str("id", doc.ID).Msg("failed to sync document")
				result.Failed[collection]++
				continue
			}
			result.Copied[collection]++
		}

		c.log.Info().
			Str("collection", collection).
			Int("copied", result.Copied[collection]).
			Int("skipped", result.Skipped[collection]).
			Int("failed", result.Failed[collection]).
			Msg("collection synced")
	}
	return result, nil
}

// inWindow reports whether the document's latest stamp is in [since, until). Documents
// without a readable stamp are always copied.
func inWindow(doc store.Document, since, until time.Time) bool {
	stamp, ok := modifiedAt(doc)
	if !ok {
		return true
	}
	if !since.IsZero() && stamp.Before(since) {
		return false
	}
	if !until.IsZero() && !stamp.Before(until) {
		return false
	}
	return true
}

func modifiedAt(doc store.Document) (time.Time, bool) {
	for _, field := range stampFields {
		s, ok := doc.Data[field].(string)
		if !ok || s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}
