package acervo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/acervo-cultural/acervo/pkg/store/cqrs"
)

// Sync copies the documents changed in [since, until) between the two backends
// of a cqrs deployment. direction is "forward" (PostgreSQL to SurrealDB) or
// "reverse". Documents are upserted by id, so the sync can be repeated; failures
// of single documents are counted and logged without stopping the run.
func (a *App) Sync(ctx context.Context, direction string, since, until time.Time) error {
	c := a.cqrsStore()
	if c == nil {
		return fmt.Errorf("sync requires the cqrs backend, app has %s", a.config.Backend)
	}
	if a.IsReadOnly() {
		return errors.New("sync cannot run in read-only mode as it needs write access to databases")
	}

	var (
		result cqrs.SyncResult
		err    error
	)
	a.log.Info().Str("direction", direction).Time("since", since).Time("until", until).Msg("Starting sync")
	switch direction {
	case "forward":
		result, err = c.SyncMissedUpdates(ctx, since, until)
	case "reverse":
		result, err = c.ReverseSyncMissedUpdates(ctx, since, until)
	default:
		return fmt.Errorf("invalid sync direction: %s (must be 'forward' or 'reverse')", direction)
	}
	if err != nil {
		return fmt.Errorf("%s sync failed: %w", direction, err)
	}

	for _, collection := range sortedKeys(result.Copied, result.Skipped, result.Failed) {
		a.log.Info().
			Str("collection", collection).
			Int("copied", result.Copied[collection]).
			Int("skipped", result.Skipped[collection]).
			Int("failed", result.Failed[collection]).
			Msg("Synced collection")
	}
	if failed := sum(result.Failed); failed > 0 {
		return fmt.Errorf("%d documents failed to sync", failed)
	}
	a.log.Info().Int("copied", result.Total()).Msg("Sync completed successfully")
	return nil
}

func sortedKeys(ms ...map[string]int) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, m := range ms {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func sum(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}
