package acervo

import (
	"context"
	"fmt"
)

// Migrate prepares the schema of the configured store. In cqrs mode both
// backends are migrated. Safe to run repeatedly.
func (a *App) Migrate(ctx context.Context, cmd *MigrateCommand) error {
	a.log.Info().Str("backend", string(a.config.Backend)).Msg("Running database migrations")
	if err := a.store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	a.log.Info().Msg("Migrations completed successfully")
	return nil
}

// RecomputeStats rebuilds the statistics snapshot from the current collections.
func (a *App) RecomputeStats(ctx context.Context, cmd *RecomputeStatsCommand) error {
	stats, err := a.stats.Recompute(ctx)
	if err != nil {
		return err
	}
	a.log.Info().
		Int("events", stats.TotalEvents).
		Int("gallery", stats.TotalGalleryItems).
		Int("timeline", stats.TotalTimelineEvents).
		Int("users", stats.TotalUsers).
		Int64("views", stats.TotalViews).
		Int64("likes", stats.TotalLikes).
		Msg("Statistics recomputed")
	return nil
}
