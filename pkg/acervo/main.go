package acervo

import (
	"context"
	"fmt"
	"time"
)

// Main parses args, builds the application and runs the command. It is what
// cmd/acervo calls, and tests can call it directly; cancelling ctx shuts the
// server down gracefully.
func Main(ctx context.Context, args []string) error {
	cmd, config, err := Parse(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	app, err := New(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()

	switch c := cmd.(type) {
	case *MigrateCommand:
		if err := app.Migrate(ctx, c); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	case *RunCommand:
		if err := app.Run(ctx, c); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case *SyncCommand:
		since, err := ParseTime(c.Since, time.Now().Add(-24*time.Hour))
		if err != nil {
			return fmt.Errorf("invalid since time: %w", err)
		}
		until, err := ParseTime(c.Until, time.Now())
		if err != nil {
			return fmt.Errorf("invalid until time: %w", err)
		}
		if err := app.Sync(ctx, c.Direction, since, until); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
	case *RecomputeStatsCommand:
		if err := app.RecomputeStats(ctx, c); err != nil {
			return fmt.Errorf("recompute failed: %w", err)
		}
	default:
		return fmt.Errorf("unknown command type: %T", cmd)
	}

	return nil
}
