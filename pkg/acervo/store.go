package acervo

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/acervo-cultural/acervo/pkg/models"
	"github.com/acervo-cultural/acervo/pkg/store"
	"github.com/acervo-cultural/acervo/pkg/store/cqrs"
	"github.com/acervo-cultural/acervo/pkg/store/memory"
	"github.com/acervo-cultural/acervo/pkg/store/postgres"
	"github.com/acervo-cultural/acervo/pkg/store/surrealdb"
)

// surrealIndexes are the fields the services filter and order on.
var surrealIndexes = map[string][]string{
	models.CollectionEvents:   {"date", "isFeatured", "isHighlighted", "category", "type"},
	models.CollectionGallery:  {"createdAt", "year", "type", "eventId", "isHighlighted"},
	models.CollectionTimeline: {"date", "year", "type", "eventId", "isHighlighted"},
	models.CollectionLikes:    {"userId", "itemId"},
	models.CollectionViews:    {"itemId", "sessionId"},
}

// openStore connects to the configured backend.
func openStore(ctx context.Context, config *Config, log zerolog.Logger) (store.Store, error) {
	switch config.Backend {
	case BackendMemory:
		log.Warn().Msg("Using the in-memory store; data is lost on exit")
		return memory.New(), nil
	case BackendPostgres:
		return openPostgres(config, log)
	case BackendSurrealDB:
		return openSurrealDB(ctx, config, log)
	case BackendCQRS:
		pgStore, err := openPostgres(config, log)
		if err != nil {
			return nil, err
		}
		sdbStore, err := openSurrealDB(ctx, config, log)
		if err != nil {
			_ = pgStore.Close()
			return nil, err
		}
		log.Info().Str("mode", string(config.MigrationMode)).Msg("Using CQRS store")
		return cqrs.NewCQRSStore(pgStore, sdbStore, config.MigrationMode, models.Collections, log), nil
	default:
		return nil, fmt.Errorf("invalid backend: %s", config.Backend)
	}
}

func openPostgres(config *Config, log zerolog.Logger) (*postgres.Store, error) {
	s, err := postgres.New(config.PostgresDSN, config.PollInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	log.Info().Msg("Connected to PostgreSQL")
	return s, nil
}

func openSurrealDB(ctx context.Context, config *Config, log zerolog.Logger) (*surrealdb.Store, error) {
	s, err := surrealdb.New(ctx, surrealdb.Config{
		URL:       config.SurrealDBURL,
		Namespace: config.SurrealDBNS,
		Database:  config.SurrealDBDB,
		Username:  config.SurrealDBUser,
		Password:  config.SurrealDBPass,
		Indexes:   surrealIndexes,
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}
	log.Info().Str("url", config.SurrealDBURL).Msg("Connected to SurrealDB")
	return s, nil
}
