package acervo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/acervo-cultural/acervo/pkg/auth"
	"github.com/acervo-cultural/acervo/pkg/logger"
	"github.com/acervo-cultural/acervo/pkg/media"
	"github.com/acervo-cultural/acervo/pkg/metrics"
	"github.com/acervo-cultural/acervo/pkg/service"
	"github.com/acervo-cultural/acervo/pkg/store"
	"github.com/acervo-cultural/acervo/pkg/store/cqrs"
)

// App holds the application state.
type App struct {
	config  *Config
	log     zerolog.Logger
	logData *logger.LogData

	// backend is the store as opened; store wraps it with metrics and the
	// read-only guard and is what the services use.
	backend store.Store
	store   store.Store

	metrics  *metrics.Metrics
	verifier *auth.Verifier
	uploader media.Uploader
	validate *validator.Validate

	events   *service.EventsService
	gallery  *service.GalleryService
	timeline *service.TimelineService
	users    *service.UsersService
	likes    *service.LikesService
	views    *service.ViewsService
	stats    *service.StatisticsService

	readOnly atomic.Bool

	// liveStop is closed on shutdown to end websocket feeds, which
	// http.Server.Shutdown does not wait for.
	liveStop     chan struct{}
	liveStopOnce sync.Once
}

// Options carries the dependencies NewWithStore does not build itself.
type Options struct {
	Logger   zerolog.Logger
	Uploader media.Uploader
	Metrics  *metrics.Metrics
	Clock    service.Clock
}

// New connects to the configured backend and media bucket and returns the application.
func New(ctx context.Context, config *Config) (*App, error) {
	logData, err := logger.New().
		FromBuffer(os.Stderr).
		FromPath(config.LogPath).
		Level(config.LogLevel).
		Console(config.LogFormat == "console").
		Service("acervo").
		Make()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	log := logData.Logger

	backend, err := openStore(ctx, config, log)
	if err != nil {
		_ = logData.Close()
		return nil, err
	}

	var uploader media.Uploader
	if config.UploadsEnabled() {
		uploader, err = media.NewS3Uploader(ctx, media.S3Config{
			Region:          config.S3Region,
			Bucket:          config.S3Bucket,
			AccessKeyID:     config.S3AccessKey,
			SecretAccessKey: config.S3SecretKey,
			Endpoint:        config.S3Endpoint,
			PublicBaseURL:   config.S3PublicURL,
			MaxBytes:        config.UploadMaxBytes,
		})
		if err != nil {
			_ = backend.Close()
			_ = logData.Close()
			return nil, fmt.Errorf("failed to create uploader: %w", err)
		}
		log.Info().Str("bucket", config.S3Bucket).Msg("Uploads enabled")
	}

	app := NewWithStore(config, backend, Options{Logger: log, Uploader: uploader})
	app.logData = logData
	return app, nil
}

// NewWithStore builds the application over an already opened store.
func NewWithStore(config *Config, backend store.Store, opts Options) *App {
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	app := &App{
		config:   config,
		log:      opts.Logger,
		backend:  backend,
		metrics:  m,
		uploader: opts.Uploader,
		validate: newValidator(),
		liveStop: make(chan struct{}),
	}
	if config.JWTSecret != "" {
		app.verifier = auth.NewVerifier(config.JWTSecret, config.JWTIssuer)
	} else {
		app.log.Warn().Msg("JWT_SECRET is not set; every request is anonymous")
	}
	app.readOnly.Store(config.ReadOnly)

	app.store = store.NewReadOnlyStore(metrics.InstrumentStore(backend, m), app.IsReadOnly)

	app.events = service.NewEventsService(app.store, opts.Clock)
	app.gallery = service.NewGalleryService(app.store, opts.Clock)
	app.timeline = service.NewTimelineService(app.store, opts.Clock)
	app.users = service.NewUsersService(app.store, opts.Clock)
	app.likes = service.NewLikesService(app.store, opts.Clock)
	app.views = service.NewViewsService(app.store, opts.Clock)
	app.stats = service.NewStatisticsService(app.store, opts.Clock)
	return app
}

// Close ends live feeds and closes the store and the log file.
func (a *App) Close() error {
	a.stopLive()
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.logData != nil {
		errs = append(errs, a.logData.Close())
	}
	return errors.Join(errs...)
}

// Store returns the store the services use.
func (a *App) Store() store.Store {
	return a.store
}

// SetReadOnly toggles rejection of all writes at runtime.
func (a *App) SetReadOnly(readOnly bool) {
	a.readOnly.Store(readOnly)
	a.log.Info().Bool("readOnly", readOnly).Msg("Application read-only mode changed")
}

// IsReadOnly reports whether writes are currently rejected by the application.
func (a *App) IsReadOnly() bool {
	return a.readOnly.Load()
}

// cqrsStore returns the CQRS store, or nil on a single backend.
func (a *App) cqrsStore() *cqrs.CQRSStore {
	c, _ := a.backend.(*cqrs.CQRSStore)
	return c
}

func (a *App) stopLive() {
	a.liveStopOnce.Do(func() { close(a.liveStop) })
}
