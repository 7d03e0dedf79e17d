package acervo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Handler returns the HTTP API.
//
// # API Endpoints
//
// Health and metrics:
//
//	GET  /health, /api/health                   - Service status, backend and mode
//	GET  /metrics                               - Prometheus metrics
//
// Identity (bearer token required):
//
//	GET  /api/auth/me                           - Current profile, created on first sign-in
//	GET  /api/users/me/likes                    - Current user's likes, newest first
//
// Content (reads are public; writes need role editor or admin):
//
//	GET    /api/events?limit=&category=&year=&type=
//	GET    /api/events/featured?limit=
//	GET    /api/events/highlighted?limit=
//	GET    /api/events/{id}
//	GET    /api/events/{id}/gallery
//	POST   /api/events
//	PUT    /api/events/{id}
//	DELETE /api/events/{id}
//	GET    /api/gallery?limit=&year=&type=
//	GET    /api/gallery/highlighted?limit=
//	GET    /api/gallery/{id}
//	POST, PUT, DELETE as for events
//	GET    /api/timeline?limit=&year=&type=&eventId=
//	GET    /api/timeline/years
//	GET    /api/timeline/highlighted?limit=
//	GET    /api/timeline/{id}
//	POST, PUT, DELETE as for events
//	POST   /api/uploads                         - Multipart "file" and "folder"
//
// Engagement:
//
//	POST   /api/views                           - Count a view once per browsing session
//	POST   /api/likes                           - Like an item (signed in)
//	DELETE /api/likes                           - Unlike an item (signed in)
//	GET    /api/likes/{itemType}/{itemId}       - Whether the current user likes the item
//
// Administration (role admin):
//
//	GET    /api/users
//	GET    /api/users/{id}
//	PUT    /api/users/{id}/role
//	DELETE /api/users/{id}
//	GET    /api/statistics                      - Public
//	POST   /api/statistics/refresh
//	GET    /api/admin/dashboard
//	GET    /api/admin/mode, POST /api/admin/mode
//	POST   /api/admin/swap-stores
//	GET    /api/admin/read-only, POST /api/admin/read-only
//
// Live data:
//
//	GET    /api/live/{collection}?limit=&codec=json|cbor
//
// The live route upgrades to a websocket and sends one frame per snapshot of
// events, gallery, timeline or statistics.
func (a *App) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(a.instrument, a.withSession, a.withIdentity)

	router.HandleFunc("/health", a.handleHealth).Methods("GET")
	router.Handle("/metrics", a.metrics.Handler()).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", a.handleHealth).Methods("GET")

	api.HandleFunc("/auth/me", a.requireUser(a.handleMe)).Methods("GET")
	api.HandleFunc("/users/me/likes", a.requireUser(a.handleMyLikes)).Methods("GET")

	api.HandleFunc("/events", a.handleListEvents).Methods("GET")
	api.HandleFunc("/events/featured", a.handleFeaturedEvents).Methods("GET")
	api.HandleFunc("/events/highlighted", a.handleHighlightedEvents).Methods("GET")
	api.HandleFunc("/events/{id}", a.handleGetEvent).Methods("GET")
	api.HandleFunc("/events/{id}/gallery", a.handleEventGallery).Methods("GET")
	api.HandleFunc("/events", a.requireEditor(a.handleCreateEvent)).Methods("POST")
	api.HandleFunc("/events/{id}", a.requireEditor(a.handleUpdateEvent)).Methods("PUT")
	api.HandleFunc("/events/{id}", a.requireEditor(a.handleDeleteEvent)).Methods("DELETE")

	api.HandleFunc("/gallery", a.handleListGallery).Methods("GET")
	api.HandleFunc("/gallery/highlighted", a.handleHighlightedGallery).Methods("GET")
	api.HandleFunc("/gallery/{id}", a.handleGetGalleryItem).Methods("GET")
	api.HandleFunc("/gallery", a.requireEditor(a.handleCreateGalleryItem)).Methods("POST")
	api.HandleFunc("/gallery/{id}", a.requireEditor(a.handleUpdateGalleryItem)).Methods("PUT")
	api.HandleFunc("/gallery/{id}", a.requireEditor(a.handleDeleteGalleryItem)).Methods("DELETE")

	api.HandleFunc("/timeline", a.handleListTimeline).Methods("GET")
	api.HandleFunc("/timeline/years", a.handleTimelineYears).Methods("GET")
	api.HandleFunc("/timeline/highlighted", a.handleHighlightedTimeline).Methods("GET")
	api.HandleFunc("/timeline/{id}", a.handleGetTimelineEvent).Methods("GET")
	api.HandleFunc("/timeline", a.requireEditor(a.handleCreateTimelineEvent)).Methods("POST")
	api.HandleFunc("/timeline/{id}", a.requireEditor(a.handleUpdateTimelineEvent)).Methods("PUT")
	api.HandleFunc("/timeline/{id}", a.requireEditor(a.handleDeleteTimelineEvent)).Methods("DELETE")

	api.HandleFunc("/uploads", a.requireEditor(a.handleUpload)).Methods("POST")

	api.HandleFunc("/views", a.handleAddView).Methods("POST")
	api.HandleFunc("/likes", a.requireUser(a.handleAddLike)).Methods("POST")
	api.HandleFunc("/likes", a.requireUser(a.handleRemoveLike)).Methods("DELETE")
	api.HandleFunc("/likes/{itemType}/{itemId}", a.requireUser(a.handleIsLiked)).Methods("GET")

	api.HandleFunc("/users", a.requireAdmin(a.handleListUsers)).Methods("GET")
	api.HandleFunc("/users/{id}", a.requireAdmin(a.handleGetUser)).Methods("GET")
	api.HandleFunc("/users/{id}/role", a.requireAdmin(a.handleSetRole)).Methods("PUT")
	api.HandleFunc("/users/{id}", a.requireAdmin(a.handleDeleteUser)).Methods("DELETE")

	api.HandleFunc("/statistics", a.handleGetStatistics).Methods("GET")
	api.HandleFunc("/statistics/refresh", a.requireAdmin(a.handleRefreshStatistics)).Methods("POST")

	api.HandleFunc("/admin/dashboard", a.requireAdmin(a.handleDashboard)).Methods("GET")
	api.HandleFunc("/admin/mode", a.requireAdmin(a.handleGetMode)).Methods("GET")
	api.HandleFunc("/admin/mode", a.requireAdmin(a.handleSetMode)).Methods("POST")
	api.HandleFunc("/admin/swap-stores", a.requireAdmin(a.handleSwapStores)).Methods("POST")
	api.HandleFunc("/admin/read-only", a.requireAdmin(a.handleGetReadOnly)).Methods("GET")
	api.HandleFunc("/admin/read-only", a.requireAdmin(a.handleSetReadOnly)).Methods("POST")

	api.HandleFunc("/live/{collection}", a.handleLive).Methods("GET")

	return router
}

// Run serves the API until ctx is cancelled, then shuts down gracefully,
// giving in-flight requests up to 5 seconds.
func (a *App) Run(ctx context.Context, cmd *RunCommand) error {
	addr := fmt.Sprintf(":%s", a.config.ServerPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server.RegisterOnShutdown(a.stopLive)

	a.log.Info().
		Str("addr", addr).
		Str("backend", string(a.config.Backend)).
		Str("mode", string(a.config.MigrationMode)).
		Bool("readOnly", a.IsReadOnly()).
		Msg("Starting acervo server")

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}
