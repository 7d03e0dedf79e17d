package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acervo-cultural/acervo/pkg/acervo"
	"github.com/acervo-cultural/acervo/pkg/auth"
	"github.com/acervo-cultural/acervo/pkg/client"
	"github.com/acervo-cultural/acervo/pkg/models"
	"github.com/acervo-cultural/acervo/pkg/service"
	"github.com/acervo-cultural/acervo/pkg/store/memory"
)

const secret = "client-test-secret"

type env struct {
	app    *acervo.App
	server *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	app := acervo.NewWithStore(&acervo.Config{
		Backend:   acervo.BackendMemory,
		JWTSecret: secret,
	}, memory.New(), acervo.Options{Logger: zerolog.Nop()})
	server := httptest.NewServer(app.Handler())
	t.Cleanup(func() {
		server.Close()
		app.Close()
	})
	return &env{app: app, server: server}
}

// user returns a client signed in as id with the given role.
func (e *env) user(t *testing.T, id string, role models.Role) *client.Client {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.app.Store().Set(ctx, models.CollectionUsers, id, map[string]any{
		"email":     id + "@example.com",
		"role":      string(role),
		"createdAt": time.Now().UTC().Format(time.RFC3339Nano),
	}))
	token, err := auth.NewVerifier(secret, "").Issue(service.Identity{UserID: id, Email: id + "@example.com"}, time.Hour)
	require.NoError(t, err)

	c := client.New(e.server.URL)
	c.SetAuthToken(token)
	return c
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	c := client.New(e.server.URL + "/")

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health["status"])
	assert.NotEmpty(t, c.SessionID(), "the server assigns a session on the first request")
}

func TestContentLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	editor := e.user(t, "editor", models.RoleEditor)

	event, err := editor.CreateEvent(ctx, models.Event{
		Title:      "Festival de Inverno",
		Type:       models.EventTypeMusic,
		Category:   "Festival",
		Date:       time.Date(2023, 7, 1, 18, 0, 0, 0, time.UTC),
		IsFeatured: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, event.ID)

	featured, err := editor.FeaturedEvents(ctx, 5)
	require.NoError(t, err)
	require.Len(t, featured, 1)

	item, err := editor.CreateGalleryItem(ctx, models.GalleryItem{
		Title:   "Palco",
		Type:    models.MediaImage,
		URL:     "https://cdn.example.com/palco.jpg",
		Year:    2023,
		EventID: event.ID,
	})
	require.NoError(t, err)

	attached, err := editor.EventGallery(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, attached, 1)
	assert.Equal(t, item.ID, attached[0].ID)

	entry, err := editor.CreateTimelineEvent(ctx, models.TimelineEvent{
		Date:  "1987-09-12",
		Title: "Primeira mostra",
		Type:  models.EventTypeArt,
	})
	require.NoError(t, err)
	assert.Equal(t, 1987, entry.Year)

	years, err := editor.TimelineYears(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1987}, years)

	title := "Festival de Inverno 2023"
	updated, err := editor.UpdateEvent(ctx, event.ID, models.EventPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)

	require.NoError(t, editor.DeleteEvent(ctx, event.ID))
	_, err = editor.GetEvent(ctx, event.ID)
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestEngagement(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	editor := e.user(t, "editor", models.RoleEditor)
	viewer := e.user(t, "viewer", models.RoleViewer)

	event, err := editor.CreateEvent(ctx, models.Event{
		Title:    "Mostra",
		Type:     models.EventTypeTheater,
		Category: "Teatro",
		Date:     time.Now().UTC(),
	})
	require.NoError(t, err)

	counted, err := viewer.AddView(ctx, event.ID, models.ItemEvent)
	require.NoError(t, err)
	assert.True(t, counted)
	counted, err = viewer.AddView(ctx, event.ID, models.ItemEvent)
	require.NoError(t, err)
	assert.False(t, counted, "same session")

	require.NoError(t, viewer.Like(ctx, event.ID, models.ItemEvent))
	err = viewer.Like(ctx, event.ID, models.ItemEvent)
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)

	liked, err := viewer.IsLiked(ctx, event.ID, models.ItemEvent)
	require.NoError(t, err)
	assert.True(t, liked)

	liked, err = viewer.ToggleLike(ctx, event.ID, models.ItemEvent)
	require.NoError(t, err)
	assert.False(t, liked)

	likes, err := viewer.MyLikes(ctx)
	require.NoError(t, err)
	assert.Empty(t, likes)

	got, err := viewer.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Views)
	assert.EqualValues(t, 0, got.Likes)
}

func TestAdministration(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	admin := e.user(t, "admin", models.RoleAdmin)
	viewer := e.user(t, "viewer", models.RoleViewer)

	_, err := viewer.ListUsers(ctx)
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)

	users, err := admin.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	promoted, err := admin.SetRole(ctx, "viewer", models.RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, promoted.Role)

	mode, err := admin.GetMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "single", mode)

	require.NoError(t, admin.SetReadOnly(ctx, true))
	_, err = viewer.CreateEvent(ctx, models.Event{Title: "X", Type: models.EventTypeArt, Category: "Arte", Date: time.Now()})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	require.NoError(t, admin.SetReadOnly(ctx, false))

	stats, err := admin.RefreshStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalUsers)
}

func TestAPIErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"error":"no coffee"}`))
	}))
	defer server.Close()

	_, err := client.New(server.URL).Statistics(context.Background())
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTeapot, apiErr.StatusCode)
	assert.Equal(t, "no coffee", apiErr.Message)
}
