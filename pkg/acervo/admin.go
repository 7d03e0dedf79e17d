package acervo

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/acervo-cultural/acervo/pkg/auth"
	"github.com/acervo-cultural/acervo/pkg/models"
	"github.com/acervo-cultural/acervo/pkg/store/cqrs"
)

type roleRequest struct {
	Role models.Role `json:"role" validate:"required,role"`
}

type modeRequest struct {
	Mode string `json:"mode" validate:"required"`
}

type readOnlyRequest struct {
	ReadOnly *bool `json:"readOnly" validate:"required"`
}

// handleHealth reports liveness along with the backend and migration mode.
// It does not touch the store.
func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"backend":  a.config.Backend,
		"mode":     a.currentMode(),
		"readOnly": a.IsReadOnly(),
		"time":     time.Now().Unix(),
	})
}

func (a *App) currentMode() cqrs.MigrationMode {
	if c := a.cqrsStore(); c != nil {
		return c.GetMode()
	}
	return a.config.MigrationMode
}

// Users

func (a *App) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.GetAll(r.Context())
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (a *App) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.users.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	if user == nil {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (a *App) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := a.decode(w, r, &req); err != nil {
		a.respondErr(w, r, err)
		return
	}
	id := mux.Vars(r)["id"]
	if err := a.users.SetRole(r.Context(), id, req.Role); err != nil {
		a.respondErr(w, r, err)
		return
	}
	admin, _ := auth.FromContext(r.Context())
	a.log.Info().Str("user", id).Str("role", string(req.Role)).Str("by", admin.UserID).Msg("Role changed")

	user, err := a.users.GetByID(r.Context(), id)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (a *App) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if admin, _ := auth.FromContext(r.Context()); admin.UserID == id {
		respondError(w, http.StatusBadRequest, "Cannot delete your own account")
		return
	}
	if err := a.users.Delete(r.Context(), id); err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Statistics

// handleGetStatistics returns the stored snapshot, computing it when none exists.
func (a *App) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := a.stats.Get(r.Context())
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	if stats == nil {
		if stats, err = a.stats.Recompute(r.Context()); err != nil {
			a.respondErr(w, r, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, stats)
}

func (a *App) handleRefreshStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := a.stats.Recompute(r.Context())
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// handleDashboard gathers the admin overview in parallel.
func (a *App) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var (
		stats    *models.Statistics
		events   []models.Event
		gallery  []models.GalleryItem
		timeline []models.TimelineEvent
		users    []models.User
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		stats, err = a.stats.Get(ctx)
		return err
	})
	g.Go(func() (err error) {
		events, err = a.events.GetAll(ctx, 5)
		return err
	})
	g.Go(func() (err error) {
		gallery, err = a.gallery.GetAll(ctx, 5)
		return err
	})
	g.Go(func() (err error) {
		timeline, err = a.timeline.GetAll(ctx, 5)
		return err
	})
	g.Go(func() (err error) {
		users, err = a.users.GetAll(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		a.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"statistics":     stats,
		"recentEvents":   events,
		"recentGallery":  gallery,
		"recentTimeline": timeline,
		"users":          len(users),
		"backend":        a.config.Backend,
		"mode":           a.currentMode(),
		"readOnly":       a.IsReadOnly(),
	})
}

// Runtime modes

func (a *App) handleGetMode(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"mode":    a.currentMode(),
		"backend": a.config.Backend,
	})
}

func (a *App) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := a.decode(w, r, &req); err != nil {
		a.respondErr(w, r, err)
		return
	}
	c := a.cqrsStore()
	if c == nil {
		respondError(w, http.StatusBadRequest, "Mode changes require the cqrs backend")
		return
	}
	mode, err := cqrs.ParseMode(req.Mode)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := c.SetMode(mode); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	a.log.Info().Str("mode", string(mode)).Msg("Migration mode changed")
	respondJSON(w, http.StatusOK, map[string]any{"mode": mode})
}

// handleSwapStores promotes the secondary backend to primary once a migration
// has been verified.
func (a *App) handleSwapStores(w http.ResponseWriter, r *http.Request) {
	c := a.cqrsStore()
	if c == nil {
		respondError(w, http.StatusBadRequest, "Swapping stores requires the cqrs backend")
		return
	}
	if err := c.SwapStores(); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	a.log.Warn().Msg("Primary and secondary stores swapped")
	respondJSON(w, http.StatusOK, map[string]any{"mode": c.GetMode(), "swapped": true})
}

func (a *App) handleGetReadOnly(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"readOnly": a.IsReadOnly()})
}

func (a *App) handleSetReadOnly(w http.ResponseWriter, r *http.Request) {
	var req readOnlyRequest
	if err := a.decode(w, r, &req); err != nil {
		a.respondErr(w, r, err)
		return
	}
	a.SetReadOnly(*req.ReadOnly)
	respondJSON(w, http.StatusOK, map[string]bool{"readOnly": a.IsReadOnly()})
}
