package acervo

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/acervo-cultural/acervo/pkg/auth"
	"github.com/acervo-cultural/acervo/pkg/models"
)

type itemRequest struct {
	ItemID   string          `json:"itemId" validate:"required,max=128"`
	ItemType models.ItemType `json:"itemType" validate:"required,item_type"`
}

type likeRequest struct {
	itemRequest
	// Toggle flips the current state instead of adding a like.
	Toggle bool `json:"toggle"`
}

// handleMe returns the caller's profile, mirroring it on first sign-in.
func (a *App) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	user, err := a.users.EnsureProfile(r.Context(), id)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// handleAddView counts a view of the item once per browsing session. Anonymous
// visitors count too; signed-in users are recorded on the view row.
func (a *App) handleAddView(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := a.decode(w, r, &req); err != nil {
		a.respondErr(w, r, err)
		return
	}
	user, _ := auth.FromContext(r.Context())
	counted, err := a.views.AddView(r.Context(), req.ItemID, req.ItemType, user.UserID)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"counted": counted})
}

func (a *App) handleAddLike(w http.ResponseWriter, r *http.Request) {
	var req likeRequest
	if err := a.decode(w, r, &req); err != nil {
		a.respondErr(w, r, err)
		return
	}
	user, _ := auth.FromContext(r.Context())

	if req.Toggle {
		liked, err := a.likes.ToggleLike(r.Context(), user.UserID, req.ItemID, req.ItemType)
		if err != nil {
			a.respondErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]bool{"liked": liked})
		return
	}

	if err := a.likes.AddLike(r.Context(), user.UserID, req.ItemID, req.ItemType); err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]bool{"liked": true})
}

func (a *App) handleRemoveLike(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := a.decode(w, r, &req); err != nil {
		a.respondErr(w, r, err)
		return
	}
	user, _ := auth.FromContext(r.Context())
	if err := a.likes.RemoveLike(r.Context(), user.UserID, req.ItemID, req.ItemType); err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"liked": false})
}

func (a *App) handleIsLiked(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	itemType := models.ItemType(vars["itemType"])
	if !itemType.Valid() {
		respondError(w, http.StatusBadRequest, "Invalid item type")
		return
	}
	user, _ := auth.FromContext(r.Context())
	liked, err := a.likes.IsLiked(r.Context(), user.UserID, vars["itemId"], itemType)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

func (a *App) handleMyLikes(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.FromContext(r.Context())
	likes, err := a.likes.GetUserLikes(r.Context(), user.UserID)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, likes)
}
