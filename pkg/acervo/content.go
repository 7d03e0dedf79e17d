package acervo

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/acervo-cultural/acervo/pkg/auth"
	"github.com/acervo-cultural/acervo/pkg/media"
	"github.com/acervo-cultural/acervo/pkg/models"
)

const defaultListLimit = 50

type eventRequest struct {
	Title         string           `json:"title" validate:"required,max=200"`
	Description   string           `json:"description" validate:"max=10000"`
	Type          models.EventType `json:"type" validate:"required,event_type"`
	Category      string           `json:"category" validate:"required,max=100"`
	Date          time.Time        `json:"date" validate:"required"`
	Location      string           `json:"location" validate:"max=200"`
	Participants  *int             `json:"participants" validate:"omitempty,min=0"`
	Images        []string         `json:"images" validate:"dive,url"`
	Videos        []string         `json:"videos" validate:"dive,url"`
	IsHighlighted bool             `json:"isHighlighted"`
	IsFeatured    bool             `json:"isFeatured"`
	Gradient      string           `json:"gradient" validate:"max=200"`
}

type galleryRequest struct {
	Title         string           `json:"title" validate:"required,max=200"`
	Description   string           `json:"description" validate:"max=5000"`
	Type          models.MediaType `json:"type" validate:"required,media_type"`
	URL           string           `json:"url" validate:"required,url"`
	ThumbnailURL  string           `json:"thumbnailUrl" validate:"omitempty,url"`
	EventID       string           `json:"eventId" validate:"max=64"`
	Tags          []string         `json:"tags" validate:"max=30,dive,max=50"`
	Year          int              `json:"year" validate:"required,min=1800,max=2200"`
	AssetID       string           `json:"assetId" validate:"omitempty,asset_id"`
	Format        string           `json:"format"`
	Bytes         int64            `json:"bytes" validate:"min=0"`
	Width         int              `json:"width" validate:"min=0"`
	Height        int              `json:"height" validate:"min=0"`
	Duration      float64          `json:"duration" validate:"min=0"`
	IsHighlighted bool             `json:"isHighlighted"`
}

type timelineRequest struct {
	Date          string           `json:"date" validate:"required,iso_date"`
	Title         string           `json:"title" validate:"required,max=200"`
	Description   string           `json:"description" validate:"max=10000"`
	Type          models.EventType `json:"type" validate:"required,event_type"`
	Location      string           `json:"location" validate:"max=200"`
	Participants  *int             `json:"participants" validate:"omitempty,min=0"`
	Images        []string         `json:"images" validate:"dive,url"`
	Videos        []string         `json:"videos" validate:"dive,url"`
	IsHighlighted bool             `json:"isHighlighted"`
	EventID       string           `json:"eventId" validate:"max=64"`
}

// Patches are decoded straight into the model patch types; only the enum and
// date fields need checking.

func checkEventPatch(p models.EventPatch) error {
	if p.Type != nil && !p.Type.Valid() {
		return fmt.Errorf("%w: invalid type %q", errBadRequest, *p.Type)
	}
	if p.Title != nil && *p.Title == "" {
		return fmt.Errorf("%w: title cannot be empty", errBadRequest)
	}
	if p.AssetID != nil && *p.AssetID != "" && !media.ValidAssetID(*p.AssetID) {
		return fmt.Errorf("%w: invalid assetId %q", errBadRequest, *p.AssetID)
	}
	return nil
}

func checkGalleryPatch(p models.GalleryPatch) error {
	if p.Type != nil && !p.Type.Valid() {
		return fmt.Errorf("%w: invalid type %q", errBadRequest, *p.Type)
	}
	if p.Title != nil && *p.Title == "" {
		return fmt.Errorf("%w: title cannot be empty", errBadRequest)
	}
	return nil
}

func checkTimelinePatch(p models.TimelinePatch) error {
	if p.Type != nil && !p.Type.Valid() {
		return fmt.Errorf("%w: invalid type %q", errBadRequest, *p.Type)
	}
	if p.Date != nil {
		if _, err := models.ParseDate(*p.Date); err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	return nil
}

func take[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// Events

func (a *App) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, defaultListLimit)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	year, hasYear, err := queryInt(r, "year")
	if err != nil {
		a.respondErr(w, r, err)
		return
	}

	ctx := r.Context()
	q := r.URL.Query()
	var events []models.Event
	switch {
	case hasYear:
		events, err = a.events.GetByYear(ctx, year)
	case q.Get("category") != "":
		events, err = a.events.GetByCategory(ctx, q.Get("category"))
	case q.Get("type") != "":
		events, err = a.events.GetByType(ctx, models.EventType(q.Get("type")))
	default:
		events, err = a.events.GetAll(ctx, limit)
	}
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, take(events, limit))
}

func (a *App) handleFeaturedEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, 6)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	events, err := a.events.GetFeatured(r.Context(), limit)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

func (a *App) handleHighlightedEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, 6)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	events, err := a.events.GetHighlighted(r.Context(), limit)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

func (a *App) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := a.events.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	if event == nil {
		respondError(w, http.StatusNotFound, "Event not found")
		return
	}
	respondJSON(w, http.StatusOK, event)
}

func (a *App) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := a.decode(w, r, &req); err != nil {
		a.respondErr(w, r, err)
		return
	}
	user, _ := auth.FromContext(r.Context())

	event := models.Event{
		Title:         req.Title,
		Description:   req.Description,
		Type:          req.Type,
		Category:      req.Category,
		Date:          req.Date,
		Location:      req.Location,
		Participants:  req.Participants,
		Images:        req.Images,
		Videos:        req.Videos,
		IsHighlighted: req.IsHighlighted,
		IsFeatured:    req.IsFeatured,
		Gradient:      req.Gradient,
		CreatedBy:     user.UserID,
	}
	id, err := a.events.Create(r.Context(), event)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	a.respondCreated(w, r, id, func() (any, error) { return a.events.GetByID(r.Context(), id) })
}

func (a *App) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var patch models.EventPatch
	if err := a.decode(w, r, &patch); err != nil {
		a.respondErr(w, r, err)
		return
	}
	if err := checkEventPatch(patch); err != nil {
		a.respondErr(w, r, err)
		return
	}
	id := mux.Vars(r)["id"]
	if err := a.events.Update(r.Context(), id, patch); err != nil {
		a.respondErr(w, r, err)
		return
	}
	event, err := a.events.GetByID(r.Context(), id)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, event)
}

func (a *App) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := a.events.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *App) handleEventGallery(w http.ResponseWriter, r *http.Request) {
	items, err := a.gallery.GetByEvent(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// Gallery

func (a *App) handleListGallery(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, defaultListLimit)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	year, hasYear, err := queryInt(r, "year")
	if err != nil {
		a.respondErr(w, r, err)
		return
	}

	ctx := r.Context()
	var items []models.GalleryItem
	switch t := r.URL.Query().Get("type"); {
	case hasYear:
		items, err = a.gallery.GetByYear(ctx, year)
	case t != "":
		items, err = a.gallery.GetByType(ctx, models.MediaType(t))
	default:
		items, err = a.gallery.GetAll(ctx, limit)
	}
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, take(items, limit))
}

func (a *App) handleHighlightedGallery(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, 12)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	items, err := a.gallery.GetHighlighted(r.Context(), limit)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (a *App) handleGetGalleryItem(w http.ResponseWriter, r *http.Request) {
	item, err := a.gallery.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	if item == nil {
		respondError(w, http.StatusNotFound, "Gallery item not found")
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (a *App) handleCreateGalleryItem(w http.ResponseWriter, r *http.Request) {
	var req galleryRequest
	if err := a.decode(w, r, &req); err != nil {
		a.respondErr(w, r, err)
		return
	}
	user, _ := auth.FromContext(r.Context())

	item := models.GalleryItem{
		Title:         req.Title,
		Description:   req.Description,
		Type:          req.Type,
		URL:           req.URL,
		ThumbnailURL:  req.ThumbnailURL,
		EventID:       req.EventID,
		Tags:          req.Tags,
		Year:          req.Year,
		AssetID:       req.AssetID,
		Format:        req.Format,
		Bytes:         req.Bytes,
		Width:         req.Width,
		Height:        req.Height,
		Duration:      req.Duration,
		IsHighlighted: req.IsHighlighted,
		UploadedBy:    user.UserID,
	}
	id, err := a.gallery.Create(r.Context(), item)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	a.respondCreated(w, r, id, func() (any, error) { return a.gallery.GetByID(r.Context(), id) })
}

func (a *App) handleUpdateGalleryItem(w http.ResponseWriter, r *http.Request) {
	var patch models.GalleryPatch
	if err := a.decode(w, r, &patch); err != nil {
		a.respondErr(w, r, err)
		return
	}
	if err := checkGalleryPatch(patch); err != nil {
		a.respondErr(w, r, err)
		return
	}
	id := mux.Vars(r)["id"]
	if err := a.gallery.Update(r.Context(), id, patch); err != nil {
		a.respondErr(w, r, err)
		return
	}
	item, err := a.gallery.GetByID(r.Context(), id)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// handleDeleteGalleryItem deletes the item and then, best effort, its uploaded asset.
// Asset ids the uploader could not have issued are never passed to it.
func (a *App) handleDeleteGalleryItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]
	item, err := a.gallery.GetByID(ctx, id)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	if err := a.gallery.Delete(ctx, id); err != nil {
		a.respondErr(w, r, err)
		return
	}
	if item != nil && media.ValidAssetID(item.AssetID) && a.uploader != nil {
		if err := a.uploader.Delete(ctx, item.AssetID); err != nil {
			a.log.Warn().Err(err).Str("assetId", item.AssetID).Msg("Failed to delete uploaded asset")
		}
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Timeline

func (a *App) handleListTimeline(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, defaultListLimit)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	year, hasYear, err := queryInt(r, "year")
	if err != nil {
		a.respondErr(w, r, err)
		return
	}

	ctx := r.Context()
	q := r.URL.Query()
	var entries []models.TimelineEvent
	switch {
	case hasYear:
		entries, err = a.timeline.GetByYear(ctx, year)
	case q.Get("eventId") != "":
		entries, err = a.timeline.GetByEvent(ctx, q.Get("eventId"))
	case q.Get("type") != "":
		entries, err = a.timeline.GetByType(ctx, models.EventType(q.Get("type")))
	default:
		entries, err = a.timeline.GetAll(ctx, limit)
	}
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, take(entries, limit))
}

func (a *App) handleTimelineYears(w http.ResponseWriter, r *http.Request) {
	years, err := a.timeline.GetYears(r.Context())
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, years)
}

func (a *App) handleHighlightedTimeline(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, 6)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	entries, err := a.timeline.GetHighlighted(r.Context(), limit)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (a *App) handleGetTimelineEvent(w http.ResponseWriter, r *http.Request) {
	entry, err := a.timeline.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	if entry == nil {
		respondError(w, http.StatusNotFound, "Timeline event not found")
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

func (a *App) handleCreateTimelineEvent(w http.ResponseWriter, r *http.Request) {
	var req timelineRequest
	if err := a.decode(w, r, &req); err != nil {
		a.respondErr(w, r, err)
		return
	}
	user, _ := auth.FromContext(r.Context())

	entry := models.TimelineEvent{
		Date:          req.Date,
		Title:         req.Title,
		Description:   req.Description,
		Type:          req.Type,
		Location:      req.Location,
		Participants:  req.Participants,
		Images:        req.Images,
		Videos:        req.Videos,
		IsHighlighted: req.IsHighlighted,
		EventID:       req.EventID,
		CreatedBy:     user.UserID,
	}
	id, err := a.timeline.Create(r.Context(), entry)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	a.respondCreated(w, r, id, func() (any, error) { return a.timeline.GetByID(r.Context(), id) })
}

func (a *App) handleUpdateTimelineEvent(w http.ResponseWriter, r *http.Request) {
	var patch models.TimelinePatch
	if err := a.decode(w, r, &patch); err != nil {
		a.respondErr(w, r, err)
		return
	}
	if err := checkTimelinePatch(patch); err != nil {
		a.respondErr(w, r, err)
		return
	}
	id := mux.Vars(r)["id"]
	if err := a.timeline.Update(r.Context(), id, patch); err != nil {
		a.respondErr(w, r, err)
		return
	}
	entry, err := a.timeline.GetByID(r.Context(), id)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

func (a *App) handleDeleteTimelineEvent(w http.ResponseWriter, r *http.Request) {
	if err := a.timeline.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// respondCreated answers 201 with the stored document, falling back to the id
// alone when the read-back fails.
func (a *App) respondCreated(w http.ResponseWriter, r *http.Request, id string, load func() (any, error)) {
	w.Header().Set("Location", r.URL.Path+"/"+id)
	doc, err := load()
	if err != nil {
		a.log.Warn().Err(err).Str("id", id).Msg("Failed to read back created document")
		respondJSON(w, http.StatusCreated, map[string]string{"id": id})
		return
	}
	respondJSON(w, http.StatusCreated, doc)
}
