package acervo

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/acervo-cultural/acervo/pkg/media"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in memory
// before spilling to temporary files.
const multipartMemory = 8 << 20

var folderPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// handleUpload stores the multipart "file" field in the media bucket and returns
// the asset description the gallery form saves with the item.
func (a *App) handleUpload(w http.ResponseWriter, r *http.Request) {
	if a.uploader == nil {
		respondError(w, http.StatusServiceUnavailable, "Uploads are not configured")
		return
	}

	limit := a.config.UploadMaxBytes
	if limit <= 0 {
		limit = media.DefaultMaxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+maxBodyBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.respondErr(w, r, media.ErrTooLarge)
			return
		}
		a.respondErr(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	folder := r.FormValue("folder")
	if folder == "" {
		folder = "gallery"
	}
	if !folderPattern.MatchString(folder) {
		respondError(w, http.StatusBadRequest, "Invalid folder")
		return
	}

	result, err := a.uploader.Upload(r.Context(), media.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	}, media.Options{Preset: a.config.UploadPreset, Folder: folder})
	if err != nil {
		a.respondErr(w, r, err)
		return
	}

	a.log.Info().
		Str("asset", result.AssetID).
		Str("type", result.ResourceType).
		Int64("bytes", result.Bytes).
		Msg("Media uploaded")
	respondJSON(w, http.StatusCreated, result)
}
