package acervo

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/acervo-cultural/acervo/pkg/auth"
	"github.com/acervo-cultural/acervo/pkg/media"
	"github.com/acervo-cultural/acervo/pkg/models"
	"github.com/acervo-cultural/acervo/pkg/service"
	"github.com/acervo-cultural/acervo/pkg/store"
)

// errBadRequest marks malformed input; respondErr reports it with status 400.
var errBadRequest = errors.New("bad request")

// maxBodyBytes bounds JSON request bodies. Uploads have their own limit.
const maxBodyBytes = 1 << 20

// respondJSON writes payload as JSON with status. A nil payload writes no body.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError writes {"error": message}.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondErr maps an error from the services to a status code. Unexpected
// errors are logged and reported without detail.
func (a *App) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrAlreadyLiked):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, errBadRequest),
		errors.Is(err, service.ErrNoSession),
		errors.Is(err, service.ErrUnknownItemType):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &verrs):
		respondError(w, http.StatusBadRequest, validationMessage(verrs))
	case errors.Is(err, store.ErrReadOnly):
		respondError(w, http.StatusServiceUnavailable, "the archive is read-only for maintenance")
	case errors.Is(err, auth.ErrInvalidToken):
		respondError(w, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, media.ErrTooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, err.Error())
	default:
		a.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decode reads a JSON body into dst and validates it when it is a struct with rules.
func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request payload: %v", errBadRequest, err)
	}
	return a.validate.Struct(dst)
}

func validationMessage(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return "invalid fields: " + strings.Join(parts, ", ")
}

// newValidator registers the archive's enum and date rules.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("event_type", func(fl validator.FieldLevel) bool {
		return models.EventType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("media_type", func(fl validator.FieldLevel) bool {
		return models.MediaType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("item_type", func(fl validator.FieldLevel) bool {
		return models.ItemType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return models.Role(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("asset_id", func(fl validator.FieldLevel) bool {
		return media.ValidAssetID(fl.Field().String())
	})
	_ = v.RegisterValidation("iso_date", func(fl validator.FieldLevel) bool {
		_, err := models.ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, name string) (int, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
	}
	return n, true, nil
}

// queryLimit reads ?limit=, defaulting to def and rejecting negatives.
func queryLimit(r *http.Request, def int) (int, error) {
	n, ok, err := queryInt(r, "limit")
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: invalid limit %d", errBadRequest, n)
	}
	return n, nil
}
