package acervo

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/acervo-cultural/acervo/pkg/auth"
	"github.com/acervo-cultural/acervo/pkg/models"
	"github.com/acervo-cultural/acervo/pkg/session"
)

const (
	sessionCookie = "acervo_session"
	sessionHeader = "X-Session-ID"
)

// statusRecorder captures the status code. It forwards Hijack so websocket
// upgrades still work behind it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// instrument logs every request and records it in the HTTP metrics.
func (a *App) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		a.metrics.RequestsInFlight.Inc()
		defer a.metrics.RequestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		a.metrics.ObserveRequest(r.Method, route, rec.status, elapsed)
		event := a.log.Info()
		if rec.status >= http.StatusInternalServerError {
			event = a.log.Error()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", route).
			Int("status", rec.status).
			Dur("duration", elapsed).
			Msg("Request")
	})
}

// withSession attaches the browsing-session id from the cookie or header,
// issuing a new one when the client has none.
func (a *App) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(sessionHeader)
		if !session.Valid(id) {
			id = ""
			if c, err := r.Cookie(sessionCookie); err == nil && session.Valid(c.Value) {
				id = c.Value
			}
		}
		if id == "" {
			id = session.NewID()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		w.Header().Set(sessionHeader, id)
		next.ServeHTTP(w, r.WithContext(session.WithID(r.Context(), id)))
	})
}

// withIdentity verifies a bearer token when one is sent. Requests without a
// token continue anonymously; requests with a bad token are rejected.
func (a *App) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		if a.verifier == nil {
			respondError(w, http.StatusUnauthorized, "authentication is not configured")
			return
		}
		id, err := a.verifier.Verify(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// requireUser rejects anonymous requests.
func (a *App) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			respondError(w, http.StatusUnauthorized, "sign-in required")
			return
		}
		next(w, r)
	}
}

// requireRole rejects users whose mirrored profile role fails allowed.
func (a *App) requireRole(allowed func(models.Role) bool, next http.HandlerFunc) http.HandlerFunc {
	return a.requireUser(func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.FromContext(r.Context())
		profile, err := a.users.GetByID(r.Context(), id.UserID)
		if err != nil {
			a.respondErr(w, r, err)
			return
		}
		if profile == nil || !allowed(profile.Role) {
			respondError(w, http.StatusForbidden, "insufficient role")
			return
		}
		next(w, r)
	})
}

func (a *App) requireEditor(next http.HandlerFunc) http.HandlerFunc {
	return a.requireRole(models.Role.CanEdit, next)
}

func (a *App) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return a.requireRole(func(r models.Role) bool { return r == models.RoleAdmin }, next)
}
