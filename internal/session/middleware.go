package session

import (
	"errors"
	"log/slog"
	"net/http"
)

// Load puts the session user, when present and valid, into the request
// context. Requests without a session pass through unchanged.
func (m *Manager) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := m.FromRequest(r)
		if err == nil {
			r = r.WithContext(WithUser(r.Context(), u))
		} else if !errors.Is(err, ErrMissingToken) {
			slog.DebugContext(r.Context(), "Ignoring invalid session cookie", "error", err)
			m.ClearCookie(w)
		}
		next.ServeHTTP(w, r)
	})
}

// Require sends requests without a session user to the login page. HTMX
// requests get an HX-Redirect so the whole page navigates.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("HX-Request") == "true" {
			w.Header().Set("HX-Redirect", "/")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})
}
