package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	applog "billed/internal/log"
	"billed/internal/session"
	"billed/internal/views"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the templates and, when supported, the store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{
		"templates":   "ok",
		"forms":       s.forms.Size(),
		"rate_limits": s.rateLimiter.ActiveClients(),
	}

	if p, ok := s.store.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			checks["store"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	} else {
		checks["store"] = "ok"
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleIndex shows the login page, or sends signed-in users to their bills.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if _, ok := session.FromContext(r.Context()); ok {
		http.Redirect(w, r, "/bills", http.StatusSeeOther)
		return
	}
	s.renderPage(w, r, http.StatusOK, "login.html", views.Page{Title: "Billed"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderPage(w, r, http.StatusBadRequest, "login.html", views.Page{Title: "Billed", Error: "Requête invalide"})
		return
	}
	u := session.User{
		Type:  session.ParseType(r.PostForm.Get("type")),
		Email: sanitizeInput(r.PostForm.Get("email")),
	}
	if err := u.Validate(); err != nil {
		s.renderPage(w, r, http.StatusUnprocessableEntity, "login.html", views.Page{Title: "Billed", Error: "Adresse e-mail invalide"})
		return
	}
	if err := s.sessions.SetCookie(w, u); err != nil {
		applog.LogError(r.Context(), "Failed to issue session", err, applog.OpLogin, applog.NewFields().WithUser(u.Email, string(u.Type)))
		s.renderPage(w, r, http.StatusInternalServerError, "login.html", views.Page{Title: "Billed", Error: "Connexion impossible"})
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "User logged in",
		applog.FieldEmail, u.Email, applog.FieldUserType, string(u.Type))
	http.Redirect(w, r, "/bills", http.StatusSeeOther)
}

// handleLogout clears the session and forgets the user's form.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if u, ok := session.FromContext(r.Context()); ok {
		s.forms.Drop(u)
	}
	s.sessions.ClearCookie(w)
	if isHTMX(r) {
		NewHTMXResponse().Redirect("/").Write(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// renderPage executes a full page template. Render failures are logged and
// answered with a 500.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, name string, page views.Page) {
	if u, ok := session.FromContext(r.Context()); ok && page.User == nil {
		page.User = &u
	}
	html, err := s.templates.HTML(name, page)
	if err != nil {
		applog.LogError(r.Context(), "Template execution failed", err, applog.OpRender, nil)
		InternalServerError("Erreur de rendu").Write(w)
		return
	}
	NewHTMXResponse().Status(status).BodyHTML([]byte(html)).Write(w)
}

// renderPartial executes a partial template into a builder so callers can
// add triggers before writing.
func (s *Server) renderPartial(r *http.Request, status int, name string, data any) *HTMXResponseBuilder {
	html, err := s.templates.HTML(name, data)
	if err != nil {
		applog.LogError(r.Context(), "Template execution failed", err, applog.OpRender, nil)
		return InternalServerError("Erreur de rendu")
	}
	return NewHTMXResponse().Status(status).BodyHTML([]byte(html))
}
