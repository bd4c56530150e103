package http

import (
	"bytes"
	"context"
	"errors"
	"mime"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"billed/internal/core"
	applog "billed/internal/log"
	"billed/internal/metrics"
	"billed/internal/session"
	"billed/internal/views"
)

const listTimeout = 10 * time.Second

// handleBills renders the bills page. The page shows the loading view and
// fetches ?partial=1, which renders the list itself.
func (s *Server) handleBills(w http.ResponseWriter, r *http.Request) {
	u, _ := session.FromContext(r.Context())

	if r.URL.Query().Get("partial") == "1" {
		s.renderBillList(w, r, u)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.BillList().Render(&buf, nil, views.Loading()); err != nil {
		applog.LogError(r.Context(), "Template execution failed", err, applog.OpRender, nil)
		InternalServerError("Erreur de rendu").Write(w)
		return
	}
	s.renderPage(w, r, http.StatusOK, "bills.html", views.Page{
		Title:  "Mes notes de frais",
		Active: "bills",
		List:   views.HTMLFragment(buf.String()),
	})
}

// renderBillList writes the list partial. A failed fetch renders the error
// view with status 200 so htmx swaps it in.
func (s *Server) renderBillList(w http.ResponseWriter, r *http.Request, u session.User) {
	bills, err := s.fetchBills(r.Context(), u)
	mode := views.Normal()
	if err != nil {
		var lerr *core.ListFetchError
		if !errors.As(err, &lerr) {
			lerr = &core.ListFetchError{Err: err}
		}
		applog.LogError(r.Context(), "Failed to list bills", lerr, applog.OpList,
			applog.NewFields().WithUser(u.Email, string(u.Type)))
		mode = views.Error(lerr.Error())
	}

	var buf bytes.Buffer
	if err := s.templates.BillList().Render(&buf, bills, mode); err != nil {
		applog.LogError(r.Context(), "Template execution failed", err, applog.OpRender, nil)
		InternalServerError("Erreur de rendu").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(buf.Bytes()).Write(w)
}

// fetchBills loads the bills u may see. Concurrent loads for the same user
// share one store call, which is not cancelled by any single request.
func (s *Server) fetchBills(ctx context.Context, u session.User) ([]core.Bill, error) {
	key := string(u.Type) + ":" + u.Email
	v, err, shared := s.lists.Do(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), listTimeout)
		defer cancel()
		bills, err := s.store.Bills().List(lctx)
		if err != nil {
			return nil, &core.ListFetchError{Err: err}
		}
		return visibleTo(u, bills), nil
	})

	switch {
	case err != nil:
		metrics.BillListFetches.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, err
	case shared:
		metrics.BillListFetches.WithLabelValues(metrics.OutcomeShared).Inc()
	default:
		metrics.BillListFetches.WithLabelValues(metrics.OutcomeSucceeded).Inc()
	}
	return v.([]core.Bill), nil
}

// handleReceiptModal renders the receipt modal for a bill the user can see.
func (s *Server) handleReceiptModal(w http.ResponseWriter, r *http.Request) {
	u, _ := session.FromContext(r.Context())
	id := chi.URLParam(r, "id")

	b, err := s.store.Bills().Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			NotFoundError("Note de frais introuvable").Write(w)
			return
		}
		applog.LogError(r.Context(), "Failed to load bill", err, applog.OpList, applog.NewFields().WithBill(id, "", 0))
		InternalServerError("Erreur de chargement").Write(w)
		return
	}
	if !canSee(u, b) {
		NotFoundError("Note de frais introuvable").Write(w)
		return
	}

	width := s.config.ModalWidth
	if v, err := strconv.Atoi(r.URL.Query().Get("width")); err == nil && v > 0 {
		width = v
	}
	s.renderPartial(r, http.StatusOK, "receipt_modal", views.NewReceiptModal(b, width)).Write(w)
}

// handleReceipt serves stored receipt bytes.
func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	f, err := s.store.Bills().Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.LogError(r.Context(), "Failed to open receipt", err, applog.OpList, applog.NewFields())
		http.Error(w, "receipt unavailable", http.StatusInternalServerError)
		return
	}

	contentType := f.MimeType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mime.TypeByExtension(path.Ext(key))
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Data)
}
