package newbill

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"billed/internal/core"
	"billed/internal/session"
	"billed/internal/store"
	"billed/internal/store/memory"
)

type fakeStore struct {
	mu        sync.Mutex
	creates   int
	updates   []core.Bill
	updateErr error
	updateCtx context.Context
	block     chan struct{} // when set, Update waits for it
	started   chan struct{}
}

func (f *fakeStore) Create(_ context.Context, file core.AttachedFile) (core.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	return core.Receipt{Key: "k", FileURL: store.ReceiptURL("k." + file.Check().Ext), FileName: file.Name}, nil
}

func (f *fakeStore) Update(ctx context.Context, b core.Bill) (core.Bill, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, b)
	f.updateCtx = ctx
	if f.updateErr != nil {
		return core.Bill{}, f.updateErr
	}
	return b, nil
}

type fakeNav struct {
	mu    sync.Mutex
	paths []string
}

func (n *fakeNav) Navigate(_ context.Context, path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

type fakeNotifier struct{ warnings []string }

func (n *fakeNotifier) Warn(_ context.Context, msg string) { n.warnings = append(n.warnings, msg) }

type harness struct {
	ctrl   *Controller
	store  *fakeStore
	nav    *fakeNav
	notify *fakeNotifier
	logs   *bytes.Buffer
}

func newHarness() *harness {
	h := &harness{store: &fakeStore{}, nav: &fakeNav{}, notify: &fakeNotifier{}, logs: &bytes.Buffer{}}
	logger := slog.New(slog.NewTextHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h.ctrl = New(session.User{Type: session.Employee, Email: "a@a"}, h.store, h.nav, h.notify, Options{
		SubmitTimeout: time.Second,
		Logger:        logger,
		Now:           func() time.Time { return time.Date(2022, 8, 9, 10, 0, 0, 0, time.UTC) },
		NewID:         func() string { return "bill-1" },
	})
	return h
}

func (h *harness) errorLogs() int {
	return strings.Count(h.logs.String(), "level=ERROR")
}

func validFields() Fields {
	return Fields{
		Type:       "Transports",
		Name:       "Vol de Test",
		Date:       "2022-08-08",
		Amount:     "300",
		VAT:        "80",
		Pct:        "20",
		Commentary: "Comment",
	}
}

func TestAttachFile_AcceptsAllowedTypes(t *testing.T) {
	for _, f := range []core.AttachedFile{
		{Name: "test.png", MimeType: "image/png"},
		{Name: "scan.JPG", MimeType: "image/jpeg"},
		{Name: "photo.jpeg"},
	} {
		t.Run(f.Name, func(t *testing.T) {
			h := newHarness()
			a, err := h.ctrl.AttachFile(context.Background(), f)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.FileName != f.Name || a.FileURL == "" {
				t.Fatalf("unexpected attachment: %+v", a)
			}
			if len(h.notify.warnings) != 0 {
				t.Fatalf("unexpected warnings: %v", h.notify.warnings)
			}
			if h.ctrl.State() != FileAttached {
				t.Fatalf("state = %v", h.ctrl.State())
			}
		})
	}
}

func TestAttachFile_RejectsOtherTypes(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	prev, err := h.ctrl.AttachFile(ctx, core.AttachedFile{Name: "first.png", MimeType: "image/png"})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	_, err = h.ctrl.AttachFile(ctx, core.AttachedFile{Name: "test.pdf", MimeType: "image/pdf"})
	var verr *core.ValidationError
	if !errors.As(err, &verr) || verr.Field != "file" {
		t.Fatalf("expected file ValidationError, got %v", err)
	}
	if len(h.notify.warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %v", h.notify.warnings)
	}
	if h.store.creates != 1 {
		t.Fatalf("rejected file reached the store: %d creates", h.store.creates)
	}
	if h.ctrl.Attachment() != prev {
		t.Fatalf("previous attachment lost: %+v", h.ctrl.Attachment())
	}
}

func TestSubmit_CreatesPendingBillAndNavigatesOnce(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	if _, err := h.ctrl.AttachFile(ctx, core.AttachedFile{Name: "test.png", MimeType: "image/png"}); err != nil {
		t.Fatalf("attach: %v", err)
	}

	saved, err := h.ctrl.Submit(ctx, validFields())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(h.store.updates) != 1 {
		t.Fatalf("expected one update, got %d", len(h.store.updates))
	}
	b := h.store.updates[0]
	if b.Status != core.StatusPending || b.Email != "a@a" || b.ID != "bill-1" {
		t.Fatalf("unexpected bill: %+v", b)
	}
	if b.Type != "Transports" || b.Name != "Vol de Test" || b.Date.String() != "2022-08-08" ||
		b.Amount.Cents != 30000 || b.VAT.Cents != 8000 || b.Pct != 20 || b.Commentary != "Comment" {
		t.Fatalf("fields not copied: %+v", b)
	}
	if b.FileName != "test.png" || b.FileURL != "/receipts/k.png" {
		t.Fatalf("attachment not copied: %+v", b)
	}
	if saved.ID != b.ID {
		t.Fatalf("saved bill mismatch: %+v", saved)
	}
	if len(h.nav.paths) != 1 || h.nav.paths[0] != BillsPath {
		t.Fatalf("expected one navigation to %s, got %v", BillsPath, h.nav.paths)
	}
	if h.ctrl.State() != Succeeded || !h.ctrl.Attachment().IsZero() {
		t.Fatalf("state = %v attachment = %+v", h.ctrl.State(), h.ctrl.Attachment())
	}
}

func TestSubmit_StoreFailureLogsOnceAndStays(t *testing.T) {
	h := newHarness()
	h.store.updateErr = errors.New("Erreur 500")
	ctx := context.Background()
	if _, err := h.ctrl.AttachFile(ctx, core.AttachedFile{Name: "test.png"}); err != nil {
		t.Fatalf("attach: %v", err)
	}

	_, err := h.ctrl.Submit(ctx, validFields())
	var serr *core.SubmissionError
	if !errors.As(err, &serr) || !strings.Contains(err.Error(), "Erreur 500") {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if n := h.errorLogs(); n != 1 {
		t.Fatalf("expected one error log, got %d:\n%s", n, h.logs.String())
	}
	if len(h.nav.paths) != 0 {
		t.Fatalf("navigated after failure: %v", h.nav.paths)
	}
	if h.ctrl.State() != Failed || h.ctrl.Attachment().FileName != "test.png" {
		t.Fatalf("state = %v attachment = %+v", h.ctrl.State(), h.ctrl.Attachment())
	}

	// Retry after failure is allowed.
	h.store.updateErr = nil
	if _, err := h.ctrl.Submit(ctx, validFields()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(h.nav.paths) != 1 {
		t.Fatalf("expected navigation after retry, got %v", h.nav.paths)
	}
}

func TestSubmit_SecondCallWhileInFlightIsIgnored(t *testing.T) {
	h := newHarness()
	h.store.block = make(chan struct{})
	h.store.started = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.Submit(context.Background(), validFields())
		done <- err
	}()
	<-h.store.started

	if h.ctrl.State() != Submitting {
		t.Fatalf("state = %v, want submitting", h.ctrl.State())
	}
	if _, err := h.ctrl.Submit(context.Background(), validFields()); !errors.Is(err, core.ErrSubmitInFlight) {
		t.Fatalf("expected ErrSubmitInFlight, got %v", err)
	}
	if _, err := h.ctrl.AttachFile(context.Background(), core.AttachedFile{Name: "late.png"}); !errors.Is(err, core.ErrSubmitInFlight) {
		t.Fatalf("expected attach to be refused while submitting, got %v", err)
	}

	close(h.store.block)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if len(h.store.updates) != 1 || len(h.nav.paths) != 1 {
		t.Fatalf("updates=%d navigations=%d", len(h.store.updates), len(h.nav.paths))
	}
}

func TestSubmit_ClosedControllerDoesNotNavigate(t *testing.T) {
	h := newHarness()
	h.store.block = make(chan struct{})
	h.store.started = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.Submit(context.Background(), validFields())
		done <- err
	}()
	<-h.store.started
	h.ctrl.Close()
	close(h.store.block)

	if err := <-done; err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(h.store.updates) != 1 {
		t.Fatal("store outcome should still be applied")
	}
	if len(h.nav.paths) != 0 {
		t.Fatalf("closed controller navigated: %v", h.nav.paths)
	}
	if h.ctrl.Live() {
		t.Fatal("controller should not be live")
	}
}

func TestSubmit_IgnoresRequestCancellation(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.ctrl.Submit(ctx, validFields()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := h.store.updateCtx.Err(); err != nil {
		t.Fatalf("store saw a cancelled context: %v", err)
	}
	if _, ok := h.store.updateCtx.Deadline(); !ok {
		t.Fatal("store context should carry the submit timeout")
	}
}

func TestSubmit_ValidatesFields(t *testing.T) {
	tests := []struct {
		field  string
		mutate func(*Fields)
	}{
		{"type", func(f *Fields) { f.Type = " " }},
		{"name", func(f *Fields) { f.Name = "" }},
		{"date", func(f *Fields) { f.Date = "2023-02-30" }},
		{"amount", func(f *Fields) { f.Amount = "0" }},
		{"amount", func(f *Fields) { f.Amount = "abc" }},
		{"vat", func(f *Fields) { f.VAT = "-1" }},
		{"vat", func(f *Fields) { f.VAT = "" }},
		{"pct", func(f *Fields) { f.Pct = "" }},
		{"pct", func(f *Fields) { f.Pct = "101" }},
		{"commentary", func(f *Fields) { f.Commentary = strings.Repeat("x", 1001) }},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			h := newHarness()
			f := validFields()
			tt.mutate(&f)

			_, err := h.ctrl.Submit(context.Background(), f)
			var verr *core.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("expected ValidationError on %s, got %v", tt.field, err)
			}
			if len(h.store.updates) != 0 || len(h.nav.paths) != 0 {
				t.Fatal("invalid form reached the store")
			}
			if h.ctrl.State() != Idle {
				t.Fatalf("state changed to %v", h.ctrl.State())
			}
		})
	}
}

func TestSubmit_CommaDecimals(t *testing.T) {
	h := newHarness()
	f := validFields()
	f.Amount, f.VAT = "12,34", "2,06"
	b, err := h.ctrl.Submit(context.Background(), f)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if b.Amount.Cents != 1234 || b.VAT.Cents != 206 {
		t.Fatalf("got %d / %d", b.Amount.Cents, b.VAT.Cents)
	}
}

func TestReset(t *testing.T) {
	h := newHarness()
	if _, err := h.ctrl.AttachFile(context.Background(), core.AttachedFile{Name: "a.png"}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	h.ctrl.Reset()
	if h.ctrl.State() != Idle || !h.ctrl.Attachment().IsZero() {
		t.Fatalf("state = %v attachment = %+v", h.ctrl.State(), h.ctrl.Attachment())
	}
}

func TestStateString(t *testing.T) {
	if Submitting.String() != "submitting" || State(42).String() != "unknown" {
		t.Fatal("unexpected state names")
	}
}

func TestWithMemoryStore(t *testing.T) {
	ctx := context.Background()
	mem := memory.New(nil)
	ctrl := New(session.User{Type: session.Employee, Email: "a@a"}, mem.Bills(), &fakeNav{}, &fakeNotifier{}, Options{})

	a, err := ctrl.AttachFile(ctx, core.AttachedFile{Name: "ticket.jpg", MimeType: "image/jpeg", Data: []byte{0xff, 0xd8}})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	saved, err := ctrl.Submit(ctx, validFields())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	got, err := mem.Get(ctx, saved.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.FileURL != a.FileURL || got.Status != core.StatusPending {
		t.Fatalf("unexpected stored bill: %+v", got)
	}
	key := strings.TrimPrefix(a.FileURL, "/receipts/")
	if f, err := mem.Open(ctx, key); err != nil || len(f.Data) != 2 {
		t.Fatalf("receipt not stored: %+v %v", f, err)
	}
}
