// Package newbill drives the new bill form: receipt attachment, bill
// assembly and submission to the store.
package newbill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"billed/internal/core"
	"billed/internal/metrics"
	"billed/internal/session"
	"billed/internal/store"
)

// BillsPath is where a successful submission navigates.
const BillsPath = "/bills"

const defaultSubmitTimeout = 15 * time.Second

// Navigator moves the user to another page.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

// Notifier shows a transient message to the user.
type Notifier interface {
	Warn(ctx context.Context, message string)
}

// Store is what the form needs from persistence.
type Store interface {
	store.ReceiptCreator
	store.BillUpdater
}

type State int

const (
	Idle State = iota
	FileAttached
	Submitting
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FileAttached:
		return "file_attached"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Attachment references the stored receipt of the form.
type Attachment struct {
	FileURL  string
	FileName string
}

func (a Attachment) IsZero() bool { return a.FileURL == "" && a.FileName == "" }

// Fields are the raw form inputs.
type Fields struct {
	Type       string
	Name       string
	Date       string
	Amount     string
	VAT        string
	Pct        string
	Commentary string
}

type Options struct {
	SubmitTimeout time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
	NewID         func() string
}

// Controller is the state of one user's new bill form. It is safe for
// concurrent use; at most one submission is outstanding at a time.
type Controller struct {
	user   session.User
	store  Store
	nav    Navigator
	notify Notifier

	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string

	mu         sync.Mutex
	state      State
	attachment Attachment
	closed     bool
}

func New(user session.User, s Store, nav Navigator, notify Notifier, opts Options) *Controller {
	c := &Controller{
		user:    user,
		store:   s,
		nav:     nav,
		notify:  notify,
		timeout: opts.SubmitTimeout,
		logger:  opts.Logger,
		now:     opts.Now,
		newID:   opts.NewID,
	}
	if c.timeout <= 0 {
		c.timeout = defaultSubmitTimeout
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	c.logger = c.logger.With("component", "newbill", "user", user.Email)
	return c
}

func (c *Controller) User() session.User { return c.user }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Attachment() Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attachment
}

// Live reports whether the form is still shown, i.e. Close was not called.
func (c *Controller) Live() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Close marks the form as torn down. Outstanding work still completes but
// no longer navigates or notifies.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Reset returns the form to Idle and forgets the attachment. It does nothing
// while a submission is outstanding.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Submitting {
		return
	}
	c.state = Idle
	c.attachment = Attachment{}
}

// AttachFile stores a receipt and makes it the form's attachment. Files
// outside the png/jpg/jpeg allow-list raise exactly one warning and leave
// the previous attachment in place.
func (c *Controller) AttachFile(ctx context.Context, file core.AttachedFile) (Attachment, error) {
	check := file.Check()
	if !check.Accepted {
		metrics.ReceiptUploads.WithLabelValues(metrics.OutcomeRejected).Inc()
		c.logger.InfoContext(ctx, "Receipt rejected", "file", file.Name, "ext", check.Ext, "reason", check.Reason)
		if c.Live() {
			c.notify.Warn(ctx, check.Reason)
		}
		return Attachment{}, &core.ValidationError{Field: "file", Reason: check.Reason}
	}

	if c.State() == Submitting {
		return Attachment{}, core.ErrSubmitInFlight
	}

	receipt, err := c.store.Create(ctx, file)
	if err != nil {
		metrics.ReceiptUploads.WithLabelValues(metrics.OutcomeFailed).Inc()
		c.logger.ErrorContext(ctx, "Failed to store receipt", "file", file.Name, "error", err)
		return Attachment{}, fmt.Errorf("store receipt: %w", err)
	}

	a := Attachment{FileURL: receipt.FileURL, FileName: receipt.FileName}
	c.mu.Lock()
	c.attachment = a
	if c.state != Submitting {
		c.state = FileAttached
	}
	c.mu.Unlock()

	metrics.ReceiptUploads.WithLabelValues(metrics.OutcomeAccepted).Inc()
	c.logger.InfoContext(ctx, "Receipt attached", "file", a.FileName, "url", a.FileURL)
	return a, nil
}

// Submit assembles a pending bill from fields and the current attachment
// and hands it to the store. A call made while another submission is
// outstanding is ignored and returns core.ErrSubmitInFlight.
//
// The store call is not tied to ctx cancellation; it is bounded by the
// submit timeout only. On success the user is sent to the bill list once.
func (c *Controller) Submit(ctx context.Context, f Fields) (core.Bill, error) {
	c.mu.Lock()
	if c.state == Submitting {
		c.mu.Unlock()
		metrics.BillSubmissions.WithLabelValues(metrics.OutcomeIgnored).Inc()
		c.logger.DebugContext(ctx, "Ignoring submit while another is in flight")
		return core.Bill{}, core.ErrSubmitInFlight
	}

	bill, err := c.build(f)
	if err != nil {
		c.mu.Unlock()
		metrics.BillSubmissions.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return core.Bill{}, err
	}
	bill.FileURL = c.attachment.FileURL
	bill.FileName = c.attachment.FileName
	c.state = Submitting
	c.mu.Unlock()

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	saved, err := c.store.Update(sctx, bill)
	cancel()

	c.mu.Lock()
	live := !c.closed
	if err != nil {
		c.state = Failed
		c.mu.Unlock()
		metrics.BillSubmissions.WithLabelValues(metrics.OutcomeFailed).Inc()
		c.logger.ErrorContext(ctx, "Failed to submit bill", "id", bill.ID, "type", bill.Type, "error", err)
		return core.Bill{}, &core.SubmissionError{Err: err}
	}
	c.state = Succeeded
	c.attachment = Attachment{}
	c.mu.Unlock()

	metrics.BillSubmissions.WithLabelValues(metrics.OutcomeSucceeded).Inc()
	c.logger.InfoContext(ctx, "Bill submitted", "id", saved.ID, "type", saved.Type, "amount_cents", saved.Amount.Cents)
	if live {
		c.nav.Navigate(ctx, BillsPath)
	}
	return saved, nil
}

// build validates the fields and returns the pending bill they describe.
func (c *Controller) build(f Fields) (core.Bill, error) {
	typ := strings.TrimSpace(f.Type)
	if typ == "" {
		return core.Bill{}, core.NewValidationError("type", core.ErrEmptyType)
	}
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return core.Bill{}, core.NewValidationError("name", core.ErrEmptyName)
	}
	date, err := core.ParseDate(f.Date)
	if err != nil {
		return core.Bill{}, core.NewValidationError("date", err)
	}
	amount, err := core.ParseDecimalToCents(f.Amount)
	if err != nil {
		return core.Bill{}, core.NewValidationError("amount", err)
	}
	vat, err := core.ParseNonNegativeCents(f.VAT)
	if err != nil {
		return core.Bill{}, core.NewValidationError("vat", core.ErrInvalidVAT)
	}
	pct, err := strconv.Atoi(strings.TrimSpace(f.Pct))
	if err != nil {
		return core.Bill{}, core.NewValidationError("pct", core.ErrInvalidPct)
	}

	b := core.Bill{
		ID:         c.newID(),
		Email:      c.user.Email,
		Type:       typ,
		Name:       name,
		Date:       date,
		Amount:     core.Money{Cents: amount},
		VAT:        core.Money{Cents: vat},
		Pct:        pct,
		Commentary: strings.TrimSpace(f.Commentary),
		Status:     core.StatusPending,
		CreatedAt:  c.now().UTC(),
	}
	if err := b.Validate(); err != nil {
		return core.Bill{}, core.NewValidationError(fieldOf(err), err)
	}
	return b, nil
}

func fieldOf(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidPct):
		return "pct"
	case errors.Is(err, core.ErrNameTooLong):
		return "name"
	case errors.Is(err, core.ErrCommentaryTooLong):
		return "commentary"
	case errors.Is(err, core.ErrEmptyOwner):
		return "email"
	}
	return ""
}
