package http

import (
	"context"
	"sync"

	"billed/internal/core"
	"billed/internal/session"
)

// effects collects the UI side effects a controller asks for while a
// request is being handled. Handlers turn them into response headers.
type effects struct {
	mu       sync.Mutex
	redirect string
	warnings []string
}

type effectsKey struct{}

func withEffects(ctx context.Context) (context.Context, *effects) {
	e := &effects{}
	return context.WithValue(ctx, effectsKey{}, e), e
}

func effectsFrom(ctx context.Context) *effects {
	e, _ := ctx.Value(effectsKey{}).(*effects)
	return e
}

func (e *effects) Redirect() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.redirect
}

func (e *effects) Warnings() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.warnings...)
}

// apply adds the collected effects to b.
func (e *effects) apply(b *HTMXResponseBuilder) *HTMXResponseBuilder {
	if path := e.Redirect(); path != "" {
		b.Redirect(path)
	}
	for _, w := range e.Warnings() {
		b.TriggerWarningNotification(w)
	}
	return b
}

// uiEffects is the Navigator and Notifier given to form controllers. It
// records into the effects of the request carried by ctx; calls made
// outside a request are dropped.
type uiEffects struct{}

func (uiEffects) Navigate(ctx context.Context, path string) {
	if e := effectsFrom(ctx); e != nil {
		e.mu.Lock()
		e.redirect = path
		e.mu.Unlock()
	}
}

func (uiEffects) Warn(ctx context.Context, message string) {
	if e := effectsFrom(ctx); e != nil {
		e.mu.Lock()
		e.warnings = append(e.warnings, message)
		e.mu.Unlock()
	}
}

// visibleTo filters bills down to those u may see. Admins see all.
func visibleTo(u session.User, bills []core.Bill) []core.Bill {
	if u.IsAdmin() {
		return bills
	}
	out := make([]core.Bill, 0, len(bills))
	for _, b := range bills {
		if b.Email == u.Email {
			out = append(out, b)
		}
	}
	return out
}

func canSee(u session.User, b core.Bill) bool {
	return u.IsAdmin() || b.Email == u.Email
}
