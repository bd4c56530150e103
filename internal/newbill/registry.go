package newbill

import (
	"time"

	"billed/internal/cache"
	"billed/internal/metrics"
	"billed/internal/session"
)

// Registry keeps one Controller per session user. Controllers idle for
// longer than the TTL, or pushed out by capacity, are closed.
type Registry struct {
	controllers *cache.LRUCache[*Controller]
	create      func(session.User) *Controller
}

func NewRegistry(maxSize int, ttl time.Duration, create func(session.User) *Controller) *Registry {
	c := cache.NewLRUCache[*Controller](maxSize, ttl)
	c.OnEvict(func(_ string, ctrl *Controller) {
		ctrl.Close()
		metrics.ActiveForms.Dec()
	})
	return &Registry{controllers: c, create: create}
}

func key(u session.User) string {
	return string(u.Type) + ":" + u.Email
}

// Get returns the user's controller, creating it on first use.
func (r *Registry) Get(u session.User) *Controller {
	return r.controllers.GetOrCreate(key(u), func() *Controller {
		metrics.ActiveForms.Inc()
		return r.create(u)
	})
}

// Drop closes and forgets the user's controller, e.g. on logout.
func (r *Registry) Drop(u session.User) {
	r.controllers.Delete(key(u))
}

// CleanExpired implements cache.Cleaner.
func (r *Registry) CleanExpired() int {
	return r.controllers.CleanExpired()
}

func (r *Registry) Size() int {
	return r.controllers.Size()
}

// CloseAll closes and forgets every controller.
func (r *Registry) CloseAll() int {
	return r.controllers.Purge()
}
