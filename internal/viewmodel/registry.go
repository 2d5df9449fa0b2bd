package viewmodel

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

type mount struct {
	owner string
	view  Mounted
}

// Registry holds the views mounted by open pages, keyed by a mount token.
// A view that is not looked up within the idle TTL is evicted and closed.
type Registry struct {
	items  *gocache.Cache
	idle   time.Duration
	logger *slog.Logger
}

// NewRegistry creates a registry whose mounts expire after idle.
func NewRegistry(idle time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	c := gocache.New(idle, idle/2)
	c.OnEvicted(func(token string, v interface{}) {
		if m, ok := v.(*mount); ok {
			m.view.Close()
			logger.Debug("view unmounted", "token", token, "view", m.view.Name())
		}
	})
	return &Registry{items: c, idle: idle, logger: logger}
}

// Mount registers v for owner and returns its token.
func (r *Registry) Mount(owner string, v Mounted) string {
	token := uuid.NewString()
	r.items.Set(token, &mount{owner: owner, view: v}, r.idle)
	return token
}

// Lookup returns the view for token if owner mounted it, refreshing its TTL.
func (r *Registry) Lookup(token, owner string) (Mounted, bool) {
	v, ok := r.items.Get(token)
	if !ok {
		return nil, false
	}
	m := v.(*mount)
	if m.owner != owner {
		return nil, false
	}
	r.items.Set(token, m, r.idle)
	return m.view, true
}

// Unmount closes and forgets token. Unknown tokens are ignored.
func (r *Registry) Unmount(token, owner string) {
	if _, ok := r.Lookup(token, owner); !ok {
		return
	}
	r.items.Delete(token)
}

// UnmountOwner closes every view mounted by owner.
func (r *Registry) UnmountOwner(owner string) int {
	n := 0
	for token, item := range r.items.Items() {
		if m, ok := item.Object.(*mount); ok && m.owner == owner {
			r.items.Delete(token)
			n++
		}
	}
	return n
}

// Count is the number of mounted views.
func (r *Registry) Count() int {
	return r.items.ItemCount()
}
