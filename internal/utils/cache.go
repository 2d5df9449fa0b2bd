package utils

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"committeeDashboard/internal/models"
)

// ProfileCache keeps recently loaded profiles so the session check does
// not hit the database on every request. A nil cache caches nothing.
type ProfileCache struct {
	cache *gocache.Cache
}

// NewProfileCache creates a profile cache with the given TTL
func NewProfileCache(ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ProfileCache{cache: gocache.New(ttl, 2*ttl)}
}

func profileKey(id string) string { return "profile:" + id }

// Get returns a cached copy of the profile
func (pc *ProfileCache) Get(id string) (*models.Profile, bool) {
	if pc == nil {
		return nil, false
	}
	v, ok := pc.cache.Get(profileKey(id))
	if !ok {
		return nil, false
	}
	p, ok := v.(models.Profile)
	if !ok {
		return nil, false
	}
	return &p, true
}

// Set caches a copy of p
func (pc *ProfileCache) Set(p *models.Profile) {
	if pc == nil || p == nil || p.ID == "" {
		return
	}
	pc.cache.SetDefault(profileKey(p.ID), *p)
}

// Invalidate removes the cached profile
func (pc *ProfileCache) Invalidate(id string) {
	if pc == nil {
		return
	}
	pc.cache.Delete(profileKey(id))
}

// Size returns the number of cached profiles
func (pc *ProfileCache) Size() int {
	if pc == nil {
		return 0
	}
	return pc.cache.ItemCount()
}

// Clear removes all cached profiles
func (pc *ProfileCache) Clear() {
	if pc == nil {
		return
	}
	pc.cache.Flush()
}
