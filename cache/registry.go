package cache

import "sync"

// Registry owns one RequestCache per tenant. It is explicitly constructed
// and passed around as a dependency — never a package-level singleton —
// so tests and multiple coordinator instances never share state by
// accident.
type Registry struct {
	mu     sync.Mutex
	caches map[string]*RequestCache
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{caches: make(map[string]*RequestCache)}
}

// GetOrCreate returns the tenant's RequestCache, creating one wrapping gw
// if this is the first time the tenant has been seen.
func (r *Registry) GetOrCreate(tenantID string, gw gateway) *RequestCache {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.caches[tenantID]; ok {
		return c
	}
	c := NewRequestCache(gw)
	r.caches[tenantID] = c
	return c
}

// TotalStats sums Stats across every tenant currently registered.
func (r *Registry) TotalStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total Stats
	for _, c := range r.caches {
		s := c.Stats()
		total.Hits += s.Hits
		total.Misses += s.Misses
		total.CachedKeys += s.CachedKeys
		total.TotalRequests += s.TotalRequests
		total.APICalls += s.APICalls
	}
	return total
}

// ClearAll clears every tenant's cache without removing the tenants
// themselves from the registry.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.caches {
		c.Clear()
	}
}

// TenantIDs returns the tenants currently registered, in no particular
// order.
func (r *Registry) TenantIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.caches))
	for id := range r.caches {
		ids = append(ids, id)
	}
	return ids
}
