package tenant

import (
	"context"
	"sort"
)

// MemoryResolver is a fixed in-memory Resolver, used by tests and by
// callers that load tenant configuration from somewhere other than
// Postgres (e.g. a config file during development).
type MemoryResolver struct {
	configs map[string]Config
}

func NewMemoryResolver(configs ...Config) *MemoryResolver {
	m := &MemoryResolver{configs: make(map[string]Config, len(configs))}
	for _, c := range configs {
		m.configs[c.TenantID] = c
	}
	return m
}

func (m *MemoryResolver) Get(_ context.Context, tenantID string) (Config, error) {
	if c, ok := m.configs[tenantID]; ok {
		return c, nil
	}
	return Config{TenantID: tenantID}, nil
}

func (m *MemoryResolver) ListTenantIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.configs))
	for id := range m.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
