// Package tenant defines the per-tenant configuration snapshot and the
// Resolver that produces it from the external credentials store.
package tenant

import (
	"context"
	"fmt"
	"time"
)

// Config is an immutable per-sync snapshot. It is created by a
// Resolver at sync start and discarded at sync end; nothing
// downstream mutates it.
type Config struct {
	TenantID string
	Endpoint string
	Token    string
	// Projects is the set of project keys to search. Order is not
	// significant; QueryPlanner iterates it deterministically by sorting.
	Projects []string
	// Labels maps project key to its set of labels. An entry with an empty
	// slice means "all labels for that project".
	Labels map[string][]string
	// JQL, if set, overrides the generated query entirely.
	JQL string
	// Timeout is the per-request timeout for this tenant's Jira calls.
	Timeout time.Duration
}

// Validate enforces the data-model invariant: endpoint and token are
// required, and at least one of Projects or JQL must be non-empty.
func (c Config) Validate() error {
	if c.Endpoint == "" || c.Token == "" {
		return fmt.Errorf("%w: tenant %s", errMissingEndpointOrToken, c.TenantID)
	}
	if len(c.Projects) == 0 && c.JQL == "" {
		return fmt.Errorf("%w: tenant %s", errNoProjectsOrJQL, c.TenantID)
	}
	return nil
}

// HasCredentials reports whether endpoint and token are both present,
// independent of the projects/JQL invariant. BatchOrchestrator uses this to
// pre-filter tenants before any coordinator starts.
func (c Config) HasCredentials() bool {
	return c.Endpoint != "" && c.Token != ""
}

// Resolver reads tenant configuration from the external credentials store.
// Implementations never decrypt anything: the store is expected to hand
// back plaintext tokens already, per the external-collaborator contract.
type Resolver interface {
	Get(ctx context.Context, tenantID string) (Config, error)
	// ListTenantIDs returns every tenant id known to the store, used by
	// BatchOrchestrator's --all-users mode.
	ListTenantIDs(ctx context.Context) ([]string, error)
}
