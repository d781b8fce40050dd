// Package planner builds the JQL query for a tenant's sync run from its
// tenant.Config and its last watermark.
package planner

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/evalgo/jirasync/store"
	"github.com/evalgo/jirasync/tenant"
)

// DeepHistoryWindow is the lookback used when a tenant has never
// synced before: ten years. ForceFullSyncWindow is the lookback used
// when the caller explicitly requests a full resync: the last seven
// days, so a full resync catches recent drift rather than replaying
// history the watermark already covers. Both are overridable via
// config.JiraConfig, whose values the CLI passes to New; these are just
// the defaults a planner built with zero values falls back to.
const (
	DeepHistoryWindow   = 3650 * 24 * time.Hour
	ForceFullSyncWindow = 7 * 24 * time.Hour
)

// Planner builds JQL deterministically from a tenant's configuration and
// watermark. It performs no I/O and holds no state.
type Planner struct {
	DeepHistoryWindow   time.Duration
	ForceFullSyncWindow time.Duration
}

// New builds a Planner with the given lookback windows. A zero duration
// falls back to the package default.
func New(deepHistoryWindow, forceFullSyncWindow time.Duration) *Planner {
	p := &Planner{
		DeepHistoryWindow:   deepHistoryWindow,
		ForceFullSyncWindow: forceFullSyncWindow,
	}
	if p.DeepHistoryWindow == 0 {
		p.DeepHistoryWindow = DeepHistoryWindow
	}
	if p.ForceFullSyncWindow == 0 {
		p.ForceFullSyncWindow = ForceFullSyncWindow
	}
	return p
}

// Plan builds the JQL for one sync run. watermark may be nil (no prior
// successful run). now is injected so tests get a deterministic floor
// date.
func (p *Planner) Plan(cfg tenant.Config, watermark *store.Watermark, forceFullSync bool, now time.Time) string {
	if cfg.JQL != "" {
		return cfg.JQL
	}

	clauses := projectClauses(cfg)
	var body string
	if len(clauses) > 0 {
		body = "(" + strings.Join(clauses, " OR ") + ")"
	}

	floor := p.floorDate(watermark, forceFullSync, now)
	updatedClause := fmt.Sprintf("updated >= '%s'", floor)

	var jql string
	if body != "" {
		jql = body + " AND " + updatedClause
	} else {
		jql = updatedClause
	}

	return jql + " ORDER BY updated DESC"
}

func (p *Planner) floorDate(watermark *store.Watermark, forceFullSync bool, now time.Time) string {
	if forceFullSync {
		return now.Add(-p.ForceFullSyncWindow).Format("2006-01-02")
	}
	if watermark == nil || watermark.LastRun.IsZero() {
		return now.Add(-p.DeepHistoryWindow).Format("2006-01-02")
	}
	return watermark.LastRun.Format("2006-01-02")
}

// projectClauses builds one disjunct per project, each scoped by that
// project's labels when present. Projects are sorted so the generated
// JQL — and therefore its cache fingerprint — is stable across runs that
// see the same tenant.Config in a different map-iteration order.
func projectClauses(cfg tenant.Config) []string {
	projects := make([]string, len(cfg.Projects))
	copy(projects, cfg.Projects)
	sort.Strings(projects)

	clauses := make([]string, 0, len(projects))
	for _, proj := range projects {
		clause := fmt.Sprintf("project = %s", proj)
		if labels := cfg.Labels[proj]; len(labels) > 0 {
			quoted := make([]string, len(labels))
			for i, l := range labels {
				quoted[i] = fmt.Sprintf("%q", l)
			}
			clause += fmt.Sprintf(" AND labels IN (%s)", strings.Join(quoted, ", "))
		}
		clauses = append(clauses, clause)
	}
	return clauses
}
