package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/evalgo/jirasync/store"
	"github.com/evalgo/jirasync/tenant"
)

var fixedNow = time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

func TestPlan_VerbatimJQLOverridesEverything(t *testing.T) {
	p := New(0, 0)
	cfg := tenant.Config{JQL: "project = X AND status = Open"}

	got := p.Plan(cfg, nil, false, fixedNow)

	assert.Equal(t, "project = X AND status = Open", got)
}

func TestPlan_NoWatermarkUsesDeepHistory(t *testing.T) {
	p := New(0, 0)
	cfg := tenant.Config{Projects: []string{"PROJ"}}

	got := p.Plan(cfg, nil, false, fixedNow)

	floor := fixedNow.Add(-DeepHistoryWindow).Format("2006-01-02")
	assert.Contains(t, got, "project = PROJ")
	assert.Contains(t, got, "updated >= '"+floor+"'")
	assert.Contains(t, got, "ORDER BY updated DESC")
}

func TestPlan_ForceFullSyncOverridesWatermark(t *testing.T) {
	p := New(0, 0)
	cfg := tenant.Config{Projects: []string{"PROJ"}}
	wm := &store.Watermark{LastRun: fixedNow.Add(-100 * 24 * time.Hour)}

	got := p.Plan(cfg, wm, true, fixedNow)

	floor := fixedNow.Add(-ForceFullSyncWindow).Format("2006-01-02")
	assert.Contains(t, got, "updated >= '"+floor+"'")
}

func TestPlan_WatermarkSetsFloorDate(t *testing.T) {
	p := New(0, 0)
	cfg := tenant.Config{Projects: []string{"PROJ"}}
	lastRun := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
	wm := &store.Watermark{LastRun: lastRun}

	got := p.Plan(cfg, wm, false, fixedNow)

	assert.Contains(t, got, "updated >= '2026-06-01'")
}

func TestPlan_MultipleProjectsJoinedByOr(t *testing.T) {
	p := New(0, 0)
	cfg := tenant.Config{Projects: []string{"B", "A"}}

	got := p.Plan(cfg, nil, false, fixedNow)

	assert.Contains(t, got, "project = A OR project = B")
}

func TestPlan_ProjectWithLabelsScoped(t *testing.T) {
	p := New(0, 0)
	cfg := tenant.Config{
		Projects: []string{"PROJ"},
		Labels:   map[string][]string{"PROJ": {"urgent", "bug"}},
	}

	got := p.Plan(cfg, nil, false, fixedNow)

	assert.Contains(t, got, `project = PROJ AND labels IN ("urgent", "bug")`)
}

func TestPlan_Deterministic(t *testing.T) {
	p := New(0, 0)
	cfg := tenant.Config{Projects: []string{"A", "B"}}

	first := p.Plan(cfg, nil, false, fixedNow)
	second := p.Plan(cfg, nil, false, fixedNow)

	assert.Equal(t, first, second)
}
