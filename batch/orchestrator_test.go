package batch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo/jirasync/common"
	syncpkg "github.com/evalgo/jirasync/sync"
	"github.com/evalgo/jirasync/tenant"
)

func TestOrchestrator_SkipsTenantsMissingCredentials(t *testing.T) {
	resolver := tenant.NewMemoryResolver(
		tenant.Config{TenantID: "t1", Endpoint: "https://jira.example.com", Token: "tok", Projects: []string{"P"}},
		tenant.Config{TenantID: "t2"},
	)

	var calledIDs []string
	var mu sync.Mutex
	runOne := func(_ context.Context, tenantID string, _ bool) syncpkg.Result {
		mu.Lock()
		calledIDs = append(calledIDs, tenantID)
		mu.Unlock()
		return syncpkg.Result{TenantID: tenantID, Phase: syncpkg.PhaseSuccess, IssueCount: 3, ProcessedCount: 2}
	}

	o := New(resolver, runOne, common.ServiceLogger("jirasync-test", "test"))
	report := o.Run(context.Background(), []string{"t1", "t2"}, Options{})

	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Valid)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Successful)
	assert.Equal(t, []string{"t1"}, calledIDs)
}

func TestOrchestrator_SequentialRunsInTenantIDOrder(t *testing.T) {
	resolver := tenant.NewMemoryResolver(
		tenant.Config{TenantID: "b", Endpoint: "e", Token: "t", Projects: []string{"P"}},
		tenant.Config{TenantID: "a", Endpoint: "e", Token: "t", Projects: []string{"P"}},
	)

	var order []string
	runOne := func(_ context.Context, tenantID string, _ bool) syncpkg.Result {
		order = append(order, tenantID)
		return syncpkg.Result{TenantID: tenantID, Phase: syncpkg.PhaseSuccess}
	}

	o := New(resolver, runOne, common.ServiceLogger("jirasync-test", "test"))
	o.Run(context.Background(), []string{"b", "a"}, Options{Parallel: false})

	assert.Equal(t, []string{"a", "b"}, order)
}

func TestOrchestrator_ParallelRunsEveryValidTenant(t *testing.T) {
	ids := []string{"t1", "t2", "t3", "t4"}
	var configs []tenant.Config
	for _, id := range ids {
		configs = append(configs, tenant.Config{TenantID: id, Endpoint: "e", Token: "t", Projects: []string{"P"}})
	}
	resolver := tenant.NewMemoryResolver(configs...)

	var mu sync.Mutex
	seen := map[string]bool{}
	runOne := func(_ context.Context, tenantID string, _ bool) syncpkg.Result {
		mu.Lock()
		seen[tenantID] = true
		mu.Unlock()
		return syncpkg.Result{TenantID: tenantID, Phase: syncpkg.PhaseSuccess, IssueCount: 1, ProcessedCount: 1}
	}

	o := New(resolver, runOne, common.ServiceLogger("jirasync-test", "test"))
	report := o.Run(context.Background(), ids, Options{Parallel: true, MaxWorkers: 2})

	assert.Equal(t, 4, report.Successful)
	assert.Len(t, seen, 4)
	assert.Equal(t, 4, report.Issues)
	assert.Equal(t, 4, report.Chunks)
}

func TestOrchestrator_FailedTenantCountedSeparately(t *testing.T) {
	resolver := tenant.NewMemoryResolver(
		tenant.Config{TenantID: "t1", Endpoint: "e", Token: "t", Projects: []string{"P"}},
	)
	runOne := func(_ context.Context, tenantID string, _ bool) syncpkg.Result {
		return syncpkg.Result{TenantID: tenantID, Phase: syncpkg.PhaseFailed, Error: errors.New("boom")}
	}

	o := New(resolver, runOne, common.ServiceLogger("jirasync-test", "test"))
	report := o.Run(context.Background(), []string{"t1"}, Options{})

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, report.Successful)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "boom", report.Results[0].Error)
}

func TestTracker_StartCompleteAndList(t *testing.T) {
	tr := NewTracker(10)
	rec := tr.Start("run-1")
	assert.Equal(t, RunStatusRunning, rec.Status)

	tr.Complete("run-1", Report{RunID: "run-1", Total: 2}, nil)

	got, ok := tr.Get("run-1")
	require.True(t, ok)
	assert.Equal(t, RunStatusCompleted, got.Status)
	require.NotNil(t, got.Report)
	assert.Equal(t, 2, got.Report.Total)

	list := tr.List()
	require.Len(t, list, 1)
	assert.Equal(t, "run-1", list[0].RunID)
}

func TestTracker_EvictsOldestWhenFull(t *testing.T) {
	tr := NewTracker(2)
	tr.Start("a")
	tr.Start("b")
	tr.Start("c")

	_, ok := tr.Get("a")
	assert.False(t, ok)
	assert.Len(t, tr.List(), 2)
}
