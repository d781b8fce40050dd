// Package batch runs a sync.Coordinator across many tenants, either
// sequentially or with bounded parallel workers, and aggregates the
// results into a BatchReport.
package batch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evalgo/jirasync/common"
	"github.com/evalgo/jirasync/sync"
	"github.com/evalgo/jirasync/tenant"
)

// TenantOutcome is one tenant's place in a BatchReport.
type TenantOutcome string

const (
	OutcomeSuccessful TenantOutcome = "successful"
	OutcomeFailed     TenantOutcome = "failed"
	OutcomeSkipped    TenantOutcome = "skipped"
)

// TenantResult is the per-tenant row of a BatchReport.
type TenantResult struct {
	TenantID string
	Outcome  TenantOutcome
	Issues   int
	Chunks   int
	Error    string
	Duration time.Duration
}

// Report aggregates one orchestrator run. RunID is a fresh uuid per call
// to Run, used to correlate these results with the admin surface's
// /batches endpoint.
type Report struct {
	RunID      string
	Total      int
	Valid      int
	Successful int
	Failed     int
	Skipped    int
	Issues     int
	Chunks     int
	Duration   time.Duration
	Results    []TenantResult
}

// Options configures one Run call.
type Options struct {
	Parallel      bool
	MaxWorkers    int
	ForceFullSync bool
}

// Orchestrator runs a coordinator across tenants. resolver is used only
// to pre-filter tenants lacking credentials; the coordinator itself
// re-resolves credentials per tenant.
type Orchestrator struct {
	resolver tenant.Resolver
	runOne   func(ctx context.Context, tenantID string, forceFullSync bool) sync.Result
	logger   *common.ContextLogger
}

// New builds an Orchestrator. runOne is normally coordinator.Run, passed
// as a function value so tests can substitute a fake without building a
// full Coordinator.
func New(resolver tenant.Resolver, runOne func(ctx context.Context, tenantID string, forceFullSync bool) sync.Result, logger *common.ContextLogger) *Orchestrator {
	return &Orchestrator{resolver: resolver, runOne: runOne, logger: logger}
}

// Run syncs every tenant in tenantIDs according to opts, in tenant-id
// order for the sequential path, and returns the aggregate report.
func (o *Orchestrator) Run(ctx context.Context, tenantIDs []string, opts Options) Report {
	start := time.Now()

	sorted := make([]string, len(tenantIDs))
	copy(sorted, tenantIDs)
	sort.Strings(sorted)

	report := Report{RunID: uuid.NewString(), Total: len(sorted)}

	var valid []string
	for _, id := range sorted {
		cfg, err := o.resolver.Get(ctx, id)
		if err != nil || !cfg.HasCredentials() {
			report.Skipped++
			report.Results = append(report.Results, TenantResult{TenantID: id, Outcome: OutcomeSkipped})
			o.logger.WithField("tenant_id", id).Warn("skipping tenant: missing credentials")
			continue
		}
		valid = append(valid, id)
	}
	report.Valid = len(valid)

	var results []TenantResult
	if opts.Parallel {
		results = o.runParallel(ctx, valid, opts)
	} else {
		results = o.runSequential(ctx, valid, opts)
	}

	for _, r := range results {
		report.Results = append(report.Results, r)
		report.Issues += r.Issues
		report.Chunks += r.Chunks
		switch r.Outcome {
		case OutcomeSuccessful:
			report.Successful++
		case OutcomeFailed:
			report.Failed++
		}
	}

	report.Duration = time.Since(start)
	return report
}

func (o *Orchestrator) runSequential(ctx context.Context, tenantIDs []string, opts Options) []TenantResult {
	results := make([]TenantResult, 0, len(tenantIDs))
	for _, id := range tenantIDs {
		results = append(results, o.runTenant(ctx, id, opts.ForceFullSync))
	}
	return results
}

// runParallel runs tenants across a bounded worker pool: maxWorkers
// goroutines each pull the next tenant id off a shared channel and drive
// one coordinator run to terminal. There is no cross-tenant
// cancellation: one tenant failing does not stop the others.
func (o *Orchestrator) runParallel(ctx context.Context, tenantIDs []string, opts Options) []TenantResult {
	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = 5
	}
	if workers > len(tenantIDs) {
		workers = len(tenantIDs)
	}
	if workers == 0 {
		return nil
	}

	tasks := make(chan string, len(tenantIDs))
	for _, id := range tenantIDs {
		tasks <- id
	}
	close(tasks)

	resultsChan := make(chan TenantResult, len(tenantIDs))
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for id := range tasks {
				resultsChan <- o.runTenant(ctx, id, opts.ForceFullSync)
			}
		}()
	}
	wg.Wait()
	close(resultsChan)

	results := make([]TenantResult, 0, len(tenantIDs))
	for r := range resultsChan {
		results = append(results, r)
	}
	return results
}

func (o *Orchestrator) runTenant(ctx context.Context, tenantID string, forceFullSync bool) TenantResult {
	start := time.Now()
	res := o.runOne(ctx, tenantID, forceFullSync)
	duration := time.Since(start)

	outcome := OutcomeSuccessful
	errText := ""
	if res.Error != nil {
		outcome = OutcomeFailed
		errText = res.Error.Error()
	}

	return TenantResult{
		TenantID: tenantID,
		Outcome:  outcome,
		Issues:   res.IssueCount,
		Chunks:   res.ProcessedCount,
		Error:    errText,
		Duration: duration,
	}
}
