package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/evalgo/jirasync/cache"
	"github.com/evalgo/jirasync/chunk"
	"github.com/evalgo/jirasync/common"
	"github.com/evalgo/jirasync/jira"
	"github.com/evalgo/jirasync/jiraerr"
	"github.com/evalgo/jirasync/planner"
	"github.com/evalgo/jirasync/store"
	"github.com/evalgo/jirasync/tenant"
)

// GatewayFactory builds a per-tenant Gateway. Injected so tests and
// callers outside this package can hand the coordinator a fake, or a
// real jira.Gateway wired with whatever circuit breaker they want,
// without the coordinator importing jira's construction details.
type GatewayFactory func(cfg tenant.Config) GatewayClient

// GatewayClient is the subset of jira.Gateway the coordinator drives.
type GatewayClient interface {
	TestConnection(ctx context.Context) bool
	SearchIssues(ctx context.Context, jql string, pageSize int, fields []string) ([]jira.RawIssue, error)
	GetIssue(ctx context.Context, key, expand string) (*jira.RawIssue, error)
}

// Result is what a single Run call returns: the terminal phase, plus
// whatever enough detail the caller needs to log or report on it.
type Result struct {
	TenantID       string
	Phase          Phase
	IssueCount     int
	ProcessedCount int
	Error          error
}

// Coordinator drives one tenant's sync run through the linear state
// machine: Idle -> Loading -> Planning -> Fetching -> Chunking ->
// Upserting -> Recording -> {Success, Failed}. Any non-recoverable
// failure jumps straight to Failed; there is no retry inside a run.
type Coordinator struct {
	resolver      tenant.Resolver
	watermarks    store.WatermarkStore
	vectorStore   store.VectorStore
	planner       *planner.Planner
	cacheRegistry *cache.Registry
	newGateway    GatewayFactory
	pageSize      int
	logger        *common.ContextLogger
	now           func() time.Time
}

// New builds a Coordinator. newGateway constructs a tenant-scoped Jira
// client (wrapping whatever circuit breaker the caller wants) from a
// resolved tenant.Config.
func New(
	resolver tenant.Resolver,
	watermarks store.WatermarkStore,
	vectorStore store.VectorStore,
	p *planner.Planner,
	cacheRegistry *cache.Registry,
	newGateway GatewayFactory,
	pageSize int,
	logger *common.ContextLogger,
) *Coordinator {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Coordinator{
		resolver:      resolver,
		watermarks:    watermarks,
		vectorStore:   vectorStore,
		planner:       p,
		cacheRegistry: cacheRegistry,
		newGateway:    newGateway,
		pageSize:      pageSize,
		logger:        logger,
		now:           time.Now,
	}
}

// Run executes one full sync for tenantID and returns its terminal
// result. It never panics on a per-issue or per-chunk failure: those are
// logged and skipped so the run can still reach a terminal phase.
func (c *Coordinator) Run(ctx context.Context, tenantID string, forceFullSync bool) Result {
	log := c.logger.WithField("tenant_id", tenantID)

	// Loading
	cfg, err := c.resolver.Get(ctx, tenantID)
	if err != nil {
		return c.fail(ctx, tenantID, PhaseLoading, fmt.Errorf("%w: %v", jiraerr.ErrMissingCredentials, err))
	}
	if !cfg.HasCredentials() {
		return c.fail(ctx, tenantID, PhaseLoading, jiraerr.ErrMissingCredentials)
	}
	if err := cfg.Validate(); err != nil {
		return c.fail(ctx, tenantID, PhaseLoading, fmt.Errorf("%w: %v", jiraerr.ErrInvalidJQLConfig, err))
	}

	// Planning
	watermark, err := c.watermarks.Get(ctx, tenantID, store.BatchKindJiraSync)
	if err != nil {
		log.WithError(err).Warn("reading watermark failed, treating as absent")
		watermark = nil
	}
	jql := c.planner.Plan(cfg, watermark, forceFullSync, c.now())

	// Fetching
	gw := c.newGateway(cfg)
	if !gw.TestConnection(ctx) {
		return c.fail(ctx, tenantID, PhaseFetching, jiraerr.ErrJiraConnect)
	}

	requestCache := c.cacheRegistry.GetOrCreate(tenantID, gw)
	issues, err := requestCache.SearchIssues(ctx, jql, c.pageSize, jira.DefaultFields)
	if err != nil {
		return c.fail(ctx, tenantID, PhaseFetching, err)
	}

	if len(issues) == 0 {
		return c.record(ctx, tenantID, 0, 0, nil)
	}

	// Chunking
	now := c.now().Format(time.RFC3339)
	var chunks []chunk.Chunk
	for _, issue := range issues {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.WithField("issue_key", issue.Key).Errorf("panic chunking issue: %v", r)
				}
			}()
			chunks = append(chunks, chunk.ForIssue(issue, cfg.Endpoint, now)...)
		}()
	}

	// Upserting
	if len(chunks) > 0 {
		if err := c.vectorStore.Upsert(ctx, chunks); err != nil {
			return c.fail(ctx, tenantID, PhaseUpserting, fmt.Errorf("%w: %v", jiraerr.ErrStoreUnreachable, err))
		}
	}

	// Recording
	return c.record(ctx, tenantID, len(issues), len(chunks), nil)
}

func (c *Coordinator) record(ctx context.Context, tenantID string, issueCount, processed int, recordErr error) Result {
	status := store.StatusSuccess
	phase := PhaseSuccess
	if recordErr != nil {
		status = store.StatusFailed
		phase = PhaseFailed
	}

	w := store.Watermark{
		TenantID:       tenantID,
		BatchKind:      store.BatchKindJiraSync,
		LastRun:        c.now(),
		Status:         status,
		ProcessedCount: processed,
	}
	if recordErr != nil {
		w.Error = recordErr.Error()
	}

	if err := c.watermarks.Save(ctx, w); err != nil {
		// A recording failure does not change the already-determined
		// terminal status; it is logged and nothing more.
		c.logger.WithField("tenant_id", tenantID).WithError(err).Error("saving watermark failed")
	}

	return Result{TenantID: tenantID, Phase: phase, IssueCount: issueCount, ProcessedCount: processed, Error: recordErr}
}

func (c *Coordinator) fail(ctx context.Context, tenantID string, at Phase, err error) Result {
	c.logger.WithFields(map[string]interface{}{
		"tenant_id": tenantID,
		"phase":     string(at),
	}).WithError(err).Error("sync run failed")
	return c.record(ctx, tenantID, 0, 0, err)
}
