package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo/jirasync/cache"
	"github.com/evalgo/jirasync/chunk"
	"github.com/evalgo/jirasync/common"
	"github.com/evalgo/jirasync/jira"
	"github.com/evalgo/jirasync/jiraerr"
	"github.com/evalgo/jirasync/planner"
	"github.com/evalgo/jirasync/store"
	"github.com/evalgo/jirasync/tenant"
)

type fakeGateway struct {
	connected bool
	issues    []jira.RawIssue
	searchErr error
}

func (f *fakeGateway) TestConnection(_ context.Context) bool { return f.connected }

func (f *fakeGateway) SearchIssues(_ context.Context, _ string, _ int, _ []string) ([]jira.RawIssue, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.issues, nil
}

func (f *fakeGateway) GetIssue(_ context.Context, _, _ string) (*jira.RawIssue, error) {
	return nil, nil
}

type fakeWatermarkStore struct {
	saved []store.Watermark
}

func (f *fakeWatermarkStore) Get(_ context.Context, _ string, _ store.BatchKind) (*store.Watermark, error) {
	return nil, nil
}

func (f *fakeWatermarkStore) Save(_ context.Context, w store.Watermark) error {
	f.saved = append(f.saved, w)
	return nil
}

type fakeVectorStore struct {
	upserted []chunk.Chunk
	err      error
}

func (f *fakeVectorStore) Upsert(_ context.Context, chunks []chunk.Chunk) error {
	if f.err != nil {
		return f.err
	}
	f.upserted = append(f.upserted, chunks...)
	return nil
}

func (f *fakeVectorStore) Query(_ context.Context, _ string, _ int) ([]chunk.Chunk, error) {
	return nil, nil
}

func newTestCoordinator(t *testing.T, resolver tenant.Resolver, watermarks store.WatermarkStore, vs store.VectorStore, gw *fakeGateway) *Coordinator {
	t.Helper()
	return New(
		resolver,
		watermarks,
		vs,
		planner.New(0, 0),
		cache.NewRegistry(),
		func(tenant.Config) GatewayClient { return gw },
		100,
		common.ServiceLogger("jirasync-test", "test"),
	)
}

func TestCoordinator_MissingCredentialsFailsAtLoading(t *testing.T) {
	resolver := tenant.NewMemoryResolver(tenant.Config{TenantID: "t1"})
	watermarks := &fakeWatermarkStore{}
	vs := &fakeVectorStore{}
	gw := &fakeGateway{connected: true}

	c := newTestCoordinator(t, resolver, watermarks, vs, gw)
	result := c.Run(context.Background(), "t1", false)

	assert.Equal(t, PhaseFailed, result.Phase)
	assert.ErrorIs(t, result.Error, jiraerr.ErrMissingCredentials)
	require.Len(t, watermarks.saved, 1)
	assert.Equal(t, store.StatusFailed, watermarks.saved[0].Status)
}

func TestCoordinator_JiraConnectFailureFailsAtFetching(t *testing.T) {
	resolver := tenant.NewMemoryResolver(tenant.Config{
		TenantID: "t1", Endpoint: "https://jira.example.com", Token: "tok", Projects: []string{"PROJ"},
	})
	watermarks := &fakeWatermarkStore{}
	vs := &fakeVectorStore{}
	gw := &fakeGateway{connected: false}

	c := newTestCoordinator(t, resolver, watermarks, vs, gw)
	result := c.Run(context.Background(), "t1", false)

	assert.Equal(t, PhaseFailed, result.Phase)
	assert.ErrorIs(t, result.Error, jiraerr.ErrJiraConnect)
}

func TestCoordinator_EmptySearchResultRecordsZeroProcessed(t *testing.T) {
	resolver := tenant.NewMemoryResolver(tenant.Config{
		TenantID: "t1", Endpoint: "https://jira.example.com", Token: "tok", Projects: []string{"PROJ"},
	})
	watermarks := &fakeWatermarkStore{}
	vs := &fakeVectorStore{}
	gw := &fakeGateway{connected: true}

	c := newTestCoordinator(t, resolver, watermarks, vs, gw)
	result := c.Run(context.Background(), "t1", false)

	assert.Equal(t, PhaseSuccess, result.Phase)
	assert.Equal(t, 0, result.ProcessedCount)
}

func TestCoordinator_SuccessfulRunUpsertsChunksAndRecordsWatermark(t *testing.T) {
	resolver := tenant.NewMemoryResolver(tenant.Config{
		TenantID: "t1", Endpoint: "https://jira.example.com", Token: "tok", Projects: []string{"PROJ"},
	})
	watermarks := &fakeWatermarkStore{}
	vs := &fakeVectorStore{}
	gw := &fakeGateway{
		connected: true,
		issues: []jira.RawIssue{
			{Key: "PROJ-1", Fields: jira.IssueFields{Summary: "first issue"}},
		},
	}

	c := newTestCoordinator(t, resolver, watermarks, vs, gw)
	result := c.Run(context.Background(), "t1", false)

	assert.Equal(t, PhaseSuccess, result.Phase)
	assert.Equal(t, 1, result.IssueCount)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.NotEmpty(t, vs.upserted)
	require.Len(t, watermarks.saved, 1)
	assert.Equal(t, store.StatusSuccess, watermarks.saved[0].Status)
}

func TestCoordinator_VectorStoreFailureFailsAtUpserting(t *testing.T) {
	resolver := tenant.NewMemoryResolver(tenant.Config{
		TenantID: "t1", Endpoint: "https://jira.example.com", Token: "tok", Projects: []string{"PROJ"},
	})
	watermarks := &fakeWatermarkStore{}
	vs := &fakeVectorStore{err: errors.New("connection refused")}
	gw := &fakeGateway{
		connected: true,
		issues: []jira.RawIssue{
			{Key: "PROJ-1", Fields: jira.IssueFields{Summary: "first issue"}},
		},
	}

	c := newTestCoordinator(t, resolver, watermarks, vs, gw)
	result := c.Run(context.Background(), "t1", false)

	assert.Equal(t, PhaseFailed, result.Phase)
	assert.ErrorIs(t, result.Error, jiraerr.ErrStoreUnreachable)
}

func TestCoordinator_WatermarkLastRunAdvancesEvenOnFailure(t *testing.T) {
	resolver := tenant.NewMemoryResolver(tenant.Config{TenantID: "t1"})
	watermarks := &fakeWatermarkStore{}
	vs := &fakeVectorStore{}
	gw := &fakeGateway{}

	c := newTestCoordinator(t, resolver, watermarks, vs, gw)
	before := time.Now()
	c.Run(context.Background(), "t1", false)

	require.Len(t, watermarks.saved, 1)
	assert.False(t, watermarks.saved[0].LastRun.Before(before))
}
