package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo/jirasync/jira"
)

type fakeGateway struct {
	searches int
	gets     int
	issues   []jira.RawIssue
	issue    *jira.RawIssue
}

func (f *fakeGateway) SearchIssues(_ context.Context, _ string, _ int, _ []string) ([]jira.RawIssue, error) {
	f.searches++
	return f.issues, nil
}

func (f *fakeGateway) GetIssue(_ context.Context, _, _ string) (*jira.RawIssue, error) {
	f.gets++
	return f.issue, nil
}

func TestRequestCache_SearchIssuesCachesWithinMonth(t *testing.T) {
	gw := &fakeGateway{issues: []jira.RawIssue{{Key: "PROJ-1"}}}
	c := NewRequestCache(gw)

	ctx := context.Background()
	_, err := c.SearchIssues(ctx, "project = PROJ", 100, []string{"summary"})
	require.NoError(t, err)
	_, err = c.SearchIssues(ctx, "project = PROJ", 100, []string{"summary"})
	require.NoError(t, err)

	assert.Equal(t, 1, gw.searches)
	stats := c.Stats()
	assert.Equal(t, 1, stats.Hits)
	assert.Equal(t, 1, stats.Misses)
	assert.Equal(t, 2, stats.TotalRequests)
	assert.Equal(t, 1, stats.APICalls)
}

func TestRequestCache_FieldOrderDoesNotAffectFingerprint(t *testing.T) {
	gw := &fakeGateway{issues: []jira.RawIssue{{Key: "PROJ-1"}}}
	c := NewRequestCache(gw)

	ctx := context.Background()
	_, _ = c.SearchIssues(ctx, "project = PROJ", 100, []string{"summary", "status"})
	_, _ = c.SearchIssues(ctx, "project = PROJ", 100, []string{"status", "summary"})

	assert.Equal(t, 1, gw.searches)
}

func TestRequestCache_MonthRolloverClears(t *testing.T) {
	gw := &fakeGateway{issues: []jira.RawIssue{{Key: "PROJ-1"}}}
	c := NewRequestCache(gw)

	month := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return month }
	c.currentMonth = yearMonth(month)

	ctx := context.Background()
	_, _ = c.SearchIssues(ctx, "project = PROJ", 100, []string{"summary"})
	assert.Equal(t, 1, gw.searches)

	nextMonth := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return nextMonth }

	_, _ = c.SearchIssues(ctx, "project = PROJ", 100, []string{"summary"})
	assert.Equal(t, 2, gw.searches)

	stats := c.Stats()
	assert.Equal(t, 0, stats.Hits)
	assert.Equal(t, 1, stats.Misses)
}

func TestRequestCache_GetIssueCachesNotFound(t *testing.T) {
	gw := &fakeGateway{issue: nil}
	c := NewRequestCache(gw)

	ctx := context.Background()
	issue, err := c.GetIssue(ctx, "PROJ-404", "")
	require.NoError(t, err)
	assert.Nil(t, issue)

	issue, err = c.GetIssue(ctx, "PROJ-404", "")
	require.NoError(t, err)
	assert.Nil(t, issue)
	assert.Equal(t, 1, gw.gets)
}

func TestRequestCache_GetAllCachedIssuesDeduped(t *testing.T) {
	gw := &fakeGateway{issues: []jira.RawIssue{{Key: "PROJ-1"}, {Key: "PROJ-2"}}}
	c := NewRequestCache(gw)

	ctx := context.Background()
	_, _ = c.SearchIssues(ctx, "project = PROJ AND labels = a", 100, []string{"summary"})
	_, _ = c.SearchIssues(ctx, "project = PROJ AND labels = b", 100, []string{"summary"})

	all := c.GetAllCachedIssues()
	keys := map[string]bool{}
	for _, issue := range all {
		keys[issue.Key] = true
	}
	assert.Len(t, keys, 2)
}

func TestRequestCache_ClearResetsStats(t *testing.T) {
	gw := &fakeGateway{issues: []jira.RawIssue{{Key: "PROJ-1"}}}
	c := NewRequestCache(gw)

	ctx := context.Background()
	_, _ = c.SearchIssues(ctx, "project = PROJ", 100, []string{"summary"})
	c.Clear()

	stats := c.Stats()
	assert.Equal(t, 0, stats.Hits)
	assert.Equal(t, 0, stats.Misses)
	assert.Equal(t, 0, stats.CachedKeys)
}

func TestRegistry_GetOrCreateIsPerTenant(t *testing.T) {
	r := NewRegistry()
	gwA := &fakeGateway{}
	gwB := &fakeGateway{}

	cacheA := r.GetOrCreate("tenant-a", gwA)
	cacheA2 := r.GetOrCreate("tenant-a", gwA)
	cacheB := r.GetOrCreate("tenant-b", gwB)

	assert.Same(t, cacheA, cacheA2)
	assert.NotSame(t, cacheA, cacheB)
}

func TestRegistry_TotalStatsSums(t *testing.T) {
	r := NewRegistry()
	gwA := &fakeGateway{issues: []jira.RawIssue{{Key: "A-1"}}}
	gwB := &fakeGateway{issues: []jira.RawIssue{{Key: "B-1"}}}

	ctx := context.Background()
	ca := r.GetOrCreate("tenant-a", gwA)
	cb := r.GetOrCreate("tenant-b", gwB)
	_, _ = ca.SearchIssues(ctx, "a", 100, nil)
	_, _ = cb.SearchIssues(ctx, "b", 100, nil)
	_, _ = ca.SearchIssues(ctx, "a", 100, nil)

	total := r.TotalStats()
	assert.Equal(t, 1, total.Hits)
	assert.Equal(t, 2, total.Misses)
}
