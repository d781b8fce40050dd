package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo/jirasync/cache"
	"github.com/evalgo/jirasync/jira"
)

type fakeGateway struct {
	issues map[string]jira.RawIssue
}

func (f *fakeGateway) SearchIssues(_ context.Context, _ string, _ int, _ []string) ([]jira.RawIssue, error) {
	out := make([]jira.RawIssue, 0, len(f.issues))
	for _, issue := range f.issues {
		out = append(out, issue)
	}
	return out, nil
}

func (f *fakeGateway) GetIssue(_ context.Context, key, _ string) (*jira.RawIssue, error) {
	if issue, ok := f.issues[key]; ok {
		return &issue, nil
	}
	return nil, nil
}

func newTestTools(t *testing.T) (*AtomicTools, *fakeGateway) {
	t.Helper()
	gw := &fakeGateway{issues: map[string]jira.RawIssue{
		"PROJ-1": {Key: "PROJ-1", Fields: jira.IssueFields{
			Summary: "first issue", Status: jira.NamedField{Name: "Done"},
			Labels: []string{"billing_api"},
		}},
		"PROJ-2": {Key: "PROJ-2", Fields: jira.IssueFields{
			Summary: "second issue", Status: jira.NamedField{Name: "In Progress"},
			IssueLinks: []jira.IssueLink{{Type: jira.LinkType{Name: "relates to"}, OutwardIssue: &jira.LinkedIssueRef{Key: "PROJ-1"}}},
		}},
	}}
	rc := cache.NewRequestCache(gw)
	return NewAtomicTools(rc), gw
}

func TestAtomicTools_GetLinkedIssuesFollowsLinkType(t *testing.T) {
	tools, _ := newTestTools(t)
	linked, err := tools.GetLinkedIssues(context.Background(), "PROJ-2", "relates")
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, "PROJ-1", linked[0].Key)
}

func TestAtomicTools_GetLinkedIssuesNoMatchingType(t *testing.T) {
	tools, _ := newTestTools(t)
	linked, err := tools.GetLinkedIssues(context.Background(), "PROJ-2", "blocks")
	require.NoError(t, err)
	assert.Empty(t, linked)
}

func TestAtomicTools_GroupBySystemUsesUnderscoredLabel(t *testing.T) {
	tools, _ := newTestTools(t)
	issues := []jira.RawIssue{
		{Key: "A", Fields: jira.IssueFields{Labels: []string{"payments_core"}}},
		{Key: "B", Fields: jira.IssueFields{Summary: "no convention here"}},
	}
	groups := tools.GroupBySystem(issues)
	assert.Len(t, groups["payments_core"], 1)
	assert.Len(t, groups[defaultSystemBucket], 1)
}

func TestAtomicTools_GetSystemSummaryCountsCompletion(t *testing.T) {
	tools, _ := newTestTools(t)
	issues := []jira.RawIssue{
		{Key: "A", Fields: jira.IssueFields{Labels: []string{"billing_api"}, Status: jira.NamedField{Name: "Done"}}},
		{Key: "B", Fields: jira.IssueFields{Labels: []string{"billing_api"}, Status: jira.NamedField{Name: "Open"}}},
	}
	summary := tools.GetSystemSummary(issues)
	bucket := summary["billing_api"]
	assert.Equal(t, 2, bucket.Count)
	assert.Equal(t, 1, bucket.CompletedCount)
	assert.Equal(t, 1, bucket.StatusHistogram["Done"])
	assert.Equal(t, 1, bucket.StatusHistogram["Open"])
}

func TestAtomicTools_ExtractVersion(t *testing.T) {
	tools, _ := newTestTools(t)
	v := tools.ExtractVersion("deployed release v2.14.1 to staging")
	require.NotNil(t, v)
	assert.Equal(t, "2.14.1", *v)

	assert.Nil(t, tools.ExtractVersion("no version token here"))
}

func TestAtomicTools_ExtractPatternAndAll(t *testing.T) {
	tools, _ := newTestTools(t)
	v, err := tools.ExtractPattern("order #482 and order #910", `order #(\d+)`, 1)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "482", *v)

	all, err := tools.ExtractAllPatterns("order #482 and order #910", `order #(\d+)`, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"482", "910"}, all)
}

func TestAtomicTools_FindIssueByFieldTrimmedCaseInsensitive(t *testing.T) {
	tools, _ := newTestTools(t)
	issues := []jira.RawIssue{
		{Key: "A", Fields: jira.IssueFields{Status: jira.NamedField{Name: "Done"}}},
		{Key: "B", Fields: jira.IssueFields{Status: jira.NamedField{Name: "Open"}}},
	}
	found := tools.FindIssueByField(issues, "status", " done ", false)
	require.NotNil(t, found)
	assert.Equal(t, "A", found.Key)

	assert.Nil(t, tools.FindIssueByField(issues, "status", " done ", true))
}

func TestAtomicTools_FilterIssuesAllFieldsMustMatch(t *testing.T) {
	tools, _ := newTestTools(t)
	issues := []jira.RawIssue{
		{Key: "A", Fields: jira.IssueFields{Status: jira.NamedField{Name: "Done"}, Priority: jira.NamedField{Name: "High"}}},
		{Key: "B", Fields: jira.IssueFields{Status: jira.NamedField{Name: "Done"}, Priority: jira.NamedField{Name: "Low"}}},
	}
	filtered := tools.FilterIssues(issues, map[string]interface{}{"status": "Done", "priority": "High"})
	require.Len(t, filtered, 1)
	assert.Equal(t, "A", filtered[0].Key)
}

func TestAtomicTools_GroupByFieldCollapsesEmptyToNone(t *testing.T) {
	tools, _ := newTestTools(t)
	issues := []jira.RawIssue{
		{Key: "A", Fields: jira.IssueFields{Assignee: &jira.UserField{DisplayName: "Sam"}}},
		{Key: "B"},
	}
	groups := tools.GroupByField(issues, "assignee")
	assert.Len(t, groups["Sam"], 1)
	assert.Len(t, groups["(none)"], 1)
}

func TestAtomicTools_CountByField(t *testing.T) {
	tools, _ := newTestTools(t)
	issues := []jira.RawIssue{
		{Key: "A", Fields: jira.IssueFields{Status: jira.NamedField{Name: "Done"}}},
		{Key: "B", Fields: jira.IssueFields{Status: jira.NamedField{Name: "Done"}}},
		{Key: "C", Fields: jira.IssueFields{Status: jira.NamedField{Name: "Open"}}},
	}
	counts := tools.CountByField(issues, "status")
	assert.Equal(t, 2, counts["Done"])
	assert.Equal(t, 1, counts["Open"])
}

func TestAtomicTools_FormatAsTableTruncatesCells(t *testing.T) {
	tools, _ := newTestTools(t)
	rows := []map[string]interface{}{{"key": "PROJ-1", "summary": "a very long summary indeed"}}
	table := tools.FormatAsTable(rows, []string{"key", "summary"}, 10)
	assert.Contains(t, table, "| key | summary |")
	assert.Contains(t, table, "a very lon |")
}

func TestAtomicTools_FormatAsListSubstitutesTemplate(t *testing.T) {
	tools, _ := newTestTools(t)
	rows := []map[string]interface{}{{"key": "PROJ-1", "summary": "first issue"}}
	list := tools.FormatAsList(rows, "{key}: {summary}", "- ")
	assert.Equal(t, "- PROJ-1: first issue", list)
}

func TestAtomicTools_FormatDateReformats(t *testing.T) {
	tools, _ := newTestTools(t)
	assert.Equal(t, "2026-01-05", tools.FormatDate("2026-01-05T10:00:00Z", "2006-01-02"))
	assert.Equal(t, "not-a-date", tools.FormatDate("not-a-date", "2006-01-02"))
}

func TestAtomicTools_GetCachedIssuesAndCacheSummary(t *testing.T) {
	tools, _ := newTestTools(t)
	_, err := tools.SearchIssues(context.Background(), "project = PROJ", 0)
	require.NoError(t, err)

	cached := tools.GetCachedIssues()
	assert.Len(t, cached, 2)

	stats := tools.GetCacheSummary()
	assert.Equal(t, 0, stats.Hits)
	assert.Equal(t, 1, stats.Misses)
}
