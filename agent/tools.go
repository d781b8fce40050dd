package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/evalgo/jirasync/cache"
	"github.com/evalgo/jirasync/jira"
)

// AtomicTools implements the pure and cache-backed building blocks the
// registry's handlers wrap. Each method is a plain Go function operating
// on []jira.RawIssue or primitive arguments, callable directly by internal
// code without going through JSON argument decoding at all. FilterIssues
// takes the same declarative field-to-value map as the filter_issues tool;
// there is no callback form.
type AtomicTools struct {
	cache *cache.RequestCache
}

// NewAtomicTools binds the tool set to one tenant's request cache. A fresh
// AtomicTools is built per tenant conversation; there is no shared state
// across tenants beyond what the cache itself already isolates.
func NewAtomicTools(c *cache.RequestCache) *AtomicTools {
	return &AtomicTools{cache: c}
}

// SearchIssues runs jql against the tenant's cache (network only on a
// cache miss) and truncates to maxResults if positive.
func (t *AtomicTools) SearchIssues(ctx context.Context, jql string, maxResults int) ([]jira.RawIssue, error) {
	issues, err := t.cache.SearchIssues(ctx, jql, 100, jira.DefaultFields)
	if err != nil {
		return nil, err
	}
	if maxResults > 0 && len(issues) > maxResults {
		issues = issues[:maxResults]
	}
	return issues, nil
}

// GetLinkedIssues returns the issues linked to issueKey, optionally
// restricted to links whose type name contains linkType
// (case-insensitive, empty means any type). Each linked issue is fetched
// through the cache, so repeated calls across a conversation don't
// re-hit the network.
func (t *AtomicTools) GetLinkedIssues(ctx context.Context, issueKey, linkType string) ([]jira.RawIssue, error) {
	issue, err := t.cache.GetIssue(ctx, issueKey, "issuelinks")
	if err != nil {
		return nil, err
	}
	if issue == nil {
		return nil, nil
	}

	var linked []jira.RawIssue
	for _, link := range issue.Fields.IssueLinks {
		if linkType != "" && !strings.Contains(strings.ToLower(link.Type.Name), strings.ToLower(linkType)) {
			continue
		}
		key := link.IssueKey()
		if key == "" {
			continue
		}
		li, err := t.cache.GetIssue(ctx, key, "")
		if err != nil || li == nil {
			continue
		}
		linked = append(linked, *li)
	}
	return linked, nil
}

// GetCachedIssues returns every RawIssue currently in the tenant's cache,
// deduplicated by key. Read-only, no HTTP.
func (t *AtomicTools) GetCachedIssues() []jira.RawIssue {
	return t.cache.GetAllCachedIssues()
}

// GetCacheSummary returns the tenant cache's hit/miss/key-count snapshot.
func (t *AtomicTools) GetCacheSummary() cache.Stats {
	return t.cache.Stats()
}

// GroupBySystem buckets issues by extractSystemName's four-tier
// convention.
func (t *AtomicTools) GroupBySystem(issues []jira.RawIssue) map[string][]jira.RawIssue {
	out := make(map[string][]jira.RawIssue)
	for _, issue := range issues {
		name := extractSystemName(issue)
		out[name] = append(out[name], issue)
	}
	return out
}

// SystemSummary is one group_by_system bucket's rollup for
// get_system_summary.
type SystemSummary struct {
	Count           int
	CompletedCount  int
	StatusHistogram map[string]int
}

var doneStatuses = map[string]bool{"done": true, "closed": true, "resolved": true}

// GetSystemSummary groups issues by system and, per group, counts total
// issues, issues in a completed-looking status, and a full status
// histogram.
func (t *AtomicTools) GetSystemSummary(issues []jira.RawIssue) map[string]SystemSummary {
	groups := t.GroupBySystem(issues)
	out := make(map[string]SystemSummary, len(groups))
	for system, group := range groups {
		summary := SystemSummary{StatusHistogram: make(map[string]int)}
		for _, issue := range group {
			status := issue.Fields.Status.Name
			if status == "" {
				status = "(none)"
			}
			summary.Count++
			summary.StatusHistogram[status]++
			if doneStatuses[strings.ToLower(issue.Fields.Status.Name)] {
				summary.CompletedCount++
			}
		}
		out[system] = summary
	}
	return out
}

var versionPattern = regexp.MustCompile(`\bv?(\d+\.\d+(?:\.\d+)?)\b`)

// ExtractVersion pulls the first semver-shaped token (with an optional
// leading "v") out of text, or returns nil if none is present.
func (t *AtomicTools) ExtractVersion(text string) *string {
	m := versionPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return &m[1]
}

// ExtractPattern compiles pattern and returns the first match's group
// groupIndex (0 for the whole match), or nil if the pattern does not
// match or the group index is out of range.
func (t *AtomicTools) ExtractPattern(text, pattern string, groupIndex int) (*string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("agent: invalid pattern %q: %w", pattern, err)
	}
	m := re.FindStringSubmatch(text)
	if m == nil || groupIndex < 0 || groupIndex >= len(m) {
		return nil, nil
	}
	return &m[groupIndex], nil
}

// ExtractAllPatterns returns every match of pattern's groupIndex group
// across text, not just the first. Carried over from the original tool
// registry; not in the distilled catalog but not excluded by it either.
func (t *AtomicTools) ExtractAllPatterns(text, pattern string, groupIndex int) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("agent: invalid pattern %q: %w", pattern, err)
	}
	matches := re.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if groupIndex < 0 || groupIndex >= len(m) {
			continue
		}
		out = append(out, m[groupIndex])
	}
	return out, nil
}

// FindIssueByField returns the first issue whose field equals value,
// under fieldMatches's comparison rule when exactMatch is false
// (trimmed, case-insensitive), or under plain string equality when
// exactMatch is true. Returns nil if none match.
func (t *AtomicTools) FindIssueByField(issues []jira.RawIssue, field, value string, exactMatch bool) *jira.RawIssue {
	for i, issue := range issues {
		if t.fieldEquals(issue, field, value, exactMatch) {
			return &issues[i]
		}
	}
	return nil
}

// FindAllIssuesByField is FindIssueByField's every-match counterpart.
func (t *AtomicTools) FindAllIssuesByField(issues []jira.RawIssue, field, value string, exactMatch bool) []jira.RawIssue {
	var out []jira.RawIssue
	for _, issue := range issues {
		if t.fieldEquals(issue, field, value, exactMatch) {
			out = append(out, issue)
		}
	}
	return out
}

func (t *AtomicTools) fieldEquals(issue jira.RawIssue, field, value string, exactMatch bool) bool {
	actual := issueFieldValue(issue, field)
	if exactMatch {
		s, ok := actual.(string)
		return ok && s == value
	}
	return fieldMatches(actual, value)
}

// GroupByField buckets issues by the string form of field; missing, nil,
// or empty values collapse into bucket "(none)".
func (t *AtomicTools) GroupByField(issues []jira.RawIssue, field string) map[string][]jira.RawIssue {
	out := make(map[string][]jira.RawIssue)
	for _, issue := range issues {
		key := fieldBucketKey(issueFieldValue(issue, field))
		out[key] = append(out[key], issue)
	}
	return out
}

// CountByField is GroupByField's count-only counterpart.
func (t *AtomicTools) CountByField(issues []jira.RawIssue, field string) map[string]int {
	out := make(map[string]int)
	for _, issue := range issues {
		key := fieldBucketKey(issueFieldValue(issue, field))
		out[key]++
	}
	return out
}

func fieldBucketKey(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "(none)"
	case string:
		if val == "" {
			return "(none)"
		}
		return val
	case []interface{}:
		if len(val) == 0 {
			return "(none)"
		}
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = fmt.Sprintf("%v", e)
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", val)
	}
}

// FilterIssues keeps only issues matching every field->value pair in
// filters, under fieldMatches's comparison rule. This is the declarative
// form the registry exposes; a callback-predicate form is available to
// Go callers only as a plain loop over this package's exported helpers.
func (t *AtomicTools) FilterIssues(issues []jira.RawIssue, filters map[string]interface{}) []jira.RawIssue {
	var out []jira.RawIssue
	for _, issue := range issues {
		matchesAll := true
		for field, want := range filters {
			if !fieldMatches(issueFieldValue(issue, field), want) {
				matchesAll = false
				break
			}
		}
		if matchesAll {
			out = append(out, issue)
		}
	}
	return out
}

// FormatAsTable renders rows as a GitHub-flavored markdown table
// restricted to columns, truncating each cell to width runes (0 means
// unbounded).
func (t *AtomicTools) FormatAsTable(rows []map[string]interface{}, columns []string, width int) string {
	var b strings.Builder
	b.WriteString("| ")
	b.WriteString(strings.Join(columns, " | "))
	b.WriteString(" |\n|")
	for range columns {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")

	for _, row := range rows {
		b.WriteString("| ")
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = truncateCell(fmt.Sprintf("%v", row[col]), width)
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString(" |\n")
	}
	return b.String()
}

func truncateCell(s string, width int) string {
	if width <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width])
}

// FormatAsList renders rows as bullet-prefixed lines from template, where
// "{field}" placeholders are substituted from each row's values.
func (t *AtomicTools) FormatAsList(rows []map[string]interface{}, template, bullet string) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		line := template
		for field, value := range row {
			line = strings.ReplaceAll(line, "{"+field+"}", fmt.Sprintf("%v", value))
		}
		lines = append(lines, bullet+line)
	}
	return strings.Join(lines, "\n")
}

// FormatDate reparses value under any of a small set of common Jira
// timestamp layouts and renders it under layout. Returns value unchanged
// if it cannot be parsed under any known layout.
func (t *AtomicTools) FormatDate(value, layout string) string {
	candidates := []string{time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02"}
	for _, c := range candidates {
		if parsed, err := time.Parse(c, value); err == nil {
			return parsed.Format(layout)
		}
	}
	return value
}

