package agent

import (
	"regexp"
	"strings"

	"github.com/evalgo/jirasync/jira"
)

// issueFieldValue projects the named field off a RawIssue for the
// field-based tools (find/group/filter/count). Unknown field names
// resolve to nil rather than an error: filter/group treat that the same
// as an empty value.
func issueFieldValue(issue jira.RawIssue, field string) interface{} {
	switch strings.ToLower(field) {
	case "key":
		return issue.Key
	case "summary":
		return issue.Fields.Summary
	case "description":
		return issue.Fields.Description
	case "status":
		return issue.Fields.Status.Name
	case "priority":
		return issue.Fields.Priority.Name
	case "issuetype", "type":
		return issue.Fields.IssueType.Name
	case "project":
		return issue.Fields.Project.Name
	case "assignee":
		if issue.Fields.Assignee == nil {
			return nil
		}
		return issue.Fields.Assignee.DisplayName
	case "reporter":
		if issue.Fields.Reporter == nil {
			return nil
		}
		return issue.Fields.Reporter.DisplayName
	case "labels":
		return toAny(issue.Fields.Labels)
	case "components":
		return toAny(issue.Fields.ComponentNames())
	case "fixversions", "fixversion":
		return toAny(issue.Fields.FixVersionNames())
	case "created":
		return issue.Fields.Created
	case "updated":
		return issue.Fields.Updated
	default:
		return nil
	}
}

func toAny(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// fieldMatches implements the shared filter/find comparison rule: trimmed,
// case-insensitive string comparison; a list-valued field matches if any
// element equals under the same rule; nil matches nil; anything else
// compares by plain equality.
func fieldMatches(actual, want interface{}) bool {
	if actual == nil || want == nil {
		return actual == nil && want == nil
	}

	switch a := actual.(type) {
	case []interface{}:
		for _, v := range a {
			if fieldMatches(v, want) {
				return true
			}
		}
		return false
	case string:
		ws, ok := want.(string)
		if !ok {
			return false
		}
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(ws))
	default:
		return actual == want
	}
}

var (
	bracketSystemPattern = regexp.MustCompile(`\[([A-Z][A-Z0-9_-]*)\]`)
	colonSystemPattern   = regexp.MustCompile(`\b([A-Z][A-Z0-9_-]*):`)
	dashSystemPattern    = regexp.MustCompile(`\b([A-Z][A-Z0-9_-]*) -`)
)

// defaultSystemBucket is the fallback group for group_by_system when no
// label or summary convention identifies a system. The source tool used
// a Korean literal ("기타"); this port uses an English default and
// documents the localization point rather than hiding it.
const defaultSystemBucket = "(other)"

// extractSystemName applies the four-tier convention group_by_system
// uses to classify an issue: an underscored label verbatim, else a fully
// uppercase label, else a bracket/colon/dash-prefixed token pulled from
// the summary, else the default bucket.
func extractSystemName(issue jira.RawIssue) string {
	for _, label := range issue.Fields.Labels {
		if strings.Contains(label, "_") {
			return label
		}
	}
	for _, label := range issue.Fields.Labels {
		if label != "" && label == strings.ToUpper(label) && strings.ToUpper(label) != strings.ToLower(label) {
			return label
		}
	}

	summary := issue.Fields.Summary
	if m := bracketSystemPattern.FindStringSubmatch(summary); m != nil {
		return m[1]
	}
	if m := colonSystemPattern.FindStringSubmatch(summary); m != nil {
		return m[1]
	}
	if m := dashSystemPattern.FindStringSubmatch(summary); m != nil {
		return m[1]
	}

	return defaultSystemBucket
}
