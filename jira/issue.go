// Package jira is a thin HTTP adapter to the Jira REST API: pagination,
// JQL normalization, and a typed error taxonomy. It holds no cache and no
// retry logic: caching lives one layer up in cache.RequestCache, and
// sync.Coordinator does not retry either.
package jira

// RawIssue is a Jira API issue payload. The gateway treats it as opaque
// except for the fields the rest of the system needs; any other field in
// the payload is dropped on decoding.
type RawIssue struct {
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

type IssueFields struct {
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	Status      NamedField `json:"status"`
	Priority    NamedField `json:"priority"`
	IssueType   NamedField `json:"issuetype"`
	Project     NamedField `json:"project"`
	Assignee    *UserField `json:"assignee"`
	Reporter    *UserField `json:"reporter"`
	Labels      []string   `json:"labels"`
	Components  []NamedField `json:"components"`
	FixVersions []NamedField `json:"fixVersions"`
	Comment     CommentField `json:"comment"`
	IssueLinks  []IssueLink `json:"issuelinks"`
	Created     string     `json:"created"`
	Updated     string     `json:"updated"`
}

// IssueLink is one entry of a Jira issue's issuelinks array: a typed
// relationship to another issue, in either the inward or outward
// direction (never both on the same link).
type IssueLink struct {
	Type          LinkType        `json:"type"`
	OutwardIssue  *LinkedIssueRef `json:"outwardIssue,omitempty"`
	InwardIssue   *LinkedIssueRef `json:"inwardIssue,omitempty"`
}

type LinkType struct {
	Name string `json:"name"`
}

// LinkedIssueRef is the minimal projection of a linked issue Jira embeds
// inline on the linking issue; fetching the full issue is a separate call.
type LinkedIssueRef struct {
	Key string `json:"key"`
}

// IssueKey returns the key of whichever side of the link is not the
// linking issue itself: outward if present, else inward.
func (l IssueLink) IssueKey() string {
	if l.OutwardIssue != nil {
		return l.OutwardIssue.Key
	}
	if l.InwardIssue != nil {
		return l.InwardIssue.Key
	}
	return ""
}

type NamedField struct {
	Name string `json:"name"`
	Key  string `json:"key,omitempty"`
}

type UserField struct {
	DisplayName string `json:"displayName"`
}

type CommentField struct {
	Comments []Comment `json:"comments"`
}

type Comment struct {
	Body   string     `json:"body"`
	Author UserField  `json:"author"`
}

// ComponentNames returns the component names as plain strings.
func (f IssueFields) ComponentNames() []string {
	return namedFieldNames(f.Components)
}

// FixVersionNames returns the fix-version names as plain strings.
func (f IssueFields) FixVersionNames() []string {
	return namedFieldNames(f.FixVersions)
}

func namedFieldNames(fields []NamedField) []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return names
}

// searchResponse is the envelope Jira wraps search results in.
type searchResponse struct {
	StartAt    int        `json:"startAt"`
	MaxResults int        `json:"maxResults"`
	Total      int        `json:"total"`
	Issues     []RawIssue `json:"issues"`
}
