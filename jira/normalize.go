package jira

import "strings"

// NormalizeJQL rewrites a JQL string into the canonical form the gateway
// sends on the wire: string literals use double quotes, and the legacy
// fixVersions field reference is rewritten to fixVersion. It is pure and
// idempotent — normalize(normalize(q)) == normalize(q) — so callers may
// normalize tenant-supplied JQL before or after QueryPlanner builds it
// without changing the result.
func NormalizeJQL(jql string) string {
	out := rewriteQuotes(jql)
	out = strings.ReplaceAll(out, "fixVersions", "fixVersion")
	return out
}

// rewriteQuotes turns single-quoted string literals into double-quoted
// ones, leaving already-double-quoted literals untouched. It walks the
// string once, tracking whether it is inside a single- or double-quoted
// span so quote characters belonging to the other style are left alone.
func rewriteQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inSingle := false
	inDouble := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
			b.WriteByte('"')
		case c == '"' && !inSingle:
			inDouble = !inDouble
			b.WriteByte('"')
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}
