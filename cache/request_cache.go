// Package cache implements the per-tenant in-memory RequestCache and the
// CacheRegistry that owns one RequestCache per tenant.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/evalgo/jirasync/jira"
)

// gateway is the subset of jira.Gateway that RequestCache wraps. Defined
// here, not in package jira, so tests can fake it without standing up an
// HTTP server.
type gateway interface {
	SearchIssues(ctx context.Context, jql string, pageSize int, fields []string) ([]jira.RawIssue, error)
	GetIssue(ctx context.Context, key, expand string) (*jira.RawIssue, error)
}

// entry is a single cached value. It holds either a list of issues (a
// search result, in issues) or a single issue (a GetIssue result, in issue,
// which is nil for a cached not-found).
type entry struct {
	issues []jira.RawIssue
	issue  *jira.RawIssue
}

// Stats counts cache outcomes since the cache was created or last cleared.
// TotalRequests is every SearchIssues/GetIssue call routed through the
// cache (hits plus misses); APICalls is the subset that actually reached
// the wrapped gateway, i.e. the misses.
type Stats struct {
	Hits          int
	Misses        int
	CachedKeys    int
	TotalRequests int
	APICalls      int
	CurrentMonth  string
}

// RequestCache memoizes Jira reads for one tenant, keyed by the current
// wall-clock month plus a request fingerprint. It never calls back into
// Jira itself when it already holds an answer for the current month; it
// carries no retry logic of its own — a miss simply falls through to the
// wrapped gateway.
type RequestCache struct {
	mu           sync.Mutex
	gw           gateway
	currentMonth string
	items        map[string]entry
	hits         int
	misses       int
	now          func() time.Time
}

// NewRequestCache builds a RequestCache wrapping gw. now defaults to
// time.Now; tests may override it to control month rollover.
func NewRequestCache(gw gateway) *RequestCache {
	c := &RequestCache{
		gw:    gw,
		items: make(map[string]entry),
		now:   time.Now,
	}
	c.currentMonth = yearMonth(c.now())
	return c
}

func yearMonth(t time.Time) string {
	return t.Format("2006-01")
}

// rollover clears the cache when the wall-clock month has advanced since
// the cache was created or last checked. Must be called with mu held.
func (c *RequestCache) rollover() {
	m := yearMonth(c.now())
	if m != c.currentMonth {
		c.items = make(map[string]entry)
		c.currentMonth = m
		c.hits = 0
		c.misses = 0
	}
}

// SearchIssues returns a cached result for (jql, pageSize, fields) within
// the current month, or fetches and caches one on a miss.
func (c *RequestCache) SearchIssues(ctx context.Context, jql string, pageSize int, fields []string) ([]jira.RawIssue, error) {
	c.mu.Lock()
	c.rollover()
	key := c.currentMonth + "_jql_" + searchFingerprint(jql, pageSize, fields)
	if e, ok := c.items[key]; ok {
		c.hits++
		c.mu.Unlock()
		return e.issues, nil
	}
	c.misses++
	c.mu.Unlock()

	issues, err := c.gw.SearchIssues(ctx, jql, pageSize, fields)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.rollover()
	c.items[key] = entry{issues: issues}
	c.mu.Unlock()
	return issues, nil
}

// GetIssue returns a cached issue within the current month, or fetches and
// caches one on a miss. A nil, nil result (issue not found) is cached too,
// so a repeated lookup for a deleted issue does not keep hitting Jira.
func (c *RequestCache) GetIssue(ctx context.Context, key, expand string) (*jira.RawIssue, error) {
	c.mu.Lock()
	c.rollover()
	cacheKey := c.currentMonth + "_" + key
	if expand != "" {
		cacheKey += "_expand_" + expand
	}
	if e, ok := c.items[cacheKey]; ok {
		c.hits++
		c.mu.Unlock()
		return e.issue, nil
	}
	c.misses++
	c.mu.Unlock()

	issue, err := c.gw.GetIssue(ctx, key, expand)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.rollover()
	c.items[cacheKey] = entry{issue: issue}
	c.mu.Unlock()
	return issue, nil
}

// GetAllCachedIssues returns every distinct issue present in the cache's
// list-valued entries (i.e. cached search results), deduped by issue key,
// first-seen wins. It does not trigger any fetch.
func (c *RequestCache) GetAllCachedIssues() []jira.RawIssue {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollover()

	seen := make(map[string]bool)
	var all []jira.RawIssue
	for _, e := range c.items {
		for _, issue := range e.issues {
			if seen[issue.Key] {
				continue
			}
			seen[issue.Key] = true
			all = append(all, issue)
		}
	}
	return all
}

// Stats returns the current hit/miss counters and cached item count.
func (c *RequestCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollover()
	return Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		CachedKeys:    len(c.items),
		TotalRequests: c.hits + c.misses,
		APICalls:      c.misses,
		CurrentMonth:  c.currentMonth,
	}
}

// Summary returns a short human-readable rendering of Stats, used in CLI
// and admin-surface output.
func (c *RequestCache) Summary() string {
	s := c.Stats()
	return fmt.Sprintf("hits=%d misses=%d cached_items=%d total_requests=%d api_calls=%d current_month=%s",
		s.Hits, s.Misses, s.CachedKeys, s.TotalRequests, s.APICalls, c.currentMonth)
}

// Clear discards all cached entries and resets counters without changing
// the tracked current month.
func (c *RequestCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]entry)
	c.hits = 0
	c.misses = 0
}

// searchFingerprint produces the stable 8-character hash that
// SearchIssues builds its cache key from. Fields are sorted first so field-order
// differences in the caller do not produce distinct cache entries for the
// same logical request.
func searchFingerprint(jql string, pageSize int, fields []string) string {
	sorted := make([]string, len(fields))
	copy(sorted, fields)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(jql))
	h.Write([]byte("|"))
	fmt.Fprintf(h, "%d", pageSize)
	h.Write([]byte("|"))
	h.Write([]byte(strings.Join(sorted, ",")))

	return hex.EncodeToString(h.Sum(nil))[:8]
}
