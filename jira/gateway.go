package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/evalgo/jirasync/jiraerr"
)

// DefaultFields is the field set SearchIssues asks Jira for when the caller
// does not provide its own. It matches exactly what IssueChunker needs to
// build every chunk kind for an issue.
var DefaultFields = []string{
	"key", "summary", "description", "issuetype", "status", "priority",
	"labels", "assignee", "reporter", "project", "comment", "components",
	"fixVersions", "created", "updated",
}

// Gateway is a thin, tenant-scoped HTTP client for the Jira REST API. It
// performs exactly one attempt per call: no internal retry. Retry policy,
// if any, belongs to the coordinator driving it.
type Gateway struct {
	endpoint   string
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	pageDelay  time.Duration
}

// NewGateway builds a Gateway for a single tenant. breaker may be nil, in
// which case calls go straight through with no circuit protection.
func NewGateway(endpoint, token string, timeout time.Duration, pageDelay time.Duration, breaker *gobreaker.CircuitBreaker) *Gateway {
	return &Gateway{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		pageDelay:  pageDelay,
	}
}

// SearchIssues runs jql against the Jira search endpoint and returns every
// matching issue, paginating sequentially until a page comes back with
// fewer than pageSize issues. jql is normalized before being sent.
func (g *Gateway) SearchIssues(ctx context.Context, jql string, pageSize int, fields []string) ([]RawIssue, error) {
	if pageSize <= 0 {
		pageSize = 100
	}
	if len(fields) == 0 {
		fields = DefaultFields
	}
	normalized := NormalizeJQL(jql)

	var all []RawIssue
	startAt := 0
	for {
		page, err := g.searchPage(ctx, normalized, startAt, pageSize, fields)
		if err != nil {
			return all, err
		}
		all = append(all, page.Issues...)
		if len(page.Issues) < pageSize {
			break
		}
		startAt += len(page.Issues)

		if g.pageDelay > 0 {
			select {
			case <-ctx.Done():
				return all, ctx.Err()
			case <-time.After(g.pageDelay):
			}
		}
	}
	return all, nil
}

func (g *Gateway) searchPage(ctx context.Context, jql string, startAt, pageSize int, fields []string) (*searchResponse, error) {
	q := url.Values{}
	q.Set("jql", jql)
	q.Set("startAt", strconv.Itoa(startAt))
	q.Set("maxResults", strconv.Itoa(pageSize))
	q.Set("fields", strings.Join(fields, ","))

	reqURL := g.endpoint + "/rest/api/2/search?" + q.Encode()

	var resp searchResponse
	err := g.do(ctx, http.MethodGet, reqURL, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetIssue fetches a single issue by key. A 404 is not an error: it
// returns (nil, nil), since the issue may have been deleted between
// QueryPlanner selecting it and the fetch running.
func (g *Gateway) GetIssue(ctx context.Context, key, expand string) (*RawIssue, error) {
	reqURL := g.endpoint + "/rest/api/2/issue/" + url.PathEscape(key)
	if expand != "" {
		reqURL += "?expand=" + url.QueryEscape(expand)
	}

	var issue RawIssue
	err := g.do(ctx, http.MethodGet, reqURL, &issue)
	if err != nil {
		if se, ok := asStatusError(err); ok && se.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &issue, nil
}

// TestConnection reports whether the tenant's credentials are currently
// accepted by the Jira instance, by calling the "who am I" endpoint.
func (g *Gateway) TestConnection(ctx context.Context) bool {
	reqURL := g.endpoint + "/rest/api/2/myself"
	err := g.do(ctx, http.MethodGet, reqURL, nil)
	return err == nil
}

// do executes a single request through the circuit breaker (if set),
// decodes a JSON body into out when out is non-nil, and classifies any
// failure into the jiraerr taxonomy. No retry happens here or anywhere
// below it.
func (g *Gateway) do(ctx context.Context, method, reqURL string, out interface{}) error {
	call := func() (interface{}, error) {
		return g.doOnce(ctx, method, reqURL, out)
	}

	var err error
	if g.breaker != nil {
		_, err = g.breaker.Execute(call)
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			err = fmt.Errorf("%w: %v", jiraerr.ErrNetwork, err)
		}
	} else {
		_, err = call()
	}
	return err
}

func (g *Gateway) doOnce(ctx context.Context, method, reqURL string, out interface{}) (interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", jiraerr.ErrTimeout, err)
		}
		if te, ok := err.(interface{ Timeout() bool }); ok && te.Timeout() {
			return nil, fmt.Errorf("%w: %v", jiraerr.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", jiraerr.ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", jiraerr.ErrNetwork, err)
	}

	if resp.StatusCode >= 300 {
		return nil, jiraerr.NewStatusError(resp.StatusCode, string(body))
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return nil, fmt.Errorf("%w: decoding response: %v", jiraerr.ErrServerError, err)
		}
	}
	return out, nil
}

func asStatusError(err error) (*jiraerr.StatusError, bool) {
	se, ok := err.(*jiraerr.StatusError)
	if ok {
		return se, true
	}
	type unwrapper interface{ Unwrap() error }
	for e := err; e != nil; {
		if se, ok := e.(*jiraerr.StatusError); ok {
			return se, true
		}
		u, ok := e.(unwrapper)
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return nil, false
}
