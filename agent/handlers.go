package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/evalgo/jirasync/jira"
)

// NewStandardRegistry wires the full tool catalog, including the two
// supplemental tools extract_all_patterns and format_date, into a fresh
// Registry bound to tools. Each handler decodes its JSON
// args, calls the matching AtomicTools method, and wraps the result.
func NewStandardRegistry(tools *AtomicTools) *Registry {
	r := NewRegistry()

	r.MustRegister(Schema{
		Name:        "search_issues",
		Description: "Search Jira issues by JQL, using the tenant's request cache.",
		InputSchema: objectSchema(map[string]interface{}{
			"jql":         stringProp("JQL query string"),
			"max_results": intProp("optional cap on returned issues"),
		}, "jql"),
	}, func(ctx context.Context, args map[string]interface{}) (Result, error) {
		issues, err := tools.SearchIssues(ctx, stringArg(args, "jql", ""), intArg(args, "max_results", 0))
		if err != nil {
			return Result{}, err
		}
		return Result{Value: issues}, nil
	})

	r.MustRegister(Schema{
		Name:        "get_linked_issues",
		Description: "List issues linked to a given issue key, optionally filtered by link type.",
		InputSchema: objectSchema(map[string]interface{}{
			"issue_key": stringProp("the issue key to look up links for"),
			"link_type": stringProp("optional substring match on the link type name"),
		}, "issue_key"),
	}, func(ctx context.Context, args map[string]interface{}) (Result, error) {
		issues, err := tools.GetLinkedIssues(ctx, stringArg(args, "issue_key", ""), stringArg(args, "link_type", ""))
		if err != nil {
			return Result{}, err
		}
		return Result{Value: issues}, nil
	})

	r.MustRegister(Schema{
		Name:        "get_cached_issues",
		Description: "Return every issue currently held in the tenant's request cache, no network call.",
		InputSchema: objectSchema(nil),
	}, func(ctx context.Context, args map[string]interface{}) (Result, error) {
		return Result{Value: tools.GetCachedIssues()}, nil
	})

	r.MustRegister(Schema{
		Name:        "get_cache_summary",
		Description: "Return the tenant cache's hit/miss/key-count snapshot, including total requests and upstream API calls.",
		InputSchema: objectSchema(nil),
	}, func(ctx context.Context, args map[string]interface{}) (Result, error) {
		return Result{Value: tools.GetCacheSummary()}, nil
	})

	r.MustRegister(Schema{
		Name:        "group_by_system",
		Description: "Group a list of issues by the inferred system name (label or summary convention).",
		InputSchema: objectSchema(map[string]interface{}{
			"issues": arrayProp("issue list to group"),
		}, "issues"),
	}, func(ctx context.Context, args map[string]interface{}) (Result, error) {
		issues, err := decodeIssueList(args, "issues")
		if err != nil {
			return Result{}, err
		}
		return Result{Value: tools.GroupBySystem(issues)}, nil
	})

	r.MustRegister(Schema{
		Name:        "get_system_summary",
		Description: "Per-system issue counts, completion counts, and status histograms.",
		InputSchema: objectSchema(map[string]interface{}{
			"issues": arrayProp("issue list to summarize"),
		}, "issues"),
	}, func(ctx context.Context, args map[string]interface{}) (Result, error) {
		issues, err := decodeIssueList(args, "issues")
		if err != nil {
			return Result{}, err
		}
		return Result{Value: tools.GetSystemSummary(issues)}, nil
	})

	r.MustRegister(Schema{
		Name:        "extract_version",
		Description: "Extract the first semver-shaped token from text.",
		InputSchema: objectSchema(map[string]interface{}{
			"text": stringProp("text to scan"),
		}, "text"),
	}, func(ctx context.Context, args map[string]interface{}) (Result, error) {
		return Result{Value: tools.ExtractVersion(stringArg(args, "text", ""))}, nil
	})

	r.MustRegister(Schema{
		Name:        "extract_pattern",
		Description: "Extract the first regex match's capture group from text.",
		InputSchema: objectSchema(map[string]interface{}{
			"text":  stringProp("text to scan"),
			"regex": stringProp("regular expression"),
			"group": intProp("capture group index, 0 for the whole match"),
		}, "text", "regex"),
	}, func(ctx context.Context, args map[string]interface{}) (Result, error) {
		value, err := tools.ExtractPattern(stringArg(args, "text", ""), stringArg(args, "regex", ""), intArg(args, "group", 0))
		if err != nil {
			return Result{}, err
		}
		return Result{Value: value}, nil
	})

	r.MustRegister(Schema{
		Name:        "extract_all_patterns",
		Description: "Extract every regex match's capture group from text, not just the first.",
		InputSchema: objectSchema(map[string]interface{}{
			"text":  stringProp("text to scan"),
			"regex": stringProp("regular expression"),
			"group": intProp("capture group index, 0 for the whole match"),
		}, "text", "regex"),
	}, func(ctx context.Context, args map[string]interface{}) (Result, error) {
		values, err := tools.ExtractAllPatterns(stringArg(args, "text", ""), stringArg(args, "regex", ""), intArg(args, "group", 0))
		if err != nil {
			return Result{}, err
		}
		return Result{Value: values}, nil
	})

	r.MustRegister(Schema{
		Name:        "find_issue_by_field",
		Description: "Return the first issue whose field matches value.",
		InputSchema: objectSchema(map[string]interface{}{
			"issues":      arrayProp("issue list to search"),
			"field":       stringProp("field name"),
			"value":       stringProp("value to match"),
			"exact_match": boolProp("require exact string equality instead of trimmed/case-insensitive"),
		}, "issues", "field", "value"),
	}, func(ctx context.Context, args map[string]interface{}) (Result, error) {
		issues, err := decodeIssueList(args, "issues")
		if err != nil {
			return Result{}, err
		}
		return Result{Value: tools.FindIssueByField(issues, stringArg(args, "field", ""), stringArg(args, "value", ""), boolArg(args, "exact_match", false))}, nil
	})

	r.MustRegister(Schema{
		Name:        "find_all_issues_by_field",
		Description: "Return every issue whose field matches value.",
		InputSchema: objectSchema(map[string]interface{}{
			"issues":      arrayProp("issue list to search"),
			"field":       stringProp("field name"),
			"value":       stringProp("value to match"),
			"exact_match": boolProp("require exact string equality instead of trimmed/case-insensitive"),
		}, "issues", "field", "value"),
	}, func(ctx context.Context, args map[string]interface{}) (Result, error) {
		issues, err := decodeIssueList(args, "issues")
		if err != nil {
			return Result{}, err
		}
		return Result{Value: tools.FindAllIssuesByField(issues, stringArg(args, "field", ""), stringArg(args, "value", ""), boolArg(args, "exact_match", false))}, nil
	})

	r.MustRegister(Schema{
		Name:        "group_by_field",
		Description: "Group issues by a field value; missing/nil/empty values collapse into bucket (none).",
		InputSchema: objectSchema(map[string]interface{}{
			"issues": arrayProp("issue list to group"),
			"field":  stringProp("field name"),
		}, "issues", "field"),
	}, func(ctx context.Context, args map[string]interface{}) (Result, error) {
		issues, err := decodeIssueList(args, "issues")
		if err != nil {
			return Result{}, err
		}
		return Result{Value: tools.GroupByField(issues, stringArg(args, "field", ""))}, nil
	})

	r.MustRegister(Schema{
		Name:        "filter_issues",
		Description: "Keep only issues matching every field->value pair given.",
		InputSchema: objectSchema(map[string]interface{}{
			"issues":  arrayProp("issue list to filter"),
			"filters": objectProp("field name -> value map"),
		}, "issues", "filters"),
	}, func(ctx context.Context, args map[string]interface{}) (Result, error) {
		issues, err := decodeIssueList(args, "issues")
		if err != nil {
			return Result{}, err
		}
		filters, _ := args["filters"].(map[string]interface{})
		return Result{Value: tools.FilterIssues(issues, filters)}, nil
	})

	r.MustRegister(Schema{
		Name:        "count_by_field",
		Description: "Count issues by a field value; missing/nil/empty values collapse into bucket (none).",
		InputSchema: objectSchema(map[string]interface{}{
			"issues": arrayProp("issue list to count"),
			"field":  stringProp("field name"),
		}, "issues", "field"),
	}, func(ctx context.Context, args map[string]interface{}) (Result, error) {
		issues, err := decodeIssueList(args, "issues")
		if err != nil {
			return Result{}, err
		}
		return Result{Value: tools.CountByField(issues, stringArg(args, "field", ""))}, nil
	})

	r.MustRegister(Schema{
		Name:        "format_as_table",
		Description: "Render rows as a markdown table restricted to the given columns.",
		InputSchema: objectSchema(map[string]interface{}{
			"data":    arrayProp("list of row objects"),
			"columns": arrayProp("column names, in order"),
			"width":   intProp("per-cell truncation width, 0 for unbounded"),
		}, "data", "columns"),
	}, func(ctx context.Context, args map[string]interface{}) (Result, error) {
		rows := decodeRows(args["data"])
		columns := decodeStringList(args["columns"])
		return Result{Value: tools.FormatAsTable(rows, columns, intArg(args, "width", 0))}, nil
	})

	r.MustRegister(Schema{
		Name:        "format_as_list",
		Description: "Render rows as bullet-prefixed lines from a {field}-substitution template.",
		InputSchema: objectSchema(map[string]interface{}{
			"data":     arrayProp("list of row objects"),
			"template": stringProp("line template with {field} placeholders"),
			"bullet":   stringProp("bullet prefix, e.g. \"- \""),
		}, "data", "template"),
	}, func(ctx context.Context, args map[string]interface{}) (Result, error) {
		rows := decodeRows(args["data"])
		return Result{Value: tools.FormatAsList(rows, stringArg(args, "template", ""), stringArg(args, "bullet", "- "))}, nil
	})

	r.MustRegister(Schema{
		Name:        "format_date",
		Description: "Reformat a timestamp string under a Go reference layout.",
		InputSchema: objectSchema(map[string]interface{}{
			"value":  stringProp("timestamp to reformat"),
			"layout": stringProp("Go reference-time layout, e.g. \"2006-01-02\""),
		}, "value", "layout"),
	}, func(ctx context.Context, args map[string]interface{}) (Result, error) {
		return Result{Value: tools.FormatDate(stringArg(args, "value", ""), stringArg(args, "layout", "2006-01-02"))}, nil
	})

	return r
}

func decodeIssueList(args map[string]interface{}, key string) ([]jira.RawIssue, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("agent: encoding %q argument: %w", key, err)
	}
	var issues []jira.RawIssue
	if err := json.Unmarshal(b, &issues); err != nil {
		return nil, fmt.Errorf("agent: decoding %q argument: %w", key, err)
	}
	return issues, nil
}

func decodeRows(raw interface{}) []map[string]interface{} {
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	rows := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]interface{}); ok {
			rows = append(rows, m)
		}
	}
	return rows
}

func decodeStringList(raw interface{}) []string {
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringArg(args map[string]interface{}, key, def string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return def
}

func intArg(args map[string]interface{}, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func boolArg(args map[string]interface{}, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

func objectSchema(props map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func intProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description}
}

func boolProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "boolean", "description": description}
}

func arrayProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "array", "description": description}
}

func objectProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "object", "description": description}
}
