package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo/jirasync/jiraerr"
)

func TestRegistry_InvokeUnknownToolReturnsToolNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Invoke(context.Background(), "nonexistent", nil)
	assert.ErrorIs(t, err, jiraerr.ErrToolNotFound)
}

func TestRegistry_RegisterDuplicateNameFails(t *testing.T) {
	r := NewRegistry()
	schema := Schema{Name: "echo"}
	handler := func(_ context.Context, args map[string]interface{}) (Result, error) {
		return Result{Value: args}, nil
	}
	require.NoError(t, r.Register(schema, handler))
	assert.Error(t, r.Register(schema, handler))
}

func TestRegistry_InvokeDispatchesToHandler(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(Schema{Name: "double"}, func(_ context.Context, args map[string]interface{}) (Result, error) {
		n, _ := args["n"].(int)
		return Result{Value: n * 2}, nil
	})

	result, err := r.Invoke(context.Background(), "double", map[string]interface{}{"n": 21})
	require.NoError(t, err)
	assert.Equal(t, 42, result.Value)
}

func TestRegistry_HandlerErrorPropagates(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	r.MustRegister(Schema{Name: "fail"}, func(_ context.Context, _ map[string]interface{}) (Result, error) {
		return Result{}, boom
	})

	_, err := r.Invoke(context.Background(), "fail", nil)
	assert.ErrorIs(t, err, boom)
}

func TestRegistry_SchemasAndHasTool(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(Schema{Name: "a"}, func(context.Context, map[string]interface{}) (Result, error) { return Result{}, nil })
	r.MustRegister(Schema{Name: "b"}, func(context.Context, map[string]interface{}) (Result, error) { return Result{}, nil })

	assert.True(t, r.HasTool("a"))
	assert.False(t, r.HasTool("c"))
	assert.Len(t, r.Schemas(), 2)
}

func TestNewStandardRegistry_RegistersEveryCatalogTool(t *testing.T) {
	tools, _ := newTestTools(t)
	r := NewStandardRegistry(tools)

	expected := []string{
		"search_issues", "get_linked_issues", "get_cached_issues", "get_cache_summary",
		"group_by_system", "get_system_summary", "extract_version", "extract_pattern",
		"extract_all_patterns", "find_issue_by_field", "find_all_issues_by_field",
		"group_by_field", "filter_issues", "count_by_field", "format_as_table",
		"format_as_list", "format_date",
	}
	for _, name := range expected {
		assert.True(t, r.HasTool(name), "expected tool %s to be registered", name)
	}
}
