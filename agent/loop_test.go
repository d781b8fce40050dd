package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo/jirasync/common"
	"github.com/evalgo/jirasync/jiraerr"
)

type scriptedClient struct {
	responses []ChatResponse
	errs      []error
	calls     int
}

func (s *scriptedClient) Chat(_ context.Context, _ ChatRequest) (ChatResponse, error) {
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], err
	}
	if len(s.responses) > 0 {
		return s.responses[len(s.responses)-1], err
	}
	return ChatResponse{}, err
}

func newTestRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(Schema{Name: "noop"}, func(_ context.Context, args map[string]interface{}) (Result, error) {
		return Result{Value: "ok"}, nil
	})
	r.MustRegister(Schema{Name: "boom"}, func(_ context.Context, _ map[string]interface{}) (Result, error) {
		return Result{}, errors.New("tool blew up")
	})
	return r
}

func TestLoop_TerminatesOnFinalMessageWithoutToolCalls(t *testing.T) {
	client := &scriptedClient{responses: []ChatResponse{{Content: "all done"}}}
	loop := NewLoop(newTestRegistry(), client, 8, time.Second, common.ServiceLogger("jirasync-test", "test"))

	result := loop.Run(context.Background(), RunRequest{Message: "summarize"})
	require.NoError(t, result.Err)
	assert.Equal(t, "all done", result.Content)
	assert.Equal(t, 1, result.Iterations)
	assert.Empty(t, result.ToolUsage)
}

func TestLoop_SingleToolCallDispatchedThenFinalMessage(t *testing.T) {
	client := &scriptedClient{responses: []ChatResponse{
		{ToolCalls: []ToolCall{{ID: "call-1", Name: "noop"}}},
		{Content: "used the tool"},
	}}
	loop := NewLoop(newTestRegistry(), client, 8, time.Second, common.ServiceLogger("jirasync-test", "test"))

	result := loop.Run(context.Background(), RunRequest{Message: "go"})
	require.NoError(t, result.Err)
	assert.Equal(t, "used the tool", result.Content)
	require.Len(t, result.ToolUsage, 1)
	assert.Equal(t, "noop", result.ToolUsage[0].Name)
	assert.Empty(t, result.ToolUsage[0].Error)
	assert.Equal(t, 1, result.Iterations)
}

func TestLoop_ParallelToolCallsPreserveOriginalOrderInTrace(t *testing.T) {
	client := &scriptedClient{responses: []ChatResponse{
		{ToolCalls: []ToolCall{
			{ID: "call-1", Name: "boom"},
			{ID: "call-2", Name: "noop"},
		}},
		{Content: "done"},
	}}
	loop := NewLoop(newTestRegistry(), client, 8, time.Second, common.ServiceLogger("jirasync-test", "test"))

	result := loop.Run(context.Background(), RunRequest{Message: "go"})
	require.NoError(t, result.Err)
	require.Len(t, result.ToolUsage, 2)
	assert.Equal(t, "boom", result.ToolUsage[0].Name)
	assert.NotEmpty(t, result.ToolUsage[0].Error)
	assert.Equal(t, "noop", result.ToolUsage[1].Name)
	assert.Empty(t, result.ToolUsage[1].Error)
}

func TestLoop_MaxIterationsExceededReturnsStructuredFailure(t *testing.T) {
	client := &scriptedClient{responses: []ChatResponse{
		{ToolCalls: []ToolCall{{ID: "call-1", Name: "noop"}}},
	}}
	loop := NewLoop(newTestRegistry(), client, 2, time.Second, common.ServiceLogger("jirasync-test", "test"))

	result := loop.Run(context.Background(), RunRequest{Message: "loop forever"})
	assert.ErrorIs(t, result.Err, jiraerr.ErrMaxIterationsExceeded)
	assert.Equal(t, 2, result.Iterations)
}

func TestLoop_ModelErrorWrapsErrModelError(t *testing.T) {
	client := &scriptedClient{errs: []error{errors.New("rate limited")}}
	loop := NewLoop(newTestRegistry(), client, 8, time.Second, common.ServiceLogger("jirasync-test", "test"))

	result := loop.Run(context.Background(), RunRequest{Message: "go"})
	assert.ErrorIs(t, result.Err, jiraerr.ErrModelError)
}
