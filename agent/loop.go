package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/evalgo/jirasync/common"
	"github.com/evalgo/jirasync/jiraerr"
)

// ChatMessage is one turn of the conversation the Loop drives. Role is
// "user", "assistant", or "tool"; ToolCallID is set only on a tool-result
// message, echoing the call it answers.
type ChatMessage struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is one invocation the model asked for in an assistant turn.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]interface{}
}

// ChatRequest is what the Loop sends the model each iteration: the
// running transcript plus the tool catalog it may call.
type ChatRequest struct {
	System   string
	Messages []ChatMessage
	Tools    []Schema
}

// ChatResponse is the model's answer to one ChatRequest: either final
// prose (ToolCalls empty) or a batch of tool calls to execute before the
// next iteration.
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// ChatClient is the Loop's only external dependency: something that can
// turn a transcript plus a tool catalog into the model's next turn. The
// Anthropic-backed implementation lives in package llm; tests substitute
// a scripted fake.
type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// ToolTrace records one executed tool call, in the order its result was
// produced, for the Observability contract: ordered tool names, per-call
// durations, and enough detail to reconstruct what happened without
// re-running anything.
type ToolTrace struct {
	Name     string
	Args     map[string]interface{}
	Duration time.Duration
	Error    string
}

// RunRequest starts one conversation turn.
type RunRequest struct {
	System  string
	Message string
	// History lets a caller resume a prior conversation; Message is
	// appended as the newest user turn.
	History []ChatMessage
}

// RunResult is everything Loop.Run produces: the model's final content
// when it terminated cleanly, the full tool-usage trace, and enough
// metadata to classify a non-clean termination.
type RunResult struct {
	Content    string
	ToolUsage  []ToolTrace
	Iterations int
	Err        error
}

// Loop is a heavily trimmed adaptation of an iterate-call-dispatch agent
// loop: no bootstrap/persona files, no vision or sandbox concerns, no
// distributed tracing, no session persistence. What is kept is the core
// shape: call the model, and if it asked for tools, run them (one
// sequentially, several concurrently with results reassembled in call
// order) and feed the results back, until the model stops asking or a
// bound is hit.
type Loop struct {
	registry      *Registry
	client        ChatClient
	maxIterations int
	turnTimeout   time.Duration
	logger        *common.ContextLogger
}

// NewLoop builds a Loop. maxIterations <= 0 defaults to 8; turnTimeout <=
// 0 defaults to 60s, applied per model call, not to the whole run.
func NewLoop(registry *Registry, client ChatClient, maxIterations int, turnTimeout time.Duration, logger *common.ContextLogger) *Loop {
	if maxIterations <= 0 {
		maxIterations = 8
	}
	if turnTimeout <= 0 {
		turnTimeout = 60 * time.Second
	}
	return &Loop{registry: registry, client: client, maxIterations: maxIterations, turnTimeout: turnTimeout, logger: logger}
}

// Run drives one conversation turn to completion: a final message without
// tool calls, maxIterations exhausted, or a per-turn timeout. The latter
// two return a structured failure alongside whatever tool trace was
// collected before the bound was hit; the loop itself never panics.
func (l *Loop) Run(ctx context.Context, req RunRequest) RunResult {
	messages := append(append([]ChatMessage{}, req.History...), ChatMessage{Role: "user", Content: req.Message})
	tools := l.registry.Schemas()

	var trace []ToolTrace

	// toolRounds counts completed tool-dispatch rounds, not model round
	// trips: a model call that ends the conversation without asking for a
	// tool rides on whichever round produced it, so a single
	// tool-call-then-final-message run reports Iterations == 1.
	toolRounds := 0

	for modelCall := 1; modelCall <= l.maxIterations; modelCall++ {
		turnCtx, cancel := context.WithTimeout(ctx, l.turnTimeout)
		resp, err := l.client.Chat(turnCtx, ChatRequest{System: req.System, Messages: messages, Tools: tools})
		cancel()
		if err != nil {
			return RunResult{ToolUsage: trace, Iterations: maxInt(toolRounds, 1), Err: fmt.Errorf("%w: %v", jiraerr.ErrModelError, err)}
		}

		if len(resp.ToolCalls) == 0 {
			return RunResult{Content: resp.Content, ToolUsage: trace, Iterations: maxInt(toolRounds, 1)}
		}

		toolRounds++
		messages = append(messages, ChatMessage{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})

		results, callTrace := l.dispatch(ctx, resp.ToolCalls)
		trace = append(trace, callTrace...)
		messages = append(messages, results...)
	}

	return RunResult{
		ToolUsage:  trace,
		Iterations: toolRounds,
		Err:        jiraerr.ErrMaxIterationsExceeded,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// dispatch executes calls against the registry: a single call runs
// inline, several run concurrently with results reassembled in the
// original call order so the transcript the model sees next is
// deterministic regardless of which goroutine finished first.
func (l *Loop) dispatch(ctx context.Context, calls []ToolCall) ([]ChatMessage, []ToolTrace) {
	if len(calls) == 1 {
		msg, t := l.invokeOne(ctx, calls[0])
		return []ChatMessage{msg}, []ToolTrace{t}
	}

	type indexedResult struct {
		index int
		msg   ChatMessage
		trace ToolTrace
	}

	resultCh := make(chan indexedResult, len(calls))
	var wg sync.WaitGroup
	wg.Add(len(calls))
	for i, call := range calls {
		go func(i int, call ToolCall) {
			defer wg.Done()
			msg, t := l.invokeOne(ctx, call)
			resultCh <- indexedResult{index: i, msg: msg, trace: t}
		}(i, call)
	}
	wg.Wait()
	close(resultCh)

	ordered := make([]indexedResult, 0, len(calls))
	for r := range resultCh {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].index < ordered[j].index })

	msgs := make([]ChatMessage, len(ordered))
	traces := make([]ToolTrace, len(ordered))
	for i, r := range ordered {
		msgs[i] = r.msg
		traces[i] = r.trace
	}
	return msgs, traces
}

func (l *Loop) invokeOne(ctx context.Context, call ToolCall) (ChatMessage, ToolTrace) {
	start := time.Now()
	result, err := l.registry.Invoke(ctx, call.Name, call.Args)
	duration := time.Since(start)

	t := ToolTrace{Name: call.Name, Args: call.Args, Duration: duration}
	if err != nil {
		t.Error = err.Error()
		l.logger.WithField("tool", call.Name).WithError(err).Warn("tool invocation failed")
		return ChatMessage{Role: "tool", ToolCallID: call.ID, Content: fmt.Sprintf("error: %v", err)}, t
	}
	return ChatMessage{Role: "tool", ToolCallID: call.ID, Content: fmt.Sprintf("%v", result.Value)}, t
}
