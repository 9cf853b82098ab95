package conductor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/casualjim/conductor/internal/toolstream"
	"github.com/casualjim/conductor/messages"
	"github.com/casualjim/conductor/tool"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newCoordinator(t *testing.T, options ...Option) (*Coordinator, chan messages.AddToolResult) {
	t.Helper()
	results := make(chan messages.AddToolResult, 16)
	c, err := New(append([]Option{WithResultHandler(Collect(results))}, options...)...)
	require.NoError(t, err)
	// an empty, settled snapshot ends the initial load
	require.NoError(t, c.Sync(context.Background(), messages.Snapshot{}))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		assert.NoError(t, c.Close(ctx))
	})
	return c, results
}

func (c *Coordinator) record(id string) (*toolstream.Controller, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Get(id)
}

func (c *Coordinator) records() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}

func thread(loading bool, parts ...messages.Part) messages.Snapshot {
	return messages.Snapshot{
		Messages:  []messages.Message{{ID: "m1", Role: messages.RoleAssistant, Content: parts}},
		IsLoading: loading,
	}
}

func toolCall(id, name, args string) messages.ToolCallPart {
	return messages.ToolCallPart{ToolCallID: id, ToolName: name, ArgsText: args}
}

func withResult(p messages.ToolCallPart, result string) messages.ToolCallPart {
	p.Result = gjson.Parse(result)
	return p
}

func waitResult(t *testing.T, results <-chan messages.AddToolResult) messages.AddToolResult {
	t.Helper()
	select {
	case res := <-results:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tool result")
		return messages.AddToolResult{}
	}
}

func expectNoResult(t *testing.T, results <-chan messages.AddToolResult) {
	t.Helper()
	select {
	case res := <-results:
		t.Fatalf("unexpected tool result %+v", res)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitIdle(t *testing.T, c *Coordinator) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(c.Statuses()) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

// searchTool counts its invocations and blocks until release is closed.
func searchTool(calls *atomic.Int32, release <-chan struct{}) tool.Tool {
	return tool.Must(func(ctx context.Context, args gjson.Result, _ tool.Call) (any, error) {
		calls.Add(1)
		if release != nil {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return args.Get("q").String(), nil
	}, tool.Name("search"))
}

func TestNew(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, c.ID())

	_, err = New(WithCancelGrace(-time.Second), WithContext(nil)) //nolint:staticcheck
	require.Error(t, err)
	assert.ErrorContains(t, err, "cancel grace")
	assert.ErrorContains(t, err, "context is required")
}

func TestCoordinator_DispatchOnceArgsComplete(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c, results := newCoordinator(t, WithToolSet(searchTool(&calls, release)))
	ctx := context.Background()

	require.NoError(t, c.Sync(ctx, thread(true, toolCall("a", "search", `{"q":"x`))))
	_, ok := c.Status("a")
	assert.False(t, ok, "incomplete arguments must not dispatch")

	require.NoError(t, c.Sync(ctx, thread(true, toolCall("a", "search", `{"q":"x"}`))))
	st, ok := c.Status("a")
	require.True(t, ok)
	assert.Equal(t, messages.Executing{}, st)
	assert.Equal(t, map[string]messages.ExecutionStatus{"a": messages.Executing{}}, c.Statuses())

	require.NoError(t, c.Sync(ctx, thread(false, toolCall("a", "search", `{"q":"x"}`))))
	close(release)

	res := waitResult(t, results)
	assert.Equal(t, messages.AddToolResult{ToolCallID: "a", ToolName: "search", Result: "x"}, res)
	waitIdle(t, c)
	assert.Equal(t, int32(1), calls.Load())
	expectNoResult(t, results)
}

func TestCoordinator_ArgsTextAppendOnly(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()

	require.NoError(t, c.Sync(ctx, thread(true, toolCall("a", "search", `{"q":"x`))))
	require.NoError(t, c.Sync(ctx, thread(true, toolCall("a", "search", `{"q":"xy`))))

	err := c.Sync(ctx, thread(true, toolCall("a", "search", `{"q":"z`)))
	var argsErr *ArgsTextError
	require.ErrorAs(t, err, &argsErr)
	assert.Equal(t, "a", argsErr.ToolCallID)
	assert.Equal(t, `{"q":"xy`, argsErr.Expected)
	assert.Equal(t, `{"q":"z`, argsErr.Received)
	assert.Contains(t, err.Error(), `{"q":"xy`)
	assert.Contains(t, err.Error(), `{"q":"z`)
}

func TestCoordinator_ArgsTextChangedAfterClose(t *testing.T) {
	c, results := newCoordinator(t, WithToolSet(tool.Must(nil, tool.Name("manual"))))
	ctx := context.Background()

	require.NoError(t, c.Sync(ctx, thread(false, toolCall("a", "manual", `{"q":"x"}`))))
	require.NoError(t, c.Sync(ctx, thread(false, toolCall("a", "manual", `{"q":"changed"}`))))

	rec, ok := c.record("a")
	require.True(t, ok)
	assert.Equal(t, `{"q":"x"}`, rec.ArgsText())
	_, executing := c.Status("a")
	assert.False(t, executing)
	expectNoResult(t, results)
}

func TestCoordinator_InitialLoadIsNeverExecuted(t *testing.T) {
	var calls atomic.Int32
	results := make(chan messages.AddToolResult, 4)
	c, err := New(WithToolSet(searchTool(&calls, nil)), WithResultHandler(Collect(results)))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Sync(ctx, thread(true, toolCall("a", "search", `{"q":"a`))))
	require.NoError(t, c.Sync(ctx, thread(false,
		toolCall("a", "search", `{"q":"a"}`),
		toolCall("b", "search", `{"q":"b"}`),
	)))
	assert.Empty(t, c.Statuses())

	require.NoError(t, c.Sync(ctx, thread(false,
		toolCall("a", "search", `{"q":"a"}`),
		toolCall("b", "search", `{"q":"b"}`),
		toolCall("c", "search", `{"q":"c"}`),
	)))

	res := waitResult(t, results)
	assert.Equal(t, "c", res.ToolCallID)
	expectNoResult(t, results)
	assert.Equal(t, int32(1), calls.Load())
	require.NoError(t, c.Close(ctx))
}

func TestCoordinator_LoadingKeepsWindowOpen(t *testing.T) {
	var calls atomic.Int32
	results := make(chan messages.AddToolResult, 4)
	c, err := New(WithToolSet(searchTool(&calls, nil)), WithResultHandler(Collect(results)))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Sync(ctx, thread(true, toolCall("a", "search", `{"q":"a"}`))))
	require.NoError(t, c.Sync(ctx, thread(true, toolCall("b", "search", `{"q":"b"}`))))
	require.NoError(t, c.Sync(ctx, thread(false)))
	// loading flapping back on does not reopen the window
	require.NoError(t, c.Sync(ctx, thread(true, toolCall("c", "search", `{"q":"c"}`))))

	res := waitResult(t, results)
	assert.Equal(t, "c", res.ToolCallID)
	expectNoResult(t, results)
	require.NoError(t, c.Close(ctx))
}

func TestCoordinator_HistoricalCallsAreSkipped(t *testing.T) {
	var calls atomic.Int32
	c, results := newCoordinator(t, WithToolSet(searchTool(&calls, nil)))
	ctx := context.Background()

	historical := withResult(toolCall("a", "search", `{"q":"x"}`), `"done"`)
	require.NoError(t, c.Sync(ctx, thread(false, historical)))
	assert.Empty(t, c.Statuses())
	assert.Equal(t, 0, c.records())

	// the id stays ignored even if the result disappears again
	require.NoError(t, c.Sync(ctx, thread(false, toolCall("a", "search", `{"q":"x"}`))))
	expectNoResult(t, results)
	assert.Equal(t, int32(0), calls.Load())
}

func TestCoordinator_ExternalResultWins(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c, results := newCoordinator(t, WithToolSet(searchTool(&calls, release)))
	ctx := context.Background()

	require.NoError(t, c.Sync(ctx, thread(false, toolCall("a", "search", `{"q":"x"}`))))
	require.NoError(t, c.Sync(ctx, thread(false, withResult(toolCall("a", "search", `{"q":"x"}`), `"from backend"`))))

	close(release)
	waitIdle(t, c)
	expectNoResult(t, results)

	rec, ok := c.record("a")
	require.True(t, ok)
	resp, ok := rec.Response()
	require.True(t, ok)
	assert.Equal(t, "from backend", resp.Result)
	assert.True(t, rec.Closed())
}

func TestCoordinator_EmittedResultIsRecorded(t *testing.T) {
	var calls atomic.Int32
	c, results := newCoordinator(t, WithToolSet(searchTool(&calls, nil)))
	ctx := context.Background()

	require.NoError(t, c.Sync(ctx, thread(false, toolCall("a", "search", `{"q":"x"}`))))
	assert.Equal(t, "x", waitResult(t, results).Result)
	waitIdle(t, c)

	rec, ok := c.record("a")
	require.True(t, ok)
	resp, ok := rec.Response()
	require.True(t, ok)
	assert.Equal(t, "x", resp.Result)

	require.NoError(t, c.Sync(ctx, thread(false, withResult(toolCall("a", "search", `{"q":"x"}`), `"from backend"`))))
	resp, _ = rec.Response()
	assert.Equal(t, "x", resp.Result)
	expectNoResult(t, results)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCoordinator_FirstResultIsKept(t *testing.T) {
	c, _ := newCoordinator(t, WithToolSet(tool.Must(nil, tool.Name("manual"))))
	ctx := context.Background()

	require.NoError(t, c.Sync(ctx, thread(false, toolCall("a", "manual", `{"q":`))))
	require.NoError(t, c.Sync(ctx, thread(false, withResult(toolCall("a", "manual", `{"q":`), `1`))))
	require.NoError(t, c.Sync(ctx, thread(false, withResult(toolCall("a", "manual", `{"q":`), `2`))))

	rec, ok := c.record("a")
	require.True(t, ok)
	resp, _ := rec.Response()
	assert.Equal(t, float64(1), resp.Result)
}

func TestCoordinator_CallsWithoutExecutor(t *testing.T) {
	c, results := newCoordinator(t, WithToolSet(tool.Must(nil, tool.Name("manual"))))
	ctx := context.Background()

	require.NoError(t, c.Sync(ctx, thread(false,
		toolCall("a", "manual", `{}`),
		toolCall("b", "unknown", `{}`),
	)))
	assert.Empty(t, c.Statuses())
	expectNoResult(t, results)
	assert.Equal(t, 2, c.records())
}

func TestCoordinator_LiveToolSource(t *testing.T) {
	var calls atomic.Int32
	registry := tool.NewRegistry()
	c, results := newCoordinator(t, WithTools(registry))
	ctx := context.Background()

	require.NoError(t, c.Sync(ctx, thread(false, toolCall("a", "search", `{"q":"a"}`))))
	_, ok := c.Status("a")
	assert.False(t, ok)

	registry.Add(searchTool(&calls, nil))
	require.NoError(t, c.Sync(ctx, thread(false,
		toolCall("a", "search", `{"q":"a"}`),
		toolCall("b", "search", `{"q":"b"}`),
	)))

	res := waitResult(t, results)
	assert.Equal(t, "b", res.ToolCallID)
	expectNoResult(t, results)
}

func TestCoordinator_ExecutorFailures(t *testing.T) {
	failing := tool.Must(func(context.Context, gjson.Result, tool.Call) (any, error) {
		return nil, errors.New("boom")
	}, tool.Name("failing"))
	panicking := tool.Must(func(context.Context, gjson.Result, tool.Call) (any, error) {
		panic("kaput")
	}, tool.Name("panicking"))
	artifact := tool.Must(func(context.Context, gjson.Result, tool.Call) (any, error) {
		return tool.Response{Result: "partial", IsError: true, Artifact: map[string]any{"rows": 3}}, nil
	}, tool.Name("artifact"))

	tests := []struct {
		name  string
		tool  string
		check func(t *testing.T, res messages.AddToolResult)
	}{
		{
			name: "error",
			tool: "failing",
			check: func(t *testing.T, res messages.AddToolResult) {
				assert.True(t, res.IsError)
				assert.Equal(t, "boom", res.Result)
			},
		},
		{
			name: "panic",
			tool: "panicking",
			check: func(t *testing.T, res messages.AddToolResult) {
				assert.True(t, res.IsError)
				assert.Contains(t, res.Result, "kaput")
			},
		},
		{
			name: "response passthrough",
			tool: "artifact",
			check: func(t *testing.T, res messages.AddToolResult) {
				assert.True(t, res.IsError)
				assert.Equal(t, "partial", res.Result)
				assert.Equal(t, map[string]any{"rows": 3}, res.Artifact)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, results := newCoordinator(t, WithToolSet(failing, panicking, artifact))
			require.NoError(t, c.Sync(context.Background(), thread(false, toolCall("a", tt.tool, `{}`))))
			res := waitResult(t, results)
			assert.Equal(t, "a", res.ToolCallID)
			assert.Equal(t, tt.tool, res.ToolName)
			tt.check(t, res)
		})
	}
}

func TestCoordinator_ArgumentValidation(t *testing.T) {
	schema := tool.Object(tool.Property{Name: "q", Type: "string", Required: true})
	strict := tool.Must(func(_ context.Context, args gjson.Result, _ tool.Call) (any, error) {
		return args.Get("q").String(), nil
	}, tool.Name("strict"), tool.Parameters(schema))
	lenient := tool.Must(func(context.Context, gjson.Result, tool.Call) (any, error) {
		return "unreachable", nil
	}, tool.Name("lenient"), tool.Parameters(schema), tool.OnValidationError(func(context.Context, gjson.Result, tool.Call) (any, error) {
		return "fallback", nil
	}))

	c, results := newCoordinator(t, WithToolSet(strict, lenient))
	ctx := context.Background()

	require.NoError(t, c.Sync(ctx, thread(false, toolCall("a", "strict", `{"q":1}`))))
	res := waitResult(t, results)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Result, "Function parameter validation failed.")

	require.NoError(t, c.Sync(ctx, thread(false, toolCall("a", "strict", `{"q":1}`), toolCall("b", "lenient", `{}`))))
	res = waitResult(t, results)
	assert.Equal(t, messages.AddToolResult{ToolCallID: "b", ToolName: "lenient", Result: "fallback"}, res)
}

func TestCoordinator_NestedCalls(t *testing.T) {
	var calls atomic.Int32
	c, results := newCoordinator(t, WithToolSet(searchTool(&calls, nil), tool.Must(nil, tool.Name("delegate"))))

	parent := toolCall("p", "delegate", `{"task":"find"}`)
	parent.Messages = []messages.Message{{
		ID:   "sub",
		Role: messages.RoleAssistant,
		Content: []messages.Part{
			withResult(toolCall("old", "search", `{"q":"old"}`), `"stale"`),
			toolCall("new", "search", `{"q":"deep"}`),
		},
	}}

	require.NoError(t, c.Sync(context.Background(), thread(false, parent)))
	res := waitResult(t, results)
	assert.Equal(t, messages.AddToolResult{ToolCallID: "new", ToolName: "search", Result: "deep"}, res)
	expectNoResult(t, results)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCoordinator_StreamingTool(t *testing.T) {
	type observed struct {
		text string
		args gjson.Result
	}
	seen := make(chan observed, 1)
	streaming := tool.Must(nil, tool.Name("draft"), tool.Streaming(func(ctx context.Context, reader tool.ArgsReader, _ tool.Call) {
		var text string
		for {
			delta, err := reader.Next(ctx)
			if err != nil {
				break
			}
			text += delta
		}
		args, _ := reader.Args(ctx)
		seen <- observed{text: text, args: args}
	}))

	c, _ := newCoordinator(t, WithToolSet(streaming))
	ctx := context.Background()
	require.NoError(t, c.Sync(ctx, thread(true, toolCall("a", "draft", `{"title":`))))
	require.NoError(t, c.Sync(ctx, thread(true, toolCall("a", "draft", `{"title":"Hello`))))
	require.NoError(t, c.Sync(ctx, thread(false, toolCall("a", "draft", `{"title":"Hello"}`))))

	select {
	case obs := <-seen:
		assert.Equal(t, `{"title":"Hello"}`, obs.text)
		assert.Equal(t, "Hello", obs.args.Get("title").String())
	case <-time.After(2 * time.Second):
		t.Fatal("streaming tool did not finish")
	}
}

func TestCoordinator_Reset(t *testing.T) {
	var calls atomic.Int32
	c, results := newCoordinator(t, WithToolSet(searchTool(&calls, nil)))
	ctx := context.Background()

	c.Reset()
	require.NoError(t, c.Sync(ctx, thread(false, toolCall("a", "search", `{"q":"a"}`))))
	expectNoResult(t, results)

	require.NoError(t, c.Sync(ctx, thread(false, toolCall("a", "search", `{"q":"a"}`), toolCall("b", "search", `{"q":"b"}`))))
	res := waitResult(t, results)
	assert.Equal(t, "b", res.ToolCallID)
}

func TestCoordinator_Close(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Close(ctx))
	require.NoError(t, c.Close(ctx))
	assert.ErrorIs(t, c.Sync(ctx, thread(false)), ErrClosed)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	c2, err := New()
	require.NoError(t, err)
	assert.ErrorIs(t, c2.Sync(cancelled, thread(false)), context.Canceled)
}
