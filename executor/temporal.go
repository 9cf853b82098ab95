package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/casualjim/conductor/tool"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

const (
	// WorkflowName is the name the tool workflow is registered under.
	WorkflowName = "RunToolWorkflow"
	// ActivityName is the name of the activity executing the tool.
	ActivityName = "RunTool"

	errTypeToolNotFound = "ToolNotFound"
	errTypeInvalidArgs  = "InvalidArguments"
)

// Request is the input of the tool workflow.
type Request struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	ArgsText   string `json:"args_text"`
}

// Result is the outcome of a remote tool execution. Result and Artifact hold
// JSON text so values survive the round trip through the data converter.
type Result struct {
	Result   string `json:"result"`
	IsError  bool   `json:"is_error,omitempty"`
	Artifact string `json:"artifact,omitempty"`
}

func newResult(resp tool.Response) (Result, error) {
	rb, err := json.Marshal(resp.Result)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal result: %w", err)
	}
	res := Result{Result: string(rb), IsError: resp.IsError}
	if resp.Artifact != nil {
		ab, err := json.Marshal(resp.Artifact)
		if err != nil {
			return Result{}, fmt.Errorf("failed to marshal artifact: %w", err)
		}
		res.Artifact = string(ab)
	}
	return res, nil
}

// Response decodes the result into a tool response.
func (r Result) Response() tool.Response {
	resp := tool.Response{IsError: r.IsError}
	if r.Result != "" {
		resp.Result = gjson.Parse(r.Result).Value()
	}
	if r.Artifact != "" {
		resp.Artifact = gjson.Parse(r.Artifact).Value()
	}
	return resp
}

// Register adds the tool workflow and activity to w.
func Register(w worker.Registry, acts *Activities) {
	w.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})
	w.RegisterActivityWithOptions(acts.RunTool, activity.RegisterOptions{Name: ActivityName})
}

// Workflow runs a single tool call as an activity.
func Workflow(ctx workflow.Context, req Request) (Result, error) {
	log := workflow.GetLogger(ctx)
	log.Info("running tool", "tool_call_id", req.ToolCallID, "tool_name", req.ToolName)

	cctx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout:    1 * time.Minute,
		ScheduleToStartTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        500 * time.Millisecond,
			MaximumInterval:        5 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{errTypeToolNotFound, errTypeInvalidArgs},
		},
	})

	var result Result
	if err := workflow.ExecuteActivity(cctx, ActivityName, req).Get(ctx, &result); err != nil {
		return Result{}, err
	}
	return result, nil
}

// Activities executes tools on a worker.
type Activities struct {
	Tools tool.Source
}

// RunTool executes the requested tool. Executor failures become error
// results; only a missing tool or unparseable arguments fail the activity.
// Tools cannot ask for human input here.
func (a *Activities) RunTool(ctx context.Context, req Request) (Result, error) {
	log := activity.GetLogger(ctx)

	var (
		t  tool.Tool
		ok bool
	)
	if a.Tools != nil {
		t, ok = a.Tools.Lookup(req.ToolName)
	}
	if !ok || t.Execute == nil {
		return Result{}, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("tool %s not found", req.ToolName), errTypeToolNotFound, nil)
	}
	if !gjson.Valid(req.ArgsText) {
		return Result{}, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("tool call %s has incomplete arguments", req.ToolCallID), errTypeInvalidArgs, nil)
	}

	args := gjson.Parse(req.ArgsText)
	exec := t.Execute
	if err := tool.Validate(t.Parameters, args); err != nil {
		if t.OnValidationError == nil {
			return newResult(tool.ErrorResponse(err))
		}
		exec = t.OnValidationError
	}

	v, err := exec(ctx, args, tool.Call{ToolCallID: req.ToolCallID, ToolName: req.ToolName})
	if err != nil {
		log.Warn("tool executor failed", "tool_call_id", req.ToolCallID, "tool_name", req.ToolName, "error", err)
		return newResult(tool.ErrorResponse(err))
	}
	return newResult(tool.ToResponse(v))
}

// Remote returns def with an executor that runs the call as a workflow on
// taskQueue and waits for its result. Cancelling the executor's context
// cancels the workflow.
func Remote(c client.Client, def tool.Tool, taskQueue string) tool.Tool {
	remote := def
	remote.StreamCall = nil
	remote.Execute = func(ctx context.Context, args gjson.Result, call tool.Call) (any, error) {
		run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
			ID:                    "tool-" + call.ToolCallID,
			TaskQueue:             taskQueue,
			WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		}, WorkflowName, Request{
			ToolCallID: call.ToolCallID,
			ToolName:   call.ToolName,
			ArgsText:   args.Raw,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to start workflow for %s: %w", call.ToolCallID, err)
		}

		var result Result
		if err := run.Get(ctx, &result); err != nil {
			if ctx.Err() != nil {
				cerr := c.CancelWorkflow(context.WithoutCancel(ctx), run.GetID(), run.GetRunID())
				return nil, errors.Join(context.Cause(ctx), cerr)
			}
			return nil, fmt.Errorf("workflow for %s failed: %w", call.ToolCallID, err)
		}
		return result.Response(), nil
	}
	return remote
}
