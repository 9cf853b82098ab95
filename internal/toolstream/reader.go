package toolstream

import (
	"context"
	"fmt"
	"io"

	"github.com/casualjim/conductor/tool"
	"github.com/tidwall/gjson"
)

// Reader returns a new reader positioned at the start of the argument text.
// Each reader keeps its own position; deltas appended between two calls to Next
// are returned together.
func (c *Controller) Reader() tool.ArgsReader {
	return &reader{c: c}
}

type reader struct {
	c      *Controller
	offset int
}

func (r *reader) Next(ctx context.Context) (string, error) {
	for {
		r.c.mu.Lock()
		if len(r.c.argsText) > r.offset {
			delta := r.c.argsText[r.offset:]
			r.offset = len(r.c.argsText)
			r.c.mu.Unlock()
			return delta, nil
		}
		if r.c.argsComplete {
			r.c.mu.Unlock()
			return "", io.EOF
		}
		changed := r.c.changed
		r.c.mu.Unlock()

		if err := wait(ctx, changed); err != nil {
			return "", err
		}
	}
}

func (r *reader) Args(ctx context.Context) (gjson.Result, error) {
	for {
		r.c.mu.Lock()
		if r.c.argsComplete {
			text := r.c.argsText
			r.c.mu.Unlock()
			args := parseArgs(text)
			if !args.Exists() {
				return gjson.Result{}, fmt.Errorf("tool call %s: %w", r.c.toolCallID, ErrIncompleteArgs)
			}
			return args, nil
		}
		changed := r.c.changed
		r.c.mu.Unlock()

		if err := wait(ctx, changed); err != nil {
			return gjson.Result{}, err
		}
	}
}

func (r *reader) Response(ctx context.Context) (tool.Response, error) {
	for {
		r.c.mu.Lock()
		if r.c.hasResult {
			resp := r.c.response
			r.c.mu.Unlock()
			return resp, nil
		}
		if r.c.closed {
			r.c.mu.Unlock()
			return tool.Response{}, fmt.Errorf("tool call %s: %w", r.c.toolCallID, ErrSinkClosed)
		}
		changed := r.c.changed
		r.c.mu.Unlock()

		if err := wait(ctx, changed); err != nil {
			return tool.Response{}, err
		}
	}
}

func wait(ctx context.Context, changed <-chan struct{}) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-changed:
		return nil
	}
}
