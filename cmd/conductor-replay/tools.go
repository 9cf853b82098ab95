package main

import (
	"context"
	"fmt"
	"time"

	"github.com/casualjim/conductor/tool"
)

type echoArgs struct {
	Text string `json:"text" jsonschema:"required,description=Text to echo back"`
}

type clockArgs struct {
	Zone string `json:"zone,omitempty" jsonschema:"description=IANA time zone, defaults to UTC"`
}

type confirmArgs struct {
	Question string `json:"question" jsonschema:"required,description=Question to put to the user"`
}

// now is replaced in tests.
var now = time.Now

func demoTools() []tool.Tool {
	echo := tool.MustTyped(func(_ context.Context, args echoArgs, _ tool.Call) (string, error) {
		return args.Text, nil
	}, tool.Name("echo"), tool.Description("Echo the given text"))

	clock := tool.MustTyped(func(_ context.Context, args clockArgs, _ tool.Call) (string, error) {
		zone := args.Zone
		if zone == "" {
			zone = "UTC"
		}
		loc, err := time.LoadLocation(zone)
		if err != nil {
			return "", fmt.Errorf("unknown time zone %q", zone)
		}
		return now().In(loc).Format(time.RFC3339), nil
	}, tool.Name("clock"), tool.Description("Tell the current time"))

	confirm := tool.MustTyped(func(ctx context.Context, args confirmArgs, call tool.Call) (any, error) {
		answer, err := call.AskHuman(ctx, map[string]any{"question": args.Question})
		if err != nil {
			return nil, err
		}
		return map[string]any{"question": args.Question, "answer": answer}, nil
	}, tool.Name("confirm"), tool.Description("Ask the user to confirm something"))

	return []tool.Tool{echo, clock, confirm}
}
