package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/casualjim/conductor"
	"github.com/casualjim/conductor/executor"
	"github.com/casualjim/conductor/messages"
	"github.com/casualjim/conductor/pkg/jsonx"
	"github.com/casualjim/conductor/pkg/natsx"
	"github.com/casualjim/conductor/pkg/slogx"
	"github.com/casualjim/conductor/pkg/tprl"
	"github.com/casualjim/conductor/pubsub"
	"github.com/casualjim/conductor/tool"
	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/k0kubun/pp/v3"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
	"go.temporal.io/sdk/worker"
)

var log zerolog.Logger

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log = zerolog.New(output).With().Timestamp().Logger()
	setLevel(slog.LevelWarn)
}

func setLevel(level slog.Level) {
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: level}),
	))
}

type config struct {
	input   string
	approve bool
	subject string
	queue   string
	report  bool
	debug   bool
	waitFor time.Duration
	maxLine int
}

func parseFlags(args []string) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("conductor-replay", flag.ContinueOnError)
	fs.StringVar(&cfg.input, "input", "-", "file with one JSON snapshot per line, - for stdin")
	fs.BoolVar(&cfg.approve, "approve", false, "answer every human input request with an approval")
	fs.StringVar(&cfg.subject, "nats", "", "publish coordinator events on this NATS subject")
	fs.StringVar(&cfg.queue, "temporal", "", "execute echo and clock through Temporal on this task queue")
	fs.BoolVar(&cfg.report, "report", false, "render a markdown report of the results")
	fs.BoolVar(&cfg.debug, "debug", false, "enable debug logging and dump the final statuses")
	fs.DurationVar(&cfg.waitFor, "wait", 5*time.Second, "how long to wait for running tools after the input ends")
	fs.IntVar(&cfg.maxLine, "max-line", 1<<20, "maximum length of a snapshot line in bytes")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	if fs.NArg() > 0 {
		return config{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if cfg.waitFor <= 0 {
		return config{}, errors.New("wait must be positive")
	}
	return cfg, nil
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("invalid arguments", slogx.Error(err))
		os.Exit(2)
	}
	if cfg.debug {
		setLevel(slog.LevelDebug)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	in := io.Reader(os.Stdin)
	if cfg.input != "-" {
		f, err := os.Open(cfg.input)
		if err != nil {
			slog.Error("failed to open input", slogx.Error(err))
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	if err := run(ctx, cfg, in, os.Stdout); err != nil {
		slog.Error("replay failed", slogx.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, in io.Reader, out io.Writer) error {
	registry := tool.NewRegistry(demoTools()...)

	if cfg.queue != "" {
		stop, err := startRemoteTools(registry, cfg.queue)
		if err != nil {
			return err
		}
		defer stop()
	}

	topic, closeTopic, err := openTopic(ctx, cfg.subject)
	if err != nil {
		return err
	}
	defer closeTopic()

	results := make(chan messages.AddToolResult, 16)
	coord, err := conductor.New(
		conductor.WithTools(registry),
		conductor.WithResultHandler(conductor.Collect(results)),
		conductor.WithTopic(topic),
		conductor.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}

	var collected []messages.AddToolResult
	collecting := make(chan struct{})
	go func() {
		defer close(collecting)
		for res := range results {
			collected = append(collected, res)
		}
	}()

	hooks := []pubsub.Hook{pubsub.LoggingHook()}
	if cfg.approve {
		hooks = append(hooks, &approver{coord: coord})
	}
	sub, err := topic.Subscribe(ctx, pubsub.NewCompositeHook(hooks...))
	if err != nil {
		_ = coord.Close(ctx)
		return fmt.Errorf("failed to subscribe to coordinator events: %w", err)
	}
	defer sub.Unsubscribe()

	if err := replay(ctx, coord, in, out, cfg.maxLine); err != nil {
		_ = coord.Close(ctx)
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, cfg.waitFor)
	defer cancel()
	quiet := waitQuiet(waitCtx, coord, cfg.approve)

	pending := coord.Statuses()
	if cfg.debug {
		pp.Fprintln(out, pending)
	}
	if err := coord.Close(ctx); err != nil {
		return fmt.Errorf("failed to close coordinator: %w", err)
	}
	close(results)
	<-collecting

	if err := printResults(out, collected, cfg.report); err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintln(out, color.YellowString("%d tool calls did not finish", len(pending)))
	}
	return nil
}

func replay(ctx context.Context, coord *conductor.Coordinator, in io.Reader, out io.Writer, maxLine int) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		snapshot, err := messages.ParseSnapshot([]byte(text))
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := coord.Sync(ctx, snapshot); err != nil {
			var argsErr *conductor.ArgsTextError
			if errors.As(err, &argsErr) {
				fmt.Fprintln(out, color.RedString("line %d: arguments of %s were rewritten", line, argsErr.ToolCallID))
				continue
			}
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}

// waitQuiet polls until nothing is executing any more. Unless they are
// approved automatically, calls waiting for human input count as quiet.
// It reports whether every call finished before ctx ended.
func waitQuiet(ctx context.Context, coord *conductor.Coordinator, approve bool) bool {
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		statuses := coord.Statuses()
		busy := false
		for _, status := range statuses {
			switch status.(type) {
			case messages.Executing:
				busy = true
			case messages.Interrupted:
				busy = busy || approve
			}
		}
		if !busy {
			return len(statuses) == 0
		}
		select {
		case <-ctx.Done():
			return false
		case <-tick.C:
		}
	}
}

func openTopic(ctx context.Context, subject string) (pubsub.Topic, func(), error) {
	if subject == "" {
		return pubsub.LocalBroker().Topic(ctx, "conductor-replay"), func() {}, nil
	}
	nc, err := natsx.NewClient()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	closer := func() {
		if err := nc.Drain(); err != nil {
			slog.Warn("failed to drain nats connection", slogx.Error(err))
		}
	}
	return pubsub.NATS(nc).Topic(ctx, subject), closer, nil
}

// startRemoteTools runs a Temporal worker for the local echo and clock tools
// and replaces them in registry with their remote versions.
func startRemoteTools(registry *tool.Registry, queue string) (func(), error) {
	cl, err := tprl.NewClient()
	if err != nil {
		return nil, err
	}

	local := registry.Tools()
	w := worker.New(cl, queue, worker.Options{})
	executor.Register(w, &executor.Activities{Tools: local})
	if err := w.Start(); err != nil {
		cl.Close()
		return nil, fmt.Errorf("failed to start temporal worker: %w", err)
	}

	for _, name := range []string{"echo", "clock"} {
		registry.Add(executor.Remote(cl, local[name], queue))
	}
	return func() {
		w.Stop()
		cl.Close()
	}, nil
}

// approver resumes every interrupted call with an approval.
type approver struct {
	coord *conductor.Coordinator
}

func (a *approver) OnStatusChanged(ctx context.Context, ev pubsub.StatusChanged) {
	if _, ok := ev.Status.(messages.Interrupted); !ok {
		return
	}
	if err := a.coord.Resume(ev.ToolCallID, map[string]any{"approved": true}); err != nil {
		slog.DebugContext(ctx, "failed to approve tool call", slogx.ToolCall(ev.ToolCallID, ev.ToolName), slogx.Error(err))
	}
}

func (*approver) OnStatusCleared(context.Context, pubsub.StatusCleared) {}
func (*approver) OnResult(context.Context, pubsub.ResultAdded)          {}
func (*approver) OnAborted(context.Context, pubsub.Aborted)             {}
func (*approver) OnError(context.Context, pubsub.Error)                 {}

func printResults(out io.Writer, results []messages.AddToolResult, report bool) error {
	if report {
		return printReport(out, results)
	}
	for _, res := range results {
		text, err := jsonx.Text(res.Result)
		if err != nil {
			return err
		}
		name := color.GreenString(res.ToolName)
		if res.IsError {
			name = color.RedString(res.ToolName)
		}
		fmt.Fprintf(out, "%s %s: %s\n", name, color.CyanString(res.ToolCallID), text)
	}
	return nil
}

func printReport(out io.Writer, results []messages.AddToolResult) error {
	var md strings.Builder
	md.WriteString("# Tool results\n\n")
	if len(results) == 0 {
		md.WriteString("No tool was executed.\n")
	} else {
		md.WriteString("| Call | Tool | Status | Result |\n|---|---|---|---|\n")
		for _, res := range results {
			text, err := jsonx.Text(res.Result)
			if err != nil {
				return err
			}
			status := "ok"
			if res.IsError {
				status = "error"
			}
			fmt.Fprintf(&md, "| %s | %s | %s | %s |\n", res.ToolCallID, res.ToolName, status, strings.ReplaceAll(text, "|", `\|`))
		}
	}

	glam, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	rendered, err := glam.Render(md.String())
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	_, err = io.WriteString(out, rendered)
	return err
}
