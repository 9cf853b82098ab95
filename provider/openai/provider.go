package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/casualjim/conductor/messages"
	"github.com/casualjim/conductor/tool"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Syncer receives conversation snapshots. *conductor.Coordinator satisfies it.
type Syncer interface {
	Sync(ctx context.Context, snapshot messages.Snapshot) error
}

// ChunkStream is a stream of chat completion chunks, as returned by the
// streaming chat completions endpoint.
type ChunkStream interface {
	Next() bool
	Current() openai.ChatCompletionChunk
	Err() error
	Close() error
}

// Request describes one model turn.
type Request struct {
	Model        string
	Instructions string
	History      []messages.Message
	Tools        []tool.Tool
}

type Provider struct {
	client *openai.Client
}

func New(options ...option.RequestOption) *Provider {
	return &Provider{client: openai.NewClient(options...)}
}

func buildRequest(req Request) (openai.ChatCompletionNewParams, error) {
	msgs, err := MessageParams(req.Instructions, req.History)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}
	tools, err := ToolParams(req.Tools)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}

	model := req.Model
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}

	params := openai.ChatCompletionNewParams{
		Messages:    openai.F(msgs),
		Model:       openai.F(model),
		N:           openai.Int(1),
		Temperature: openai.Float(0.1),
	}
	if len(tools) > 0 {
		params.Tools = openai.F(tools)
		params.ParallelToolCalls = openai.Bool(true)
	}
	return params, nil
}

// Stream starts a streaming completion for req.
func (p *Provider) Stream(ctx context.Context, req Request) (ChunkStream, error) {
	params, err := buildRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	return p.client.Chat.Completions.NewStreaming(ctx, params), nil
}

// Run streams one model turn into syncer and returns the final assistant message.
func (p *Provider) Run(ctx context.Context, req Request, syncer Syncer) (messages.Message, error) {
	strm, err := p.Stream(ctx, req)
	if err != nil {
		return messages.Message{}, err
	}
	return Drive(ctx, strm, syncer, req.History)
}

// Drive reads stream to the end and syncs history plus the partial assistant
// message after every chunk. The syncer is expected to have seen history
// already; the calls streamed here are new work. The stream is closed on return.
func Drive(ctx context.Context, stream ChunkStream, syncer Syncer, history []messages.Message) (messages.Message, error) {
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			slog.DebugContext(ctx, "failed to close completion stream", slog.Any("error", cerr))
		}
	}()

	acc := NewAccumulator()
	for stream.Next() {
		if err := ctx.Err(); err != nil {
			return acc.Message(), err
		}
		acc.AddChunk(stream.Current())
		if err := syncer.Sync(ctx, acc.Snapshot(history)); err != nil {
			return acc.Message(), fmt.Errorf("failed to sync snapshot: %w", err)
		}
	}

	msg := acc.Message()
	if err := stream.Err(); err != nil {
		return msg, fmt.Errorf("completion stream failed: %w", err)
	}
	return msg, ctx.Err()
}
