/*
Package openai feeds OpenAI chat completion streams into a tool coordinator.

Each streamed chunk is folded into a partial assistant message by an
Accumulator. After every chunk, Drive hands the conversation, with that
partial message appended, to a Syncer, so tool calls start executing as soon
as their arguments are complete, while the model is still talking.

	p := openai.New(option.WithAPIKey(os.Getenv("OPENAI_API_KEY")))

	// the coordinator must have seen the history before the turn starts
	if err := coord.Sync(ctx, messages.Snapshot{Messages: history}); err != nil {
		return err
	}
	msg, err := p.Run(ctx, openai.Request{
		Model:   "gpt-4o-mini",
		History: history,
		Tools:   tools,
	}, coord)

# Conversion

MessageParams maps conversation messages onto chat completion messages. Tool
calls that carry a result are followed by a tool message with the result, as
text when the result is a JSON string and as raw JSON otherwise. ToolParams
maps tool definitions onto function tools, reusing their JSON schema.
*/
package openai
