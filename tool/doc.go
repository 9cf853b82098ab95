/*
Package tool defines the actions a host exposes to the model and the
contract their executors run under.

A Tool pairs a name the model uses with an optional argument schema and an
executor. Executors receive the parsed arguments once the model has finished
streaming them, along with a Call that identifies the tool call and lets the
executor suspend for human input.

	search := tool.Must(
		func(ctx context.Context, args gjson.Result, call tool.Call) (any, error) {
			return lookup(ctx, args.Get("q").String())
		},
		tool.Name("search"),
		tool.Description("Searches the knowledge base"),
		tool.Parameters(tool.Object(tool.Property{Name: "q", Type: "string", Required: true})),
	)

Tools whose arguments map onto a Go type can use Typed, which reflects the
schema from the type and decodes the arguments before calling the function.

The value an executor returns becomes the result of the call. Returning a
Response sets the error flag and artifact explicitly; returning an error
reports its message as an error result.

Tools are resolved through a Source on every dispatch. Set is a fixed
collection, SourceFunc re-reads the current set on each lookup and Registry
is a concurrency-safe collection that can change while calls are in flight.
*/
package tool
