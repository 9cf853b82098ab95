package tool

// CancelledResult is the result reported for executions cut short by an abort.
const CancelledResult = "Tool execution was cancelled."

// Response is the outcome of a tool execution.
type Response struct {
	Result   any
	IsError  bool
	Artifact any
}

// ToResponse wraps an executor return value in a Response.
// Values that already are a Response are returned as is.
func ToResponse(v any) Response {
	switch r := v.(type) {
	case Response:
		return r
	case *Response:
		if r == nil {
			return Response{}
		}
		return *r
	default:
		return Response{Result: v}
	}
}

// ErrorResponse reports err as the result of a failed execution.
func ErrorResponse(err error) Response {
	return Response{Result: err.Error(), IsError: true}
}

// Cancelled is the response of an execution that was aborted.
func Cancelled() Response {
	return Response{Result: CancelledResult, IsError: true}
}
