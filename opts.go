package conductor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/casualjim/conductor/pubsub"
	"github.com/casualjim/conductor/tool"
	"github.com/fogfish/opts"
)

// DefaultCancelGrace is how long an aborted executor may keep running before
// its call settles as cancelled.
const DefaultCancelGrace = 10 * time.Millisecond

// Option configures a Coordinator.
type Option = opts.Option[Coordinator]

var (
	// WithLogger sets the logger. Defaults to slog.Default().
	WithLogger = opts.ForName[Coordinator, *slog.Logger]("log")
	// WithCancelGrace sets how long aborted executors get to observe the
	// cancellation and return their own result.
	WithCancelGrace = opts.ForName[Coordinator, time.Duration]("grace")
)

// WithTopic publishes status changes, results and aborts on the topic.
func WithTopic(topic pubsub.Topic) Option {
	return opts.Type[Coordinator](func(c *Coordinator) error {
		c.topic = topic
		return nil
	})
}

// WithTools sets the source executors are looked up in. The source is queried
// on every dispatch and must not call back into the coordinator.
func WithTools(source tool.Source) Option {
	return opts.Type[Coordinator](func(c *Coordinator) error {
		c.tools = source
		return nil
	})
}

// WithToolSet is WithTools for a fixed set of tools.
func WithToolSet(tools ...tool.Tool) Option {
	return WithTools(tool.NewSet(tools...))
}

// WithResultHandler sets the callback receiving tool results.
func WithResultHandler(fn ResultHandler) Option {
	return opts.Type[Coordinator](func(c *Coordinator) error {
		c.onResult = fn
		return nil
	})
}

// WithContext sets the parent of every cancellation generation.
// Cancelling it cancels all executions, like an abort that is never undone.
func WithContext(ctx context.Context) Option {
	return opts.Type[Coordinator](func(c *Coordinator) error {
		c.base = ctx
		return nil
	})
}

func (c *Coordinator) validate() error {
	var errs []error
	if c.base == nil {
		errs = append(errs, errors.New("context is required"))
	}
	if c.grace < 0 {
		errs = append(errs, errors.New("cancel grace must not be negative"))
	}
	if c.log == nil {
		errs = append(errs, errors.New("logger is required"))
	}
	return errors.Join(errs...)
}
