package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/conductor/pkg/slogx"
	"github.com/casualjim/conductor/pkg/uuidx"
	"github.com/nats-io/nats.go"
)

type natsBroker struct {
	client *nats.Conn
	topics *haxmap.Map[string, *natsTopic]
}

// NATS returns a broker that publishes events as JSON on the NATS subject
// named by the topic id.
func NATS(client *nats.Conn) Broker {
	return &natsBroker{
		client: client,
		topics: haxmap.New[string, *natsTopic](),
	}
}

func (b *natsBroker) Topic(_ context.Context, id string) Topic {
	top, _ := b.topics.GetOrCompute(id, func() *natsTopic {
		return &natsTopic{
			subject: id,
			client:  b.client,
		}
	})
	return top
}

type natsTopic struct {
	client  *nats.Conn
	subject string
}

func (t *natsTopic) Publish(_ context.Context, event Event) error {
	eb, err := ToJSON(event)
	if err != nil {
		return err
	}
	return t.client.Publish(t.subject, eb)
}

func (t *natsTopic) Subscribe(ctx context.Context, hook Hook) (Subscription, error) {
	if hook == nil {
		return nil, fmt.Errorf("hook is required")
	}

	sub := &natsSubscription{
		id:      uuidx.NewString(),
		channel: make(chan Event, 50),
		done:    make(chan struct{}),
	}
	nsub, err := t.client.Subscribe(t.subject, func(msg *nats.Msg) {
		event, err := FromJSON(msg.Data)
		if err != nil {
			slog.Error("failed to unmarshal event", slogx.Error(err))
			return
		}

		select {
		case sub.channel <- event:
		case <-sub.done:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, err
	}
	sub.sub = nsub

	go func() {
		for {
			select {
			case event := <-sub.channel:
				dispatch(ctx, hook, event)
			case <-sub.done:
				return
			case <-ctx.Done():
				sub.Unsubscribe()
				return
			}
		}
	}()
	return sub, nil
}

type natsSubscription struct {
	id      string
	sub     *nats.Subscription
	channel chan Event
	done    chan struct{}
	once    sync.Once
}

func (n *natsSubscription) ID() string {
	return n.id
}

func (n *natsSubscription) Unsubscribe() {
	n.once.Do(func() {
		close(n.done)
		if err := n.sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe", slogx.Error(err), slog.String("subscription", n.id))
		}
	})
}
