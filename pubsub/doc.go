// Package pubsub carries coordinator events to observers, in process through
// LocalBroker or across processes over NATS. Events are encoded as JSON objects
// tagged with a "type" field, so subscribers on the wire see the same shapes
// as in-process hooks.
package pubsub
