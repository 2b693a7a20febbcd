package queue

import (
	"context"
	"errors"
)

// Queue names. ProcessBatchQueue and ResponseFileQueue are consumed by this
// system's workers; StatisticsQueue is consumed by the downstream statistics
// service.
const (
	ProcessBatchQueue = "print.batch"
	ResponseFileQueue = "print.response-file"
	StatisticsQueue   = "print.statistics"
)

// ErrBadMessage marks a delivery whose payload can never be processed. The
// consumer rejects it to the dead-letter queue instead of requeueing.
var ErrBadMessage = errors.New("unprocessable message")

// Message is a broker payload.
type Message interface {
	Validate() error
	// Key identifies the message for broker-side tracing.
	Key() string
}

// Publisher publishes messages to a queue. Delivery is at-least-once;
// consumers must tolerate duplicates.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg Message) error
	Close() error
}

// MessageHandler handles one consumed delivery. Returning an error wrapped
// in ErrBadMessage dead-letters the delivery; any other error requeues it.
type MessageHandler func(ctx context.Context, body []byte) error

// Consumer consumes deliveries from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

// WorkQueueNames returns the queues this system's own workers consume.
func WorkQueueNames() []string {
	return []string{ProcessBatchQueue, ResponseFileQueue}
}

// DLQName returns the dead-letter queue name, e.g. dlq.print.batch.
func DLQName(queue string) string {
	return "dlq." + queue
}
