package messaging

import (
	"context"
	"time"

	"github.com/relayworks/relay-go/contracts"
)

// WorkQueue is the external queue collaborator. Implementations provide
// at-least-once delivery with visibility-timeout semantics: a received
// item stays hidden from other receivers until deleted, left, or the
// timeout elapses.
type WorkQueue interface {
	// Receive fetches at most one item, hiding it for visibilityTimeout.
	// An empty queue returns (nil, false, nil); it is not an error.
	Receive(ctx context.Context, visibilityTimeout time.Duration) (*contracts.WorkItem, bool, error)

	// Delete acknowledges the delivery and removes the item.
	Delete(ctx context.Context, item *contracts.WorkItem) error

	// Leave releases the delivery so the queue redelivers the item after
	// its visibility timeout.
	Leave(ctx context.Context, item *contracts.WorkItem) error

	// DeadLetter copies the item to the dead-letter destination and
	// removes it from the source queue.
	DeadLetter(ctx context.Context, item *contracts.WorkItem, reason string) error

	// Send enqueues a new item with the given payload.
	Send(ctx context.Context, payload []byte) error
}

// OutboundCall posts payloads to an external endpoint. A non-success
// response is returned as a transient error.
type OutboundCall interface {
	Post(ctx context.Context, path string, payload any) error
}

// WorkHandler processes one delivery of a work item. A nil return
// acknowledges the item; an error routes it through the escalation
// policy against its delivery count.
type WorkHandler interface {
	Handle(ctx context.Context, item *contracts.WorkItem) error
}

// WorkHandlerFunc adapts a function to the WorkHandler interface.
type WorkHandlerFunc func(ctx context.Context, item *contracts.WorkItem) error

func (f WorkHandlerFunc) Handle(ctx context.Context, item *contracts.WorkItem) error {
	return f(ctx, item)
}

// PayloadSource yields the payloads the producer emits. Returning
// ErrSourceDrained ends production cleanly.
type PayloadSource func(ctx context.Context) ([]byte, error)
