package contracts

import (
	"time"
)

// WorkItem is a single unit of work delivered by the work queue.
type WorkItem struct {
	// ID uniquely identifies the item across deliveries.
	ID string

	// Payload is the opaque body of the item.
	Payload []byte

	// ReceiptToken identifies this particular delivery. It is required
	// for acknowledging or escalating the item and is only valid until
	// the visibility timeout of the delivery expires.
	ReceiptToken string

	// DeliveryCount is how many times the queue has delivered this item,
	// including the current delivery. Supplied by the queue; monotonically
	// non-decreasing across deliveries of the same item.
	DeliveryCount int

	// ReceivedAt is when this delivery was received locally.
	ReceivedAt time.Time
}

// Outcome is the result of processing one delivery of a WorkItem.
type Outcome int

const (
	// OutcomeSuccess means the handler processed the item completely.
	OutcomeSuccess Outcome = iota
	// OutcomeFailure means the handler reported a processing failure.
	// The delivery is resolved through the escalation policy.
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Heartbeat is a worker liveness announcement sent to the registration
// endpoint and recorded in the liveness registry.
type Heartbeat struct {
	WorkerID  string    `json:"workerId"`
	Timestamp time.Time `json:"timestamp"`
}
