package reliability

import (
	"github.com/relayworks/relay-go/contracts"
)

// Resolution is the terminal state the escalation policy assigns to one
// delivery of a work item.
type Resolution int

const (
	// Acknowledge deletes the item from the source queue.
	Acknowledge Resolution = iota
	// Leave keeps the item on the queue; the broker's visibility timeout
	// makes it eligible for redelivery.
	Leave
	// DeadLetter routes the item to the dead-letter destination and
	// removes it from the source queue.
	DeadLetter
)

func (r Resolution) String() string {
	switch r {
	case Acknowledge:
		return "acknowledge"
	case Leave:
		return "leave"
	case DeadLetter:
		return "dead-letter"
	default:
		return "unknown"
	}
}

// EscalationPolicy decides what happens to a delivery based on its
// processing outcome and how many times the queue has delivered the item.
// The delivery count is the broker's counter, independent of the transport
// retry budget inside a single receive or send call.
type EscalationPolicy struct {
	deadLetterThreshold int
}

// NewEscalationPolicy creates a policy with the given dead-letter threshold.
// Delivery counts at or above the threshold escalate. Thresholds below 1
// are raised to 1.
func NewEscalationPolicy(deadLetterThreshold int) *EscalationPolicy {
	if deadLetterThreshold < 1 {
		deadLetterThreshold = 1
	}
	return &EscalationPolicy{deadLetterThreshold: deadLetterThreshold}
}

// DeadLetterThreshold returns the configured threshold.
func (p *EscalationPolicy) DeadLetterThreshold() int {
	return p.deadLetterThreshold
}

// Resolve maps a processing outcome to a terminal resolution. Success always
// acknowledges. A failure escalates when deliveryCount has reached the
// threshold (inclusive comparison) and otherwise leaves the item for
// redelivery.
func (p *EscalationPolicy) Resolve(outcome contracts.Outcome, deliveryCount int) Resolution {
	if outcome == contracts.OutcomeSuccess {
		return Acknowledge
	}
	if deliveryCount >= p.deadLetterThreshold {
		return DeadLetter
	}
	return Leave
}
