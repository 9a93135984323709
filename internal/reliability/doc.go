// Package reliability provides the resilience primitives used by the relay
// pipeline: a retry executor with exponential backoff and jitter, the
// failure escalation policy that resolves each delivery, and a loop-level
// cooldown breaker for repeated transport exhaustion.
package reliability
