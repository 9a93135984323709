// Package messaging contains the orchestrating loops of the relay
// pipeline: the producer loop that emits work at a paced rate, the
// consumer loop that pulls, processes, and resolves deliveries, and the
// heartbeat loop that announces worker liveness.
//
// The loops compose the reliability primitives with two opaque
// collaborators: a WorkQueue with at-least-once, visibility-timeout
// delivery semantics, and an OutboundCall used for registration. Each
// loop instance is strictly sequential; horizontal scaling is done by
// running more instances, each with its own pacer state.
package messaging
