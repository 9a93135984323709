// Package contracts provides the core types shared between the relay
// pipeline components:
//   - WorkItem: a single unit of work delivered by the queue
//   - Outcome: the result of processing a delivery
//   - Heartbeat: a worker liveness announcement
//
// The payload of a WorkItem is opaque to the pipeline; producers and
// consumers agree on its encoding out of band.
package contracts
