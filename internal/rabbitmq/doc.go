// Package rabbitmq implements the pipeline's work queue collaborator on
// top of RabbitMQ. Receiving hides an item behind an unacknowledged
// delivery (the broker's visibility mechanism), deleting acknowledges it,
// leaving nacks it back onto the queue, and dead-lettering republishes it
// to a companion .dlq queue before acknowledging the original.
//
// Delivery-attempt counts come from the broker: the x-delivery-count
// header on quorum queues, the x-death header after dead-letter cycles,
// or the redelivered flag as a last resort.
package rabbitmq
