package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/relayworks/relay-go/contracts"
)

// Queue is a work queue over one RabbitMQ queue plus its dead-letter
// companion. Receives and their acknowledgements share a single channel,
// since delivery tags are only valid on the channel that delivered them;
// all operations serialize on the queue's mutex.
type Queue struct {
	conn    *ConnectionManager
	name    string
	dlqName string
	logger  *slog.Logger

	mu            sync.Mutex
	ch            *amqp.Channel
	topologyReady bool
	pending       map[string]amqp.Delivery
	closed        bool
}

// QueueOption configures the queue
type QueueOption func(*Queue)

// WithQueueLogger sets the logger
func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) {
		q.logger = logger
	}
}

// WithDeadLetterQueue overrides the dead-letter queue name, which
// defaults to "<name>.dlq".
func WithDeadLetterQueue(name string) QueueOption {
	return func(q *Queue) {
		q.dlqName = name
	}
}

// NewQueue creates a work queue named name on the managed connection.
func NewQueue(conn *ConnectionManager, name string, options ...QueueOption) *Queue {
	q := &Queue{
		conn:    conn,
		name:    name,
		dlqName: name + ".dlq",
		logger:  slog.Default(),
		pending: make(map[string]amqp.Delivery),
	}

	for _, opt := range options {
		opt(q)
	}

	return q
}

// channel returns the queue's channel with topology declared, dialing and
// declaring on first use. Topology declaration runs at most once
// concurrently; a failed declaration leaves the barrier unset so a later
// call retries it. Callers must hold q.mu.
func (q *Queue) channel(ctx context.Context) (*amqp.Channel, error) {
	if q.closed {
		return nil, ErrQueueClosed
	}

	if q.ch == nil || q.ch.IsClosed() {
		ch, err := q.conn.Channel(ctx)
		if err != nil {
			return nil, err
		}
		q.ch = ch
		q.topologyReady = false
		// Deliveries from the old channel are void; the broker requeues
		// them once that channel is gone.
		q.pending = make(map[string]amqp.Delivery)
	}

	if !q.topologyReady {
		if err := q.declareTopology(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTopologyFailed, err)
		}
		q.topologyReady = true
	}

	return q.ch, nil
}

func (q *Queue) declareTopology() error {
	if _, err := q.ch.QueueDeclare(q.name, true, false, false, false, amqp.Table{
		"x-queue-type": "quorum",
	}); err != nil {
		return err
	}
	_, err := q.ch.QueueDeclare(q.dlqName, true, false, false, false, nil)
	return err
}

// Receive fetches at most one item. The delivery stays unacknowledged,
// and therefore invisible to other receivers, until it is deleted, left,
// or the channel drops. An empty queue returns (nil, false, nil).
//
// The visibility timeout is accepted for interface compatibility; with
// RabbitMQ the broker controls redelivery timing through channel-level
// acknowledgement state rather than a per-receive duration.
func (q *Queue) Receive(ctx context.Context, visibilityTimeout time.Duration) (*contracts.WorkItem, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	ch, err := q.channel(ctx)
	if err != nil {
		return nil, false, err
	}

	delivery, ok, err := ch.Get(q.name, false)
	if err != nil {
		return nil, false, fmt.Errorf("receive from %s: %w", q.name, err)
	}
	if !ok {
		return nil, false, nil
	}

	token := strconv.FormatUint(delivery.DeliveryTag, 10)
	q.pending[token] = delivery

	id := delivery.MessageId
	if id == "" {
		id = token
	}

	return &contracts.WorkItem{
		ID:            id,
		Payload:       delivery.Body,
		ReceiptToken:  token,
		DeliveryCount: deliveryCount(delivery),
		ReceivedAt:    time.Now(),
	}, true, nil
}

// Delete acknowledges the delivery, removing the item from the queue.
func (q *Queue) Delete(ctx context.Context, item *contracts.WorkItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delivery, err := q.take(item)
	if err != nil {
		return err
	}
	if err := delivery.Ack(false); err != nil {
		return fmt.Errorf("ack %s: %w", item.ID, err)
	}
	return nil
}

// Leave nacks the delivery back onto the queue for redelivery.
func (q *Queue) Leave(ctx context.Context, item *contracts.WorkItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delivery, err := q.take(item)
	if err != nil {
		return err
	}
	if err := delivery.Nack(false, true); err != nil {
		return fmt.Errorf("requeue %s: %w", item.ID, err)
	}
	return nil
}

// DeadLetter copies the item to the dead-letter queue, then acknowledges
// the original so it leaves the source queue.
func (q *Queue) DeadLetter(ctx context.Context, item *contracts.WorkItem, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delivery, err := q.take(item)
	if err != nil {
		return err
	}

	ch, err := q.channel(ctx)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, "", q.dlqName, false, false, amqp.Publishing{
		MessageId:    item.ID,
		ContentType:  delivery.ContentType,
		Body:         item.Payload,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers: amqp.Table{
			"x-original-queue": q.name,
			"x-last-error":     reason,
			"x-retry-count":    int64(item.DeliveryCount),
		},
	})
	if err != nil {
		// Keep the delivery pending; the caller may retry the decision.
		q.pending[item.ReceiptToken] = delivery
		return fmt.Errorf("dead-letter %s: %w", item.ID, err)
	}

	if err := delivery.Ack(false); err != nil {
		return fmt.Errorf("ack after dead-letter %s: %w", item.ID, err)
	}

	q.logger.Info("item dead-lettered",
		"itemId", item.ID,
		"queue", q.dlqName,
		"reason", reason,
	)
	return nil
}

// Send enqueues a new item with the given payload.
func (q *Queue) Send(ctx context.Context, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch, err := q.channel(ctx)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, "", q.name, false, false, amqp.Publishing{
		MessageId:    uuid.NewString(),
		ContentType:  "application/octet-stream",
		Body:         payload,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("send to %s: %w", q.name, err)
	}
	return nil
}

// Close releases the channel. Pending deliveries return to the queue.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.pending = make(map[string]amqp.Delivery)
	if q.ch == nil {
		return nil
	}
	err := q.ch.Close()
	q.ch = nil
	return err
}

// take removes the item's delivery from the pending set. Callers must
// hold q.mu.
func (q *Queue) take(item *contracts.WorkItem) (amqp.Delivery, error) {
	if q.closed {
		return amqp.Delivery{}, ErrQueueClosed
	}
	delivery, ok := q.pending[item.ReceiptToken]
	if !ok {
		return amqp.Delivery{}, fmt.Errorf("%w: %s", ErrUnknownReceipt, item.ReceiptToken)
	}
	delete(q.pending, item.ReceiptToken)
	return delivery, nil
}

// deliveryCount derives the broker's delivery-attempt counter for a
// delivery, including the current attempt.
func deliveryCount(d amqp.Delivery) int {
	// Quorum queues track redeliveries directly.
	if n := headerInt(d.Headers, "x-delivery-count"); n > 0 {
		return n + 1
	}

	// After a dead-letter cycle the count lives in x-death.
	if xDeath, ok := d.Headers["x-death"].([]interface{}); ok && len(xDeath) > 0 {
		if death, ok := xDeath[0].(amqp.Table); ok {
			if count, ok := death["count"].(int64); ok {
				return int(count) + 1
			}
		}
	}

	if d.Redelivered {
		return 2
	}
	return 1
}

// headerInt safely extracts an int from headers
func headerInt(headers amqp.Table, key string) int {
	if headers == nil {
		return 0
	}
	switch val := headers[key].(type) {
	case int:
		return val
	case int32:
		return int(val)
	case int64:
		return int(val)
	case float64:
		return int(val)
	}
	return 0
}
