package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/relayworks/relay-go/contracts"
	"github.com/relayworks/relay-go/internal/pacing"
	"github.com/relayworks/relay-go/internal/reliability"
)

// Consumer pulls work items one at a time, processes them, and resolves
// each delivery through the escalation policy. Items are processed
// strictly sequentially within one Consumer; run more instances to scale
// out, each with its own pacer.
type Consumer struct {
	queue             WorkQueue
	handler           WorkHandler
	policy            *reliability.EscalationPolicy
	executor          *reliability.Executor
	cooldown          *reliability.Cooldown
	pacer             *pacing.Pacer
	visibilityTimeout time.Duration
	idleDelay         time.Duration
	gracePeriod       time.Duration
	logger            *slog.Logger
}

// ConsumerOption configures the consumer
type ConsumerOption func(*Consumer)

// WithConsumerRate sets the target processing rate in units per second.
// Zero or below disables pacing.
func WithConsumerRate(rate float64) ConsumerOption {
	return func(c *Consumer) {
		c.pacer = pacing.NewPacer(rate)
	}
}

// WithConsumerPacer sets an explicit pacer instance.
func WithConsumerPacer(pacer *pacing.Pacer) ConsumerOption {
	return func(c *Consumer) {
		c.pacer = pacer
	}
}

// WithEscalationPolicy sets the policy resolving failed deliveries.
func WithEscalationPolicy(policy *reliability.EscalationPolicy) ConsumerOption {
	return func(c *Consumer) {
		c.policy = policy
	}
}

// WithConsumerExecutor sets the retry executor wrapping queue operations.
func WithConsumerExecutor(executor *reliability.Executor) ConsumerOption {
	return func(c *Consumer) {
		c.executor = executor
	}
}

// WithConsumerCooldown sets the loop cooldown tripped by receive
// exhaustion.
func WithConsumerCooldown(cooldown *reliability.Cooldown) ConsumerOption {
	return func(c *Consumer) {
		c.cooldown = cooldown
	}
}

// WithVisibilityTimeout sets the visibility timeout requested per receive.
func WithVisibilityTimeout(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.visibilityTimeout = d
	}
}

// WithIdleDelay sets how long the loop sleeps after an empty poll.
func WithIdleDelay(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.idleDelay = d
	}
}

// WithGracePeriod bounds the ack/escalation decision attempted for an
// in-flight item during shutdown.
func WithGracePeriod(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.gracePeriod = d
	}
}

// WithConsumerLogger sets the logger.
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// NewConsumer creates a consumer over queue dispatching to handler.
func NewConsumer(queue WorkQueue, handler WorkHandler, options ...ConsumerOption) *Consumer {
	c := &Consumer{
		queue:             queue,
		handler:           handler,
		policy:            reliability.NewEscalationPolicy(3),
		executor:          reliability.NewExecutor(),
		cooldown:          reliability.NewCooldown(),
		pacer:             pacing.NewPacer(0),
		visibilityTimeout: 30 * time.Second,
		idleDelay:         time.Second,
		gracePeriod:       5 * time.Second,
		logger:            slog.Default(),
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := c.sleep(ctx, c.cooldown.Delay()); err != nil {
			return err
		}
		if err := pacing.Wait(ctx, c.pacer); err != nil {
			return err
		}

		// An empty poll is success with a nil item, not a failure; the
		// retry budget only covers transport errors.
		item, err := reliability.ExecuteTyped(ctx, c.executor, func(ctx context.Context) (*contracts.WorkItem, error) {
			item, ok, err := c.queue.Receive(ctx, c.visibilityTimeout)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			return item, nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Receive budget exhausted; back off at the loop level
			// before the next cycle.
			c.cooldown.RecordFailure()
			c.logger.Error("receive retries exhausted", "error", err)
			continue
		}
		c.cooldown.RecordSuccess()

		if item == nil {
			if err := c.sleep(ctx, c.idleDelay); err != nil {
				return err
			}
			continue
		}

		outcome := c.process(ctx, item)
		c.resolve(ctx, item, outcome)
	}
}

// process runs the handler for one delivery. A panic inside the handler
// counts as a failure outcome so it escalates through the dead-letter
// threshold like any other failure; it is never silently acknowledged.
func (c *Consumer) process(ctx context.Context, item *contracts.WorkItem) (outcome contracts.Outcome) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()
		err = c.handler.Handle(ctx, item)
	}()

	if err != nil {
		c.logger.Warn("processing failed",
			"itemId", item.ID,
			"deliveryCount", item.DeliveryCount,
			"error", err,
		)
		return contracts.OutcomeFailure
	}
	return contracts.OutcomeSuccess
}

// resolve drives the delivery to its terminal state. The decision runs
// under a detached, time-boxed context so a shutdown arriving after
// processing does not abandon a just-processed item mid-decision; if the
// grace period expires the item falls back to broker redelivery.
func (c *Consumer) resolve(ctx context.Context, item *contracts.WorkItem, outcome contracts.Outcome) {
	decisionCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.gracePeriod)
	defer cancel()

	resolution := c.policy.Resolve(outcome, item.DeliveryCount)

	var err error
	switch resolution {
	case reliability.Acknowledge:
		err = c.executor.Execute(decisionCtx, func(ctx context.Context) error {
			return c.queue.Delete(ctx, item)
		})
	case reliability.DeadLetter:
		reason := fmt.Sprintf("delivery count %d reached threshold %d",
			item.DeliveryCount, c.policy.DeadLetterThreshold())
		err = c.executor.Execute(decisionCtx, func(ctx context.Context) error {
			return c.queue.DeadLetter(ctx, item, reason)
		})
	case reliability.Leave:
		err = c.queue.Leave(decisionCtx, item)
	}

	if err != nil {
		// Abandoned to redelivery; the broker's visibility timeout
		// guarantees a reattempt.
		c.logger.Error("failed to resolve delivery",
			"itemId", item.ID,
			"resolution", resolution,
			"error", err,
		)
		return
	}

	c.logger.Debug("delivery resolved",
		"itemId", item.ID,
		"resolution", resolution,
		"deliveryCount", item.DeliveryCount,
	)
}

func (c *Consumer) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
