// Package relay is a producer/consumer pipeline around a durable work
// queue. A producer emits units of work at a paced rate, a consumer
// pulls, processes and resolves them through a failure escalation policy,
// and a liveness registry tracks which worker instances are alive.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/relayworks/relay-go/health"
	"github.com/relayworks/relay-go/internal/rabbitmq"
	"github.com/relayworks/relay-go/internal/reliability"
	"github.com/relayworks/relay-go/messaging"
	"github.com/relayworks/relay-go/monitor"
	"github.com/relayworks/relay-go/registry"
)

// Queue satisfies the loops' WorkQueue contract.
var _ messaging.WorkQueue = (*rabbitmq.Queue)(nil)

// RegistryClient satisfies the heartbeat loop's OutboundCall contract.
var _ messaging.OutboundCall = (*monitor.RegistryClient)(nil)

// Client wires the pipeline together: the RabbitMQ work queue, the
// producer, consumer and heartbeat loops, the liveness registry with its
// sweeper, and health checks.
type Client struct {
	connManager *rabbitmq.ConnectionManager
	queue       *rabbitmq.Queue
	registry    *registry.LivenessRegistry
	sweeper     *registry.Sweeper
	healths     *health.Registry
	producer    *messaging.Producer
	consumer    *messaging.Consumer
	heartbeat   *messaging.HeartbeatLoop
	logger      *slog.Logger
}

// NewClient creates a pipeline client for the broker at connectionString.
// The producer loop runs only when a source is configured, the consumer
// loop only when a handler is, and the heartbeat loop only when a
// registration endpoint is.
func NewClient(connectionString string, options ...ClientOption) (*Client, error) {
	cfg := &clientConfig{
		logger:              slog.Default(),
		queueName:           "relay-work",
		maxRetries:          3,
		baseDelay:           100 * time.Millisecond,
		maxJitter:           100 * time.Millisecond,
		deadLetterThreshold: 3,
		visibilityTimeout:   30 * time.Second,
		gracePeriod:         5 * time.Second,
		heartbeatInterval:   3 * time.Second,
		livenessWindow:      registry.DefaultLivenessWindow,
	}

	for _, opt := range options {
		opt(cfg)
	}

	connManager := rabbitmq.NewConnectionManager(connectionString,
		rabbitmq.WithLogger(cfg.logger),
	)
	queue := rabbitmq.NewQueue(connManager, cfg.queueName,
		rabbitmq.WithQueueLogger(cfg.logger),
	)

	executor := reliability.NewExecutor(
		reliability.WithMaxRetries(cfg.maxRetries),
		reliability.WithBaseDelay(cfg.baseDelay),
		reliability.WithMaxJitter(cfg.maxJitter),
	)

	liveness := registry.NewLivenessRegistry()
	sweeper := registry.NewSweeper(liveness,
		registry.WithLivenessWindow(cfg.livenessWindow),
		registry.WithSweeperLogger(cfg.logger),
	)

	c := &Client{
		connManager: connManager,
		queue:       queue,
		registry:    liveness,
		sweeper:     sweeper,
		healths:     health.NewRegistry(),
		logger:      cfg.logger,
	}

	if cfg.source != nil {
		c.producer = messaging.NewProducer(queue, cfg.source,
			messaging.WithProducerRate(cfg.produceRate),
			messaging.WithProducerExecutor(executor),
			messaging.WithProducerLogger(cfg.logger),
		)
	}

	if cfg.handler != nil {
		c.consumer = messaging.NewConsumer(queue, cfg.handler,
			messaging.WithConsumerRate(cfg.consumeRate),
			messaging.WithConsumerExecutor(executor),
			messaging.WithEscalationPolicy(reliability.NewEscalationPolicy(cfg.deadLetterThreshold)),
			messaging.WithVisibilityTimeout(cfg.visibilityTimeout),
			messaging.WithGracePeriod(cfg.gracePeriod),
			messaging.WithConsumerLogger(cfg.logger),
		)
	}

	if cfg.registrationURL != "" {
		heartbeatOpts := []messaging.HeartbeatOption{
			messaging.WithHeartbeatInterval(cfg.heartbeatInterval),
			messaging.WithHeartbeatExecutor(executor),
			messaging.WithHeartbeatLogger(cfg.logger),
		}
		if cfg.workerID != "" {
			heartbeatOpts = append(heartbeatOpts, messaging.WithWorkerID(cfg.workerID))
		}
		c.heartbeat = messaging.NewHeartbeatLoop(
			monitor.NewRegistryClient(cfg.registrationURL),
			liveness,
			heartbeatOpts...,
		)
	}

	c.healths.Register(health.NewBrokerChecker(connManager))
	c.healths.Register(health.NewWorkerChecker(liveness, cfg.livenessWindow))

	return c, nil
}

// Run starts the configured loops and the registry sweeper, blocking
// until ctx is cancelled or a loop fails. Cancellation is a clean
// shutdown and returns nil.
func (c *Client) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.sweeper.Run(ctx)
	})
	if c.producer != nil {
		g.Go(func() error {
			return c.producer.Run(ctx)
		})
	}
	if c.consumer != nil {
		g.Go(func() error {
			return c.consumer.Run(ctx)
		})
	}
	if c.heartbeat != nil {
		g.Go(func() error {
			return c.heartbeat.Run(ctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// WorkQueue returns the underlying work queue, for direct sends.
func (c *Client) WorkQueue() messaging.WorkQueue {
	return c.queue
}

// Registry returns the liveness registry.
func (c *Client) Registry() *registry.LivenessRegistry {
	return c.registry
}

// Health returns the health check registry.
func (c *Client) Health() *health.Registry {
	return c.healths
}

// WorkerID returns the heartbeat identity, or "" when heartbeats are
// disabled.
func (c *Client) WorkerID() string {
	if c.heartbeat == nil {
		return ""
	}
	return c.heartbeat.WorkerID()
}

// Close releases the queue channel and the broker connection.
func (c *Client) Close() error {
	if err := c.queue.Close(); err != nil {
		c.logger.Warn("failed to close queue", "error", err)
	}
	return c.connManager.Close()
}
