package relay

import (
	"log/slog"
	"os"
	"time"

	"github.com/relayworks/relay-go/messaging"
)

type clientConfig struct {
	logger              *slog.Logger
	queueName           string
	workerID            string
	handler             messaging.WorkHandler
	source              messaging.PayloadSource
	registrationURL     string
	produceRate         float64
	consumeRate         float64
	maxRetries          int
	baseDelay           time.Duration
	maxJitter           time.Duration
	deadLetterThreshold int
	visibilityTimeout   time.Duration
	gracePeriod         time.Duration
	heartbeatInterval   time.Duration
	livenessWindow      time.Duration
}

// ClientOption configures the client
type ClientOption func(*clientConfig)

// WithLogger sets the logger for all pipeline components.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithDefaultLogger uses a JSON logger on stderr.
func WithDefaultLogger() ClientOption {
	return func(c *clientConfig) {
		c.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
}

// WithQueue sets the work queue name. Defaults to "relay-work".
func WithQueue(name string) ClientOption {
	return func(c *clientConfig) {
		c.queueName = name
	}
}

// WithWorkerID sets the worker identity used for heartbeats.
func WithWorkerID(id string) ClientOption {
	return func(c *clientConfig) {
		c.workerID = id
	}
}

// WithHandler enables the consumer loop with the given handler.
func WithHandler(handler messaging.WorkHandler) ClientOption {
	return func(c *clientConfig) {
		c.handler = handler
	}
}

// WithHandlerFunc enables the consumer loop with a handler function.
func WithHandlerFunc(fn messaging.WorkHandlerFunc) ClientOption {
	return func(c *clientConfig) {
		c.handler = fn
	}
}

// WithSource enables the producer loop drawing payloads from source.
func WithSource(source messaging.PayloadSource) ClientOption {
	return func(c *clientConfig) {
		c.source = source
	}
}

// WithRegistrationEndpoint enables the heartbeat loop posting to the
// given base URL.
func WithRegistrationEndpoint(baseURL string) ClientOption {
	return func(c *clientConfig) {
		c.registrationURL = baseURL
	}
}

// WithProduceRate sets the producer's target rate in units per second.
// Zero or below disables pacing.
func WithProduceRate(rate float64) ClientOption {
	return func(c *clientConfig) {
		c.produceRate = rate
	}
}

// WithConsumeRate sets the consumer's target rate in units per second.
// Zero or below disables pacing.
func WithConsumeRate(rate float64) ClientOption {
	return func(c *clientConfig) {
		c.consumeRate = rate
	}
}

// WithRetry sets the transport retry budget shared by sends, receives and
// heartbeat posts.
func WithRetry(maxRetries int, baseDelay, maxJitter time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.maxRetries = maxRetries
		c.baseDelay = baseDelay
		c.maxJitter = maxJitter
	}
}

// WithDeadLetterThreshold sets the delivery count at which failed items
// are dead-lettered.
func WithDeadLetterThreshold(threshold int) ClientOption {
	return func(c *clientConfig) {
		c.deadLetterThreshold = threshold
	}
}

// WithVisibilityTimeout sets the visibility timeout requested per receive.
func WithVisibilityTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.visibilityTimeout = d
	}
}

// WithGracePeriod bounds the ack/escalation decision for an in-flight
// item during shutdown.
func WithGracePeriod(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.gracePeriod = d
	}
}

// WithHeartbeatInterval sets the heartbeat announcement period.
func WithHeartbeatInterval(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.heartbeatInterval = d
	}
}

// WithLivenessWindow sets how long a worker may go silent before the
// sweeper evicts it.
func WithLivenessWindow(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.livenessWindow = d
	}
}
