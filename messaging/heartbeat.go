package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/relayworks/relay-go/contracts"
	"github.com/relayworks/relay-go/internal/reliability"
	"github.com/relayworks/relay-go/registry"
)

const heartbeatPath = "/workers/heartbeat"

// HeartbeatLoop periodically announces this worker's liveness to the
// registration endpoint and refreshes the local registry. Each post is
// retried on the transport budget; a non-success response counts as a
// transient failure on the same budget.
type HeartbeatLoop struct {
	caller   OutboundCall
	registry *registry.LivenessRegistry
	workerID string
	interval time.Duration
	executor *reliability.Executor
	logger   *slog.Logger
}

// HeartbeatOption configures the heartbeat loop
type HeartbeatOption func(*HeartbeatLoop)

// WithWorkerID sets the worker identity. Defaults to a random UUID.
func WithWorkerID(id string) HeartbeatOption {
	return func(h *HeartbeatLoop) {
		h.workerID = id
	}
}

// WithHeartbeatInterval sets the announcement period.
func WithHeartbeatInterval(d time.Duration) HeartbeatOption {
	return func(h *HeartbeatLoop) {
		h.interval = d
	}
}

// WithHeartbeatExecutor sets the retry executor wrapping each post.
func WithHeartbeatExecutor(executor *reliability.Executor) HeartbeatOption {
	return func(h *HeartbeatLoop) {
		h.executor = executor
	}
}

// WithHeartbeatLogger sets the logger.
func WithHeartbeatLogger(logger *slog.Logger) HeartbeatOption {
	return func(h *HeartbeatLoop) {
		h.logger = logger
	}
}

// NewHeartbeatLoop creates a heartbeat loop posting through caller and
// mirroring registrations into reg.
func NewHeartbeatLoop(caller OutboundCall, reg *registry.LivenessRegistry, options ...HeartbeatOption) *HeartbeatLoop {
	h := &HeartbeatLoop{
		caller:   caller,
		registry: reg,
		workerID: uuid.NewString(),
		interval: 3 * time.Second,
		executor: reliability.NewExecutor(),
		logger:   slog.Default(),
	}

	for _, opt := range options {
		opt(h)
	}

	return h
}

// WorkerID returns this loop's worker identity.
func (h *HeartbeatLoop) WorkerID() string {
	return h.workerID
}

// Run announces immediately and then on every interval until ctx is
// cancelled. Exhausted post budgets are logged and the loop keeps going;
// the registry sweep is what eventually marks a silent worker dead.
func (h *HeartbeatLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.beat(ctx)
	for {
		select {
		case <-ticker.C:
			h.beat(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *HeartbeatLoop) beat(ctx context.Context) {
	hb := contracts.Heartbeat{
		WorkerID:  h.workerID,
		Timestamp: time.Now().UTC(),
	}

	err := h.executor.Execute(ctx, func(ctx context.Context) error {
		return h.caller.Post(ctx, heartbeatPath, hb)
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		h.logger.Error("heartbeat retries exhausted",
			"workerId", h.workerID,
			"error", err,
		)
		return
	}

	if h.registry != nil {
		h.registry.Register(h.workerID)
	}
}
