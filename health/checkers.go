package health

import (
	"context"
	"time"

	"github.com/relayworks/relay-go/internal/rabbitmq"
	"github.com/relayworks/relay-go/registry"
)

// BrokerChecker checks the broker connection.
type BrokerChecker struct {
	connManager *rabbitmq.ConnectionManager
}

// NewBrokerChecker creates a broker connection health checker.
func NewBrokerChecker(connManager *rabbitmq.ConnectionManager) *BrokerChecker {
	return &BrokerChecker{connManager: connManager}
}

func (c *BrokerChecker) Name() string {
	return "broker"
}

func (c *BrokerChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
	}

	if !c.connManager.IsConnected() {
		result.Status = StatusUnhealthy
		result.Message = "no open broker connection"
		result.Duration = time.Since(start)
		return result
	}

	result.Status = StatusHealthy
	result.Message = "connected"
	result.Duration = time.Since(start)
	return result
}

// WorkerChecker checks the liveness registry for registered workers.
type WorkerChecker struct {
	registry *registry.LivenessRegistry
	window   time.Duration
}

// NewWorkerChecker creates a checker that reports degraded health when no
// worker has sent a heartbeat within the liveness window.
func NewWorkerChecker(reg *registry.LivenessRegistry, window time.Duration) *WorkerChecker {
	return &WorkerChecker{registry: reg, window: window}
}

func (c *WorkerChecker) Name() string {
	return "workers"
}

func (c *WorkerChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details:   make(map[string]interface{}),
	}

	total := c.registry.Count()
	stale := len(c.registry.Stale(c.window))
	live := total - stale

	result.Details["registered"] = total
	result.Details["live"] = live

	switch {
	case total == 0:
		result.Status = StatusDegraded
		result.Message = "no workers registered"
	case live == 0:
		result.Status = StatusUnhealthy
		result.Message = "all workers stale"
	default:
		result.Status = StatusHealthy
	}

	result.Duration = time.Since(start)
	return result
}
