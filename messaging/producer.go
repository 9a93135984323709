package messaging

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/relayworks/relay-go/internal/pacing"
	"github.com/relayworks/relay-go/internal/reliability"
)

// ErrSourceDrained is returned by a PayloadSource to end production.
var ErrSourceDrained = errors.New("producer: payload source drained")

// Producer emits units of work onto the queue at a paced rate. Each send
// is individually retried on the transport budget; a unit whose budget is
// exhausted is logged and dropped, and production continues.
type Producer struct {
	queue    WorkQueue
	source   PayloadSource
	pacer    *pacing.Pacer
	executor *reliability.Executor
	logger   *slog.Logger

	// rateBits holds the float64 bits of a pending rate change, written
	// by SetRate and consumed by the loop. Readers always observe the
	// latest committed value; writers never block the loop.
	rateBits atomic.Uint64
}

const noRateChange = math.MaxUint64

// ProducerOption configures the producer
type ProducerOption func(*Producer)

// WithProducerRate sets the target emission rate in units per second.
// Zero or below disables pacing.
func WithProducerRate(rate float64) ProducerOption {
	return func(p *Producer) {
		p.pacer = pacing.NewPacer(rate)
	}
}

// WithProducerPacer sets an explicit pacer instance.
func WithProducerPacer(pacer *pacing.Pacer) ProducerOption {
	return func(p *Producer) {
		p.pacer = pacer
	}
}

// WithProducerExecutor sets the retry executor wrapping each send.
func WithProducerExecutor(executor *reliability.Executor) ProducerOption {
	return func(p *Producer) {
		p.executor = executor
	}
}

// WithProducerLogger sets the logger.
func WithProducerLogger(logger *slog.Logger) ProducerOption {
	return func(p *Producer) {
		p.logger = logger
	}
}

// NewProducer creates a producer drawing payloads from source.
func NewProducer(queue WorkQueue, source PayloadSource, options ...ProducerOption) *Producer {
	p := &Producer{
		queue:    queue,
		source:   source,
		pacer:    pacing.NewPacer(0),
		executor: reliability.NewExecutor(),
		logger:   slog.Default(),
	}

	for _, opt := range options {
		opt(p)
	}
	p.rateBits.Store(noRateChange)

	return p
}

// SetRate changes the target emission rate at runtime. Safe to call from
// any goroutine; the loop adopts the new rate on its next admission.
// Zero or below disables pacing.
func (p *Producer) SetRate(rate float64) {
	p.rateBits.Store(math.Float64bits(rate))
}

// adoptRate swaps in a pending rate change, if any.
func (p *Producer) adoptRate() {
	bits := p.rateBits.Swap(noRateChange)
	if bits == noRateChange {
		return
	}
	p.pacer = pacing.NewPacer(math.Float64frombits(bits))
}

// Run produces until ctx is cancelled or the source drains. Only
// cancellation and a drained source stop the loop; send failures are
// logged per unit and production continues.
func (p *Producer) Run(ctx context.Context) error {
	for {
		p.adoptRate()
		if err := pacing.Wait(ctx, p.pacer); err != nil {
			return err
		}

		payload, err := p.source(ctx)
		if err != nil {
			if errors.Is(err, ErrSourceDrained) {
				p.logger.Info("payload source drained, stopping producer")
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error("payload source failed", "error", err)
			continue
		}

		err = p.executor.Execute(ctx, func(ctx context.Context) error {
			return p.queue.Send(ctx, payload)
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Fire-and-continue: a lost unit is logged, never fatal.
			p.logger.Error("send retries exhausted, dropping unit",
				"error", err,
				"payloadBytes", len(payload),
			)
		}
	}
}
