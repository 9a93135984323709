package messaging

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/relayworks/relay-go/internal/pacing"
	"github.com/relayworks/relay-go/internal/reliability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func fastProducerExecutor() *reliability.Executor {
	return reliability.NewExecutor(
		reliability.WithMaxRetries(1),
		reliability.WithBaseDelay(time.Millisecond),
		reliability.WithMaxJitter(0),
	)
}

func boundedSource(n int) PayloadSource {
	i := 0
	return func(ctx context.Context) ([]byte, error) {
		if i >= n {
			return nil, ErrSourceDrained
		}
		i++
		return []byte(fmt.Sprintf(`{"unit":%d}`, i)), nil
	}
}

func TestProducerRun(t *testing.T) {
	t.Run("sends every unit then stops on a drained source", func(t *testing.T) {
		queue := &mockWorkQueue{}
		queue.On("Send", mock.Anything, mock.Anything).Return(nil)

		p := NewProducer(queue, boundedSource(5),
			WithProducerExecutor(fastProducerExecutor()),
		)

		err := p.Run(context.Background())

		assert.NoError(t, err)
		queue.AssertNumberOfCalls(t, "Send", 5)
	})

	t.Run("exhausted send budget drops the unit and continues", func(t *testing.T) {
		queue := &mockWorkQueue{}
		queue.On("Send", mock.Anything, mock.Anything).Return(errors.New("broker down"))

		p := NewProducer(queue, boundedSource(3),
			WithProducerExecutor(fastProducerExecutor()),
		)

		err := p.Run(context.Background())

		assert.NoError(t, err)
		// 3 units, 2 attempts each.
		queue.AssertNumberOfCalls(t, "Send", 6)
	})

	t.Run("source failure other than drained is logged and skipped", func(t *testing.T) {
		queue := &mockWorkQueue{}
		queue.On("Send", mock.Anything, mock.Anything).Return(nil)

		calls := 0
		source := func(ctx context.Context) ([]byte, error) {
			calls++
			switch {
			case calls == 1:
				return nil, errors.New("transient source error")
			case calls <= 3:
				return []byte("unit"), nil
			default:
				return nil, ErrSourceDrained
			}
		}

		p := NewProducer(queue, source,
			WithProducerExecutor(fastProducerExecutor()),
		)

		err := p.Run(context.Background())

		assert.NoError(t, err)
		queue.AssertNumberOfCalls(t, "Send", 2)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		queue := &mockWorkQueue{}
		queue.On("Send", mock.Anything, mock.Anything).Return(nil)

		infinite := func(ctx context.Context) ([]byte, error) {
			return []byte("unit"), nil
		}

		p := NewProducer(queue, infinite,
			WithProducerExecutor(fastProducerExecutor()),
			WithProducerRate(10),
		)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- p.Run(ctx)
		}()

		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("producer did not stop")
		}
	})

	t.Run("rate change is adopted on the next admission", func(t *testing.T) {
		queue := &mockWorkQueue{}
		queue.On("Send", mock.Anything, mock.Anything).Return(nil)

		p := NewProducer(queue, boundedSource(2),
			WithProducerExecutor(fastProducerExecutor()),
			WithProducerPacer(pacing.NewPacer(0.001)), // effectively stalled
		)
		p.SetRate(0) // disable pacing before the loop starts

		done := make(chan error, 1)
		go func() {
			done <- p.Run(context.Background())
		}()

		select {
		case err := <-done:
			assert.NoError(t, err)
			queue.AssertNumberOfCalls(t, "Send", 2)
		case <-time.After(2 * time.Second):
			t.Fatal("producer did not adopt the new rate")
		}
	})

	t.Run("pacing spaces out sends", func(t *testing.T) {
		queue := &mockWorkQueue{}
		queue.On("Send", mock.Anything, mock.Anything).Return(nil)

		p := NewProducer(queue, boundedSource(3),
			WithProducerExecutor(fastProducerExecutor()),
			WithProducerPacer(pacing.NewPacer(20)),
		)

		start := time.Now()
		err := p.Run(context.Background())
		elapsed := time.Since(start)

		assert.NoError(t, err)
		// First unit immediate, two more at 50ms spacing.
		assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
	})
}
