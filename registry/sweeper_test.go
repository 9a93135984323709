package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSweepOnce(t *testing.T) {
	t.Run("evicts only entries past the window", func(t *testing.T) {
		r, clock := newTestRegistry()
		s := NewSweeper(r, WithLivenessWindow(10*time.Second))

		r.Register("dead")
		clock.Advance(12 * time.Second)
		r.Register("alive")
		clock.Advance(3 * time.Second)

		evicted := s.SweepOnce()

		assert.Equal(t, []string{"dead"}, evicted)
		assert.Equal(t, 1, r.Count())
		_, ok := r.LastHeartbeat("alive")
		assert.True(t, ok)
	})

	t.Run("empty registry sweeps nothing", func(t *testing.T) {
		r, _ := newTestRegistry()
		s := NewSweeper(r)

		assert.Empty(t, s.SweepOnce())
	})
}

func TestSweeperRun(t *testing.T) {
	t.Run("sweeps on its interval until cancelled", func(t *testing.T) {
		r := NewLivenessRegistry()
		s := NewSweeper(r,
			WithLivenessWindow(time.Millisecond),
			WithSweepInterval(5*time.Millisecond),
		)

		r.Register("worker-1")

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- s.Run(ctx)
		}()

		assert.Eventually(t, func() bool {
			return r.Count() == 0
		}, time.Second, 5*time.Millisecond)

		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("sweeper did not stop on cancellation")
		}
	})
}
