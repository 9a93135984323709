package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/relayworks/relay-go/contracts"
	"github.com/relayworks/relay-go/internal/reliability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func testItem(deliveryCount int) *contracts.WorkItem {
	return &contracts.WorkItem{
		ID:            "item-1",
		Payload:       []byte(`{"n":1}`),
		ReceiptToken:  "receipt-1",
		DeliveryCount: deliveryCount,
		ReceivedAt:    time.Now(),
	}
}

func fastConsumer(queue WorkQueue, handler WorkHandler, options ...ConsumerOption) *Consumer {
	base := []ConsumerOption{
		WithConsumerExecutor(reliability.NewExecutor(
			reliability.WithMaxRetries(1),
			reliability.WithBaseDelay(time.Millisecond),
			reliability.WithMaxJitter(0),
		)),
		WithIdleDelay(time.Millisecond),
		WithGracePeriod(time.Second),
	}
	return NewConsumer(queue, handler, append(base, options...)...)
}

func TestConsumerProcess(t *testing.T) {
	t.Run("handler success is a success outcome", func(t *testing.T) {
		c := fastConsumer(&mockWorkQueue{}, WorkHandlerFunc(func(ctx context.Context, item *contracts.WorkItem) error {
			return nil
		}))

		assert.Equal(t, contracts.OutcomeSuccess, c.process(context.Background(), testItem(1)))
	})

	t.Run("handler error is a failure outcome", func(t *testing.T) {
		c := fastConsumer(&mockWorkQueue{}, WorkHandlerFunc(func(ctx context.Context, item *contracts.WorkItem) error {
			return errors.New("cannot process")
		}))

		assert.Equal(t, contracts.OutcomeFailure, c.process(context.Background(), testItem(1)))
	})

	t.Run("handler panic is a failure outcome, not an ack", func(t *testing.T) {
		c := fastConsumer(&mockWorkQueue{}, WorkHandlerFunc(func(ctx context.Context, item *contracts.WorkItem) error {
			panic("boom")
		}))

		assert.NotPanics(t, func() {
			assert.Equal(t, contracts.OutcomeFailure, c.process(context.Background(), testItem(1)))
		})
	})
}

func TestConsumerResolve(t *testing.T) {
	t.Run("success deletes the item", func(t *testing.T) {
		queue := &mockWorkQueue{}
		item := testItem(1)
		queue.On("Delete", mock.Anything, item).Return(nil)

		c := fastConsumer(queue, nil, WithEscalationPolicy(reliability.NewEscalationPolicy(3)))
		c.resolve(context.Background(), item, contracts.OutcomeSuccess)

		queue.AssertCalled(t, "Delete", mock.Anything, item)
		queue.AssertNotCalled(t, "DeadLetter", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("failure below threshold leaves the item", func(t *testing.T) {
		queue := &mockWorkQueue{}
		item := testItem(2)
		queue.On("Leave", mock.Anything, item).Return(nil)

		c := fastConsumer(queue, nil, WithEscalationPolicy(reliability.NewEscalationPolicy(3)))
		c.resolve(context.Background(), item, contracts.OutcomeFailure)

		queue.AssertCalled(t, "Leave", mock.Anything, item)
		queue.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
		queue.AssertNotCalled(t, "DeadLetter", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("failure at threshold dead-letters the item", func(t *testing.T) {
		queue := &mockWorkQueue{}
		item := testItem(3)
		queue.On("DeadLetter", mock.Anything, item, mock.Anything).Return(nil)

		c := fastConsumer(queue, nil, WithEscalationPolicy(reliability.NewEscalationPolicy(3)))
		c.resolve(context.Background(), item, contracts.OutcomeFailure)

		queue.AssertCalled(t, "DeadLetter", mock.Anything, item, mock.Anything)
		queue.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("shutdown mid-decision still acknowledges within the grace period", func(t *testing.T) {
		queue := &mockWorkQueue{}
		item := testItem(1)
		queue.On("Delete", mock.Anything, item).Return(nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel() // shutdown already requested

		c := fastConsumer(queue, nil)
		c.resolve(ctx, item, contracts.OutcomeSuccess)

		queue.AssertCalled(t, "Delete", mock.Anything, item)
	})

	t.Run("resolution failure abandons the item to redelivery", func(t *testing.T) {
		queue := &mockWorkQueue{}
		item := testItem(1)
		queue.On("Delete", mock.Anything, item).Return(errors.New("connection lost"))

		c := fastConsumer(queue, nil)
		assert.NotPanics(t, func() {
			c.resolve(context.Background(), item, contracts.OutcomeSuccess)
		})
	})
}

func TestConsumerRun(t *testing.T) {
	t.Run("processes one item then idles on empty polls", func(t *testing.T) {
		queue := &mockWorkQueue{}
		item := testItem(1)
		processed := make(chan struct{})

		queue.On("Receive", mock.Anything, mock.Anything).Return(item, true, nil).Once()
		queue.On("Receive", mock.Anything, mock.Anything).Return(nil, false, nil)
		queue.On("Delete", mock.Anything, item).Return(nil).Run(func(args mock.Arguments) {
			close(processed)
		})

		c := fastConsumer(queue, WorkHandlerFunc(func(ctx context.Context, item *contracts.WorkItem) error {
			return nil
		}))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- c.Run(ctx)
		}()

		select {
		case <-processed:
		case <-time.After(2 * time.Second):
			t.Fatal("item was not processed")
		}

		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("consumer did not stop")
		}

		queue.AssertExpectations(t)
	})

	t.Run("receive exhaustion trips the cooldown and keeps the loop alive", func(t *testing.T) {
		queue := &mockWorkQueue{}
		queue.On("Receive", mock.Anything, mock.Anything).Return(nil, false, errors.New("broker down"))

		cooldown := reliability.NewCooldown(
			reliability.WithCooldownThreshold(1),
			reliability.WithCooldownWindow(time.Hour),
		)

		c := fastConsumer(queue, nil, WithConsumerCooldown(cooldown))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- c.Run(ctx)
		}()

		assert.Eventually(t, func() bool {
			return cooldown.CurrentState() == reliability.StateOpen
		}, 2*time.Second, 5*time.Millisecond)

		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("consumer did not stop during cooldown")
		}
	})
}
