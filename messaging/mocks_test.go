package messaging

import (
	"context"
	"time"

	"github.com/relayworks/relay-go/contracts"
	"github.com/stretchr/testify/mock"
)

// Mock WorkQueue
type mockWorkQueue struct {
	mock.Mock
}

func (m *mockWorkQueue) Receive(ctx context.Context, visibilityTimeout time.Duration) (*contracts.WorkItem, bool, error) {
	args := m.Called(ctx, visibilityTimeout)
	var item *contracts.WorkItem
	if v := args.Get(0); v != nil {
		item = v.(*contracts.WorkItem)
	}
	return item, args.Bool(1), args.Error(2)
}

func (m *mockWorkQueue) Delete(ctx context.Context, item *contracts.WorkItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *mockWorkQueue) Leave(ctx context.Context, item *contracts.WorkItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *mockWorkQueue) DeadLetter(ctx context.Context, item *contracts.WorkItem, reason string) error {
	args := m.Called(ctx, item, reason)
	return args.Error(0)
}

func (m *mockWorkQueue) Send(ctx context.Context, payload []byte) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

// Mock OutboundCall
type mockOutboundCall struct {
	mock.Mock
}

func (m *mockOutboundCall) Post(ctx context.Context, path string, payload any) error {
	args := m.Called(ctx, path, payload)
	return args.Error(0)
}
