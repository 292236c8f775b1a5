package notify

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type mockPush struct{ mock.Mock }

func (m *mockPush) Push(ctx context.Context, msg PushMessage) error {
	return m.Called(ctx, msg).Error(0)
}

type mockSMS struct{ mock.Mock }

func (m *mockSMS) Send(ctx context.Context, msg SMSMessage) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

type mockEmail struct{ mock.Mock }

func (m *mockEmail) Send(ctx context.Context, msg EmailMessage) error {
	return m.Called(ctx, msg).Error(0)
}

type mockOnce struct{ mock.Mock }

func (m *mockOnce) First(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}
