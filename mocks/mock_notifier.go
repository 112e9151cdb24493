package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docsign/internal/port"
)

// MockNotifier is a mock implementation of port.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendSignatureReceipt(ctx context.Context, receipt port.SignatureReceipt) error {
	args := m.Called(ctx, receipt)
	return args.Error(0)
}
