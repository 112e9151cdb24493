package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"docsign/internal/domain"
	"docsign/internal/service"
)

// MockProtocolRegistry is a mock implementation of service.ProtocolRegistry.
type MockProtocolRegistry struct {
	mock.Mock
}

func (m *MockProtocolRegistry) Issue(ctx context.Context, documentID uuid.UUID, documentHash string, meta service.IssueMetadata) (*domain.Protocol, error) {
	args := m.Called(ctx, documentID, documentHash, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Protocol), args.Error(1)
}

func (m *MockProtocolRegistry) VerifyByCode(ctx context.Context, code, providedHash string) (*domain.VerificationReport, error) {
	args := m.Called(ctx, code, providedHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VerificationReport), args.Error(1)
}

func (m *MockProtocolRegistry) VerifyByHash(ctx context.Context, hash string) (*domain.VerificationReport, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VerificationReport), args.Error(1)
}

func (m *MockProtocolRegistry) Revoke(ctx context.Context, code, reason string, actor service.Actor) error {
	args := m.Called(ctx, code, reason, actor)
	return args.Error(0)
}

func (m *MockProtocolRegistry) Get(ctx context.Context, code string) (*domain.Protocol, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Protocol), args.Error(1)
}

func (m *MockProtocolRegistry) ExpireStale(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
