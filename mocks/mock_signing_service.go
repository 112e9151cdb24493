package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"docsign/internal/domain"
	"docsign/internal/service"
)

// MockSigningService is a mock implementation of service.SigningService.
type MockSigningService struct {
	mock.Mock
}

func (m *MockSigningService) SignWithCertificate(ctx context.Context, input *service.SignCertificateInput) (*service.SignResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SignResult), args.Error(1)
}

func (m *MockSigningService) SignWithCanvas(ctx context.Context, input *service.SignCanvasInput) (*service.SignResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SignResult), args.Error(1)
}

func (m *MockSigningService) RequestSignature(ctx context.Context, input *service.RequestSignatureInput) (*domain.SignatureRecord, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SignatureRecord), args.Error(1)
}

func (m *MockSigningService) Decline(ctx context.Context, signatureID uuid.UUID, reason string, actor service.Actor) error {
	args := m.Called(ctx, signatureID, reason, actor)
	return args.Error(0)
}

func (m *MockSigningService) Finalize(ctx context.Context, documentID uuid.UUID, actor service.Actor) (*domain.Document, error) {
	args := m.Called(ctx, documentID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}
