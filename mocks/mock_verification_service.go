package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"docsign/internal/domain"
	"docsign/internal/port"
	"docsign/internal/service"
)

// MockVerificationService is a mock implementation of service.VerificationService.
type MockVerificationService struct {
	mock.Mock
}

func (m *MockVerificationService) BuildReport(ctx context.Context, documentID uuid.UUID) (*domain.VerificationReport, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VerificationReport), args.Error(1)
}

func (m *MockVerificationService) VerifyArtifact(ctx context.Context, artifact []byte) (*service.ArtifactReport, error) {
	args := m.Called(ctx, artifact)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ArtifactReport), args.Error(1)
}

func (m *MockVerificationService) RenderCertificate(ctx context.Context, code string) (*port.RenderedDocument, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.RenderedDocument), args.Error(1)
}
