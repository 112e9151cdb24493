package port

import (
	"context"

	"docsign/internal/domain"
)

// RenderedDocument is a printable rendering.
type RenderedDocument struct {
	ContentType string
	Body        []byte
}

// CertificateRenderer renders a verification report as a printable
// certificate. The implementation is selected at configuration time.
type CertificateRenderer interface {
	RenderCertificate(ctx context.Context, report *domain.VerificationReport) (*RenderedDocument, error)
}
