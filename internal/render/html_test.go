package render_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsign/internal/domain"
	"docsign/internal/render"
)

func TestHTMLRenderer_RenderCertificate(t *testing.T) {
	r, err := render.NewHTMLRenderer(time.FixedZone("BRT", -3*60*60))
	require.NoError(t, err)

	signedAt := time.Date(2026, 5, 2, 13, 0, 0, 0, time.UTC)
	report := &domain.VerificationReport{
		Valid:        true,
		Method:       "protocol",
		Document:     &domain.Document{ID: uuid.New(), Title: "Contrato <Anexo I>"},
		DocumentHash: "deadbeef",
		Protocol: &domain.Protocol{
			Code:      "APR-DOC-2026-7K3QZ",
			Status:    domain.ProtocolActive,
			CreatedAt: signedAt,
			ExpiresAt: signedAt.AddDate(5, 0, 0),
		},
		Signatures: []domain.SignatureView{{
			SignerName:    "Maria & Filhos",
			SignerCPF:     "529.***.***-25",
			SignatureType: domain.SignatureTypeElectronic,
			Status:        domain.SignatureStatusSigned,
			SignedAt:      &signedAt,
		}},
		VerificationURL: "https://sign.example.com/verify/APR-DOC-2026-7K3QZ",
		GeneratedAt:     signedAt,
	}

	out, err := r.RenderCertificate(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=utf-8", out.ContentType)

	body := string(out.Body)
	assert.Contains(t, body, "VALID")
	assert.Contains(t, body, "APR-DOC-2026-7K3QZ (active)")
	assert.Contains(t, body, "02/05/2026 10:00:00 BRT")
	assert.Contains(t, body, "Contrato &lt;Anexo I&gt;")
	assert.Contains(t, body, "Maria &amp; Filhos")
	assert.Contains(t, body, "529.***.***-25")
	assert.NotContains(t, body, "No signatures.")
}

func TestHTMLRenderer_Invalid(t *testing.T) {
	r, err := render.NewHTMLRenderer(nil)
	require.NoError(t, err)

	out, err := r.RenderCertificate(context.Background(), &domain.VerificationReport{Message: "protocol has been revoked"})
	require.NoError(t, err)
	body := string(out.Body)
	assert.Contains(t, body, "NOT VALID")
	assert.Contains(t, body, "protocol has been revoked")
	assert.Contains(t, body, "No signatures.")

	_, err = r.RenderCertificate(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
