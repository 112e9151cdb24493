package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsign/internal/domain"
	"docsign/internal/service"
	"docsign/internal/signing"
	"docsign/internal/testutil"
)

func TestVerificationService_BuildReport(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	doc := h.upload(t, testutil.SamplePDF())

	t.Run("unsigned", func(t *testing.T) {
		report, err := h.verification.BuildReport(ctx, doc.ID)
		require.NoError(t, err)
		assert.False(t, report.Valid)
		assert.True(t, report.NoProtocol)
		assert.Equal(t, "document has no completed signatures", report.Message)
		assert.Equal(t, doc.ContentHash, report.DocumentHash)
		assert.Empty(t, report.Signatures)
	})

	res := h.signCanvas(t, doc.ID, maria())

	t.Run("signed", func(t *testing.T) {
		report, err := h.verification.BuildReport(ctx, doc.ID)
		require.NoError(t, err)
		assert.True(t, report.Valid)
		assert.Equal(t, service.MethodDocument, report.Method)
		require.NotNil(t, report.Protocol)
		assert.Equal(t, res.Protocol.Code, report.Protocol.Code)
		assert.Equal(t, res.ArtifactHash, report.DocumentHash)
		require.Len(t, report.Signatures, 1)
		assert.Equal(t, domain.SignatureStatusSigned, report.Signatures[0].Status)

		// Reading the report is audited but never counts as a protocol verification.
		p, err := h.registry.Get(ctx, res.Protocol.Code)
		require.NoError(t, err)
		assert.Equal(t, 0, p.VerificationCount)
	})

	t.Run("revoked", func(t *testing.T) {
		require.NoError(t, h.registry.Revoke(ctx, res.Protocol.Code, "fraude", owner))

		report, err := h.verification.BuildReport(ctx, doc.ID)
		require.NoError(t, err)
		assert.False(t, report.Valid)
		assert.Equal(t, "protocol has been revoked", report.Message)
		assert.Equal(t, domain.ProtocolRevoked, report.Protocol.Status)
	})

	actions := h.actions(t, doc)
	verified := 0
	for _, a := range actions {
		if a == domain.AuditVerified {
			verified++
		}
	}
	assert.Equal(t, 3, verified)
}

func TestVerificationService_BuildReport_UnknownDocument(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	_, err := h.verification.BuildReport(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestVerificationService_VerifyArtifact(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	doc := h.upload(t, testutil.SamplePDF())
	res := h.signCanvas(t, doc.ID, maria())
	artifact := h.current(t, doc)

	t.Run("registered", func(t *testing.T) {
		out, err := h.verification.VerifyArtifact(ctx, artifact)
		require.NoError(t, err)
		assert.True(t, out.Valid)
		require.Len(t, out.Verification.Signatures, 1)
		require.NotNil(t, out.Report)
		assert.Equal(t, service.MethodArtifact, out.Report.Method)
		assert.Equal(t, res.Protocol.Code, out.Report.Protocol.Code)
		require.NotNil(t, out.Report.HashMatches)
		assert.True(t, *out.Report.HashMatches)
	})

	t.Run("tampered", func(t *testing.T) {
		tampered := append([]byte(nil), artifact...)
		tampered[12] ^= 0x01

		out, err := h.verification.VerifyArtifact(ctx, tampered)
		require.NoError(t, err)
		assert.False(t, out.Valid)
		assert.Nil(t, out.Report)
		assert.Equal(t, "artifact failed verification", out.Message)
	})

	t.Run("signed elsewhere", func(t *testing.T) {
		other, err := h.engine.SignWithCanvas(&signing.CanvasRequest{
			PDF:         append(testutil.SamplePDF(), []byte("% other\n")...),
			ImageBase64: testutil.SignaturePNG(t),
			Signer:      signing.SignerInfo{Name: "João Pereira", CPF: "11144477735"},
		})
		require.NoError(t, err)

		out, err := h.verification.VerifyArtifact(ctx, other.Bytes)
		require.NoError(t, err)
		assert.True(t, out.Valid)
		assert.Nil(t, out.Report)
		assert.Equal(t, "artifact is not registered with this service", out.Message)
	})

	t.Run("unsigned", func(t *testing.T) {
		_, err := h.verification.VerifyArtifact(ctx, testutil.SamplePDF())
		assert.ErrorIs(t, err, domain.ErrNoSignatureFound)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := h.verification.VerifyArtifact(ctx, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestVerificationService_RenderCertificate(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	doc := h.upload(t, testutil.SamplePDF())
	res := h.signCanvas(t, doc.ID, maria())

	out, err := h.verification.RenderCertificate(ctx, res.Protocol.Code)
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=utf-8", out.ContentType)
	body := string(out.Body)
	assert.Contains(t, body, res.Protocol.Code)
	assert.Contains(t, body, "VALID")
	assert.Contains(t, body, "529.***.***-25")
	assert.False(t, strings.Contains(body, testutil.SignerCPF))

	p, err := h.registry.Get(ctx, res.Protocol.Code)
	require.NoError(t, err)
	assert.Equal(t, 1, p.VerificationCount)

	require.NoError(t, h.registry.Revoke(ctx, res.Protocol.Code, "fraude", owner))
	_, err = h.verification.RenderCertificate(ctx, res.Protocol.Code)
	assert.ErrorIs(t, err, domain.ErrProtocolRevoked)
}
