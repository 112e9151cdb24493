package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsign/internal/domain"
	"docsign/internal/service"
	"docsign/internal/signing"
	"docsign/internal/testutil"
)

func TestProtocolRegistry_Issue_AuditFailureLeavesNoProtocol(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	doc := h.upload(t, testutil.SamplePDF())
	ctx := context.Background()
	meta := service.IssueMetadata{SignatureType: domain.SignatureTypeElectronic, SignerCount: 1}

	h.flaky.failAppends(domain.AuditCreated)
	_, err := h.registry.Issue(ctx, doc.ID, doc.ContentHash, meta)
	require.ErrorIs(t, err, domain.ErrAuditAppendFailed)

	_, err = h.protocols.GetActiveByDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrProtocolNotFound)

	h.flaky.failAppends("")
	p, err := h.registry.Issue(ctx, doc.ID, doc.ContentHash, meta)
	require.NoError(t, err)
	assert.Equal(t, []domain.AuditAction{domain.AuditCreated, domain.AuditCreated}, h.actions(t, doc))

	chain, err := h.auditRepo.ListChain(ctx, doc.ID)
	require.NoError(t, err)
	var codes []interface{}
	for _, e := range chain {
		var details map[string]interface{}
		require.NoError(t, json.Unmarshal(e.Details, &details))
		if details["protocol_code"] != nil {
			codes = append(codes, details["protocol_code"])
		}
	}
	assert.Equal(t, []interface{}{p.Code}, codes)
}

func TestProtocolRegistry_Revoke_AuditFailureKeepsProtocolActive(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	doc := h.upload(t, testutil.SamplePDF())
	res := h.signCanvas(t, doc.ID, maria())
	ctx := context.Background()

	h.flaky.failAppends(domain.AuditRevoked)
	err := h.registry.Revoke(ctx, res.Protocol.Code, "assinatura contestada", owner)
	require.ErrorIs(t, err, domain.ErrAuditAppendFailed)

	p, err := h.registry.Get(ctx, res.Protocol.Code)
	require.NoError(t, err)
	assert.Equal(t, domain.ProtocolActive, p.Status)
	assert.NotContains(t, string(p.Metadata), "revoked_reason")

	h.flaky.failAppends("")
	require.NoError(t, h.registry.Revoke(ctx, res.Protocol.Code, "assinatura contestada", owner))
	actions := h.actions(t, doc)
	assert.Equal(t, domain.AuditRevoked, actions[len(actions)-1])

	chain, err := h.audit.VerifyChain(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, chain.Valid)
}

func TestSigningService_AuditFailureLeavesDocumentUntouched(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	doc := h.upload(t, testutil.SamplePDF())
	ctx := context.Background()

	h.flaky.failAppends(domain.AuditSigned)
	_, err := h.signing.SignWithCanvas(ctx, &service.SignCanvasInput{
		DocumentID:  doc.ID,
		ImageBase64: testutil.SignaturePNG(t),
		Signer:      maria(),
	})
	require.ErrorIs(t, err, domain.ErrAuditAppendFailed)

	stored, err := h.docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ContentHash, stored.ContentHash)
	assert.Equal(t, doc.ContentRef, stored.ContentRef)
	assert.Equal(t, domain.DocumentStatusDraft, stored.Status)

	recs, err := h.signatures.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, recs)
	_, err = h.protocols.GetActiveByDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrProtocolNotFound)
	assert.Equal(t, []domain.AuditAction{domain.AuditCreated}, h.actions(t, doc))

	h.flaky.failAppends("")
	res := h.signCanvas(t, doc.ID, maria())
	assert.Equal(t, doc.ContentHash, res.DocumentHash)
	assert.Equal(t, []domain.AuditAction{domain.AuditCreated, domain.AuditSigned, domain.AuditCreated}, h.actions(t, doc))
}

func TestSigningService_ProtocolFailureRollsBackSignature(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	doc := h.upload(t, testutil.SamplePDF())
	ctx := context.Background()

	// The protocol's created entry fails after the signed entry was written.
	h.flaky.failAppends(domain.AuditCreated)
	_, err := h.signing.SignWithCanvas(ctx, &service.SignCanvasInput{
		DocumentID:  doc.ID,
		ImageBase64: testutil.SignaturePNG(t),
		Signer:      maria(),
	})
	require.ErrorIs(t, err, domain.ErrAuditAppendFailed)

	stored, err := h.docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ContentHash, stored.ContentHash)
	recs, err := h.signatures.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, []domain.AuditAction{domain.AuditCreated}, h.actions(t, doc))

	chain, err := h.audit.VerifyChain(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, chain.Valid)
}

func TestProtocolRegistry_VerifyByCode_AuditFailureDoesNotCount(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	doc := h.upload(t, testutil.SamplePDF())
	res := h.signCanvas(t, doc.ID, maria())
	ctx := context.Background()

	h.flaky.failAppends(domain.AuditVerified)
	_, err := h.registry.VerifyByCode(ctx, res.Protocol.Code, "")
	require.ErrorIs(t, err, domain.ErrAuditAppendFailed)

	p, err := h.registry.Get(ctx, res.Protocol.Code)
	require.NoError(t, err)
	assert.Zero(t, p.VerificationCount)
	assert.Nil(t, p.LastVerifiedAt)

	h.flaky.failAppends("")
	report, err := h.registry.VerifyByCode(ctx, res.Protocol.Code, "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Protocol.VerificationCount)
	actions := h.actions(t, doc)
	assert.Equal(t, domain.AuditVerified, actions[len(actions)-1])
}

func TestSigningService_RequestSignature_AuditFailureCreatesNoRequest(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	doc := h.upload(t, testutil.SamplePDF())
	ctx := context.Background()

	h.flaky.failAppends(domain.AuditSignatureRequested)
	_, err := h.signing.RequestSignature(ctx, &service.RequestSignatureInput{
		DocumentID:    doc.ID,
		Signer:        maria(),
		SignatureType: domain.SignatureTypeElectronic,
		Actor:         owner,
	})
	require.ErrorIs(t, err, domain.ErrAuditAppendFailed)

	recs, err := h.signatures.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, recs)
	stored, err := h.docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusDraft, stored.Status)
}

func TestDocumentService_Upload_AuditFailureStoresNoDocument(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	h.flaky.failAppends(domain.AuditCreated)

	pdf := testutil.SamplePDF()
	_, err := h.documents.Upload(context.Background(), service.DocumentUploadInput{
		File:   uploadedFile{bytes.NewReader(pdf)},
		Header: &multipart.FileHeader{Filename: "contrato.pdf", Size: int64(len(pdf))},
		Actor:  owner,
	})
	require.ErrorIs(t, err, domain.ErrAuditAppendFailed)

	_, err = h.docs.FindByHash(context.Background(), signing.SHA256Hex(pdf))
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}
