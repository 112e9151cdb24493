package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsign/internal/domain"
	"docsign/internal/service"
	"docsign/internal/testutil"
)

func TestGenerateProtocolCode(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := service.GenerateProtocolCode(now)
		require.NoError(t, err)
		assert.Regexp(t, `^APR-DOC-2026-[A-Z0-9]{5}$`, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)
}

func TestProtocolCodePattern(t *testing.T) {
	assert.True(t, service.ProtocolCodePattern.MatchString("APR-DOC-2026-7K3QZ"))
	assert.False(t, service.ProtocolCodePattern.MatchString("APR-DOC-2026-7k3qz"))
	assert.False(t, service.ProtocolCodePattern.MatchString("APR-DOC-26-7K3QZ"))
	assert.False(t, service.ProtocolCodePattern.MatchString("APR-DOC-2026-7K3Q"))
}

// sequence returns the given codes in order, repeating the last one.
func sequence(codes ...string) service.CodeGenerator {
	i := 0
	return func(time.Time) (string, error) {
		c := codes[min(i, len(codes)-1)]
		i++
		return c, nil
	}
}

func TestProtocolRegistry_Issue_Idempotent(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	doc := h.upload(t, testutil.SamplePDF())
	ctx := context.Background()

	p, err := h.registry.Issue(ctx, doc.ID, doc.ContentHash, service.IssueMetadata{SignerCount: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.ProtocolActive, p.Status)
	assert.Equal(t, p.CreatedAt.AddDate(5, 0, 0), p.ExpiresAt)
	assert.Equal(t, p.CreatedAt.Unix(), p.CreatedUnix)

	again, err := h.registry.Issue(ctx, doc.ID, "ffff"+doc.ContentHash[4:], service.IssueMetadata{SignerCount: 2})
	require.NoError(t, err)
	assert.Equal(t, p.Code, again.Code)
	assert.Equal(t, doc.ContentHash, again.DocumentHash)

	all, err := h.protocols.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestProtocolRegistry_Issue_RetriesCollisions(t *testing.T) {
	h := newHarness(t, harnessOptions{generate: sequence("APR-DOC-2026-AAAAA", "APR-DOC-2026-AAAAA", "APR-DOC-2026-BBBBB")})
	ctx := context.Background()
	first := h.upload(t, testutil.SamplePDF())
	second := h.upload(t, append(testutil.SamplePDF(), '\n'))

	p1, err := h.registry.Issue(ctx, first.ID, first.ContentHash, service.IssueMetadata{})
	require.NoError(t, err)
	assert.Equal(t, "APR-DOC-2026-AAAAA", p1.Code)

	p2, err := h.registry.Issue(ctx, second.ID, second.ContentHash, service.IssueMetadata{})
	require.NoError(t, err)
	assert.Equal(t, "APR-DOC-2026-BBBBB", p2.Code)
}

func TestProtocolRegistry_Issue_Exhausted(t *testing.T) {
	h := newHarness(t, harnessOptions{generate: sequence("APR-DOC-2026-AAAAA")})
	ctx := context.Background()
	first := h.upload(t, testutil.SamplePDF())
	second := h.upload(t, append(testutil.SamplePDF(), '\n'))

	_, err := h.registry.Issue(ctx, first.ID, first.ContentHash, service.IssueMetadata{})
	require.NoError(t, err)

	_, err = h.registry.Issue(ctx, second.ID, second.ContentHash, service.IssueMetadata{})
	assert.ErrorIs(t, err, domain.ErrCodeGenerationExhausted)
}

func TestProtocolRegistry_Issue_InvalidInput(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	_, err := h.registry.Issue(context.Background(), uuid.Nil, "abc", service.IssueMetadata{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = h.registry.Issue(context.Background(), uuid.New(), "", service.IssueMetadata{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestProtocolRegistry_VerifyByCode(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	doc := h.upload(t, testutil.SamplePDF())
	res := h.signCanvas(t, doc.ID, maria())
	ctx := context.Background()

	report, err := h.registry.VerifyByCode(ctx, res.Protocol.Code, "")
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, service.MethodProtocol, report.Method)
	assert.Nil(t, report.HashMatches)
	assert.Equal(t, 1, report.Protocol.VerificationCount)
	require.Len(t, report.Signatures, 1)
	assert.Equal(t, "529.***.***-25", report.Signatures[0].SignerCPF)
	assert.Equal(t, baseURL+"/verify/"+res.Protocol.Code, report.VerificationURL)
	assert.NotEmpty(t, report.RecentAudit)

	// Codes are case-insensitive on input.
	report, err = h.registry.VerifyByCode(ctx, " "+lower(res.Protocol.Code)+" ", res.ArtifactHash)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	require.NotNil(t, report.HashMatches)
	assert.True(t, *report.HashMatches)
	assert.Equal(t, 2, report.Protocol.VerificationCount)
	require.NotNil(t, report.Protocol.LastVerifiedAt)

	report, err = h.registry.VerifyByCode(ctx, res.Protocol.Code, testutil.SignerCPF)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	require.NotNil(t, report.HashMatches)
	assert.False(t, *report.HashMatches)

	raw, err := json.Marshal(report)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), testutil.SignerCPF)
}

func TestProtocolRegistry_VerifyByCode_NotFound(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()

	_, err := h.registry.VerifyByCode(ctx, "not-a-code", "")
	assert.ErrorIs(t, err, domain.ErrProtocolNotFound)
	_, err = h.registry.VerifyByCode(ctx, "APR-DOC-2026-ZZZZZ", "")
	assert.ErrorIs(t, err, domain.ErrProtocolNotFound)
}

func TestProtocolRegistry_Expiry(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	doc := h.upload(t, testutil.SamplePDF())
	res := h.signCanvas(t, doc.ID, maria())
	ctx := context.Background()

	h.clock.Advance(5*365*24*time.Hour + 48*time.Hour)

	_, err := h.registry.VerifyByCode(ctx, res.Protocol.Code, "")
	assert.ErrorIs(t, err, domain.ErrProtocolExpired)

	p, err := h.registry.Get(ctx, res.Protocol.Code)
	require.NoError(t, err)
	assert.Equal(t, domain.ProtocolExpired, p.Status)
	assert.Equal(t, 0, p.VerificationCount)

	// A new signing after expiry issues a fresh protocol.
	again := h.signCanvas(t, doc.ID, service.SignerInput{Name: "João Pereira", CPF: "11144477735"})
	assert.NotEqual(t, res.Protocol.Code, again.Protocol.Code)
}

func TestProtocolRegistry_ExpireStale(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	doc := h.upload(t, testutil.SamplePDF())
	_, err := h.registry.Issue(ctx, doc.ID, doc.ContentHash, service.IssueMetadata{})
	require.NoError(t, err)

	n, err := h.registry.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	h.clock.Advance(6 * 365 * 24 * time.Hour)
	n, err = h.registry.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestProtocolRegistry_Revoke(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	doc := h.upload(t, testutil.SamplePDF())
	res := h.signCanvas(t, doc.ID, maria())
	ctx := context.Background()

	assert.ErrorIs(t, h.registry.Revoke(ctx, res.Protocol.Code, "  ", owner), domain.ErrInvalidInput)
	require.NoError(t, h.registry.Revoke(ctx, res.Protocol.Code, "assinatura contestada", owner))

	_, err := h.registry.VerifyByCode(ctx, res.Protocol.Code, "")
	assert.ErrorIs(t, err, domain.ErrProtocolRevoked)

	assert.ErrorIs(t, h.registry.Revoke(ctx, res.Protocol.Code, "again", owner), domain.ErrProtocolAlreadyRevoked)

	p, err := h.registry.Get(ctx, res.Protocol.Code)
	require.NoError(t, err)
	assert.Equal(t, domain.ProtocolRevoked, p.Status)
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(p.Metadata, &meta))
	assert.Equal(t, "assinatura contestada", meta["revoked_reason"])
	assert.Equal(t, owner.ID, meta["revoked_by"])

	actions := h.actions(t, doc)
	assert.Equal(t, domain.AuditRevoked, actions[len(actions)-1])
}

func TestProtocolRegistry_VerifyByHash(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	doc := h.upload(t, testutil.SamplePDF())
	res := h.signCanvas(t, doc.ID, maria())
	ctx := context.Background()

	report, err := h.registry.VerifyByHash(ctx, res.ArtifactHash)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, service.MethodHash, report.Method)
	assert.Equal(t, res.Protocol.Code, report.Protocol.Code)

	_, err = h.registry.VerifyByHash(ctx, "not-hex")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.registry.VerifyByHash(ctx, doc.ContentHash)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestProtocolRegistry_VerifyByHash_Unprotocolled(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	doc := h.upload(t, testutil.SamplePDF())

	report, err := h.registry.VerifyByHash(context.Background(), doc.ContentHash)
	require.NoError(t, err)
	assert.True(t, report.NoProtocol)
	assert.Nil(t, report.Protocol)
	assert.Equal(t, doc.ID, report.Document.ID)
}

func TestProtocolRegistry_VerifyByHash_LaterVersion(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	doc := h.upload(t, testutil.SamplePDF())
	first := h.signCanvas(t, doc.ID, maria())
	second := h.signCanvas(t, doc.ID, service.SignerInput{Name: "João Pereira", CPF: "11144477735", Email: "joao@example.com", Party: "contratada"})
	require.Equal(t, first.Protocol.Code, second.Protocol.Code)

	report, err := h.registry.VerifyByHash(context.Background(), second.ArtifactHash)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.False(t, report.NoProtocol)
	require.NotNil(t, report.Protocol)
	assert.Equal(t, first.Protocol.Code, report.Protocol.Code)
	assert.Equal(t, first.ArtifactHash, report.Protocol.DocumentHash)
	assert.Equal(t, second.ArtifactHash, report.DocumentHash)
	assert.Equal(t, baseURL+"/verify/"+first.Protocol.Code, report.VerificationURL)
	assert.Equal(t, "document has an active protocol issued for an earlier version", report.Message)
	assert.Equal(t, time.UTC, report.GeneratedAt.Location())

	// The pinned protocol is not counted as verified by a different hash.
	p, err := h.registry.Get(context.Background(), first.Protocol.Code)
	require.NoError(t, err)
	assert.Zero(t, p.VerificationCount)
}
