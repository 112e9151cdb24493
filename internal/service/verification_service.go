package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docsign/internal/domain"
	"docsign/internal/metrics"
	"docsign/internal/port"
	"docsign/internal/signing"
)

const (
	msgUnsigned        = "document has no completed signatures"
	msgProtocolRevoked = "protocol has been revoked"
	msgProtocolExpired = "protocol has expired"
	msgArtifactInvalid = "artifact failed verification"
	msgUnknownArtifact = "artifact is not registered with this service"
)

// ArtifactReport is the result of verifying uploaded artifact bytes. Report
// is nil when the artifact's hash is unknown to this service; the embedded
// signatures are still checked offline.
type ArtifactReport struct {
	Valid        bool                       `json:"valid"`
	Message      string                     `json:"message,omitempty"`
	Verification *signing.Verification      `json:"verification"`
	Report       *domain.VerificationReport `json:"report,omitempty"`
}

// VerificationService composes protocols, signature records and the audit
// trail into verification reports.
type VerificationService interface {
	BuildReport(ctx context.Context, documentID uuid.UUID) (*domain.VerificationReport, error)
	VerifyArtifact(ctx context.Context, artifact []byte) (*ArtifactReport, error)
	// RenderCertificate verifies code and renders the result as a printable certificate.
	RenderCertificate(ctx context.Context, code string) (*port.RenderedDocument, error)
}

type verificationService struct {
	engine    *signing.Engine
	protocols ProtocolRegistry
	repo      port.ProtocolRepository
	docs      port.DocumentStore
	audit     AuditLog
	assembler *reportAssembler
	renderer  port.CertificateRenderer
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time
}

// VerificationConfig holds report settings.
type VerificationConfig struct {
	BaseURL     string
	RecentAudit int
}

// NewVerificationService creates a new VerificationService implementation.
func NewVerificationService(
	engine *signing.Engine,
	protocols ProtocolRegistry,
	repo port.ProtocolRepository,
	docs port.DocumentStore,
	signatures port.SignatureRepository,
	auditRepo port.AuditRepository,
	audit AuditLog,
	renderer port.CertificateRenderer,
	cfg VerificationConfig,
	m *metrics.Metrics,
	log *zap.Logger,
) VerificationService {
	return &verificationService{
		engine:    engine,
		protocols: protocols,
		repo:      repo,
		docs:      docs,
		audit:     audit,
		assembler: &reportAssembler{
			docs:        docs,
			signatures:  signatures,
			audit:       auditRepo,
			baseURL:     cfg.BaseURL,
			recentLimit: cfg.RecentAudit,
		},
		renderer: renderer,
		metrics:  m,
		log:      log.With(zap.String("service", "verification")),
		now:      time.Now,
	}
}

// BuildReport is an audited read of the document's signing state. It never
// counts against a protocol's verification_count.
func (s *verificationService) BuildReport(ctx context.Context, documentID uuid.UUID) (*domain.VerificationReport, error) {
	report, err := s.buildReport(ctx, documentID)
	s.metrics.Verifications.WithLabelValues(MethodDocument, verificationOutcome(report, err)).Inc()
	return report, err
}

func (s *verificationService) buildReport(ctx context.Context, documentID uuid.UUID) (*domain.VerificationReport, error) {
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p, err := s.latestProtocol(ctx, documentID)
	if err != nil {
		return nil, err
	}

	detail := map[string]interface{}{"method": MethodDocument, "protocol_code": nil}
	if p != nil {
		detail["protocol_code"] = p.Code
	}
	if _, err := s.audit.Log(ctx, documentID, domain.AuditVerified, publicActor(ctx), AuditDetail{
		DocumentHash: doc.ContentHash,
		Data:         detail,
	}); err != nil {
		return nil, err
	}

	report, err := s.assembler.assemble(ctx, MethodDocument, documentID, p, now)
	if err != nil {
		return nil, err
	}
	report.DocumentHash = doc.ContentHash
	report.NoProtocol = p == nil

	switch {
	case signedCount(report.Signatures) == 0:
		report.Message = msgUnsigned
	case p != nil && p.Status == domain.ProtocolRevoked:
		report.Message = msgProtocolRevoked
	case p != nil && (p.Status == domain.ProtocolExpired || p.IsExpiredAt(now)):
		report.Message = msgProtocolExpired
	default:
		report.Valid = true
		if p == nil {
			report.Message = msgNoProtocol
		}
	}
	return report, nil
}

// latestProtocol returns the document's active protocol, or else its most
// recent one, or nil when none was ever issued.
func (s *verificationService) latestProtocol(ctx context.Context, documentID uuid.UUID) (*domain.Protocol, error) {
	p, err := s.repo.GetActiveByDocument(ctx, documentID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, domain.ErrProtocolNotFound) {
		return nil, err
	}
	all, err := s.repo.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	var latest *domain.Protocol
	for i := range all {
		if latest == nil || all[i].CreatedAt.After(latest.CreatedAt) {
			latest = &all[i]
		}
	}
	return latest, nil
}

func (s *verificationService) VerifyArtifact(ctx context.Context, artifact []byte) (*ArtifactReport, error) {
	result, err := s.verifyArtifact(ctx, artifact)
	outcome := "valid"
	switch {
	case errors.Is(err, domain.ErrNoSignatureFound):
		outcome = "unsigned"
	case err != nil:
		outcome = "error"
	case !result.Valid:
		outcome = "invalid"
	}
	s.metrics.Verifications.WithLabelValues(MethodArtifact, outcome).Inc()
	return result, err
}

func (s *verificationService) verifyArtifact(ctx context.Context, artifact []byte) (*ArtifactReport, error) {
	if len(artifact) == 0 {
		return nil, domain.ErrInvalidInput
	}
	v, err := s.engine.Verify(artifact)
	if err != nil {
		return nil, err
	}
	result := &ArtifactReport{Valid: v.Valid, Verification: v}
	if !v.Valid {
		// A tampered artifact is reported as-is and never touches stored state.
		result.Message = msgArtifactInvalid
		return result, nil
	}

	documentID, p, err := s.lookupArtifact(ctx, v.Hash)
	if err != nil {
		return nil, err
	}
	if documentID == uuid.Nil {
		result.Message = msgUnknownArtifact
		return result, nil
	}

	detail := map[string]interface{}{
		"method":     MethodArtifact,
		"scheme":     string(v.Scheme),
		"signatures": len(v.Signatures),
	}
	if p != nil {
		detail["protocol_code"] = p.Code
	}
	if _, err := s.audit.Log(ctx, documentID, domain.AuditVerified, publicActor(ctx), AuditDetail{
		DocumentHash: v.Hash,
		Data:         detail,
	}); err != nil {
		return nil, err
	}

	report, err := s.assembler.assemble(ctx, MethodArtifact, documentID, p, s.now())
	if err != nil {
		return nil, err
	}
	matches := true
	report.Valid = true
	report.DocumentHash = v.Hash
	report.HashMatches = &matches
	report.NoProtocol = p == nil
	if p == nil {
		report.Message = msgNoProtocol
	}
	result.Report = report
	return result, nil
}

// lookupArtifact finds the document an artifact hash belongs to, either as
// the document's current version or through the protocol issued for it.
func (s *verificationService) lookupArtifact(ctx context.Context, hash string) (uuid.UUID, *domain.Protocol, error) {
	p, err := s.repo.GetActiveByHash(ctx, hash)
	switch {
	case err == nil:
		return p.DocumentID, p, nil
	case !errors.Is(err, domain.ErrProtocolNotFound):
		return uuid.Nil, nil, err
	}

	doc, err := s.docs.FindByHash(ctx, hash)
	switch {
	case err == nil:
		p, err := s.repo.GetActiveByDocument(ctx, doc.ID)
		if err != nil && !errors.Is(err, domain.ErrProtocolNotFound) {
			return uuid.Nil, nil, err
		}
		return doc.ID, p, nil
	case errors.Is(err, domain.ErrDocumentNotFound):
		return uuid.Nil, nil, nil
	default:
		return uuid.Nil, nil, err
	}
}

func (s *verificationService) RenderCertificate(ctx context.Context, code string) (*port.RenderedDocument, error) {
	report, err := s.protocols.VerifyByCode(ctx, code, "")
	if err != nil {
		return nil, err
	}
	out, err := s.renderer.RenderCertificate(ctx, report)
	if err != nil {
		s.log.Error("verification.RenderCertificate: render failed", zap.String("protocol", code), zap.Error(err))
		return nil, err
	}
	return out, nil
}
