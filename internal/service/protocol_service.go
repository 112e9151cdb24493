package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docsign/internal/domain"
	"docsign/internal/metrics"
	"docsign/internal/port"
)

const (
	protocolPrefix  = "APR-DOC-"
	codeSuffixLen   = 5
	base36Alphabet  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	MethodProtocol  = "protocol"
	MethodHash      = "hash"
	MethodArtifact  = "artifact"
	MethodDocument  = "document"
	msgNoProtocol   = "no protocol issued"
	msgHashMismatch = "provided hash does not match the protocol"
	msgEarlierPin   = "document has an active protocol issued for an earlier version"
)

// ProtocolCodePattern matches a well-formed protocol code.
var ProtocolCodePattern = regexp.MustCompile(`^APR-DOC-\d{4}-[A-Z0-9]{5}$`)

// CodeGenerator returns a candidate protocol code for the given time.
type CodeGenerator func(now time.Time) (string, error)

// GenerateProtocolCode returns APR-DOC-<year>-<5 uniform base36 characters>.
func GenerateProtocolCode(now time.Time) (string, error) {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s%04d-", protocolPrefix, now.UTC().Year()))
	radix := big.NewInt(int64(len(base36Alphabet)))
	for i := 0; i < codeSuffixLen; i++ {
		n, err := rand.Int(rand.Reader, radix)
		if err != nil {
			return "", fmt.Errorf("generating protocol code: %w", err)
		}
		b.WriteByte(base36Alphabet[n.Int64()])
	}
	return b.String(), nil
}

// ProtocolConfig holds protocol issuance settings.
type ProtocolConfig struct {
	ValidityYears int
	MaxAttempts   int
	BaseURL       string
	RecentAudit   int
	Generate      CodeGenerator
	Clock         func() time.Time
}

// IssueMetadata is stored with a new protocol.
type IssueMetadata struct {
	SignatureType domain.SignatureType `json:"signature_type,omitempty"`
	SignerCount   int                  `json:"signer_count"`
}

// ProtocolRegistry issues, verifies and revokes shareable verification codes.
type ProtocolRegistry interface {
	// Issue returns the document's active protocol, or creates one bound to documentHash.
	Issue(ctx context.Context, documentID uuid.UUID, documentHash string, meta IssueMetadata) (*domain.Protocol, error)
	// VerifyByCode is an audited read: it counts the verification on success.
	VerifyByCode(ctx context.Context, code, providedHash string) (*domain.VerificationReport, error)
	VerifyByHash(ctx context.Context, hash string) (*domain.VerificationReport, error)
	Revoke(ctx context.Context, code, reason string, actor Actor) error
	// Get looks a protocol up without counting a verification.
	Get(ctx context.Context, code string) (*domain.Protocol, error)
	ExpireStale(ctx context.Context) (int, error)
}

type protocolRegistry struct {
	repo      port.ProtocolRepository
	tx        port.Transactor
	docs      port.DocumentStore
	audit     AuditLog
	assembler *reportAssembler
	cfg       ProtocolConfig
	metrics   *metrics.Metrics
	log       *zap.Logger
}

// NewProtocolRegistry creates a new ProtocolRegistry implementation.
func NewProtocolRegistry(
	repo port.ProtocolRepository,
	docs port.DocumentStore,
	signatures port.SignatureRepository,
	auditRepo port.AuditRepository,
	audit AuditLog,
	tx port.Transactor,
	cfg ProtocolConfig,
	m *metrics.Metrics,
	log *zap.Logger,
) ProtocolRegistry {
	if cfg.ValidityYears <= 0 {
		cfg.ValidityYears = 5
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.Generate == nil {
		cfg.Generate = GenerateProtocolCode
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &protocolRegistry{
		repo:  repo,
		tx:    tx,
		docs:  docs,
		audit: audit,
		assembler: &reportAssembler{
			docs:        docs,
			signatures:  signatures,
			audit:       auditRepo,
			baseURL:     cfg.BaseURL,
			recentLimit: cfg.RecentAudit,
		},
		cfg:     cfg,
		metrics: m,
		log:     log.With(zap.String("service", "protocol")),
	}
}

func (s *protocolRegistry) Issue(ctx context.Context, documentID uuid.UUID, documentHash string, meta IssueMetadata) (*domain.Protocol, error) {
	if documentID == uuid.Nil || documentHash == "" {
		return nil, domain.ErrInvalidInput
	}
	now := s.cfg.Clock().UTC().Truncate(time.Microsecond)

	var (
		p      *domain.Protocol
		issued bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		p, issued, err = s.issue(ctx, documentID, documentHash, meta, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if issued {
		s.metrics.ProtocolsIssued.Inc()
		s.log.Info("protocol.Issue: issued",
			zap.String("document_id", documentID.String()),
			zap.String("protocol", p.Code))
	}
	return p, nil
}

// issue creates the protocol and its created entry. It reports false when the
// document already had a usable protocol.
func (s *protocolRegistry) issue(ctx context.Context, documentID uuid.UUID, documentHash string, meta IssueMetadata, now time.Time) (*domain.Protocol, bool, error) {
	existing, err := s.repo.GetActiveByDocument(ctx, documentID)
	switch {
	case err == nil && !existing.IsExpiredAt(now):
		return existing, false, nil
	case err == nil:
		if err := s.expire(ctx, existing.Code); err != nil {
			return nil, false, err
		}
	case !errors.Is(err, domain.ErrProtocolNotFound):
		return nil, false, err
	}

	metadata, err := json.Marshal(meta)
	if err != nil {
		return nil, false, fmt.Errorf("protocol.Issue metadata: %w", err)
	}

	p := &domain.Protocol{
		ID:           uuid.New(),
		DocumentID:   documentID,
		DocumentHash: strings.ToLower(documentHash),
		CreatedAt:    now,
		CreatedUnix:  now.Unix(),
		ExpiresAt:    now.AddDate(s.cfg.ValidityYears, 0, 0),
		Status:       domain.ProtocolActive,
		Metadata:     metadata,
	}

	created := false
	for attempt := 1; attempt <= s.cfg.MaxAttempts && !created; attempt++ {
		code, err := s.cfg.Generate(now)
		if err != nil {
			return nil, false, err
		}
		p.Code = code

		err = s.repo.Create(ctx, p)
		switch {
		case err == nil:
			created = true
		case errors.Is(err, domain.ErrDuplicateProtocolCode):
			s.log.Debug("protocol.Issue: code collision", zap.Int("attempt", attempt))
		case errors.Is(err, domain.ErrActiveProtocolExists):
			// A concurrent issue for the same document won the race.
			winner, err := s.repo.GetActiveByDocument(ctx, documentID)
			return winner, false, err
		default:
			return nil, false, err
		}
	}
	if !created {
		s.log.Error("protocol.Issue: code space exhausted",
			zap.String("document_id", documentID.String()),
			zap.Int("attempts", s.cfg.MaxAttempts))
		return nil, false, domain.ErrCodeGenerationExhausted
	}

	if _, err := s.audit.Log(ctx, documentID, domain.AuditCreated, SystemActor, AuditDetail{
		DocumentHash: p.DocumentHash,
		Data: map[string]interface{}{
			"protocol_code": p.Code,
			"expires_at":    p.ExpiresAt.Format(time.RFC3339),
		},
	}); err != nil {
		return nil, false, err
	}
	return p, true, nil
}

func (s *protocolRegistry) VerifyByCode(ctx context.Context, code, providedHash string) (*domain.VerificationReport, error) {
	report, err := s.verifyByCode(ctx, MethodProtocol, code, providedHash)
	s.metrics.Verifications.WithLabelValues(MethodProtocol, verificationOutcome(report, err)).Inc()
	return report, err
}

func (s *protocolRegistry) verifyByCode(ctx context.Context, method, code, providedHash string) (*domain.VerificationReport, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !ProtocolCodePattern.MatchString(code) {
		return nil, domain.ErrProtocolNotFound
	}

	p, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	now := s.cfg.Clock().UTC().Truncate(time.Microsecond)
	if err := s.checkUsable(ctx, p, now); err != nil {
		return nil, err
	}

	var matches *bool
	if providedHash != "" {
		m := subtle.ConstantTimeCompare([]byte(strings.ToLower(strings.TrimSpace(providedHash))), []byte(p.DocumentHash)) == 1
		matches = &m
	}

	// The count and the verified entry are kept together: a revoke landing
	// between them sees neither or both.
	var updated *domain.Protocol
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.repo.RecordVerification(ctx, p.Code, now)
		if err != nil {
			return err
		}
		_, err = s.audit.Log(ctx, p.DocumentID, domain.AuditVerified, publicActor(ctx), AuditDetail{
			DocumentHash: p.DocumentHash,
			Data: map[string]interface{}{
				"method":        method,
				"protocol_code": p.Code,
				"hash_provided": providedHash != "",
				"hash_matches":  matches == nil || *matches,
			},
		})
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrProtocolNotFound) {
			// Revoked or expired between the read and the update.
			if current, gerr := s.repo.GetByCode(ctx, p.Code); gerr == nil {
				if cerr := s.checkUsable(ctx, current, now); cerr != nil {
					return nil, cerr
				}
			}
		}
		return nil, err
	}

	report, err := s.assembler.assemble(ctx, method, updated.DocumentID, updated, now)
	if err != nil {
		return nil, err
	}
	report.HashMatches = matches
	report.Valid = matches == nil || *matches
	if !report.Valid {
		report.Message = msgHashMismatch
	}
	return report, nil
}

// checkUsable rejects revoked and expired protocols. An active protocol past
// its expiry is transitioned to expired on first sight.
func (s *protocolRegistry) checkUsable(ctx context.Context, p *domain.Protocol, now time.Time) error {
	switch p.Status {
	case domain.ProtocolRevoked:
		return domain.ErrProtocolRevoked
	case domain.ProtocolExpired:
		return domain.ErrProtocolExpired
	}
	if p.IsExpiredAt(now) {
		if err := s.expire(ctx, p.Code); err != nil {
			return err
		}
		return domain.ErrProtocolExpired
	}
	return nil
}

func (s *protocolRegistry) expire(ctx context.Context, code string) error {
	err := s.repo.TransitionStatus(ctx, code, domain.ProtocolActive, domain.ProtocolExpired, nil)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if err == nil {
		s.metrics.ProtocolsExpired.Inc()
	}
	return nil
}

func (s *protocolRegistry) VerifyByHash(ctx context.Context, hash string) (*domain.VerificationReport, error) {
	report, err := s.verifyByHash(ctx, hash)
	s.metrics.Verifications.WithLabelValues(MethodHash, verificationOutcome(report, err)).Inc()
	return report, err
}

func (s *protocolRegistry) verifyByHash(ctx context.Context, hash string) (*domain.VerificationReport, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if !isSHA256Hex(hash) {
		return nil, domain.ErrInvalidInput
	}

	p, err := s.repo.GetActiveByHash(ctx, hash)
	if err == nil {
		return s.verifyByCode(ctx, MethodHash, p.Code, hash)
	}
	if !errors.Is(err, domain.ErrProtocolNotFound) {
		return nil, err
	}

	doc, err := s.docs.FindByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	// The protocol stays pinned to the version it was issued for, so a
	// document signed again after issuance still has one.
	pinned, err := s.repo.GetActiveByDocument(ctx, doc.ID)
	switch {
	case errors.Is(err, domain.ErrProtocolNotFound):
		pinned = nil
	case err != nil:
		return nil, err
	}

	detail := map[string]interface{}{"method": MethodHash, "protocol_code": nil}
	if pinned != nil {
		detail["active_protocol_code"] = pinned.Code
	}
	if _, err := s.audit.Log(ctx, doc.ID, domain.AuditVerified, publicActor(ctx), AuditDetail{
		DocumentHash: hash,
		Data:         detail,
	}); err != nil {
		return nil, err
	}

	now := s.cfg.Clock().UTC()
	report, err := s.assembler.assemble(ctx, MethodHash, doc.ID, nil, now)
	if err != nil {
		return nil, err
	}
	matches := true
	report.Valid = true
	report.HashMatches = &matches
	report.DocumentHash = hash
	if pinned != nil {
		report.Protocol = pinned
		report.VerificationURL = s.assembler.verificationURL(pinned.Code)
		report.Message = msgEarlierPin
		return report, nil
	}
	report.NoProtocol = true
	report.Message = msgNoProtocol
	return report, nil
}

func (s *protocolRegistry) Revoke(ctx context.Context, code, reason string, actor Actor) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.ErrInvalidInput
	}

	p, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if p.Status == domain.ProtocolRevoked {
		return domain.ErrProtocolAlreadyRevoked
	}

	now := s.cfg.Clock().UTC()
	metadata := map[string]interface{}{}
	if len(p.Metadata) > 0 {
		_ = json.Unmarshal(p.Metadata, &metadata)
	}
	metadata["revoked_reason"] = reason
	metadata["revoked_at"] = now.Format(time.RFC3339)
	metadata["revoked_by"] = actor.ID
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("protocol.Revoke metadata: %w", err)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.TransitionStatus(ctx, code, p.Status, domain.ProtocolRevoked, raw); err != nil {
			return err
		}
		_, err := s.audit.Log(ctx, p.DocumentID, domain.AuditRevoked, actor, AuditDetail{
			DocumentHash: p.DocumentHash,
			Data: map[string]interface{}{
				"protocol_code": code,
				"reason":        reason,
			},
		})
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			if current, gerr := s.repo.GetByCode(ctx, code); gerr == nil && current.Status == domain.ProtocolRevoked {
				return domain.ErrProtocolAlreadyRevoked
			}
		}
		return err
	}

	s.metrics.ProtocolsRevoked.Inc()
	s.log.Info("protocol.Revoke: revoked", zap.String("protocol", code))
	return nil
}

func (s *protocolRegistry) Get(ctx context.Context, code string) (*domain.Protocol, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !ProtocolCodePattern.MatchString(code) {
		return nil, domain.ErrProtocolNotFound
	}
	return s.repo.GetByCode(ctx, code)
}

func (s *protocolRegistry) ExpireStale(ctx context.Context) (int, error) {
	n, err := s.repo.ExpireStale(ctx, s.cfg.Clock().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.metrics.ProtocolsExpired.Add(float64(n))
		s.log.Info("protocol.ExpireStale: expired protocols", zap.Int("count", n))
	}
	return n, nil
}

func verificationOutcome(report *domain.VerificationReport, err error) string {
	switch {
	case errors.Is(err, domain.ErrProtocolRevoked):
		return "revoked"
	case errors.Is(err, domain.ErrProtocolExpired):
		return "expired"
	case errors.Is(err, domain.ErrProtocolNotFound), errors.Is(err, domain.ErrDocumentNotFound):
		return "not_found"
	case err != nil:
		return "error"
	case report != nil && !report.Valid:
		return "invalid"
	default:
		return "valid"
	}
}

func isSHA256Hex(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
