package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docsign/internal/clientinfo"
	"docsign/internal/domain"
	"docsign/internal/metrics"
	"docsign/internal/port"
	"docsign/internal/signing"
)

// SignCertificateInput is the DTO for a certificate-based signature.
// Password is wiped before SignWithCertificate returns.
type SignCertificateInput struct {
	DocumentID  uuid.UUID
	SignatureID *uuid.UUID // completes a pending request when set
	Bundle      []byte
	Password    []byte
	Signer      SignerInput
	ActorID     string
}

// SignCanvasInput is the DTO for an electronic (drawn) signature.
type SignCanvasInput struct {
	DocumentID  uuid.UUID
	SignatureID *uuid.UUID
	ImageBase64 string
	Signer      SignerInput
	ActorID     string
}

// RequestSignatureInput is the DTO for inviting a party to sign.
type RequestSignatureInput struct {
	DocumentID    uuid.UUID
	Signer        SignerInput
	SignatureType domain.SignatureType
	Actor         Actor
}

// SignResult is the outcome of a successful signing.
type SignResult struct {
	Signature       domain.SignatureView   `json:"signature"`
	Protocol        *domain.Protocol       `json:"protocol"`
	ArtifactHash    string                 `json:"artifact_hash"`
	SignatureHash   string                 `json:"signature_hash"`
	DocumentHash    string                 `json:"document_hash"`
	Scheme          domain.SignatureScheme `json:"scheme"`
	Degraded        bool                   `json:"degraded"`
	ArtifactKey     string                 `json:"artifact_key"`
	VerificationURL string                 `json:"verification_url"`
}

// SigningService orchestrates signing a stored document end to end.
type SigningService interface {
	SignWithCertificate(ctx context.Context, input *SignCertificateInput) (*SignResult, error)
	SignWithCanvas(ctx context.Context, input *SignCanvasInput) (*SignResult, error)
	RequestSignature(ctx context.Context, input *RequestSignatureInput) (*domain.SignatureRecord, error)
	Decline(ctx context.Context, signatureID uuid.UUID, reason string, actor Actor) error
	Finalize(ctx context.Context, documentID uuid.UUID, actor Actor) (*domain.Document, error)
}

// SigningServiceConfig holds orchestration settings.
type SigningServiceConfig struct {
	BaseURL  string
	LockWait time.Duration
}

type signingService struct {
	engine     *signing.Engine
	pool       *SigningPool
	docs       port.DocumentStore
	signatures port.SignatureRepository
	storage    port.ObjectStorage
	locker     port.DocumentLocker
	notifier   port.Notifier
	tx         port.Transactor
	audit      AuditLog
	protocols  ProtocolRegistry
	cfg        SigningServiceConfig
	metrics    *metrics.Metrics
	log        *zap.Logger
}

// NewSigningService creates a new SigningService implementation.
func NewSigningService(
	engine *signing.Engine,
	pool *SigningPool,
	docs port.DocumentStore,
	signatures port.SignatureRepository,
	storage port.ObjectStorage,
	locker port.DocumentLocker,
	notifier port.Notifier,
	tx port.Transactor,
	audit AuditLog,
	protocols ProtocolRegistry,
	cfg SigningServiceConfig,
	m *metrics.Metrics,
	log *zap.Logger,
) SigningService {
	if cfg.LockWait <= 0 {
		cfg.LockWait = 10 * time.Second
	}
	return &signingService{
		engine:     engine,
		pool:       pool,
		docs:       docs,
		signatures: signatures,
		storage:    storage,
		locker:     locker,
		notifier:   notifier,
		tx:         tx,
		audit:      audit,
		protocols:  protocols,
		cfg:        cfg,
		metrics:    m,
		log:        log.With(zap.String("service", "signing")),
	}
}

func (s *signingService) SignWithCertificate(ctx context.Context, input *SignCertificateInput) (*SignResult, error) {
	wipe := func() {
		clear(input.Password)
		clear(input.Bundle)
	}
	if err := input.Signer.validate(false); err != nil {
		wipe()
		return nil, err
	}

	res, err := s.sign(ctx, input.DocumentID, input.SignatureID, input.ActorID, input.Signer, domain.SignatureTypeDigital,
		func(pdf []byte, client clientinfo.Info) (func() (*signing.SignedArtifact, error), func()) {
			// The job owns its own copies so a timed out caller can wipe the
			// originals while a worker is still reading.
			req := &signing.CertificateRequest{
				PDF:      pdf,
				Bundle:   bytes.Clone(input.Bundle),
				Password: bytes.Clone(input.Password),
				Signer:   signerInfo(input.Signer, client),
			}
			return func() (*signing.SignedArtifact, error) {
				defer clear(req.Bundle)
				return s.engine.SignWithCertificate(req)
			}, func() {
				clear(req.Bundle)
				clear(req.Password)
			}
		})
	wipe()
	return res, err
}

func (s *signingService) SignWithCanvas(ctx context.Context, input *SignCanvasInput) (*SignResult, error) {
	if err := input.Signer.validate(true); err != nil {
		return nil, err
	}

	return s.sign(ctx, input.DocumentID, input.SignatureID, input.ActorID, input.Signer, domain.SignatureTypeElectronic,
		func(pdf []byte, client clientinfo.Info) (func() (*signing.SignedArtifact, error), func()) {
			req := &signing.CanvasRequest{
				PDF:         pdf,
				ImageBase64: input.ImageBase64,
				Signer:      signerInfo(input.Signer, client),
			}
			return func() (*signing.SignedArtifact, error) {
				return s.engine.SignWithCanvas(req)
			}, nil
		})
}

func signerInfo(in SignerInput, client clientinfo.Info) signing.SignerInfo {
	return signing.SignerInfo{
		Name:      in.Name,
		CPF:       in.CPF,
		Email:     in.Email,
		IP:        client.IP,
		UserAgent: client.UserAgent,
	}
}

type jobBuilder func(pdf []byte, client clientinfo.Info) (run func() (*signing.SignedArtifact, error), cleanup func())

// sign holds the document lock across reading the current version, signing
// it, storing the result and logging it, so concurrent signers never work
// from the same snapshot.
func (s *signingService) sign(
	ctx context.Context,
	documentID uuid.UUID,
	signatureID *uuid.UUID,
	actorID string,
	signer SignerInput,
	sigType domain.SignatureType,
	build jobBuilder,
) (*SignResult, error) {
	start := time.Now()
	result, err := s.signLocked(ctx, documentID, signatureID, actorID, signer, sigType, build)

	s.metrics.Signatures.WithLabelValues(string(sigType), signOutcome(err)).Inc()
	s.metrics.SigningDuration.WithLabelValues(string(sigType)).Observe(time.Since(start).Seconds())
	if err != nil {
		var se *domain.SigningError
		if errors.As(err, &se) {
			s.log.Warn("signing.Sign: failed",
				zap.String("document_id", documentID.String()),
				zap.String("stage", string(se.Stage)),
				zap.Error(se.Err))
		} else {
			s.log.Warn("signing.Sign: failed", zap.String("document_id", documentID.String()), zap.Error(err))
		}
	}
	return result, err
}

func (s *signingService) signLocked(
	ctx context.Context,
	documentID uuid.UUID,
	signatureID *uuid.UUID,
	actorID string,
	signer SignerInput,
	sigType domain.SignatureType,
	build jobBuilder,
) (*SignResult, error) {
	unlock, err := s.lock(ctx, documentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == domain.DocumentStatusFinalized {
		return nil, domain.ErrDocumentFinal
	}

	var pending *domain.SignatureRecord
	if signatureID != nil {
		pending, err = s.signatures.GetByID(ctx, *signatureID)
		if err != nil {
			return nil, err
		}
		if pending.DocumentID != documentID || pending.Status != domain.SignatureStatusPending {
			return nil, domain.ErrNotFound
		}
	}

	pdf, err := s.storage.Download(ctx, doc.ContentRef)
	if err != nil {
		return nil, fmt.Errorf("signing.Sign download: %w", err)
	}
	if doc.ContentHash != "" && signing.SHA256Hex(pdf) != doc.ContentHash {
		s.log.Error("signing.Sign: stored content does not match the recorded hash",
			zap.String("document_id", documentID.String()))
		return nil, domain.ErrHashMismatch
	}

	client := clientinfo.FromContext(ctx)
	run, cleanup := build(pdf, client)
	artifact, err := s.pool.Do(ctx, run, cleanup)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/signed-%d-%s.pdf", documentID, artifact.SignedAt.UnixNano(), artifact.Hash[:12])
	if _, err := s.storage.Upload(ctx, port.UploadInput{
		Key:         key,
		Body:        bytes.NewReader(artifact.Bytes),
		ContentType: "application/pdf",
		Size:        int64(len(artifact.Bytes)),
		Metadata: map[string]string{
			"sha256": artifact.Hash,
			"scheme": string(artifact.Scheme),
		},
	}); err != nil {
		return nil, fmt.Errorf("signing.Sign upload: %w", err)
	}

	evidence, err := json.Marshal(artifact.Evidence)
	if err != nil {
		return nil, fmt.Errorf("signing.Sign evidence: %w", err)
	}

	name := artifact.SignerName
	if name == "" {
		name = signer.Name
	}
	signedAt := artifact.SignedAt
	rec := &domain.SignatureRecord{
		ID:            uuid.New(),
		DocumentID:    documentID,
		SignerParty:   signer.Party,
		SignerName:    name,
		SignerCPF:     artifact.SignerCPF,
		SignerEmail:   signer.Email,
		SignatureType: artifact.Type,
		CertSerial:    artifact.CertSerial,
		SignatureHash: artifact.SignatureHash,
		DocumentHash:  artifact.DocumentHash,
		Status:        domain.SignatureStatusSigned,
		SignedAt:      &signedAt,
		IPAddress:     client.IP,
		Evidence:      evidence,
	}
	if pending != nil {
		rec.ID = pending.ID
		rec.SignerParty = pending.SignerParty
		if rec.SignerEmail == "" {
			rec.SignerEmail = pending.SignerEmail
		}
	}

	// A failed unit leaves the uploaded artifact in storage, unreferenced.
	var protocol *domain.Protocol
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		protocol, err = s.record(ctx, doc, pending != nil, rec, artifact, key, actorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	verifyURL := s.cfg.BaseURL + "/verify/" + protocol.Code
	if rec.SignerEmail != "" {
		if err := s.notifier.SendSignatureReceipt(ctx, port.SignatureReceipt{
			ToEmail:         rec.SignerEmail,
			ToName:          name,
			DocumentTitle:   doc.Title,
			ProtocolCode:    protocol.Code,
			VerificationURL: verifyURL,
			ArtifactHash:    artifact.Hash,
			SignedAt:        signedAt,
		}); err != nil {
			s.log.Warn("signing.Sign: receipt not sent",
				zap.String("document_id", documentID.String()),
				zap.Error(err))
		}
	}

	s.log.Info("signing.Sign: signed",
		zap.String("document_id", documentID.String()),
		zap.String("type", string(artifact.Type)),
		zap.String("scheme", string(artifact.Scheme)),
		zap.String("signer_cpf", domain.MaskCPF(artifact.SignerCPF)),
		zap.String("protocol", protocol.Code))

	return &SignResult{
		Signature:       domain.NewSignatureView(rec),
		Protocol:        protocol,
		ArtifactHash:    artifact.Hash,
		SignatureHash:   artifact.SignatureHash,
		DocumentHash:    artifact.DocumentHash,
		Scheme:          artifact.Scheme,
		Degraded:        artifact.Scheme.Degraded(),
		ArtifactKey:     key,
		VerificationURL: verifyURL,
	}, nil
}

// record stores the signature, moves the document to the signed version, logs
// the signing and issues the protocol as one unit of work.
func (s *signingService) record(
	ctx context.Context,
	doc *domain.Document,
	completes bool,
	rec *domain.SignatureRecord,
	artifact *signing.SignedArtifact,
	key, actorID string,
) (*domain.Protocol, error) {
	var err error
	if completes {
		err = s.signatures.Complete(ctx, rec)
	} else {
		err = s.signatures.Create(ctx, rec)
	}
	if err != nil {
		return nil, err
	}

	if err := s.docs.UpdateHash(ctx, doc.ID, artifact.Hash, key); err != nil {
		return nil, err
	}
	if doc.Status == domain.DocumentStatusDraft {
		if err := s.docs.UpdateStatus(ctx, doc.ID, domain.DocumentStatusPending, nil); err != nil {
			return nil, err
		}
	}

	actor := Actor{ID: actorID, Type: domain.ActorSigner, Name: rec.SignerName, CPF: artifact.SignerCPF, Email: rec.SignerEmail}
	if actor.ID == "" {
		actor.ID = rec.ID.String()
	}
	detail := map[string]interface{}{
		"signature_id":  rec.ID.String(),
		"type":          string(artifact.Type),
		"scheme":        string(artifact.Scheme),
		"degraded":      artifact.Scheme.Degraded(),
		"previous_hash": artifact.DocumentHash,
		"artifact_key":  key,
	}
	if artifact.CertSerial != "" {
		detail["certificate_serial"] = artifact.CertSerial
	}
	if _, err := s.audit.Log(ctx, doc.ID, domain.AuditSigned, actor, AuditDetail{
		DocumentHash:  artifact.Hash,
		SignatureHash: artifact.SignatureHash,
		Data:          detail,
	}); err != nil {
		return nil, err
	}

	recs, err := s.signatures.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	return s.protocols.Issue(ctx, doc.ID, artifact.Hash, IssueMetadata{
		SignatureType: artifact.Type,
		SignerCount:   signedCount(domain.SignatureViews(recs)),
	})
}

func (s *signingService) lock(ctx context.Context, documentID uuid.UUID) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockWait)
	defer cancel()
	unlock, err := s.locker.Lock(lockCtx, documentID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.ErrLockNotAcquired
	}
	return unlock, nil
}

func (s *signingService) RequestSignature(ctx context.Context, input *RequestSignatureInput) (*domain.SignatureRecord, error) {
	if !domain.ValidSignatureTypes[input.SignatureType] {
		return nil, domain.ErrInvalidInput
	}
	if err := input.Signer.validate(false); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Signer.Name) == "" && input.Signer.Email == "" {
		return nil, domain.ErrInvalidName
	}

	doc, err := s.docs.Get(ctx, input.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == domain.DocumentStatusFinalized {
		return nil, domain.ErrDocumentFinal
	}

	rec := &domain.SignatureRecord{
		ID:            uuid.New(),
		DocumentID:    doc.ID,
		SignerParty:   input.Signer.Party,
		SignerName:    input.Signer.Name,
		SignerCPF:     input.Signer.CPF,
		SignerEmail:   input.Signer.Email,
		SignatureType: input.SignatureType,
		Status:        domain.SignatureStatusPending,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.signatures.Create(ctx, rec); err != nil {
			return err
		}
		if doc.Status == domain.DocumentStatusDraft {
			if err := s.docs.UpdateStatus(ctx, doc.ID, domain.DocumentStatusPending, nil); err != nil {
				return err
			}
		}
		_, err := s.audit.Log(ctx, doc.ID, domain.AuditSignatureRequested, input.Actor, AuditDetail{
			DocumentHash: doc.ContentHash,
			Data: map[string]interface{}{
				"signature_id":   rec.ID.String(),
				"signer_name":    rec.SignerName,
				"signer_email":   rec.SignerEmail,
				"signer_party":   rec.SignerParty,
				"signature_type": string(rec.SignatureType),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *signingService) Decline(ctx context.Context, signatureID uuid.UUID, reason string, actor Actor) error {
	rec, err := s.signatures.GetByID(ctx, signatureID)
	if err != nil {
		return err
	}
	if rec.Status != domain.SignatureStatusPending {
		return domain.ErrNotFound
	}
	if actor.ID == "" {
		actor = Actor{ID: rec.ID.String(), Type: domain.ActorSigner, Name: rec.SignerName, CPF: rec.SignerCPF, Email: rec.SignerEmail}
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.signatures.UpdateStatus(ctx, signatureID, domain.SignatureStatusDeclined); err != nil {
			return err
		}
		_, err := s.audit.Log(ctx, rec.DocumentID, domain.AuditRejected, actor, AuditDetail{
			Data: map[string]interface{}{
				"signature_id": rec.ID.String(),
				"reason":       strings.TrimSpace(reason),
			},
		})
		return err
	})
}

func (s *signingService) Finalize(ctx context.Context, documentID uuid.UUID, actor Actor) (*domain.Document, error) {
	unlock, err := s.lock(ctx, documentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == domain.DocumentStatusFinalized {
		return nil, domain.ErrDocumentFinal
	}

	recs, err := s.signatures.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	views := domain.SignatureViews(recs)
	if signedCount(views) == 0 {
		return nil, domain.ErrNotSignable
	}

	now := time.Now().UTC()
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.docs.UpdateStatus(ctx, documentID, domain.DocumentStatusFinalized, &now); err != nil {
			return err
		}
		// Parties who never signed can no longer do so.
		for _, rec := range recs {
			if rec.Status == domain.SignatureStatusPending {
				if err := s.signatures.UpdateStatus(ctx, rec.ID, domain.SignatureStatusExpired); err != nil && !errors.Is(err, domain.ErrNotFound) {
					return err
				}
			}
		}
		_, err := s.audit.Log(ctx, documentID, domain.AuditFinalized, actor, AuditDetail{
			DocumentHash: doc.ContentHash,
			Data:         map[string]interface{}{"signatures": signedCount(views)},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	doc.Status = domain.DocumentStatusFinalized
	doc.FinalizedAt = &now
	return doc, nil
}

func signOutcome(err error) string {
	switch {
	case err == nil:
		return "signed"
	case errors.Is(err, domain.ErrSigningTimeout), errors.Is(err, domain.ErrSigningQueueFull), errors.Is(err, domain.ErrLockNotAcquired):
		return "busy"
	case errors.Is(err, domain.ErrWrongPassword), errors.Is(err, domain.ErrMalformedBundle),
		errors.Is(err, domain.ErrInvalidCPF), errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidImage), errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrCPFMismatch), errors.Is(err, domain.ErrCertificateHasNoCPF),
		domain.IsCertificateInvalid(err):
		return "rejected"
	default:
		return "error"
	}
}
