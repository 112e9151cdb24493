package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"docsign/internal/domain"
	"docsign/internal/port"
)

type signatureRepo struct {
	db *sqlx.DB
}

// NewSignatureRepo creates a new PostgreSQL-backed SignatureRepository.
func NewSignatureRepo(db *sqlx.DB) port.SignatureRepository {
	return &signatureRepo{db: db}
}

func (r *signatureRepo) Create(ctx context.Context, rec *domain.SignatureRecord) error {
	rec.CreatedAt = time.Now().UTC()
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO signatures (
			id, document_id, signer_party, signer_name, signer_cpf, signer_email,
			signature_type, certificate_serial, signature_hash, document_hash,
			status, signed_at, ip_address, evidence, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		rec.ID, rec.DocumentID, rec.SignerParty, rec.SignerName, rec.SignerCPF, rec.SignerEmail,
		rec.SignatureType, rec.CertSerial, rec.SignatureHash, rec.DocumentHash,
		rec.Status, rec.SignedAt, rec.IPAddress, jsonText(rec.Evidence), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("signatureRepo.Create: %w", err)
	}
	return nil
}

func (r *signatureRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.SignatureRecord, error) {
	var rec domain.SignatureRecord
	err := conn(ctx, r.db).GetContext(ctx, &rec, "SELECT * FROM signatures WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("signatureRepo.GetByID: %w", err)
	}
	return &rec, nil
}

func (r *signatureRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]domain.SignatureRecord, error) {
	var recs []domain.SignatureRecord
	err := conn(ctx, r.db).SelectContext(ctx, &recs,
		"SELECT * FROM signatures WHERE document_id = $1 ORDER BY created_at ASC", documentID)
	if err != nil {
		return nil, fmt.Errorf("signatureRepo.ListByDocument: %w", err)
	}
	return recs, nil
}

// Complete only touches pending rows so a signed record is never rewritten.
func (r *signatureRepo) Complete(ctx context.Context, rec *domain.SignatureRecord) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE signatures SET
			signer_name = $2, signer_cpf = $3, signature_type = $4, certificate_serial = $5,
			signature_hash = $6, document_hash = $7, status = 'signed', signed_at = $8,
			ip_address = $9, evidence = $10
		 WHERE id = $1 AND status = 'pending'`,
		rec.ID, rec.SignerName, rec.SignerCPF, rec.SignatureType, rec.CertSerial,
		rec.SignatureHash, rec.DocumentHash, rec.SignedAt,
		rec.IPAddress, jsonText(rec.Evidence))
	if err != nil {
		return fmt.Errorf("signatureRepo.Complete: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	rec.Status = domain.SignatureStatusSigned
	return nil
}

func (r *signatureRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SignatureStatus) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		"UPDATE signatures SET status = $2 WHERE id = $1 AND status = 'pending'", id, status)
	if err != nil {
		return fmt.Errorf("signatureRepo.UpdateStatus: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
