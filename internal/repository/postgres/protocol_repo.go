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

const activeProtocolIndex = "uq_protocols_active_document"

type protocolRepo struct {
	db *sqlx.DB
}

// NewProtocolRepo creates a new PostgreSQL-backed ProtocolRepository.
func NewProtocolRepo(db *sqlx.DB) port.ProtocolRepository {
	return &protocolRepo{db: db}
}

func (r *protocolRepo) Create(ctx context.Context, p *domain.Protocol) error {
	err := savepoint(ctx, "protocol_create", func() error {
		_, err := conn(ctx, r.db).ExecContext(ctx,
			`INSERT INTO protocols (
				id, protocol_code, document_id, document_hash, created_at, created_unix,
				expires_at, verification_count, last_verified_at, status, metadata_json
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			p.ID, p.Code, p.DocumentID, p.DocumentHash, p.CreatedAt, p.CreatedUnix,
			p.ExpiresAt, p.VerificationCount, p.LastVerifiedAt, p.Status, jsonText(p.Metadata))
		return err
	})
	if err != nil {
		if constraint, ok := uniqueViolationOn(err); ok {
			if constraint == activeProtocolIndex {
				return domain.ErrActiveProtocolExists
			}
			return domain.ErrDuplicateProtocolCode
		}
		return fmt.Errorf("protocolRepo.Create: %w", err)
	}
	return nil
}

func (r *protocolRepo) GetByCode(ctx context.Context, code string) (*domain.Protocol, error) {
	return r.getOne(ctx, "protocolRepo.GetByCode",
		"SELECT * FROM protocols WHERE protocol_code = $1", code)
}

func (r *protocolRepo) GetActiveByDocument(ctx context.Context, documentID uuid.UUID) (*domain.Protocol, error) {
	return r.getOne(ctx, "protocolRepo.GetActiveByDocument",
		"SELECT * FROM protocols WHERE document_id = $1 AND status = 'active'", documentID)
}

func (r *protocolRepo) GetActiveByHash(ctx context.Context, documentHash string) (*domain.Protocol, error) {
	return r.getOne(ctx, "protocolRepo.GetActiveByHash",
		`SELECT * FROM protocols WHERE document_hash = $1 AND status = 'active'
		 ORDER BY created_at DESC LIMIT 1`, documentHash)
}

func (r *protocolRepo) getOne(ctx context.Context, op, query string, args ...interface{}) (*domain.Protocol, error) {
	var p domain.Protocol
	if err := conn(ctx, r.db).GetContext(ctx, &p, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProtocolNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

func (r *protocolRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]domain.Protocol, error) {
	var protocols []domain.Protocol
	err := conn(ctx, r.db).SelectContext(ctx, &protocols,
		"SELECT * FROM protocols WHERE document_id = $1 ORDER BY created_at DESC", documentID)
	if err != nil {
		return nil, fmt.Errorf("protocolRepo.ListByDocument: %w", err)
	}
	return protocols, nil
}

func (r *protocolRepo) RecordVerification(ctx context.Context, code string, at time.Time) (*domain.Protocol, error) {
	var p domain.Protocol
	err := conn(ctx, r.db).GetContext(ctx, &p,
		`UPDATE protocols
		 SET verification_count = verification_count + 1, last_verified_at = $2
		 WHERE protocol_code = $1 AND status = 'active'
		 RETURNING *`, code, at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProtocolNotFound
		}
		return nil, fmt.Errorf("protocolRepo.RecordVerification: %w", err)
	}
	return &p, nil
}

func (r *protocolRepo) TransitionStatus(ctx context.Context, code string, from, to domain.ProtocolStatus, metadata []byte) error {
	query := "UPDATE protocols SET status = $3 WHERE protocol_code = $1 AND status = $2"
	args := []interface{}{code, from, to}
	if len(metadata) > 0 {
		query = "UPDATE protocols SET status = $3, metadata_json = $4 WHERE protocol_code = $1 AND status = $2"
		args = append(args, string(metadata))
	}
	result, err := conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("protocolRepo.TransitionStatus: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *protocolRepo) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE protocols SET status = 'expired' WHERE status = 'active' AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("protocolRepo.ExpireStale: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// jsonText stores absent JSON as an empty object.
func jsonText(b []byte) string {
	if len(b) == 0 {
		return "{}"
	}
	return string(b)
}
