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

type documentStore struct {
	db *sqlx.DB
}

// NewDocumentStore creates a new PostgreSQL-backed DocumentStore.
func NewDocumentStore(db *sqlx.DB) port.DocumentStore {
	return &documentStore{db: db}
}

func (r *documentStore) Create(ctx context.Context, doc *domain.Document) error {
	doc.CreatedAt = time.Now().UTC()
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO documents (id, title, content_ref, status, content_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ID, doc.Title, doc.ContentRef, doc.Status, doc.ContentHash, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("documentStore.Create: %w", err)
	}
	return nil
}

func (r *documentStore) Get(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	var doc domain.Document
	err := conn(ctx, r.db).GetContext(ctx, &doc, "SELECT * FROM documents WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("documentStore.Get: %w", err)
	}
	return &doc, nil
}

func (r *documentStore) FindByHash(ctx context.Context, contentHash string) (*domain.Document, error) {
	var doc domain.Document
	err := conn(ctx, r.db).GetContext(ctx, &doc,
		"SELECT * FROM documents WHERE content_hash = $1 ORDER BY created_at DESC LIMIT 1", contentHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("documentStore.FindByHash: %w", err)
	}
	return &doc, nil
}

func (r *documentStore) UpdateHash(ctx context.Context, id uuid.UUID, contentHash, contentRef string) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		"UPDATE documents SET content_hash = $2, content_ref = $3 WHERE id = $1",
		id, contentHash, contentRef)
	if err != nil {
		return fmt.Errorf("documentStore.UpdateHash: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *documentStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DocumentStatus, finalizedAt *time.Time) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		"UPDATE documents SET status = $2, finalized_at = $3 WHERE id = $1",
		id, status, finalizedAt)
	if err != nil {
		return fmt.Errorf("documentStore.UpdateStatus: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}
