package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docsign/internal/config"
	"docsign/internal/domain"
	"docsign/internal/port"
	"docsign/internal/signing"
)

// DocumentUploadInput is the DTO for document intake.
type DocumentUploadInput struct {
	Title  string
	File   multipart.File
	Header *multipart.FileHeader
	Actor  Actor
}

// DocumentService handles intake and retrieval of signable documents.
type DocumentService interface {
	Upload(ctx context.Context, input DocumentUploadInput) (*domain.Document, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Document, error)
	// Download returns the current bytes of the document and records the view.
	Download(ctx context.Context, id uuid.UUID, actor Actor) ([]byte, *domain.Document, error)
	GetDownloadURL(ctx context.Context, id uuid.UUID) (string, error)
}

type documentService struct {
	docs    port.DocumentStore
	storage port.ObjectStorage
	tx      port.Transactor
	audit   AuditLog
	cfg     *config.S3Config
	log     *zap.Logger
}

// NewDocumentService creates a new DocumentService implementation.
func NewDocumentService(docs port.DocumentStore, storage port.ObjectStorage, tx port.Transactor, audit AuditLog, cfg *config.S3Config, log *zap.Logger) DocumentService {
	return &documentService{
		docs:    docs,
		storage: storage,
		tx:      tx,
		audit:   audit,
		cfg:     cfg,
		log:     log.With(zap.String("service", "document")),
	}
}

func (s *documentService) Upload(ctx context.Context, input DocumentUploadInput) (*domain.Document, error) {
	if input.File == nil || input.Header == nil {
		return nil, domain.ErrInvalidInput
	}
	if ext := strings.ToLower(filepath.Ext(input.Header.Filename)); ext != ".pdf" {
		return nil, domain.ErrUnsupportedFile
	}
	maxBytes := s.cfg.MaxFileSizeMB * 1024 * 1024
	if maxBytes > 0 && input.Header.Size > maxBytes {
		return nil, domain.ErrFileTooLarge
	}

	// The hash covers the whole file, so it is read into memory once.
	limit := maxBytes
	if limit <= 0 {
		limit = input.Header.Size
	}
	content, err := io.ReadAll(io.LimitReader(input.File, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(content)) > limit {
		return nil, domain.ErrFileTooLarge
	}
	if http.DetectContentType(content) != "application/pdf" {
		return nil, domain.ErrUnsupportedFile
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(input.Header.Filename), filepath.Ext(input.Header.Filename))
	}

	id := uuid.New()
	hash := signing.SHA256Hex(content)
	key := fmt.Sprintf("%s/original.pdf", id)

	s.log.Info("documentService.Upload: storing document",
		zap.String("document_id", id.String()),
		zap.String("file", input.Header.Filename),
		zap.Int("bytes", len(content)))

	if _, err := s.storage.Upload(ctx, port.UploadInput{
		Key:         key,
		Body:        bytes.NewReader(content),
		ContentType: "application/pdf",
		Size:        int64(len(content)),
		Metadata:    map[string]string{"sha256": hash},
	}); err != nil {
		s.log.Error("documentService.Upload: storage upload failed", zap.String("document_id", id.String()), zap.Error(err))
		return nil, domain.ErrUploadFailed
	}

	doc := &domain.Document{
		ID:          id,
		Title:       title,
		ContentRef:  key,
		Status:      domain.DocumentStatusDraft,
		ContentHash: hash,
		CreatedAt:   time.Now().UTC(),
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.docs.Create(ctx, doc); err != nil {
			return fmt.Errorf("creating document: %w", err)
		}
		_, err := s.audit.Log(ctx, doc.ID, domain.AuditCreated, input.Actor, AuditDetail{
			DocumentHash: hash,
			Data: map[string]interface{}{
				"title":     doc.Title,
				"file_name": input.Header.Filename,
				"size":      len(content),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *documentService) Get(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	return s.docs.Get(ctx, id)
}

func (s *documentService) Download(ctx context.Context, id uuid.UUID, actor Actor) ([]byte, *domain.Document, error) {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	content, err := s.storage.Download(ctx, doc.ContentRef)
	if err != nil {
		return nil, nil, fmt.Errorf("downloading document: %w", err)
	}
	if _, err := s.audit.Log(ctx, doc.ID, domain.AuditViewed, actor, AuditDetail{
		DocumentHash: doc.ContentHash,
	}); err != nil {
		return nil, nil, err
	}
	return content, doc, nil
}

func (s *documentService) GetDownloadURL(ctx context.Context, id uuid.UUID) (string, error) {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.storage.GetPresignedURL(ctx, doc.ContentRef, s.cfg.PresignExpiry)
}
