package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"docsign/internal/clientinfo"
	"docsign/internal/csvexport"
	"docsign/internal/domain"
	"docsign/internal/metrics"
	"docsign/internal/port"
)

const (
	auditAppendAttempts = 3
	auditRetryBackoff   = 50 * time.Millisecond
	defaultAuditLimit   = 50
	maxAuditLimit       = 500
)

// Actor identifies who performed an audited action. CPF is masked before it
// is stored.
type Actor struct {
	ID    string
	Type  domain.ActorType
	Name  string
	CPF   string
	Email string
}

// SystemActor is the actor of actions the service takes on its own.
var SystemActor = Actor{ID: "system", Type: domain.ActorSystem, Name: "docsign"}

// AuditDetail is the payload of an audit entry beyond its actor.
type AuditDetail struct {
	Data          map[string]interface{}
	DocumentHash  string
	SignatureHash string
}

// AuditPage is one page of audit query results.
type AuditPage struct {
	Entries []domain.AuditEntry `json:"entries"`
	Total   int                 `json:"total"`
	Offset  int                 `json:"offset"`
	Limit   int                 `json:"limit"`
}

// ChainReport is the result of checking a document's audit hash chain.
type ChainReport struct {
	DocumentID uuid.UUID  `json:"document_id"`
	Entries    int        `json:"entries"`
	Valid      bool       `json:"valid"`
	BrokenAt   *uuid.UUID `json:"broken_at,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// AuditLog is the append-only record of document lifecycle actions.
type AuditLog interface {
	// Log appends an entry. Client IP and user agent are taken from ctx.
	Log(ctx context.Context, documentID uuid.UUID, action domain.AuditAction, actor Actor, detail AuditDetail) (uuid.UUID, error)
	// Correct appends an entry that amends entryID. The original is left untouched.
	Correct(ctx context.Context, entryID uuid.UUID, actor Actor, detail AuditDetail) (uuid.UUID, error)
	Query(ctx context.Context, filter port.AuditFilter) (*AuditPage, error)
	VerifyChain(ctx context.Context, documentID uuid.UUID) (*ChainReport, error)
	Stats(ctx context.Context, documentID uuid.UUID) (map[domain.AuditAction]int, error)
	Export(ctx context.Context, documentID uuid.UUID, format ExportFormat) ([]byte, error)
}

type auditLog struct {
	repo    port.AuditRepository
	geo     port.GeoLocator
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

// NewAuditLog creates a new AuditLog implementation.
func NewAuditLog(repo port.AuditRepository, geo port.GeoLocator, m *metrics.Metrics, log *zap.Logger) AuditLog {
	return &auditLog{
		repo:    repo,
		geo:     geo,
		metrics: m,
		log:     log.With(zap.String("service", "audit")),
		now:     time.Now,
	}
}

func (s *auditLog) Log(ctx context.Context, documentID uuid.UUID, action domain.AuditAction, actor Actor, detail AuditDetail) (uuid.UUID, error) {
	entry, err := s.newEntry(ctx, documentID, action, actor, detail)
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.append(ctx, entry); err != nil {
		return uuid.Nil, err
	}
	return entry.ID, nil
}

func (s *auditLog) Correct(ctx context.Context, entryID uuid.UUID, actor Actor, detail AuditDetail) (uuid.UUID, error) {
	original, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return uuid.Nil, err
	}

	data := make(map[string]interface{}, len(detail.Data)+1)
	for k, v := range detail.Data {
		data[k] = v
	}
	data["corrected_action"] = original.Action
	detail.Data = data

	entry, err := s.newEntry(ctx, original.DocumentID, domain.AuditEdited, actor, detail)
	if err != nil {
		return uuid.Nil, err
	}
	entry.CorrectsEntryID = &original.ID
	if err := s.append(ctx, entry); err != nil {
		return uuid.Nil, err
	}
	return entry.ID, nil
}

func (s *auditLog) newEntry(ctx context.Context, documentID uuid.UUID, action domain.AuditAction, actor Actor, detail AuditDetail) (*domain.AuditEntry, error) {
	if documentID == uuid.Nil || !domain.ValidAuditActions[action] {
		return nil, domain.ErrInvalidInput
	}
	if actor.Type == "" {
		actor.Type = domain.ActorUser
	}

	details := []byte("{}")
	if len(detail.Data) > 0 {
		var err error
		details, err = json.Marshal(detail.Data)
		if err != nil {
			return nil, fmt.Errorf("audit.Log details: %w", err)
		}
	}

	cpf := ""
	if actor.CPF != "" {
		cpf = domain.MaskCPF(actor.CPF)
	}

	client := clientinfo.FromContext(ctx)
	now := s.now().UTC().Truncate(time.Microsecond)
	return &domain.AuditEntry{
		ID:            uuid.New(),
		DocumentID:    documentID,
		Action:        action,
		ActorID:       actor.ID,
		ActorType:     actor.Type,
		ActorName:     actor.Name,
		ActorCPF:      cpf,
		ActorEmail:    actor.Email,
		Details:       details,
		DocumentHash:  detail.DocumentHash,
		SignatureHash: detail.SignatureHash,
		IP:            client.IP,
		UserAgent:     client.UserAgent,
		Geo:           s.locate(client.IP),
		Timestamp:     now,
		TsUnix:        now.Unix(),
	}, nil
}

func (s *auditLog) locate(ip string) string {
	if ip == "" || s.geo == nil {
		return ""
	}
	return s.geo.Locate(ip)
}

// append retries storage failures a bounded number of times. The entry ID is
// fixed across attempts, so a retry never produces a second row.
func (s *auditLog) append(ctx context.Context, entry *domain.AuditEntry) error {
	var err error
	for attempt := 1; attempt <= auditAppendAttempts; attempt++ {
		if err = s.repo.Append(ctx, entry); err == nil {
			s.metrics.AuditEntries.WithLabelValues(string(entry.Action)).Inc()
			s.log.Debug("audit.Log: appended",
				zap.String("document_id", entry.DocumentID.String()),
				zap.String("action", string(entry.Action)),
				zap.String("entry_id", entry.ID.String()))
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		s.log.Warn("audit.Log: append failed",
			zap.Int("attempt", attempt),
			zap.String("document_id", entry.DocumentID.String()),
			zap.Error(err))
		if attempt < auditAppendAttempts {
			select {
			case <-ctx.Done():
			case <-time.After(auditRetryBackoff * time.Duration(attempt)):
			}
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrAuditAppendFailed, err)
}

func (s *auditLog) Query(ctx context.Context, filter port.AuditFilter) (*AuditPage, error) {
	if filter.DocumentID == nil && filter.ActorID == "" {
		return nil, domain.ErrInvalidInput
	}
	for _, a := range filter.Actions {
		if !domain.ValidAuditActions[a] {
			return nil, domain.ErrInvalidInput
		}
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultAuditLimit
	}
	if filter.Limit > maxAuditLimit {
		filter.Limit = maxAuditLimit
	}

	entries, total, err := s.repo.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	return &AuditPage{Entries: entries, Total: total, Offset: filter.Offset, Limit: filter.Limit}, nil
}

func (s *auditLog) VerifyChain(ctx context.Context, documentID uuid.UUID) (*ChainReport, error) {
	chain, err := s.repo.ListChain(ctx, documentID)
	if err != nil {
		return nil, err
	}

	report := &ChainReport{DocumentID: documentID, Entries: len(chain), Valid: true}
	prev := ""
	for i := range chain {
		e := &chain[i]
		var reason string
		switch {
		case e.PrevHash != prev:
			reason = "previous hash does not match the preceding entry"
		case e.ComputeHash(prev) != e.EntryHash:
			reason = "entry content does not match its hash"
		}
		if reason != "" {
			id := e.ID
			report.Valid = false
			report.BrokenAt = &id
			report.Reason = reason
			s.log.Warn("audit.VerifyChain: chain broken",
				zap.String("document_id", documentID.String()),
				zap.String("entry_id", id.String()),
				zap.String("reason", reason))
			break
		}
		prev = e.EntryHash
	}
	return report, nil
}

func (s *auditLog) Stats(ctx context.Context, documentID uuid.UUID) (map[domain.AuditAction]int, error) {
	return s.repo.CountByAction(ctx, documentID)
}

// ExportFormat selects the file format of an audit export.
type ExportFormat string

const (
	ExportXLSX ExportFormat = "xlsx"
	ExportCSV  ExportFormat = "csv"
)

// Export writes the document's full audit trail in append order.
func (s *auditLog) Export(ctx context.Context, documentID uuid.UUID, format ExportFormat) ([]byte, error) {
	if format != ExportXLSX && format != ExportCSV {
		return nil, domain.ErrInvalidInput
	}
	chain, err := s.repo.ListChain(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, domain.ErrNotFound
	}
	if format == ExportCSV {
		return exportCSV(chain)
	}
	return exportXLSX(chain)
}

func exportCSV(chain []domain.AuditEntry) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(csvexport.BOM)
	w := csvexport.NewWriter(&buf)
	if err := w.WriteHeader(); err != nil {
		return nil, fmt.Errorf("audit.Export header: %w", err)
	}
	if err := w.WriteEntries(chain); err != nil {
		return nil, fmt.Errorf("audit.Export rows: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("audit.Export flush: %w", err)
	}
	return buf.Bytes(), nil
}

func exportXLSX(chain []domain.AuditEntry) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Audit"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("audit.Export: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &csvexport.Columns); err != nil {
		return nil, fmt.Errorf("audit.Export header: %w", err)
	}

	for i := range chain {
		row := csvexport.Row(&chain[i])
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("audit.Export: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("audit.Export row: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("audit.Export write: %w", err)
	}
	return buf.Bytes(), nil
}
