package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"docsign/internal/domain"
	"docsign/internal/port"
)

const auditColumns = `id, seq, document_id, action, actor_id, actor_type, actor_name, actor_cpf,
	actor_email, details_json, document_hash, signature_hash, ip, user_agent, geo,
	ts, ts_unix, corrects_entry_id, prev_hash, entry_hash`

type auditRepo struct {
	db *sqlx.DB
}

// NewAuditRepo creates a new PostgreSQL-backed AuditRepository.
func NewAuditRepo(db *sqlx.DB) port.AuditRepository {
	return &auditRepo{db: db}
}

// Append takes a transaction-scoped advisory lock on the document so the
// chain head read and the insert cannot interleave with another append.
// Inside a unit of work the lock is held until that unit commits.
func (r *auditRepo) Append(ctx context.Context, entry *domain.AuditEntry) error {
	if tx, ok := txFromContext(ctx); ok {
		return savepoint(ctx, "audit_append", func() error {
			return r.append(ctx, tx, entry)
		})
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("auditRepo.Append begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := r.append(ctx, tx, entry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("auditRepo.Append commit: %w", err)
	}
	return nil
}

func (r *auditRepo) append(ctx context.Context, tx *sqlx.Tx, entry *domain.AuditEntry) error {
	if _, err := tx.ExecContext(ctx,
		"SELECT pg_advisory_xact_lock(hashtext($1))", entry.DocumentID.String()); err != nil {
		return fmt.Errorf("auditRepo.Append lock: %w", err)
	}

	var prev []string
	err := tx.SelectContext(ctx, &prev,
		`SELECT entry_hash FROM audit_log WHERE document_id = $1 ORDER BY seq DESC LIMIT 1`,
		entry.DocumentID)
	if err != nil {
		return fmt.Errorf("auditRepo.Append head: %w", err)
	}
	prevHash := ""
	if len(prev) > 0 {
		prevHash = prev[0]
	}
	entry.Seal(prevHash)

	err = tx.GetContext(ctx, &entry.Seq,
		`INSERT INTO audit_log (
			id, document_id, action, actor_id, actor_type, actor_name, actor_cpf,
			actor_email, details_json, document_hash, signature_hash, ip, user_agent, geo,
			ts, ts_unix, corrects_entry_id, prev_hash, entry_hash
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19
		) RETURNING seq`,
		entry.ID, entry.DocumentID, entry.Action, entry.ActorID, entry.ActorType, entry.ActorName, entry.ActorCPF,
		entry.ActorEmail, string(entry.Details), entry.DocumentHash, entry.SignatureHash, entry.IP, entry.UserAgent, entry.Geo,
		entry.Timestamp, entry.TsUnix, entry.CorrectsEntryID, entry.PrevHash, entry.EntryHash)
	if err != nil {
		return fmt.Errorf("auditRepo.Append insert: %w", err)
	}
	return nil
}

func (r *auditRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.AuditEntry, error) {
	var entry domain.AuditEntry
	err := conn(ctx, r.db).GetContext(ctx, &entry,
		"SELECT "+auditColumns+" FROM audit_log WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("auditRepo.GetByID: %w", err)
	}
	return &entry, nil
}

func (r *auditRepo) Query(ctx context.Context, filter port.AuditFilter) ([]domain.AuditEntry, int, error) {
	where, args := auditWhere(filter)

	var total int
	err := conn(ctx, r.db).GetContext(ctx, &total, "SELECT COUNT(*) FROM audit_log"+where, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("auditRepo.Query count: %w", err)
	}

	query := "SELECT " + auditColumns + " FROM audit_log" + where + " ORDER BY ts_unix DESC, seq DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var entries []domain.AuditEntry
	if err := conn(ctx, r.db).SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("auditRepo.Query: %w", err)
	}
	return entries, total, nil
}

func auditWhere(f port.AuditFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.DocumentID != nil {
		add("document_id = $%d", *f.DocumentID)
	}
	if f.ActorID != "" {
		add("actor_id = $%d", f.ActorID)
	}
	if len(f.Actions) > 0 {
		actions := make([]string, len(f.Actions))
		for i, a := range f.Actions {
			actions[i] = string(a)
		}
		add("action = ANY($%d)", actions)
	}
	if f.ActorType != "" {
		add("actor_type = $%d", f.ActorType)
	}
	if f.FromUnix > 0 {
		add("ts_unix >= $%d", f.FromUnix)
	}
	if f.ToUnix > 0 {
		add("ts_unix <= $%d", f.ToUnix)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *auditRepo) ListChain(ctx context.Context, documentID uuid.UUID) ([]domain.AuditEntry, error) {
	var entries []domain.AuditEntry
	err := conn(ctx, r.db).SelectContext(ctx, &entries,
		"SELECT "+auditColumns+" FROM audit_log WHERE document_id = $1 ORDER BY seq ASC", documentID)
	if err != nil {
		return nil, fmt.Errorf("auditRepo.ListChain: %w", err)
	}
	return entries, nil
}

func (r *auditRepo) CountByAction(ctx context.Context, documentID uuid.UUID) (map[domain.AuditAction]int, error) {
	var rows []struct {
		Action domain.AuditAction `db:"action"`
		Count  int                `db:"count"`
	}
	err := conn(ctx, r.db).SelectContext(ctx, &rows,
		`SELECT action, COUNT(*) AS count FROM audit_log WHERE document_id = $1 GROUP BY action`,
		documentID)
	if err != nil {
		return nil, fmt.Errorf("auditRepo.CountByAction: %w", err)
	}
	counts := make(map[domain.AuditAction]int, len(rows))
	for _, row := range rows {
		counts[row.Action] = row.Count
	}
	return counts, nil
}
