package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"docsign/internal/domain"
	"docsign/internal/port"
)

// reportAssembler gathers the document, signatures and recent audit entries
// that make up a VerificationReport.
type reportAssembler struct {
	docs        port.DocumentStore
	signatures  port.SignatureRepository
	audit       port.AuditRepository
	baseURL     string
	recentLimit int
}

func (a *reportAssembler) verificationURL(code string) string {
	if code == "" {
		return ""
	}
	return a.baseURL + "/verify/" + code
}

func (a *reportAssembler) assemble(ctx context.Context, method string, documentID uuid.UUID, p *domain.Protocol, now time.Time) (*domain.VerificationReport, error) {
	report := &domain.VerificationReport{
		Method:      method,
		Protocol:    p,
		Signatures:  []domain.SignatureView{},
		GeneratedAt: now.UTC(),
	}
	if p != nil {
		report.DocumentHash = p.DocumentHash
		report.VerificationURL = a.verificationURL(p.Code)
	}

	doc, err := a.docs.Get(ctx, documentID)
	switch {
	case err == nil:
		report.Document = doc
		if report.DocumentHash == "" {
			report.DocumentHash = doc.ContentHash
		}
	case errors.Is(err, domain.ErrDocumentNotFound) && p != nil:
		// The protocol outlives the document record.
	default:
		return nil, err
	}

	recs, err := a.signatures.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	report.Signatures = domain.SignatureViews(recs)

	if a.recentLimit > 0 {
		entries, _, err := a.audit.Query(ctx, port.AuditFilter{DocumentID: &documentID, Limit: a.recentLimit})
		if err != nil {
			return nil, err
		}
		report.RecentAudit = entries
	}
	return report, nil
}

func signedCount(views []domain.SignatureView) int {
	n := 0
	for _, v := range views {
		if v.Status == domain.SignatureStatusSigned {
			n++
		}
	}
	return n
}
