package domain

import (
	"time"

	"github.com/google/uuid"
)

// SignatureView is the public form of a SignatureRecord. The CPF is masked.
type SignatureView struct {
	ID            uuid.UUID       `json:"id"`
	SignerName    string          `json:"signer_name"`
	SignerCPF     string          `json:"signer_cpf"`
	SignerEmail   string          `json:"signer_email,omitempty"`
	SignerParty   string          `json:"signer_party,omitempty"`
	SignatureType SignatureType   `json:"signature_type"`
	Status        SignatureStatus `json:"status"`
	SignedAt      *time.Time      `json:"signed_at,omitempty"`
	SignatureHash string          `json:"signature_hash,omitempty"`
	DocumentHash  string          `json:"document_hash,omitempty"`
	CertSerial    string          `json:"certificate_serial,omitempty"`
}

// NewSignatureView builds the public form of rec.
func NewSignatureView(rec *SignatureRecord) SignatureView {
	return SignatureView{
		ID:            rec.ID,
		SignerName:    rec.SignerName,
		SignerCPF:     rec.MaskedCPF(),
		SignerEmail:   rec.SignerEmail,
		SignerParty:   rec.SignerParty,
		SignatureType: rec.SignatureType,
		Status:        rec.Status,
		SignedAt:      rec.SignedAt,
		SignatureHash: rec.SignatureHash,
		DocumentHash:  rec.DocumentHash,
		CertSerial:    rec.CertSerial,
	}
}

// SignatureViews builds the public form of every record.
func SignatureViews(recs []SignatureRecord) []SignatureView {
	views := make([]SignatureView, 0, len(recs))
	for i := range recs {
		views = append(views, NewSignatureView(&recs[i]))
	}
	return views
}

// VerificationReport is the consolidated, JSON-serializable result of a
// verification or a report request. It never carries a raw CPF.
type VerificationReport struct {
	Valid           bool            `json:"valid"`
	Message         string          `json:"message,omitempty"`
	Method          string          `json:"method"`
	Document        *Document       `json:"document,omitempty"`
	Protocol        *Protocol       `json:"protocol,omitempty"`
	NoProtocol      bool            `json:"no_protocol,omitempty"`
	DocumentHash    string          `json:"document_hash"`
	HashMatches     *bool           `json:"hash_matches,omitempty"`
	Signatures      []SignatureView `json:"signatures"`
	RecentAudit     []AuditEntry    `json:"recent_audit_entries,omitempty"`
	VerificationURL string          `json:"verification_url,omitempty"`
	GeneratedAt     time.Time       `json:"generated_at"`
}
