package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document is the signable unit. It is owned by an external document store;
// this service only reads it and writes its hash and status.
type Document struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	Title       string         `db:"title" json:"title"`
	ContentRef  string         `db:"content_ref" json:"content_ref"`
	Status      DocumentStatus `db:"status" json:"status"`
	ContentHash string         `db:"content_hash" json:"content_hash"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	FinalizedAt *time.Time     `db:"finalized_at" json:"finalized_at,omitempty"`
}

// Signer identifies the party signing a document.
type Signer struct {
	Name              string        `json:"name"`
	CPF               string        `json:"-"`
	Email             string        `json:"email"`
	SignatureType     SignatureType `json:"signature_type"`
	CertificateSerial string        `json:"certificate_serial,omitempty"`
}

// SignatureRecord is one party's signature on a document. Many per document.
type SignatureRecord struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	DocumentID    uuid.UUID       `db:"document_id" json:"document_id"`
	SignerParty   string          `db:"signer_party" json:"signer_party"`
	SignerName    string          `db:"signer_name" json:"signer_name"`
	SignerCPF     string          `db:"signer_cpf" json:"-"`
	SignerEmail   string          `db:"signer_email" json:"signer_email"`
	SignatureType SignatureType   `db:"signature_type" json:"signature_type"`
	CertSerial    string          `db:"certificate_serial" json:"certificate_serial,omitempty"`
	SignatureHash string          `db:"signature_hash" json:"signature_hash"`
	DocumentHash  string          `db:"document_hash" json:"document_hash"`
	Status        SignatureStatus `db:"status" json:"status"`
	SignedAt      *time.Time      `db:"signed_at" json:"signed_at,omitempty"`
	IPAddress     string          `db:"ip_address" json:"ip_address"`
	Evidence      json.RawMessage `db:"evidence" json:"evidence,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// MaskedCPF returns the display form of the signer's CPF.
func (r *SignatureRecord) MaskedCPF() string {
	return MaskCPF(r.SignerCPF)
}

// AuditEntry is an immutable record of one lifecycle action. Entries are never
// updated or deleted; a correction is a new entry whose CorrectsEntryID points
// at the entry it amends.
type AuditEntry struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	Seq             int64           `db:"seq" json:"-"`
	DocumentID      uuid.UUID       `db:"document_id" json:"document_id"`
	Action          AuditAction     `db:"action" json:"action"`
	ActorID         string          `db:"actor_id" json:"actor_id"`
	ActorType       ActorType       `db:"actor_type" json:"actor_type"`
	ActorName       string          `db:"actor_name" json:"actor_name,omitempty"`
	ActorCPF        string          `db:"actor_cpf" json:"actor_cpf,omitempty"`
	ActorEmail      string          `db:"actor_email" json:"actor_email,omitempty"`
	Details         json.RawMessage `db:"details_json" json:"details"`
	DocumentHash    string          `db:"document_hash" json:"document_hash,omitempty"`
	SignatureHash   string          `db:"signature_hash" json:"signature_hash,omitempty"`
	IP              string          `db:"ip" json:"ip,omitempty"`
	UserAgent       string          `db:"user_agent" json:"user_agent,omitempty"`
	Geo             string          `db:"geo" json:"geo,omitempty"`
	Timestamp       time.Time       `db:"ts" json:"timestamp"`
	TsUnix          int64           `db:"ts_unix" json:"ts_unix"`
	CorrectsEntryID *uuid.UUID      `db:"corrects_entry_id" json:"corrects_entry_id,omitempty"`
	PrevHash        string          `db:"prev_hash" json:"prev_hash"`
	EntryHash       string          `db:"entry_hash" json:"entry_hash"`
}

// ComputeHash returns the chain hash of the entry given the hash of the entry
// appended before it for the same document.
func (e *AuditEntry) ComputeHash(prevHash string) string {
	corrects := ""
	if e.CorrectsEntryID != nil {
		corrects = e.CorrectsEntryID.String()
	}
	fields := []string{
		prevHash,
		e.ID.String(),
		e.DocumentID.String(),
		string(e.Action),
		e.ActorID,
		string(e.ActorType),
		e.ActorName,
		e.ActorCPF,
		e.ActorEmail,
		string(e.Details),
		e.DocumentHash,
		e.SignatureHash,
		e.IP,
		e.UserAgent,
		e.Geo,
		strconv.FormatInt(e.TsUnix, 10),
		corrects,
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// Seal links the entry to its predecessor and stamps its own hash.
func (e *AuditEntry) Seal(prevHash string) {
	e.PrevHash = prevHash
	e.EntryHash = e.ComputeHash(prevHash)
}

// Protocol is a shareable verification code bound to a document hash.
type Protocol struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	Code              string          `db:"protocol_code" json:"code"`
	DocumentID        uuid.UUID       `db:"document_id" json:"document_id"`
	DocumentHash      string          `db:"document_hash" json:"document_hash"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	CreatedUnix       int64           `db:"created_unix" json:"created_unix"`
	ExpiresAt         time.Time       `db:"expires_at" json:"expires_at"`
	VerificationCount int             `db:"verification_count" json:"verification_count"`
	LastVerifiedAt    *time.Time      `db:"last_verified_at" json:"last_verified_at,omitempty"`
	Status            ProtocolStatus  `db:"status" json:"status"`
	Metadata          json.RawMessage `db:"metadata_json" json:"metadata,omitempty"`
}

// IsExpiredAt reports whether the protocol validity window has elapsed at now.
func (p *Protocol) IsExpiredAt(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// EvidencePack is the immutable record of the environment and cryptographic
// context captured at signing time. It is 1:1 with a SignatureRecord.
type EvidencePack struct {
	Type            SignatureType   `json:"type"`
	Scheme          SignatureScheme `json:"scheme"`
	DocumentHash    string          `json:"document_hash"`
	ArtifactHash    string          `json:"artifact_hash"`
	SignerName      string          `json:"signer_name"`
	SignerCPFMasked string          `json:"signer_cpf_masked,omitempty"`
	IP              string          `json:"ip,omitempty"`
	UserAgent       string          `json:"user_agent,omitempty"`
	ServerTime      time.Time       `json:"server_time"`

	// Digital signatures.
	Certificate *CertificateEvidence `json:"certificate,omitempty"`

	// Electronic signatures. The raw CPF is never stored, only a salted argon2id hash.
	CPFHash         string `json:"cpf_hash,omitempty"`
	CPFSalt         string `json:"cpf_salt,omitempty"`
	EnvironmentHash string `json:"environment_hash,omitempty"`
	ImageHash       string `json:"image_hash,omitempty"`
}

// CertificateEvidence captures the signing certificate's identifying details.
type CertificateEvidence struct {
	Subject          string    `json:"subject"`
	Issuer           string    `json:"issuer"`
	Serial           string    `json:"serial"`
	ValidFrom        time.Time `json:"valid_from"`
	ValidTo          time.Time `json:"valid_to"`
	IssuerRecognized bool      `json:"issuer_recognized"`
	IssuerCheck      string    `json:"issuer_check"`
	Fingerprint      string    `json:"fingerprint_sha256"`
}
