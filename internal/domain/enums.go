package domain

// DocumentStatus represents the signing lifecycle of a document.
type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "draft"
	DocumentStatusPending   DocumentStatus = "pending"
	DocumentStatusFinalized DocumentStatus = "finalized"
)

// SignatureType distinguishes certificate-backed signatures from identity-claim signatures.
type SignatureType string

const (
	SignatureTypeDigital    SignatureType = "digital"
	SignatureTypeElectronic SignatureType = "electronic"
)

// ValidSignatureTypes is the set of accepted signature types.
var ValidSignatureTypes = map[SignatureType]bool{
	SignatureTypeDigital:    true,
	SignatureTypeElectronic: true,
}

// SignatureStatus represents the state of a single party's signature on a document.
type SignatureStatus string

const (
	SignatureStatusSigned   SignatureStatus = "signed"
	SignatureStatusPending  SignatureStatus = "pending"
	SignatureStatusDeclined SignatureStatus = "declined"
	SignatureStatusExpired  SignatureStatus = "expired"
)

// SignatureScheme identifies how a signature block was produced and must be verified.
type SignatureScheme string

const (
	// SchemeCMSDetached is a detached CMS/PKCS#7 SignedData over the preceding bytes.
	SchemeCMSDetached SignatureScheme = "cms-detached"
	// SchemeRawAppend is the degraded mode: a bare PKCS#1/ECDSA signature over the digest.
	SchemeRawAppend SignatureScheme = "raw-append"
	// SchemeElectronic is an image overlay with signer metadata and no cryptographic key.
	SchemeElectronic SignatureScheme = "electronic-overlay"
)

// Degraded reports whether the scheme is the labeled fallback form.
func (s SignatureScheme) Degraded() bool {
	return s == SchemeRawAppend
}

// AuditAction enumerates the lifecycle actions recorded in the audit log.
type AuditAction string

const (
	AuditCreated            AuditAction = "created"
	AuditViewed             AuditAction = "viewed"
	AuditEdited             AuditAction = "edited"
	AuditFinalized          AuditAction = "finalized"
	AuditSignatureRequested AuditAction = "signature_requested"
	AuditSigned             AuditAction = "signed"
	AuditVerified           AuditAction = "verified"
	AuditRejected           AuditAction = "rejected"
	AuditRevoked            AuditAction = "revoked"
)

// ValidAuditActions is the set of accepted audit actions.
var ValidAuditActions = map[AuditAction]bool{
	AuditCreated:            true,
	AuditViewed:             true,
	AuditEdited:             true,
	AuditFinalized:          true,
	AuditSignatureRequested: true,
	AuditSigned:             true,
	AuditVerified:           true,
	AuditRejected:           true,
	AuditRevoked:            true,
}

// ActorType classifies who performed an audited action.
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorSigner ActorType = "signer"
	ActorSystem ActorType = "system"
	ActorPublic ActorType = "public"
)

// ProtocolStatus represents the lifecycle of a verification protocol.
type ProtocolStatus string

const (
	ProtocolActive  ProtocolStatus = "active"
	ProtocolExpired ProtocolStatus = "expired"
	ProtocolRevoked ProtocolStatus = "revoked"
)
