package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentFinal    = errors.New("document is finalized and cannot be signed")
	ErrNotSignable      = errors.New("document has no signatures to finalize")
	ErrUnsupportedFile  = errors.New("only PDF documents are accepted")
	ErrFileTooLarge     = errors.New("file exceeds maximum allowed size")
	ErrUploadFailed     = errors.New("file upload failed")
	ErrInvalidToken     = errors.New("invalid or expired token")
)

// Input errors. Surfaced immediately with no persisted side effects.
var (
	ErrInvalidCPF      = errors.New("invalid CPF")
	ErrInvalidName     = errors.New("signer name must have at least 5 characters")
	ErrInvalidEmail    = errors.New("invalid signer email")
	ErrInvalidImage    = errors.New("invalid signature image")
	ErrInvalidInput    = errors.New("invalid input")
	ErrMalformedBundle = errors.New("malformed certificate bundle")
	ErrWrongPassword   = errors.New("wrong certificate bundle password")
)

// Validation errors.
var (
	ErrMalformedCertificate   = errors.New("malformed certificate")
	ErrCertificateExpired     = errors.New("certificate has expired")
	ErrCertificateNotYetValid = errors.New("certificate is not yet valid")
	ErrIssuerUnrecognized     = errors.New("certificate issuer is not recognized")
	ErrCPFMismatch            = errors.New("CPF does not match the certificate holder")
	ErrCertificateHasNoCPF    = errors.New("certificate carries no CPF to confirm the signer")
)

// Signing and integrity errors.
var (
	ErrSigningFailed     = errors.New("signing failed")
	ErrEmbedFailed       = errors.New("failed to embed signature")
	ErrNoSignatureFound  = errors.New("no signature found")
	ErrHashMismatch      = errors.New("document hash does not match the signed digest")
	ErrSignatureInvalid  = errors.New("signature does not verify against the certificate")
	ErrMalformedBlock    = errors.New("signature block is malformed")
	ErrSigningTimeout    = errors.New("signing timed out")
	ErrSigningQueueFull  = errors.New("signing queue is full")
	ErrLockNotAcquired   = errors.New("document is being signed by another request")
	ErrAuditChainBroken  = errors.New("audit chain is broken")
	ErrAuditAppendFailed = errors.New("audit entry could not be written")
)

// Protocol errors.
var (
	ErrProtocolNotFound        = errors.New("protocol not found")
	ErrProtocolRevoked         = errors.New("protocol has been revoked")
	ErrProtocolExpired         = errors.New("protocol has expired")
	ErrProtocolAlreadyRevoked  = errors.New("protocol is already revoked")
	ErrCodeGenerationExhausted = errors.New("could not generate a unique protocol code")
	ErrDuplicateProtocolCode   = errors.New("protocol code already exists")
	ErrActiveProtocolExists    = errors.New("document already has an active protocol")
)

// SigningStage names the step of a signing operation at which a failure happened.
type SigningStage string

const (
	StageExtract  SigningStage = "extract"
	StageValidate SigningStage = "validate"
	StageDigest   SigningStage = "digest"
	StageSign     SigningStage = "sign"
	StageEmbed    SigningStage = "embed"
	StageHash     SigningStage = "hash"
	StageInput    SigningStage = "input"
)

// SigningError carries the stage and cause of a signing failure. Err is always a
// sentinel from this package or a library error that never contains key material.
type SigningError struct {
	Stage SigningStage
	Err   error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("signing %s: %v", e.Stage, e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// NewSigningError wraps err with the stage at which it happened.
func NewSigningError(stage SigningStage, err error) error {
	if err == nil {
		return nil
	}
	return &SigningError{Stage: stage, Err: err}
}

// IsCertificateInvalid reports whether err is one of the certificate validation failures.
func IsCertificateInvalid(err error) bool {
	return errors.Is(err, ErrMalformedCertificate) ||
		errors.Is(err, ErrCertificateExpired) ||
		errors.Is(err, ErrCertificateNotYetValid) ||
		errors.Is(err, ErrIssuerUnrecognized)
}
