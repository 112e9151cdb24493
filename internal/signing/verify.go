package signing

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/subtle"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mozilla.org/pkcs7"

	"docsign/internal/domain"
)

// SignatureCheck is the verification outcome of one embedded signature block.
type SignatureCheck struct {
	Valid       bool                   `json:"valid"`
	Type        domain.SignatureType   `json:"type,omitempty"`
	Scheme      domain.SignatureScheme `json:"scheme,omitempty"`
	Degraded    bool                   `json:"degraded"`
	SignerName  string                 `json:"signer_name,omitempty"`
	SignerCPF   string                 `json:"signer_cpf,omitempty"`
	CertSerial  string                 `json:"cert_serial,omitempty"`
	SignedAt    time.Time              `json:"signed_at,omitempty"`
	ContentHash string                 `json:"content_hash"`
	Reason      string                 `json:"reason,omitempty"`
	Err         error                  `json:"-" yaml:"-"`
}

// Verification is the result of verifying a signed artifact. The top-level
// fields describe the outermost signature; Signatures lists every nested
// signature from the most recent to the first.
type Verification struct {
	Valid      bool                   `json:"valid"`
	Type       domain.SignatureType   `json:"type"`
	Scheme     domain.SignatureScheme `json:"scheme"`
	Degraded   bool                   `json:"degraded"`
	Hash       string                 `json:"hash"`
	Reason     string                 `json:"reason,omitempty"`
	Signatures []SignatureCheck       `json:"signatures"`
	Err        error                  `json:"-" yaml:"-"`
}

// Verify checks every signature block embedded in artifact. A hash or
// signature mismatch is reported with Valid=false and a nil error; only a
// missing signature block is returned as an error.
func (e *Engine) Verify(artifact []byte) (*Verification, error) {
	if !hasBlock(artifact) {
		return nil, domain.ErrNoSignatureFound
	}

	result := &Verification{Valid: true, Hash: sha256Hex(artifact)}
	data := artifact
	for hasBlock(data) {
		content, block, err := splitLastBlock(data)
		check := SignatureCheck{ContentHash: sha256Hex(content)}
		if err == nil {
			check = checkBlock(content, block)
		} else {
			check.Err = err
			check.Reason = err.Error()
		}
		result.Signatures = append(result.Signatures, check)
		if !check.Valid {
			result.Valid = false
		}
		if block == nil {
			break
		}
		data = content
	}

	outer := result.Signatures[0]
	result.Type = outer.Type
	result.Scheme = outer.Scheme
	result.Degraded = outer.Degraded
	if !result.Valid {
		for _, c := range result.Signatures {
			if !c.Valid {
				result.Err = c.Err
				result.Reason = c.Reason
				break
			}
		}
	}
	return result, nil
}

func checkBlock(content []byte, b *Block) SignatureCheck {
	check := SignatureCheck{
		Type:        b.Type,
		Scheme:      b.Scheme,
		Degraded:    b.Scheme.Degraded(),
		SignerName:  b.SignerName,
		SignerCPF:   b.SignerCPF,
		CertSerial:  b.CertSerial,
		SignedAt:    b.SignedAt,
		ContentHash: sha256Hex(content),
	}

	fail := func(err error) SignatureCheck {
		check.Err = err
		check.Reason = err.Error()
		return check
	}

	if subtle.ConstantTimeCompare([]byte(strings.ToLower(b.Digest)), []byte(check.ContentHash)) != 1 {
		return fail(domain.ErrHashMismatch)
	}

	switch b.Scheme {
	case domain.SchemeCMSDetached:
		if err := verifyCMS(content, b.Signature); err != nil {
			return fail(fmt.Errorf("%w: %v", domain.ErrSignatureInvalid, err))
		}
	case domain.SchemeRawAppend:
		if err := verifyRaw(b.Certificate, check.ContentHash, b.Signature); err != nil {
			return fail(fmt.Errorf("%w: %v", domain.ErrSignatureInvalid, err))
		}
	case domain.SchemeElectronic:
		// Electronic signatures carry no key; integrity rests on the digest.
	default:
		return fail(domain.ErrMalformedBlock)
	}

	check.Valid = true
	return check
}

func verifyCMS(content, der []byte) error {
	p7, err := pkcs7.Parse(der)
	if err != nil {
		return err
	}
	p7.Content = content
	return p7.Verify()
}

func verifyRaw(certDER []byte, contentHash string, sig []byte) error {
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return err
	}
	digest, err := hex.DecodeString(contentHash)
	if err != nil {
		return err
	}
	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest, sig)
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(pub, digest, sig) {
			return errors.New("ecdsa verification failed")
		}
		return nil
	case ed25519.PublicKey:
		if !ed25519.Verify(pub, digest, sig) {
			return errors.New("ed25519 verification failed")
		}
		return nil
	default:
		return fmt.Errorf("unsupported public key type %T", pub)
	}
}
