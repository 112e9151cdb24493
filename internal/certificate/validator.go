package certificate

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"docsign/internal/domain"
)

const (
	// IssuerCheckChain means the issuer was recognized by verifying the chain
	// against the configured root store.
	IssuerCheckChain = "chain"
	// IssuerCheckNameFragment means the issuer name matched a known CA name
	// fragment. This is a placeholder and not a chain-of-trust guarantee.
	IssuerCheckNameFragment = "name-fragment"
)

var elevenDigits = regexp.MustCompile(`\d{11}`)

// Info holds the fields of a validated certificate.
type Info struct {
	Subject          string    `json:"subject"`
	CommonName       string    `json:"common_name"`
	Issuer           string    `json:"issuer"`
	Serial           string    `json:"serial"`
	ValidFrom        time.Time `json:"valid_from"`
	ValidTo          time.Time `json:"valid_to"`
	IssuerRecognized bool      `json:"issuer_recognized"`
	IssuerCheck      string    `json:"issuer_check"`
	Fingerprint      string    `json:"fingerprint_sha256"`
}

// Evidence converts the info into its evidence-pack form.
func (i *Info) Evidence() *domain.CertificateEvidence {
	return &domain.CertificateEvidence{
		Subject:          i.Subject,
		Issuer:           i.Issuer,
		Serial:           i.Serial,
		ValidFrom:        i.ValidFrom,
		ValidTo:          i.ValidTo,
		IssuerRecognized: i.IssuerRecognized,
		IssuerCheck:      i.IssuerCheck,
		Fingerprint:      i.Fingerprint,
	}
}

// Validator checks certificate validity windows and issuer recognition.
type Validator struct {
	issuers []string
	roots   *x509.CertPool
}

// NewValidator creates a Validator. When roots is non-nil, issuer recognition
// verifies the chain against it; otherwise issuers is matched by substring.
func NewValidator(issuers []string, roots *x509.CertPool) *Validator {
	lowered := make([]string, 0, len(issuers))
	for _, f := range issuers {
		f = strings.TrimSpace(f)
		if f != "" {
			lowered = append(lowered, strings.ToLower(f))
		}
	}
	return &Validator{issuers: lowered, roots: roots}
}

// Validate checks cert against now and reports its identifying fields.
func (v *Validator) Validate(cert *x509.Certificate, intermediates []*x509.Certificate, now time.Time) (*Info, error) {
	if cert == nil || len(cert.Raw) == 0 || cert.SerialNumber == nil {
		return nil, domain.ErrMalformedCertificate
	}
	if now.Before(cert.NotBefore) {
		return nil, domain.ErrCertificateNotYetValid
	}
	if now.After(cert.NotAfter) {
		return nil, domain.ErrCertificateExpired
	}

	fp := sha256.Sum256(cert.Raw)
	info := &Info{
		Subject:     cert.Subject.String(),
		CommonName:  cert.Subject.CommonName,
		Issuer:      cert.Issuer.String(),
		Serial:      strings.ToUpper(cert.SerialNumber.Text(16)),
		ValidFrom:   cert.NotBefore,
		ValidTo:     cert.NotAfter,
		Fingerprint: hex.EncodeToString(fp[:]),
	}

	if v.roots != nil {
		info.IssuerCheck = IssuerCheckChain
		info.IssuerRecognized = v.verifyChain(cert, intermediates, now)
	} else {
		info.IssuerCheck = IssuerCheckNameFragment
		info.IssuerRecognized = v.matchesIssuer(info.Issuer)
	}
	return info, nil
}

func (v *Validator) verifyChain(cert *x509.Certificate, intermediates []*x509.Certificate, now time.Time) bool {
	pool := x509.NewCertPool()
	for _, c := range intermediates {
		pool.AddCert(c)
	}
	_, err := cert.Verify(x509.VerifyOptions{
		Roots:         v.roots,
		Intermediates: pool,
		CurrentTime:   now,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	return err == nil
}

func (v *Validator) matchesIssuer(issuer string) bool {
	lower := strings.ToLower(issuer)
	for _, f := range v.issuers {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

// ExtractCPF looks for the holder's CPF in the certificate. It tries, in order,
// an 11-digit run in the subject common name, in the subject serialNumber
// attribute, and in any extension value. It returns "" when none is found.
func ExtractCPF(cert *x509.Certificate) string {
	if cert == nil {
		return ""
	}
	if m := elevenDigits.FindString(cert.Subject.CommonName); m != "" {
		return m
	}
	if m := elevenDigits.FindString(cert.Subject.SerialNumber); m != "" {
		return m
	}
	for _, ext := range cert.Extensions {
		if m := elevenDigits.Find(ext.Value); m != nil {
			return string(m)
		}
	}
	return ""
}
