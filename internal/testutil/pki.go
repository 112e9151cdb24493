// Package testutil builds certificates, PKCS#12 bundles and sample documents
// for tests.
package testutil

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"image"
	"image/color"
	"image/png"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

const (
	SignerName     = "Maria Silva"
	SignerCPF      = "52998224725"
	SignerEmail    = "maria.silva@example.com"
	BundlePassword = "s3cret-pass"
	IssuerName     = "AC SOLUTI Multipla v5"
)

var (
	keysOnce sync.Once
	caKey    *rsa.PrivateKey
	leafKey  *rsa.PrivateKey
	keysErr  error
)

func keys(t testing.TB) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	keysOnce.Do(func() {
		if caKey, keysErr = rsa.GenerateKey(rand.Reader, 2048); keysErr != nil {
			return
		}
		leafKey, keysErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	require.NoError(t, keysErr)
	return caKey, leafKey
}

// CertOptions shapes the leaf certificate issued by NewIdentity.
type CertOptions struct {
	CommonName string
	IssuerName string
	NotBefore  time.Time
	NotAfter   time.Time
}

// Identity is a leaf certificate, its key and the CA that issued it.
type Identity struct {
	Cert *x509.Certificate
	Key  *rsa.PrivateKey
	CA   *x509.Certificate
}

// NewIdentity issues a leaf certificate. Zero options produce a certificate
// for Maria Silva, valid for a year and issued by a recognized CA.
func NewIdentity(t testing.TB, opts CertOptions) *Identity {
	t.Helper()
	if opts.CommonName == "" {
		opts.CommonName = "MARIA SILVA:" + SignerCPF
	}
	if opts.IssuerName == "" {
		opts.IssuerName = IssuerName
	}
	now := time.Now()
	if opts.NotBefore.IsZero() {
		opts.NotBefore = now.Add(-time.Hour)
	}
	if opts.NotAfter.IsZero() {
		opts.NotAfter = now.AddDate(1, 0, 0)
	}

	ck, lk := keys(t)

	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: opts.IssuerName, Organization: []string{"ICP-Brasil"}},
		NotBefore:             now.AddDate(-1, 0, 0),
		NotAfter:              now.AddDate(5, 0, 0),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &ck.PublicKey, ck)
	require.NoError(t, err)
	ca, err := x509.ParseCertificate(caDER)
	require.NoError(t, err)

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	require.NoError(t, err)
	leafTmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: opts.CommonName, Country: []string{"BR"}},
		NotBefore:    opts.NotBefore,
		NotAfter:     opts.NotAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageEmailProtection},
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, ca, &lk.PublicKey, ck)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(leafDER)
	require.NoError(t, err)

	return &Identity{Cert: leaf, Key: lk, CA: ca}
}

// Bundle encodes the identity as a password-protected PKCS#12 file.
func (id *Identity) Bundle(t testing.TB, password string) []byte {
	t.Helper()
	data, err := pkcs12.Modern.Encode(id.Key, id.Cert, []*x509.Certificate{id.CA}, password)
	require.NoError(t, err)
	return data
}

// CAPEM returns the issuing CA as a PEM block.
func (id *Identity) CAPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: id.CA.Raw})
}

// SamplePDF returns a small, well-formed single-page PDF.
func SamplePDF() []byte {
	return []byte("%PDF-1.4\n" +
		"1 0 obj << /Type /Catalog /Pages 2 0 R >> endobj\n" +
		"2 0 obj << /Type /Pages /Kids [3 0 R] /Count 1 >> endobj\n" +
		"3 0 obj << /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >> endobj\n" +
		"trailer << /Root 1 0 R >>\n" +
		"%%EOF\n")
}

// SignaturePNG returns a base64-encoded PNG suitable as a canvas signature.
func SignaturePNG(t testing.TB) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for x := 0; x < 8; x++ {
		img.Set(x, x%4, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}
