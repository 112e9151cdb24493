package certificate_test

import (
	"crypto/rsa"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsign/internal/certificate"
	"docsign/internal/domain"
	"docsign/internal/testutil"
)

func TestExtractor_Extract(t *testing.T) {
	id := testutil.NewIdentity(t, testutil.CertOptions{})
	bundle := id.Bundle(t, testutil.BundlePassword)

	b, err := certificate.NewExtractor().Extract(bundle, []byte(testutil.BundlePassword))
	require.NoError(t, err)
	assert.Equal(t, id.Cert.SerialNumber, b.Certificate.SerialNumber)
	assert.NotNil(t, b.PrivateKey)
	require.Len(t, b.ExtraCerts, 1)

	key, ok := b.PrivateKey.(*rsa.PrivateKey)
	require.True(t, ok)
	password := []byte(testutil.BundlePassword)
	_, err = certificate.NewExtractor().Extract(bundle, password)
	require.NoError(t, err)
	assert.Equal(t, []byte(testutil.BundlePassword), password, "the caller owns the password slice")

	b.Destroy()
	assert.Nil(t, b.PrivateKey)
	assert.Zero(t, key.D.Sign())
	for _, p := range key.Primes {
		assert.Zero(t, p.Sign())
	}
	assert.Zero(t, key.Precomputed.Dp.Sign())
	b.Destroy()
}

func TestExtractor_WrongPassword(t *testing.T) {
	bundle := testutil.NewIdentity(t, testutil.CertOptions{}).Bundle(t, testutil.BundlePassword)

	_, err := certificate.NewExtractor().Extract(bundle, []byte("nope"))
	assert.ErrorIs(t, err, domain.ErrWrongPassword)
}

func TestExtractor_Malformed(t *testing.T) {
	e := certificate.NewExtractor()

	_, err := e.Extract(nil, []byte("x"))
	assert.ErrorIs(t, err, domain.ErrMalformedBundle)

	_, err = e.Extract([]byte("not a pkcs12 file"), []byte("x"))
	assert.ErrorIs(t, err, domain.ErrMalformedBundle)
}

func TestValidator_Validate(t *testing.T) {
	id := testutil.NewIdentity(t, testutil.CertOptions{})
	v := certificate.NewValidator(certificate.DefaultIssuers, nil)

	info, err := v.Validate(id.Cert, nil, time.Now())
	require.NoError(t, err)
	assert.True(t, info.IssuerRecognized)
	assert.Equal(t, certificate.IssuerCheckNameFragment, info.IssuerCheck)
	assert.Equal(t, "MARIA SILVA:"+testutil.SignerCPF, info.CommonName)
	assert.Len(t, info.Fingerprint, 64)
	assert.NotEmpty(t, info.Serial)
}

func TestValidator_ValidityWindow(t *testing.T) {
	now := time.Now()
	v := certificate.NewValidator(certificate.DefaultIssuers, nil)

	expired := testutil.NewIdentity(t, testutil.CertOptions{
		NotBefore: now.AddDate(-2, 0, 0),
		NotAfter:  now.AddDate(-1, 0, 0),
	})
	_, err := v.Validate(expired.Cert, nil, now)
	assert.ErrorIs(t, err, domain.ErrCertificateExpired)

	future := testutil.NewIdentity(t, testutil.CertOptions{
		NotBefore: now.Add(24 * time.Hour),
		NotAfter:  now.AddDate(1, 0, 0),
	})
	_, err = v.Validate(future.Cert, nil, now)
	assert.ErrorIs(t, err, domain.ErrCertificateNotYetValid)

	_, err = v.Validate(nil, nil, now)
	assert.ErrorIs(t, err, domain.ErrMalformedCertificate)
}

func TestValidator_UnknownIssuer(t *testing.T) {
	id := testutil.NewIdentity(t, testutil.CertOptions{IssuerName: "Homegrown Test CA"})
	v := certificate.NewValidator([]string{"AC SOLUTI"}, nil)

	info, err := v.Validate(id.Cert, nil, time.Now())
	require.NoError(t, err)
	assert.False(t, info.IssuerRecognized)
}

func TestValidator_TrustRoots(t *testing.T) {
	id := testutil.NewIdentity(t, testutil.CertOptions{IssuerName: "Homegrown Test CA"})

	roots := x509.NewCertPool()
	roots.AddCert(id.CA)
	info, err := certificate.NewValidator(nil, roots).Validate(id.Cert, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, certificate.IssuerCheckChain, info.IssuerCheck)
	assert.True(t, info.IssuerRecognized)

	other := testutil.NewIdentity(t, testutil.CertOptions{IssuerName: "Another CA"})
	emptyRoots := x509.NewCertPool()
	emptyRoots.AddCert(other.Cert)
	info, err = certificate.NewValidator(nil, emptyRoots).Validate(id.Cert, nil, time.Now())
	require.NoError(t, err)
	assert.False(t, info.IssuerRecognized)
}

func TestExtractCPF(t *testing.T) {
	id := testutil.NewIdentity(t, testutil.CertOptions{})
	assert.Equal(t, testutil.SignerCPF, certificate.ExtractCPF(id.Cert))

	noCPF := testutil.NewIdentity(t, testutil.CertOptions{CommonName: "Maria Silva"})
	assert.Equal(t, "", certificate.ExtractCPF(noCPF.Cert))
	assert.Equal(t, "", certificate.ExtractCPF(nil))
}

func TestLoadIssuers(t *testing.T) {
	issuers, err := certificate.LoadIssuers("")
	require.NoError(t, err)
	assert.Equal(t, certificate.DefaultIssuers, issuers)

	path := filepath.Join(t.TempDir(), "issuers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("issuers:\n  - \"AC Teste\"\n  - \"AC Outra\"\n"), 0o600))
	issuers, err = certificate.LoadIssuers(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AC Teste", "AC Outra"}, issuers)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("issuers: []\n"), 0o600))
	_, err = certificate.LoadIssuers(empty)
	assert.Error(t, err)
}

func TestLoadTrustRoots(t *testing.T) {
	pool, err := certificate.LoadTrustRoots("")
	require.NoError(t, err)
	assert.Nil(t, pool)

	id := testutil.NewIdentity(t, testutil.CertOptions{})
	path := filepath.Join(t.TempDir(), "roots.pem")
	require.NoError(t, os.WriteFile(path, id.CAPEM(), 0o600))
	pool, err = certificate.LoadTrustRoots(path)
	require.NoError(t, err)
	assert.NotNil(t, pool)

	bad := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0o600))
	_, err = certificate.LoadTrustRoots(bad)
	assert.Error(t, err)
}
