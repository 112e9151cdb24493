package certificate

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"math/big"

	pkcs12 "software.sslmate.com/src/go-pkcs12"

	"docsign/internal/domain"
)

// Bundle is the decoded content of a PKCS#12 file. The private key must be
// released with Destroy as soon as the signing call returns.
type Bundle struct {
	Certificate *x509.Certificate
	PrivateKey  crypto.Signer
	ExtraCerts  []*x509.Certificate
}

// Destroy zeroes the exported private key material held by the bundle. It is
// safe to call more than once and on a nil receiver. The crypto/rsa key also
// keeps unexported precomputed values that cannot be reached from here; they
// are released with the key and left to the garbage collector.
func (b *Bundle) Destroy() {
	if b == nil || b.PrivateKey == nil {
		return
	}
	switch k := b.PrivateKey.(type) {
	case *rsa.PrivateKey:
		wipeInt(k.D)
		for _, p := range k.Primes {
			wipeInt(p)
		}
		wipeInt(k.Precomputed.Dp)
		wipeInt(k.Precomputed.Dq)
		wipeInt(k.Precomputed.Qinv)
	case *ecdsa.PrivateKey:
		wipeInt(k.D)
	case ed25519.PrivateKey:
		clear(k)
	}
	b.PrivateKey = nil
}

func wipeInt(x *big.Int) {
	if x == nil {
		return
	}
	clear(x.Bits())
	x.SetInt64(0)
}

// Extractor opens password-protected PKCS#12 bundles.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract decodes bundle with password. The password slice is not retained.
func (e *Extractor) Extract(bundle, password []byte) (*Bundle, error) {
	if len(bundle) == 0 {
		return nil, domain.ErrMalformedBundle
	}

	// DecodeChain only takes a string, so this makes an immutable copy of the
	// password that lives until collected. The caller's slice is still wiped.
	key, cert, caCerts, err := pkcs12.DecodeChain(bundle, string(password))
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, domain.ErrWrongPassword
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedBundle, err)
	}
	if cert == nil {
		return nil, fmt.Errorf("%w: bundle has no certificate", domain.ErrMalformedBundle)
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported private key type %T", domain.ErrMalformedBundle, key)
	}

	return &Bundle{
		Certificate: cert,
		PrivateKey:  signer,
		ExtraCerts:  caCerts,
	}, nil
}
