package certificate

import (
	"crypto/x509"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultIssuers lists name fragments of ICP-Brasil certificate authorities.
var DefaultIssuers = []string{
	"ICP-Brasil",
	"AC Raiz",
	"AC SOLUTI",
	"AC SERASA",
	"AC CERTISIGN",
	"AC VALID",
	"AC SAFEWEB",
	"AC DIGITALSIGN",
	"AC SERPRO",
	"AC CAIXA",
	"AC BR RFB",
	"Autoridade Certificadora",
}

type issuersFile struct {
	Issuers []string `yaml:"issuers"`
}

// LoadIssuers reads issuer name fragments from a YAML file of the form
//
//	issuers:
//	  - "AC SOLUTI"
//	  - "AC SERASA"
//
// An empty path returns DefaultIssuers.
func LoadIssuers(path string) ([]string, error) {
	if path == "" {
		return DefaultIssuers, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading issuers file: %w", err)
	}
	var f issuersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing issuers file: %w", err)
	}
	if len(f.Issuers) == 0 {
		return nil, fmt.Errorf("issuers file %s lists no issuers", path)
	}
	return f.Issuers, nil
}

// LoadTrustRoots reads PEM-encoded root certificates. An empty path returns
// nil, which selects name-fragment issuer matching.
func LoadTrustRoots(path string) (*x509.CertPool, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trust roots: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}
