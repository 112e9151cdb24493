package signing

import (
	"bytes"
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"image"
	_ "image/jpeg" // register decoders for signature images
	_ "image/png"
	"strings"
	"time"
	"unicode/utf8"

	"go.mozilla.org/pkcs7"

	"docsign/internal/certificate"
	"docsign/internal/domain"
)

const (
	minSignerNameLen = 5
	maxImageBytes    = 2 << 20
)

// Options configures an Engine.
type Options struct {
	// DegradedMode emits the raw-append scheme instead of a CMS container.
	DegradedMode bool
	// RequireRecognizedIssuer rejects certificates whose issuer is not recognized.
	RequireRecognizedIssuer bool
	// CPFPepper is mixed into the argon2id CPF hash stored in evidence packs.
	CPFPepper []byte
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// SignerInfo describes the party signing and the environment of the request.
type SignerInfo struct {
	Name      string
	CPF       string
	Email     string
	IP        string
	UserAgent string
}

// CertificateRequest is the input of SignWithCertificate. Password is zeroed
// before SignWithCertificate returns.
type CertificateRequest struct {
	PDF      []byte
	Bundle   []byte
	Password []byte
	Signer   SignerInfo
}

// CanvasRequest is the input of SignWithCanvas.
type CanvasRequest struct {
	PDF         []byte
	ImageBase64 string
	Signer      SignerInfo
}

// SignedArtifact is the output of a signing operation.
type SignedArtifact struct {
	Bytes         []byte                 `json:"-"`
	Hash          string                 `json:"hash"`
	SignatureHash string                 `json:"signature_hash"`
	DocumentHash  string                 `json:"document_hash"`
	Type          domain.SignatureType   `json:"type"`
	Scheme        domain.SignatureScheme `json:"scheme"`
	SignerName    string                 `json:"signer_name"`
	SignerCPF     string                 `json:"-"`
	CertSerial    string                 `json:"cert_serial,omitempty"`
	SignedAt      time.Time              `json:"signed_at"`
	Certificate   *certificate.Info      `json:"certificate,omitempty"`
	Evidence      *domain.EvidencePack   `json:"evidence"`
}

// Engine produces and verifies signed artifacts.
type Engine struct {
	extractor *certificate.Extractor
	validator *certificate.Validator
	opts      Options
}

// NewEngine creates a signing Engine.
func NewEngine(extractor *certificate.Extractor, validator *certificate.Validator, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Engine{extractor: extractor, validator: validator, opts: opts}
}

// SignWithCertificate signs req.PDF with the key in a PKCS#12 bundle. Key
// material and the password are wiped on every return path.
func (e *Engine) SignWithCertificate(req *CertificateRequest) (*SignedArtifact, error) {
	defer clear(req.Password)

	if len(req.PDF) == 0 {
		return nil, domain.NewSigningError(domain.StageInput, domain.ErrInvalidInput)
	}

	bundle, err := e.extractor.Extract(req.Bundle, req.Password)
	if err != nil {
		return nil, domain.NewSigningError(domain.StageExtract, err)
	}
	defer bundle.Destroy()

	now := e.opts.Clock().UTC()
	info, err := e.validator.Validate(bundle.Certificate, bundle.ExtraCerts, now)
	if err != nil {
		return nil, domain.NewSigningError(domain.StageValidate, err)
	}
	if e.opts.RequireRecognizedIssuer && !info.IssuerRecognized {
		return nil, domain.NewSigningError(domain.StageValidate, domain.ErrIssuerUnrecognized)
	}

	// Only a CPF read from the certificate is recorded. A CPF the caller
	// supplies must be confirmed by the certificate, never adopted.
	cpf := certificate.ExtractCPF(bundle.Certificate)
	if given := domain.NormalizeCPF(req.Signer.CPF); given != "" {
		switch {
		case cpf == "":
			return nil, domain.NewSigningError(domain.StageValidate, domain.ErrCertificateHasNoCPF)
		case given != cpf:
			return nil, domain.NewSigningError(domain.StageValidate, domain.ErrCPFMismatch)
		}
	}

	digest := sha256.Sum256(req.PDF)

	var maskedCPF string
	if cpf != "" {
		maskedCPF = domain.MaskCPF(cpf)
	}
	block := &Block{
		Type:       domain.SignatureTypeDigital,
		SignerName: info.CommonName,
		SignerCPF:  maskedCPF,
		CertSerial: info.Serial,
		Digest:     hex.EncodeToString(digest[:]),
		IP:         req.Signer.IP,
		SignedAt:   now,
	}

	if e.opts.DegradedMode {
		sig, err := signDigest(bundle.PrivateKey, digest[:])
		if err != nil {
			return nil, domain.NewSigningError(domain.StageSign, errors.Join(domain.ErrSigningFailed, err))
		}
		block.Scheme = domain.SchemeRawAppend
		block.Signature = sig
		block.Certificate = bundle.Certificate.Raw
	} else {
		der, err := signCMS(req.PDF, bundle)
		if err != nil {
			return nil, domain.NewSigningError(domain.StageSign, errors.Join(domain.ErrSigningFailed, err))
		}
		block.Scheme = domain.SchemeCMSDetached
		block.Signature = der
	}

	out, err := appendBlock(req.PDF, block)
	if err != nil {
		return nil, domain.NewSigningError(domain.StageEmbed, errors.Join(domain.ErrSigningFailed, err))
	}

	artifact := e.finish(out, block, digest[:])
	artifact.SignerCPF = cpf
	artifact.Certificate = info
	artifact.Evidence.Certificate = info.Evidence()
	artifact.Evidence.IP = req.Signer.IP
	artifact.Evidence.UserAgent = req.Signer.UserAgent
	return artifact, nil
}

func signCMS(content []byte, bundle *certificate.Bundle) ([]byte, error) {
	sd, err := pkcs7.NewSignedData(content)
	if err != nil {
		return nil, err
	}
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	if err := sd.AddSignerChain(bundle.Certificate, bundle.PrivateKey, bundle.ExtraCerts, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, err
	}
	sd.Detach()
	return sd.Finish()
}

func signDigest(key crypto.Signer, digest []byte) ([]byte, error) {
	if _, ok := key.(ed25519.PrivateKey); ok {
		return key.Sign(rand.Reader, digest, crypto.Hash(0))
	}
	return key.Sign(rand.Reader, digest, crypto.SHA256)
}

// SignWithCanvas embeds a hand-drawn signature image and signer metadata
// into req.PDF. The evidence pack stores only a salted hash of the CPF.
func (e *Engine) SignWithCanvas(req *CanvasRequest) (*SignedArtifact, error) {
	if len(req.PDF) == 0 {
		return nil, domain.NewSigningError(domain.StageInput, domain.ErrInvalidInput)
	}
	if !domain.ValidateCPF(req.Signer.CPF) {
		return nil, domain.NewSigningError(domain.StageInput, domain.ErrInvalidCPF)
	}
	name := strings.TrimSpace(req.Signer.Name)
	if utf8.RuneCountInString(name) < minSignerNameLen {
		return nil, domain.NewSigningError(domain.StageInput, domain.ErrInvalidName)
	}
	img, imgType, err := decodeImage(req.ImageBase64)
	if err != nil {
		return nil, domain.NewSigningError(domain.StageInput, err)
	}

	cpf := domain.NormalizeCPF(req.Signer.CPF)
	now := e.opts.Clock().UTC()
	digest := sha256.Sum256(req.PDF)

	block := &Block{
		Scheme:     domain.SchemeElectronic,
		Type:       domain.SignatureTypeElectronic,
		SignerName: name,
		SignerCPF:  domain.MaskCPF(cpf),
		Digest:     hex.EncodeToString(digest[:]),
		Image:      img,
		ImageType:  imgType,
		IP:         req.Signer.IP,
		SignedAt:   now,
	}
	out, err := appendBlock(req.PDF, block)
	if err != nil {
		return nil, domain.NewSigningError(domain.StageEmbed, errors.Join(domain.ErrEmbedFailed, err))
	}

	cpfHash, salt, err := HashCPF(cpf, e.opts.CPFPepper)
	if err != nil {
		return nil, domain.NewSigningError(domain.StageHash, err)
	}

	artifact := e.finish(out, block, digest[:])
	artifact.SignerCPF = cpf
	imgSum := sha256.Sum256(img)
	artifact.Evidence.CPFHash = cpfHash
	artifact.Evidence.CPFSalt = salt
	artifact.Evidence.ImageHash = hex.EncodeToString(imgSum[:])
	artifact.Evidence.IP = req.Signer.IP
	artifact.Evidence.UserAgent = req.Signer.UserAgent
	artifact.Evidence.EnvironmentHash = environmentHash(
		name, cpfHash, req.Signer.Email, req.Signer.IP, req.Signer.UserAgent, now.Format(time.RFC3339Nano),
	)
	return artifact, nil
}

func (e *Engine) finish(out []byte, block *Block, digest []byte) *SignedArtifact {
	hash := sha256Hex(out)
	docHash := hex.EncodeToString(digest)
	return &SignedArtifact{
		Bytes:         out,
		Hash:          hash,
		SignatureHash: sha256Hex([]byte(hash)),
		DocumentHash:  docHash,
		Type:          block.Type,
		Scheme:        block.Scheme,
		SignerName:    block.SignerName,
		CertSerial:    block.CertSerial,
		SignedAt:      block.SignedAt,
		Evidence: &domain.EvidencePack{
			Type:            block.Type,
			Scheme:          block.Scheme,
			DocumentHash:    docHash,
			ArtifactHash:    hash,
			SignerName:      block.SignerName,
			SignerCPFMasked: block.SignerCPF,
			ServerTime:      block.SignedAt,
		},
	}
}

// decodeImage accepts raw base64 or a data: URI and requires a PNG or JPEG payload.
func decodeImage(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.IndexByte(s, ',')
		if i < 0 {
			return nil, "", domain.ErrInvalidImage
		}
		s = s[i+1:]
	}
	if s == "" || base64.StdEncoding.DecodedLen(len(s)) > maxImageBytes {
		return nil, "", domain.ErrInvalidImage
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(s)
		if err != nil {
			return nil, "", domain.ErrInvalidImage
		}
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		return nil, "", domain.ErrInvalidImage
	}
	return raw, format, nil
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	return sha256Hex(data)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
