package signing

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"docsign/internal/domain"
)

// The signature block is appended after the signed bytes as PDF comment lines,
// which readers ignore after %%EOF. Each signing appends a new block covering
// everything before it, so multiple parties nest.
var (
	blockBegin = []byte("\n%%DOCSIGN-SIGNATURE-BEGIN\n")
	blockEnd   = []byte("%%DOCSIGN-SIGNATURE-END\n")
)

const (
	blockVersion   = 1
	blockLineWidth = 76
)

// Block is the structured signature record embedded in a signed artifact.
type Block struct {
	Version     int                    `json:"v"`
	Scheme      domain.SignatureScheme `json:"scheme"`
	Type        domain.SignatureType   `json:"type"`
	SignerName  string                 `json:"signer_name"`
	SignerCPF   string                 `json:"signer_cpf"`
	CertSerial  string                 `json:"cert_serial,omitempty"`
	Digest      string                 `json:"digest"`
	Signature   []byte                 `json:"signature,omitempty"`
	Certificate []byte                 `json:"certificate,omitempty"`
	Image       []byte                 `json:"image,omitempty"`
	ImageType   string                 `json:"image_type,omitempty"`
	IP          string                 `json:"ip,omitempty"`
	SignedAt    time.Time              `json:"signed_at"`
}

// appendBlock returns content followed by the encoded block. content is not modified.
func appendBlock(content []byte, b *Block) ([]byte, error) {
	b.Version = blockVersion
	payload, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encoding signature block: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(payload)

	var out bytes.Buffer
	out.Grow(len(content) + len(encoded) + len(encoded)/blockLineWidth*2 + 64)
	out.Write(content)
	out.Write(blockBegin)
	for len(encoded) > 0 {
		n := min(blockLineWidth, len(encoded))
		out.WriteByte('%')
		out.WriteString(encoded[:n])
		out.WriteByte('\n')
		encoded = encoded[n:]
	}
	out.Write(blockEnd)
	return out.Bytes(), nil
}

// splitLastBlock separates the outermost signature block from the bytes it covers.
func splitLastBlock(artifact []byte) (content []byte, b *Block, err error) {
	start := bytes.LastIndex(artifact, blockBegin)
	if start < 0 {
		return nil, nil, domain.ErrNoSignatureFound
	}
	content = artifact[:start]
	rest := artifact[start+len(blockBegin):]

	end := bytes.Index(rest, blockEnd)
	if end < 0 {
		return content, nil, domain.ErrMalformedBlock
	}
	if trailing := rest[end+len(blockEnd):]; len(trailing) > 0 {
		// Bytes appended after the block are not covered by any signature.
		return content, nil, domain.ErrHashMismatch
	}

	var encoded bytes.Buffer
	for _, line := range bytes.Split(rest[:end], []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		if line[0] != '%' {
			return content, nil, domain.ErrMalformedBlock
		}
		encoded.Write(line[1:])
	}

	payload, err := base64.StdEncoding.DecodeString(encoded.String())
	if err != nil {
		return content, nil, domain.ErrMalformedBlock
	}
	b = &Block{}
	if err := json.Unmarshal(payload, b); err != nil {
		return content, nil, domain.ErrMalformedBlock
	}
	if b.Version != blockVersion || b.Digest == "" {
		return content, nil, domain.ErrMalformedBlock
	}
	return content, b, nil
}

// hasBlock reports whether data carries at least one signature block marker.
func hasBlock(data []byte) bool {
	return bytes.Contains(data, blockBegin)
}
