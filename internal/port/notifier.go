package port

import (
	"context"
	"time"
)

// SignatureReceipt is the content of the email sent to a signer after signing.
type SignatureReceipt struct {
	ToEmail         string
	ToName          string
	DocumentTitle   string
	ProtocolCode    string
	VerificationURL string
	ArtifactHash    string
	SignedAt        time.Time
}

// Notifier delivers signing receipts.
type Notifier interface {
	SendSignatureReceipt(ctx context.Context, receipt SignatureReceipt) error
}
