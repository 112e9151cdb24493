package noop

import (
	"context"

	"go.uber.org/zap"

	"docsign/internal/port"
)

type noopSender struct {
	log *zap.Logger
}

// NewNoopSender creates a Notifier that only logs receipts.
func NewNoopSender(log *zap.Logger) port.Notifier {
	return &noopSender{log: log.With(zap.String("component", "noop_email"))}
}

func (s *noopSender) SendSignatureReceipt(_ context.Context, r port.SignatureReceipt) error {
	s.log.Info("[NOOP EMAIL] signature receipt",
		zap.String("to", r.ToEmail),
		zap.String("protocol", r.ProtocolCode),
		zap.String("verification_url", r.VerificationURL))
	return nil
}
