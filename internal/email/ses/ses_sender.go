package ses

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"docsign/internal/port"
)

type sesSender struct {
	client      *sesv2.Client
	fromAddress string
	fromName    string
	log         *zap.Logger
}

// NewSESSender creates a new SES-backed Notifier.
func NewSESSender(region, fromAddress, fromName string, log *zap.Logger) (port.Notifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	client := sesv2.NewFromConfig(cfg)
	return &sesSender{
		client:      client,
		fromAddress: fromAddress,
		fromName:    fromName,
		log:         log.With(zap.String("component", "ses")),
	}, nil
}

func (s *sesSender) SendSignatureReceipt(ctx context.Context, r port.SignatureReceipt) error {
	if r.ToEmail == "" {
		return nil
	}

	subject := fmt.Sprintf("Signature receipt: %s", r.DocumentTitle)
	htmlBody, err := buildReceiptHTML(r)
	if err != nil {
		return fmt.Errorf("rendering receipt: %w", err)
	}
	textBody := buildReceiptText(r)

	from := fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)

	_, err = s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &from,
		Destination: &types.Destination{
			ToAddresses: []string{r.ToEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &subject},
				Body: &types.Body{
					Html: &types.Content{Data: &htmlBody},
					Text: &types.Content{Data: &textBody},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	s.log.Info("ses.SendSignatureReceipt: sent", zap.String("protocol", r.ProtocolCode))
	return nil
}

func buildReceiptText(r port.SignatureReceipt) string {
	return fmt.Sprintf("Hi %s,\n\nYour signature on %q was recorded at %s.\n\nProtocol: %s\nDocument hash: %s\nVerify at: %s\n",
		r.ToName, r.DocumentTitle, r.SignedAt.UTC().Format("2006-01-02 15:04:05 MST"),
		r.ProtocolCode, r.ArtifactHash, r.VerificationURL)
}

var receiptTmpl = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">Signature recorded</h2>
  <p>Hi {{.ToName}},</p>
  <p>Your signature on <strong>{{.DocumentTitle}}</strong> was recorded at {{.SignedAt.UTC.Format "2006-01-02 15:04:05 MST"}}.</p>
  <p>Protocol: <strong>{{.ProtocolCode}}</strong></p>
  <p style="word-break: break-all; color: #666;">Document hash: {{.ArtifactHash}}</p>
  <p style="text-align: center; margin: 30px 0;">
    <a href="{{.VerificationURL}}" style="background-color: #4F46E5; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">Verify document</a>
  </p>
</body>
</html>`))

func buildReceiptHTML(r port.SignatureReceipt) (string, error) {
	var b strings.Builder
	if err := receiptTmpl.Execute(&b, r); err != nil {
		return "", err
	}
	return b.String(), nil
}
