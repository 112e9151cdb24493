// Package render produces printable certificates from verification reports.
package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"docsign/internal/domain"
	"docsign/internal/port"
)

// HTMLRenderer renders a verification report as a self-contained HTML page
// suitable for printing to PDF from a browser.
type HTMLRenderer struct {
	tmpl     *template.Template
	location *time.Location
}

var _ port.CertificateRenderer = (*HTMLRenderer)(nil)

// NewHTMLRenderer parses the certificate template. Times are displayed in loc,
// or UTC when loc is nil.
func NewHTMLRenderer(loc *time.Location) (*HTMLRenderer, error) {
	if loc == nil {
		loc = time.UTC
	}
	r := &HTMLRenderer{location: loc}
	tmpl, err := template.New("certificate").Funcs(template.FuncMap{
		"ts":    r.formatTime,
		"tsPtr": r.formatTimePtr,
	}).Parse(certificateTemplate)
	if err != nil {
		return nil, fmt.Errorf("render: parsing certificate template: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

func (r *HTMLRenderer) RenderCertificate(_ context.Context, report *domain.VerificationReport) (*port.RenderedDocument, error) {
	if report == nil {
		return nil, domain.ErrInvalidInput
	}
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, report); err != nil {
		return nil, fmt.Errorf("render: executing certificate template: %w", err)
	}
	return &port.RenderedDocument{ContentType: "text/html; charset=utf-8", Body: buf.Bytes()}, nil
}

func (r *HTMLRenderer) formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(r.location).Format("02/01/2006 15:04:05 MST")
}

func (r *HTMLRenderer) formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return r.formatTime(*t)
}

const certificateTemplate = `<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>Verification certificate{{with .Protocol}} {{.Code}}{{end}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 32px; color: #222; }
h1 { font-size: 20px; margin-bottom: 4px; }
.status { font-weight: bold; padding: 6px 10px; display: inline-block; }
.valid { background: #e3f5e1; color: #1b6e20; }
.invalid { background: #fbe3e3; color: #a12020; }
table { border-collapse: collapse; width: 100%; margin-top: 16px; }
th, td { border: 1px solid #ccc; padding: 6px 8px; font-size: 12px; text-align: left; }
code { font-size: 11px; word-break: break-all; }
@media print { body { margin: 12mm; } }
</style>
</head>
<body>
<h1>Document verification certificate</h1>
{{if .Valid}}<span class="status valid">VALID</span>{{else}}<span class="status invalid">NOT VALID</span>{{end}}
{{with .Message}}<p>{{.}}</p>{{end}}

<table>
<tr><th>Document</th><td>{{with .Document}}{{.Title}}{{else}}-{{end}}</td></tr>
<tr><th>SHA-256</th><td><code>{{.DocumentHash}}</code></td></tr>
{{with .Protocol}}
<tr><th>Protocol</th><td>{{.Code}} ({{.Status}})</td></tr>
<tr><th>Issued</th><td>{{ts .CreatedAt}}</td></tr>
<tr><th>Expires</th><td>{{ts .ExpiresAt}}</td></tr>
<tr><th>Verifications</th><td>{{.VerificationCount}}</td></tr>
{{end}}
{{with .VerificationURL}}<tr><th>Verify at</th><td><a href="{{.}}">{{.}}</a></td></tr>{{end}}
<tr><th>Generated</th><td>{{ts .GeneratedAt}}</td></tr>
</table>

<h2>Signatures</h2>
<table>
<tr><th>Signer</th><th>CPF</th><th>Type</th><th>Status</th><th>Signed at</th><th>Signature hash</th></tr>
{{range .Signatures}}
<tr>
<td>{{.SignerName}}{{with .SignerParty}} ({{.}}){{end}}</td>
<td>{{.SignerCPF}}</td>
<td>{{.SignatureType}}</td>
<td>{{.Status}}</td>
<td>{{tsPtr .SignedAt}}</td>
<td><code>{{.SignatureHash}}</code></td>
</tr>
{{else}}
<tr><td colspan="6">No signatures.</td></tr>
{{end}}
</table>

{{if .RecentAudit}}
<h2>Recent activity</h2>
<table>
<tr><th>When</th><th>Action</th><th>Actor</th><th>IP</th><th>Location</th></tr>
{{range .RecentAudit}}
<tr><td>{{ts .Timestamp}}</td><td>{{.Action}}</td><td>{{.ActorName}}{{with .ActorCPF}} {{.}}{{end}}</td><td>{{.IP}}</td><td>{{.Geo}}</td></tr>
{{end}}
</table>
{{end}}
</body>
</html>
`
