package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"docsign/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// Columns is the audit export header row, shared by the CSV and XLSX exports.
var Columns = []string{
	"Timestamp (UTC)",
	"Unix",
	"Action",
	"Actor Type",
	"Actor ID",
	"Actor Name",
	"Actor CPF",
	"Actor Email",
	"IP",
	"User Agent",
	"Geo",
	"Document Hash",
	"Signature Hash",
	"Details",
	"Corrects Entry",
	"Prev Hash",
	"Entry Hash",
}

// Writer wraps csv.Writer for exporting audit trails as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(Columns)
}

// WriteEntries converts a batch of audit entries to CSV rows and writes them.
func (w *Writer) WriteEntries(entries []domain.AuditEntry) error {
	for i := range entries {
		if err := w.csv.Write(Row(&entries[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

// Row converts a single audit entry to a row aligned with Columns.
func Row(e *domain.AuditEntry) []string {
	row := make([]string, len(Columns))
	row[0] = e.Timestamp.UTC().Format(time.RFC3339)
	row[1] = strconv.FormatInt(e.TsUnix, 10)
	row[2] = string(e.Action)
	row[3] = string(e.ActorType)
	row[4] = e.ActorID
	row[5] = e.ActorName
	row[6] = e.ActorCPF
	row[7] = e.ActorEmail
	row[8] = e.IP
	row[9] = e.UserAgent
	row[10] = e.Geo
	row[11] = e.DocumentHash
	row[12] = e.SignatureHash
	row[13] = string(e.Details)
	if e.CorrectsEntryID != nil {
		row[14] = e.CorrectsEntryID.String()
	}
	row[15] = e.PrevHash
	row[16] = e.EntryHash
	return row
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a document title for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized filename for Content-Disposition header.
// Format: audit_{sanitized_title}_{YYYY-MM-DD}.{ext}
func BuildFilename(title, ext string, now time.Time) string {
	sanitized := SanitizeFilename(title)
	if sanitized == "" {
		sanitized = "document"
	}
	return fmt.Sprintf("audit_%s_%s.%s", sanitized, now.Format("2006-01-02"), ext)
}
