// Package source fetches the configured document and converts it to text.
package source

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/hunterwarburton/pantry/internal/core"
)

// MIME types handled by Extract.
const (
	MimePlain = "text/plain"
	MimeCSV   = "text/csv"
	MimePDF   = "application/pdf"
)

// Extract converts raw document bytes of the given MIME type to text.
func Extract(mimeType string, data []byte) (string, error) {
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))

	switch {
	case mt == MimePDF:
		return extractPDF(data)
	case strings.HasPrefix(mt, "text/"):
		return strings.ToValidUTF8(string(data), ""), nil
	}
	return "", fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, mimeType)
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: failed to open pdf: %v", core.ErrDownloadFailed, err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: failed to read pdf text: %v", core.ErrDownloadFailed, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("%w: failed to read pdf buffer: %v", core.ErrDownloadFailed, err)
	}
	return buf.String(), nil
}
