package projectfile

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DetectType picks the stored type from the declared content type and the
// file name.
func DetectType(name, contentType string) string {
	if strings.Contains(strings.ToLower(contentType), "pdf") {
		return TypePDF
	}
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return TypePDF
	}
	return TypeText
}

// ExtractText returns the plain text of an upload. PDFs are parsed; anything
// else is taken as UTF-8 text.
func ExtractText(fileType string, data []byte) (string, error) {
	if fileType != TypePDF {
		return string(data), nil
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %v", ErrInvalidInput, err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: read pdf text: %v", ErrInvalidInput, err)
	}
	var b strings.Builder
	if _, err := io.Copy(&b, plain); err != nil {
		return "", fmt.Errorf("%w: read pdf text: %v", ErrInvalidInput, err)
	}
	return strings.TrimSpace(b.String()), nil
}
