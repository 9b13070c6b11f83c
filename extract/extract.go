// Package extract turns attachment bytes into text
package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MimePDF is the only type converted to text
const MimePDF = "application/pdf"

// Part is a node of a message's MIME tree
type Part struct {
	MimeType     string
	Filename     string
	AttachmentID string
	Parts        []Part
}

// FindParts walks parts depth-first and returns those with a target MIME
// type and an attachment id, in document order.
func FindParts(parts []Part, targets []string) []Part {
	var found []Part
	for _, p := range parts {
		if p.AttachmentID != "" && contains(targets, p.MimeType) {
			found = append(found, p)
		}
		if len(p.Parts) > 0 {
			found = append(found, FindParts(p.Parts, targets)...)
		}
	}
	return found
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// PDFText extracts the plain text of a PDF document
func PDFText(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// BinaryNotice is recorded for attachments that are not converted to text
func BinaryNotice(filename string, size int) string {
	return fmt.Sprintf("Binary content of %s was not processed to text. Size: %d bytes.", filename, size)
}

// Text converts an attachment to text. PDFs are extracted, anything else
// gets BinaryNotice.
func Text(mimeType, filename string, data []byte) (string, error) {
	if mimeType == MimePDF {
		return PDFText(data)
	}
	return BinaryNotice(filename, len(data)), nil
}
