package readers

import (
	"fmt"

	"code.sajari.com/docconv/v2"
)

// DocconvReader extracts pdf and docx documents. PDF conversion needs the
// poppler pdftotext tool on PATH.
type DocconvReader struct{}

func (r *DocconvReader) Exts() []string {
	return []string{".pdf", ".docx"}
}

func (r *DocconvReader) ReadText(path string) (string, error) {
	res, err := docconv.ConvertPath(path)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}

	return res.Body, nil
}
