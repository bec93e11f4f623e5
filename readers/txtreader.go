package readers

import (
	"errors"
	"fmt"
	"os"
	"unicode/utf8"
)

var ErrInvalidEncoding = errors.New("invalid utf-8 encoding")

type TxtFileReader struct{}

func (r *TxtFileReader) Exts() []string {
	return []string{".txt", ".md"}
}

func (r *TxtFileReader) ReadText(path string) (string, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading text file: %w", err)
	}

	if !utf8.Valid(buf) {
		return "", fmt.Errorf("reading text file %s: %w", path, ErrInvalidEncoding)
	}

	return string(buf), nil
}
