package readers

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var ErrUnsupported = errors.New("unsupported document type")

// Extraction is the outcome of reading a document: either its text or the
// reason it could not be read.
type Extraction struct {
	Text string
	Err  error
}

func Text(text string) Extraction {
	return Extraction{Text: text}
}

func Unreadable(err error) Extraction {
	return Extraction{Err: err}
}

// Readable reports whether the document produced any non-blank text.
func (e Extraction) Readable() bool {
	return e.Err == nil && strings.TrimSpace(e.Text) != ""
}

type FileReader interface {
	Exts() []string
	ReadText(path string) (string, error)
}

// Extractor dispatches documents to the reader registered for their extension.
type Extractor struct {
	readers map[string]FileReader
}

func NewExtractor(readers ...FileReader) (*Extractor, error) {
	e := &Extractor{readers: make(map[string]FileReader)}
	for _, r := range readers {
		for _, ext := range r.Exts() {
			if _, ok := e.readers[ext]; ok {
				return nil, fmt.Errorf("reader already registered for type %s", ext)
			}
			e.readers[ext] = r
		}
	}

	return e, nil
}

// Default returns an extractor for md, txt, pdf, docx and epub documents.
func Default() *Extractor {
	return mustExtractor(&TxtFileReader{}, &DocconvReader{}, &EpubReader{})
}

func mustExtractor(readers ...FileReader) *Extractor {
	e, err := NewExtractor(readers...)
	if err != nil {
		panic(err)
	}

	return e
}

func (e *Extractor) Extract(path string) (res Extraction) {
	ext := strings.ToLower(filepath.Ext(path))
	reader, ok := e.readers[ext]
	if !ok {
		return Unreadable(fmt.Errorf("%w: %s", ErrUnsupported, ext))
	}

	// some converters panic on malformed input
	defer func() {
		if r := recover(); r != nil {
			res = Unreadable(fmt.Errorf("failed to read %s: %v", path, r))
		}
	}()

	text, err := reader.ReadText(path)
	if err != nil {
		return Unreadable(err)
	}

	return Text(text)
}
