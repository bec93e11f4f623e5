package index

import (
	"errors"
	"fmt"
	"strings"
)

const DefaultContextTemplate = "\n<|source|> : {fname}\n{snippet}\n"

var ErrMissingPlaceholder = errors.New("template is missing a placeholder")

// ContextTemplate renders retrieved chunks for a text generation prompt.
type ContextTemplate struct {
	tmpl string
}

func NewContextTemplate(tmpl string) (*ContextTemplate, error) {
	for _, field := range []string{"{fname}", "{snippet}"} {
		if !strings.Contains(tmpl, field) {
			return nil, fmt.Errorf("%w: %s", ErrMissingPlaceholder, field)
		}
	}

	return &ContextTemplate{tmpl: tmpl}, nil
}

func (t *ContextTemplate) Render(fname string, snippet string) string {
	return strings.NewReplacer("{fname}", fname, "{snippet}", snippet).Replace(t.tmpl)
}

func (t *ContextTemplate) Format(results []Result) string {
	var sb strings.Builder
	for _, r := range results {
		sb.WriteString(t.Render(r.Source, r.Text))
	}

	return sb.String()
}
