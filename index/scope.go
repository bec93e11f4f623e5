package index

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Axemt/que/docstore"
)

type SourceLister interface {
	Indexed(ctx context.Context) ([]docstore.Indexed, error)
}

// Scoper turns a directory into an explicit source filter. The stores only match
// metadata by equality, so the prefix test happens here.
type Scoper struct {
	store SourceLister
}

func NewScoper(store SourceLister) *Scoper {
	return &Scoper{store: store}
}

// Resolve returns an unscoped filter for an empty scope. Otherwise the filter
// lists every stored source under scope, possibly none.
func (s *Scoper) Resolve(ctx context.Context, scope string) (docstore.Filter, error) {
	if scope == "" {
		return docstore.Filter{}, nil
	}

	abs, err := filepath.Abs(scope)
	if err != nil {
		return docstore.Filter{}, fmt.Errorf("failed to resolve scope %s: %w", scope, err)
	}

	indexed, err := s.store.Indexed(ctx)
	if err != nil {
		return docstore.Filter{}, fmt.Errorf("failed to read indexed documents: %w", err)
	}

	sources := []string{}
	for _, ix := range indexed {
		if InScope(abs, ix.Source) {
			sources = append(sources, ix.Source)
		}
	}
	slices.Sort(sources)

	return docstore.InSources(slices.Compact(sources)...), nil
}

// InScope reports whether source is dir itself or lies below it.
func InScope(dir string, source string) bool {
	dir = filepath.Clean(dir)
	if source == dir {
		return true
	}

	if !strings.HasSuffix(dir, string(filepath.Separator)) {
		dir += string(filepath.Separator)
	}

	return strings.HasPrefix(source, dir)
}
