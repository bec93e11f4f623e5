package docstore

import (
	"errors"
	"fmt"
)

const (
	Source      = "source"
	Fingerprint = "fingerprint"
)

var ErrInvalidRecord = errors.New("invalid chunk record")

// Meta is the fixed metadata schema attached to every stored chunk.
type Meta struct {
	Source      string `json:"source"`
	Fingerprint string `json:"fingerprint"`
}

type Record struct {
	ID   string
	Text string
	Meta Meta
}

func (r Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRecord)
	}
	if r.Meta.Source == "" {
		return fmt.Errorf("%w: %s has no source", ErrInvalidRecord, r.ID)
	}
	if r.Meta.Fingerprint == "" {
		return fmt.Errorf("%w: %s has no fingerprint", ErrInvalidRecord, r.ID)
	}

	return nil
}

// Indexed is one (source, fingerprint) pair present in the collection.
type Indexed struct {
	Source      string
	Fingerprint string
}

// Filter restricts a query to a set of sources. The zero value matches everything,
// a scoped filter with no sources matches nothing.
type Filter struct {
	Scoped  bool
	Sources []string
}

func InSources(sources ...string) Filter {
	return Filter{Scoped: true, Sources: sources}
}

func (f Filter) Match(source string) bool {
	if !f.Scoped {
		return true
	}

	for _, s := range f.Sources {
		if s == source {
			return true
		}
	}

	return false
}

type SearchResult struct {
	Text   string
	Source string
	Score  float32
}

func validateRecords(records []Record) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
	}

	return nil
}

func dedupIndexed(metas []Meta) []Indexed {
	var res []Indexed
	seen := make(map[Indexed]struct{})
	for _, m := range metas {
		ix := Indexed{Source: m.Source, Fingerprint: m.Fingerprint}
		if _, ok := seen[ix]; ok {
			continue
		}

		seen[ix] = struct{}{}
		res = append(res, ix)
	}

	return res
}
