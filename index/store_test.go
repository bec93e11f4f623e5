package index

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/Axemt/que/docstore"
)

// fakeChunkStore keeps records in memory and records every write.
type fakeChunkStore struct {
	mu      sync.Mutex
	records map[string]docstore.Record

	calls       []string
	deleteCalls [][]string
	upsertCalls [][]docstore.Record

	indexedErr error
	deleteErr  error
	upsertErr  error
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{records: make(map[string]docstore.Record)}
}

func (s *fakeChunkStore) Indexed(ctx context.Context) ([]docstore.Indexed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexedErr != nil {
		return nil, s.indexedErr
	}

	seen := make(map[docstore.Indexed]struct{})
	var res []docstore.Indexed
	for _, r := range s.records {
		ix := docstore.Indexed{Source: r.Meta.Source, Fingerprint: r.Meta.Fingerprint}
		if _, ok := seen[ix]; ok {
			continue
		}
		seen[ix] = struct{}{}
		res = append(res, ix)
	}

	return res, nil
}

func (s *fakeChunkStore) Upsert(ctx context.Context, records []docstore.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, "upsert")
	s.upsertCalls = append(s.upsertCalls, records)
	if s.upsertErr != nil {
		return s.upsertErr
	}

	for _, r := range records {
		s.records[r.ID] = r
	}
	return nil
}

func (s *fakeChunkStore) DeleteSources(ctx context.Context, sources []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, "delete")
	s.deleteCalls = append(s.deleteCalls, sources)
	if s.deleteErr != nil {
		return s.deleteErr
	}

	for id, r := range s.records {
		if slices.Contains(sources, r.Meta.Source) {
			delete(s.records, id)
		}
	}
	return nil
}

func (s *fakeChunkStore) Query(ctx context.Context, text string, k int, filter docstore.Filter) ([]docstore.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []docstore.SearchResult
	for _, r := range s.all() {
		if filter.Match(r.Meta.Source) {
			res = append(res, docstore.SearchResult{Text: r.Text, Source: r.Meta.Source, Score: 1})
		}
	}
	if len(res) > k {
		res = res[:k]
	}

	return res, nil
}

func (s *fakeChunkStore) all() []docstore.Record {
	res := make([]docstore.Record, 0, len(s.records))
	for _, r := range s.records {
		res = append(res, r)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

func (s *fakeChunkStore) bySource(source string) []docstore.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []docstore.Record
	for _, r := range s.all() {
		if r.Meta.Source == source {
			res = append(res, r)
		}
	}
	return res
}

func (s *fakeChunkStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *fakeChunkStore) resetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
	s.deleteCalls = nil
	s.upsertCalls = nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
