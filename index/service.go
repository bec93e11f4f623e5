package index

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

const DefaultResults = 5

type ServiceConfig struct {
	Log       *slog.Logger
	Root      string
	Recursive bool
	// Results is the number of chunks returned when a query asks for k <= 0.
	Results          int
	MergeEventsDelay time.Duration

	Store         ChunkStore
	Extractor     TextExtractor
	Fingerprinter Fingerprinter
	Chunker       *Chunker
	Tips          bool
	Workers       int
}

type Result struct {
	Text   string
	Source string
	Score  float32
}

// Service keeps the index of one document root up to date and answers
// similarity queries against the whole collection.
type Service struct {
	log              *slog.Logger
	root             string
	recursive        bool
	results          int
	mergeEventsDelay time.Duration
	tips             bool

	store   ChunkStore
	scanner *Scanner
	engine  *SyncEngine
	scoper  *Scoper

	mu sync.Mutex
}

func NewService(cfg ServiceConfig) *Service {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	results := cfg.Results
	if results <= 0 {
		results = DefaultResults
	}

	return &Service{
		log:              log,
		root:             cfg.Root,
		recursive:        cfg.Recursive,
		results:          results,
		mergeEventsDelay: cfg.MergeEventsDelay,
		tips:             cfg.Tips,
		store:            cfg.Store,
		scanner:          NewScanner(),
		engine: NewSyncEngine(SyncConfig{
			Log:           log,
			Store:         cfg.Store,
			Extractor:     cfg.Extractor,
			Fingerprinter: cfg.Fingerprinter,
			Chunker:       cfg.Chunker,
			Tips:          cfg.Tips,
			Workers:       cfg.Workers,
		}),
		scoper: NewScoper(cfg.Store),
	}
}

// Sync scans the root and reconciles the store with it. Running it again without
// filesystem changes leaves the store untouched.
func (s *Service) Sync(ctx context.Context) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := s.scanner.Scan(s.root, s.recursive)
	if err != nil {
		return Report{}, err
	}
	s.log.Debug("discovered documents", "root", s.root, "count", len(paths))

	report, err := s.engine.Reconcile(ctx, paths)
	if err != nil {
		return report, err
	}

	if report.Changed() {
		s.log.Info("index synchronized",
			"added", len(report.Added),
			"updated", len(report.Updated),
			"deleted", len(report.Deleted),
			"skipped", len(report.Skipped),
			"chunks", report.Chunks)
	}

	return report, nil
}

// Query returns the k chunks most similar to text. A non-empty scope restricts
// the search to documents below that directory.
func (s *Service) Query(ctx context.Context, text string, k int, scope string) ([]Result, error) {
	if k <= 0 {
		k = s.results
	}

	filter, err := s.scoper.Resolve(ctx, scope)
	if err != nil {
		return nil, err
	}
	if filter.Scoped {
		s.log.Debug("scoped search", "scope", scope, "documents", len(filter.Sources))
	}

	found, err := s.store.Query(ctx, text, k, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}

	res := make([]Result, 0, len(found))
	for _, f := range found {
		var tip string
		if s.tips {
			tip = filepath.Base(f.Source)
		}

		res = append(res, Result{
			Text:   Display(f.Text, tip),
			Source: f.Source,
			Score:  f.Score,
		})
	}

	return res, nil
}
