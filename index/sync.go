package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"slices"
	"syscall"

	"github.com/Axemt/que/docstore"
	"github.com/Axemt/que/readers"
	"golang.org/x/sync/errgroup"
)

type ChunkStore interface {
	Indexed(ctx context.Context) ([]docstore.Indexed, error)
	Upsert(ctx context.Context, records []docstore.Record) error
	DeleteSources(ctx context.Context, sources []string) error
	Query(ctx context.Context, text string, k int, filter docstore.Filter) ([]docstore.SearchResult, error)
}

type TextExtractor interface {
	Extract(path string) readers.Extraction
}

type SyncConfig struct {
	Log           *slog.Logger
	Store         ChunkStore
	Extractor     TextExtractor
	Fingerprinter Fingerprinter
	Chunker       *Chunker
	// Tips prefixes every chunk with the base name of its file.
	Tips    bool
	Workers int
}

// SyncEngine brings the chunk store in line with the files on disk.
type SyncEngine struct {
	log           *slog.Logger
	store         ChunkStore
	extractor     TextExtractor
	fingerprinter Fingerprinter
	chunker       *Chunker
	tips          bool
	workers       int
}

// Report summarizes one reconciliation pass.
type Report struct {
	Added   []string
	Updated []string
	Deleted []string
	Skipped []string
	Chunks  int
}

func (r Report) Changed() bool {
	return len(r.Added)+len(r.Updated)+len(r.Deleted) > 0
}

type status int

const (
	unchanged status = iota
	changed
	vanished
	unknown
)

type storedState struct {
	status      status
	fingerprint string
}

type pendingFile struct {
	path        string
	fingerprint string
	update      bool
}

type stagedFile struct {
	pendingFile
	records []docstore.Record
}

func NewSyncEngine(cfg SyncConfig) *SyncEngine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	return &SyncEngine{
		log:           log,
		store:         cfg.Store,
		extractor:     cfg.Extractor,
		fingerprinter: cfg.Fingerprinter,
		chunker:       cfg.Chunker,
		tips:          cfg.Tips,
		workers:       workers,
	}
}

// Reconcile diffs the stored (source, fingerprint) pairs against the disk and
// the newly discovered paths. Stale sources are removed with one delete before
// the replacement chunks are written with one upsert.
func (e *SyncEngine) Reconcile(ctx context.Context, discovered []string) (Report, error) {
	var report Report

	stored, err := e.store.Indexed(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to read indexed documents: %w", err)
	}

	fingerprints := make(map[string][]string)
	for _, ix := range stored {
		fingerprints[ix.Source] = append(fingerprints[ix.Source], ix.Fingerprint)
	}

	sources := make([]string, 0, len(fingerprints))
	for src := range fingerprints {
		sources = append(sources, src)
	}
	slices.Sort(sources)

	states, err := e.checkStored(ctx, sources, fingerprints)
	if err != nil {
		return report, err
	}

	var deletes []string
	var pending []pendingFile
	for i, src := range sources {
		switch states[i].status {
		case vanished:
			e.log.Debug("document no longer exists", "path", src)
			deletes = append(deletes, src)
			report.Deleted = append(report.Deleted, src)
		case changed:
			e.log.Debug("document fingerprint changed", "path", src,
				"stored", fingerprints[src], "current", states[i].fingerprint)
			deletes = append(deletes, src)
			pending = append(pending, pendingFile{path: src, fingerprint: states[i].fingerprint, update: true})
		}
	}

	discovered = slices.Clone(discovered)
	slices.Sort(discovered)
	for _, path := range slices.Compact(discovered) {
		if _, ok := fingerprints[path]; ok {
			continue
		}
		pending = append(pending, pendingFile{path: path})
	}

	staged, err := e.prepare(ctx, pending)
	if err != nil {
		return report, err
	}

	var records []docstore.Record
	for _, f := range staged {
		if len(f.records) == 0 {
			report.Skipped = append(report.Skipped, f.path)
			continue
		}

		if f.update {
			report.Updated = append(report.Updated, f.path)
		} else {
			report.Added = append(report.Added, f.path)
		}
		records = append(records, f.records...)
	}
	report.Chunks = len(records)

	if len(deletes) > 0 {
		e.log.Info("removing altered or deleted documents", "count", len(deletes))
		err = e.store.DeleteSources(ctx, deletes)
		if err != nil {
			return report, fmt.Errorf("failed to remove %d documents from store: %w", len(deletes), err)
		}
	}

	if len(records) > 0 {
		e.log.Info("adding text chunks", "chunks", len(records), "documents", len(report.Added)+len(report.Updated))
		err = e.store.Upsert(ctx, records)
		if err != nil {
			return report, fmt.Errorf("failed to store %d chunks: %w", len(records), err)
		}
	}

	return report, nil
}

// checkStored re-fingerprints every stored source. A source holding chunks of
// more than one fingerprint is always rebuilt.
func (e *SyncEngine) checkStored(ctx context.Context, sources []string, fingerprints map[string][]string) ([]storedState, error) {
	states := make([]storedState, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			fp, err := e.fingerprinter.Fingerprint(src)
			switch {
			case vanishedErr(err):
				states[i] = storedState{status: vanished}
			case err != nil:
				e.log.Warn("unable to fingerprint indexed document", "path", src, "error", err)
				states[i] = storedState{status: unknown}
			case len(fingerprints[src]) == 1 && fingerprints[src][0] == fp:
				states[i] = storedState{status: unchanged, fingerprint: fp}
			default:
				states[i] = storedState{status: changed, fingerprint: fp}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return states, nil
}

// prepare extracts and chunks the pending files. Unreadable files come back
// without records.
func (e *SyncEngine) prepare(ctx context.Context, pending []pendingFile) ([]stagedFile, error) {
	staged := make([]stagedFile, len(pending))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, p := range pending {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			staged[i] = stagedFile{pendingFile: p}
			records, err := e.records(p)
			if err != nil {
				e.log.Warn("skipping document", "path", p.path, "error", err)
				return nil
			}

			staged[i].records = records
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return staged, nil
}

// vanishedErr reports whether a stat error means the path is gone, including
// when one of its parent directories was replaced by a file.
func vanishedErr(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

var errEmptyDocument = errors.New("document has no text")

func (e *SyncEngine) records(p pendingFile) ([]docstore.Record, error) {
	fp := p.fingerprint
	if fp == "" {
		var err error
		fp, err = e.fingerprinter.Fingerprint(p.path)
		if err != nil {
			return nil, fmt.Errorf("failed to fingerprint: %w", err)
		}
	}

	res := e.extractor.Extract(p.path)
	if res.Err != nil {
		return nil, res.Err
	}
	if !res.Readable() {
		return nil, errEmptyDocument
	}

	var tip string
	if e.tips {
		tip = filepath.Base(p.path)
	}

	chunks := e.chunker.Chunk(res.Text, tip)
	records := make([]docstore.Record, 0, len(chunks))
	for i, text := range chunks {
		records = append(records, docstore.Record{
			ID:   ChunkID(p.path, i),
			Text: text,
			Meta: docstore.Meta{Source: p.path, Fingerprint: fp},
		})
	}

	return records, nil
}

func ChunkID(source string, ordinal int) string {
	return fmt.Sprintf("%s-chk-%d", source, ordinal)
}
