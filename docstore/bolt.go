package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketChunks  = []byte("chunks")
	bucketSources = []byte("sources")
)

type boltChunk struct {
	Text string `json:"text"`
	Meta Meta   `json:"meta"`
}

type boltSource struct {
	Fingerprint string   `json:"fingerprint"`
	IDs         []string `json:"ids"`
}

// BoltStore is a path-addressed collection kept in a single bbolt file. Queries
// rank chunks by lexical overlap with the query text.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string, reset bool) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketChunks, bucketSources} {
			if reset && tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return err
				}
			}
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize index %s: %w", path, err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Upsert(ctx context.Context, records []Record) error {
	if err := validateRecords(records); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		chunks := tx.Bucket(bucketChunks)
		sources := tx.Bucket(bucketSources)

		touched := make(map[string]*boltSource)
		for _, r := range records {
			if err := putJSON(chunks, r.ID, boltChunk{Text: r.Text, Meta: r.Meta}); err != nil {
				return err
			}

			src, ok := touched[r.Meta.Source]
			if !ok {
				src = &boltSource{}
				if err := getJSON(sources, r.Meta.Source, src); err != nil {
					return err
				}
				touched[r.Meta.Source] = src
			}

			src.Fingerprint = r.Meta.Fingerprint
			if !slices.Contains(src.IDs, r.ID) {
				src.IDs = append(src.IDs, r.ID)
			}
		}

		for name, src := range touched {
			if err := putJSON(sources, name, src); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d chunks: %w", len(records), err)
	}

	return nil
}

func (s *BoltStore) DeleteSources(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		chunks := tx.Bucket(bucketChunks)
		sources := tx.Bucket(bucketSources)

		for _, name := range names {
			var src boltSource
			if err := getJSON(sources, name, &src); err != nil {
				return err
			}
			for _, id := range src.IDs {
				if err := chunks.Delete([]byte(id)); err != nil {
					return err
				}
			}
			if err := sources.Delete([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete chunks of %d sources: %w", len(names), err)
	}

	return nil
}

// Indexed reads metadata from the chunk records themselves so that a torn
// source entry cannot hide chunks of an older fingerprint.
func (s *BoltStore) Indexed(ctx context.Context) ([]Indexed, error) {
	var metas []Meta
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChunks).ForEach(func(k, v []byte) error {
			var c boltChunk
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("corrupt chunk %s: %w", k, err)
			}
			metas = append(metas, c.Meta)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read collection metadata: %w", err)
	}

	return dedupIndexed(metas), nil
}

func (s *BoltStore) Query(ctx context.Context, text string, k int, filter Filter) ([]SearchResult, error) {
	query := tokenSet(text)

	var res []SearchResult
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChunks).ForEach(func(_, v []byte) error {
			var c boltChunk
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			if !filter.Match(c.Meta.Source) {
				return nil
			}

			res = append(res, SearchResult{
				Text:   c.Text,
				Source: c.Meta.Source,
				Score:  ochiai(query, tokenSet(c.Text)),
			})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve texts: %w", err)
	}

	sort.SliceStable(res, func(i, j int) bool { return res[i].Score > res[j].Score })
	if k > 0 && len(res) > k {
		res = res[:k]
	}

	return res, nil
}

func (s *BoltStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketChunks).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}

	return n, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func putJSON(b *bbolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return b.Put([]byte(key), data)
}

// getJSON leaves v untouched when the key is absent.
func getJSON(b *bbolt.Bucket, key string, v any) error {
	data := b.Get([]byte(key))
	if data == nil {
		return nil
	}

	return json.Unmarshal(data, v)
}

var wordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

func tokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}

	return m
}

// ochiai returns |A∩B| / sqrt(|A||B|).
func ochiai(a, b map[string]struct{}) float32 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}

	return float32(float64(inter) / math.Sqrt(float64(len(a))*float64(len(b))))
}
