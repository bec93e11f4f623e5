package docstore

import (
	"context"
	"fmt"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
)

// collection is the subset of chroma.Collection the store relies on.
type collection interface {
	Upsert(ctx context.Context, opts ...chroma.CollectionUpdateOption) error
	Delete(ctx context.Context, opts ...chroma.CollectionDeleteOption) error
	Get(ctx context.Context, opts ...chroma.CollectionGetOption) (chroma.GetResult, error)
	Query(ctx context.Context, opts ...chroma.CollectionQueryOption) (chroma.QueryResult, error)
	Count(ctx context.Context) (int, error)
}

type ChromaStoreConfig struct {
	BaseURL       string
	Collection    string
	EmbeddingFunc embeddings.EmbeddingFunction
	RequestSize   int
	Reset         bool
}

type ChromaStore struct {
	requestSize int
	client      chroma.Client
	col         collection
}

func NewChromaStore(ctx context.Context, cfg ChromaStoreConfig) (*ChromaStore, error) {
	client, err := chroma.NewHTTPClient(chroma.WithBaseURL(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}

	open := func() (chroma.Collection, error) {
		return client.GetOrCreateCollection(ctx, cfg.Collection,
			chroma.WithEmbeddingFunctionCreate(cfg.EmbeddingFunc),
			chroma.WithCollectionMetadataCreate(
				chroma.NewMetadata(chroma.NewStringAttribute("hnsw:space", "cosine")),
			),
		)
	}

	col, err := open()
	if err == nil && cfg.Reset {
		// deleting needs an existing collection
		err = client.DeleteCollection(ctx, cfg.Collection)
		if err == nil {
			col, err = open()
		}
	}
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to open collection %s: %w", cfg.Collection, err)
	}

	return &ChromaStore{
		requestSize: cfg.RequestSize,
		client:      client,
		col:         col,
	}, nil
}

func (ds *ChromaStore) Upsert(ctx context.Context, records []Record) error {
	if err := validateRecords(records); err != nil {
		return err
	}

	for _, bucket := range splitBySize(records, ds.requestSize) {
		ids := make([]chroma.DocumentID, 0, len(bucket))
		texts := make([]string, 0, len(bucket))
		metas := make([]chroma.DocumentMetadata, 0, len(bucket))
		for _, r := range bucket {
			ids = append(ids, chroma.DocumentID(r.ID))
			texts = append(texts, r.Text)
			metas = append(metas, chroma.NewDocumentMetadata(
				chroma.NewStringAttribute(Source, r.Meta.Source),
				chroma.NewStringAttribute(Fingerprint, r.Meta.Fingerprint),
			))
		}

		err := ds.col.Upsert(ctx,
			chroma.WithIDs(ids...),
			chroma.WithTexts(texts...),
			chroma.WithMetadatas(metas...),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert %d chunks: %w", len(bucket), err)
		}
	}

	return nil
}

func (ds *ChromaStore) DeleteSources(ctx context.Context, sources []string) error {
	if len(sources) == 0 {
		return nil
	}

	err := ds.col.Delete(ctx, chroma.WithWhereDelete(chroma.InString(Source, sources...)))
	if err != nil {
		return fmt.Errorf("failed to delete chunks of %d sources: %w", len(sources), err)
	}

	return nil
}

func (ds *ChromaStore) Indexed(ctx context.Context) ([]Indexed, error) {
	res, err := ds.col.Get(ctx, chroma.WithIncludeGet(chroma.IncludeMetadatas))
	if err != nil {
		return nil, fmt.Errorf("failed to read collection metadata: %w", err)
	}

	metadata := res.GetMetadatas()
	metas := make([]Meta, 0, len(metadata))
	for _, meta := range metadata {
		if meta == nil {
			continue
		}

		src, _ := meta.GetString(Source)
		fp, _ := meta.GetString(Fingerprint)
		metas = append(metas, Meta{Source: src, Fingerprint: fp})
	}

	return dedupIndexed(metas), nil
}

func (ds *ChromaStore) Query(ctx context.Context, text string, k int, filter Filter) ([]SearchResult, error) {
	opts := []chroma.CollectionQueryOption{
		chroma.WithQueryTexts(text),
		chroma.WithNResults(k),
	}
	if filter.Scoped {
		sources := filter.Sources
		if len(sources) == 0 {
			// chroma rejects an empty $in, no stored source is empty
			sources = []string{""}
		}
		opts = append(opts, chroma.WithWhereQuery(chroma.InString(Source, sources...)))
	}

	r, err := ds.col.Query(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve texts: %w", err)
	}

	docGroups := r.GetDocumentsGroups()
	if len(docGroups) == 0 {
		return nil, nil
	}

	docs := docGroups[0]
	metadatas := r.GetMetadatasGroups()[0]
	distances := r.GetDistancesGroups()[0]

	res := make([]SearchResult, 0, len(docs))
	for i := range len(docs) {
		src, _ := metadatas[i].GetString(Source)
		res = append(res, SearchResult{
			Text:   docs[i].ContentString(),
			Source: src,
			Score:  1 - float32(distances[i]),
		})
	}

	return res, nil
}

func (ds *ChromaStore) Count(ctx context.Context) (int, error) {
	n, err := ds.col.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}

	return n, nil
}

func (ds *ChromaStore) Close() error {
	if ds.client == nil {
		return nil
	}

	return ds.client.Close()
}

// splitBySize groups records so that the text of each group stays within size
// bytes. A single record larger than size forms its own group.
func splitBySize(records []Record, size int) [][]Record {
	if len(records) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]Record{records}
	}

	var buckets [][]Record
	start, total := 0, 0
	for i, r := range records {
		if i > start && total+len(r.Text) > size {
			buckets = append(buckets, records[start:i])
			start, total = i, 0
		}
		total += len(r.Text)
	}

	return append(buckets, records[start:])
}
