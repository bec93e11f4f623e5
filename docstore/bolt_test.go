package docstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBoltStore(t *testing.T) *BoltStore {
	t.Helper()

	store, err := NewBoltStore(filepath.Join(t.TempDir(), "index.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func Test_BoltUpsertIsIdempotent(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()

	records := []Record{
		record("/a.txt-chk-0", "alpha beta", "/a.txt"),
		record("/a.txt-chk-1", "gamma delta", "/a.txt"),
	}
	require.NoError(t, store.Upsert(ctx, records))
	require.NoError(t, store.Upsert(ctx, records))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	indexed, err := store.Indexed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Indexed{{Source: "/a.txt", Fingerprint: "fp"}}, indexed)
}

func Test_BoltDeleteSourcesRemovesAllChunks(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, []Record{
		record("/a.txt-chk-0", "alpha", "/a.txt"),
		record("/a.txt-chk-1", "beta", "/a.txt"),
		record("/b.txt-chk-0", "gamma", "/b.txt"),
	}))

	require.NoError(t, store.DeleteSources(ctx, []string{"/a.txt", "/missing.txt"}))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	indexed, err := store.Indexed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Indexed{{Source: "/b.txt", Fingerprint: "fp"}}, indexed)
}

func Test_BoltQuery(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, []Record{
		record("/docs/a/x.txt-chk-0", "the venus day is long", "/docs/a/x.txt"),
		record("/docs/b/y.txt-chk-0", "venus has a thick atmosphere", "/docs/b/y.txt"),
		record("/docs/b/z.txt-chk-0", "mars is red", "/docs/b/z.txt"),
	}))

	res, err := store.Query(ctx, "venus day", 2, Filter{})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "/docs/a/x.txt", res[0].Source)
	assert.Equal(t, "/docs/b/y.txt", res[1].Source)

	res, err = store.Query(ctx, "venus", 5, InSources("/docs/b/y.txt", "/docs/b/z.txt"))
	require.NoError(t, err)
	require.Len(t, res, 2)
	for _, r := range res {
		assert.NotEqual(t, "/docs/a/x.txt", r.Source)
	}

	res, err = store.Query(ctx, "venus", 5, InSources())
	require.NoError(t, err)
	assert.Empty(t, res)
}

func Test_BoltReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	store, err := NewBoltStore(path, false)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, []Record{record("/a.txt-chk-0", "alpha", "/a.txt")}))
	require.NoError(t, store.Close())

	store, err = NewBoltStore(path, true)
	require.NoError(t, err)
	defer store.Close()

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func Test_RecordValidate(t *testing.T) {
	var cases = []struct {
		rec Record
		ok  bool
	}{
		{rec: record("id", "t", "/a.txt"), ok: true},
		{rec: Record{Meta: Meta{Source: "/a", Fingerprint: "f"}}},
		{rec: Record{ID: "id", Meta: Meta{Fingerprint: "f"}}},
		{rec: Record{ID: "id", Meta: Meta{Source: "/a"}}},
	}

	for _, c := range cases {
		err := c.rec.Validate()
		if c.ok {
			assert.NoError(t, err)
		} else {
			assert.ErrorIs(t, err, ErrInvalidRecord)
		}
	}
}
