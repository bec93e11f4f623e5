package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Axemt/que/readers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Watch(t *testing.T) {
	tmp := t.TempDir()

	chunker, err := NewChunker(10, 10, false)
	require.NoError(t, err)

	store := newFakeChunkStore()
	svc := NewService(ServiceConfig{
		Log:              discardLogger(),
		Root:             tmp,
		Recursive:        true,
		MergeEventsDelay: 20 * time.Millisecond,
		Store:            store,
		Extractor:        readers.Default(),
		Fingerprinter:    MetaFingerprinter{},
		Chunker:          chunker,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, svc.Watch(ctx))

	indexed := func(path string) func() bool {
		return func() bool { return len(store.bySource(path)) > 0 }
	}

	f1 := createFile(t, tmp, "f1.txt", "f1")
	f2 := createFile(t, tmp, "f2.txt", "f2")
	require.Eventually(t, indexed(f1), 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, indexed(f2), 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.MkdirAll(filepath.Join(tmp, "sub"), 0o755))
	time.Sleep(100 * time.Millisecond)
	f3 := createFile(t, tmp, "sub/f3.md", "f3")
	require.Eventually(t, indexed(f3), 5*time.Second, 10*time.Millisecond)

	f4 := filepath.Join(tmp, "f4.txt")
	require.NoError(t, os.Rename(f1, f4))
	require.Eventually(t, indexed(f4), 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, store.bySource(f1))

	require.NoError(t, os.Remove(f2))
	require.Eventually(t, func() bool { return !indexed(f2)() }, 5*time.Second, 10*time.Millisecond)
}
