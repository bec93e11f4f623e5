package readers

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testContainer = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

	testPackage = `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <manifest>
    <item id="c1" href="text/one.xhtml" media-type="application/xhtml+xml"/>
    <item id="c2" href="text/two.xhtml" media-type="application/xhtml+xml"/>
    <item id="css" href="style.css" media-type="text/css"/>
  </manifest>
  <spine>
    <itemref idref="c2"/>
    <itemref idref="c1"/>
  </spine>
</package>`
)

func writeEpub(t *testing.T, entries map[string]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "book.epub")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	return path
}

func openZip(t *testing.T, path string) map[string]*zip.File {
	t.Helper()

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	t.Cleanup(func() { zr.Close() })

	files := make(map[string]*zip.File)
	for _, f := range zr.File {
		files[f.Name] = f
	}
	return files
}

func Test_contentDocuments_FollowsSpine(t *testing.T) {
	path := writeEpub(t, map[string]string{
		"META-INF/container.xml": testContainer,
		"OEBPS/content.opf":      testPackage,
		"OEBPS/text/one.xhtml":   "<html><body><p>one</p></body></html>",
		"OEBPS/text/two.xhtml":   "<html><body><p>two</p></body></html>",
	})

	docs, err := contentDocuments(openZip(t, path))
	require.NoError(t, err)
	assert.Equal(t, []string{"OEBPS/text/two.xhtml", "OEBPS/text/one.xhtml"}, docs)
}

func Test_contentDocuments_WithoutContainer(t *testing.T) {
	path := writeEpub(t, map[string]string{
		"b.html":   "<p>b</p>",
		"a.xhtml":  "<p>a</p>",
		"note.txt": "ignored",
	})

	docs, err := contentDocuments(openZip(t, path))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.xhtml", "b.html"}, docs)
}

func Test_EpubReader_ReadText(t *testing.T) {
	path := writeEpub(t, map[string]string{
		"META-INF/container.xml": testContainer,
		"OEBPS/content.opf":      testPackage,
		"OEBPS/text/one.xhtml":   "<html><body><p>Chapter one</p></body></html>",
		"OEBPS/text/two.xhtml":   "<html><body><p>Chapter two</p></body></html>",
	})

	r := EpubReader{}
	txt, err := r.ReadText(path)
	require.NoError(t, err)

	one := strings.Index(txt, "Chapter one")
	two := strings.Index(txt, "Chapter two")
	require.NotEqual(t, -1, one)
	require.NotEqual(t, -1, two)
	assert.Less(t, two, one)
}

func Test_htmlText(t *testing.T) {
	path := writeEpub(t, map[string]string{
		"chapter.xhtml": "<html><head><title>Title</title></head><body><h1>Heading</h1><p>Some <b>bold</b> text</p></body></html>",
	})

	txt, err := htmlText(openZip(t, path)["chapter.xhtml"])
	require.NoError(t, err)
	assert.Contains(t, txt, "Heading")
	assert.Contains(t, txt, "Some bold text")
	assert.NotContains(t, txt, "<p>")
}

func Test_EpubReader_Extract(t *testing.T) {
	path := writeEpub(t, map[string]string{
		"META-INF/container.xml": testContainer,
		"OEBPS/content.opf":      testPackage,
		"OEBPS/text/one.xhtml":   "<html><body><p>Chapter one</p></body></html>",
		"OEBPS/text/two.xhtml":   "<html><body><p>Chapter two</p></body></html>",
	})

	res := Default().Extract(path)
	require.NoError(t, res.Err)
	assert.True(t, res.Readable())
}

func Test_EpubReader_NotAZip(t *testing.T) {
	r := EpubReader{}
	_, err := r.ReadText(writeFile(t, "broken.epub", []byte("not a zip")))
	assert.Error(t, err)
}
