package readers

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"path"
	"sort"
	"strings"

	"code.sajari.com/docconv/v2"
)

// EpubReader concatenates the text of the book's content documents in spine order.
type EpubReader struct{}

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Manifest []struct {
		ID        string `xml:"id,attr"`
		Href      string `xml:"href,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

func (r *EpubReader) Exts() []string {
	return []string{".epub"}
}

func (r *EpubReader) ReadText(file string) (string, error) {
	zr, err := zip.OpenReader(file)
	if err != nil {
		return "", fmt.Errorf("failed to open epub: %w", err)
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	docs, err := contentDocuments(files)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, name := range docs {
		f, ok := files[name]
		if !ok {
			continue
		}

		text, err := htmlText(f)
		if err != nil {
			return "", fmt.Errorf("failed to read epub item %s: %w", name, err)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(text)
	}

	return sb.String(), nil
}

// contentDocuments lists xhtml items following the package spine, falling back
// to every html file in the archive when no package document is found.
func contentDocuments(files map[string]*zip.File) ([]string, error) {
	var container epubContainer
	if f, ok := files["META-INF/container.xml"]; ok {
		if err := decodeXML(f, &container); err != nil {
			return nil, fmt.Errorf("failed to parse epub container: %w", err)
		}
	}

	if len(container.Rootfiles) == 0 {
		var names []string
		for name := range files {
			ext := strings.ToLower(path.Ext(name))
			if ext == ".xhtml" || ext == ".html" || ext == ".htm" {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		return names, nil
	}

	opfPath := container.Rootfiles[0].FullPath
	opf, ok := files[opfPath]
	if !ok {
		return nil, fmt.Errorf("epub package %s not found", opfPath)
	}

	var pkg epubPackage
	if err := decodeXML(opf, &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse epub package: %w", err)
	}

	hrefs := make(map[string]string, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		if strings.Contains(item.MediaType, "html") {
			hrefs[item.ID] = path.Join(path.Dir(opfPath), item.Href)
		}
	}

	var names []string
	for _, ref := range pkg.Spine {
		if href, ok := hrefs[ref.IDRef]; ok {
			names = append(names, href)
		}
	}

	return names, nil
}

func decodeXML(f *zip.File, v any) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	return xml.NewDecoder(rc).Decode(v)
}

// htmlText converts one content document without the tidy pass ConvertHTML
// depends on.
func htmlText(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	return docconv.HTMLToText(rc)
}
