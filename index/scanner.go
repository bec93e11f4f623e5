package index

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DocumentExts are the extensions indexed by default.
var DocumentExts = []string{".md", ".txt", ".pdf", ".docx", ".epub"}

// Scanner discovers indexable documents below a root directory.
type Scanner struct {
	exts map[string]struct{}
}

func NewScanner(exts ...string) *Scanner {
	if len(exts) == 0 {
		exts = DocumentExts
	}

	s := &Scanner{exts: make(map[string]struct{}, len(exts))}
	for _, ext := range exts {
		s.exts[strings.ToLower(ext)] = struct{}{}
	}

	return s
}

// Scan returns the sorted absolute paths of matching regular files, including
// symlinks to regular files. Hidden files
// and directories are skipped. Any walk error fails the whole scan, since a
// partial listing would make the missing files look deleted.
func (s *Scanner) Scan(root string, recursive bool) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("failed to scan %s: not a directory", root)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if !recursive {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			// links to regular files are indexed under the link path, dangling
			// links and links to directories are not followed
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}

		if _, ok := s.exts[strings.ToLower(filepath.Ext(path))]; ok {
			paths = append(paths, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	slices.Sort(paths)
	return slices.Compact(paths), nil
}
