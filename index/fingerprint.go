package index

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Fingerprinter computes an opaque token that changes whenever a file may have
// changed.
type Fingerprinter interface {
	Fingerprint(path string) (string, error)
}

func NewFingerprinter(hardDigest bool) Fingerprinter {
	if hardDigest {
		return ContentFingerprinter{}
	}

	return MetaFingerprinter{}
}

// MetaFingerprinter hashes path, size and change times without reading the
// file. Touching a file is enough to change its fingerprint.
type MetaFingerprinter struct{}

func (MetaFingerprinter) Fingerprint(path string) (string, error) {
	st, err := statStamp(path)
	if err != nil {
		return "", err
	}

	sum := md5.Sum(fmt.Appendf(nil, "%s<//>%d-%d-%d", path, st.size, st.mtime, st.ctime))
	return hex.EncodeToString(sum[:]), nil
}

// ContentFingerprinter hashes the full file contents.
type ContentFingerprinter struct{}

func (ContentFingerprinter) Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

type stamp struct {
	size  int64
	mtime int64
	ctime int64
}
