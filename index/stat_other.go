//go:build !linux

package index

import "os"

// statStamp has no portable change time here, the modification time stands in.
func statStamp(path string) (stamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return stamp{}, err
	}

	mtime := info.ModTime().UnixNano()
	return stamp{size: info.Size(), mtime: mtime, ctime: mtime}, nil
}
