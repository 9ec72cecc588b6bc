package storage

import (
	"os"
)

// sidecarSuffixes are files a backend keeps next to its snapshot.
var sidecarSuffixes = []string{"", ".lock", "-wal", "-shm", "-journal"}

// DiskUsageBytes returns the total size in bytes of the snapshot at path plus the
// lock and journal files the backends keep beside it. Missing files contribute 0;
// other stat errors are returned.
func DiskUsageBytes(path string) (int64, error) {
	if path == "" || path == ":memory:" {
		return 0, nil
	}
	var total int64
	for _, suffix := range sidecarSuffixes {
		info, err := os.Stat(path + suffix)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
		}
	}
	return total, nil
}
