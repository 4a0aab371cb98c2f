package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Footprint is the on-disk size of the chunk database and keyword index.
type Footprint struct {
	DatabaseBytes     int64 `json:"database_bytes"`
	KeywordIndexBytes int64 `json:"keyword_index_bytes"`
}

// Total returns the combined size.
func (f Footprint) Total() int64 {
	return f.DatabaseBytes + f.KeywordIndexBytes
}

// MeasureFootprint sizes the database (including its WAL and shared-memory files)
// and the keyword index directory. Missing paths count as zero.
func MeasureFootprint(dbPath, indexPath string) (Footprint, error) {
	var fp Footprint
	var err error
	if dbPath != "" {
		fp.DatabaseBytes, err = DiskUsageBytes(dbPath, dbPath+"-wal", dbPath+"-shm")
		if err != nil {
			return Footprint{}, err
		}
	}
	fp.KeywordIndexBytes, err = DiskUsageBytes(indexPath)
	if err != nil {
		return Footprint{}, err
	}
	return fp, nil
}

// DiskUsageBytes returns the total size in bytes of the given paths.
// Each path may be a file or a directory (recursively summed).
// Empty and missing paths contribute 0; other stat or walk errors are returned.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
			continue
		}
		err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += fi.Size()
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
