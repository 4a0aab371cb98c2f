// Package chunkid derives deterministic chunk identifiers from a document key and window index.
package chunkid

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
	"strconv"
)

// DocumentKey returns the key chunk ids are derived from: the DOI when present,
// otherwise the input's base filename. With widen set, the cleaned source path is
// appended so equal DOIs or filenames from different sources stay distinct.
func DocumentKey(doi *string, path string, widen bool) string {
	key := filepath.Base(path)
	if doi != nil && *doi != "" {
		key = *doi
	}
	if widen {
		key += "|" + filepath.Clean(path)
	}
	return key
}

// ChunkID returns the lowercase hex MD5 of docKey + "_" + index.
// The same key and index always yield the same id.
func ChunkID(docKey string, index int) string {
	sum := md5.Sum([]byte(docKey + "_" + strconv.Itoa(index)))
	return hex.EncodeToString(sum[:])
}
