// Package store owns the on-disk layout: the documents directory with
// its hash registry, per-task scratch directories, and uploads. The
// filesystem is the only persistent shared resource; everything here
// must survive a process restart.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrNotFound indicates the requested document does not exist.
var ErrNotFound = errors.New("store: document not found")

// GenerateDocHash derives the stable 8-hex-character document hash from
// a source identifier (normalized video URL or content identifier).
// The same source always maps to the same hash; it keys deduplication
// and version lineage.
func GenerateDocHash(sourceID string) string {
	sum := sha256.Sum256([]byte(sourceID))
	return hex.EncodeToString(sum[:])[:8]
}
