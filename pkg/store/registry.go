package store

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/deepread-ai/deepread/pkg/report"
)

// docVersion is one registered document file.
type docVersion struct {
	filename string
	version  int
}

// HashRegistry is the in-memory index over the documents directory:
// doc hash to default (highest-version) filename, hash to full version
// lineage, filename back to hash. Rebuilt by Scan and kept current by
// Add after in-process writes; the optional directory watcher rescans
// after external edits.
type HashRegistry struct {
	mu       sync.RWMutex
	store    *DocumentStore
	versions map[string][]docVersion
	byFile   map[string]string
	log      *slog.Logger
}

func NewHashRegistry(store *DocumentStore, log *slog.Logger) *HashRegistry {
	return &HashRegistry{
		store:    store,
		versions: make(map[string][]docVersion),
		byFile:   make(map[string]string),
		log:      log.With("component", "hash_registry"),
	}
}

// Scan rebuilds the index from disk. Files whose front matter cannot be
// parsed are skipped with a warning; one bad file must not hide the
// rest of the library.
func (r *HashRegistry) Scan() error {
	names, err := r.store.ListDocuments()
	if err != nil {
		return fmt.Errorf("scanning documents: %w", err)
	}

	versions := make(map[string][]docVersion)
	byFile := make(map[string]string)
	skipped := 0
	for _, name := range names {
		content, err := r.store.ReadDocument(name)
		if err != nil {
			r.log.Warn("Skipping unreadable document", "file", name, "error", err)
			skipped++
			continue
		}
		meta, _, err := report.ParseFrontMatter(content)
		if err != nil {
			r.log.Warn("Skipping document with invalid front matter", "file", name, "error", err)
			skipped++
			continue
		}
		if meta.Hash == "" {
			r.log.Warn("Skipping document without hash", "file", name)
			skipped++
			continue
		}
		versions[meta.Hash] = append(versions[meta.Hash], docVersion{filename: name, version: meta.Version})
		byFile[name] = meta.Hash
	}
	for hash := range versions {
		sortVersionsDesc(versions[hash])
	}

	r.mu.Lock()
	r.versions = versions
	r.byFile = byFile
	r.mu.Unlock()

	r.log.Info("Document registry scanned",
		"documents", len(byFile),
		"sources", len(versions),
		"skipped", skipped)
	return nil
}

// Refresh re-derives one source's lineage from disk, replacing whatever
// the index held for its hash. Files that left the group are unmapped;
// unreadable files are skipped the same way Scan skips them.
func (r *HashRegistry) Refresh(sourceID string) error {
	hash := GenerateDocHash(sourceID)
	names, err := r.store.ListDocuments()
	if err != nil {
		return fmt.Errorf("refreshing %s: %w", hash, err)
	}

	var lineage []docVersion
	for _, name := range names {
		content, err := r.store.ReadDocument(name)
		if err != nil {
			r.log.Warn("Skipping unreadable document", "file", name, "error", err)
			continue
		}
		meta, _, err := report.ParseFrontMatter(content)
		if err != nil {
			r.log.Warn("Skipping document with invalid front matter", "file", name, "error", err)
			continue
		}
		if meta.Hash != hash {
			continue
		}
		lineage = append(lineage, docVersion{filename: name, version: meta.Version})
	}
	sortVersionsDesc(lineage)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, dv := range r.versions[hash] {
		delete(r.byFile, dv.filename)
	}
	delete(r.versions, hash)
	if len(lineage) > 0 {
		r.versions[hash] = lineage
		for _, dv := range lineage {
			r.byFile[dv.filename] = hash
		}
	}
	return nil
}

// Add registers a freshly written document without a full rescan.
func (r *HashRegistry) Add(filename string, meta *report.Meta) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byFile[filename]; ok {
		r.versions[old] = removeFile(r.versions[old], filename)
		if len(r.versions[old]) == 0 {
			delete(r.versions, old)
		}
	}
	r.versions[meta.Hash] = append(r.versions[meta.Hash], docVersion{filename: filename, version: meta.Version})
	sortVersionsDesc(r.versions[meta.Hash])
	r.byFile[filename] = meta.Hash
}

// Lookup returns the default (highest-version) filename for a hash.
func (r *HashRegistry) Lookup(hash string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lineage := r.versions[hash]
	if len(lineage) == 0 {
		return "", false
	}
	return lineage[0].filename, true
}

// Versions returns a hash's filenames, newest version first.
func (r *HashRegistry) Versions(hash string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lineage := r.versions[hash]
	out := make([]string, len(lineage))
	for i, dv := range lineage {
		out[i] = dv.filename
	}
	return out
}

// NextVersion returns the version number a new document for this hash
// should carry: one past the highest existing, or 1 for a new source.
func (r *HashRegistry) NextVersion(hash string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lineage := r.versions[hash]
	if len(lineage) == 0 {
		return 1
	}
	return lineage[0].version + 1
}

// HashFor maps a filename back to its document hash.
func (r *HashRegistry) HashFor(filename string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hash, ok := r.byFile[filename]
	return hash, ok
}

// Len returns the number of registered document files.
func (r *HashRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byFile)
}

func sortVersionsDesc(lineage []docVersion) {
	sort.SliceStable(lineage, func(i, j int) bool {
		return lineage[i].version > lineage[j].version
	})
}

func removeFile(lineage []docVersion, filename string) []docVersion {
	out := lineage[:0]
	for _, dv := range lineage {
		if dv.filename != filename {
			out = append(out, dv)
		}
	}
	return out
}
