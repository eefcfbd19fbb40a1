package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"github.com/deepread-ai/deepread/pkg/config"
	"github.com/deepread-ai/deepread/pkg/task"
)

// DocumentStore reads and writes the three data trees: final documents
// (plus their images/ subdirectory), per-task scratch directories, and
// uploaded source files. Document writes are atomic so a crash can
// never leave a half-written report visible.
type DocumentStore struct {
	documentsDir string
	tasksDir     string
	uploadsDir   string
	log          *slog.Logger
}

func NewDocumentStore(cfg *config.StorageConfig, log *slog.Logger) (*DocumentStore, error) {
	s := &DocumentStore{
		documentsDir: cfg.DocumentsDir,
		tasksDir:     cfg.TasksDir,
		uploadsDir:   cfg.UploadsDir,
		log:          log.With("component", "document_store"),
	}
	for _, dir := range []string{s.documentsDir, s.ImagesDir(), s.AudioDir(), s.tasksDir, s.uploadsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return s, nil
}

func (s *DocumentStore) DocumentsDir() string { return s.documentsDir }

func (s *DocumentStore) TasksDir() string { return s.tasksDir }

// ImagesDir holds visual interpretation artifacts next to the documents.
func (s *DocumentStore) ImagesDir() string {
	return filepath.Join(s.documentsDir, "images")
}

// AudioDir holds synthesized narration audio.
func (s *DocumentStore) AudioDir() string {
	return filepath.Join(s.documentsDir, "audio")
}

// DocumentPath resolves a document filename inside the documents
// directory. The name is flattened to its base so API-supplied values
// cannot escape the tree.
func (s *DocumentStore) DocumentPath(filename string) string {
	return filepath.Join(s.documentsDir, filepath.Base(filename))
}

// WriteDocument atomically writes a final document.
func (s *DocumentStore) WriteDocument(filename, content string) error {
	path := s.DocumentPath(filename)
	if err := renameio.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing document %s: %w", filename, err)
	}
	s.log.Info("Document written", "file", filename, "bytes", len(content))
	return nil
}

// ReadDocument returns a document's content.
func (s *DocumentStore) ReadDocument(filename string) (string, error) {
	data, err := os.ReadFile(s.DocumentPath(filename))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return "", fmt.Errorf("reading document %s: %w", filename, err)
	}
	return string(data), nil
}

// ListDocuments returns all document filenames, sorted.
func (s *DocumentStore) ListDocuments() ([]string, error) {
	entries, err := os.ReadDir(s.documentsDir)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ScratchDir creates (if needed) and returns the task's scratch
// directory: tasks/<YYYYMMDD>/<HHMM>-<short-id>-<kind>/. Inter-stage
// state lives here so a crashed run leaves inspectable artifacts.
func (s *DocumentStore) ScratchDir(taskID string, kind task.Kind, at time.Time) (string, error) {
	short := taskID
	if len(short) > 8 {
		short = short[:8]
	}
	dir := filepath.Join(
		s.tasksDir,
		at.Format("20060102"),
		fmt.Sprintf("%s-%s-%s", at.Format("1504"), short, kind),
	)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating scratch dir: %w", err)
	}
	return dir, nil
}

// WriteScratch atomically writes one inter-stage artifact into a
// scratch directory.
func (s *DocumentStore) WriteScratch(dir, name, content string) error {
	if err := renameio.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing scratch file %s: %w", name, err)
	}
	return nil
}

// ReadScratch reads one scratch artifact back.
func (s *DocumentStore) ReadScratch(dir, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("reading scratch file %s: %w", name, err)
	}
	return string(data), nil
}

// SaveUpload stores an uploaded source file and returns its path.
// Uploads are named by content hash, so a repeated name carries the
// same bytes and overwriting is harmless.
func (s *DocumentStore) SaveUpload(filename string, data []byte) (string, error) {
	path := filepath.Join(s.uploadsDir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("saving upload %s: %w", filename, err)
	}
	return path, nil
}

// WriteImage atomically writes a visual artifact into images/.
func (s *DocumentStore) WriteImage(filename string, data []byte) (string, error) {
	path := filepath.Join(s.ImagesDir(), filepath.Base(filename))
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing image %s: %w", filename, err)
	}
	return path, nil
}

// WriteAudio atomically writes a narration file into audio/.
func (s *DocumentStore) WriteAudio(filename string, data []byte) (string, error) {
	path := filepath.Join(s.AudioDir(), filepath.Base(filename))
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing audio %s: %w", filename, err)
	}
	return path, nil
}
