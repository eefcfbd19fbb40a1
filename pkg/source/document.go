package source

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/deepread-ai/deepread/pkg/config"
	"github.com/deepread-ai/deepread/pkg/task"
)

// DocType is the recognized document format, inferred from the uploaded
// filename's extension.
type DocType string

const (
	DocTypeText     DocType = "text"
	DocTypeMarkdown DocType = "markdown"
	DocTypePDF      DocType = "pdf"
	DocTypeDocx     DocType = "docx"
)

// DetectDocType maps a filename extension to its document type.
func DetectDocType(filename string) (DocType, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return DocTypeText, nil
	case ".md", ".markdown":
		return DocTypeMarkdown, nil
	case ".pdf":
		return DocTypePDF, nil
	case ".docx", ".doc":
		return DocTypeDocx, nil
	default:
		return "", task.NewError(task.ErrKindInvalidInput, "unsupported document type %q", filepath.Ext(filename))
	}
}

// Binary reports whether the type is a binary format with its own size
// cap and extraction path.
func (t DocType) Binary() bool {
	return t == DocTypePDF || t == DocTypeDocx
}

// MIME returns the attachment MIME type for provider uploads.
func (t DocType) MIME() string {
	switch t {
	case DocTypePDF:
		return "application/pdf"
	case DocTypeDocx:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case DocTypeMarkdown:
		return "text/markdown"
	default:
		return "text/plain"
	}
}

// CheckSize enforces the configured per-format caps.
func CheckSize(docType DocType, size int64, limits *config.LimitsConfig) error {
	limit := limits.MaxTextFileSize
	if docType.Binary() {
		limit = limits.MaxBinaryFileSize
	}
	if size > limit {
		return task.NewError(task.ErrKindInvalidInput,
			"file is %d bytes; the limit for %s documents is %d", size, docType, limit)
	}
	return nil
}

// ContentIdentifier derives the canonical source identifier for an
// uploaded document: `<type>://<sha256-of-content>`. Re-uploading the
// same bytes dedupes regardless of filename.
func ContentIdentifier(docType DocType, data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s://%s", docType, hex.EncodeToString(sum[:]))
}

// DocumentExtractor turns stored uploads into plain text. Text formats
// read natively; PDF goes through pdftotext and Word through pandoc.
// For PDFs an extraction failure is not fatal to the task: the workflow
// can attach the raw file to the model instead.
type DocumentExtractor struct {
	pdfToTextBin string
	pandocBin    string
	log          *slog.Logger
}

func NewDocumentExtractor(cfg *config.SourceConfig, log *slog.Logger) *DocumentExtractor {
	return &DocumentExtractor{
		pdfToTextBin: cfg.PdfToTextBin,
		pandocBin:    cfg.PandocBin,
		log:          log.With("component", "document_extractor"),
	}
}

// ExtractText returns the document's plain text.
func (e *DocumentExtractor) ExtractText(ctx context.Context, path string, docType DocType) (string, error) {
	switch docType {
	case DocTypeText, DocTypeMarkdown:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading document: %w", err)
		}
		return string(data), nil
	case DocTypePDF:
		return e.runTool(ctx, e.pdfToTextBin, "-enc", "UTF-8", path, "-")
	case DocTypeDocx:
		return e.runTool(ctx, e.pandocBin, "--to", "plain", path)
	default:
		return "", task.NewError(task.ErrKindInvalidInput, "unsupported document type %q", docType)
	}
}

func (e *DocumentExtractor) runTool(ctx context.Context, bin string, args ...string) (string, error) {
	if _, err := exec.LookPath(bin); err != nil {
		return "", task.WrapError(task.ErrKindConfig, fmt.Errorf("%s not found in PATH: %w", bin, err))
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		tail := tailLines(stderr.String(), 5)
		return "", task.WrapError(task.ErrKindSourceUnavailable, fmt.Errorf("%s failed: %w: %s", bin, err, tail))
	}
	text := stdout.String()
	if strings.TrimSpace(text) == "" {
		return "", task.NewError(task.ErrKindSourceUnavailable, "%s produced no text", bin)
	}
	e.log.Debug("Document text extracted", "tool", bin, "chars", len(text))
	return text, nil
}
