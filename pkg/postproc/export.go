package postproc

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/deepread-ai/deepread/pkg/store"
)

// reportHTMLPath returns the page the visualization processor wrote, or
// "" when it did not run.
func reportHTMLPath(pctx *Context) string {
	path, _ := pctx.Extra[extraReportHTML].(string)
	return path
}

// PDFExportProcessor prints the rendered report page to a PDF next to
// the report in the documents directory. Fire-and-forget.
type PDFExportProcessor struct {
	store    *store.DocumentStore
	renderer *Renderer
	enabled  bool
	log      *slog.Logger
}

func NewPDFExportProcessor(s *store.DocumentStore, r *Renderer, enabled bool, log *slog.Logger) *PDFExportProcessor {
	return &PDFExportProcessor{store: s, renderer: r, enabled: enabled, log: log.With("processor", "pdf_export")}
}

func (p *PDFExportProcessor) Name() string  { return "pdf_export" }
func (p *PDFExportProcessor) Priority() int { return 20 }
func (p *PDFExportProcessor) Async() bool   { return true }

func (p *PDFExportProcessor) ShouldRun(pctx *Context) bool {
	return p.enabled && reportHTMLPath(pctx) != ""
}

func (p *PDFExportProcessor) Process(ctx context.Context, pctx *Context, _ string) (*Result, error) {
	outName := strings.TrimSuffix(pctx.Filename, ".md") + ".pdf"
	outPath := p.store.DocumentPath(outName)
	if err := p.renderer.PrintPDF(ctx, reportHTMLPath(pctx), outPath); err != nil {
		return nil, err
	}
	return &Result{Message: "pdf exported", Changes: []string{outPath}}, nil
}

// ScreenshotProcessor captures a full-page PNG of the rendered report
// page. Fire-and-forget.
type ScreenshotProcessor struct {
	store    *store.DocumentStore
	renderer *Renderer
	enabled  bool
	log      *slog.Logger
}

func NewScreenshotProcessor(s *store.DocumentStore, r *Renderer, enabled bool, log *slog.Logger) *ScreenshotProcessor {
	return &ScreenshotProcessor{store: s, renderer: r, enabled: enabled, log: log.With("processor", "screenshot")}
}

func (p *ScreenshotProcessor) Name() string  { return "screenshot" }
func (p *ScreenshotProcessor) Priority() int { return 30 }
func (p *ScreenshotProcessor) Async() bool   { return true }

func (p *ScreenshotProcessor) ShouldRun(pctx *Context) bool {
	return p.enabled && reportHTMLPath(pctx) != ""
}

func (p *ScreenshotProcessor) Process(ctx context.Context, pctx *Context, _ string) (*Result, error) {
	outPath := filepath.Join(p.store.ImagesDir(), pctx.DocHash+"_report.png")
	if err := p.renderer.Screenshot(ctx, reportHTMLPath(pctx), outPath); err != nil {
		return nil, err
	}
	return &Result{Message: "screenshot captured", Changes: []string{outPath}}, nil
}
