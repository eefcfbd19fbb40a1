package postproc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/deepread-ai/deepread/pkg/store"
	"github.com/deepread-ai/deepread/pkg/task"
)

// extraReportHTML is the Extra key under which the visualization
// processor publishes the rendered page path for the browser-based
// processors downstream.
const extraReportHTML = "report_html"

// VisualizationProcessor renders the report to a standalone HTML page
// under documents/images/. It runs synchronously and first, so the
// PDF and screenshot processors can pick the page up.
type VisualizationProcessor struct {
	store   *store.DocumentStore
	enabled bool
	log     *slog.Logger
}

func NewVisualizationProcessor(s *store.DocumentStore, enabled bool, log *slog.Logger) *VisualizationProcessor {
	return &VisualizationProcessor{store: s, enabled: enabled, log: log.With("processor", "visualization")}
}

func (p *VisualizationProcessor) Name() string  { return "visualization" }
func (p *VisualizationProcessor) Priority() int { return 10 }
func (p *VisualizationProcessor) Async() bool   { return false }

func (p *VisualizationProcessor) ShouldRun(pctx *Context) bool {
	return p.enabled && pctx.Kind != task.KindVisual
}

func (p *VisualizationProcessor) Process(_ context.Context, pctx *Context, content string) (*Result, error) {
	title := ""
	if pctx.Meta != nil {
		title = pctx.Meta.TitleCN
	}
	html, err := RenderHTML(title, content)
	if err != nil {
		return nil, err
	}
	path, err := p.store.WriteImage(pctx.DocHash+"_report.html", []byte(html))
	if err != nil {
		return nil, err
	}
	pctx.Extra[extraReportHTML] = path
	return &Result{
		Message: fmt.Sprintf("visualization written (%d bytes)", len(html)),
		Changes: []string{path},
	}, nil
}
