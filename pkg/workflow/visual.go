package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/deepread-ai/deepread/pkg/llm"
	"github.com/deepread-ai/deepread/pkg/prompt"
	"github.com/deepread-ai/deepread/pkg/report"
	"github.com/deepread-ai/deepread/pkg/task"
)

// ScreenshotTaker captures a PNG preview of a rendered HTML file.
// Satisfied by postproc.Renderer.
type ScreenshotTaker interface {
	Screenshot(ctx context.Context, htmlPath, outPath string) error
}

// VisualWorkflow produces a single-file HTML visualization of a finished
// report and records it in the report's front matter. Submitted
// internally by the post-processing pipeline, never directly by users.
type VisualWorkflow struct {
	engine *Engine
	shots  ScreenshotTaker
	log    *slog.Logger
}

func NewVisualWorkflow(engine *Engine, shots ScreenshotTaker, log *slog.Logger) *VisualWorkflow {
	return &VisualWorkflow{
		engine: engine,
		shots:  shots,
		log:    log.With("workflow", "visual"),
	}
}

// Run implements queue.Runner.
func (w *VisualWorkflow) Run(ctx context.Context, t task.Task) error {
	filename := t.BaseDocument
	if filename == "" {
		name, ok := w.engine.registry.Lookup(t.DocHash)
		if !ok {
			return task.NewError(task.ErrKindInvalidInput, "no document found for hash %s", t.DocHash)
		}
		filename = name
	}

	content, err := w.engine.store.ReadDocument(filename)
	if err != nil {
		return task.WrapError(task.ErrKindInvalidInput, fmt.Errorf("loading report %s: %w", filename, err))
	}
	meta, _, err := report.ParseFrontMatter(content)
	if err != nil {
		return task.WrapError(task.ErrKindInvalidInput, fmt.Errorf("report %s: %w", filename, err))
	}

	w.engine.manager.UpdateProgress(t.ID, 10, "visualization",
		fmt.Sprintf("正在为《%s》生成可视化解读", meta.TitleCN))

	raw, err := w.engine.client.Generate(ctx, &llm.Request{
		System: prompt.SystemVisualizer,
		Prompt: prompt.BuildVisualizationPrompt(meta.TitleCN, content),
	})
	if err != nil {
		return wrapLLM(err)
	}
	html, err := extractHTML(raw)
	if err != nil {
		return err
	}

	htmlName := t.DocHash + "_visual.html"
	htmlPath, err := w.engine.store.WriteImage(htmlName, []byte(html))
	if err != nil {
		return task.WrapError(task.ErrKindUnknown, err)
	}
	w.engine.manager.UpdateProgress(t.ID, 70, "visualization", "可视化页面已生成")

	// The preview image is a bonus; a headless-browser failure must not
	// discard the finished page.
	pngPath := filepath.Join(w.engine.store.ImagesDir(), t.DocHash+"_visual.png")
	if err := w.shots.Screenshot(ctx, htmlPath, pngPath); err != nil {
		w.log.Warn("Visual screenshot failed", "task_id", t.ID, "error", err)
		w.engine.manager.SendLog(t.ID, "warning", "可视化截图失败，仅保留 HTML 页面")
	} else {
		w.engine.manager.UpdateProgress(t.ID, 90, "visualization", "预览图已生成")
	}

	updated, err := report.UpdateFrontMatter(content, func(m *report.Meta) {
		m.VisualInterpretation = &report.VisualInterpretation{
			Status:      "completed",
			File:        htmlName,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		}
	})
	if err != nil {
		return task.WrapError(task.ErrKindUnknown, err)
	}
	if err := w.engine.store.WriteDocument(filename, updated); err != nil {
		return task.WrapError(task.ErrKindUnknown, err)
	}
	if err := w.engine.registry.Refresh(meta.SourceIdentifier()); err != nil {
		w.log.Warn("Registry refresh failed", "task_id", t.ID, "error", err)
	}

	w.engine.manager.SendResult(t.ID, task.Result{
		DocHash: t.DocHash,
		File:    htmlName,
		Title:   meta.TitleCN,
		Version: meta.Version,
	})
	return nil
}

// extractHTML pulls the HTML document out of the model's response:
// a fenced ```html block, or the region from <!DOCTYPE/<html to the
// closing </html>.
func extractHTML(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)

	if idx := strings.Index(trimmed, "```html"); idx >= 0 {
		rest := trimmed[idx+len("```html"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end]), nil
		}
	}

	start := strings.Index(trimmed, "<!DOCTYPE")
	if start < 0 {
		start = strings.Index(trimmed, "<html")
	}
	end := strings.LastIndex(trimmed, "</html>")
	if start >= 0 && end > start {
		return trimmed[start : end+len("</html>")], nil
	}
	return "", task.NewError(task.ErrKindAnalysis, "visualization response contains no HTML document")
}
