package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/deepread-ai/deepread/pkg/report"
	"github.com/deepread-ai/deepread/pkg/task"
)

// UltraReprocessWorkflow regenerates an existing report in ultra mode.
// The source text is the base report's body; the result is written as a
// new version carrying base_version and is_ultra_deep markers.
type UltraReprocessWorkflow struct {
	engine *Engine
	log    *slog.Logger
}

func NewUltraReprocessWorkflow(engine *Engine, log *slog.Logger) *UltraReprocessWorkflow {
	return &UltraReprocessWorkflow{
		engine: engine,
		log:    log.With("workflow", "reprocess"),
	}
}

// Run implements queue.Runner.
func (w *UltraReprocessWorkflow) Run(ctx context.Context, t task.Task) error {
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
		return task.WrapError(task.ErrKindInvalidInput, fmt.Errorf("loading base document %s: %w", filename, err))
	}
	base, body, err := report.ParseFrontMatter(content)
	if err != nil {
		return task.WrapError(task.ErrKindInvalidInput, fmt.Errorf("base document %s: %w", filename, err))
	}

	w.engine.manager.SendLog(t.ID, "info",
		fmt.Sprintf("基于《%s》v%d 进行深度重读", base.TitleCN, base.Version))

	src := Source{
		Content: body,
		BaseMeta: report.Meta{
			UploadDate:        base.UploadDate,
			VideoURL:          base.VideoURL,
			ContentIdentifier: base.ContentIdentifier,
			IsReinvent:        base.IsReinvent,
			CourseCode:        base.CourseCode,
			Level:             base.Level,
			IsUltraDeep:       true,
			BaseVersion:       base.Version,
		},
	}
	return w.engine.Execute(ctx, t, src)
}
