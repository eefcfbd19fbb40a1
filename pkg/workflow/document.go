package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/deepread-ai/deepread/pkg/llm"
	"github.com/deepread-ai/deepread/pkg/report"
	"github.com/deepread-ai/deepread/pkg/source"
	"github.com/deepread-ai/deepread/pkg/task"
)

// DocumentWorkflow interprets an uploaded document.
type DocumentWorkflow struct {
	engine    *Engine
	extractor *source.DocumentExtractor
	log       *slog.Logger
}

func NewDocumentWorkflow(engine *Engine, extractor *source.DocumentExtractor, log *slog.Logger) *DocumentWorkflow {
	return &DocumentWorkflow{
		engine:    engine,
		extractor: extractor,
		log:       log.With("workflow", "document"),
	}
}

// Run implements queue.Runner.
func (w *DocumentWorkflow) Run(ctx context.Context, t task.Task) error {
	docType, err := source.DetectDocType(t.DocumentPath)
	if err != nil {
		return err
	}

	src := Source{
		BaseMeta: report.Meta{ContentIdentifier: t.SourceID},
	}

	text, err := w.extractor.ExtractText(ctx, t.DocumentPath, docType)
	switch {
	case err == nil:
		src.Content = text
		w.engine.manager.SendLog(t.ID, "info",
			fmt.Sprintf("文本提取完成，共 %d 字", utf8.RuneCountInString(text)))
	case docType == source.DocTypePDF:
		// The model can read the PDF itself when local extraction is
		// unavailable.
		w.log.Warn("Text extraction failed, attaching the raw PDF",
			"task_id", t.ID, "error", err)
		w.engine.manager.SendLog(t.ID, "warning", "文本提取失败，改为直接解读 PDF 原文件")
		src.Attachment = &llm.Attachment{
			Kind: llm.AttachmentFile,
			Path: t.DocumentPath,
			MIME: docType.MIME(),
		}
	default:
		return err
	}

	return w.engine.Execute(ctx, t, src)
}
