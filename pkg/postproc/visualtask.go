package postproc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/deepread-ai/deepread/pkg/task"
)

// TaskSubmitter enqueues follow-up tasks. Implemented by the service
// layer; declared here so the pipeline does not import it.
type TaskSubmitter interface {
	SubmitVisualInterpretation(docHash, filename string) (string, error)
}

// VisualTaskProcessor submits a low-priority visual interpretation task
// for the finished report. It never runs for visual tasks themselves, so
// a report cannot spawn an endless chain of follow-ups.
type VisualTaskProcessor struct {
	submitter TaskSubmitter
	enabled   bool
	log       *slog.Logger
}

func NewVisualTaskProcessor(submitter TaskSubmitter, enabled bool, log *slog.Logger) *VisualTaskProcessor {
	return &VisualTaskProcessor{
		submitter: submitter,
		enabled:   enabled,
		log:       log.With("processor", "visual_task"),
	}
}

func (p *VisualTaskProcessor) Name() string  { return "visual_task" }
func (p *VisualTaskProcessor) Priority() int { return 50 }
func (p *VisualTaskProcessor) Async() bool   { return true }

func (p *VisualTaskProcessor) ShouldRun(pctx *Context) bool {
	return p.enabled && p.submitter != nil && pctx.Kind != task.KindVisual
}

func (p *VisualTaskProcessor) Process(ctx context.Context, pctx *Context, content string) (*Result, error) {
	taskID, err := p.submitter.SubmitVisualInterpretation(pctx.DocHash, pctx.Filename)
	if err != nil {
		return nil, fmt.Errorf("submitting visual interpretation: %w", err)
	}
	return &Result{Message: fmt.Sprintf("visual interpretation queued (task %s)", taskID)}, nil
}
