// Package postproc runs derivation work after a report has been
// assembled and written: HTML visualization, PDF export, screenshots,
// audio narration, and follow-up visual-interpretation tasks.
//
// Processors are registered with a priority and run in ascending order.
// Synchronous processors may rewrite the rolling report content;
// fire-and-forget processors run in the background, outlive the task,
// and can never fail the pipeline.
package postproc

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/deepread-ai/deepread/pkg/report"
	"github.com/deepread-ai/deepread/pkg/task"
)

// Context carries the immutable task facts processors read. Extra is
// shared scratch for passing data between processors; it is written
// only during the synchronous phase, so background processors may read
// it without locking.
type Context struct {
	TaskID   string
	Kind     task.Kind
	Mode     task.Mode
	DocHash  string
	VideoURL string

	// Filename is the report's name in the documents directory;
	// ArticlePath is its absolute path.
	Filename    string
	ArticlePath string

	Meta       *report.Meta
	ScratchDir string

	Extra map[string]any
}

// Result is what a processor produces. A non-empty Content replaces the
// rolling report content (synchronous processors only).
type Result struct {
	Content string
	Message string
	Changes []string
}

// Processor is one post-processing step.
type Processor interface {
	Name() string
	Priority() int
	// Async processors are started in the background and never awaited.
	Async() bool
	ShouldRun(pctx *Context) bool
	Process(ctx context.Context, pctx *Context, content string) (*Result, error)
}

// Summary aggregates one pipeline run.
type Summary struct {
	Ran      []string
	Spawned  []string
	Skipped  []string
	Failed   []string
	Messages []string
}

// Pipeline holds the registered processors.
type Pipeline struct {
	processors  []Processor
	stopOnError bool
	log         *slog.Logger

	wg sync.WaitGroup
}

func NewPipeline(stopOnError bool, log *slog.Logger) *Pipeline {
	return &Pipeline{
		stopOnError: stopOnError,
		log:         log.With("component", "postproc"),
	}
}

// Register adds a processor, keeping the list sorted by priority
// ascending. Not safe to call after Run.
func (p *Pipeline) Register(proc Processor) {
	p.processors = append(p.processors, proc)
	sort.SliceStable(p.processors, func(i, j int) bool {
		return p.processors[i].Priority() < p.processors[j].Priority()
	})
}

// Run executes the pipeline over the assembled report content and
// returns the final content plus a summary. Synchronous failures are
// logged; with stopOnError the remaining processors are skipped and the
// last good content is returned. Background processors receive a
// context detached from the task's so they survive task completion.
func (p *Pipeline) Run(ctx context.Context, pctx *Context, content string) (string, *Summary) {
	if pctx.Extra == nil {
		pctx.Extra = make(map[string]any)
	}
	summary := &Summary{}

	for _, proc := range p.processors {
		if !proc.ShouldRun(pctx) {
			summary.Skipped = append(summary.Skipped, proc.Name())
			continue
		}

		if proc.Async() {
			p.spawn(context.WithoutCancel(ctx), proc, pctx, content)
			summary.Spawned = append(summary.Spawned, proc.Name())
			continue
		}

		start := time.Now()
		result, err := proc.Process(ctx, pctx, content)
		if err != nil {
			p.log.Error("Post-processor failed",
				"processor", proc.Name(), "task_id", pctx.TaskID, "error", err)
			summary.Failed = append(summary.Failed, proc.Name())
			if p.stopOnError {
				summary.Messages = append(summary.Messages,
					fmt.Sprintf("%s: pipeline aborted: %v", proc.Name(), err))
				break
			}
			continue
		}

		summary.Ran = append(summary.Ran, proc.Name())
		if result != nil {
			if result.Content != "" {
				content = result.Content
			}
			if result.Message != "" {
				summary.Messages = append(summary.Messages,
					fmt.Sprintf("%s: %s", proc.Name(), result.Message))
			}
		}
		p.log.Info("Post-processor finished",
			"processor", proc.Name(), "task_id", pctx.TaskID, "elapsed", time.Since(start))
	}
	return content, summary
}

func (p *Pipeline) spawn(ctx context.Context, proc Processor, pctx *Context, content string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		start := time.Now()
		result, err := proc.Process(ctx, pctx, content)
		if err != nil {
			p.log.Error("Background post-processor failed",
				"processor", proc.Name(), "task_id", pctx.TaskID, "error", err)
			return
		}
		msg := ""
		if result != nil {
			msg = result.Message
		}
		p.log.Info("Background post-processor finished",
			"processor", proc.Name(), "task_id", pctx.TaskID,
			"message", msg, "elapsed", time.Since(start))
	}()
}

// Wait blocks until all background processors have finished. Used by
// shutdown and by tests.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}
