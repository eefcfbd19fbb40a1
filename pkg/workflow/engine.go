// Package workflow implements the interpretation workflows the worker
// pool dispatches to: video, document, ultra reprocess, and visual
// interpretation. The shared Engine drives the five-stage generation
// pipeline (outline, chapters, conclusion, assembly, post-processing)
// over a prepared source.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deepread-ai/deepread/pkg/config"
	"github.com/deepread-ai/deepread/pkg/llm"
	"github.com/deepread-ai/deepread/pkg/observe"
	"github.com/deepread-ai/deepread/pkg/outline"
	"github.com/deepread-ai/deepread/pkg/postproc"
	"github.com/deepread-ai/deepread/pkg/prompt"
	"github.com/deepread-ai/deepread/pkg/report"
	"github.com/deepread-ai/deepread/pkg/store"
	"github.com/deepread-ai/deepread/pkg/task"
)

// Source is the prepared input the engine interprets. Exactly one of
// Content / Attachment must be usable; Attachment may accompany Content
// when the provider should read the original file directly.
type Source struct {
	Content    string
	Attachment *llm.Attachment

	// Profile carries confirmed pre-analysis hints, nil when the
	// confirmation path did not run.
	Profile *task.Profile

	// BaseMeta seeds the report front matter: source identity fields and
	// any values carried over from a base document.
	BaseMeta report.Meta
}

// Engine runs the staged generation pipeline. One instance is shared by
// all workflows; per-task state lives on the stack of Execute.
type Engine struct {
	client   llm.Client
	store    *store.DocumentStore
	registry *store.HashRegistry
	manager  *task.Manager
	pipeline *postproc.Pipeline
	gen      *config.GenerationConfig
	metrics  *observe.Metrics
	log      *slog.Logger
}

func NewEngine(
	client llm.Client,
	st *store.DocumentStore,
	registry *store.HashRegistry,
	manager *task.Manager,
	pipeline *postproc.Pipeline,
	gen *config.GenerationConfig,
	metrics *observe.Metrics,
	log *slog.Logger,
) *Engine {
	if gen == nil {
		gen = config.DefaultGenerationConfig()
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Engine{
		client:   client,
		store:    st,
		registry: registry,
		manager:  manager,
		pipeline: pipeline,
		gen:      gen,
		metrics:  metrics,
		log:      log.With("component", "engine"),
	}
}

// Execute runs all five stages and reports the result through the task
// manager. Stage boundaries map to fixed progress values: outline ends
// at 25, chapters at 75, conclusion at 90, assembly at 95; 100 is set by
// the terminal result.
func (e *Engine) Execute(ctx context.Context, t task.Task, src Source) error {
	scratch, err := e.store.ScratchDir(t.ID, t.Kind, t.SubmittedAt)
	if err != nil {
		return task.WrapError(task.ErrKindUnknown, err)
	}

	plan, outlineText, err := e.outlineStage(ctx, t, src, scratch)
	if err != nil {
		return err
	}

	if err := e.chapterStage(ctx, t, src, plan, outlineText, scratch); err != nil {
		return err
	}

	chapters, conclusion, err := e.conclusionStage(ctx, t, src, scratch, len(plan.Chapters))
	if err != nil {
		return err
	}

	content, meta, filename, err := e.assemblyStage(ctx, t, src, plan, chapters, conclusion, scratch)
	if err != nil {
		return err
	}

	e.postprocessStage(ctx, t, meta, filename, content, scratch)

	e.manager.SendResult(t.ID, task.Result{
		DocHash: t.DocHash,
		File:    filename,
		Title:   meta.TitleCN,
		Version: meta.Version,
	})
	return nil
}

func (e *Engine) outlineStage(ctx context.Context, t task.Task, src Source, scratch string) (*outline.Plan, string, error) {
	start := time.Now()
	e.manager.UpdateProgress(t.ID, 5, "outline", "正在设计章节大纲")

	mode := prompt.ModeFor(t.Mode)
	thinking := llm.ThinkingMedium
	if t.Mode == task.ModeUltra {
		thinking = llm.ThinkingHigh
	}
	req := &llm.Request{
		System:     prompt.SystemInterpreter,
		Prompt:     prompt.BuildOutlinePrompt(src.Content, mode, src.Profile),
		Thinking:   thinking,
		Attachment: src.Attachment,
	}

	raw, plan, err := e.generateOutline(ctx, req)
	if err != nil {
		return nil, "", err
	}

	if t.Mode == task.ModeUltra && len(plan.Chapters) > prompt.ChapterHardCap {
		e.manager.SendLog(t.ID, "warning",
			fmt.Sprintf("大纲包含 %d 章，超出 %d 章上限，重新生成", len(plan.Chapters), prompt.ChapterHardCap))
		raw, plan, err = e.generateOutline(ctx, req)
		if err != nil {
			return nil, "", err
		}
		if len(plan.Chapters) > prompt.ChapterHardCap {
			return nil, "", task.NewError(task.ErrKindChapterCountExceeded,
				"outline still has %d chapters after regeneration (cap %d)",
				len(plan.Chapters), prompt.ChapterHardCap)
		}
	}

	if err := e.store.WriteScratch(scratch, "outline.md", raw); err != nil {
		return nil, "", task.WrapError(task.ErrKindUnknown, err)
	}

	msg := fmt.Sprintf("大纲完成：《%s》，共 %d 章", plan.Title(), len(plan.Chapters))
	if info := outline.ExtractContentTypeInfo(raw); info != "" {
		msg += "，" + info
	}
	e.manager.UpdateProgress(t.ID, 25, "outline", msg)
	e.log.Info("Outline generated",
		"task_id", t.ID, "title", plan.Title(), "chapters", len(plan.Chapters))
	e.metrics.RecordStage(ctx, string(t.Kind), "outline", time.Since(start).Seconds())
	return plan, raw, nil
}

func (e *Engine) generateOutline(ctx context.Context, req *llm.Request) (string, *outline.Plan, error) {
	raw, err := e.client.Generate(ctx, req)
	if err != nil {
		return "", nil, wrapLLM(err)
	}
	plan, err := outline.Parse(raw)
	if err != nil {
		return "", nil, task.WrapError(task.ErrKindOutlineParse, err)
	}
	return raw, plan, nil
}

// chapterStage writes chapter_<n>.md files to the scratch dir; the
// conclusion stage reads them back, so chapters never accumulate here.
func (e *Engine) chapterStage(ctx context.Context, t task.Task, src Source, plan *outline.Plan, outlineText, scratch string) error {
	start := time.Now()
	total := len(plan.Chapters)
	e.manager.UpdateProgress(t.ID, 25, "chapters", fmt.Sprintf("开始生成 %d 个章节", total))

	var err error
	if e.gen.Mode == config.GenerationModeSequential {
		err = e.sequentialChapters(ctx, t, src, plan, outlineText, scratch)
	} else {
		err = e.concurrentChapters(ctx, t, src, plan, outlineText, scratch)
	}
	if err != nil {
		return err
	}
	e.metrics.RecordStage(ctx, string(t.Kind), "chapters", time.Since(start).Seconds())
	return nil
}

// concurrentChapters runs one call per chapter, staggered so the calls
// hit the provider rate limiter spread out. Chapter calls see only the
// source, the outline, and their own plan entry.
func (e *Engine) concurrentChapters(ctx context.Context, t task.Task, src Source, plan *outline.Plan, outlineText, scratch string) error {
	total := len(plan.Chapters)
	var done atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	for i, ch := range plan.Chapters {
		delay := time.Duration(i) * e.gen.ConcurrentDelay
		g.Go(func() error {
			if delay > 0 {
				timer := time.NewTimer(delay)
				defer timer.Stop()
				select {
				case <-timer.C:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			in := prompt.ChapterPromptInput{
				Content:     src.Content,
				OutlineText: outlineText,
				Chapter:     ch,
			}
			if err := e.generateChapter(gctx, src, in, scratch); err != nil {
				return fmt.Errorf("chapter %d: %w", ch.Index, err)
			}
			n := int(done.Add(1))
			e.manager.UpdateProgress(t.ID, 25+n*50/total, "chapters",
				fmt.Sprintf("第 %d 章完成（%d/%d）", ch.Index, n, total))
			return nil
		})
	}
	return g.Wait()
}

// sequentialChapters runs chapters in order, feeding each call the full
// previous chapter and short summaries of everything before it.
func (e *Engine) sequentialChapters(ctx context.Context, t task.Task, src Source, plan *outline.Plan, outlineText, scratch string) error {
	total := len(plan.Chapters)
	var summaries []string
	prev := ""
	for i, ch := range plan.Chapters {
		in := prompt.ChapterPromptInput{
			Content:           src.Content,
			OutlineText:       outlineText,
			Chapter:           ch,
			PreviousChapter:   prev,
			PreviousSummaries: summaries,
		}
		if err := e.generateChapter(ctx, src, in, scratch); err != nil {
			return fmt.Errorf("chapter %d: %w", ch.Index, err)
		}

		text, err := e.store.ReadScratch(scratch, chapterFile(ch.Index))
		if err != nil {
			return task.WrapError(task.ErrKindUnknown, err)
		}
		if prev != "" {
			summaries = append(summaries, chapterSummary(prev))
		}
		prev = text

		e.manager.UpdateProgress(t.ID, 25+(i+1)*50/total, "chapters",
			fmt.Sprintf("第 %d 章完成（%d/%d）", ch.Index, i+1, total))
	}
	return nil
}

func (e *Engine) generateChapter(ctx context.Context, src Source, in prompt.ChapterPromptInput, scratch string) error {
	raw, err := e.client.Generate(ctx, &llm.Request{
		System:     prompt.SystemInterpreter,
		Prompt:     prompt.BuildChapterPrompt(in),
		Thinking:   llm.ThinkingLow,
		Attachment: src.Attachment,
	})
	if err != nil {
		return wrapLLM(err)
	}
	text := report.NormalizeChapter(in.Chapter.Index, in.Chapter.Title, raw)
	if err := e.store.WriteScratch(scratch, chapterFile(in.Chapter.Index), text); err != nil {
		return task.WrapError(task.ErrKindUnknown, err)
	}
	return nil
}

// conclusionStage reads the chapter files back and writes the
// conclusion. It returns the chapters too; assembly reuses them.
func (e *Engine) conclusionStage(ctx context.Context, t task.Task, src Source, scratch string, total int) ([]string, string, error) {
	start := time.Now()
	e.manager.UpdateProgress(t.ID, 75, "conclusion", "正在撰写结语")

	chapters := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		text, err := e.store.ReadScratch(scratch, chapterFile(i))
		if err != nil {
			return nil, "", task.WrapError(task.ErrKindUnknown, err)
		}
		chapters = append(chapters, text)
	}

	raw, err := e.client.Generate(ctx, &llm.Request{
		System:     prompt.SystemInterpreter,
		Prompt:     prompt.BuildConclusionPrompt(src.Content, chapters),
		Attachment: src.Attachment,
	})
	if err != nil {
		return nil, "", wrapLLM(err)
	}
	if err := e.store.WriteScratch(scratch, "conclusion.md", raw); err != nil {
		return nil, "", task.WrapError(task.ErrKindUnknown, err)
	}

	e.manager.UpdateProgress(t.ID, 90, "conclusion", "结语完成")
	e.metrics.RecordStage(ctx, string(t.Kind), "conclusion", time.Since(start).Seconds())
	return chapters, raw, nil
}

func (e *Engine) assemblyStage(ctx context.Context, t task.Task, src Source, plan *outline.Plan, chapters []string, conclusion, scratch string) (string, *report.Meta, string, error) {
	start := time.Now()
	e.manager.UpdateProgress(t.ID, 90, "assembly", "正在组装最终报告")

	meta := src.BaseMeta
	meta.TitleCN = plan.Title()
	meta.TitleEN = plan.TitleEN
	meta.Hash = t.DocHash
	meta.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	if meta.UploadDate == "" {
		meta.UploadDate = t.SubmittedAt.UTC().Format("2006-01-02")
	}
	if meta.Version == 0 {
		meta.Version = e.registry.NextVersion(t.DocHash)
	}

	content, err := report.Assemble(&meta, plan.Introduction, chapters, conclusion)
	if err != nil {
		return "", nil, "", task.WrapError(task.ErrKindUnknown, err)
	}
	if err := e.store.WriteScratch(scratch, "final_report.md", content); err != nil {
		return "", nil, "", task.WrapError(task.ErrKindUnknown, err)
	}

	filename := report.Filename(&meta)
	if err := e.store.WriteDocument(filename, content); err != nil {
		return "", nil, "", task.WrapError(task.ErrKindUnknown, err)
	}
	e.registry.Add(filename, &meta)
	e.metrics.RecordDocumentWritten(ctx, string(t.Mode))

	e.manager.UpdateProgress(t.ID, 95, "assembly", fmt.Sprintf("报告已写入 %s", filename))
	e.log.Info("Report written",
		"task_id", t.ID, "file", filename, "version", meta.Version, "chapters", meta.ChapterCount)
	e.metrics.RecordStage(ctx, string(t.Kind), "assembly", time.Since(start).Seconds())
	return content, &meta, filename, nil
}

// postprocessStage can rewrite the in-memory content but never fails the
// task; processor failures surface as warning log events only.
func (e *Engine) postprocessStage(ctx context.Context, t task.Task, meta *report.Meta, filename, content, scratch string) {
	start := time.Now()
	e.manager.UpdateProgress(t.ID, 95, "postprocessing", "正在运行后处理流水线")

	pctx := &postproc.Context{
		TaskID:      t.ID,
		Kind:        t.Kind,
		Mode:        t.Mode,
		DocHash:     t.DocHash,
		VideoURL:    t.VideoURL,
		Filename:    filename,
		ArticlePath: e.store.DocumentPath(filename),
		Meta:        meta,
		ScratchDir:  scratch,
	}
	_, summary := e.pipeline.Run(ctx, pctx, content)

	for _, msg := range summary.Messages {
		e.manager.SendLog(t.ID, "info", msg)
	}
	if len(summary.Failed) > 0 {
		e.manager.SendLog(t.ID, "warning",
			fmt.Sprintf("后处理步骤失败：%s", strings.Join(summary.Failed, "、")))
	}
	e.metrics.RecordStage(ctx, string(t.Kind), "postprocessing", time.Since(start).Seconds())
}

func chapterFile(index int) string {
	return fmt.Sprintf("chapter_%d.md", index)
}

// chapterSummary truncates a chapter to the length the sequential
// continuity context carries per earlier chapter.
func chapterSummary(text string) string {
	const limit = 500
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit]) + "……"
}

// wrapLLM classifies a provider failure for the task surface. Missing
// credentials are a deployment problem; anything else that escaped the
// retry budget reads as an analysis failure.
func wrapLLM(err error) error {
	if errors.Is(err, llm.ErrMissingAPIKey) {
		return task.WrapError(task.ErrKindConfig, err)
	}
	if terr, ok := task.AsError(err); ok {
		return terr
	}
	return task.WrapError(task.ErrKindAnalysis, err)
}
