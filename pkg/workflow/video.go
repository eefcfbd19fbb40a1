package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/deepread-ai/deepread/pkg/llm"
	"github.com/deepread-ai/deepread/pkg/prompt"
	"github.com/deepread-ai/deepread/pkg/report"
	"github.com/deepread-ai/deepread/pkg/source"
	"github.com/deepread-ai/deepread/pkg/task"
)

// VideoWorkflow interprets an online video through its subtitles.
type VideoWorkflow struct {
	engine  *Engine
	fetcher source.TranscriptFetcher
	log     *slog.Logger
}

func NewVideoWorkflow(engine *Engine, fetcher source.TranscriptFetcher, log *slog.Logger) *VideoWorkflow {
	return &VideoWorkflow{
		engine:  engine,
		fetcher: fetcher,
		log:     log.With("workflow", "video"),
	}
}

// Run implements queue.Runner.
func (w *VideoWorkflow) Run(ctx context.Context, t task.Task) error {
	transcript, err := w.fetcher.FetchTranscript(ctx, t.VideoURL)
	if err != nil {
		return err
	}
	w.engine.manager.SendLog(t.ID, "info",
		fmt.Sprintf("字幕获取完成，共 %d 字", utf8.RuneCountInString(transcript)))

	src := Source{
		Content:  transcript,
		BaseMeta: report.Meta{VideoURL: t.VideoURL},
	}

	if w.engine.gen.RequireConfirmation {
		profile, err := w.awaitConfirmation(ctx, t, transcript)
		if err != nil {
			return err
		}
		src.Profile = profile
	}

	return w.engine.Execute(ctx, t, src)
}

// awaitConfirmation runs the cheap profile call, pauses the task, and
// blocks until the submitter confirms or the task context dies. A failed
// pre-analysis is not fatal; the task proceeds without a profile.
func (w *VideoWorkflow) awaitConfirmation(ctx context.Context, t task.Task, content string) (*task.Profile, error) {
	profile, err := w.preAnalyze(ctx, content)
	if err != nil {
		w.log.Warn("Pre-analysis failed, proceeding without profile",
			"task_id", t.ID, "error", err)
		w.engine.manager.SendLog(t.ID, "warning", "内容预分析失败，跳过确认环节")
		return nil, nil
	}

	if err := w.engine.manager.PreAnalysisReady(t.ID, profile); err != nil {
		return nil, err
	}
	ch, err := w.engine.manager.ConfirmChan(t.ID)
	if err != nil {
		return nil, err
	}

	w.log.Info("Awaiting confirmation", "task_id", t.ID, "content_type", profile.ContentType)
	select {
	case confirmed, ok := <-ch:
		if !ok {
			return nil, task.NewError(task.ErrKindUnknown, "task was aborted while awaiting confirmation")
		}
		return confirmed, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for confirmation: %w", ctx.Err())
	}
}

func (w *VideoWorkflow) preAnalyze(ctx context.Context, content string) (*task.Profile, error) {
	raw, err := w.engine.client.Generate(ctx, &llm.Request{
		System:   prompt.SystemAnalyst,
		Prompt:   prompt.BuildPreAnalysisPrompt(content),
		JSONMode: true,
	})
	if err != nil {
		return nil, wrapLLM(err)
	}

	profile := &task.Profile{}
	if err := json.Unmarshal([]byte(stripJSONFence(raw)), profile); err != nil {
		return nil, fmt.Errorf("parsing pre-analysis profile: %w", err)
	}
	return profile, nil
}

// stripJSONFence unwraps a ```json fence when the model added one
// despite JSON mode.
func stripJSONFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
