package postproc

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepread-ai/deepread/pkg/report"
	"github.com/deepread-ai/deepread/pkg/task"
)

func TestVisualizationProcessorWritesPage(t *testing.T) {
	s := newTestStore(t)
	p := NewVisualizationProcessor(s, true, slog.Default())

	pctx := &Context{
		Kind:    task.KindVideo,
		DocHash: "cafe1234",
		Meta:    &report.Meta{TitleCN: "测试解读"},
		Extra:   map[string]any{},
	}
	require.True(t, p.ShouldRun(pctx))

	res, err := p.Process(context.Background(), pctx, "# 测试解读\n\n正文。\n")
	require.NoError(t, err)

	wantPath := filepath.Join(s.ImagesDir(), "cafe1234_report.html")
	assert.Equal(t, wantPath, pctx.Extra[extraReportHTML])
	assert.Equal(t, []string{wantPath}, res.Changes)

	data, err := os.ReadFile(wantPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<title>测试解读</title>")
	assert.Contains(t, string(data), "正文。")
}

func TestVisualizationProcessorGating(t *testing.T) {
	s := newTestStore(t)

	assert.False(t, NewVisualizationProcessor(s, true, slog.Default()).
		ShouldRun(&Context{Kind: task.KindVisual}),
		"visual interpretation tasks do not re-render the report")
	assert.False(t, NewVisualizationProcessor(s, false, slog.Default()).
		ShouldRun(&Context{Kind: task.KindVideo}))
}

func TestExportProcessorsRequireRenderedPage(t *testing.T) {
	s := newTestStore(t)
	r := NewRenderer("", slog.Default())

	pdf := NewPDFExportProcessor(s, r, true, slog.Default())
	shot := NewScreenshotProcessor(s, r, true, slog.Default())

	bare := &Context{Kind: task.KindVideo, DocHash: "cafe1234"}
	assert.False(t, pdf.ShouldRun(bare))
	assert.False(t, shot.ShouldRun(bare))

	rendered := &Context{
		Kind:    task.KindVideo,
		DocHash: "cafe1234",
		Extra:   map[string]any{extraReportHTML: "/tmp/cafe1234_report.html"},
	}
	assert.True(t, pdf.ShouldRun(rendered))
	assert.True(t, shot.ShouldRun(rendered))

	assert.False(t, NewPDFExportProcessor(s, r, false, slog.Default()).ShouldRun(rendered))
	assert.False(t, NewScreenshotProcessor(s, r, false, slog.Default()).ShouldRun(rendered))
}

type stubSubmitter struct {
	docHash  string
	filename string
	taskID   string
	err      error
}

func (s *stubSubmitter) SubmitVisualInterpretation(docHash, filename string) (string, error) {
	s.docHash = docHash
	s.filename = filename
	return s.taskID, s.err
}

func TestVisualTaskProcessorSubmitsFollowUp(t *testing.T) {
	sub := &stubSubmitter{taskID: "task-123"}
	p := NewVisualTaskProcessor(sub, true, slog.Default())

	pctx := &Context{Kind: task.KindVideo, DocHash: "cafe1234", Filename: "解读_v1.md"}
	require.True(t, p.ShouldRun(pctx))

	res, err := p.Process(context.Background(), pctx, "正文")
	require.NoError(t, err)
	assert.Equal(t, "cafe1234", sub.docHash)
	assert.Equal(t, "解读_v1.md", sub.filename)
	assert.Contains(t, res.Message, "task-123")
}

func TestVisualTaskProcessorNeverFollowsUpOnVisualTasks(t *testing.T) {
	p := NewVisualTaskProcessor(&stubSubmitter{}, true, slog.Default())
	assert.False(t, p.ShouldRun(&Context{Kind: task.KindVisual}))
	assert.False(t, NewVisualTaskProcessor(nil, true, slog.Default()).ShouldRun(&Context{Kind: task.KindVideo}))
	assert.False(t, NewVisualTaskProcessor(&stubSubmitter{}, false, slog.Default()).ShouldRun(&Context{Kind: task.KindVideo}))
}

func TestVisualTaskProcessorPropagatesSubmitErrors(t *testing.T) {
	sub := &stubSubmitter{err: errors.New("queue is full")}
	p := NewVisualTaskProcessor(sub, true, slog.Default())

	_, err := p.Process(context.Background(), &Context{Kind: task.KindVideo, DocHash: "cafe1234"}, "正文")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue is full")
}
