package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepread-ai/deepread/pkg/config"
	"github.com/deepread-ai/deepread/pkg/report"
	"github.com/deepread-ai/deepread/pkg/source"
	"github.com/deepread-ai/deepread/pkg/store"
	"github.com/deepread-ai/deepread/pkg/task"
)

type stubFetcher struct {
	transcript string
	err        error
	calls      int
}

func (s *stubFetcher) FetchTranscript(context.Context, string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.transcript, nil
}

type stubShots struct {
	err      error
	calls    int
	lastHTML string
	lastOut  string
}

func (s *stubShots) Screenshot(_ context.Context, htmlPath, outPath string) error {
	s.calls++
	s.lastHTML, s.lastOut = htmlPath, outPath
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(outPath, []byte("png"), 0o644)
}

// seedBaseDocument writes a v1 report the reprocess and visual workflows
// can start from.
func seedBaseDocument(t *testing.T, f *engineFixture, url string) (string, string) {
	t.Helper()
	hash := store.GenerateDocHash(url)
	meta := &report.Meta{
		TitleCN:    "旧版解读",
		TitleEN:    "Base Interpretation",
		UploadDate: "2026-05-01",
		CreatedAt:  "2026-05-02T08:00:00Z",
		Version:    1,
		Hash:       hash,
		VideoURL:   url,
	}
	content, err := report.Assemble(meta, "旧引言。", []string{"### 1. 旧章节\n\n旧正文。"}, "")
	require.NoError(t, err)
	name := report.Filename(meta)
	require.NoError(t, f.store.WriteDocument(name, content))
	f.registry.Add(name, meta)
	return hash, name
}

func TestVideoWorkflowHappyPath(t *testing.T) {
	f := newEngineFixture(t)
	fetcher := &stubFetcher{transcript: strings.Repeat("字幕内容。", 100)}
	w := NewVideoWorkflow(f.engine, fetcher, slog.Default())

	url := "https://www.youtube.com/watch?v=MMMMMMMMMMM"
	tk := f.beginTask(t, task.KindVideo, task.ModeDeep, url)

	require.NoError(t, w.Run(context.Background(), tk))
	assert.Equal(t, 1, fetcher.calls)

	snap, err := f.manager.Snapshot(tk.ID)
	require.NoError(t, err)
	require.Equal(t, task.StatusCompleted, snap.Status)

	content, err := f.store.ReadDocument(snap.Result.File)
	require.NoError(t, err)
	meta, _, err := report.ParseFrontMatter(content)
	require.NoError(t, err)
	assert.Equal(t, url, meta.VideoURL)
	assert.Empty(t, meta.ContentIdentifier)
}

func TestVideoWorkflowFetchFailurePropagates(t *testing.T) {
	f := newEngineFixture(t)
	fetcher := &stubFetcher{err: task.NewError(task.ErrKindSourceUnavailable, "video has no subtitles")}
	w := NewVideoWorkflow(f.engine, fetcher, slog.Default())
	tk := f.beginTask(t, task.KindVideo, task.ModeDeep, "https://www.youtube.com/watch?v=OOOOOOOOOOO")

	err := w.Run(context.Background(), tk)
	require.Error(t, err)
	terr, ok := task.AsError(err)
	require.True(t, ok)
	assert.Equal(t, task.ErrKindSourceUnavailable, terr.Kind)
	assert.Empty(t, f.llm.recorded(), "no generation may start without a transcript")
}

func TestVideoWorkflowConfirmationGate(t *testing.T) {
	f := newEngineFixture(t)
	f.gen.RequireConfirmation = true
	fetcher := &stubFetcher{transcript: "字幕内容。"}
	w := NewVideoWorkflow(f.engine, fetcher, slog.Default())
	tk := f.beginTask(t, task.KindVideo, task.ModeDeep, "https://www.youtube.com/watch?v=PPPPPPPPPPP")

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background(), tk) }()

	require.Eventually(t, func() bool {
		snap, err := f.manager.Snapshot(tk.ID)
		return err == nil && snap.Status == task.StatusAwaitingConfirmation
	}, 2*time.Second, 10*time.Millisecond)

	snap, err := f.manager.Snapshot(tk.ID)
	require.NoError(t, err)
	require.NotNil(t, snap.PreAnalysis)
	assert.Equal(t, "技术演讲", snap.PreAnalysis.ContentType)

	require.NoError(t, f.manager.Confirm(tk.ID, map[string]any{"style": "轻松科普"}))
	require.NoError(t, <-done)

	var sawStyle bool
	for _, call := range f.llm.recorded() {
		if strings.Contains(call.Prompt, "章节大纲") && strings.Contains(call.Prompt, "轻松科普") {
			sawStyle = true
		}
	}
	assert.True(t, sawStyle, "confirmed style must reach the outline prompt")
}

func TestVideoWorkflowPreAnalysisFailureSkipsGate(t *testing.T) {
	f := newEngineFixture(t)
	f.gen.RequireConfirmation = true
	f.llm.profile = "这不是一个 JSON 画像"
	fetcher := &stubFetcher{transcript: "字幕内容。"}
	w := NewVideoWorkflow(f.engine, fetcher, slog.Default())
	tk := f.beginTask(t, task.KindVideo, task.ModeDeep, "https://www.youtube.com/watch?v=QQQQQQQQQQQ")

	require.NoError(t, w.Run(context.Background(), tk))

	snap, err := f.manager.Snapshot(tk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, snap.Status)

	for _, ev := range drainEvents(t, f.manager, tk.ID) {
		assert.NotEqual(t, task.EventTypePreAnalysis, ev["type"],
			"an unusable profile must not pause the task")
	}
}

func TestDocumentWorkflowMarkdown(t *testing.T) {
	f := newEngineFixture(t)
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# 文档\n\n这里是正文内容。"), 0o644))

	w := NewDocumentWorkflow(f.engine, source.NewDocumentExtractor(config.DefaultSourceConfig(), slog.Default()), slog.Default())
	tk := f.beginTask(t, task.KindDocument, task.ModeDeep, "markdown://deadbeef")
	tk.DocumentPath = path

	require.NoError(t, w.Run(context.Background(), tk))

	snap, err := f.manager.Snapshot(tk.ID)
	require.NoError(t, err)
	require.Equal(t, task.StatusCompleted, snap.Status)

	content, err := f.store.ReadDocument(snap.Result.File)
	require.NoError(t, err)
	meta, _, err := report.ParseFrontMatter(content)
	require.NoError(t, err)
	assert.Equal(t, "markdown://deadbeef", meta.ContentIdentifier)
	assert.Empty(t, meta.VideoURL)

	var sawText bool
	for _, call := range f.llm.recorded() {
		if strings.Contains(call.Prompt, "这里是正文内容。") {
			sawText = true
		}
	}
	assert.True(t, sawText, "extracted text must reach the prompts")
}

func TestDocumentWorkflowUnsupportedType(t *testing.T) {
	f := newEngineFixture(t)
	w := NewDocumentWorkflow(f.engine, source.NewDocumentExtractor(config.DefaultSourceConfig(), slog.Default()), slog.Default())
	tk := f.beginTask(t, task.KindDocument, task.ModeDeep, "zip://cafe")
	tk.DocumentPath = "/tmp/upload.zip"

	err := w.Run(context.Background(), tk)
	require.Error(t, err)
	terr, ok := task.AsError(err)
	require.True(t, ok)
	assert.Equal(t, task.ErrKindInvalidInput, terr.Kind)
}

func TestDocumentWorkflowPDFFallsBackToAttachment(t *testing.T) {
	f := newEngineFixture(t)
	path := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644))

	cfg := config.DefaultSourceConfig()
	cfg.PdfToTextBin = "definitely-not-installed-xyz"
	w := NewDocumentWorkflow(f.engine, source.NewDocumentExtractor(cfg, slog.Default()), slog.Default())
	tk := f.beginTask(t, task.KindDocument, task.ModeDeep, "pdf://feedface")
	tk.DocumentPath = path

	require.NoError(t, w.Run(context.Background(), tk))

	calls := f.llm.recorded()
	require.NotEmpty(t, calls)
	for _, call := range calls {
		require.NotNil(t, call.Attachment, "every content call must carry the PDF")
		assert.Equal(t, path, call.Attachment.Path)
		assert.Equal(t, "application/pdf", call.Attachment.MIME)
	}
}

func TestUltraReprocessCreatesNextVersion(t *testing.T) {
	f := newEngineFixture(t)
	url := "https://www.youtube.com/watch?v=RRRRRRRRRRR"
	seedBaseDocument(t, f, url)

	f.llm.outlineFn = func(int) (string, error) { return outlineRaw(12), nil }
	w := NewUltraReprocessWorkflow(f.engine, slog.Default())
	tk := f.beginTask(t, task.KindUltraReprocess, task.ModeUltra, url)

	require.NoError(t, w.Run(context.Background(), tk))

	snap, err := f.manager.Snapshot(tk.ID)
	require.NoError(t, err)
	require.NotNil(t, snap.Result)
	assert.Equal(t, 2, snap.Result.Version)

	content, err := f.store.ReadDocument(snap.Result.File)
	require.NoError(t, err)
	meta, _, err := report.ParseFrontMatter(content)
	require.NoError(t, err)
	assert.True(t, meta.IsUltraDeep)
	assert.Equal(t, 1, meta.BaseVersion)
	assert.Equal(t, 2, meta.Version)
	assert.Equal(t, url, meta.VideoURL)
	assert.Equal(t, "2026-05-01", meta.UploadDate, "upload date carries over from the base document")

	var sawBase bool
	for _, call := range f.llm.recorded() {
		if strings.Contains(call.Prompt, "旧正文。") {
			sawBase = true
		}
	}
	assert.True(t, sawBase, "the base report body is the reprocess source")
}

func TestUltraReprocessMissingBase(t *testing.T) {
	f := newEngineFixture(t)
	w := NewUltraReprocessWorkflow(f.engine, slog.Default())
	tk := f.beginTask(t, task.KindUltraReprocess, task.ModeUltra, "https://www.youtube.com/watch?v=SSSSSSSSSSS")

	err := w.Run(context.Background(), tk)
	require.Error(t, err)
	terr, ok := task.AsError(err)
	require.True(t, ok)
	assert.Equal(t, task.ErrKindInvalidInput, terr.Kind)
}

func TestVisualWorkflowWritesPageAndFrontMatter(t *testing.T) {
	f := newEngineFixture(t)
	url := "https://www.youtube.com/watch?v=TTTTTTTTTTT"
	hash, filename := seedBaseDocument(t, f, url)

	shots := &stubShots{}
	w := NewVisualWorkflow(f.engine, shots, slog.Default())
	tk := f.beginTask(t, task.KindVisual, task.ModeDeep, url)

	require.NoError(t, w.Run(context.Background(), tk))

	htmlPath := filepath.Join(f.store.ImagesDir(), hash+"_visual.html")
	data, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<html")

	assert.Equal(t, 1, shots.calls)
	assert.Equal(t, htmlPath, shots.lastHTML)
	assert.Equal(t, filepath.Join(f.store.ImagesDir(), hash+"_visual.png"), shots.lastOut)

	content, err := f.store.ReadDocument(filename)
	require.NoError(t, err)
	meta, _, err := report.ParseFrontMatter(content)
	require.NoError(t, err)
	require.NotNil(t, meta.VisualInterpretation)
	assert.Equal(t, "completed", meta.VisualInterpretation.Status)
	assert.Equal(t, hash+"_visual.html", meta.VisualInterpretation.File)
	assert.NotEmpty(t, meta.VisualInterpretation.GeneratedAt)

	snap, err := f.manager.Snapshot(tk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, snap.Status)
}

func TestVisualWorkflowScreenshotFailureIsNotFatal(t *testing.T) {
	f := newEngineFixture(t)
	url := "https://www.youtube.com/watch?v=UUUUUUUUUUU"
	_, filename := seedBaseDocument(t, f, url)

	shots := &stubShots{err: errors.New("no browser available")}
	w := NewVisualWorkflow(f.engine, shots, slog.Default())
	tk := f.beginTask(t, task.KindVisual, task.ModeDeep, url)

	require.NoError(t, w.Run(context.Background(), tk))

	content, err := f.store.ReadDocument(filename)
	require.NoError(t, err)
	meta, _, err := report.ParseFrontMatter(content)
	require.NoError(t, err)
	require.NotNil(t, meta.VisualInterpretation)
	assert.Equal(t, "completed", meta.VisualInterpretation.Status)
}

func TestVisualWorkflowRejectsNonHTML(t *testing.T) {
	f := newEngineFixture(t)
	url := "https://www.youtube.com/watch?v=VVVVVVVVVVV"
	seedBaseDocument(t, f, url)

	f.llm.visualHTML = "抱歉，我无法生成这个页面。"
	w := NewVisualWorkflow(f.engine, &stubShots{}, slog.Default())
	tk := f.beginTask(t, task.KindVisual, task.ModeDeep, url)

	err := w.Run(context.Background(), tk)
	require.Error(t, err)
	terr, ok := task.AsError(err)
	require.True(t, ok)
	assert.Equal(t, task.ErrKindAnalysis, terr.Kind)
}

func TestExtractHTML(t *testing.T) {
	fenced := "说明文字\n```html\n<!DOCTYPE html>\n<html><body>图</body></html>\n```\n收尾"
	got, err := extractHTML(fenced)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "<!DOCTYPE html>"))
	assert.True(t, strings.HasSuffix(got, "</html>"))

	bare := "前言 <html><body>图</body></html> 后记"
	got, err = extractHTML(bare)
	require.NoError(t, err)
	assert.Equal(t, "<html><body>图</body></html>", got)

	_, err = extractHTML("没有任何页面内容")
	require.Error(t, err)
}
