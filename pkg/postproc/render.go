package postproc

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	ghtml "github.com/yuin/goldmark/renderer/html"
)

// pageTemplate is the standalone page shell the visualization processor
// renders reports into. Everything is inline so the file works offline.
const pageTemplate = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: "PingFang SC", "Hiragino Sans GB", "Noto Sans CJK SC", "Microsoft YaHei", sans-serif;
       max-width: 860px; margin: 0 auto; padding: 48px 24px; line-height: 1.85; color: #24292f; }
h1 { font-size: 1.9em; border-bottom: 2px solid #d0d7de; padding-bottom: .4em; }
h2 { font-size: 1.45em; margin-top: 2em; border-bottom: 1px solid #d8dee4; padding-bottom: .3em; }
h3 { font-size: 1.2em; margin-top: 1.8em; }
blockquote { margin: 1em 0; padding: .2em 1em; color: #57606a; border-left: 4px solid #d0d7de; }
code { background: #f6f8fa; padding: .15em .4em; border-radius: 4px; font-size: .92em; }
pre { background: #f6f8fa; padding: 14px; border-radius: 6px; overflow-x: auto; }
pre code { background: none; padding: 0; }
table { border-collapse: collapse; margin: 1em 0; }
th, td { border: 1px solid #d0d7de; padding: 6px 12px; }
hr { border: none; border-top: 1px solid #d8dee4; margin: 2.2em 0; }
a { color: #0969da; text-decoration: none; }
a:hover { text-decoration: underline; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`

var pageTmpl = template.Must(template.New("report").Parse(pageTemplate))

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(ghtml.WithUnsafe()),
)

// RenderHTML converts report Markdown into a standalone HTML page.
func RenderHTML(title, content string) (string, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(content), &body); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	var out bytes.Buffer
	err := pageTmpl.Execute(&out, struct {
		Title string
		Body  template.HTML
	}{Title: title, Body: template.HTML(body.String())})
	if err != nil {
		return "", fmt.Errorf("rendering page: %w", err)
	}
	return out.String(), nil
}

// Renderer drives a headless browser for screenshots and PDF printing.
// Each call launches a fresh browser; these run in background processors
// where startup cost does not matter.
type Renderer struct {
	bin string
	log *slog.Logger
}

func NewRenderer(bin string, log *slog.Logger) *Renderer {
	return &Renderer{bin: bin, log: log.With("component", "renderer")}
}

func (r *Renderer) open(ctx context.Context, htmlPath string) (*rod.Page, func(), error) {
	l := launcher.New().Headless(true)
	if r.bin != "" {
		l = l.Bin(r.bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, nil, fmt.Errorf("connecting to browser: %w", err)
	}
	cleanup := func() {
		_ = browser.Close()
		l.Cleanup()
	}

	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	page, err := browser.Page(proto.TargetCreateTarget{URL: "file://" + abs})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("opening page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("loading page: %w", err)
	}
	return page, cleanup, nil
}

// Screenshot writes a full-page PNG of the rendered HTML file.
func (r *Renderer) Screenshot(ctx context.Context, htmlPath, outPath string) error {
	page, cleanup, err := r.open(ctx, htmlPath)
	if err != nil {
		return err
	}
	defer cleanup()

	data, err := page.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return fmt.Errorf("capturing screenshot: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return err
	}
	r.log.Debug("Screenshot written", "path", outPath, "bytes", len(data))
	return nil
}

// PrintPDF prints the rendered HTML file to PDF.
func (r *Renderer) PrintPDF(ctx context.Context, htmlPath, outPath string) error {
	page, cleanup, err := r.open(ctx, htmlPath)
	if err != nil {
		return err
	}
	defer cleanup()

	stream, err := page.PDF(&proto.PagePrintToPDF{PrintBackground: true})
	if err != nil {
		return fmt.Errorf("printing pdf: %w", err)
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		return fmt.Errorf("reading pdf stream: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return err
	}
	r.log.Debug("PDF written", "path", outPath, "bytes", len(data))
	return nil
}
