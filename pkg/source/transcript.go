package source

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/deepread-ai/deepread/pkg/config"
	"github.com/deepread-ai/deepread/pkg/task"
)

// TranscriptFetcher produces the transcript text for a normalized video
// URL. Tests substitute a canned implementation.
type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, videoURL string) (string, error)
}

// YtDlpFetcher fetches subtitles with the yt-dlp binary and flattens
// them into plain transcript text. Languages are tried in configured
// preference order; auto-generated captions are accepted.
type YtDlpFetcher struct {
	bin     string
	langs   []string
	timeout time.Duration
	log     *slog.Logger
}

func NewYtDlpFetcher(cfg *config.SourceConfig, log *slog.Logger) *YtDlpFetcher {
	return &YtDlpFetcher{
		bin:     cfg.YtDlpBin,
		langs:   cfg.SubtitleLangs,
		timeout: cfg.FetchTimeout,
		log:     log.With("component", "transcript_fetcher"),
	}
}

func (f *YtDlpFetcher) FetchTranscript(ctx context.Context, videoURL string) (string, error) {
	if _, err := exec.LookPath(f.bin); err != nil {
		return "", task.WrapError(task.ErrKindConfig, fmt.Errorf("%s not found in PATH: %w", f.bin, err))
	}

	dir, err := os.MkdirTemp("", "deepread-subs-*")
	if err != nil {
		return "", fmt.Errorf("creating subtitle workdir: %w", err)
	}
	defer os.RemoveAll(dir)

	runCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	args := []string{
		"--skip-download",
		"--write-subs", "--write-auto-subs",
		"--sub-langs", strings.Join(f.langs, ","),
		"--sub-format", "vtt",
		"--no-playlist", "--no-color",
		"-o", filepath.Join(dir, "subs"),
		videoURL,
	}
	cmd := exec.CommandContext(runCtx, f.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	f.log.Info("Fetching subtitles", "url", videoURL, "langs", f.langs)
	if err := cmd.Run(); err != nil {
		tail := tailLines(stderr.String(), 5)
		return "", task.WrapError(task.ErrKindSourceUnavailable, fmt.Errorf("yt-dlp failed: %w: %s", err, tail))
	}

	vtt, lang, err := f.pickSubtitleFile(dir)
	if err != nil {
		return "", err
	}
	transcript := ParseVTT(vtt)
	if strings.TrimSpace(transcript) == "" {
		return "", task.NewError(task.ErrKindSourceUnavailable, "subtitles for %s are empty", videoURL)
	}

	f.log.Info("Transcript fetched", "url", videoURL, "lang", lang, "chars", len(transcript))
	return transcript, nil
}

// pickSubtitleFile returns the first produced subtitle file in language
// preference order.
func (f *YtDlpFetcher) pickSubtitleFile(dir string) (string, string, error) {
	for _, lang := range f.langs {
		data, err := os.ReadFile(filepath.Join(dir, "subs."+lang+".vtt"))
		if err == nil {
			return string(data), lang, nil
		}
	}
	// yt-dlp may have picked a close language variant; take anything.
	matches, _ := filepath.Glob(filepath.Join(dir, "*.vtt"))
	if len(matches) > 0 {
		data, err := os.ReadFile(matches[0])
		if err == nil {
			return string(data), strings.TrimSuffix(filepath.Base(matches[0]), ".vtt"), nil
		}
	}
	return "", "", task.NewError(task.ErrKindSourceUnavailable, "video has no subtitles in %v", f.langs)
}

var (
	cueTimingRe = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}[.,]\d{3}\s+-->\s+\d{2}:\d{2}:\d{2}[.,]\d{3}`)
	inlineTagRe = regexp.MustCompile(`<[^>]*>`)
)

// ParseVTT flattens a WebVTT subtitle file into plain text: headers,
// cue timings, positioning and inline tags are dropped, and the
// consecutive duplicate lines that auto-generated captions produce are
// collapsed.
func ParseVTT(vtt string) string {
	var lines []string
	last := ""
	for _, line := range strings.Split(vtt, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "" || line == "WEBVTT":
			continue
		case strings.HasPrefix(line, "Kind:") || strings.HasPrefix(line, "Language:"):
			continue
		case strings.HasPrefix(line, "NOTE") || strings.HasPrefix(line, "STYLE"):
			continue
		case cueTimingRe.MatchString(line):
			continue
		case isCueIdentifier(line):
			continue
		}
		text := strings.TrimSpace(inlineTagRe.ReplaceAllString(line, ""))
		if text == "" || text == last {
			continue
		}
		lines = append(lines, text)
		last = text
	}
	return strings.Join(lines, "\n")
}

// isCueIdentifier reports whether a line is a bare numeric cue counter.
func isCueIdentifier(line string) bool {
	if line == "" {
		return false
	}
	for _, r := range line {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
