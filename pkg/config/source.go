package config

import "time"

// SourceConfig controls content acquisition from videos and documents.
type SourceConfig struct {
	// YtDlpBin is the yt-dlp binary used to fetch video metadata and
	// subtitles. Resolved via PATH when not absolute.
	YtDlpBin string `yaml:"yt_dlp_bin"`

	// SubtitleLangs is the preference order for subtitle tracks. The first
	// available track wins; auto-generated captions are the fallback.
	SubtitleLangs []string `yaml:"subtitle_langs"`

	// FetchTimeout bounds a single yt-dlp invocation.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// PdfToTextBin converts PDFs to plain text when present. Empty sends
	// the PDF to the LLM as a file attachment instead.
	PdfToTextBin string `yaml:"pdftotext_bin"`

	// PandocBin converts .docx uploads to Markdown.
	PandocBin string `yaml:"pandoc_bin"`
}

// DefaultSourceConfig returns the built-in source defaults.
func DefaultSourceConfig() *SourceConfig {
	return &SourceConfig{
		YtDlpBin:      "yt-dlp",
		SubtitleLangs: []string{"zh-Hans", "zh-CN", "zh", "en"},
		FetchTimeout:  3 * time.Minute,
		PdfToTextBin:  "pdftotext",
		PandocBin:     "pandoc",
	}
}
