package config

import "os"

// PostprocConfig controls the post-processing pipeline that runs after a
// report has been assembled and written.
type PostprocConfig struct {
	// StopOnError aborts the synchronous pipeline phase on the first
	// processor failure instead of continuing with the remaining ones.
	StopOnError bool `yaml:"stop_on_error"`

	// Visualization renders the report to a standalone HTML page.
	Visualization bool `yaml:"visualization"`

	// PDFExport prints the rendered HTML page to PDF with a headless
	// browser.
	PDFExport bool `yaml:"pdf_export"`

	// Screenshot captures a full-page PNG of the rendered HTML page.
	Screenshot bool `yaml:"screenshot"`

	// BrowserBin overrides the browser binary used by the PDF and
	// screenshot processors. Empty lets the launcher locate one.
	BrowserBin string `yaml:"browser_bin"`

	// TTS synthesizes an audio narration of the report introduction.
	TTS bool `yaml:"tts"`

	// TTSBaseURL overrides the speech synthesis endpoint.
	TTSBaseURL string `yaml:"tts_base_url"`

	// TTSVoice is the provider voice identifier used for narration.
	TTSVoice string `yaml:"tts_voice"`

	// TTSAPIKeyEnv names the environment variable holding the speech
	// synthesis API key.
	TTSAPIKeyEnv string `yaml:"tts_api_key_env"`

	// TTSAPIKey is resolved from TTSAPIKeyEnv at load time. Never set it
	// in YAML.
	TTSAPIKey string `yaml:"-"`

	// VisualFollowUp enqueues a low-priority visual interpretation task
	// for every completed report.
	VisualFollowUp bool `yaml:"visual_follow_up"`
}

// resolveTTSKey fills TTSAPIKey from the configured environment variable.
func (c *PostprocConfig) resolveTTSKey() {
	if c.TTSAPIKey == "" && c.TTSAPIKeyEnv != "" {
		c.TTSAPIKey = os.Getenv(c.TTSAPIKeyEnv)
	}
}

// DefaultPostprocConfig returns the built-in post-processing defaults.
// Only the HTML visualization is on by default; the browser, speech and
// follow-up processors are opt-in.
func DefaultPostprocConfig() *PostprocConfig {
	return &PostprocConfig{
		StopOnError:    false,
		Visualization:  true,
		PDFExport:      false,
		Screenshot:     false,
		TTS:            false,
		TTSAPIKeyEnv:   "ELEVENLABS_API_KEY",
		TTSVoice:       "21m00Tcm4TlvDq8ikWAM",
		VisualFollowUp: false,
	}
}
