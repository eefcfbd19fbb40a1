// Package report assembles the final interpretation Markdown and reads
// it back: YAML front matter, TOC generation, chapter heading
// normalization, and the on-disk filename scheme.
package report

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Meta is the document front matter. Field order here is emission order.
// Exactly one of VideoURL / ContentIdentifier is set.
type Meta struct {
	TitleCN      string `yaml:"title_cn"`
	TitleEN      string `yaml:"title_en,omitempty"`
	UploadDate   string `yaml:"upload_date"`
	CreatedAt    string `yaml:"created_at"`
	ChapterCount int    `yaml:"chapter_count"`
	Version      int    `yaml:"version"`
	Hash         string `yaml:"hash"`

	VideoURL          string `yaml:"video_url,omitempty"`
	ContentIdentifier string `yaml:"content_identifier,omitempty"`

	IsReinvent  bool   `yaml:"is_reinvent,omitempty"`
	CourseCode  string `yaml:"course_code,omitempty"`
	Level       string `yaml:"level,omitempty"`
	IsUltraDeep bool   `yaml:"is_ultra_deep,omitempty"`
	BaseVersion int    `yaml:"base_version,omitempty"`
	Proofread   bool   `yaml:"proofread,omitempty"`

	VisualInterpretation *VisualInterpretation `yaml:"visual_interpretation,omitempty"`
}

// VisualInterpretation records the state of the optional visual companion.
type VisualInterpretation struct {
	Status      string `yaml:"status"`
	File        string `yaml:"file,omitempty"`
	GeneratedAt string `yaml:"generated_at,omitempty"`
}

// SourceIdentifier returns whichever source key the document carries.
func (m *Meta) SourceIdentifier() string {
	if m.VideoURL != "" {
		return m.VideoURL
	}
	return m.ContentIdentifier
}

const frontMatterDelim = "---"

// ParseFrontMatter splits a document into its front matter and body.
// The document must start with a `---` line; the error is descriptive
// because registry scans surface it per file.
func ParseFrontMatter(content string) (*Meta, string, error) {
	rest, found := strings.CutPrefix(content, frontMatterDelim+"\n")
	if !found {
		return nil, "", fmt.Errorf("document does not start with front matter")
	}
	block, body, found := strings.Cut(rest, "\n"+frontMatterDelim+"\n")
	if !found {
		// Front matter may close at EOF.
		if trimmed, ok := strings.CutSuffix(rest, "\n"+frontMatterDelim); ok {
			block, body = trimmed, ""
		} else {
			return nil, "", fmt.Errorf("front matter is not terminated")
		}
	}

	var meta Meta
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return nil, "", fmt.Errorf("parsing front matter: %w", err)
	}
	return &meta, strings.TrimLeft(body, "\n"), nil
}

// renderFrontMatter emits the YAML block including delimiters.
func renderFrontMatter(meta *Meta) (string, error) {
	encoded, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encoding front matter: %w", err)
	}
	return frontMatterDelim + "\n" + string(encoded) + frontMatterDelim + "\n", nil
}

// UpdateFrontMatter rewrites a document's front matter in place, leaving
// the body untouched. Post-processors use it to record their artifacts.
func UpdateFrontMatter(content string, mutate func(*Meta)) (string, error) {
	meta, body, err := ParseFrontMatter(content)
	if err != nil {
		return "", err
	}
	mutate(meta)
	head, err := renderFrontMatter(meta)
	if err != nil {
		return "", err
	}
	return head + "\n" + body, nil
}
