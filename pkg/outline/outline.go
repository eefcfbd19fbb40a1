// Package outline turns raw LLM outline output into a typed plan the
// chapter stage can execute. The model is asked to emit a JSON block
// alongside the human-readable outline; the JSON is the source of
// truth and the Markdown surface is only a fallback.
package outline

// Plan is a parsed outline.
type Plan struct {
	TitleCN             string        `json:"title_cn"`
	TitleEN             string        `json:"title_en"`
	Introduction        string        `json:"introduction"`
	Chapters            []ChapterPlan `json:"chapters"`
	TotalEstimatedWords int           `json:"total_estimated_words"`
}

// ChapterPlan carries everything one chapter call needs. Only Index and
// Title are required; the rest default to empty when the model omits them.
type ChapterPlan struct {
	Index             int          `json:"index"` // 1-based
	Title             string       `json:"title"`
	Subsections       []Subsection `json:"subsections"`
	MustInclude       []string     `json:"must_include"`
	MustExclude       []string     `json:"must_exclude"`
	OpeningHook       string       `json:"opening_hook"`
	ClosingTransition string       `json:"closing_transition"`
	PrevChapterLink   string       `json:"prev_chapter_link"`
	NextChapterLink   string       `json:"next_chapter_link"`
	Rationale         string       `json:"rationale"`
	ContentGuidance   string       `json:"content_guidance"`
}

type Subsection struct {
	Subtitle  string   `json:"subtitle"`
	KeyPoints []string `json:"key_points"`
}

// Title returns the plan's display title, preferring the Chinese one.
func (p *Plan) Title() string {
	if p.TitleCN != "" {
		return p.TitleCN
	}
	return p.TitleEN
}
