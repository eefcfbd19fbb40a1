package task

// Profile is the pre-analysis result for a video: a cheap LLM pass that
// characterizes the content before the expensive interpretation starts.
// Subscribers see it in a PreAnalysisEvent; when confirmation is required
// they may adjust fields before the task resumes.
type Profile struct {
	// ContentType characterizes the source, e.g. "技术讲座" or "访谈".
	ContentType string `json:"content_type"`

	// Audience is the viewer group the interpretation should target.
	Audience string `json:"audience"`

	// Style is the suggested writing register, e.g. "严谨学术" or "轻松科普".
	Style string `json:"style"`

	// KeyTopics are the main themes the outline should cover.
	KeyTopics []string `json:"key_topics,omitempty"`

	// SuggestedChapters is the model's chapter-count hint, clamped to the
	// mode bounds by the outline stage.
	SuggestedChapters int `json:"suggested_chapters,omitempty"`

	// Notes carries free-form guidance entered at confirmation time.
	Notes string `json:"notes,omitempty"`
}

// Merge applies non-zero override fields onto the profile, shallowly.
// Known keys only; unknown keys are ignored.
func (p *Profile) Merge(overrides map[string]any) {
	if overrides == nil {
		return
	}
	if v, ok := overrides["content_type"].(string); ok && v != "" {
		p.ContentType = v
	}
	if v, ok := overrides["audience"].(string); ok && v != "" {
		p.Audience = v
	}
	if v, ok := overrides["style"].(string); ok && v != "" {
		p.Style = v
	}
	if v, ok := overrides["notes"].(string); ok && v != "" {
		p.Notes = v
	}
	if v, ok := overrides["suggested_chapters"].(float64); ok && v > 0 {
		p.SuggestedChapters = int(v)
	}
	if v, ok := overrides["key_topics"].([]any); ok {
		topics := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				topics = append(topics, s)
			}
		}
		if len(topics) > 0 {
			p.KeyTopics = topics
		}
	}
}
