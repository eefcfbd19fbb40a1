package prompt

import (
	"github.com/deepread-ai/deepread/pkg/task"
)

// ChapterHardCap is the absolute upper bound on chapters in any mode.
// Ultra outlines exceeding it after one regeneration fail the task.
const ChapterHardCap = 20

// ModeConfig carries the generation knobs for one interpretation mode.
// The contract between modes: ultra yields more and longer chapters
// than deep. Exact numbers are product tuning.
type ModeConfig struct {
	Name        string
	MinChapters int
	MaxChapters int
	// Per-chapter word targets (Chinese characters).
	MinWords int
	MaxWords int
	// Depth is extra outline-stage guidance specific to the mode.
	Depth string
}

var deepMode = ModeConfig{
	Name:        "deep",
	MinChapters: 6,
	MaxChapters: 15,
	MinWords:    800,
	MaxWords:    1200,
	Depth:       "每章聚焦一个完整的论证单元，宁少勿散；按内容的自然结构分章，不要为凑数拆分。",
}

var ultraMode = ModeConfig{
	Name:        "ultra",
	MinChapters: 12,
	MaxChapters: 20,
	MinWords:    1500,
	MaxWords:    2500,
	Depth:       "逐层拆解原文的每一个论证环节，补充背景脉络与对比分析；允许把一个大主题拆成多个递进章节，但总数不得超过 20 章。",
}

// ModeFor maps a task mode to its generation knobs. Unknown modes fall
// back to deep.
func ModeFor(mode task.Mode) ModeConfig {
	if mode == task.ModeUltra {
		return ultraMode
	}
	return deepMode
}
