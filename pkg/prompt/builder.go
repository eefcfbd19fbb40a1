package prompt

import (
	"fmt"
	"strings"

	"github.com/deepread-ai/deepread/pkg/outline"
	"github.com/deepread-ai/deepread/pkg/task"
)

// BuildOutlinePrompt builds the outline-stage prompt: full source
// content, the mode's chapter bounds and depth rules, the confirmed
// content profile when one exists, and the JSON schema directive.
func BuildOutlinePrompt(content string, mode ModeConfig, profile *task.Profile) string {
	var sb strings.Builder
	sb.WriteString(formatSourceSection(content))
	sb.WriteString("\n")
	if section := formatProfileSection(profile); section != "" {
		sb.WriteString(section)
		sb.WriteString("\n")
	}

	sb.WriteString("## 你的任务\n\n")
	sb.WriteString("为以上内容设计一份深度解读的章节大纲。\n\n")
	fmt.Fprintf(&sb, "- 章节数量：%d 到 %d 章\n", mode.MinChapters, mode.MaxChapters)
	fmt.Fprintf(&sb, "- 每章目标字数：%d 到 %d 字\n", mode.MinWords, mode.MaxWords)
	sb.WriteString("- 章节之间不重叠：用 must_include / must_exclude 划清每章的边界\n")
	sb.WriteString("- 章节顺序构成一条完整的论证线，而不是孤立的主题罗列\n")
	if mode.Depth != "" {
		sb.WriteString("- ")
		sb.WriteString(mode.Depth)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(outlineFormatDirective)
	return sb.String()
}

// ChapterPromptInput carries everything one chapter call needs.
// PreviousChapter and PreviousSummaries are only set in sequential
// generation; concurrent chapter calls never see sibling output.
type ChapterPromptInput struct {
	Content           string
	OutlineText       string
	Chapter           outline.ChapterPlan
	PreviousChapter   string
	PreviousSummaries []string
}

// BuildChapterPrompt builds the prompt for exactly one chapter section.
func BuildChapterPrompt(in ChapterPromptInput) string {
	var sb strings.Builder
	sb.WriteString(formatSourceSection(in.Content))
	sb.WriteString("\n## 全文大纲\n\n")
	sb.WriteString(in.OutlineText)
	sb.WriteString("\n")

	sb.WriteString(formatChapterPlanSection(in.Chapter))

	if len(in.PreviousSummaries) > 0 {
		sb.WriteString("\n## 更早章节的内容摘要\n\n")
		for i, summary := range in.PreviousSummaries {
			fmt.Fprintf(&sb, "第 %d 章：%s\n\n", i+1, summary)
		}
	}
	if in.PreviousChapter != "" {
		sb.WriteString("\n## 上一章全文\n\n")
		sb.WriteString(in.PreviousChapter)
		sb.WriteString("\n\n请保证与上一章的自然衔接，且不重复其内容。\n")
	}

	sb.WriteString("\n")
	fmt.Fprintf(&sb, chapterTask, in.Chapter.Index, in.Chapter.Index, in.Chapter.Title)
	return sb.String()
}

// BuildConclusionPrompt builds the conclusion-stage prompt over the
// source and every generated chapter.
func BuildConclusionPrompt(content string, chapters []string) string {
	var sb strings.Builder
	sb.WriteString(formatSourceSection(content))
	sb.WriteString("\n## 已生成的章节\n\n")
	sb.WriteString(strings.Join(chapters, "\n\n---\n\n"))
	sb.WriteString("\n\n")
	sb.WriteString(conclusionTask)
	return sb.String()
}

// BuildPreAnalysisPrompt builds the cheap profile call run before the
// outline stage when confirmation is enabled.
func BuildPreAnalysisPrompt(content string) string {
	var sb strings.Builder
	sb.WriteString(formatSourceSection(content))
	sb.WriteString("\n")
	sb.WriteString(preAnalysisTask)
	return sb.String()
}

// BuildVisualizationPrompt builds the single-file HTML visualization
// call over a finished report.
func BuildVisualizationPrompt(title, report string) string {
	var sb strings.Builder
	sb.WriteString("## 解读全文\n\n<!-- REPORT START -->\n")
	sb.WriteString(report)
	sb.WriteString("\n<!-- REPORT END -->\n\n")
	fmt.Fprintf(&sb, visualizationTask, title)
	return sb.String()
}

// formatSourceSection wraps the raw source content. Marker comments
// delimit the opaque block so instructions can't be confused with it.
func formatSourceSection(content string) string {
	var sb strings.Builder
	sb.WriteString("## 原始内容\n\n<!-- SOURCE START -->\n")
	sb.WriteString(content)
	sb.WriteString("\n<!-- SOURCE END -->\n")
	return sb.String()
}

// formatProfileSection renders the confirmed pre-analysis profile, or
// empty when no profile was produced.
func formatProfileSection(profile *task.Profile) string {
	if profile == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## 内容画像\n\n")
	if profile.ContentType != "" {
		fmt.Fprintf(&sb, "- 内容类型：%s\n", profile.ContentType)
	}
	if profile.Audience != "" {
		fmt.Fprintf(&sb, "- 目标读者：%s\n", profile.Audience)
	}
	if profile.Style != "" {
		fmt.Fprintf(&sb, "- 解读风格：%s\n", profile.Style)
	}
	if len(profile.KeyTopics) > 0 {
		fmt.Fprintf(&sb, "- 关键主题：%s\n", strings.Join(profile.KeyTopics, "、"))
	}
	if profile.SuggestedChapters > 0 {
		fmt.Fprintf(&sb, "- 建议章节数：%d\n", profile.SuggestedChapters)
	}
	if profile.Notes != "" {
		fmt.Fprintf(&sb, "- 备注：%s\n", profile.Notes)
	}
	if sb.Len() == len("## 内容画像\n\n") {
		return ""
	}
	return sb.String()
}

// formatChapterPlanSection renders one chapter's plan metadata.
func formatChapterPlanSection(ch outline.ChapterPlan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n## 本章规划：第 %d 章 %s\n\n", ch.Index, ch.Title)

	if len(ch.Subsections) > 0 {
		sb.WriteString("小节结构：\n")
		for _, sub := range ch.Subsections {
			fmt.Fprintf(&sb, "- %s", sub.Subtitle)
			if len(sub.KeyPoints) > 0 {
				fmt.Fprintf(&sb, "（要点：%s）", strings.Join(sub.KeyPoints, "；"))
			}
			sb.WriteString("\n")
		}
	}
	if len(ch.MustInclude) > 0 {
		fmt.Fprintf(&sb, "必须覆盖：%s\n", strings.Join(ch.MustInclude, "；"))
	}
	if len(ch.MustExclude) > 0 {
		fmt.Fprintf(&sb, "必须避开（属于其他章节）：%s\n", strings.Join(ch.MustExclude, "；"))
	}
	if ch.OpeningHook != "" {
		fmt.Fprintf(&sb, "开篇切入：%s\n", ch.OpeningHook)
	}
	if ch.ClosingTransition != "" {
		fmt.Fprintf(&sb, "结尾过渡：%s\n", ch.ClosingTransition)
	}
	if ch.ContentGuidance != "" {
		fmt.Fprintf(&sb, "写作指引：%s\n", ch.ContentGuidance)
	}
	return sb.String()
}
