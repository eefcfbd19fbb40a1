package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	chapterHeadingRe = regexp.MustCompile(`(?m)^### (\d+)\. (.*)$`)
	anyHeadingRe     = regexp.MustCompile(`^#{1,6}\s`)
)

// Assemble builds the final document: front matter, title, optional
// introduction, TOC, chapters separated by rules, then the conclusion
// sections. ChapterCount is forced to the number of chapters so the
// front matter can never disagree with the body.
func Assemble(meta *Meta, introduction string, chapters []string, conclusion string) (string, error) {
	meta.ChapterCount = len(chapters)
	head, err := renderFrontMatter(meta)
	if err != nil {
		return "", err
	}

	blocks := []string{strings.TrimRight(head, "\n"), "# " + meta.TitleCN}

	if intro := strings.TrimSpace(introduction); intro != "" {
		blocks = append(blocks, "### 引言\n\n"+intro)
	}
	if toc := renderTOC(chapters); toc != "" {
		blocks = append(blocks, toc)
	}

	trimmed := make([]string, 0, len(chapters))
	for _, ch := range chapters {
		trimmed = append(trimmed, strings.TrimSpace(ch))
	}
	blocks = append(blocks, strings.Join(trimmed, "\n\n---\n\n"))

	if tail := renderConclusion(conclusion); tail != "" {
		blocks = append(blocks, tail)
	}

	return strings.Join(blocks, "\n\n") + "\n", nil
}

// renderTOC builds the `## 目录` block from the chapters' heading lines.
func renderTOC(chapters []string) string {
	if len(chapters) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## 目录\n")
	for i, ch := range chapters {
		index, title := chapterHeading(ch, i+1)
		label := fmt.Sprintf("%d. %s", index, title)
		fmt.Fprintf(&sb, "\n- [%s](#%s)", label, Slug(label))
	}
	return sb.String()
}

// chapterHeading extracts (index, title) from a chapter's first line,
// falling back to the positional index when the heading is malformed.
func chapterHeading(chapter string, fallbackIndex int) (int, string) {
	first, _, _ := strings.Cut(strings.TrimSpace(chapter), "\n")
	if m := chapterHeadingRe.FindStringSubmatch(first); m != nil {
		index, _ := strconv.Atoi(m[1])
		return index, strings.TrimSpace(m[2])
	}
	return fallbackIndex, strings.TrimSpace(strings.TrimLeft(first, "# "))
}

// renderConclusion re-emits the conclusion's `### ` sections. Text
// before the first heading (model preamble) is dropped; a conclusion
// with no headings at all passes through verbatim.
func renderConclusion(conclusion string) string {
	trimmed := strings.TrimSpace(conclusion)
	if trimmed == "" {
		return ""
	}
	chunks := strings.Split("\n"+trimmed, "\n### ")
	if len(chunks) == 1 {
		return trimmed
	}
	sections := make([]string, 0, len(chunks)-1)
	for _, chunk := range chunks[1:] {
		if chunk = strings.TrimSpace(chunk); chunk != "" {
			sections = append(sections, "### "+chunk)
		}
	}
	return strings.Join(sections, "\n\n")
}

// NormalizeChapter forces a chapter's first line to be exactly
// `### <n>. <title>`: a wrong heading is replaced, a missing one is
// inserted above the content.
func NormalizeChapter(index int, title, text string) string {
	want := fmt.Sprintf("### %d. %s", index, title)
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return want
	}
	first, rest, hasRest := strings.Cut(trimmed, "\n")
	if strings.TrimSpace(first) == want {
		return trimmed
	}
	if anyHeadingRe.MatchString(first) {
		if hasRest {
			return want + "\n" + rest
		}
		return want
	}
	return want + "\n\n" + trimmed
}

// CountChapterHeadings counts chapter section headings in a body.
func CountChapterHeadings(body string) int {
	return len(chapterHeadingRe.FindAllString(body, -1))
}

// Slug derives the in-document anchor for a heading: lowercased,
// punctuation stripped, spaces to hyphens, CJK and word characters
// preserved. Deterministic so TOC links match rendered heading anchors.
func Slug(heading string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(heading)) {
		switch {
		case r == ' ' || r == '\t':
			sb.WriteRune('-')
		case r == '-' || r == '_':
			sb.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// Filename returns the on-disk name for a document version. The English
// title is preferred for portability; the Chinese title is the fallback.
func Filename(meta *Meta) string {
	title := meta.TitleEN
	if title == "" {
		title = meta.TitleCN
	}
	return fmt.Sprintf("%s_v%d.md", SanitizeTitle(title), meta.Version)
}

// SanitizeTitle makes a title safe as a filename component: spaces
// become underscores and filesystem-hostile characters are dropped.
func SanitizeTitle(title string) string {
	var sb strings.Builder
	for _, r := range strings.TrimSpace(title) {
		switch {
		case r == ' ' || r == '\t':
			sb.WriteRune('_')
		case r == '-' || r == '_' || r == '.':
			sb.WriteRune(r)
		case strings.ContainsRune(`/\:*?"<>|`, r) || r < 32:
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		}
	}
	name := sb.String()
	if name == "" {
		name = "untitled"
	}
	return name
}
