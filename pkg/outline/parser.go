package outline

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ParseError indicates the outline output could not be turned into a
// usable plan. Workflows map it to an outline parse task failure.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("outline parse failed: %s", e.Reason)
}

var (
	fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	titleRe      = regexp.MustCompile(`(?m)^#\s+(.+?)\s*$`)
	chapterRe    = regexp.MustCompile(`(?m)^\s*(?:#{2,4}\s*)?(\d+)\s*[.、．]\s*(.+?)\s*$`)
	headingRe    = regexp.MustCompile(`^#{1,6}\s`)
)

// Parse extracts a Plan from raw LLM output. It prefers the embedded
// JSON block; when none can be used it falls back to the Markdown
// surface (first `# ` line as title, numbered list as chapters). A
// result with no title or zero chapters is a *ParseError.
func Parse(raw string) (*Plan, error) {
	plan := parseJSON(raw)
	if plan == nil {
		plan = &Plan{}
	}

	if plan.TitleCN == "" && plan.TitleEN == "" {
		plan.TitleCN = extractTitle(raw)
	}
	if plan.Introduction == "" {
		plan.Introduction = extractIntroduction(raw)
	}
	if len(plan.Chapters) == 0 {
		plan.Chapters = extractChapterList(raw)
	}

	plan.Chapters = normalizeChapters(plan.Chapters)

	if plan.TitleCN == "" && plan.TitleEN == "" {
		return nil, &ParseError{Reason: "no title found"}
	}
	if len(plan.Chapters) == 0 {
		return nil, &ParseError{Reason: "no chapters found"}
	}
	return plan, nil
}

// ExtractContentTypeInfo returns the outline's content-type declaration
// line when the model emitted one ("内容类型: ..."). Best effort; empty
// when absent.
func ExtractContentTypeInfo(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimLeft(strings.TrimSpace(line), "#*- ")
		if strings.HasPrefix(trimmed, "内容类型") {
			return strings.TrimSpace(trimmed)
		}
	}
	return ""
}

// parseJSON locates and decodes the JSON block. Returns nil when no
// decodable block with chapters exists.
func parseJSON(raw string) *Plan {
	for _, candidate := range jsonCandidates(raw) {
		var plan Plan
		if err := json.Unmarshal([]byte(candidate), &plan); err != nil {
			continue
		}
		if len(plan.Chapters) > 0 {
			return &plan
		}
	}
	return nil
}

// jsonCandidates yields possible JSON blocks in preference order:
// fenced blocks first, then balanced bare objects mentioning "chapters".
func jsonCandidates(raw string) []string {
	var out []string
	for _, m := range fencedJSONRe.FindAllStringSubmatch(raw, -1) {
		out = append(out, m[1])
	}
	for start := strings.IndexByte(raw, '{'); start >= 0; {
		candidate := balancedObject(raw[start:])
		if candidate != "" && strings.Contains(candidate, `"chapters"`) {
			out = append(out, candidate)
			// Skip past this object; nested ones were part of it.
			start += len(candidate)
		} else {
			start++
		}
		next := strings.IndexByte(raw[start:], '{')
		if next < 0 {
			break
		}
		start += next
	}
	return out
}

// balancedObject returns the balanced {...} prefix of s, tracking JSON
// string literals so braces inside them don't count. Empty when s is
// not a complete object.
func balancedObject(s string) string {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

func extractTitle(raw string) string {
	if m := titleRe.FindStringSubmatch(raw); m != nil {
		return strings.Trim(m[1], "* ")
	}
	return ""
}

// extractIntroduction returns the first paragraph between the title line
// and the first chapter or heading line.
func extractIntroduction(raw string) string {
	lines := strings.Split(raw, "\n")
	afterTitle := false
	var para []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !afterTitle {
			if titleRe.MatchString(line) {
				afterTitle = true
			}
			continue
		}
		if trimmed == "" {
			if len(para) > 0 {
				break
			}
			continue
		}
		if headingRe.MatchString(trimmed) || chapterRe.MatchString(line) || strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "```") {
			break
		}
		para = append(para, trimmed)
	}
	return strings.Join(para, "\n")
}

// extractChapterList recovers chapters from a numbered Markdown list.
// Indexes must be strictly increasing; a regression means a second list
// (subsections, quotes) started and collection stops.
func extractChapterList(raw string) []ChapterPlan {
	var chapters []ChapterPlan
	last := 0
	for _, m := range chapterRe.FindAllStringSubmatch(raw, -1) {
		index := atoiSafe(m[1])
		if index <= last {
			if len(chapters) > 0 {
				break
			}
			continue
		}
		title := strings.Trim(strings.TrimSpace(m[2]), "*")
		if title == "" {
			continue
		}
		chapters = append(chapters, ChapterPlan{Index: index, Title: title})
		last = index
	}
	return chapters
}

// normalizeChapters drops entries without a title, orders by declared
// index when every entry has one, and renumbers 1..n so downstream file
// naming and assembly order are dense and consistent.
func normalizeChapters(chapters []ChapterPlan) []ChapterPlan {
	out := make([]ChapterPlan, 0, len(chapters))
	allIndexed := true
	for _, ch := range chapters {
		ch.Title = strings.TrimSpace(ch.Title)
		if ch.Title == "" {
			continue
		}
		if ch.Index <= 0 {
			allIndexed = false
		}
		out = append(out, ch)
	}
	if allIndexed {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	}
	for i := range out {
		out[i].Index = i + 1
	}
	return out
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
