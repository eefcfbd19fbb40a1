package e2e

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/deepread-ai/deepread/pkg/llm"
	"github.com/deepread-ai/deepread/pkg/prompt"
)

var chapterCallRe = regexp.MustCompile(`只撰写第 (\d+) 章`)

// ScriptedClient implements llm.Client below the retry layer. Calls are
// routed by what the prompt asks for (profile, outline, chapter n,
// conclusion, visualization), so concurrent chapter calls need no
// ordering assumptions. The zero value answers every stage with a
// plausible default; script fields override per stage.
type ScriptedClient struct {
	mu    sync.Mutex
	calls []llm.Request

	outlineCalls int
	chapterCalls map[int]int

	// OutlineFn overrides the outline response; call starts at 1.
	OutlineFn func(call int) (string, error)
	// ChapterFn overrides chapter responses; call counts per index,
	// starting at 1, so a script can fail an index a few times first.
	ChapterFn func(index, call int) (string, error)
	// Conclusion, Profile and VisualHTML override their stages.
	Conclusion string
	Profile    string
	VisualHTML string

	// Gate, when set, blocks outline calls until the channel is closed.
	// OnBlock (if set) gets a non-blocking signal as each call reaches
	// the gate, so tests can wait for a task to enter the outline stage.
	Gate    <-chan struct{}
	OnBlock chan struct{}
}

// NewScriptedClient returns a client with all-default responses: an
// 8-chapter outline, substantial chapter bodies, and a two-section
// conclusion.
func NewScriptedClient() *ScriptedClient {
	return &ScriptedClient{chapterCalls: make(map[int]int)}
}

func (c *ScriptedClient) Generate(ctx context.Context, req *llm.Request) (string, error) {
	c.mu.Lock()
	c.calls = append(c.calls, *req)
	c.mu.Unlock()

	switch req.System {
	case prompt.SystemAnalyst:
		if c.Profile != "" {
			return c.Profile, nil
		}
		return `{"content_type": "技术演讲", "audience": "工程师", "style": "严谨"}`, nil
	case prompt.SystemVisualizer:
		if c.VisualHTML != "" {
			return c.VisualHTML, nil
		}
		return "<!DOCTYPE html>\n<html><body>图解</body></html>", nil
	}

	if m := chapterCallRe.FindStringSubmatch(req.Prompt); m != nil {
		index, _ := strconv.Atoi(m[1])
		c.mu.Lock()
		if c.chapterCalls == nil {
			c.chapterCalls = make(map[int]int)
		}
		c.chapterCalls[index]++
		call := c.chapterCalls[index]
		c.mu.Unlock()
		if c.ChapterFn != nil {
			return c.ChapterFn(index, call)
		}
		return defaultChapter(index), nil
	}

	if strings.Contains(req.Prompt, "撰写收尾部分") {
		if c.Conclusion != "" {
			return c.Conclusion, nil
		}
		return "### 洞见延伸\n\n原始内容之外值得追问的问题。\n\n### 金句摘录\n\n> 值得反复回味的一句话。", nil
	}

	// Everything else is an outline call.
	if c.Gate != nil {
		if c.OnBlock != nil {
			select {
			case c.OnBlock <- struct{}{}:
			default:
			}
		}
		select {
		case <-c.Gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	c.mu.Lock()
	c.outlineCalls++
	call := c.outlineCalls
	c.mu.Unlock()
	if c.OutlineFn != nil {
		return c.OutlineFn(call)
	}
	return OutlineResponse("测试解读", "Test Interpretation", 8), nil
}

// Recorded returns a snapshot of every request seen so far.
func (c *ScriptedClient) Recorded() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Request(nil), c.calls...)
}

// OutlineCalls returns how many outline requests have been answered.
func (c *ScriptedClient) OutlineCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outlineCalls
}

// ChapterCalls returns how many times the given chapter index was asked.
func (c *ScriptedClient) ChapterCalls(index int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chapterCalls[index]
}

// OutlineResponse builds a model-shaped outline answer: Markdown surface
// plus the authoritative fenced JSON block.
func OutlineResponse(titleCN, titleEN string, chapters int) string {
	var sb strings.Builder
	sb.WriteString("# " + titleCN + "\n\n内容类型: 技术演讲\n\n```json\n")
	fmt.Fprintf(&sb, `{"title_cn": %q, "title_en": %q, "introduction": "开场引言，交代全文脉络。", "chapters": [`,
		titleCN, titleEN)
	for i := 1; i <= chapters; i++ {
		if i > 1 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, `{"index": %d, "title": "第%d章标题"}`, i, i)
	}
	sb.WriteString("]}\n```\n")
	return sb.String()
}

// defaultChapter builds a chapter body comfortably past the length the
// pipeline treats as substantial.
func defaultChapter(index int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### %d. 第%d章标题\n\n", index, index)
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&sb, "这一章围绕第 %d 个论点展开：先还原原始内容的叙述，再给出背景与推论，让读者不看原片也能完整理解。", i+1)
	}
	return sb.String()
}
