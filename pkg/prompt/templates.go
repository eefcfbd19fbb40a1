// Package prompt builds all LLM prompt text for the generation pipeline.
// Builders are stateless pure functions over their inputs; the same
// inputs always produce the same prompt.
package prompt

// SystemInterpreter is the system instruction for outline, chapter and
// conclusion calls.
const SystemInterpreter = `你是一位资深的深度解读作者，擅长把长篇内容（演讲、访谈、课程、文档）重构成结构严谨、层层递进的中文深度解读文章。你忠于原始内容，不编造事实；你用自己的语言重新组织论证，而不是逐句翻译或摘抄。输出一律使用简体中文和 Markdown 格式。`

// SystemAnalyst is the system instruction for the pre-analysis profile call.
const SystemAnalyst = `你是一位内容分析师。给定一段原始内容，你输出一个简洁的 JSON 画像，用于指导后续的深度解读生成。只输出 JSON，不要输出任何其他文字。`

// SystemVisualizer is the system instruction for the visual
// interpretation call.
const SystemVisualizer = `你是一位信息设计师，擅长把长文的核心论证结构转化为单个自包含的 HTML 可视化页面（内联 CSS，不引用外部资源）。`

// outlineFormatDirective tells the model to emit the human-readable
// outline first, then the machine-readable JSON block the parser
// treats as the source of truth.
const outlineFormatDirective = `## 输出格式

先输出人类可读的大纲：
1. 第一行是 "# 标题"
2. 一段引言（两三句话，说明这篇解读的主线）
3. 可选的一行 "内容类型: <类型> (<判断依据>)"
4. 编号的章节列表

然后输出一个 ` + "```json" + ` 代码块，结构如下（字段缺省留空，index 和 title 必填）：

` + "```json" + `
{
  "title_cn": "中文标题",
  "title_en": "English Title",
  "introduction": "引言段落",
  "total_estimated_words": 12000,
  "chapters": [
    {
      "index": 1,
      "title": "章节标题",
      "subsections": [{"subtitle": "小节标题", "key_points": ["要点"]}],
      "must_include": ["本章必须覆盖的内容"],
      "must_exclude": ["留给其他章节的内容"],
      "opening_hook": "开篇切入点",
      "closing_transition": "结尾到下一章的过渡",
      "rationale": "为什么需要这一章",
      "content_guidance": "写作指引"
    }
  ]
}
` + "```" + `

JSON 块是唯一的权威结构，Markdown 大纲仅供人工阅读。两者的章节数量和标题必须一致。`

// chapterTask is the per-chapter task instruction appended after the
// chapter metadata. %d = chapter index, %s = chapter title.
const chapterTask = `## 你的任务

只撰写第 %d 章这一个章节，其他章节由其他调用负责。

硬性要求：
- 第一行必须是且仅是：### %d. %s
- 严格按照小节规划展开，覆盖所有 must_include 要点
- 不要写 must_exclude 中的内容，那些属于其他章节
- 不要写结语或对全文的总结，本章结束即停笔
- 使用简体中文，Markdown 格式，段落充实、有论证，不要只罗列要点`

// conclusionTask asks for the two closing sections in fixed order.
const conclusionTask = `## 你的任务

通读以上原始内容和已生成的全部章节，撰写收尾部分。严格按顺序输出以下两个小节，标题一字不差：

### 洞见延伸

（三到五条超出原文但由原文自然引申的洞见，每条一段）

### 金句摘录

（五到十条原文中最有力量的原话引用，保留原始表述，每条一行，使用引用格式）

不要输出这两个小节之外的任何内容。`

// preAnalysisTask describes the JSON profile the pre-analysis call
// must return.
const preAnalysisTask = `## 你的任务

分析以上内容，输出如下 JSON（只输出 JSON）：

` + "```json" + `
{
  "content_type": "内容类型，如：技术演讲 / 访谈 / 课程 / 产品文档",
  "audience": "最适合的目标读者",
  "style": "建议的解读风格",
  "key_topics": ["三到六个关键主题"],
  "suggested_chapters": 8,
  "notes": "其他对解读有帮助的观察"
}
` + "```"

// visualizationTask asks for one self-contained HTML page. %s = report
// title.
const visualizationTask = `## 你的任务

为《%s》这篇解读生成一个单文件 HTML 可视化页面：
- 用信息图的方式呈现全文的论证结构：章节脉络、核心概念之间的关系、关键结论
- 所有 CSS 内联在 <style> 中，不引用任何外部资源（无外链字体、无 CDN、无图片 URL）
- 适配 1280px 宽度的截图渲染
- 只输出 HTML，从 <!DOCTYPE html> 开始，不要用代码块包裹`
