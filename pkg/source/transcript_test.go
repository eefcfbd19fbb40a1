package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVTTDropsHeadersAndTimings(t *testing.T) {
	vtt := `WEBVTT
Kind: captions
Language: zh-Hans

00:00:00.000 --> 00:00:03.200
大家好，欢迎收看本期节目

00:00:03.200 --> 00:00:07.800
今天我们聊一个有趣的话题
`
	got := ParseVTT(vtt)
	assert.Equal(t, "大家好，欢迎收看本期节目\n今天我们聊一个有趣的话题", got)
}

func TestParseVTTStripsInlineTags(t *testing.T) {
	vtt := `WEBVTT

00:00:00.000 --> 00:00:02.000
<c.colorCCCCCC>hello</c> <00:00:01.000>world
`
	assert.Equal(t, "hello world", ParseVTT(vtt))
}

func TestParseVTTCollapsesAutoCaptionDuplicates(t *testing.T) {
	// Auto-generated captions repeat the previous line in each cue to
	// keep two lines on screen.
	vtt := `WEBVTT

00:00:00.000 --> 00:00:02.000
first line

00:00:02.000 --> 00:00:04.000
first line
second line

00:00:04.000 --> 00:00:06.000
second line
third line
`
	assert.Equal(t, "first line\nsecond line\nthird line", ParseVTT(vtt))
}

func TestParseVTTDropsCueIdentifiersAndNotes(t *testing.T) {
	vtt := `WEBVTT

NOTE produced by tooling

1
00:00:00,000 --> 00:00:02,000
subtitle text

2
00:00:02,000 --> 00:00:04,000
more text
`
	assert.Equal(t, "subtitle text\nmore text", ParseVTT(vtt))
}

func TestParseVTTEmptyInput(t *testing.T) {
	assert.Equal(t, "", ParseVTT(""))
	assert.Equal(t, "", ParseVTT("WEBVTT\n\n"))
}

func TestIsCueIdentifier(t *testing.T) {
	assert.True(t, isCueIdentifier("1"))
	assert.True(t, isCueIdentifier("042"))
	assert.False(t, isCueIdentifier(""))
	assert.False(t, isCueIdentifier("1a"))
	assert.False(t, isCueIdentifier("hello"))
}

func TestTailLines(t *testing.T) {
	assert.Equal(t, "a | b | c", tailLines("a\nb\nc", 5))
	assert.Equal(t, "d | e", tailLines("a\nb\nc\nd\ne", 2))
	assert.Equal(t, "only", tailLines("only\n", 3))
}
