package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingSink struct {
	flushes []string
}

func (r *recordingSink) AppendAssistantChunk(text string) {
	r.flushes = append(r.flushes, text)
}

func TestAccumulate(t *testing.T) {
	cases := []struct {
		name, acc, fragment string
		flushed, next       string
	}{
		{"below threshold", "ab", "cd", "", "abcd"},
		{"reaches threshold", "abcde", "fghij", "abcdefghij", ""},
		{"newline flushes early", "a", "b\n", "ab\n", ""},
		{"runes not bytes", "", "你好世界", "", "你好世界"},
		{"ten runes", "你好世界你好", "世界你好", "你好世界你好世界你好", ""},
		{"empty fragment", "", "", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			flushed, next := Accumulate(tc.acc, tc.fragment)
			assert.Equal(t, tc.flushed, flushed)
			assert.Equal(t, tc.next, next)
		})
	}
}

func TestBufferFlushTiming(t *testing.T) {
	sink := &recordingSink{}
	b := NewBuffer(sink)

	b.Push("ab")
	b.Push("cdefgh")
	assert.Empty(t, sink.flushes)
	assert.Equal(t, "abcdefgh", b.Pending())

	b.Push("i\n")
	assert.Equal(t, []string{"abcdefghi\n"}, sink.flushes)

	b.Push("jk")
	assert.Len(t, sink.flushes, 1)

	b.Finish()
	assert.Equal(t, []string{"abcdefghi\n", "jk"}, sink.flushes)
	assert.Empty(t, b.Pending())
}

func TestBufferConcatenationPreserved(t *testing.T) {
	fragments := []string{"The ", "answer", " is", " forty", "-two.\n", "Sources", ": none", "", "."}
	sink := &recordingSink{}
	b := NewBuffer(sink)
	for _, f := range fragments {
		b.Push(f)
	}
	b.Finish()

	assert.Equal(t, strings.Join(fragments, ""), strings.Join(sink.flushes, ""))
}

func TestFinishOnEmptyBufferIsNoop(t *testing.T) {
	sink := &recordingSink{}
	b := NewBuffer(sink)
	b.Finish()
	assert.Empty(t, sink.flushes)
}
