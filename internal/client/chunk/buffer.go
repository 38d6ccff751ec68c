// Package chunk batches incoming answer fragments before they reach the
// conversation, so the view updates in readable pieces.
package chunk

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// FlushThreshold is the buffered length, in runes, that forces a flush.
const FlushThreshold = 10

// Accumulate appends fragment to acc. When the result reaches FlushThreshold
// runes or contains a newline, all of it is returned as flushed and next is
// empty; otherwise flushed is empty and next holds the buffer.
func Accumulate(acc, fragment string) (flushed, next string) {
	buf := acc + fragment
	if utf8.RuneCountInString(buf) >= FlushThreshold || strings.Contains(buf, "\n") {
		return buf, ""
	}
	return "", buf
}

// Sink receives flushed text.
type Sink interface {
	AppendAssistantChunk(text string)
}

// Buffer applies Accumulate to a stream of fragments and forwards flushes to a
// Sink in order.
type Buffer struct {
	mu   sync.Mutex
	acc  string
	sink Sink
}

// NewBuffer creates a Buffer writing to sink.
func NewBuffer(sink Sink) *Buffer {
	return &Buffer{sink: sink}
}

// Push adds one fragment.
func (b *Buffer) Push(fragment string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	flushed, next := Accumulate(b.acc, fragment)
	b.acc = next
	if flushed != "" {
		b.sink.AppendAssistantChunk(flushed)
	}
}

// Finish flushes whatever is left once the stream has ended.
func (b *Buffer) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.acc == "" {
		return
	}
	b.sink.AppendAssistantChunk(b.acc)
	b.acc = ""
}

// Pending returns the text held back so far.
func (b *Buffer) Pending() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.acc
}
