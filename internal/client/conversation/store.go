// Package conversation keeps the ordered message list shown by the chat client.
package conversation

import (
	"sync"
	"time"
)

// Message is one entry of the conversation.
type Message struct {
	Text       string
	IsUser     bool
	SenderName string
	Timestamp  string
}

const timestampLayout = "15:04"

// Store is an append-only conversation. Only the trailing assistant message
// can grow. It is safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	messages  []Message
	now       func() time.Time
	user      string
	assistant string
	changes   chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSenderNames sets the labels attached to user and assistant messages.
func WithSenderNames(user, assistant string) Option {
	return func(s *Store) {
		s.user = user
		s.assistant = assistant
	}
}

// NewStore creates an empty conversation.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:       time.Now,
		user:      "You",
		assistant: "Assistant",
		changes:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AppendUserMessage records text as a user message followed by an empty
// assistant message that later chunks fill in.
func (s *Store) AppendUserMessage(text string) {
	s.mu.Lock()
	ts := s.now().Format(timestampLayout)
	s.messages = append(s.messages,
		Message{Text: text, IsUser: true, SenderName: s.user, Timestamp: ts},
		Message{IsUser: false, SenderName: s.assistant, Timestamp: ts},
	)
	s.mu.Unlock()
	s.notify()
}

// AppendAssistantChunk extends the last message if it belongs to the
// assistant. Otherwise the chunk is dropped.
func (s *Store) AppendAssistantChunk(text string) {
	s.mu.Lock()
	n := len(s.messages)
	if n == 0 || s.messages[n-1].IsUser {
		s.mu.Unlock()
		return
	}
	s.messages[n-1].Text += text
	s.mu.Unlock()
	s.notify()
}

// Messages returns a copy of the conversation.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Last returns the most recent message.
func (s *Store) Last() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// Changes signals after mutations. Signals coalesce; a slow reader sees one
// pending notification rather than one per mutation.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

func (s *Store) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
