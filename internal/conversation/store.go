package conversation

import (
	"sync"
	"time"
)

// State is a point-in-time copy of everything the store owns.
type State struct {
	Messages []Message
	Pending  bool
	Typing   bool
}

// Store is the single source of truth for conversation history.
// The sequence is append-only; Reset is the only way to shrink it.
type Store struct {
	mu       sync.RWMutex
	messages []Message
	pending  bool
	typing   bool
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// AppendUser appends a user message. Called before any network activity.
func (s *Store) AppendUser(text string) Message {
	return s.append(RoleUser, text)
}

// AppendAssistant appends an assistant message once a reply or failure resolves.
func (s *Store) AppendAssistant(text string) Message {
	return s.append(RoleAssistant, text)
}

func (s *Store) append(role Role, text string) Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := newMessage(role, text, s.now())
	s.messages = append(s.messages, msg)
	return msg
}

// Reset clears the message sequence. Flags are left alone so an in-flight
// cycle still finalizes normally.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

// TryBegin sets pending and typing if no cycle is in flight.
// Returns false, changing nothing, when one already is.
func (s *Store) TryBegin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending {
		return false
	}
	s.pending = true
	s.typing = true
	return true
}

// Finish clears pending and typing.
func (s *Store) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = false
	s.typing = false
}

// Pending reports whether a dispatch cycle is in flight.
func (s *Store) Pending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

// Typing reports whether the assistant typing indicator should show.
func (s *Store) Typing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typing
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Messages returns a copy of the message sequence.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyMessages()
}

// History maps the sequence to content/role pairs. IDs and timestamps are
// not part of the wire contract.
func (s *Store) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := make([]Turn, len(s.messages))
	for i, m := range s.messages {
		turns[i] = Turn{Content: m.Content, Role: m.Role}
	}
	return turns
}

// Snapshot returns a consistent copy of messages and flags.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Messages: s.copyMessages(),
		Pending:  s.pending,
		Typing:   s.typing,
	}
}

func (s *Store) copyMessages() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}
