package dispatch

import (
	"context"
	"strings"
	"sync"

	"mediachat/internal/conversation"
	"mediachat/internal/failure"
	"mediachat/internal/logging"
	"mediachat/internal/metadata"
)

// Outcome tells how a cycle resolved.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
)

func (o Outcome) String() string {
	if o == OutcomeFailure {
		return "failure"
	}
	return "success"
}

// Event is emitted once per resolved cycle. FocusInput and ScrollToBottom are
// requests for the presentation layer; the session never touches UI state.
type Event struct {
	CycleID        uint64
	Outcome        Outcome
	Category       failure.Category // meaningful when Outcome is OutcomeFailure
	Message        conversation.Message
	StatsUpdated   bool
	FocusInput     bool
	ScrollToBottom bool
}

// View is the read-only state handed to the presentation layer.
type View struct {
	Messages    []conversation.Message
	Pending     bool
	Typing      bool
	Phase       Phase
	Stats       *metadata.DbStats
	Suggestions []string
}

// Session ties the conversation store, the metadata tracker and a
// Dispatcher together. Submit, SelectSuggestion and Clear are the only
// mutators exposed to the presentation layer.
type Session struct {
	store      *conversation.Store
	tracker    *metadata.Tracker
	dispatcher Dispatcher
	catalog    failure.Catalog

	mu        sync.Mutex
	active    *Cycle
	seq       uint64
	listeners []func(Event)
}

// Option configures a Session.
type Option func(*Session)

// WithCatalog selects the failure message catalog.
func WithCatalog(c failure.Catalog) Option {
	return func(s *Session) { s.catalog = c }
}

// WithListener registers fn to receive every Event.
func WithListener(fn func(Event)) Option {
	return func(s *Session) { s.listeners = append(s.listeners, fn) }
}

// WithTracker shares an existing metadata tracker.
func WithTracker(t *metadata.Tracker) Option {
	return func(s *Session) { s.tracker = t }
}

// NewSession creates an idle session with an empty conversation.
func NewSession(d Dispatcher, opts ...Option) *Session {
	s := &Session{
		store:      conversation.NewStore(),
		tracker:    metadata.NewTracker(),
		dispatcher: d,
		catalog:    failure.Spanish,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin opens a dispatch cycle for text. It returns false, and changes
// nothing, when the trimmed text is empty or another cycle is pending;
// a busy send is dropped, not queued.
func (s *Session) Begin(text string) (*Cycle, bool) {
	msg := strings.TrimSpace(text)
	if msg == "" {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.store.TryBegin() {
		logging.Get(logging.CategorySession).Debug("send dropped: cycle %d still pending", s.seq)
		return nil, false
	}

	history := s.store.History()
	s.store.AppendUser(msg)
	s.seq++
	c := &Cycle{
		id:         s.seq,
		message:    msg,
		history:    history,
		dispatcher: s.dispatcher,
	}
	s.active = c

	logging.Get(logging.CategorySession).Debug("cycle %d started: %d chars, %d history turns", c.id, len(msg), len(history))
	return c, true
}

// Complete resolves c with res. Finalization always runs: the assistant or
// failure message is appended, stats are replaced when the reply carries
// them, and the pending/typing flags are cleared. A cycle that is not the
// active one is ignored.
func (s *Session) Complete(c *Cycle, res Result) (Event, bool) {
	s.mu.Lock()
	if c == nil || s.active != c {
		s.mu.Unlock()
		return Event{}, false
	}
	s.active = nil

	ev := Event{CycleID: c.id, FocusInput: true, ScrollToBottom: true}
	log := logging.Get(logging.CategorySession)

	if res.Err != nil {
		cat := failure.ClassifyError(res.Err)
		ev.Outcome = OutcomeFailure
		ev.Category = cat
		ev.Message = s.store.AppendAssistant(s.catalog.Message(cat))
		log.With("cycle", c.id, "category", cat.String()).Warn("cycle failed: %s", failure.Text(res.Err))
	} else {
		ev.Outcome = OutcomeSuccess
		ev.Message = s.store.AppendAssistant(res.Reply.Text)
		if res.Reply.Data != nil {
			s.tracker.Update(*res.Reply.Data)
			ev.StatsUpdated = true
		}
		log.With("cycle", c.id).Debug("cycle succeeded: stats_updated=%v", ev.StatsUpdated)
	}

	s.store.Finish()
	listeners := make([]func(Event), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
	return ev, true
}

// Submit runs a whole cycle synchronously. It returns false when the send
// was ignored (empty text or busy).
func (s *Session) Submit(ctx context.Context, text string) (Event, bool) {
	c, ok := s.Begin(text)
	if !ok {
		return Event{}, false
	}
	return s.Complete(c, c.Send(ctx))
}

// SelectSuggestion sends a suggested query. It is exactly Submit.
func (s *Session) SelectSuggestion(ctx context.Context, text string) (Event, bool) {
	return s.Submit(ctx, text)
}

// Clear empties the conversation. Stats are kept.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Reset()
}

// ClearStats drops the held stats.
func (s *Session) ClearStats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker.Clear()
}

// ClearAll empties the conversation and drops the stats.
func (s *Session) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Reset()
	s.tracker.Clear()
}

// Phase returns the current state machine phase.
func (s *Session) Phase() Phase {
	if s.store.Pending() {
		return PhasePending
	}
	return PhaseIdle
}

// View returns a consistent read-only snapshot for rendering.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.store.Snapshot()
	v := View{
		Messages:    st.Messages,
		Pending:     st.Pending,
		Typing:      st.Typing,
		Phase:       PhaseIdle,
		Suggestions: SuggestedQueries(),
	}
	if st.Pending {
		v.Phase = PhasePending
	}
	if stats, ok := s.tracker.Current(); ok {
		v.Stats = &stats
	}
	return v
}
