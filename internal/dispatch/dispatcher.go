// Package dispatch runs the chat turn state machine: it decides when a send
// is allowed, orders the optimistic user append before the resolution
// append, recovers every failure into the conversation and merges the
// content-database summary that comes back with replies.
package dispatch

import (
	"context"
	"fmt"

	"mediachat/internal/conversation"
	"mediachat/internal/metadata"
)

// Dispatcher performs one request/response round trip with the assistant service.
// A non-nil error is a failure; its text is what gets classified.
type Dispatcher interface {
	Send(ctx context.Context, message string, history []conversation.Turn) (Reply, error)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, message string, history []conversation.Turn) (Reply, error)

// Send calls f.
func (f DispatcherFunc) Send(ctx context.Context, message string, history []conversation.Turn) (Reply, error) {
	return f(ctx, message, history)
}

// Reply is a successful assistant response.
type Reply struct {
	Text string
	Data *metadata.DbStats
}

// Result is the resolution of a cycle: either a Reply or a failure.
type Result struct {
	Reply Reply
	Err   error
}

// Phase is the state of the dispatch state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
)

func (p Phase) String() string {
	if p == PhasePending {
		return "pending"
	}
	return "idle"
}

// Cycle is one accepted send awaiting resolution.
type Cycle struct {
	id         uint64
	message    string
	history    []conversation.Turn
	dispatcher Dispatcher
}

// ID is the per-session sequence number of the cycle, starting at 1.
func (c *Cycle) ID() uint64 { return c.id }

// Message is the trimmed user text.
func (c *Cycle) Message() string { return c.message }

// History is the context sent with the message: the conversation as it was
// before this cycle's user message was appended.
func (c *Cycle) History() []conversation.Turn {
	out := make([]conversation.Turn, len(c.history))
	copy(out, c.history)
	return out
}

// Send performs the network call. It blocks for as long as the dispatcher
// does; a panicking dispatcher resolves as a failure.
func (c *Cycle) Send(ctx context.Context) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("dispatcher panic: %v", r)}
		}
	}()

	reply, err := c.dispatcher.Send(ctx, c.message, c.History())
	if err != nil {
		return Result{Err: err}
	}
	return Result{Reply: reply}
}
