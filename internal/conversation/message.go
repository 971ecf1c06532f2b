// Package conversation holds the ordered message history of a chat session
// together with the pending/typing flags that gate the dispatch cycle.
package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single entry in the conversation.
type Message struct {
	ID        string    // UUIDv7, sorts by creation time
	Content   string
	Role      Role
	Timestamp time.Time
}

// Turn is the minimal {content, role} pair sent to the assistant service as context.
type Turn struct {
	Content string
	Role    Role
}

// newMessage stamps a message with a time-ordered ID.
func newMessage(role Role, content string, now time.Time) Message {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does.
		id = uuid.New()
	}
	return Message{
		ID:        id.String(),
		Content:   content,
		Role:      role,
		Timestamp: now,
	}
}
