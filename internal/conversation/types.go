// Package conversation persists chat sessions and their message history in
// PostgreSQL and renders recent exchanges into the transcript block the
// answer pipeline consumes as conversation context.
package conversation

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role values stored in the messages table.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	// DefaultTitle is given to sessions created without one.
	DefaultTitle = "New conversation"

	// DefaultExchangeWindow is the number of recent exchanges loaded when
	// the caller passes no limit.
	DefaultExchangeWindow = 5

	// MaxExchangeWindow caps a single RecentExchanges call.
	MaxExchangeWindow = 50

	// DefaultListLimit is the session page size when the caller passes none.
	DefaultListLimit = 20

	// MaxListLimit caps a session listing page.
	MaxListLimit = 100

	// DefaultMessageLimit is the message page size when the caller passes none.
	DefaultMessageLimit = 50

	// MaxMessageLimit caps a message page.
	MaxMessageLimit = 500
)

// Session is one conversation thread.
type Session struct {
	ID           uuid.UUID
	Title        string
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message is a single stored utterance. Seq orders messages within a
// session; AddExchange assigns consecutive values.
type Message struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Role      string
	Content   string
	Seq       int
	CreatedAt time.Time
}

// Exchange is one user turn paired with the assistant's reply.
type Exchange struct {
	User      string
	Assistant string
}

// FormatContext renders exchanges into the conversation-context block passed
// to the pipeline. An empty slice renders to "", which the pipeline treats
// as no history.
func FormatContext(exchanges []Exchange) string {
	if len(exchanges) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	for _, ex := range exchanges {
		b.WriteString("User: ")
		b.WriteString(ex.User)
		b.WriteString("\nAssistant: ")
		b.WriteString(ex.Assistant)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}
