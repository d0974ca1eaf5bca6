package chat

import (
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/storage-assistant/internal/completion"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Fixed assistant messages.
const (
	GreetingMessage     = "Hello! How can I help you with your storage needs today?"
	FormPromptMessage   = "Please fill out the form to schedule your service request."
	TurnFailureMessage  = "I apologize, but I'm having trouble processing your request at the moment."
	BookingErrorMessage = "I'm sorry, there was an error scheduling your service. Please try again or contact our support team directly."
)

// Message is one transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript is the append-only message log of a session.
type Transcript []Message

// Append adds a message stamped no earlier than the previous entry.
func (t Transcript) Append(sender Sender, content string, now time.Time) Transcript {
	if n := len(t); n > 0 && now.Before(t[n-1].Timestamp) {
		now = t[n-1].Timestamp
	}
	return append(t, Message{
		ID:        uuid.New().String(),
		Content:   content,
		Sender:    sender,
		Timestamp: now,
	})
}

// History maps the transcript to provider chat turns.
func (t Transcript) History() []completion.ChatMessage {
	out := make([]completion.ChatMessage, 0, len(t))
	for _, msg := range t {
		role := completion.ChatRoleUser
		if msg.Sender == SenderAssistant {
			role = completion.ChatRoleAssistant
		}
		out = append(out, completion.ChatMessage{Role: role, Content: msg.Content})
	}
	return out
}

func (t Transcript) clone() Transcript {
	if t == nil {
		return Transcript{}
	}
	return append(Transcript(nil), t...)
}
