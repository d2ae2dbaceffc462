package domain

import (
	"fmt"
	"time"
)

// Role is the author of a conversation message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// SourceCitation points an answer back at the passage that supports it
type SourceCitation struct {
	PassageID  string   `json:"passageId"`
	Title      string   `json:"title"`
	Snippet    string   `json:"snippet"`
	Location   Location `json:"location"`
	Confidence float64  `json:"confidence"`
}

// Message is one turn of a conversation
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
	Sources   []SourceCitation // assistant messages only
}

// Conversation is the append-only transcript of questions about one document
type Conversation struct {
	ID         string
	DocumentID string
	UserID     string
	Messages   []Message
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ConversationSummary is a conversation without its transcript, used for listings
type ConversationSummary struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"documentId"`
	UserID       string    `json:"-"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Summary returns the listing view of the conversation
func (c *Conversation) Summary() *ConversationSummary {
	return &ConversationSummary{
		ID:           c.ID,
		DocumentID:   c.DocumentID,
		UserID:       c.UserID,
		MessageCount: len(c.Messages),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// NewConversation creates an empty Conversation
func NewConversation(id, documentID, userID string, createdAt time.Time) *Conversation {
	return &Conversation{
		ID:         id,
		DocumentID: documentID,
		UserID:     userID,
		Messages:   []Message{},
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

// NewUserMessage creates a user question message
func NewUserMessage(id, content string) Message {
	return Message{ID: id, Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant answer message
func NewAssistantMessage(id, content string, sources []SourceCitation) Message {
	return Message{ID: id, Role: RoleAssistant, Content: content, Sources: sources}
}

// OwnedBy reports whether the conversation belongs to the user and document
func (c *Conversation) OwnedBy(documentID, userID string) bool {
	return c.DocumentID == documentID && c.UserID == userID
}

// LastMessages returns at most n trailing messages
func (c *Conversation) LastMessages(n int) []Message {
	if n <= 0 || len(c.Messages) == 0 {
		return nil
	}
	if len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}

// AppendTurn stamps a user/assistant pair and appends it. The timestamp is
// never earlier than the last stored message so transcript order and
// timestamp order agree. Callers must hold whatever lock guards c.
func (c *Conversation) AppendTurn(user, assistant Message, now time.Time) error {
	if err := ValidateTurn(user, assistant); err != nil {
		return err
	}

	ts := now
	if n := len(c.Messages); n > 0 && c.Messages[n-1].Timestamp.After(ts) {
		ts = c.Messages[n-1].Timestamp
	}
	user.Timestamp = ts
	assistant.Timestamp = ts

	c.Messages = append(c.Messages, user, assistant)
	c.UpdatedAt = ts
	return nil
}

// ValidateTurn checks that a pair is one user question followed by one answer
func ValidateTurn(user, assistant Message) error {
	if user.Role != RoleUser {
		return ErrInvalidRole.Wrap(fmt.Errorf("first message of a turn must be %s, got %q", RoleUser, user.Role))
	}
	if assistant.Role != RoleAssistant {
		return ErrInvalidRole.Wrap(fmt.Errorf("second message of a turn must be %s, got %q", RoleAssistant, assistant.Role))
	}
	if user.ID == "" || assistant.ID == "" {
		return ErrMissingRequiredField.Wrap(fmt.Errorf("message ID is required"))
	}
	return nil
}

// ValidateConversation validates a Conversation and its transcript shape
func ValidateConversation(c *Conversation) error {
	if c == nil {
		return fmt.Errorf("conversation cannot be nil")
	}

	if c.ID == "" {
		return fmt.Errorf("conversation ID is required")
	}

	if c.DocumentID == "" {
		return fmt.Errorf("conversation DocumentID is required")
	}

	if c.UserID == "" {
		return fmt.Errorf("conversation UserID is required")
	}

	if len(c.Messages)%2 != 0 {
		return fmt.Errorf("conversation has an unpaired message")
	}

	for i := 0; i < len(c.Messages); i += 2 {
		if err := ValidateTurn(c.Messages[i], c.Messages[i+1]); err != nil {
			return fmt.Errorf("turn %d: %w", i/2, err)
		}
	}

	for i := 1; i < len(c.Messages); i++ {
		if c.Messages[i].Timestamp.Before(c.Messages[i-1].Timestamp) {
			return fmt.Errorf("conversation messages are out of order at %d", i)
		}
	}

	return nil
}
