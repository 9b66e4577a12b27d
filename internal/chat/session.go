// ABOUTME: Ephemeral chat transcript bound to a single agent
// ABOUTME: Never persisted and never merged back into the agent

package chat

import "github.com/google/uuid"

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the conversation.
type Message struct {
	Role    string
	Content string
}

// Session is the transcript of one chat with one agent. It lives only as
// long as the chat view is open; navigating away discards it.
type Session struct {
	ID       string
	AgentID  string
	messages []Message
}

// NewSession starts an empty transcript for the given agent.
func NewSession(agentID string) *Session {
	return &Session{
		ID:      uuid.New().String(),
		AgentID: agentID,
	}
}

// User appends a user turn.
func (s *Session) User(content string) {
	s.messages = append(s.messages, Message{Role: RoleUser, Content: content})
}

// Assistant appends an assistant turn.
func (s *Session) Assistant(content string) {
	s.messages = append(s.messages, Message{Role: RoleAssistant, Content: content})
}

// Messages returns a copy of the transcript in order.
func (s *Session) Messages() []Message {
	return append([]Message(nil), s.messages...)
}

// Len returns the number of turns.
func (s *Session) Len() int {
	return len(s.messages)
}

// For reports whether the session belongs to the given agent. Completion
// paths use it to detect results that arrived after the user switched
// agents; a stale answer is discarded, not appended.
func (s *Session) For(agentID string) bool {
	return s != nil && s.AgentID == agentID
}
