// ABOUTME: Tests for the ephemeral chat session
// ABOUTME: Covers transcript ordering, copy semantics, and agent binding

package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_TranscriptOrder(t *testing.T) {
	s := NewSession("agent-1")
	require.NotEmpty(t, s.ID)

	s.User("hello")
	s.Assistant("hi there")
	s.User("what do you know?")

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, Message{Role: RoleUser, Content: "hello"}, msgs[0])
	assert.Equal(t, Message{Role: RoleAssistant, Content: "hi there"}, msgs[1])
	assert.Equal(t, Message{Role: RoleUser, Content: "what do you know?"}, msgs[2])
	assert.Equal(t, 3, s.Len())
}

func TestSession_MessagesReturnsCopy(t *testing.T) {
	s := NewSession("agent-1")
	s.User("original")

	msgs := s.Messages()
	msgs[0].Content = "mutated"

	assert.Equal(t, "original", s.Messages()[0].Content)
}

func TestSession_For(t *testing.T) {
	s := NewSession("agent-1")

	assert.True(t, s.For("agent-1"))
	assert.False(t, s.For("agent-2"))

	var nilSession *Session
	assert.False(t, nilSession.For("agent-1"))
}

func TestSession_UniqueIDs(t *testing.T) {
	a := NewSession("agent-1")
	b := NewSession("agent-1")
	assert.NotEqual(t, a.ID, b.ID)
}
