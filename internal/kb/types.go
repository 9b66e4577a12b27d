// ABOUTME: Domain types for agents, documents, and knowledge-base state
// ABOUTME: KBState transitions are driven by the Controller, never set directly by views

package kb

import "time"

// KBState describes where an agent's knowledge base is in its lifecycle.
// Rebuilding and Resetting are transient: every request that enters them
// terminates in Ready, Unbuilt, or Error.
type KBState string

const (
	KBStateUnbuilt    KBState = "unbuilt"
	KBStateReady      KBState = "ready"
	KBStateRebuilding KBState = "rebuilding"
	KBStateResetting  KBState = "resetting"
	KBStateError      KBState = "error"
)

// Transient reports whether the state is a temporary in-flight state.
func (s KBState) Transient() bool {
	return s == KBStateRebuilding || s == KBStateResetting
}

// Document is an uploaded file the backend can ground answers in. Documents
// are referenced by agents, never owned by them.
type Document struct {
	ID         int
	Name       string
	StorageRef string
	CreatedAt  time.Time
}

// Agent is a configured chatbot instance: a model plus settings plus a
// linked document set. KBState and StorePath describe the knowledge base
// built from those documents.
type Agent struct {
	ID           string
	Name         string
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
	APIKey       string
	KBState      KBState
	StorePath    string
	Documents    []Document
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DocumentIDs returns the ids of the agent's linked documents in order.
func (a *Agent) DocumentIDs() []int {
	ids := make([]int, len(a.Documents))
	for i, d := range a.Documents {
		ids[i] = d.ID
	}
	return ids
}

// HasDocument reports whether the agent references the given document.
func (a *Agent) HasDocument(id int) bool {
	for _, d := range a.Documents {
		if d.ID == id {
			return true
		}
	}
	return false
}

// clone returns a deep copy so canonical state never shares slices with
// readers.
func (a Agent) clone() Agent {
	c := a
	c.Documents = append([]Document(nil), a.Documents...)
	return c
}
