// ABOUTME: Wire types and translation between backend snake_case and domain types
// ABOUTME: This file is the only place wire field names appear

package api

import (
	"time"

	"github.com/docent-ai/docent/internal/kb"
)

// User identifies the authenticated account.
type User struct {
	ID       int
	Username string
	Email    string
}

// Model is an entry from the backend's model catalog.
type Model struct {
	ID       string
	Provider string
	Label    string
}

// ChatAnswer is the backend's reply to a chat message.
type ChatAnswer struct {
	AgentID string
	Answer  string
}

type wireUser struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type wireModel struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Label    string `json:"label"`
}

type wireDocument struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	File      string `json:"file"`
	CreatedAt string `json:"created_at"`
}

type wireAgent struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Model        string         `json:"model"`
	Temperature  float64        `json:"temperature"`
	MaxTokens    int            `json:"max_tokens"`
	SystemPrompt string         `json:"system_prompt"`
	APIKey       string         `json:"api_key"`
	StorePath    string         `json:"store_path"`
	Documents    []wireDocument `json:"documents"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
}

func (w wireUser) toDomain() User {
	return User{ID: w.ID, Username: w.Username, Email: w.Email}
}

func (w wireModel) toDomain() Model {
	return Model{ID: w.ID, Provider: w.Provider, Label: w.Label}
}

func (w wireDocument) toDomain() kb.Document {
	return kb.Document{
		ID:         w.ID,
		Name:       w.Name,
		StorageRef: w.File,
		CreatedAt:  parseTime(w.CreatedAt),
	}
}

func (w wireAgent) toDomain() kb.Agent {
	docs := make([]kb.Document, len(w.Documents))
	for i, d := range w.Documents {
		docs[i] = d.toDomain()
	}

	// The backend has no notion of the client's transient states; a
	// materialized agent is Ready exactly when it has a built store and at
	// least one linked document.
	state := kb.KBStateUnbuilt
	if w.StorePath != "" && len(docs) > 0 {
		state = kb.KBStateReady
	}

	return kb.Agent{
		ID:           w.ID,
		Name:         w.Name,
		Model:        w.Model,
		Temperature:  w.Temperature,
		MaxTokens:    w.MaxTokens,
		SystemPrompt: w.SystemPrompt,
		APIKey:       w.APIKey,
		KBState:      state,
		StorePath:    w.StorePath,
		Documents:    docs,
		CreatedAt:    parseTime(w.CreatedAt),
		UpdatedAt:    parseTime(w.UpdatedAt),
	}
}

// parseTime parses a backend timestamp, returning the zero time for empty
// or malformed values rather than failing the whole entity.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
