// ABOUTME: Agent CRUD and knowledge-base lifecycle operations
// ABOUTME: Create/update params are validated client-side before any request is issued

package api

import (
	"context"
	"fmt"

	"github.com/docent-ai/docent/internal/kb"
)

// AgentParams are the inputs for creating an agent. An agent cannot exist
// without a resolved model, an API key, and at least one document.
type AgentParams struct {
	Name         string  `validate:"required"`
	Model        string  `validate:"required"`
	Temperature  float64 `validate:"gte=0,lte=1"`
	MaxTokens    int     `validate:"gte=64,lte=4096"`
	SystemPrompt string
	APIKey       string `validate:"required"`
	DocumentIDs  []int  `validate:"min=1,dive,gt=0"`
}

// AgentPatch is a partial update; nil fields are left untouched. An empty
// DocumentIDs slice is meaningful: it unlinks every document.
type AgentPatch struct {
	Name         *string
	Model        *string
	Temperature  *float64 `validate:"omitempty,gte=0,lte=1"`
	MaxTokens    *int     `validate:"omitempty,gte=64,lte=4096"`
	SystemPrompt *string
	APIKey       *string
	DocumentIDs  *[]int `validate:"omitempty,dive,gt=0"`
}

type wireAgentCreate struct {
	Name         string  `json:"name"`
	Model        string  `json:"model"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	SystemPrompt string  `json:"system_prompt"`
	APIKey       string  `json:"api_key"`
	DocumentIDs  []int   `json:"document_ids"`
}

type wireAgentPatch struct {
	Name         *string  `json:"name,omitempty"`
	Model        *string  `json:"model,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	MaxTokens    *int     `json:"max_tokens,omitempty"`
	SystemPrompt *string  `json:"system_prompt,omitempty"`
	APIKey       *string  `json:"api_key,omitempty"`
	DocumentIDs  *[]int   `json:"document_ids,omitempty"`
}

// Agents lists the account's agents.
func (c *Client) Agents(ctx context.Context) ([]kb.Agent, error) {
	var resp []wireAgent
	if err := c.do(ctx, "GET", "/agents/", nil, &resp); err != nil {
		return nil, err
	}

	agents := make([]kb.Agent, len(resp))
	for i, a := range resp {
		agents[i] = a.toDomain()
	}
	return agents, nil
}

// CreateAgent creates an agent and returns the materialized entity.
func (c *Client) CreateAgent(ctx context.Context, params AgentParams) (kb.Agent, error) {
	if err := c.validateStruct(params); err != nil {
		return kb.Agent{}, err
	}

	req := wireAgentCreate{
		Name:         params.Name,
		Model:        params.Model,
		Temperature:  params.Temperature,
		MaxTokens:    params.MaxTokens,
		SystemPrompt: params.SystemPrompt,
		APIKey:       params.APIKey,
		DocumentIDs:  params.DocumentIDs,
	}

	var resp wireAgent
	if err := c.do(ctx, "POST", "/agents/", req, &resp); err != nil {
		return kb.Agent{}, err
	}
	return resp.toDomain(), nil
}

// UpdateAgent applies a partial update and returns the fresh entity.
func (c *Client) UpdateAgent(ctx context.Context, id string, patch AgentPatch) (kb.Agent, error) {
	if id == "" {
		return kb.Agent{}, &ValidationError{Field: "id", Message: "must not be empty"}
	}
	if err := c.validateStruct(patch); err != nil {
		return kb.Agent{}, err
	}

	req := wireAgentPatch{
		Name:         patch.Name,
		Model:        patch.Model,
		Temperature:  patch.Temperature,
		MaxTokens:    patch.MaxTokens,
		SystemPrompt: patch.SystemPrompt,
		APIKey:       patch.APIKey,
		DocumentIDs:  patch.DocumentIDs,
	}

	var resp wireAgent
	if err := c.do(ctx, "PATCH", fmt.Sprintf("/agents/%s/", id), req, &resp); err != nil {
		return kb.Agent{}, err
	}
	return resp.toDomain(), nil
}

// DeleteAgent removes an agent.
func (c *Client) DeleteAgent(ctx context.Context, id string) error {
	if id == "" {
		return &ValidationError{Field: "id", Message: "must not be empty"}
	}
	return c.do(ctx, "DELETE", fmt.Sprintf("/agents/%s/", id), nil, nil)
}

// RebuildAgent asks the backend to rebuild the agent's knowledge base from
// its current document set and returns the fresh entity.
func (c *Client) RebuildAgent(ctx context.Context, id string) (kb.Agent, error) {
	if id == "" {
		return kb.Agent{}, &ValidationError{Field: "id", Message: "must not be empty"}
	}

	var resp wireAgent
	if err := c.do(ctx, "POST", fmt.Sprintf("/agents/%s/%s/", id, c.rebuildPath), nil, &resp); err != nil {
		return kb.Agent{}, err
	}
	return resp.toDomain(), nil
}

// ResetAgent clears the agent's knowledge base and unlinks every document.
// The operation is idempotent server-side.
func (c *Client) ResetAgent(ctx context.Context, id string) (kb.Agent, error) {
	if id == "" {
		return kb.Agent{}, &ValidationError{Field: "id", Message: "must not be empty"}
	}

	var resp wireAgent
	if err := c.do(ctx, "POST", fmt.Sprintf("/agents/%s/%s/", id, c.resetPath), nil, &resp); err != nil {
		return kb.Agent{}, err
	}
	return resp.toDomain(), nil
}
