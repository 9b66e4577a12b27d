// ABOUTME: Chat operation sending a message to an agent's knowledge base
// ABOUTME: The answer is grounded in the agent's built vectorstore server-side

package api

import "context"

type chatRequest struct {
	AgentID string `json:"agent_id"`
	Message string `json:"message"`
}

type chatResponse struct {
	Answer  string `json:"answer"`
	AgentID string `json:"agent_id"`
}

// SendChat sends one user message to an agent and returns the grounded
// answer. Requires an agent with a built knowledge base; the backend rejects
// anything else with a 400.
func (c *Client) SendChat(ctx context.Context, agentID, message string) (ChatAnswer, error) {
	if agentID == "" {
		return ChatAnswer{}, &ValidationError{Field: "agent_id", Message: "must not be empty"}
	}
	if message == "" {
		return ChatAnswer{}, &ValidationError{Field: "message", Message: "must not be empty"}
	}

	var resp chatResponse
	if err := c.do(ctx, "POST", "/chat", chatRequest{AgentID: agentID, Message: message}, &resp); err != nil {
		return ChatAnswer{}, err
	}

	return ChatAnswer{AgentID: resp.AgentID, Answer: resp.Answer}, nil
}
