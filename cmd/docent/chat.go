// ABOUTME: Interactive chat REPL against one agent's knowledge base
// ABOUTME: Drives the lifecycle controller and discards answers for stale targets

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/docent-ai/docent/internal/chat"
	"github.com/docent-ai/docent/internal/kb"
)

// cmdChat runs a chat session. With a trailing message it is one-shot;
// without one it drops into a REPL.
func (a *app) cmdChat(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: chat <agent-id> [message]")
	}
	agentID := args[0]

	ctrl, err := a.loadController(ctx)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	agent, ok := ctrl.Agent(agentID)
	if !ok {
		return kb.ErrAgentNotFound
	}
	if agent.KBState != kb.KBStateReady {
		return fmt.Errorf("agent %s has no ready knowledge base (state: %s); run 'docent agent rebuild %s'",
			agent.Name, agent.KBState, agentID)
	}

	if err := ctrl.SetActive(agentID); err != nil {
		return err
	}

	if len(args) >= 2 {
		message := strings.Join(args[1:], " ")
		return a.chatOneShot(ctx, ctrl, agentID, message)
	}

	return a.chatREPL(ctx, ctrl, agent)
}

func (a *app) chatOneShot(ctx context.Context, ctrl *kb.Controller, agentID, message string) error {
	sess := chat.NewSession(agentID)
	sess.User(message)

	answer, err := a.client.SendChat(ctx, agentID, message)
	if err != nil {
		return err
	}

	// The one-shot target cannot change, but the staleness check keeps the
	// append path identical to the REPL's.
	if !sess.For(answer.AgentID) || !ctrl.IsActive(answer.AgentID) {
		a.logger.Debug("discarding answer for inactive agent", "agent_id", answer.AgentID)
		return nil
	}
	sess.Assistant(answer.Answer)

	fmt.Println(answer.Answer)
	return nil
}

func (a *app) chatREPL(ctx context.Context, ctrl *kb.Controller, agent kb.Agent) error {
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	dim := color.New(color.Faint)

	// Watch for mutations that invalidate the chat, e.g. the agent being
	// deleted from another terminal during a long-running session.
	events, subID := ctrl.Subscribe(ctx)
	defer ctrl.Unsubscribe(subID)

	evicted := make(chan struct{})
	go func() {
		for evt := range events {
			if evt.Kind == kb.EventChatEvicted && evt.AgentID == agent.ID {
				close(evicted)
				return
			}
		}
	}()

	sess := chat.NewSession(agent.ID)

	cyan.Printf("Chat with %s (%s) - Ctrl+D to exit\n\n", agent.Name, agent.Model)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), 1024*1024)
	for {
		select {
		case <-evicted:
			return fmt.Errorf("agent was removed; leaving chat")
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		green.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			switch line {
			case "/quit", "/exit":
				return nil
			case "/info":
				cur, ok := ctrl.Agent(agent.ID)
				if !ok {
					return kb.ErrAgentNotFound
				}
				fmt.Printf("  %s  model=%s  kb=%s  docs=%d  turns=%d\n",
					cur.Name, cur.Model, cur.KBState, len(cur.Documents), sess.Len())
			case "/help":
				fmt.Println("  /info   show the agent and transcript state")
				fmt.Println("  /quit   leave the chat")
			default:
				fmt.Printf("  unknown command %s (try /help)\n", line)
			}
			continue
		}

		sess.User(line)

		answer, err := a.client.SendChat(ctx, agent.ID, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		if !sess.For(answer.AgentID) || !ctrl.IsActive(answer.AgentID) {
			a.logger.Debug("discarding answer for inactive agent", "agent_id", answer.AgentID)
			continue
		}
		sess.Assistant(answer.Answer)

		fmt.Println(answer.Answer)
		dim.Printf("  [%d turns]\n\n", sess.Len())
	}
}
