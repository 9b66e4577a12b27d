// ABOUTME: Authoritative in-memory store of agents, documents, and KB state
// ABOUTME: Whole-entity replacement plus fan-out change events keep all views consistent

package kb

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Controller errors
var (
	ErrAgentNotFound = errors.New("agent not found")
	ErrNoDocuments   = errors.New("agent has no linked documents")
	ErrKBNotReady    = errors.New("knowledge base is not ready")
	ErrKBBusy        = errors.New("knowledge base operation already in progress")
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// EventKind identifies what changed in the controller.
type EventKind string

const (
	EventAgentsReplaced    EventKind = "agents_replaced"
	EventAgentPut          EventKind = "agent_put"
	EventAgentRemoved      EventKind = "agent_removed"
	EventDocumentsReplaced EventKind = "documents_replaced"
	EventDocumentRemoved   EventKind = "document_removed"
	EventChatEvicted       EventKind = "chat_evicted"
)

// Event notifies subscribers that controller state changed. Events carry
// identifiers only; views re-read the snapshot they need so every consumer
// observes the same post-mutation state.
type Event struct {
	Kind       EventKind
	AgentID    string
	DocumentID int
}

// Controller holds exactly one canonical copy of each agent and of the
// document list. Every successful mutation replaces whole entities; readers
// always get copies, never references into canonical state. Views never
// write here directly — mutations arrive only through the operations below.
type Controller struct {
	logger *slog.Logger

	mu       sync.RWMutex
	agents   map[string]Agent
	order    []string // agent ids in listing order
	docs     []Document
	activeID string
	closed   bool

	subscribers map[string]chan Event
}

// NewController creates an empty controller. Pass nil logger for default.
func NewController(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		logger:      logger.With("component", "kb"),
		agents:      make(map[string]Agent),
		subscribers: make(map[string]chan Event),
	}
}

// Close tears the controller down and closes all subscriber channels.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	for id, ch := range c.subscribers {
		close(ch)
		delete(c.subscribers, id)
	}
	c.agents = make(map[string]Agent)
	c.order = nil
	c.docs = nil
	c.activeID = ""
}

// Subscribe registers a view for change events. Returns the event channel
// and a subscription ID. The subscription is cleaned up when ctx is
// cancelled.
func (c *Controller) Subscribe(ctx context.Context) (<-chan Event, string) {
	subID := uuid.New().String()
	ch := make(chan Event, subscriberBufferSize)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, subID
	}
	c.subscribers[subID] = ch
	c.mu.Unlock()

	c.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		c.Unsubscribe(subID)
	}()

	return ch, subID
}

// Unsubscribe removes a subscription and closes its channel.
func (c *Controller) Unsubscribe(subID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.subscribers[subID]
	if !ok {
		return
	}
	delete(c.subscribers, subID)
	close(ch)

	c.logger.Debug("subscriber removed", "sub_id", subID)
}

// publishLocked fans an event out to all subscribers. Must be called with
// mu held. Non-blocking: events are dropped for subscribers whose channels
// are full (they re-read the snapshot on the next event anyway).
func (c *Controller) publishLocked(evt Event) {
	for subID, ch := range c.subscribers {
		select {
		case ch <- evt:
		default:
			c.logger.Debug("dropped event for slow subscriber",
				"sub_id", subID,
				"kind", evt.Kind)
		}
	}
}

// --- Agents ---

// SetAgents replaces the whole agent collection, e.g. after a list fetch.
func (c *Controller) SetAgents(agents []Agent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.agents = make(map[string]Agent, len(agents))
	c.order = make([]string, 0, len(agents))
	for _, a := range agents {
		c.agents[a.ID] = normalize(a.clone())
		c.order = append(c.order, a.ID)
	}

	c.publishLocked(Event{Kind: EventAgentsReplaced})
}

// Agents returns copies of all agents in listing order.
func (c *Controller) Agents() []Agent {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Agent, 0, len(c.order))
	for _, id := range c.order {
		if a, ok := c.agents[id]; ok {
			out = append(out, a.clone())
		}
	}
	return out
}

// Agent returns a copy of one agent.
func (c *Controller) Agent(id string) (Agent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	a, ok := c.agents[id]
	if !ok {
		return Agent{}, false
	}
	return a.clone(), true
}

// Put inserts or replaces an agent with the freshly materialized entity,
// e.g. after a create.
func (c *Controller) Put(a Agent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.putLocked(a)
}

func (c *Controller) putLocked(a Agent) {
	if _, exists := c.agents[a.ID]; !exists {
		c.order = append(c.order, a.ID)
	}
	c.agents[a.ID] = normalize(a.clone())
	c.publishLocked(Event{Kind: EventAgentPut, AgentID: a.ID})
}

// Replace swaps in a fresh entity only when the agent still exists. A false
// return means the result is stale (the agent was deleted while the request
// was in flight) and has been discarded.
func (c *Controller) Replace(a Agent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.agents[a.ID]; !exists {
		c.logger.Debug("discarding stale result", "agent_id", a.ID)
		return false
	}
	c.agents[a.ID] = normalize(a.clone())
	c.publishLocked(Event{Kind: EventAgentPut, AgentID: a.ID})
	return true
}

// Remove deletes an agent. When the removed agent was the active chat
// target, the chat view is evicted in the same mutation.
func (c *Controller) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.agents[id]; !exists {
		return false
	}
	delete(c.agents, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}

	if c.activeID == id {
		c.activeID = ""
		c.publishLocked(Event{Kind: EventChatEvicted, AgentID: id})
	}
	c.publishLocked(Event{Kind: EventAgentRemoved, AgentID: id})
	return true
}

// --- Knowledge-base lifecycle ---

// BeginRebuild marks the agent's knowledge base as rebuilding. Only a Ready
// knowledge base with at least one linked document can rebuild; a no-op
// request is rejected here, before any network call.
func (c *Controller) BeginRebuild(id string) (Agent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, ok := c.agents[id]
	if !ok {
		return Agent{}, ErrAgentNotFound
	}
	if a.KBState.Transient() {
		return Agent{}, ErrKBBusy
	}
	if len(a.Documents) == 0 {
		return Agent{}, ErrNoDocuments
	}
	if a.KBState != KBStateReady {
		return Agent{}, ErrKBNotReady
	}

	a.KBState = KBStateRebuilding
	c.agents[id] = a
	c.publishLocked(Event{Kind: EventAgentPut, AgentID: id})
	return a.clone(), nil
}

// CompleteRebuild resolves an in-flight rebuild: success replaces the agent
// with the backend's fresh entity, failure lands in Error. A false return
// means the agent was deleted meanwhile and the result was discarded.
func (c *Controller) CompleteRebuild(id string, result Agent, opErr error) bool {
	return c.resolveTransient(id, result, opErr)
}

// BeginReset marks the agent's knowledge base as resetting. Reset is
// idempotent: an agent that is already Unbuilt with no documents succeeds
// without a transition. Allowed from Ready or Error (and Unbuilt, to unlink
// leftover documents).
func (c *Controller) BeginReset(id string) (Agent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, ok := c.agents[id]
	if !ok {
		return Agent{}, ErrAgentNotFound
	}
	if a.KBState.Transient() {
		return Agent{}, ErrKBBusy
	}
	if a.KBState == KBStateUnbuilt && len(a.Documents) == 0 {
		// Nothing to reset.
		return a.clone(), nil
	}

	a.KBState = KBStateResetting
	c.agents[id] = a
	c.publishLocked(Event{Kind: EventAgentPut, AgentID: id})
	return a.clone(), nil
}

// CompleteReset resolves an in-flight reset. Success lands in Unbuilt with
// every document unlinked; failure lands in Error.
func (c *Controller) CompleteReset(id string, result Agent, opErr error) bool {
	return c.resolveTransient(id, result, opErr)
}

// resolveTransient terminates a transient state: Rebuilding and Resetting
// always end in Ready, Unbuilt, or Error.
func (c *Controller) resolveTransient(id string, result Agent, opErr error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.agents[id]
	if !ok {
		c.logger.Debug("discarding stale result", "agent_id", id)
		return false
	}

	if opErr != nil {
		cur.KBState = KBStateError
		c.agents[id] = cur
		c.publishLocked(Event{Kind: EventAgentPut, AgentID: id})
		return true
	}

	result.ID = id
	c.agents[id] = normalize(result.clone())
	c.publishLocked(Event{Kind: EventAgentPut, AgentID: id})
	return true
}

// --- Documents ---

// SetDocuments replaces the document collection, e.g. after a list fetch.
func (c *Controller) SetDocuments(docs []Document) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.docs = append([]Document(nil), docs...)
	c.publishLocked(Event{Kind: EventDocumentsReplaced})
}

// Documents returns a copy of the document list.
func (c *Controller) Documents() []Document {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]Document(nil), c.docs...)
}

// AddDocument records a freshly uploaded document at the front of the list
// (the backend lists newest first).
func (c *Controller) AddDocument(doc Document) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.docs = append([]Document{doc}, c.docs...)
	c.publishLocked(Event{Kind: EventDocumentsReplaced})
}

// RemoveDocument deletes a document and, in the same mutation, prunes its id
// from every agent that referenced it. An agent whose selection becomes
// empty leaves Ready — a dangling reference to a deleted document is a
// defect this method exists to prevent.
func (c *Controller) RemoveDocument(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.docs[:0]
	for _, d := range c.docs {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	c.docs = kept

	for _, agentID := range c.order {
		a, ok := c.agents[agentID]
		if !ok || !a.HasDocument(id) {
			continue
		}

		pruned := a.clone()
		docs := pruned.Documents[:0]
		for _, d := range pruned.Documents {
			if d.ID != id {
				docs = append(docs, d)
			}
		}
		pruned.Documents = docs
		c.agents[agentID] = normalize(pruned)
		c.publishLocked(Event{Kind: EventAgentPut, AgentID: agentID})
	}

	c.publishLocked(Event{Kind: EventDocumentRemoved, DocumentID: id})
}

// --- Active chat agent ---

// SetActive marks the agent the chat view is talking to.
func (c *Controller) SetActive(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.agents[id]; !ok {
		return ErrAgentNotFound
	}
	c.activeID = id
	return nil
}

// ClearActive leaves the chat view.
func (c *Controller) ClearActive() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeID = ""
}

// Active returns the agent the chat view is talking to, if any.
func (c *Controller) Active() (Agent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.activeID == "" {
		return Agent{}, false
	}
	a, ok := c.agents[c.activeID]
	if !ok {
		return Agent{}, false
	}
	return a.clone(), true
}

// IsActive reports whether id is still the active chat target. Completion
// paths use it to discard results that arrived after navigation.
func (c *Controller) IsActive(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeID == id
}

// normalize enforces the controller-wide invariant that an agent with zero
// linked documents is never Ready.
func normalize(a Agent) Agent {
	if len(a.Documents) == 0 && a.KBState == KBStateReady {
		a.KBState = KBStateUnbuilt
	}
	return a
}
