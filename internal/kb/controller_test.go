// ABOUTME: Tests for the agent/KB lifecycle controller
// ABOUTME: Covers state transitions, atomic replacement, dangling-reference pruning, events

package kb

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeDoc(id int) Document {
	return Document{
		ID:         id,
		Name:       fmt.Sprintf("doc-%d.pdf", id),
		StorageRef: fmt.Sprintf("uploads/doc-%d.pdf", id),
		CreatedAt:  time.Now().UTC(),
	}
}

func makeAgent(id string, state KBState, docIDs ...int) Agent {
	docs := make([]Document, len(docIDs))
	for i, d := range docIDs {
		docs[i] = makeDoc(d)
	}
	return Agent{
		ID:          id,
		Name:        "agent " + id,
		Model:       "gpt-4o-mini",
		Temperature: 0.2,
		MaxTokens:   1024,
		APIKey:      "sk-test",
		KBState:     state,
		StorePath:   "stores/" + id,
		Documents:   docs,
	}
}

// drain collects events already buffered on ch.
func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestController_SetAgentsAndRead(t *testing.T) {
	c := NewController(nil)
	defer c.Close()

	c.SetAgents([]Agent{
		makeAgent("a1", KBStateReady, 1, 2),
		makeAgent("a2", KBStateReady, 3),
	})

	agents := c.Agents()
	require.Len(t, agents, 2)
	assert.Equal(t, "a1", agents[0].ID)
	assert.Equal(t, "a2", agents[1].ID)

	a, ok := c.Agent("a1")
	require.True(t, ok)
	assert.Equal(t, []int{1, 2}, a.DocumentIDs())
}

func TestController_ReadsAreCopies(t *testing.T) {
	c := NewController(nil)
	defer c.Close()

	c.Put(makeAgent("a1", KBStateReady, 1))

	a, ok := c.Agent("a1")
	require.True(t, ok)
	a.Name = "mutated"
	a.Documents[0].Name = "mutated.pdf"

	fresh, ok := c.Agent("a1")
	require.True(t, ok)
	assert.Equal(t, "agent a1", fresh.Name)
	assert.Equal(t, "doc-1.pdf", fresh.Documents[0].Name)
}

func TestController_ZeroDocAgentIsNeverReady(t *testing.T) {
	c := NewController(nil)
	defer c.Close()

	// A Ready agent with no documents is normalized on every write path.
	c.Put(makeAgent("a1", KBStateReady))

	a, ok := c.Agent("a1")
	require.True(t, ok)
	assert.Equal(t, KBStateUnbuilt, a.KBState)
}

func TestController_ReplaceDiscardsStaleResult(t *testing.T) {
	c := NewController(nil)
	defer c.Close()

	c.Put(makeAgent("a1", KBStateReady, 1))
	require.True(t, c.Remove("a1"))

	// The update completed after the delete; its result must be discarded.
	replaced := c.Replace(makeAgent("a1", KBStateReady, 1))
	assert.False(t, replaced)

	_, ok := c.Agent("a1")
	assert.False(t, ok)
}

func TestController_RebuildLifecycle(t *testing.T) {
	c := NewController(nil)
	defer c.Close()

	c.Put(makeAgent("a1", KBStateReady, 1, 2))

	a, err := c.BeginRebuild("a1")
	require.NoError(t, err)
	assert.Equal(t, KBStateRebuilding, a.KBState)

	cur, _ := c.Agent("a1")
	assert.Equal(t, KBStateRebuilding, cur.KBState)

	require.True(t, c.CompleteRebuild("a1", makeAgent("a1", KBStateReady, 1, 2), nil))
	cur, _ = c.Agent("a1")
	assert.Equal(t, KBStateReady, cur.KBState)
}

func TestController_RebuildFailureLandsInError(t *testing.T) {
	c := NewController(nil)
	defer c.Close()

	c.Put(makeAgent("a1", KBStateReady, 1))

	_, err := c.BeginRebuild("a1")
	require.NoError(t, err)

	require.True(t, c.CompleteRebuild("a1", Agent{}, fmt.Errorf("backend exploded")))
	cur, _ := c.Agent("a1")
	assert.Equal(t, KBStateError, cur.KBState)
}

func TestController_RebuildPreconditions(t *testing.T) {
	c := NewController(nil)
	defer c.Close()

	c.Put(makeAgent("unbuilt", KBStateUnbuilt, 1))
	c.Put(makeAgent("nodocs", KBStateUnbuilt))
	c.Put(makeAgent("busy", KBStateReady, 1))

	_, err := c.BeginRebuild("missing")
	assert.ErrorIs(t, err, ErrAgentNotFound)

	_, err = c.BeginRebuild("nodocs")
	assert.ErrorIs(t, err, ErrNoDocuments)

	_, err = c.BeginRebuild("unbuilt")
	assert.ErrorIs(t, err, ErrKBNotReady)

	_, err = c.BeginRebuild("busy")
	require.NoError(t, err)
	_, err = c.BeginRebuild("busy")
	assert.ErrorIs(t, err, ErrKBBusy)
}

func TestController_ResetLifecycle(t *testing.T) {
	c := NewController(nil)
	defer c.Close()

	c.Put(makeAgent("a1", KBStateReady, 1, 2, 3))

	a, err := c.BeginReset("a1")
	require.NoError(t, err)
	assert.Equal(t, KBStateResetting, a.KBState)

	// Backend answers with the unlinked entity.
	fresh := makeAgent("a1", KBStateUnbuilt)
	fresh.StorePath = ""
	require.True(t, c.CompleteReset("a1", fresh, nil))

	cur, _ := c.Agent("a1")
	assert.Equal(t, KBStateUnbuilt, cur.KBState)
	assert.Empty(t, cur.Documents)
}

func TestController_ResetFromError(t *testing.T) {
	c := NewController(nil)
	defer c.Close()

	c.Put(makeAgent("a1", KBStateError, 1))

	a, err := c.BeginReset("a1")
	require.NoError(t, err)
	assert.Equal(t, KBStateResetting, a.KBState)
}

func TestController_ResetIsIdempotent(t *testing.T) {
	c := NewController(nil)
	defer c.Close()

	empty := makeAgent("a1", KBStateUnbuilt)
	empty.StorePath = ""
	c.Put(empty)

	// Resetting an already-empty agent succeeds without a transition.
	a, err := c.BeginReset("a1")
	require.NoError(t, err)
	assert.Equal(t, KBStateUnbuilt, a.KBState)
}

func TestController_TransientResultAfterDeleteIsDiscarded(t *testing.T) {
	c := NewController(nil)
	defer c.Close()

	c.Put(makeAgent("a1", KBStateReady, 1))
	_, err := c.BeginRebuild("a1")
	require.NoError(t, err)

	require.True(t, c.Remove("a1"))

	assert.False(t, c.CompleteRebuild("a1", makeAgent("a1", KBStateReady, 1), nil))
	_, ok := c.Agent("a1")
	assert.False(t, ok)
}

func TestController_RemoveEvictsActiveChat(t *testing.T) {
	c := NewController(nil)
	defer c.Close()

	c.Put(makeAgent("a1", KBStateReady, 1))
	require.NoError(t, c.SetActive("a1"))

	ch, _ := c.Subscribe(context.Background())

	require.True(t, c.Remove("a1"))

	_, active := c.Active()
	assert.False(t, active)

	events := drain(ch)
	require.Len(t, events, 2)
	assert.Equal(t, EventChatEvicted, events[0].Kind)
	assert.Equal(t, "a1", events[0].AgentID)
	assert.Equal(t, EventAgentRemoved, events[1].Kind)
}

func TestController_RemoveDocumentPrunesAgentSelections(t *testing.T) {
	c := NewController(nil)
	defer c.Close()

	c.SetDocuments([]Document{makeDoc(1), makeDoc(2), makeDoc(3)})
	c.Put(makeAgent("a1", KBStateReady, 1, 2))
	c.Put(makeAgent("a2", KBStateReady, 2, 3))
	c.Put(makeAgent("solo", KBStateReady, 2))

	c.RemoveDocument(2)

	docs := c.Documents()
	require.Len(t, docs, 2)
	for _, d := range docs {
		assert.NotEqual(t, 2, d.ID)
	}

	a1, _ := c.Agent("a1")
	assert.Equal(t, []int{1}, a1.DocumentIDs())

	a2, _ := c.Agent("a2")
	assert.Equal(t, []int{3}, a2.DocumentIDs())

	// The agent whose whole selection was the deleted document leaves Ready.
	solo, _ := c.Agent("solo")
	assert.Empty(t, solo.DocumentIDs())
	assert.Equal(t, KBStateUnbuilt, solo.KBState)
}

func TestController_SubscribersSeeMutations(t *testing.T) {
	c := NewController(nil)
	defer c.Close()

	ch1, _ := c.Subscribe(context.Background())
	ch2, _ := c.Subscribe(context.Background())

	c.Put(makeAgent("a1", KBStateReady, 1))

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case evt := <-ch:
			assert.Equal(t, EventAgentPut, evt.Kind, "subscriber %d", i)
			assert.Equal(t, "a1", evt.AgentID, "subscriber %d", i)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d timed out", i)
		}
	}
}

func TestController_UnsubscribeClosesChannel(t *testing.T) {
	c := NewController(nil)
	defer c.Close()

	ch, subID := c.Subscribe(context.Background())
	c.Unsubscribe(subID)

	_, open := <-ch
	assert.False(t, open)

	// Unsubscribing twice is safe.
	c.Unsubscribe(subID)
}

func TestController_ConcurrentReadersSeeWholeEntities(t *testing.T) {
	c := NewController(nil)
	defer c.Close()

	old := makeAgent("a1", KBStateReady, 1)
	old.Name = "old"
	old.Model = "old-model"
	c.Put(old)

	updated := makeAgent("a1", KBStateReady, 1, 2)
	updated.Name = "new"
	updated.Model = "new-model"

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Readers must observe either the fully-old or fully-new agent,
	// never a mix of fields.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				a, ok := c.Agent("a1")
				if !ok {
					continue
				}
				switch a.Name {
				case "old":
					assert.Equal(t, "old-model", a.Model)
					assert.Len(t, a.Documents, 1)
				case "new":
					assert.Equal(t, "new-model", a.Model)
					assert.Len(t, a.Documents, 2)
				default:
					t.Errorf("unexpected agent name %q", a.Name)
					return
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		c.Replace(updated)
		c.Replace(old)
	}
	c.Replace(updated)

	close(stop)
	wg.Wait()
}

func TestController_CloseClosesSubscribers(t *testing.T) {
	c := NewController(nil)

	ch, _ := c.Subscribe(context.Background())
	c.Close()

	_, open := <-ch
	assert.False(t, open)

	// Mutations after Close are harmless no-ops for subscribers.
	c.Put(makeAgent("a1", KBStateReady, 1))
}
