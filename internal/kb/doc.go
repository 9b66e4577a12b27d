// Package kb is the authoritative in-memory model of agents and their
// knowledge-base state.
//
// # Overview
//
// Controller holds exactly one canonical copy of each agent and of the
// uploaded document list. Every view (builder, agents list, chat) reads
// from it and none writes to it directly: mutations happen only through the
// controller's operations, always as whole-entity replacement, so readers
// observe either the fully-old or fully-new agent and never a mix.
//
// # Knowledge-base state machine
//
//	Unbuilt --create--> Ready
//	Ready/Unbuilt --update--> Ready/Unbuilt (Unbuilt when the doc set empties)
//	Ready --rebuild--> Rebuilding --> Ready | Error
//	Ready/Error --reset--> Resetting --> Unbuilt
//	any --delete--> removed (evicts the chat view when it targeted the agent)
//
// Rebuilding and Resetting are transient; the Begin/Complete pairs ensure
// every request that enters one terminates in Ready, Unbuilt, or Error.
// An agent with zero linked documents is never Ready.
//
// # Change notification
//
// Subscribers receive lightweight events (what changed, not the data) on
// buffered channels and re-read the snapshot they care about, so all views
// converge on the same post-mutation state. Slow subscribers drop events
// rather than block a mutation.
package kb
