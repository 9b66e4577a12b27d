// Package session keeps the backend credential valid for the lifetime of the
// client process.
//
// # Overview
//
// Store owns the access/refresh token pair and persists it to disk so a
// restart resumes the session. Manager sits above the store and coordinates
// token refresh: no matter how many concurrent requests discover an expired
// access token, exactly one refresh request reaches the backend and every
// waiter shares its outcome (single-flight).
//
// # Refresh protocol
//
//  1. A request fails with an authorization error and calls
//     Manager.Refresh with the token it used.
//  2. If the store already holds a different access token, another flow
//     won the race and the new token is returned immediately.
//  3. Otherwise the caller joins the single-flight slot for the current
//     credential generation. The slot's one refresh call either yields a
//     new credential (stored, generation bumped) or fails.
//  4. On failure the store is cleared exactly once and every waiter
//     receives ErrSessionExpired. A subsequent login starts a fresh cycle.
//
// A request retried once after a refresh must not retry again; that policy
// lives in the api transport, not here.
package session
