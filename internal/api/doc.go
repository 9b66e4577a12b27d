// Package api implements the typed HTTP client for the docent backend.
//
// # Overview
//
// The package is organized per resource, one operation file each:
//
//   - auth.go: register, login, me, token refresh
//   - models.go: model catalog (cached)
//   - documents.go: list, upload (multipart), delete
//   - agents.go: CRUD plus rebuild/reset knowledge-base actions
//   - chat.go: send a message to an agent
//
// transport.go carries the shared request machinery: every authenticated
// request is stamped with the current access token, and a 401 response
// triggers the token source's single-flight refresh followed by exactly one
// retry. A request that fails again after its retry surfaces the failure
// unchanged — there is no third attempt.
//
// # Wire translation
//
// The backend speaks snake_case JSON; the rest of the client speaks the
// domain types in internal/kb. types.go is the sole translation boundary.
//
// # Errors
//
//   - *ValidationError: a client-side precondition failed; no request was made.
//   - *RequestError: the backend returned a non-success status unrelated to
//     authorization, with the backend-provided message when present.
//   - session.ErrSessionExpired: refresh was needed but impossible; the
//     credential store has been cleared.
package api
