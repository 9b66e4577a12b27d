// ABOUTME: Session manager guaranteeing at most one in-flight token refresh
// ABOUTME: Concurrent callers share a single refresh; failure clears the store once

package session

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// ErrSessionExpired is returned when a refresh was needed but impossible, or
// the backend rejected the refresh. It is the only error with a global side
// effect: the credential store is cleared and the user must log in again.
var ErrSessionExpired = errors.New("session expired")

// refreshMargin is how close to the access token's exp claim a proactive
// refresh kicks in.
const refreshMargin = 30 * time.Second

// RefreshFunc exchanges a refresh token for a new credential. The api package
// provides the implementation; injecting it keeps this package free of
// transport concerns and directly testable.
type RefreshFunc func(ctx context.Context, refreshToken string) (Credential, error)

// Manager owns the credential store and coordinates token refresh. Any number
// of concurrent requests may observe an expired credential; the manager
// guarantees exactly one refresh call reaches the backend and every waiter
// shares its outcome.
type Manager struct {
	store   *Store
	refresh RefreshFunc
	logger  *slog.Logger

	mu    sync.Mutex
	gen   uint64 // credential generation, bumped on every Set/Clear
	group singleflight.Group
}

// NewManager creates a session manager. Pass nil logger for default.
func NewManager(store *Store, refresh RefreshFunc, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:   store,
		refresh: refresh,
		logger:  logger.With("component", "session"),
	}
}

// SetCredential records a freshly issued credential (login, register) and
// starts a new refresh cycle.
func (m *Manager) SetCredential(cred Credential) error {
	m.mu.Lock()
	m.gen++
	m.mu.Unlock()
	return m.store.Set(cred)
}

// Clear drops the session, e.g. on explicit logout.
func (m *Manager) Clear() error {
	m.mu.Lock()
	m.gen++
	m.mu.Unlock()
	return m.store.Clear()
}

// Credential returns a copy of the current credential, or nil.
func (m *Manager) Credential() *Credential {
	return m.store.Current()
}

// Token returns the access token to stamp on an outgoing request. An empty
// token with nil error means the session is unauthenticated and the request
// should go out bare (the backend's 401 drives the rest). When the access
// token is missing or about to expire but a refresh token is present, the
// token is refreshed first.
func (m *Manager) Token(ctx context.Context) (string, error) {
	cred := m.store.Current()
	if cred == nil {
		return "", nil
	}

	if cred.AccessToken == "" || expiresWithin(cred.AccessToken, refreshMargin) {
		return m.Refresh(ctx, cred.AccessToken)
	}

	return cred.AccessToken, nil
}

// Refresh obtains a fresh access token, de-duplicating concurrent callers.
// staleAccess is the token the caller just failed with: if the store already
// holds a different one, another caller won the race and no request is made.
// On any refresh failure the store is cleared exactly once and every waiter
// gets ErrSessionExpired.
func (m *Manager) Refresh(ctx context.Context, staleAccess string) (string, error) {
	m.mu.Lock()
	cred := m.store.Current()
	if cred == nil {
		m.mu.Unlock()
		return "", ErrSessionExpired
	}
	if cred.AccessToken != "" && cred.AccessToken != staleAccess {
		// Already refreshed by a concurrent flow.
		m.mu.Unlock()
		return cred.AccessToken, nil
	}
	gen := m.gen
	m.mu.Unlock()

	// The generation number keys the single-flight slot: callers racing on
	// the same stale credential share one refresh, while a later login
	// starts a clean cycle.
	key := strconv.FormatUint(gen, 10)
	v, err, shared := m.group.Do(key, func() (interface{}, error) {
		return m.doRefresh(ctx, gen)
	})
	if err != nil {
		return "", err
	}
	if shared {
		m.logger.Debug("refresh result shared with concurrent caller")
	}
	return v.(string), nil
}

// doRefresh performs the actual refresh request. Runs at most once per
// generation.
func (m *Manager) doRefresh(ctx context.Context, gen uint64) (string, error) {
	// A refresh or login may have completed between the caller's staleness
	// check and entering the single-flight slot; don't refresh twice.
	m.mu.Lock()
	moved := m.gen != gen
	m.mu.Unlock()
	if moved {
		cred := m.store.Current()
		if cred == nil || cred.AccessToken == "" {
			return "", ErrSessionExpired
		}
		return cred.AccessToken, nil
	}

	cred := m.store.Current()
	if cred == nil || cred.RefreshToken == "" {
		m.expire(gen, errors.New("no refresh token available"))
		return "", ErrSessionExpired
	}

	newCred, err := m.refresh(ctx, cred.RefreshToken)
	if err != nil {
		m.expire(gen, err)
		return "", ErrSessionExpired
	}

	// The backend may rotate the refresh token; keep the old one otherwise.
	if newCred.RefreshToken == "" {
		newCred.RefreshToken = cred.RefreshToken
	}

	if err := m.SetCredential(newCred); err != nil {
		m.logger.Warn("persisting refreshed credential failed", "error", err)
	}

	m.logger.Debug("access token refreshed")
	return newCred.AccessToken, nil
}

// expire clears the store in response to a failed refresh. The generation
// check makes the teardown happen exactly once even if multiple refresh
// cycles fail back to back.
func (m *Manager) expire(gen uint64, cause error) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.gen++
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		m.logger.Warn("clearing credentials failed", "error", err)
	}
	m.logger.Info("session expired, credentials cleared", "cause", cause)
}

// expiresWithin reports whether the access token carries a JWT exp claim
// falling within margin from now. Opaque (non-JWT) tokens never report
// expiry here; the 401-driven path handles them.
func expiresWithin(accessToken string, margin time.Duration) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Now().Add(margin).After(exp.Time)
}
