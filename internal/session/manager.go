// Package session owns the authentication lifecycle: login, registration,
// logout, and the invariant that a session exists exactly when a token is
// persisted.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/farmwatch/farmwatch/internal/api"
	"github.com/farmwatch/farmwatch/pkg/models"
)

// State is the manager's position in the session lifecycle.
type State string

const (
	StateLoggedOut  State = "logged_out"
	StateLoggingIn  State = "logging_in"
	StateLoggedIn   State = "logged_in"
	StateLoggingOut State = "logging_out"
)

// ErrBusy is returned when a login is attempted while another is in flight.
// Failing fast keeps two logins from racing the credential store.
var ErrBusy = errors.New("another login is already in progress")

// Gateway is the slice of the API client the manager needs.
type Gateway interface {
	Login(ctx context.Context, username, password string) (*api.LoginResponse, error)
	Register(ctx context.Context, username, email, password string) (string, error)
	CurrentUser(ctx context.Context) (*models.User, error)
}

// CredentialStore is the slice of the credential store the manager needs.
type CredentialStore interface {
	Save(ctx context.Context, sess models.Session) error
	Load(ctx context.Context) (*models.Session, error)
	Clear(ctx context.Context) error
}

// Manager is the sole mutator of session state. It is safe for concurrent use.
type Manager struct {
	gw     Gateway
	store  CredentialStore
	logger *zap.Logger

	// revoke, when set, is called during logout to invalidate the session
	// remotely. Its failure never blocks the local logout.
	revoke func(ctx context.Context) error

	mu      sync.Mutex
	state   State
	current *models.Session
}

// NewManager creates a Manager and restores any persisted session. A present
// token means logged in, optimistically; the first authenticated call that
// comes back Unauthorized flips the state back via ObserveError.
func NewManager(ctx context.Context, gw Gateway, store CredentialStore, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		gw:     gw,
		store:  store,
		logger: logger,
		state:  StateLoggedOut,
	}

	sess, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	if sess != nil {
		m.state = StateLoggedIn
		m.current = sess
		logger.Info("session restored", zap.String("username", sess.Username))
	}
	return m, nil
}

// SetRevoker installs an optional remote-invalidation call used by Logout.
func (m *Manager) SetRevoker(revoke func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoke = revoke
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns the active session, or nil when logged out.
func (m *Manager) Current() *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	sess := *m.current
	return &sess
}

// Login authenticates and persists the resulting session. Only one login may
// be in flight; a concurrent attempt fails fast with ErrBusy. On failure no
// partial state is retained.
func (m *Manager) Login(ctx context.Context, username, password string) (*models.Session, error) {
	m.mu.Lock()
	if m.state == StateLoggingIn {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	m.state = StateLoggingIn
	m.mu.Unlock()

	resp, err := m.gw.Login(ctx, username, password)
	if err != nil {
		m.setLoggedOut()
		return nil, err
	}

	sess := models.Session{
		Token:         resp.AccessToken,
		Username:      username,
		EstablishedAt: time.Now().UTC(),
		ExpiresAt:     tokenExpiry(resp.AccessToken),
	}

	// Best-effort identity enrichment; the session stands without it.
	if user, uerr := m.gw.CurrentUser(ctx); uerr == nil {
		sess.Username = user.Username
		sess.Email = user.Email
	} else {
		m.logger.Debug("could not resolve identity after login", zap.Error(uerr))
	}

	if err := m.store.Save(ctx, sess); err != nil {
		// The gateway already persisted the bare token; roll everything back
		// rather than leave a half-written session.
		_ = m.store.Clear(ctx)
		m.setLoggedOut()
		return nil, fmt.Errorf("persist session: %w", err)
	}

	m.mu.Lock()
	m.state = StateLoggedIn
	m.current = &sess
	m.mu.Unlock()

	m.logger.Info("logged in", zap.String("username", sess.Username))
	return &sess, nil
}

// Register creates an account. It never establishes a session; the caller
// must still log in.
func (m *Manager) Register(ctx context.Context, username, email, password string) (string, error) {
	return m.gw.Register(ctx, username, email, password)
}

// Logout clears the persisted session. The remote revoke, when configured, is
// attempted first but its failure is only logged: local logout always wins.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.state = StateLoggingOut
	revoke := m.revoke
	m.mu.Unlock()

	if revoke != nil {
		if err := revoke(ctx); err != nil {
			m.logger.Warn("remote session revoke failed, continuing local logout", zap.Error(err))
		}
	}

	if err := m.store.Clear(ctx); err != nil {
		m.setLoggedOut()
		return fmt.Errorf("clear credentials: %w", err)
	}

	m.setLoggedOut()
	m.logger.Info("logged out")
	return nil
}

// ObserveError inspects an error from any authenticated call. An Unauthorized
// means the token is stale or revoked; the session is cleared proactively.
// Reports whether a logout was forced.
func (m *Manager) ObserveError(ctx context.Context, err error) bool {
	if !api.IsUnauthorized(err) {
		return false
	}

	m.mu.Lock()
	loggedIn := m.state == StateLoggedIn
	m.mu.Unlock()
	if !loggedIn {
		return false
	}

	m.logger.Info("session rejected by service, forcing logout")
	if cerr := m.store.Clear(ctx); cerr != nil {
		m.logger.Error("could not clear rejected session", zap.Error(cerr))
	}
	m.setLoggedOut()
	return true
}

func (m *Manager) setLoggedOut() {
	m.mu.Lock()
	m.state = StateLoggedOut
	m.current = nil
	m.mu.Unlock()
}

// tokenExpiry peeks at the token's exp claim without verifying the signature.
// The service signs its tokens; this client only surfaces when one lapses.
func tokenExpiry(token string) *time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.Time
	return &t
}
