package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/farmwatch/farmwatch/internal/api"
	"github.com/farmwatch/farmwatch/pkg/models"
)

// fakeGateway scripts the API client. release, when set, blocks Login until
// closed so tests can hold a login in flight.
type fakeGateway struct {
	mu        sync.Mutex
	loginErr  error
	token     string
	user      *models.User
	userErr   error
	release   chan struct{}
	loginCall int
}

func (g *fakeGateway) Login(_ context.Context, _, _ string) (*api.LoginResponse, error) {
	g.mu.Lock()
	g.loginCall++
	release := g.release
	g.mu.Unlock()
	if release != nil {
		<-release
	}
	if g.loginErr != nil {
		return nil, g.loginErr
	}
	return &api.LoginResponse{AccessToken: g.token}, nil
}

func (g *fakeGateway) Register(_ context.Context, _, _, _ string) (string, error) {
	return "User registered successfully", nil
}

func (g *fakeGateway) CurrentUser(_ context.Context) (*models.User, error) {
	if g.userErr != nil {
		return nil, g.userErr
	}
	if g.user == nil {
		return nil, errors.New("identity unavailable")
	}
	return g.user, nil
}

// fakeStore is an in-memory CredentialStore counting writes.
type fakeStore struct {
	mu     sync.Mutex
	sess   *models.Session
	saves  int
	clears int
}

func (s *fakeStore) Save(_ context.Context, sess models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = &sess
	s.saves++
	return nil
}

func (s *fakeStore) Load(_ context.Context) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return nil, nil
	}
	sess := *s.sess
	return &sess, nil
}

func (s *fakeStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = nil
	s.clears++
	return nil
}

func newTestManager(t *testing.T, gw *fakeGateway, store *fakeStore) *Manager {
	t.Helper()
	m, err := NewManager(context.Background(), gw, store, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestLogin_success(t *testing.T) {
	gw := &fakeGateway{token: "tok-1", user: &models.User{Username: "ada", Email: "ada@farm.example"}}
	store := &fakeStore{}
	m := newTestManager(t, gw, store)

	sess, err := m.Login(context.Background(), "ada", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.Token != "tok-1" {
		t.Errorf("Token = %q", sess.Token)
	}
	if sess.Email != "ada@farm.example" {
		t.Errorf("Email = %q, identity not enriched", sess.Email)
	}
	if m.State() != StateLoggedIn {
		t.Errorf("State = %q, want logged_in", m.State())
	}
	if store.sess == nil {
		t.Fatal("session not persisted")
	}
}

func TestLogin_failure_leaves_no_state(t *testing.T) {
	gw := &fakeGateway{loginErr: errors.New("invalid credentials")}
	store := &fakeStore{}
	m := newTestManager(t, gw, store)

	if _, err := m.Login(context.Background(), "ada", "bad"); err == nil {
		t.Fatal("expected login error")
	}
	if m.State() != StateLoggedOut {
		t.Errorf("State = %q, want logged_out", m.State())
	}
	if store.saves != 0 {
		t.Errorf("failed login wrote %d sessions", store.saves)
	}
	if m.Current() != nil {
		t.Error("Current() not nil after failed login")
	}
}

func TestLogin_identity_enrichment_best_effort(t *testing.T) {
	gw := &fakeGateway{token: "tok-1", userErr: errors.New("unreachable")}
	store := &fakeStore{}
	m := newTestManager(t, gw, store)

	sess, err := m.Login(context.Background(), "ada", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	// Falls back to the username the caller supplied.
	if sess.Username != "ada" {
		t.Errorf("Username = %q, want ada", sess.Username)
	}
}

func TestConcurrent_login_busy(t *testing.T) {
	release := make(chan struct{})
	gw := &fakeGateway{token: "tok-1", release: release}
	store := &fakeStore{}
	m := newTestManager(t, gw, store)

	firstDone := make(chan error, 1)
	go func() {
		_, err := m.Login(context.Background(), "ada", "pw")
		firstDone <- err
	}()

	// Wait until the first login is actually in flight.
	deadline := time.After(2 * time.Second)
	for m.State() != StateLoggingIn {
		select {
		case <-deadline:
			t.Fatal("first login never reached logging_in")
		case <-time.After(time.Millisecond):
		}
	}

	_, err := m.Login(context.Background(), "brin", "pw")
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("second login error = %v, want ErrBusy", err)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first login: %v", err)
	}

	if store.saves != 1 {
		t.Errorf("CredentialStore writes = %d, want exactly 1", store.saves)
	}
	if got := m.Current().Username; got != "ada" {
		t.Errorf("session belongs to %q, want ada", got)
	}
}

func TestLogout_clears_even_when_revoke_fails(t *testing.T) {
	gw := &fakeGateway{token: "tok-1", user: &models.User{Username: "ada"}}
	store := &fakeStore{}
	m := newTestManager(t, gw, store)

	if _, err := m.Login(context.Background(), "ada", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	m.SetRevoker(func(context.Context) error {
		return errors.New("revoke endpoint timed out")
	})

	if err := m.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if m.State() != StateLoggedOut {
		t.Errorf("State = %q, want logged_out", m.State())
	}
	sess, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sess != nil {
		t.Errorf("credentials survived logout: %+v", sess)
	}
}

func TestRestore_on_startup(t *testing.T) {
	store := &fakeStore{sess: &models.Session{Token: "tok-old", Username: "ada", EstablishedAt: time.Now().UTC()}}
	m := newTestManager(t, &fakeGateway{}, store)

	if m.State() != StateLoggedIn {
		t.Errorf("State = %q, want logged_in (optimistic restore)", m.State())
	}
	if got := m.Current(); got == nil || got.Token != "tok-old" {
		t.Errorf("Current = %+v, want restored session", got)
	}
}

func TestRestore_empty_store(t *testing.T) {
	m := newTestManager(t, &fakeGateway{}, &fakeStore{})
	if m.State() != StateLoggedOut {
		t.Errorf("State = %q, want logged_out", m.State())
	}
}

func TestObserveError_unauthorized_forces_logout(t *testing.T) {
	store := &fakeStore{sess: &models.Session{Token: "tok-stale", EstablishedAt: time.Now().UTC()}}
	m := newTestManager(t, &fakeGateway{}, store)

	unauthorized := &api.APIError{Kind: api.KindUnauthorized, Message: "expired", StatusCode: 401}
	if !m.ObserveError(context.Background(), unauthorized) {
		t.Fatal("ObserveError did not force logout on 401")
	}
	if m.State() != StateLoggedOut {
		t.Errorf("State = %q, want logged_out", m.State())
	}
	if store.sess != nil {
		t.Error("stale session not cleared")
	}
}

func TestObserveError_other_errors_ignored(t *testing.T) {
	store := &fakeStore{sess: &models.Session{Token: "tok", EstablishedAt: time.Now().UTC()}}
	m := newTestManager(t, &fakeGateway{}, store)

	if m.ObserveError(context.Background(), errors.New("network down")) {
		t.Error("plain error forced a logout")
	}
	if m.State() != StateLoggedIn {
		t.Errorf("State = %q, want logged_in", m.State())
	}
}

func TestRegister_does_not_log_in(t *testing.T) {
	m := newTestManager(t, &fakeGateway{}, &fakeStore{})

	msg, err := m.Register(context.Background(), "ada", "ada@farm.example", "pw")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if msg == "" {
		t.Error("empty acknowledgement")
	}
	if m.State() != StateLoggedOut {
		t.Errorf("State = %q after register, want logged_out", m.State())
	}
}
