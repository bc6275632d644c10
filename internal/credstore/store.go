// Package credstore persists the authentication session across process
// restarts. One SQLite row holds the token and cached identity; save, load,
// and clear are mutually exclusive so a load never observes a torn session.
package credstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/farmwatch/farmwatch/internal/api"
	"github.com/farmwatch/farmwatch/pkg/models"
)

// Compile-time interface guard.
var _ api.TokenStore = (*Store)(nil)

// Store is the durable credential store. The zero value is not usable; call Open.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) the credential database at path and ensures the
// schema exists. WAL mode and a single write connection follow SQLite's
// sweet spot for small local state.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}

	// modernc.org/sqlite takes pragmas as SQL statements, not DSN params.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			id             INTEGER  PRIMARY KEY CHECK (id = 1),
			token          TEXT     NOT NULL,
			username       TEXT     NOT NULL DEFAULT '',
			email          TEXT     NOT NULL DEFAULT '',
			established_at DATETIME NOT NULL,
			expires_at     DATETIME
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create credentials table: %w", err)
	}

	return &Store{db: db}, nil
}

// Save replaces the persisted session wholesale. The delete and insert run in
// one transaction, so the previous session is never partially visible.
func (s *Store) Save(ctx context.Context, sess models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM credentials"); err != nil {
			return fmt.Errorf("drop previous session: %w", err)
		}
		var expires any
		if sess.ExpiresAt != nil {
			expires = sess.ExpiresAt.UTC()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO credentials (id, token, username, email, established_at, expires_at)
			VALUES (1, ?, ?, ?, ?, ?)`,
			sess.Token, sess.Username, sess.Email, sess.EstablishedAt.UTC(), expires,
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
}

// Load returns the persisted session, or nil when logged out.
func (s *Store) Load(ctx context.Context) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		sess    models.Session
		expires sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT token, username, email, established_at, expires_at
		FROM credentials WHERE id = 1`,
	).Scan(&sess.Token, &sess.Username, &sess.Email, &sess.EstablishedAt, &expires)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if expires.Valid {
		t := expires.Time
		sess.ExpiresAt = &t
	}
	return &sess, nil
}

// Clear removes the session and all cached identity fields as one unit.
// Clearing an already-empty store is not an error.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM credentials"); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Token implements api.TokenStore. It returns "" when no session is persisted.
func (s *Store) Token(ctx context.Context) (string, error) {
	sess, err := s.Load(ctx)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", nil
	}
	return sess.Token, nil
}

// SaveToken implements api.TokenStore. It records a bare token with no cached
// identity; the session owner enriches it afterwards.
func (s *Store) SaveToken(ctx context.Context, token string) error {
	return s.Save(ctx, models.Session{Token: token, EstablishedAt: time.Now().UTC()})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// tx executes fn in a transaction, committing on nil and rolling back otherwise.
func (s *Store) tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}

	return tx.Commit()
}
