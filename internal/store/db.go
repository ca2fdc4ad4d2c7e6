package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"attendboard/internal/auth"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &DB{Client: db}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

// Dialect selects placeholder syntax for SQLSessions.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

const sessionsSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	user_json  TEXT NOT NULL,
	expires_at BIGINT NOT NULL,
	revoked    BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
`

// SQLSessions persists sessions in a relational table. Logout revokes the
// row instead of deleting it.
type SQLSessions struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// NewSQLSessions creates the sessions table if needed.
func NewSQLSessions(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLSessions, error) {
	s := &SQLSessions{db: db, dialect: dialect, now: time.Now}
	for _, stmt := range strings.Split(sessionsSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("migrate sessions: %w", err)
		}
	}
	return s, nil
}

// rebind rewrites $N placeholders for drivers that only understand ?.
func (s *SQLSessions) rebind(query string) string {
	if s.dialect != SQLite {
		return query
	}
	for i := 9; i >= 1; i-- {
		query = strings.ReplaceAll(query, "$"+strconv.Itoa(i), "?")
	}
	return query
}

func (s *SQLSessions) Save(ctx context.Context, sess auth.Session) error {
	b, err := json.Marshal(sess.User)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO sessions (token, user_id, user_json, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO UPDATE SET
			user_json = EXCLUDED.user_json,
			expires_at = EXCLUDED.expires_at,
			revoked = FALSE
	`), sess.Token, sess.User.ID, string(b), sess.ExpiresAt.Unix())
	return err
}

func (s *SQLSessions) Load(ctx context.Context, token string) (auth.Session, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT user_json, expires_at FROM sessions
		WHERE token = $1 AND revoked = FALSE AND expires_at > $2
	`), token, s.now().Unix())
	var (
		userJSON string
		exp      int64
	)
	if err := row.Scan(&userJSON, &exp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.Session{}, auth.ErrSessionNotFound
		}
		return auth.Session{}, err
	}
	sess := auth.Session{Token: token, ExpiresAt: time.Unix(exp, 0).UTC()}
	if err := json.Unmarshal([]byte(userJSON), &sess.User); err != nil {
		return auth.Session{}, fmt.Errorf("decode session user: %w", err)
	}
	return sess, nil
}

// Delete revokes the session.
func (s *SQLSessions) Delete(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE sessions SET revoked = TRUE WHERE token = $1`), token)
	return err
}

// Purge removes expired and revoked sessions.
func (s *SQLSessions) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM sessions WHERE revoked = TRUE OR expires_at <= $1`), s.now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLSessions) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
