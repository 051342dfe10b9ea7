package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AI2HU/gsnweb/internal/db"
	"github.com/AI2HU/gsnweb/internal/models"
)

// SQLite implements the Database interface for SQLite
type SQLite struct {
	db     *sql.DB
	path   string
	config *models.DatabaseConfig
}

// New creates a new SQLite database instance
func New(config *models.DatabaseConfig) (*SQLite, error) {
	if strings.TrimSpace(config.Name) == "" {
		return nil, fmt.Errorf("sqlite database name is empty")
	}
	return &SQLite{
		config: config,
	}, nil
}

// ResolvePath expands ~ and makes a relative database name absolute against the working directory
func ResolvePath(name string) (string, error) {
	if name == ":memory:" {
		return name, nil
	}
	if strings.HasPrefix(name, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, name[1:]), nil
	}
	if !filepath.IsAbs(name) {
		absPath, err := filepath.Abs(name)
		if err != nil {
			return "", fmt.Errorf("failed to resolve absolute path: %w", err)
		}
		return absPath, nil
	}
	return name, nil
}

// Connect establishes connection to SQLite and brings the schema up to date
func (s *SQLite) Connect(ctx context.Context) error {
	if err := s.open(ctx, true); err != nil {
		return err
	}
	if err := db.RunMigrations(ctx, s.db); err != nil {
		s.Disconnect(ctx)
		return err
	}
	return nil
}

// Open connects to an existing database file without creating it or touching its schema.
// It returns an error wrapping fs.ErrNotExist when the file is missing.
func (s *SQLite) Open(ctx context.Context) error {
	return s.open(ctx, false)
}

func (s *SQLite) open(ctx context.Context, create bool) error {
	dbPath, err := ResolvePath(s.config.Name)
	if err != nil {
		return err
	}

	dsn := dbPath
	if dbPath != ":memory:" {
		if create {
			if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
				return fmt.Errorf("failed to create database directory: %w", err)
			}
		} else {
			if _, err := os.Stat(dbPath); err != nil {
				return fmt.Errorf("sqlite database at path '%s': %w", dbPath, err)
			}
			dsn = "file:" + dbPath + "?mode=rw"
		}
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database at path '%s': %w", dbPath, err)
	}

	// every connection to :memory: opens a fresh database
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping SQLite database at path '%s': %w", dbPath, err)
	}

	s.db = conn
	s.path = dbPath
	return nil
}

// Disconnect closes the SQLite connection
func (s *SQLite) Disconnect(ctx context.Context) error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Ping checks the database connection
func (s *SQLite) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("not connected to database")
	}
	return s.db.PingContext(ctx)
}

// Path returns the resolved database file path
func (s *SQLite) Path() string {
	return s.path
}

// DB exposes the underlying connection
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// Session Operations

// SaveSession inserts or replaces a session
func (s *SQLite) SaveSession(ctx context.Context, session *models.Session) error {
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	query := `
		INSERT INTO sessions (id, access_token, refresh_token, token_type, scope, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			scope = excluded.scope,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.AccessToken,
		session.RefreshToken,
		session.TokenType,
		session.Scope,
		nullTime(session.ExpiresAt),
		session.CreatedAt.UTC(),
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID
func (s *SQLite) GetSession(ctx context.Context, id string) (*models.Session, error) {
	query := `
		SELECT id, access_token, refresh_token, token_type, scope, expires_at, created_at, updated_at
		FROM sessions WHERE id = ?`

	var (
		session      models.Session
		refreshToken sql.NullString
		scope        sql.NullString
		expiresAt    sql.NullTime
	)

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.AccessToken,
		&refreshToken,
		&session.TokenType,
		&scope,
		&expiresAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session.RefreshToken = refreshToken.String
	session.Scope = scope.String
	if expiresAt.Valid {
		session.ExpiresAt = expiresAt.Time
	}

	return &session, nil
}

// DeleteSession deletes a session by ID
func (s *SQLite) DeleteSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	return nil
}

// DeleteExpiredSessions deletes sessions that expired before the given time
func (s *SQLite) DeleteExpiredSessions(ctx context.Context, before time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at < ?`,
		before.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

var _ db.Database = (*SQLite)(nil)
