package source

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	skyerrors "github.com/skysift/skysift/internal/errors"
)

// LocalSearch is the SQLite-backed content-addressed post store. Reads are
// concurrent via WAL mode; writes are serialized across processes with a
// file lock next to the database.
type LocalSearch struct {
	db   *sql.DB
	lock *flock.Flock
	path string
}

const localSchema = `
CREATE TABLE IF NOT EXISTS posts (
	canonical_id TEXT PRIMARY KEY,
	author       TEXT NOT NULL,
	text         TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	likes        INTEGER NOT NULL DEFAULT 0,
	reposts      INTEGER NOT NULL DEFAULT 0,
	replies      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_posts_author ON posts(author);
CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at DESC);
`

// OpenLocal opens (creating if necessary) the local post store at path.
// An empty path opens an in-memory store for testing.
func OpenLocal(path string) (*LocalSearch, error) {
	dsn := ":memory:"
	var lock *flock.Flock
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, skyerrors.Wrapf(err, skyerrors.ErrCodeSourceFailed,
				"creating local store directory for %s", path)
		}
		dsn = path
		lock = flock.New(path + ".lock")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, skyerrors.Wrapf(err, skyerrors.ErrCodeSourceFailed,
			"opening local store %s", path)
	}

	// Single writer connection prevents lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, skyerrors.Wrapf(err, skyerrors.ErrCodeSourceFailed,
				"configuring local store: %s", pragma)
		}
	}

	if _, err := db.Exec(localSchema); err != nil {
		_ = db.Close()
		return nil, skyerrors.Wrap(err, skyerrors.ErrCodeSourceFailed,
			"creating local store schema")
	}

	return &LocalSearch{db: db, lock: lock, path: path}, nil
}

// Close closes the store.
func (l *LocalSearch) Close() error {
	return l.db.Close()
}

// Origin implements Searcher.
func (l *LocalSearch) Origin() Origin {
	return OriginLocal
}

// Search enumerates stored posts whose text or author contains the term,
// newest first. An empty term matches everything up to the limit.
func (l *LocalSearch) Search(ctx context.Context, q Query) (Result, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT canonical_id, author, text, created_at, likes, reposts, replies
		FROM posts WHERE 1=1`
	args := []any{}

	if q.Term != "" {
		query += ` AND instr(lower(text), lower(?)) > 0`
		args = append(args, q.Term)
	}
	if q.Author != "" {
		query += ` AND author = ?`
		args = append(args, q.Author)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Result{}, skyerrors.Wrap(err, skyerrors.ErrCodeSourceFailed,
			"querying local store")
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var (
			c         Candidate
			createdAt int64
		)
		if err := rows.Scan(&c.CanonicalID, &c.Author, &c.Text, &createdAt,
			&c.Likes, &c.Reposts, &c.Replies); err != nil {
			return Result{}, skyerrors.Wrap(err, skyerrors.ErrCodeSourceFailed,
				"scanning local store row")
		}
		c.CreatedAt = time.UnixMilli(createdAt).UTC()
		c.Origin = OriginLocal
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return Result{}, skyerrors.Wrap(err, skyerrors.ErrCodeSourceFailed,
			"iterating local store rows")
	}

	return Result{Candidates: out}, nil
}

// Put inserts or replaces a post. Cross-process writers are serialized
// with the store's file lock.
func (l *LocalSearch) Put(ctx context.Context, c Candidate) error {
	if c.CanonicalID == "" {
		return skyerrors.New(skyerrors.ErrCodeInvalidInput, "candidate has no canonical id")
	}

	if l.lock != nil {
		if err := l.lock.Lock(); err != nil {
			return skyerrors.Wrap(err, skyerrors.ErrCodeSourceFailed,
				"acquiring local store write lock")
		}
		defer func() { _ = l.lock.Unlock() }()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO posts (canonical_id, author, text, created_at, likes, reposts, replies)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(canonical_id) DO UPDATE SET
			author = excluded.author,
			text = excluded.text,
			created_at = excluded.created_at,
			likes = excluded.likes,
			reposts = excluded.reposts,
			replies = excluded.replies`,
		c.CanonicalID, c.Author, c.Text, c.CreatedAt.UnixMilli(),
		c.Likes, c.Reposts, c.Replies)
	if err != nil {
		return skyerrors.Wrapf(err, skyerrors.ErrCodeSourceFailed,
			"storing post %s", c.CanonicalID)
	}
	return nil
}

// Count returns the number of stored posts.
func (l *LocalSearch) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting posts: %w", err)
	}
	return n, nil
}
