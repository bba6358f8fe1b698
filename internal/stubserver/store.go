package stubserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/mirage-client/internal/chat"
)

// errNotFound is returned for missing users or files.
var errNotFound = errors.New("not found")

// store persists users and uploaded files in SQLite. Channel membership and
// poll queues are volatile and live on the server struct instead.
type store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS files (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	original_name TEXT NOT NULL,
	size          INTEGER NOT NULL,
	uploader      TEXT NOT NULL,
	channel       TEXT NOT NULL,
	content       BLOB NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// newStore opens the database at dbPath (":memory:" for tests) and applies
// the schema.
func newStore(dbPath string) (*store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &store{db: db}, nil
}

func (s *store) Close() error {
	return s.db.Close()
}

func (s *store) createUser(ctx context.Context, username, passwordHash string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES (?, ?)`,
		username, passwordHash)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *store) passwordHash(ctx context.Context, username string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE username = ?`, username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query user: %w", err)
	}
	return hash, nil
}

func (s *store) userExists(ctx context.Context, username string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM users WHERE username = ?`, username).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query user: %w", err)
	}
	return true, nil
}

func (s *store) insertFile(ctx context.Context, name string, uploader, channel string, content []byte) (chat.FileRecord, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO files (original_name, size, uploader, channel, content) VALUES (?, ?, ?, ?, ?)`,
		name, len(content), uploader, channel, content)
	if err != nil {
		return chat.FileRecord{}, fmt.Errorf("insert file: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return chat.FileRecord{}, fmt.Errorf("file id: %w", err)
	}
	return chat.FileRecord{
		ID:           id,
		OriginalName: name,
		Size:         int64(len(content)),
		Uploader:     uploader,
		Channel:      channel,
	}, nil
}

func (s *store) fileByID(ctx context.Context, id int64) (chat.FileRecord, []byte, error) {
	var record chat.FileRecord
	var content []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, original_name, size, uploader, channel, content FROM files WHERE id = ?`, id).
		Scan(&record.ID, &record.OriginalName, &record.Size, &record.Uploader, &record.Channel, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.FileRecord{}, nil, errNotFound
	}
	if err != nil {
		return chat.FileRecord{}, nil, fmt.Errorf("query file: %w", err)
	}
	return record, content, nil
}

func (s *store) filesByChannel(ctx context.Context, channel string) ([]chat.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, original_name, size, uploader, channel FROM files WHERE channel = ? ORDER BY id`, channel)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []chat.FileRecord
	for rows.Next() {
		var record chat.FileRecord
		if err := rows.Scan(&record.ID, &record.OriginalName, &record.Size, &record.Uploader, &record.Channel); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}
