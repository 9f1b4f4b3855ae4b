// Package history keeps the per-contact message history observed by
// one engine instance. The store lives entirely in memory: it is
// created empty at construction, appended to on every observed
// message, and lost on restart. It is safe for a single caller; use
// from multiple goroutines requires external mutual exclusion.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Direction tells whether a message was observed incoming or sent by
// this engine instance.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Entry is one observed message in a conversation.
type Entry struct {
	ID         string    `db:"id"`
	Contact    string    `db:"contact"`
	Direction  Direction `db:"direction"`
	Subject    string    `db:"subject"`
	Body       string    `db:"body"`
	UID        uint32    `db:"uid"`
	RecordedAt time.Time `db:"recorded_at"`
}

// schema is the single in-memory table. No versioning: the database
// never outlives the process.
const schema = `
CREATE TABLE IF NOT EXISTS history (
	id          TEXT PRIMARY KEY,
	contact     TEXT NOT NULL,
	direction   TEXT NOT NULL,
	subject     TEXT NOT NULL DEFAULT '',
	body        TEXT NOT NULL DEFAULT '',
	uid         INTEGER NOT NULL DEFAULT 0,
	recorded_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_contact ON history(contact);
`

// Store holds conversation history in an in-memory SQLite database.
type Store struct {
	db *sqlx.DB
}

// NewStore creates an empty in-memory history store.
func NewStore() (*Store, error) {
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory history db: %w", err)
	}

	// An in-memory SQLite database exists per connection; the pool
	// must never open a second one.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the in-memory database, discarding all history.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append records one observed message.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history (id, contact, direction, subject, body, uid, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Contact, string(e.Direction), e.Subject, e.Body,
		e.UID, e.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("appending history entry: %w", err)
	}

	return nil
}

// ByContact returns the recorded history with one contact, oldest
// first.
func (s *Store) ByContact(ctx context.Context, contact string) ([]Entry, error) {
	var entries []Entry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT * FROM history
		WHERE contact = ?
		ORDER BY recorded_at, rowid`, contact)
	if err != nil {
		return nil, fmt.Errorf("querying history for %q: %w", contact, err)
	}
	return entries, nil
}

// Recent returns the most recently recorded entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit < 1 {
		limit = 50
	}

	var entries []Entry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT * FROM history
		ORDER BY recorded_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent history: %w", err)
	}
	return entries, nil
}

// Count returns the total number of recorded entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM history"); err != nil {
		return 0, fmt.Errorf("counting history entries: %w", err)
	}
	return n, nil
}
