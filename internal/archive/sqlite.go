package archive

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gantry-oss/gantry/internal/event"
)

// SQLiteStore implements the archive using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the archive database at path, creating the file
// and its directory if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate creates the necessary tables
func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		session_id TEXT,
		source TEXT,
		timestamp DATETIME NOT NULL,
		data JSON NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
	CREATE INDEX IF NOT EXISTS idx_events_session_id ON events(session_id);
	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveEvent stores one event. Re-delivery of the same event id
// overwrites the earlier row.
func (s *SQLiteStore) SaveEvent(ev event.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO events (id, type, session_id, source, timestamp, data)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.ID, string(ev.Type), ev.SessionID, ev.Source, ev.Timestamp, data)

	return err
}

// Events returns archived events newest-first.
func (s *SQLiteStore) Events(f Filter) ([]event.Event, error) {
	query := "SELECT data FROM events"
	var conds []string
	var args []interface{}

	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp DESC, rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]event.Event, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		var ev event.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
