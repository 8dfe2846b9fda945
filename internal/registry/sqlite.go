package registry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/corridorwatch/internal/corridor"
)

const schema = `
CREATE TABLE IF NOT EXISTS corridors (
	id          TEXT PRIMARY KEY,
	record_json TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
`

// SQLite persists records as JSON documents and serves reads from an
// in-memory copy hydrated at open. Writes go to the database first.
type SQLite struct {
	db    *sql.DB
	cache *Memory
}

// OpenSQLite opens (or creates) the database at path. Use ":memory:" in tests.
func OpenSQLite(path string, opts ...Option) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &SQLite{db: db, cache: NewMemory(opts...)}
	if err := s.hydrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) hydrate() error {
	rows, err := s.db.Query(`SELECT id, record_json FROM corridors`)
	if err != nil {
		return fmt.Errorf("load corridors: %w", err)
	}
	defer rows.Close()

	var cs []corridor.Corridor
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return fmt.Errorf("scan corridor: %w", err)
		}
		var c corridor.Corridor
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return fmt.Errorf("decode corridor %s: %w", id, err)
		}
		cs = append(cs, c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load corridors: %w", err)
	}
	return s.cache.Replace(cs)
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Upsert writes c to the database and then to the read cache.
func (s *SQLite) Upsert(c corridor.Corridor) error {
	if err := s.cache.Validate(c); err != nil {
		return err
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode corridor: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO corridors (id, record_json, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET record_json = excluded.record_json, updated_at = excluded.updated_at`,
		c.ID.String(), string(raw), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert corridor %s: %w", c.ID, err)
	}
	return s.cache.Upsert(c)
}

// Get returns the record for id.
func (s *SQLite) Get(id corridor.ID) (corridor.Corridor, bool) { return s.cache.Get(id) }

// List returns all records sorted by id.
func (s *SQLite) List() []corridor.Corridor { return s.cache.List() }

// EnsureExists returns ErrNotFound if id is not registered.
func (s *SQLite) EnsureExists(id corridor.ID) error { return s.cache.EnsureExists(id) }

// Validate applies the record checks and the registry options to c.
func (s *SQLite) Validate(c corridor.Corridor) error { return s.cache.Validate(c) }

// Delete removes id from the database and then from the read cache.
func (s *SQLite) Delete(id corridor.ID) error {
	if _, err := s.db.Exec(`DELETE FROM corridors WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete corridor %s: %w", id, err)
	}
	return s.cache.Delete(id)
}
