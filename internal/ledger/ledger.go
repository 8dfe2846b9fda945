// Package ledger mirrors audit entries into SQLite so decisions can be
// queried by corridor, kind or decision. The JSONL audit log stays the
// tamper-evident record; the ledger is an index over it.
package ledger

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/corridorwatch/internal/audit"
)

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	ts               TEXT NOT NULL,
	trace_id         TEXT NOT NULL,
	kind             TEXT NOT NULL,
	subject          TEXT NOT NULL,
	decision         TEXT NOT NULL,
	detail           TEXT,
	reason           TEXT,
	composite_margin REAL,
	config_id        TEXT,
	prev_hash        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS decisions_subject ON decisions(subject);
CREATE INDEX IF NOT EXISTS decisions_kind ON decisions(kind, decision);
`

// Ledger is a SQLite-backed decision index.
type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) the ledger database. Use ":memory:" in tests.
func Open(path string) (*Ledger, error) {
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
	return &Ledger{db: db}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Insert records one audit entry.
func (l *Ledger) Insert(e audit.AuditEntry) error {
	var margin any
	if e.CompositeMargin != nil {
		margin = float64(*e.CompositeMargin)
	}
	_, err := l.db.Exec(
		`INSERT INTO decisions (ts, trace_id, kind, subject, decision, detail, reason, composite_margin, config_id, prev_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp, e.TraceID, e.Kind, e.Subject, e.Decision, e.Detail, e.Reason, margin, e.ConfigID, e.PrevHash,
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// Filter narrows Query. Empty fields match everything.
type Filter struct {
	Subject  string
	Kind     string
	Decision string
	Limit    int
}

// Query returns matching entries, newest first.
func (l *Ledger) Query(f Filter) ([]audit.AuditEntry, error) {
	var where []string
	var args []any
	if f.Subject != "" {
		where = append(where, "subject = ?")
		args = append(args, f.Subject)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.Decision != "" {
		where = append(where, "decision = ?")
		args = append(args, f.Decision)
	}

	q := `SELECT ts, trace_id, kind, subject, decision, detail, reason, composite_margin, config_id, prev_hash FROM decisions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := l.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []audit.AuditEntry
	for rows.Next() {
		var e audit.AuditEntry
		var detail, reason, configID sql.NullString
		var margin sql.NullFloat64
		if err := rows.Scan(&e.Timestamp, &e.TraceID, &e.Kind, &e.Subject, &e.Decision,
			&detail, &reason, &margin, &configID, &e.PrevHash); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		e.Detail = detail.String
		e.Reason = reason.String
		e.ConfigID = configID.String
		if margin.Valid {
			m := float32(margin.Float64)
			e.CompositeMargin = &m
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Counts returns the number of entries per decision for a kind ("" for all).
func (l *Ledger) Counts(kind string) (map[string]int, error) {
	q := `SELECT decision, COUNT(*) FROM decisions`
	var args []any
	if kind != "" {
		q += ` WHERE kind = ?`
		args = append(args, kind)
	}
	q += ` GROUP BY decision`

	rows, err := l.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("count decisions: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var d string
		var n int
		if err := rows.Scan(&d, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[d] = n
	}
	return out, rows.Err()
}
