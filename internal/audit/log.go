package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// GenesisHash is the prev_hash for the first entry in a new audit log.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// ErrCorruptTail is returned by Open when the last line of an existing log
// is not an entry. Appending would chain onto garbage.
var ErrCorruptTail = errors.New("audit: last line of existing log is not an entry")

// Log stamps decision entries and appends them to a JSONL file in which each
// entry's prev_hash is the SHA-256 of the previous line. A Log from Discard
// stamps without writing.
type Log struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	prevHash string
	configID string
	now      func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithClock sets the time source for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// WithConfigID sets the config content id stamped on entries.
func WithConfigID(id string) Option {
	return func(l *Log) { l.configID = id }
}

func newLog(opts []Option) *Log {
	l := &Log{prevHash: GenesisHash, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Discard returns a Log that stamps entries but keeps no file.
func Discard(opts ...Option) *Log {
	return newLog(opts)
}

// Open opens (or creates) the log at path for appending and resumes the
// chain from its last line.
func Open(path string, opts ...Option) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	l := newLog(opts)
	tail, err := lastLine(path)
	if err != nil {
		return nil, err
	}
	if tail != nil {
		var e AuditEntry
		if err := json.Unmarshal(tail, &e); err != nil || e.Kind == "" {
			return nil, fmt.Errorf("%w: %s", ErrCorruptTail, path)
		}
		l.prevHash = HashLine(tail)
	}

	l.file, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: open file: %w", err)
	}
	l.path = path
	return l, nil
}

// lastLine returns the final non-empty line of path, or nil for a missing
// or empty file.
func lastLine(path string) ([]byte, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit: read existing log: %w", err)
	}
	defer f.Close()

	var last []byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			last = append(last[:0], scanner.Bytes()...)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("audit: scan existing log: %w", err)
	}
	return last, nil
}

// SetConfigID changes the config id stamped on later entries. The server
// calls it when a reload swaps the config.
func (l *Log) SetConfigID(id string) {
	l.mu.Lock()
	l.configID = id
	l.mu.Unlock()
}

// Record stamps entry and appends it. An empty Timestamp gets the clock's
// time and an empty ConfigID gets the log's config id. On a file-backed log
// PrevHash chains to the previous line and the file is synced before
// Record returns. The entry is returned as written.
func (l *Log) Record(entry AuditEntry) (AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp == "" {
		entry.Timestamp = l.now().UTC().Format(TimestampFormat)
	}
	if entry.ConfigID == "" {
		entry.ConfigID = l.configID
	}
	if l.file == nil {
		return entry, nil
	}
	entry.PrevHash = l.prevHash

	line, err := json.Marshal(entry)
	if err != nil {
		return entry, fmt.Errorf("audit: marshal entry: %w", err)
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return entry, fmt.Errorf("audit: write entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return entry, fmt.Errorf("audit: sync: %w", err)
	}

	l.prevHash = HashLine(line)
	return entry, nil
}

// Path returns the file the log appends to, or "" for a Discard log.
func (l *Log) Path() string { return l.path }

// Tail returns the hash the next entry will carry as prev_hash.
func (l *Log) Tail() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.prevHash
}

// Close closes the underlying file, if any.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// HashLine returns "sha256:<hex>" of the given bytes.
func HashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}
