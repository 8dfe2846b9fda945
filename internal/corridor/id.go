// Package corridor holds the canonical corridor record: identity, ecological
// metrics, FPIC/IDS consent state and rights constraints. Records are
// snapshots; replacing a corridor replaces the whole record.
package corridor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyID is returned for empty or whitespace-only identifiers.
	ErrEmptyID = errors.New("corridor id must be non-empty")
	// ErrNotDID is returned when a DID-style identifier lacks a ':' prefix.
	ErrNotDID = errors.New("corridor id must contain a DID-style prefix (e.g. did:...)")
)

// ID is an opaque, non-empty corridor identifier such as
// "territory:nation-x:river-y". Equality is exact string equality.
type ID struct {
	s string
}

// NewID trims s and rejects empty identifiers.
func NewID(s string) (ID, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ID{}, ErrEmptyID
	}
	return ID{s: trimmed}, nil
}

// NewDID is NewID plus a minimal DID-style guard: at least one ':'.
func NewDID(s string) (ID, error) {
	id, err := NewID(s)
	if err != nil {
		return ID{}, err
	}
	if !strings.Contains(id.s, ":") {
		return ID{}, fmt.Errorf("%w: %q", ErrNotDID, id.s)
	}
	return id, nil
}

// MustID is NewID for literals. Panics on invalid input.
func MustID(s string) ID {
	id, err := NewID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ID) String() string { return id.s }

// IsZero reports whether id was never constructed.
func (id ID) IsZero() bool { return id.s == "" }

// IsDID reports whether id carries a DID-style prefix.
func (id ID) IsDID() bool { return strings.Contains(id.s, ":") }

// MarshalJSON encodes the id as a string.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.s)
}

// UnmarshalJSON decodes and validates a string id.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := NewID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
