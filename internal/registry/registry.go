// Package registry stores corridor records keyed by id. Records are replaced
// wholesale; there are no partial updates.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ppiankov/corridorwatch/internal/corridor"
)

// ErrNotFound is returned when a corridor id is not registered.
var ErrNotFound = errors.New("corridor not found")

// Registry is the read/write surface the server and CLI use.
type Registry interface {
	Upsert(c corridor.Corridor) error
	Get(id corridor.ID) (corridor.Corridor, bool)
	List() []corridor.Corridor
	EnsureExists(id corridor.ID) error
	// Validate reports whether Upsert would accept c, without storing it.
	Validate(c corridor.Corridor) error
	// Delete removes id. Deleting an unknown id is not an error.
	Delete(id corridor.ID) error
}

// Option configures a registry.
type Option func(*options)

type options struct {
	requireDID bool
}

// RequireDID rejects records whose id lacks a DID-style prefix.
func RequireDID(on bool) Option {
	return func(o *options) { o.requireDID = on }
}

// Memory is an in-process registry. One writer or many readers at a time.
type Memory struct {
	mu        sync.RWMutex
	corridors map[corridor.ID]corridor.Corridor
	opts      options
}

// NewMemory creates an empty registry.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{corridors: make(map[corridor.ID]corridor.Corridor)}
	for _, opt := range opts {
		opt(&m.opts)
	}
	return m
}

// Validate applies the record checks and the registry options to c.
func (m *Memory) Validate(c corridor.Corridor) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if m.opts.requireDID && !c.ID.IsDID() {
		return fmt.Errorf("%w: %w: %q", corridor.ErrInvalidCorridor, corridor.ErrNotDID, c.ID)
	}
	return nil
}

// Upsert validates c and replaces any record with the same id.
func (m *Memory) Upsert(c corridor.Corridor) error {
	if err := m.Validate(c); err != nil {
		return err
	}
	m.mu.Lock()
	m.corridors[c.ID] = c
	m.mu.Unlock()
	return nil
}

// Get returns the record for id.
func (m *Memory) Get(id corridor.ID) (corridor.Corridor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.corridors[id]
	return c, ok
}

// List returns all records sorted by id.
func (m *Memory) List() []corridor.Corridor {
	m.mu.RLock()
	out := make([]corridor.Corridor, 0, len(m.corridors))
	for _, c := range m.corridors {
		out = append(out, c)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// EnsureExists returns ErrNotFound if id is not registered.
func (m *Memory) EnsureExists(id corridor.ID) error {
	if _, ok := m.Get(id); !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Delete removes id.
func (m *Memory) Delete(id corridor.ID) error {
	m.mu.Lock()
	delete(m.corridors, id)
	m.mu.Unlock()
	return nil
}

// Replace swaps the whole record set, or changes nothing if any record is
// invalid. SQLite uses it to hydrate its read cache.
func (m *Memory) Replace(cs []corridor.Corridor) error {
	next := make(map[corridor.ID]corridor.Corridor, len(cs))
	for _, c := range cs {
		if err := m.Validate(c); err != nil {
			return err
		}
		next[c.ID] = c
	}
	m.mu.Lock()
	m.corridors = next
	m.mu.Unlock()
	return nil
}

// Len returns the number of records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.corridors)
}
