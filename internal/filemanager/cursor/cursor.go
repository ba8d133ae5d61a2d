// Package cursor remembers the last known cursor position per file for the
// lifetime of the process. Positions are never persisted to disk.
package cursor

import (
	"os"
	"path/filepath"
	"sync"
)

// Position is a zero-based (line, column) pair.
type Position struct {
	Line   int
	Column int
}

// Stats summarizes stored positions.
type Stats struct {
	Total     int
	MaxLine   int
	MaxColumn int
}

// Memory stores the last known cursor position for each file, keyed by
// resolved path. Last write wins; negative coordinates are clamped to zero.
// All methods are safe for concurrent use.
type Memory struct {
	mu        sync.Mutex
	positions map[string]Position
}

// NewMemory creates an empty cursor Memory.
func NewMemory() *Memory {
	return &Memory{positions: make(map[string]Position)}
}

// Set stores the position for path, overwriting any previous value.
func (m *Memory) Set(path string, line, column int) {
	abs := normalize(path)
	pos := Position{Line: max(0, line), Column: max(0, column)}

	m.mu.Lock()
	m.positions[abs] = pos
	m.mu.Unlock()
}

// Get returns the remembered position for path.
func (m *Memory) Get(path string) (Position, bool) {
	abs := normalize(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[abs]
	return pos, ok
}

// Has reports whether a position is remembered for path.
func (m *Memory) Has(path string) bool {
	_, ok := m.Get(path)
	return ok
}

// Remove forgets the position for path. Returns false if none was stored.
func (m *Memory) Remove(path string) bool {
	abs := normalize(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.positions[abs]; !ok {
		return false
	}
	delete(m.positions, abs)
	return true
}

// ClearAll forgets every stored position.
func (m *Memory) ClearAll() {
	m.mu.Lock()
	m.positions = make(map[string]Position)
	m.mu.Unlock()
}

// All returns a copy of every stored position keyed by path.
func (m *Memory) All() map[string]Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Position, len(m.positions))
	for p, pos := range m.positions {
		out[p] = pos
	}
	return out
}

// Shift moves the remembered position for path by the given deltas,
// clamping at zero. Returns the new position, or false if none was stored.
func (m *Memory) Shift(path string, dLine, dColumn int) (Position, bool) {
	abs := normalize(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[abs]
	if !ok {
		return Position{}, false
	}

	pos.Line = max(0, pos.Line+dLine)
	pos.Column = max(0, pos.Column+dColumn)
	m.positions[abs] = pos
	return pos, true
}

// Validate re-clamps the remembered line for path against a known line
// count. Positions are not validated at write time; the editor calls this
// when applying a position to a possibly-shorter document. Pass a negative
// maxLines to skip clamping. Column clamping needs the line content and is
// left to the editor.
func (m *Memory) Validate(path string, maxLines int) (Position, bool) {
	abs := normalize(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[abs]
	if !ok {
		return Position{}, false
	}

	if maxLines >= 0 && pos.Line >= maxLines {
		pos.Line = max(0, maxLines-1)
		m.positions[abs] = pos
	}
	return pos, true
}

// CleanupMissing forgets positions for files that no longer exist on disk
// and returns how many were removed.
func (m *Memory) CleanupMissing() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for p := range m.positions {
		if _, err := os.Stat(p); err != nil {
			delete(m.positions, p)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored positions.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.positions)
}

// Stats returns a summary of stored positions.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{Total: len(m.positions)}
	for _, pos := range m.positions {
		s.MaxLine = max(s.MaxLine, pos.Line)
		s.MaxColumn = max(s.MaxColumn, pos.Column)
	}
	return s
}

// normalize resolves path to its absolute, cleaned form.
func normalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
