// Package recent tracks recently used file paths with LRU-with-promote
// semantics and a bounded size.
package recent

import (
	"container/list"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultMaxFiles is the default bound on tracked paths.
const DefaultMaxFiles = 30

// entry is a tracked path with its last access instant.
type entry struct {
	path     string
	accessed time.Time
}

// Info describes a tracked path's position in the list.
type Info struct {
	Path     string
	Accessed time.Time
	Position int
	IsLast   bool
}

// Stats summarizes the manager state.
type Stats struct {
	Total    int
	MaxFiles int
	HasLast  bool
	Last     string
	Oldest   time.Time
	Newest   time.Time
}

// Manager is a bounded, order-preserving set of recently used paths.
// The front of the list is the most recently used path; adding an existing
// path promotes it to the front. All methods are safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	maxFiles int
	order    *list.List               // front = most recent, values are *entry
	index    map[string]*list.Element // normalized path -> element
	last     string                   // front immediately before the latest add
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxFiles sets the maximum number of tracked paths (at least 1).
func WithMaxFiles(n int) Option {
	return func(m *Manager) {
		m.maxFiles = max(1, n)
	}
}

// NewManager creates a recent files Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		maxFiles: DefaultMaxFiles,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add records path as the most recently used file. An existing entry is
// promoted to the front instead of duplicated; the oldest entries are
// evicted when the bound is exceeded.
func (m *Manager) Add(path string) {
	abs := normalize(path)
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Quick-switch target: whatever was current before this add.
	// Re-adding the current front must not disturb it.
	if front := m.order.Front(); front != nil {
		if cur := front.Value.(*entry).path; cur != abs {
			m.last = cur
		}
	}

	if el, ok := m.index[abs]; ok {
		el.Value.(*entry).accessed = now
		m.order.MoveToFront(el)
		return
	}

	m.index[abs] = m.order.PushFront(&entry{path: abs, accessed: now})

	for m.order.Len() > m.maxFiles {
		m.evictOldest()
	}
}

// Recent returns tracked paths, most recent first. limit <= 0 returns all.
func (m *Manager) Recent(limit int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.order.Len()
	if limit > 0 && limit < n {
		n = limit
	}

	paths := make([]string, 0, n)
	for el := m.order.Front(); el != nil && len(paths) < n; el = el.Next() {
		paths = append(paths, el.Value.(*entry).path)
	}
	return paths
}

// Last returns the file that was current before the present one, the target
// of quick-switch-to-previous-file.
func (m *Manager) Last() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.last == "" {
		return "", false
	}
	return m.last, true
}

// Remove drops path from the list. Returns false if it was not tracked.
func (m *Manager) Remove(path string) bool {
	abs := normalize(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.index[abs]
	if !ok {
		return false
	}

	m.order.Remove(el)
	delete(m.index, abs)
	if m.last == abs {
		m.last = m.frontPath()
	}
	return true
}

// Clear drops all entries.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.order.Init()
	m.index = make(map[string]*list.Element)
	m.last = ""
}

// Contains reports whether path is tracked.
func (m *Manager) Contains(path string) bool {
	abs := normalize(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.index[abs]
	return ok
}

// Len returns the number of tracked paths.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// Info returns position details for a tracked path.
func (m *Manager) Info(path string) (Info, bool) {
	abs := normalize(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.index[abs]
	if !ok {
		return Info{}, false
	}

	pos := 0
	for e := m.order.Front(); e != nil && e != el; e = e.Next() {
		pos++
	}

	ent := el.Value.(*entry)
	return Info{
		Path:     ent.path,
		Accessed: ent.accessed,
		Position: pos,
		IsLast:   abs == m.last,
	}, true
}

// SetMaxFiles changes the bound, evicting oldest entries if the list is now
// too long.
func (m *Manager) SetMaxFiles(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.maxFiles = max(1, n)
	for m.order.Len() > m.maxFiles {
		m.evictOldest()
	}
}

// CleanupMissing drops entries whose files no longer exist on disk and
// returns how many were removed.
func (m *Manager) CleanupMissing() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for el := m.order.Front(); el != nil; {
		next := el.Next()
		p := el.Value.(*entry).path
		if _, err := os.Stat(p); err != nil {
			m.order.Remove(el)
			delete(m.index, p)
			if m.last == p {
				m.last = m.frontPath()
			}
			removed++
		}
		el = next
	}
	return removed
}

// Stats returns a summary of the manager state.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		Total:    m.order.Len(),
		MaxFiles: m.maxFiles,
		HasLast:  m.last != "",
		Last:     m.last,
	}
	for el := m.order.Front(); el != nil; el = el.Next() {
		t := el.Value.(*entry).accessed
		if s.Oldest.IsZero() || t.Before(s.Oldest) {
			s.Oldest = t
		}
		if t.After(s.Newest) {
			s.Newest = t
		}
	}
	return s
}

// evictOldest removes the back entry. Caller holds the lock.
func (m *Manager) evictOldest() {
	back := m.order.Back()
	if back == nil {
		return
	}
	p := back.Value.(*entry).path
	m.order.Remove(back)
	delete(m.index, p)
	if m.last == p {
		m.last = m.frontPath()
	}
}

// frontPath returns the current front path or "". Caller holds the lock.
func (m *Manager) frontPath() string {
	if front := m.order.Front(); front != nil {
		return front.Value.(*entry).path
	}
	return ""
}

// normalize resolves path to its absolute, cleaned form so two spellings of
// the same file collapse to one entry.
func normalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
