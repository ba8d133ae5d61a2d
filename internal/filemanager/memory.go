package filemanager

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dshills/tino/internal/event"
	"github.com/dshills/tino/internal/event/events"
	"github.com/dshills/tino/internal/filemanager/backup"
	"github.com/dshills/tino/internal/filemanager/cursor"
	"github.com/dshills/tino/internal/filemanager/encoding"
	ferrors "github.com/dshills/tino/internal/filemanager/errors"
	"github.com/dshills/tino/internal/filemanager/recent"
)

// Operation is a recorded MemManager call, kept for test verification.
type Operation struct {
	Op   string
	Path string
}

// MemManager is an in-memory implementation of Manager.
//
// It simulates the persistence layer without touching the filesystem:
// useful for unit tests of editor components and for scratch sessions.
// Files are seeded with AddFile; errors are injected with FailWith.
type MemManager struct {
	mu       sync.Mutex
	files    map[string]string
	encs     map[string]string
	modTimes map[string]time.Time
	binaries map[string]struct{}
	backups  map[string]string // original path -> backed up content
	backedUp map[string]struct{}
	failures map[string]error
	history  []Operation
	tempSeq  int

	recents   *recent.Manager
	cursors   *cursor.Memory
	publisher event.Publisher
}

// Ensure MemManager implements Manager.
var _ Manager = (*MemManager)(nil)

// MemOption configures a MemManager.
type MemOption func(*MemManager)

// WithMemPublisher sets the event transport.
func WithMemPublisher(p event.Publisher) MemOption {
	return func(m *MemManager) {
		if p != nil {
			m.publisher = p
		}
	}
}

// NewMemManager creates an empty in-memory manager.
func NewMemManager(opts ...MemOption) *MemManager {
	m := &MemManager{
		files:     make(map[string]string),
		encs:      make(map[string]string),
		modTimes:  make(map[string]time.Time),
		binaries:  make(map[string]struct{}),
		backups:   make(map[string]string),
		backedUp:  make(map[string]struct{}),
		failures:  make(map[string]error),
		recents:   recent.NewManager(),
		cursors:   cursor.NewMemory(),
		publisher: event.NopPublisher{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddFile seeds the simulated filesystem.
func (m *MemManager) AddFile(path, content, enc string, binary bool) {
	abs := normalize(path)
	if enc == "" {
		enc = encoding.UTF8
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.files[abs] = content
	m.encs[abs] = encoding.Normalize(enc)
	m.modTimes[abs] = time.Now()
	if binary {
		m.binaries[abs] = struct{}{}
	} else {
		delete(m.binaries, abs)
	}
}

// RemoveFile removes a simulated file and its bookkeeping.
func (m *MemManager) RemoveFile(path string) {
	abs := normalize(path)

	m.mu.Lock()
	delete(m.files, abs)
	delete(m.encs, abs)
	delete(m.modTimes, abs)
	delete(m.binaries, abs)
	delete(m.backups, abs)
	delete(m.backedUp, abs)
	m.mu.Unlock()

	m.recents.Remove(abs)
	m.cursors.Remove(abs)
}

// FailWith makes the named operation ("open", "save", ...) return err.
// Pass nil to clear.
func (m *MemManager) FailWith(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// History returns the recorded operations in call order.
func (m *MemManager) History() []Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Operation, len(m.history))
	copy(out, m.history)
	return out
}

func (m *MemManager) record(op, path string) {
	m.history = append(m.history, Operation{Op: op, Path: path})
}

func (m *MemManager) injected(op string) error {
	return m.failures[op]
}

// Open returns the simulated file content.
func (m *MemManager) Open(path string) (string, error) {
	abs := normalize(path)

	m.mu.Lock()
	m.record("open", abs)
	if err := m.injected("open"); err != nil {
		m.mu.Unlock()
		return "", err
	}
	content, ok := m.files[abs]
	_, binary := m.binaries[abs]
	enc := m.encs[abs]
	m.mu.Unlock()

	if !ok {
		return "", ferrors.NewPathError("open", abs, ferrors.ErrNotFound)
	}
	if binary {
		return "", ferrors.NewPathError("open", abs, ferrors.ErrBinaryFile)
	}

	m.recents.Add(abs)
	m.publisher.Publish(events.TopicFileOpened, events.FileOpened{
		Path:     abs,
		Encoding: enc,
		Size:     len([]rune(content)),
	})
	return content, nil
}

// Save stores content in the simulated filesystem, simulating the
// backup-once invariant.
func (m *MemManager) Save(path, content string) error {
	return m.SaveWithEncoding(path, content, "")
}

// SaveWithEncoding stores content with an explicit encoding.
func (m *MemManager) SaveWithEncoding(path, content, enc string) error {
	abs := normalize(path)

	m.mu.Lock()
	m.record("save", abs)
	if err := m.injected("save"); err != nil {
		m.mu.Unlock()
		return err
	}

	old, existed := m.files[abs]
	if enc == "" {
		if existed {
			enc = m.encs[abs]
		} else {
			enc = encoding.UTF8
		}
	} else {
		enc = encoding.Normalize(enc)
		if !encoding.Known(enc) {
			m.mu.Unlock()
			return ferrors.NewPathError("save", abs, ferrors.ErrEncodingUnsupported)
		}
	}

	backupCreated := false
	if existed {
		_, done := m.backedUp[abs]
		_, onDisk := m.backups[abs]
		if !done && !onDisk {
			m.backups[abs] = old
			m.backedUp[abs] = struct{}{}
			backupCreated = true
		}
	}

	m.files[abs] = content
	m.encs[abs] = enc
	m.modTimes[abs] = time.Now()
	m.mu.Unlock()

	m.recents.Add(abs)
	m.publisher.Publish(events.TopicFileSaved, events.FileSaved{
		Path:          abs,
		Size:          len([]rune(content)),
		Encoding:      enc,
		BackupCreated: backupCreated,
	})
	return nil
}

// Close records the close and notifies collaborators.
func (m *MemManager) Close(path string, wasModified, saved bool) {
	abs := normalize(path)

	m.mu.Lock()
	m.record("close", abs)
	m.mu.Unlock()

	m.publisher.Publish(events.TopicFileClosed, events.FileClosed{
		Path:        abs,
		WasModified: wasModified,
		Saved:       saved,
	})
}

// CreateBackup simulates the backup-once invariant.
func (m *MemManager) CreateBackup(path string) (string, error) {
	abs := normalize(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("backup", abs)
	if err := m.injected("backup"); err != nil {
		return "", err
	}

	content, ok := m.files[abs]
	if !ok {
		return "", nil
	}
	if _, done := m.backedUp[abs]; done {
		return "", nil
	}
	if _, onDisk := m.backups[abs]; onDisk {
		return "", nil
	}

	m.backups[abs] = content
	m.backedUp[abs] = struct{}{}
	return abs + backup.Suffix, nil
}

// RestoreBackup replaces the simulated file with its backup content.
func (m *MemManager) RestoreBackup(path string) error {
	abs := normalize(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.record("restore", abs)
	content, ok := m.backups[abs]
	if !ok {
		return ferrors.NewPathError("restore", abs, ferrors.ErrNotFound)
	}

	m.files[abs] = content
	m.modTimes[abs] = time.Now()
	delete(m.backedUp, abs)
	return nil
}

// DeleteBackup removes the simulated backup.
func (m *MemManager) DeleteBackup(path string) bool {
	abs := normalize(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.backups[abs]; !ok {
		return false
	}
	delete(m.backups, abs)
	delete(m.backedUp, abs)
	return true
}

// BackupInfo describes the simulated backup.
func (m *MemManager) BackupInfo(path string) (backup.Info, bool) {
	abs := normalize(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	content, ok := m.backups[abs]
	if !ok {
		return backup.Info{}, false
	}
	return backup.Info{
		Path:    abs + backup.Suffix,
		Size:    int64(len(content)),
		ModTime: m.modTimes[abs],
	}, true
}

// Encoding returns the simulated file's encoding.
func (m *MemManager) Encoding(path string) (string, error) {
	abs := normalize(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	enc, ok := m.encs[abs]
	if !ok {
		return "", ferrors.NewPathError("detect", abs, ferrors.ErrNotFound)
	}
	return enc, nil
}

// Exists reports whether the simulated file exists.
func (m *MemManager) Exists(path string) bool {
	abs := normalize(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.files[abs]
	return ok
}

// IsBinary reports whether the simulated file was seeded as binary.
func (m *MemManager) IsBinary(path string) bool {
	abs := normalize(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.binaries[abs]
	return ok
}

// FileInfo describes the simulated file.
func (m *MemManager) FileInfo(path string) (FileInfo, error) {
	abs := normalize(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	content, ok := m.files[abs]
	if !ok {
		return FileInfo{}, ferrors.NewPathError("stat", abs, ferrors.ErrNotFound)
	}
	return FileInfo{
		Size:     int64(len(content)),
		ModTime:  m.modTimes[abs],
		Encoding: m.encs[abs],
	}, nil
}

// ValidatePath mirrors the OS-backed checks against the simulated tree: a
// path nested under a seeded file has no directory to live in. Failures can
// also be injected with FailWith("validate", err).
func (m *MemManager) ValidatePath(path string) (bool, string) {
	abs := normalize(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected("validate"); err != nil {
		return false, err.Error()
	}

	parent := filepath.Dir(abs)
	if _, ok := m.files[parent]; ok {
		return false, fmt.Sprintf("%s: parent is not a directory: %s",
			ferrors.ErrInvalidPath, parent)
	}
	return true, ""
}

// TempPath returns a unique simulated temp path next to path.
func (m *MemManager) TempPath(path string) (string, error) {
	abs := normalize(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.tempSeq++
	return fmt.Sprintf("%s%s_%d%s", tempPrefix, abs, m.tempSeq, tempSuffix), nil
}

// CleanupTempFiles is a no-op for the in-memory manager.
func (m *MemManager) CleanupTempFiles() int {
	return 0
}

// AddRecentFile registers path as recently used.
func (m *MemManager) AddRecentFile(path string) {
	m.recents.Add(path)
}

// RecentFiles returns recently used paths, most recent first.
func (m *MemManager) RecentFiles(limit int) []string {
	return m.recents.Recent(limit)
}

// LastFile returns the file that was current before the present one.
func (m *MemManager) LastFile() (string, bool) {
	return m.recents.Last()
}

// ClearRecentFiles drops the recent files list.
func (m *MemManager) ClearRecentFiles() {
	m.recents.Clear()
}

// SetCursor remembers the cursor position for path.
func (m *MemManager) SetCursor(path string, line, column int) {
	m.cursors.Set(path, line, column)
}

// Cursor returns the remembered cursor position for path.
func (m *MemManager) Cursor(path string) (cursor.Position, bool) {
	return m.cursors.Get(path)
}
