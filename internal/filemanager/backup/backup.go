// Package backup enforces the single-backup-per-file-per-session policy.
//
// A backup is an atomic copy of the original named by appending ".tino.bak"
// to the original filename, created at most once per original file per
// process lifetime. Restores use the same create-temp/copy/atomic-rename
// protocol in the opposite direction.
package backup

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	ferrors "github.com/dshills/tino/internal/filemanager/errors"
)

// Suffix is appended to the original filename (after its extension) to form
// the backup filename.
const Suffix = ".tino.bak"

// Info describes an existing backup file.
type Info struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Manager creates and restores per-file backups.
//
// The set of paths already backed up this session is guarded by a mutex;
// Manager is safe for concurrent use. Concurrent operations on the same
// original path must still be serialized by the caller.
type Manager struct {
	mu       sync.Mutex
	backedUp map[string]struct{}
	logger   *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a backup Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		backedUp: make(map[string]struct{}),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// BackupPath returns the path the backup for path would live at: the
// original path with Suffix appended, in the same directory.
func (m *Manager) BackupPath(path string) string {
	return normalize(path) + Suffix
}

// NeedsBackup reports whether a backup should be created for path.
// It returns false if the original does not exist, if this path was already
// backed up during this session, or if a backup already exists on disk.
func (m *Manager) NeedsBackup(path string) bool {
	abs := normalize(path)

	if !exists(abs) {
		return false
	}

	m.mu.Lock()
	_, done := m.backedUp[abs]
	m.mu.Unlock()
	if done {
		return false
	}

	return !exists(abs + Suffix)
}

// Create makes a backup of path if one is needed.
// It returns the backup path, or "" when no backup was needed. Callers must
// not special-case "already backed up"; the no-op path is not an error.
func (m *Manager) Create(path string) (string, error) {
	abs := normalize(path)

	if !m.NeedsBackup(abs) {
		return "", nil
	}

	backupPath := abs + Suffix
	if err := atomicCopy(abs, backupPath, ".tino_backup_"); err != nil {
		m.logger.Error("backup failed",
			zap.String("path", abs), zap.Error(err))
		return "", ferrors.NewPathError("backup", abs, err)
	}

	m.mu.Lock()
	m.backedUp[abs] = struct{}{}
	m.mu.Unlock()

	m.logger.Info("created backup", zap.String("backup", backupPath))
	return backupPath, nil
}

// Restore replaces path with the content of its backup.
// The path is removed from the session set so a subsequent save backs it up
// again. Returns a NotFound error if no backup exists.
func (m *Manager) Restore(path string) error {
	abs := normalize(path)
	backupPath := abs + Suffix

	if !exists(backupPath) {
		return ferrors.NewPathError("restore", abs, ferrors.ErrNotFound)
	}

	if err := atomicCopy(backupPath, abs, ".tino_restore_"); err != nil {
		m.logger.Error("restore failed",
			zap.String("path", abs), zap.Error(err))
		return ferrors.NewPathError("restore", abs, err)
	}

	m.mu.Lock()
	delete(m.backedUp, abs)
	m.mu.Unlock()

	m.logger.Info("restored from backup", zap.String("path", abs))
	return nil
}

// Delete removes the backup for path. Returns false if no backup existed or
// it could not be removed.
func (m *Manager) Delete(path string) bool {
	abs := normalize(path)
	backupPath := abs + Suffix

	if !exists(backupPath) {
		return false
	}

	if err := os.Remove(backupPath); err != nil {
		m.logger.Error("delete backup failed",
			zap.String("backup", backupPath), zap.Error(err))
		return false
	}

	m.mu.Lock()
	delete(m.backedUp, abs)
	m.mu.Unlock()

	m.logger.Info("deleted backup", zap.String("backup", backupPath))
	return true
}

// BackupInfo returns size and modification time of the backup for path.
func (m *Manager) BackupInfo(path string) (Info, bool) {
	backupPath := normalize(path) + Suffix

	st, err := os.Stat(backupPath)
	if err != nil {
		return Info{}, false
	}
	return Info{Path: backupPath, Size: st.Size(), ModTime: st.ModTime()}, true
}

// SessionCount returns how many paths have been backed up this session.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.backedUp)
}

// List returns the backup files in dir.
func (m *Manager) List(dir string) []string {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+Suffix))
	if err != nil {
		return nil
	}
	return matches
}

// CleanupOld deletes backups in dir older than maxAge. Per-file failures
// are logged and skipped; cleanup is best-effort housekeeping.
func (m *Manager) CleanupOld(dir string, maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	deleted := 0

	for _, backupPath := range m.List(dir) {
		st, err := os.Stat(backupPath)
		if err != nil {
			continue
		}
		if st.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(backupPath); err != nil {
			m.logger.Warn("could not remove old backup",
				zap.String("backup", backupPath), zap.Error(err))
			continue
		}
		deleted++
	}

	if deleted > 0 {
		m.logger.Info("cleaned up old backups",
			zap.String("dir", dir), zap.Int("deleted", deleted))
	}
	return deleted
}

// atomicCopy copies src onto dst via a uniquely named temporary file in
// dst's directory, preserving mode and mtime, finishing with a single
// rename. The temp file is removed on any failure so no partial copy is
// ever visible at dst.
func atomicCopy(src, dst, prefix string) error {
	st, err := os.Stat(src)
	if err != nil {
		return ferrors.Classify(err)
	}

	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, prefix+filepath.Base(src)+"_*.tmp")
	if err != nil {
		return ferrors.Classify(err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	in, err := os.Open(src)
	if err != nil {
		cleanup()
		return ferrors.Classify(err)
	}

	if _, err := io.Copy(tmp, in); err != nil {
		in.Close()
		cleanup()
		return ferrors.Classify(err)
	}
	in.Close()

	if err := tmp.Sync(); err != nil {
		cleanup()
		return ferrors.Classify(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return ferrors.Classify(err)
	}

	// copy2 semantics: carry over permissions and modification time.
	if err := os.Chmod(tmpPath, st.Mode()); err != nil {
		os.Remove(tmpPath)
		return ferrors.Classify(err)
	}
	if err := os.Chtimes(tmpPath, time.Now(), st.ModTime()); err != nil {
		os.Remove(tmpPath)
		return ferrors.Classify(err)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return ferrors.Classify(err)
	}
	return nil
}

// normalize resolves path to its absolute, cleaned form so two spellings of
// the same file collapse to one bookkeeping entry.
func normalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
