package filemanager

import (
	"os"
	"path/filepath"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/dshills/tino/internal/event"
	"github.com/dshills/tino/internal/event/events"
	"github.com/dshills/tino/internal/filemanager/backup"
	"github.com/dshills/tino/internal/filemanager/cursor"
	"github.com/dshills/tino/internal/filemanager/encoding"
	ferrors "github.com/dshills/tino/internal/filemanager/errors"
	"github.com/dshills/tino/internal/filemanager/recent"
)

// FileManager is the OS-backed file persistence facade.
//
// It owns one instance of each sub-component for its lifetime; none of them
// holds a reference back. Construct one explicitly and hand it to callers;
// there is no process-wide default instance.
type FileManager struct {
	detector  *encoding.Detector
	backups   *backup.Manager
	recents   *recent.Manager
	cursors   *cursor.Memory
	publisher event.Publisher
	logger    *zap.Logger

	minConfidence float64

	// rename moves the synced temp file onto the target; os.Rename outside
	// fault-injection tests.
	rename func(oldpath, newpath string) error
}

// Ensure FileManager implements Manager.
var _ Manager = (*FileManager)(nil)

// Option configures a FileManager.
type Option func(*FileManager)

// WithLogger sets the logger, shared with the sub-components.
func WithLogger(l *zap.Logger) Option {
	return func(m *FileManager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithPublisher sets the event transport notifications are delivered
// through.
func WithPublisher(p event.Publisher) Option {
	return func(m *FileManager) {
		if p != nil {
			m.publisher = p
		}
	}
}

// WithMaxRecentFiles bounds the recent files list.
func WithMaxRecentFiles(n int) Option {
	return func(m *FileManager) {
		m.recents.SetMaxFiles(n)
	}
}

// WithMinConfidence sets the encoding detector's statistical confidence
// threshold.
func WithMinConfidence(c float64) Option {
	return func(m *FileManager) {
		m.minConfidence = c
	}
}

// New creates a FileManager with the given options.
func New(opts ...Option) *FileManager {
	m := &FileManager{
		recents:       recent.NewManager(),
		cursors:       cursor.NewMemory(),
		publisher:     event.NopPublisher{},
		logger:        zap.NewNop(),
		minConfidence: encoding.DefaultMinConfidence,
		rename:        os.Rename,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.detector = encoding.NewDetector(
		encoding.WithMinConfidence(m.minConfidence),
		encoding.WithLogger(m.logger),
	)
	m.backups = backup.NewManager(backup.WithLogger(m.logger))
	return m
}

// Open reads the file at path, decodes it using the detected encoding,
// registers it as recently used, and notifies collaborators. Binary files
// are rejected. Files over LargeFileThreshold are permitted with a warning.
func (m *FileManager) Open(path string) (string, error) {
	abs := normalize(path)

	st, err := os.Stat(abs)
	if err != nil {
		return "", ferrors.NewPathError("open", abs, ferrors.Classify(err))
	}

	if m.IsBinary(abs) {
		return "", ferrors.NewPathError("open", abs, ferrors.ErrBinaryFile)
	}

	if st.Size() > LargeFileThreshold {
		m.logger.Warn("opening large file",
			zap.String("path", abs), zap.Int64("size", st.Size()))
	}

	enc, err := m.detector.DetectFile(abs)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return "", ferrors.NewPathError("open", abs, ferrors.Classify(err))
	}

	content, err := encoding.Decode(data, enc)
	if err != nil {
		// Never-fail-decode policy: the detector sampled a prefix, so the
		// full file can still disagree. Latin-1 represents any bytes.
		m.logger.Warn("detected encoding did not decode, falling back to latin-1",
			zap.String("path", abs), zap.String("encoding", enc))
		enc = encoding.Latin1
		content, err = encoding.Decode(data, enc)
		if err != nil {
			return "", ferrors.NewPathError("open", abs, ferrors.ErrDecodeFailed)
		}
	}

	m.recents.Add(abs)

	size := utf8.RuneCountInString(content)
	m.publisher.Publish(events.TopicFileOpened, events.FileOpened{
		Path:     abs,
		Encoding: enc,
		Size:     size,
	})
	m.logger.Info("opened file",
		zap.String("path", abs), zap.String("encoding", enc), zap.Int("chars", size))

	return content, nil
}

// Save writes content to path atomically, reusing the file's current
// on-disk encoding when it exists, else UTF-8.
func (m *FileManager) Save(path, content string) error {
	return m.SaveWithEncoding(path, content, "")
}

// SaveWithEncoding writes content to path atomically in the named encoding
// (auto-selected when empty). If the target exists a backup is attempted
// first; a backup failure is logged but never aborts the save. The new
// content is written to a unique temp file in the same directory, synced to
// durable storage, then renamed onto the target in one step.
func (m *FileManager) SaveWithEncoding(path, content, enc string) error {
	abs := normalize(path)

	existing := m.Exists(abs)
	if enc == "" {
		if existing {
			detected, err := m.detector.DetectFile(abs)
			if err != nil {
				return err
			}
			enc = detected
		} else {
			enc = encoding.UTF8
		}
	} else {
		enc = encoding.Normalize(enc)
		if !encoding.Known(enc) {
			return ferrors.NewPathError("save", abs, ferrors.ErrEncodingUnsupported)
		}
	}

	backupCreated := false
	if existing {
		backupPath, err := m.backups.Create(abs)
		if err != nil {
			// Durability of the new content wins over backup completeness.
			m.logger.Warn("could not create backup",
				zap.String("path", abs), zap.Error(err))
		}
		backupCreated = backupPath != ""
	}

	data, err := encoding.Encode(content, enc)
	if err != nil {
		return ferrors.NewPathError("save", abs, err)
	}

	if err := m.writeAtomic(abs, data); err != nil {
		return ferrors.NewPathError("save", abs, err)
	}

	m.recents.Add(abs)

	size := utf8.RuneCountInString(content)
	m.publisher.Publish(events.TopicFileSaved, events.FileSaved{
		Path:          abs,
		Size:          size,
		Encoding:      enc,
		BackupCreated: backupCreated,
	})
	m.logger.Info("saved file",
		zap.String("path", abs), zap.String("encoding", enc),
		zap.Int("chars", size), zap.Bool("backup", backupCreated))

	return nil
}

// writeAtomic writes data to path through a uniquely named sibling temp
// file, fsyncs it, then renames it onto path. The temp file is removed on
// any failure so the original is never left partially written.
func (m *FileManager) writeAtomic(path string, data []byte) error {
	mode := os.FileMode(0644)
	if st, err := os.Stat(path); err == nil {
		mode = st.Mode()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), tempPattern(path))
	if err != nil {
		return ferrors.Classify(err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return ferrors.Classify(err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return ferrors.Classify(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return ferrors.Classify(err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		os.Remove(tmpPath)
		return ferrors.Classify(err)
	}
	if err := m.rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return ferrors.Classify(err)
	}
	return nil
}

// Close records that a file was closed and notifies collaborators.
// Recent-file and cursor entries persist until explicitly cleared.
func (m *FileManager) Close(path string, wasModified, saved bool) {
	abs := normalize(path)
	m.publisher.Publish(events.TopicFileClosed, events.FileClosed{
		Path:        abs,
		WasModified: wasModified,
		Saved:       saved,
	})
	m.logger.Debug("closed file",
		zap.String("path", abs),
		zap.Bool("modified", wasModified), zap.Bool("saved", saved))
}

// CreateBackup backs up path if the backup-once invariant calls for it.
// Returns "" when no backup was needed.
func (m *FileManager) CreateBackup(path string) (string, error) {
	return m.backups.Create(path)
}

// RestoreBackup replaces path with the content of its backup.
func (m *FileManager) RestoreBackup(path string) error {
	return m.backups.Restore(path)
}

// DeleteBackup removes the backup for path.
func (m *FileManager) DeleteBackup(path string) bool {
	return m.backups.Delete(path)
}

// BackupInfo returns size and modification time of the backup for path.
func (m *FileManager) BackupInfo(path string) (backup.Info, bool) {
	return m.backups.BackupInfo(path)
}

// Encoding detects the encoding of the file at path.
func (m *FileManager) Encoding(path string) (string, error) {
	return m.detector.DetectFile(normalize(path))
}

// Exists reports whether path exists.
func (m *FileManager) Exists(path string) bool {
	_, err := os.Stat(normalize(path))
	return err == nil
}

// IsBinary reports whether the file at path is classified binary.
// A file that cannot be read is assumed binary; a missing file is not.
func (m *FileManager) IsBinary(path string) bool {
	abs := normalize(path)

	f, err := os.Open(abs)
	if err != nil {
		return !os.IsNotExist(err)
	}
	defer f.Close()

	sample := make([]byte, binarySampleSize)
	n, err := f.Read(sample)
	if err != nil && n == 0 {
		return false // empty file
	}
	return m.detector.IsBinary(sample[:n], 0)
}

// FileInfo returns size, modification time and detected encoding for path.
func (m *FileManager) FileInfo(path string) (FileInfo, error) {
	abs := normalize(path)

	st, err := os.Stat(abs)
	if err != nil {
		return FileInfo{}, ferrors.NewPathError("stat", abs, ferrors.Classify(err))
	}

	enc, err := m.detector.DetectFile(abs)
	if err != nil {
		return FileInfo{}, err
	}

	return FileInfo{Size: st.Size(), ModTime: st.ModTime(), Encoding: enc}, nil
}

// AddRecentFile registers path as recently used.
func (m *FileManager) AddRecentFile(path string) {
	m.recents.Add(path)
}

// RecentFiles returns recently used paths, most recent first.
// limit <= 0 returns all.
func (m *FileManager) RecentFiles(limit int) []string {
	return m.recents.Recent(limit)
}

// LastFile returns the file that was current before the present one.
func (m *FileManager) LastFile() (string, bool) {
	return m.recents.Last()
}

// ClearRecentFiles drops the recent files list.
func (m *FileManager) ClearRecentFiles() {
	m.recents.Clear()
}

// CleanupMissingFiles drops session bookkeeping for files that no longer
// exist on disk. Returns how many entries were removed.
func (m *FileManager) CleanupMissingFiles() int {
	return m.recents.CleanupMissing() + m.cursors.CleanupMissing()
}

// SetCursor remembers the cursor position for path.
func (m *FileManager) SetCursor(path string, line, column int) {
	m.cursors.Set(path, line, column)
}

// Cursor returns the remembered cursor position for path.
func (m *FileManager) Cursor(path string) (cursor.Position, bool) {
	return m.cursors.Get(path)
}

// Cursors exposes the cursor memory for editor-side validation helpers.
func (m *FileManager) Cursors() *cursor.Memory {
	return m.cursors
}

// Backups exposes the backup manager for housekeeping (list, cleanup-old).
func (m *FileManager) Backups() *backup.Manager {
	return m.backups
}

// Stats aggregates sub-component statistics.
type Stats struct {
	Recent        recent.Stats
	Cursor        cursor.Stats
	BackedUpFiles int
}

// Stats returns aggregate statistics about the manager.
func (m *FileManager) Stats() Stats {
	return Stats{
		Recent:        m.recents.Stats(),
		Cursor:        m.cursors.Stats(),
		BackedUpFiles: m.backups.SessionCount(),
	}
}

// normalize resolves path to its absolute, cleaned form. Every public
// operation keys off this form so two spellings of the same file collapse
// to one entry everywhere in the layer.
func normalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
