// Package filemanager is the file persistence layer of the editor.
//
// FileManager is the single entry point the rest of the editor talks to: it
// opens and saves documents with atomic write semantics, detects text
// encodings, keeps the per-file backup invariant, and tracks session
// bookkeeping (recently used files, last cursor positions). All operations
// are synchronous; the layer is safe to call from multiple goroutines but
// operations on the same path must be serialized by the caller.
package filemanager

import (
	"time"

	"github.com/dshills/tino/internal/filemanager/backup"
	"github.com/dshills/tino/internal/filemanager/cursor"
)

// LargeFileThreshold is the size above which opening a file logs a warning.
// No ceiling is enforced.
const LargeFileThreshold = 50 * 1024 * 1024

// binarySampleSize is how many bytes are read to classify a file as binary.
const binarySampleSize = 8192

// FileInfo describes a file on disk together with its detected encoding.
type FileInfo struct {
	Size     int64
	ModTime  time.Time
	Encoding string
}

// Manager is the capability interface of the file persistence layer.
// FileManager is the OS-backed implementation; MemManager is an in-memory
// implementation for tests and previews.
type Manager interface {
	// Open reads and decodes the file at path.
	Open(path string) (string, error)

	// Save writes content to path atomically, reusing the file's current
	// on-disk encoding (UTF-8 for new files).
	Save(path, content string) error

	// SaveWithEncoding writes content to path atomically in the named
	// encoding.
	SaveWithEncoding(path, content, encoding string) error

	// Close records that a file was closed. Bookkeeping (recent files,
	// cursor memory) survives until explicitly cleared.
	Close(path string, wasModified, saved bool)

	// Backup operations.
	CreateBackup(path string) (string, error)
	RestoreBackup(path string) error
	DeleteBackup(path string) bool
	BackupInfo(path string) (backup.Info, bool)

	// Side-effect-free queries.
	Encoding(path string) (string, error)
	Exists(path string) bool
	IsBinary(path string) bool
	FileInfo(path string) (FileInfo, error)
	ValidatePath(path string) (bool, string)

	// Temp-file protocol.
	TempPath(path string) (string, error)
	CleanupTempFiles() int

	// Session bookkeeping.
	AddRecentFile(path string)
	RecentFiles(limit int) []string
	LastFile() (string, bool)
	ClearRecentFiles()
	SetCursor(path string, line, column int)
	Cursor(path string) (cursor.Position, bool)
}
