package filemanager

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	ferrors "github.com/dshills/tino/internal/filemanager/errors"
)

// Temp file naming: a recognizable prefix plus the original filename, so
// stray files are identifiable for cleanup sweeps, and a unique suffix
// supplied by os.CreateTemp so concurrent operations in one directory never
// collide.
const (
	tempPrefix = ".tino_temp_"
	tempSuffix = ".tmp"
)

// tempPattern returns the os.CreateTemp pattern for a sibling temp file of
// path.
func tempPattern(path string) string {
	return tempPrefix + filepath.Base(path) + "_*" + tempSuffix
}

// TempPath creates and returns a uniquely named temporary file path in the
// same directory as path, the same kind the save and backup protocols use.
// The file is created empty; the caller owns it from here.
func (m *FileManager) TempPath(path string) (string, error) {
	abs := normalize(path)

	tmp, err := os.CreateTemp(filepath.Dir(abs), tempPattern(abs))
	if err != nil {
		return "", ferrors.NewPathError("mktemp", abs, ferrors.Classify(err))
	}
	name := tmp.Name()
	tmp.Close()
	return name, nil
}

// CleanupTempFiles sweeps stale temp files from the directories of recently
// touched files. Per-file failures are swallowed and logged; this is
// best-effort housekeeping, not a correctness path.
func (m *FileManager) CleanupTempFiles() int {
	dirs := make(map[string]struct{})
	for _, p := range m.recents.Recent(0) {
		dirs[filepath.Dir(p)] = struct{}{}
	}

	cleaned := 0
	for dir := range dirs {
		matches, err := filepath.Glob(filepath.Join(dir, tempPrefix+"*"))
		if err != nil {
			continue
		}
		for _, match := range matches {
			if !strings.HasSuffix(match, tempSuffix) {
				continue
			}
			if err := os.Remove(match); err != nil {
				m.logger.Warn("could not remove temp file",
					zap.String("path", match), zap.Error(err))
				continue
			}
			cleaned++
		}
	}

	if cleaned > 0 {
		m.logger.Info("cleaned up temp files", zap.Int("count", cleaned))
	}
	return cleaned
}
