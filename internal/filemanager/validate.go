package filemanager

import (
	"fmt"
	"os"
	"path/filepath"
)

// ValidatePath checks whether path can be used as a save target.
// The path must resolve to an absolute location with an existing, writable
// parent directory; an existing target must be a regular file that is both
// readable and writable. Validation failures are expected conditions: the
// result is (false, reason), never an error.
func (m *FileManager) ValidatePath(path string) (bool, string) {
	abs := normalize(path)

	parent := filepath.Dir(abs)
	st, err := os.Stat(parent)
	if err != nil {
		return false, fmt.Sprintf("parent directory does not exist: %s", parent)
	}
	if !st.IsDir() {
		return false, fmt.Sprintf("parent is not a directory: %s", parent)
	}
	if !canWrite(parent) {
		return false, fmt.Sprintf("cannot write to parent directory: %s", parent)
	}

	st, err = os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return true, ""
		}
		return false, fmt.Sprintf("cannot access path: %s", abs)
	}

	if !st.Mode().IsRegular() {
		return false, fmt.Sprintf("path is not a file: %s", abs)
	}
	if !canRead(abs) {
		return false, fmt.Sprintf("cannot read file: %s", abs)
	}
	if !canWrite(abs) {
		return false, fmt.Sprintf("cannot write file: %s", abs)
	}

	return true, ""
}
