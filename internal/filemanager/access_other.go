//go:build !unix

package filemanager

import "os"

// canRead reports whether path can be opened for reading.
func canRead(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// canWrite reports whether path can be opened for writing. For directories
// this probes by creating and removing a temp file.
func canWrite(path string) bool {
	st, err := os.Stat(path)
	if err != nil {
		return false
	}
	if st.IsDir() {
		tmp, err := os.CreateTemp(path, ".tino_access_*.tmp")
		if err != nil {
			return false
		}
		name := tmp.Name()
		tmp.Close()
		os.Remove(name)
		return true
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
