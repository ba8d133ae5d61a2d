//go:build unix

package filemanager

import "golang.org/x/sys/unix"

// canRead reports whether the effective user can read path.
func canRead(path string) bool {
	return unix.Access(path, unix.R_OK) == nil
}

// canWrite reports whether the effective user can write path.
func canWrite(path string) bool {
	return unix.Access(path, unix.W_OK) == nil
}
