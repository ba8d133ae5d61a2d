// Package events defines the notification payloads emitted by the file
// persistence layer. The transport that delivers them (an event bus, a
// channel, direct callbacks) is an external collaborator.
package events

import "github.com/dshills/tino/internal/event/topic"

// File event topics.
const (
	// TopicFileOpened is published after a file is successfully opened.
	TopicFileOpened topic.Topic = "file.opened"

	// TopicFileSaved is published after a file is successfully saved.
	TopicFileSaved topic.Topic = "file.saved"

	// TopicFileClosed is published when a file is closed.
	TopicFileClosed topic.Topic = "file.closed"
)

// FileOpened is published after a file is successfully opened.
type FileOpened struct {
	// Path is the absolute path of the opened file.
	Path string

	// Encoding is the detected character encoding.
	Encoding string

	// Size is the decoded content length in characters.
	Size int
}

// FileSaved is published after a file is successfully saved.
type FileSaved struct {
	// Path is the absolute path of the saved file.
	Path string

	// Size is the content length in characters.
	Size int

	// Encoding is the encoding the content was written with.
	Encoding string

	// BackupCreated reports whether this save created a backup.
	BackupCreated bool
}

// FileClosed is published when a file is closed.
type FileClosed struct {
	// Path is the absolute path of the closed file.
	Path string

	// WasModified reports whether the file had been modified.
	WasModified bool

	// Saved reports whether the file was saved before closing.
	Saved bool
}
