// Package topic provides the hierarchical topic type used to label
// notifications emitted by the file persistence layer.
//
// Topics use dot-notation namespaces, e.g. "file.opened". The event
// transport itself lives outside this module; collaborators receive the
// topic together with a typed payload from the events package.
package topic

import "strings"

// Topic represents a hierarchical event type using dot notation.
type Topic string

// Separator is the character used to separate topic segments.
const Separator = "."

// String returns the topic as a string.
func (t Topic) String() string {
	return string(t)
}

// Segments returns the topic split by the separator.
func (t Topic) Segments() []string {
	if t == "" {
		return nil
	}
	return strings.Split(string(t), Separator)
}

// Base returns the last segment of the topic.
func (t Topic) Base() string {
	s := string(t)
	idx := strings.LastIndex(s, Separator)
	if idx < 0 {
		return s
	}
	return s[idx+1:]
}

// HasPrefix returns true if the topic starts with the given prefix on a
// segment boundary.
func (t Topic) HasPrefix(prefix Topic) bool {
	if prefix == "" {
		return true
	}
	s, p := string(t), string(prefix)
	if !strings.HasPrefix(s, p) {
		return false
	}
	if len(s) == len(p) {
		return true
	}
	return s[len(p)] == '.'
}

// IsValid returns true if the topic is non-empty and contains no empty
// segments.
func (t Topic) IsValid() bool {
	s := string(t)
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, Separator) || strings.HasSuffix(s, Separator) {
		return false
	}
	return !strings.Contains(s, Separator+Separator)
}
