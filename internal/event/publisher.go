// Package event defines the narrow publishing surface the file persistence
// layer notifies collaborators through.
package event

import "github.com/dshills/tino/internal/event/topic"

// Publisher delivers a payload to whatever transport the embedding
// application wires in.
type Publisher interface {
	Publish(t topic.Topic, payload any)
}

// NopPublisher discards all events. It is the default when no transport is
// injected.
type NopPublisher struct{}

// Publish discards the event.
func (NopPublisher) Publish(topic.Topic, any) {}
