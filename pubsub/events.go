package pubsub

import "context"

const (
	// StartedEvent marks the beginning of an ingestion run
	StartedEvent EventType = "started"
	// ProgressEvent reports per-document ingestion progress
	ProgressEvent EventType = "progress"
	// FinishedEvent marks a completed ingestion run
	FinishedEvent EventType = "finished"
	// FailedEvent marks an ingestion run aborted by an error
	FailedEvent EventType = "failed"
)

// Subscriber receives events over a channel tied to a context.
type Subscriber[T any] interface {
	// Subscribe returns a read-only event channel that closes automatically
	// when the context ends.
	Subscribe(context.Context) <-chan Event[T]
}

type (
	// EventType identifies the kind of event
	EventType string

	// Event is a single occurrence in a resource lifecycle
	Event[T any] struct {
		Type    EventType // Event kind
		Payload T         // Data carried by the event
	}

	// Publisher delivers events to all subscribers.
	Publisher[T any] interface {
		// Publish delivers an event of the given type and payload to every
		// subscriber.
		Publish(EventType, T)
	}
)
