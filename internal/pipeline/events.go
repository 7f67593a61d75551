// Package pipeline fans extraction lifecycle events out to subscribers.
package pipeline

import (
	"time"

	"github.com/Caia-Tech/caia-extract/pkg/document"
	"github.com/google/uuid"
)

// EventType represents the type of extraction event
type EventType string

const (
	EventDocumentExtracted EventType = "document.extracted"
	EventExtractionFailed  EventType = "extraction.failed"
	EventEngineFallback    EventType = "engine.fallback"
	EventMemoryReset       EventType = "memory.reset"
	EventBatchCompleted    EventType = "batch.completed"
)

// Event is one occurrence in the extraction pipeline
type Event struct {
	ID         string                 `json:"id"`
	Type       EventType              `json:"type"`
	Timestamp  time.Time              `json:"timestamp"`
	Extraction *document.Extraction   `json:"extraction,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// NewEvent creates an event of the given type
func NewEvent(eventType EventType, extraction *document.Extraction) *Event {
	return &Event{
		ID:         "evt_" + uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now(),
		Extraction: extraction,
		Metadata:   make(map[string]interface{}),
	}
}

// WithError sets the error message and returns the event
func (e *Event) WithError(err error) *Event {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// With adds a metadata entry and returns the event
func (e *Event) With(key string, value interface{}) *Event {
	e.Metadata[key] = value
	return e
}

// Publisher accepts events; EventBus is the implementation
type Publisher interface {
	Publish(event *Event) error
}
