// ABOUTME: Progress events emitted while a batch runs
// ABOUTME: Observers receive them synchronously and must not block

package batch

import "time"

// EventKind identifies a progress event.
type EventKind string

const (
	EventBatchStarted     EventKind = "batch_started"
	EventDocumentStarted  EventKind = "document_started"
	EventDocumentFinished EventKind = "document_finished"
	EventBatchFinished    EventKind = "batch_finished"
)

// Event reports batch progress. Index is the document's submission index.
type Event struct {
	Kind      EventKind `json:"kind"`
	BatchID   string    `json:"batch_id"`
	Index     int       `json:"index"`
	Name      string    `json:"name,omitempty"`
	Result    *Result   `json:"result,omitempty"`
	Total     int       `json:"total,omitempty"`
	Succeeded int       `json:"succeeded,omitempty"`
	Failed    int       `json:"failed,omitempty"`
	Time      time.Time `json:"time"`
}

// Observer is called from worker goroutines for every event.
type Observer func(Event)
