// Package memory holds lumen's persistent state: a single-document Store
// used by the persona, and the append-only event log.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one immutable log record.
type Event struct {
	ID      string         `json:"id"`
	Time    time.Time      `json:"ts"`
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload"`
}

// Log is an append-only event backend.
type Log interface {
	// Write appends e.
	Write(e Event) error

	// List returns the most recent limit events, oldest first.
	// A non-positive limit returns nothing.
	List(limit int) ([]Event, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Journal stamps events and fans them out to subscribers after they are
// written. It is what the rest of the program appends through.
type Journal struct {
	log Log
	now func() time.Time

	mu          sync.RWMutex
	subscribers []func(Event)
}

// NewJournal wraps a backend.
func NewJournal(log Log) *Journal {
	return &Journal{log: log, now: time.Now}
}

// Append records an event of the given kind.
func (j *Journal) Append(kind string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	e := Event{
		ID:      uuid.NewString(),
		Time:    j.now().UTC(),
		Kind:    kind,
		Payload: payload,
	}
	if err := j.log.Write(e); err != nil {
		return err
	}

	j.mu.RLock()
	subs := j.subscribers
	j.mu.RUnlock()
	for _, fn := range subs {
		fn(e)
	}
	return nil
}

// List returns the last limit events.
func (j *Journal) List(limit int) ([]Event, error) {
	return j.log.List(limit)
}

// Subscribe registers fn to be called after every successful append.
func (j *Journal) Subscribe(fn func(Event)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.subscribers = append(j.subscribers[:len(j.subscribers):len(j.subscribers)], fn)
}

// Close closes the backend.
func (j *Journal) Close() error {
	return j.log.Close()
}

// tail returns the last n items of events.
func tail(events []Event, n int) []Event {
	if n <= 0 {
		return nil
	}
	if len(events) > n {
		events = events[len(events)-n:]
	}
	return events
}
