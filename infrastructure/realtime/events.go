// Package realtime delivers the store's push change feed as typed events.
// Per-table delivery is ordered and at-least-once; there is no ordering
// guarantee across tables.
package realtime

import (
	"sync"

	"conduit-backend/domain/workflow"
)

// Table names an entity table on the change feed
type Table string

const (
	TableNodes Table = "nodes"
	TableEdges Table = "edges"
)

// ChangeKind classifies a change event
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// ChangeEvent is one normalized change notification. Exactly one of Node
// and Edge is set, matching Table. Delete events carry the deleted row.
// Node payloads do not carry the joined tool; consumers re-resolve it.
type ChangeEvent struct {
	Table Table
	Kind  ChangeKind
	Node  *workflow.Node
	Edge  *workflow.Edge
}

// ProjectID returns the project the changed row belongs to
func (ev ChangeEvent) ProjectID() string {
	switch {
	case ev.Node != nil:
		return ev.Node.ProjectID
	case ev.Edge != nil:
		return ev.Edge.ProjectID
	}
	return ""
}

// Feed hands out standing change subscriptions. Both the Postgres stream
// client and the in-memory store implement it.
type Feed interface {
	Subscribe(table Table, projectID string) (*Subscription, error)
}

// subscriptionBuffer bounds how many undelivered events a slow consumer
// can hold before events are dropped (the consumer must then refetch).
const subscriptionBuffer = 256

// Subscription is an owned handle on one table's change stream, filtered
// to a single project. The holder reads Events until it closes the handle;
// Close is idempotent and safe to call after the channel has been drained.
type Subscription struct {
	table     Table
	projectID string
	events    chan ChangeEvent
	once      sync.Once
	detach    func(*Subscription)

	mu     sync.Mutex
	closed bool
}

// NewSubscription creates a subscription handle. detach is invoked exactly
// once, on the first Close, to unregister the handle from its feed.
func NewSubscription(table Table, projectID string, detach func(*Subscription)) *Subscription {
	return &Subscription{
		table:     table,
		projectID: projectID,
		events:    make(chan ChangeEvent, subscriptionBuffer),
		detach:    detach,
	}
}

// Table returns the subscribed entity table
func (s *Subscription) Table() Table {
	return s.table
}

// Events returns the channel of normalized change events. The channel is
// closed when the subscription is closed.
func (s *Subscription) Events() <-chan ChangeEvent {
	return s.events
}

// Deliver offers an event to the subscription, dropping it when the table
// or project does not match or the consumer's buffer is full. It reports
// whether the event was enqueued.
func (s *Subscription) Deliver(ev ChangeEvent) bool {
	if ev.Table != s.table || ev.ProjectID() != s.projectID {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

// Close tears the subscription down. It is idempotent and never panics,
// even when the underlying channel is already closed.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.detach != nil {
			s.detach(s)
		}
		s.mu.Lock()
		s.closed = true
		close(s.events)
		s.mu.Unlock()
	})
}
