package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"conduit-backend/domain/workflow"
)

// pgListener is the slice of pq.Listener the client needs; tests substitute
// a fake.
type pgListener interface {
	Listen(channel string) error
	Unlisten(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Close() error
}

// StreamClient consumes the store's NOTIFY change feed and fans normalized
// events out to per-project subscriptions. One client serves any number of
// subscriptions; channels are LISTENed while at least one subscription
// needs them.
type StreamClient struct {
	listener pgListener
	logger   *zap.Logger

	mu        sync.Mutex
	subs      map[*Subscription]struct{}
	listening map[string]int
	closed    bool
}

// NewStreamClient connects a stream client to the database's NOTIFY feed.
// Run must be called to start delivery.
func NewStreamClient(databaseURL string, logger *zap.Logger) *StreamClient {
	listener := pq.NewListener(databaseURL, 2*time.Second, time.Minute,
		func(event pq.ListenerEventType, err error) {
			if err != nil {
				logger.Warn("change feed listener event",
					zap.Int("event", int(event)),
					zap.Error(err))
			}
		})
	return newStreamClient(listener, logger)
}

func newStreamClient(listener pgListener, logger *zap.Logger) *StreamClient {
	return &StreamClient{
		listener:  listener,
		logger:    logger,
		subs:      make(map[*Subscription]struct{}),
		listening: make(map[string]int),
	}
}

// Subscribe opens a standing subscription for one project and entity
// table. The caller owns the returned handle and must Close it.
func (c *StreamClient) Subscribe(table Table, projectID string) (*Subscription, error) {
	channel := string(table) + "_changes"

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("stream client is closed")
	}

	if c.listening[channel] == 0 {
		if err := c.listener.Listen(channel); err != nil {
			return nil, fmt.Errorf("listen on %s: %w", channel, err)
		}
	}
	c.listening[channel]++

	sub := NewSubscription(table, projectID, func(closed *Subscription) {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, closed)
		c.listening[channel]--
		if c.listening[channel] == 0 && !c.closed {
			// Unlisten failures are harmless; the dispatcher just sees
			// notifications nobody wants.
			if err := c.listener.Unlisten(channel); err != nil {
				c.logger.Debug("unlisten failed", zap.String("channel", channel), zap.Error(err))
			}
		}
	})
	c.subs[sub] = struct{}{}
	return sub, nil
}

// Run pumps notifications until ctx is cancelled or the listener closes.
// A nil notification marks a connection re-establishment: events may have
// been missed, so consumers are told to refetch by a warning log here and
// the at-least-once contract upstream. Cancellation returns nil; an
// unexpected listener shutdown is surfaced as an error.
func (c *StreamClient) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-c.listener.NotificationChannel():
			if !ok {
				if c.isClosed() {
					return nil
				}
				return fmt.Errorf("change feed listener closed unexpectedly")
			}
			if n == nil {
				c.logger.Warn("change feed reconnected; events may have been missed")
				continue
			}
			c.dispatch(n)
		}
	}
}

func (c *StreamClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close tears down the client and every open subscription; idempotent
func (c *StreamClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := make([]*Subscription, 0, len(c.subs))
	for sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	return c.listener.Close()
}

func (c *StreamClient) dispatch(n *pq.Notification) {
	ev, err := normalize(n.Channel, []byte(n.Extra))
	if err != nil {
		c.logger.Error("dropping malformed change notification",
			zap.String("channel", n.Channel),
			zap.Error(err))
		return
	}

	c.mu.Lock()
	subs := make([]*Subscription, 0, len(c.subs))
	for sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		if sub.Matches(ev) && !sub.Deliver(ev) {
			c.logger.Warn("subscriber too slow, change event dropped",
				zap.String("table", string(ev.Table)),
				zap.String("kind", string(ev.Kind)))
		}
	}
}

// Matches reports whether the event falls inside this subscription's
// table and project filter.
func (s *Subscription) Matches(ev ChangeEvent) bool {
	return ev.Table == s.table && ev.ProjectID() == s.projectID
}

// notifyEnvelope is the trigger's payload shape
type notifyEnvelope struct {
	Kind string          `json:"kind"`
	Row  json.RawMessage `json:"row"`
}

type nodeRow struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	Prompt    string    `json:"prompt"`
	NodeType  string    `json:"node_type"`
	ToolID    *string   `json:"tool_id"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type edgeRow struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	Label     string    `json:"label"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// normalize turns a raw NOTIFY payload into a typed change event
func normalize(channel string, payload []byte) (ChangeEvent, error) {
	var envelope notifyEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ChangeEvent{}, fmt.Errorf("decode envelope: %w", err)
	}

	var kind ChangeKind
	switch envelope.Kind {
	case "INSERT":
		kind = ChangeInsert
	case "UPDATE":
		kind = ChangeUpdate
	case "DELETE":
		kind = ChangeDelete
	default:
		return ChangeEvent{}, fmt.Errorf("unknown change kind %q", envelope.Kind)
	}

	switch channel {
	case string(TableNodes) + "_changes":
		var row nodeRow
		if err := json.Unmarshal(envelope.Row, &row); err != nil {
			return ChangeEvent{}, fmt.Errorf("decode node row: %w", err)
		}
		node := &workflow.Node{
			ID:        row.ID,
			ProjectID: row.ProjectID,
			Title:     row.Title,
			Prompt:    row.Prompt,
			Kind:      workflow.NodeKind(row.NodeType),
			Position:  workflow.Position{X: row.X, Y: row.Y},
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		}
		if row.ToolID != nil {
			node.ToolID = *row.ToolID
		}
		return ChangeEvent{Table: TableNodes, Kind: kind, Node: node}, nil

	case string(TableEdges) + "_changes":
		var row edgeRow
		if err := json.Unmarshal(envelope.Row, &row); err != nil {
			return ChangeEvent{}, fmt.Errorf("decode edge row: %w", err)
		}
		return ChangeEvent{Table: TableEdges, Kind: kind, Edge: &workflow.Edge{
			ID:        row.ID,
			ProjectID: row.ProjectID,
			SourceID:  row.SourceID,
			TargetID:  row.TargetID,
			Label:     row.Label,
			Prompt:    row.Prompt,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		}}, nil
	}

	return ChangeEvent{}, fmt.Errorf("unknown channel %q", channel)
}
