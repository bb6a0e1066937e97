// Package watch streams board activity for `easel watch` and polls for
// entities to appear.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/easel/pkg/board"
)

// OutputFormat selects how events are written.
type OutputFormat string

const (
	OutputFormatDefault OutputFormat = "default"
	OutputFormatJSON    OutputFormat = "json"
)

// Event types.
const (
	EventCreated  = "entity_created"
	EventUpdated  = "entity_updated"
	EventDeleted  = "entity_deleted"
	EventRestored = "entity_restored"
	EventEvicted  = "entity_evicted"
	EventJoined   = "user_joined"
	EventLeft     = "user_left"
)

// Event is one line of watch output.
type Event struct {
	Timestamp   string     `json:"timestamp"`
	Type        string     `json:"event_type"`
	EntityID    string     `json:"entity_id,omitempty"`
	Kind        board.Kind `json:"kind,omitempty"`
	OwnerID     string     `json:"owner_id,omitempty"`
	UserID      string     `json:"user_id,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
}

// Source is the subset of the board client the stream needs.
type Source interface {
	ListEntities(ctx context.Context) ([]*board.Entity, error)
	ListPresence(ctx context.Context) ([]*board.Presence, error)
	SubscribeEntityEvents(ctx context.Context) (*board.Subscription[board.EntityEvent], error)
	SubscribePresenceEvents(ctx context.Context) (*board.Subscription[*board.Presence], error)
}

// Streamer turns raw board notifications into Events. Entity notifications
// carry the full document, so the streamer remembers each entity's deleted
// flag to tell creates, updates, deletes and restores apart. Presence
// heartbeats are folded into join and leave events.
type Streamer struct {
	w       io.Writer
	format  OutputFormat
	now     func() time.Time
	deleted map[string]bool
	peers   map[string]string // user id -> display name
}

// NewStreamer returns a streamer writing to w.
func NewStreamer(w io.Writer, format OutputFormat) *Streamer {
	return &Streamer{
		w:       w,
		format:  format,
		now:     time.Now,
		deleted: make(map[string]bool),
		peers:   make(map[string]string),
	}
}

// Seed records the state already on the board so it is not reported.
func (s *Streamer) Seed(entities []*board.Entity, peers []*board.Presence) {
	for _, e := range entities {
		s.deleted[e.ID] = e.Deleted
	}
	for _, p := range peers {
		if !p.Left {
			s.peers[p.UserID] = p.DisplayName
		}
	}
}

// Entity reports one entity notification.
func (s *Streamer) Entity(ev board.EntityEvent) error {
	if ev.Evicted {
		delete(s.deleted, ev.ID)
		return s.write(Event{Type: EventEvicted, EntityID: ev.ID})
	}

	e := ev.Entity
	was, known := s.deleted[e.ID]
	s.deleted[e.ID] = e.Deleted

	out := Event{EntityID: e.ID, Kind: e.Kind(), OwnerID: e.OwnerID}
	switch {
	case !known:
		out.Type = EventCreated
	case e.Deleted && !was:
		out.Type = EventDeleted
	case !e.Deleted && was:
		out.Type = EventRestored
	default:
		out.Type = EventUpdated
	}
	return s.write(out)
}

// Presence reports joins and leaves; ordinary cursor moves are dropped.
func (s *Streamer) Presence(p *board.Presence) error {
	name, known := s.peers[p.UserID]
	switch {
	case p.Left && known:
		delete(s.peers, p.UserID)
		return s.write(Event{Type: EventLeft, UserID: p.UserID, DisplayName: name})
	case !p.Left && !known:
		s.peers[p.UserID] = p.DisplayName
		return s.write(Event{Type: EventJoined, UserID: p.UserID, DisplayName: p.DisplayName})
	default:
		return nil
	}
}

func (s *Streamer) write(ev Event) error {
	ts := s.now().UTC()
	if s.format == OutputFormatJSON {
		ev.Timestamp = ts.Format(time.RFC3339)
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		_, err = fmt.Fprintf(s.w, "%s\n", data)
		return err
	}

	prefix := ts.Format("15:04:05")
	var err error
	switch ev.Type {
	case EventCreated:
		_, err = fmt.Fprintf(s.w, "[%s] + %s %s by %s\n", prefix, ev.Kind, shortID(ev.EntityID), ev.OwnerID)
	case EventUpdated:
		_, err = fmt.Fprintf(s.w, "[%s] ~ %s %s\n", prefix, ev.Kind, shortID(ev.EntityID))
	case EventDeleted:
		_, err = fmt.Fprintf(s.w, "[%s] - %s %s\n", prefix, ev.Kind, shortID(ev.EntityID))
	case EventRestored:
		_, err = fmt.Fprintf(s.w, "[%s] ↺ %s %s restored\n", prefix, ev.Kind, shortID(ev.EntityID))
	case EventEvicted:
		_, err = fmt.Fprintf(s.w, "[%s] x %s evicted\n", prefix, shortID(ev.EntityID))
	case EventJoined:
		_, err = fmt.Fprintf(s.w, "[%s] → %s (%s) joined\n", prefix, ev.DisplayName, ev.UserID)
	case EventLeft:
		_, err = fmt.Fprintf(s.w, "[%s] ← %s (%s) left\n", prefix, ev.DisplayName, ev.UserID)
	}
	return err
}

// StreamActivity writes board activity to w until ctx is cancelled or a
// subscription closes.
func StreamActivity(ctx context.Context, src Source, format OutputFormat, w io.Writer) error {
	entities, err := src.SubscribeEntityEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to entity events: %w", err)
	}
	defer entities.Close()

	peers, err := src.SubscribePresenceEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to presence events: %w", err)
	}
	defer peers.Close()

	snapshot, err := src.ListEntities(ctx)
	if err != nil {
		return fmt.Errorf("failed to load entities: %w", err)
	}
	records, err := src.ListPresence(ctx)
	if err != nil {
		return fmt.Errorf("failed to load presence: %w", err)
	}

	s := NewStreamer(w, format)
	s.Seed(snapshot, records)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-entities.Events():
			if !ok {
				return nil
			}
			if err := s.Entity(ev); err != nil {
				return err
			}
		case p, ok := <-peers.Events():
			if !ok {
				return nil
			}
			if err := s.Presence(p); err != nil {
				return err
			}
		}
	}
}

// Getter fetches a single entity.
type Getter interface {
	GetEntity(ctx context.Context, entityID string) (*board.Entity, error)
}

// PollForEntity polls every 100ms until the entity exists or timeout elapses.
func PollForEntity(ctx context.Context, client Getter, entityID string, timeout time.Duration) (*board.Entity, error) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		e, err := client.GetEntity(ctx, entityID)
		if err == nil {
			return e, nil
		}
		if !board.IsNotFound(err) {
			return nil, fmt.Errorf("failed to query entity: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for entity %s after %v", entityID, timeout)
		case <-ticker.C:
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
