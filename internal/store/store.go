// Package store holds the in-memory mirror of a board's entities.
//
// The store is fed by the board's entity events and by optimistic local
// writes. It makes no network calls. Writes are expected from a single
// goroutine (the canvas event loop); reads are safe from any goroutine.
package store

import (
	"sort"
	"sync"

	"github.com/dyluth/easel/pkg/board"
)

// Store is a keyed mirror of entities with a cached visible projection.
type Store struct {
	mu       sync.RWMutex
	entities map[string]*board.Entity
	visible  []*board.Entity
	dirty    bool
	version  uint64
}

// New returns an empty store.
func New() *Store {
	return &Store{entities: make(map[string]*board.Entity)}
}

// ApplyRemoteSnapshot merges entities into the mirror keyed by id. The last
// entity delivered for an id wins unless it carries an older revision than the
// one held, which is how a late echo of an earlier write is kept from undoing
// a newer local one. No field-level reconciliation is done.
func (s *Store) ApplyRemoteSnapshot(entities []*board.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entities {
		s.put(e)
	}
}

// Replace discards the mirror and loads entities in its place. Entities
// missing from the new set are gone, which is how hard evictions that
// happened while disconnected are picked up.
func (s *Store) Replace(entities []*board.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entities = make(map[string]*board.Entity, len(entities))
	for _, e := range entities {
		s.put(e)
	}
	s.touch()
}

// Apply merges a single entity.
func (s *Store) Apply(e *board.Entity) {
	s.ApplyRemoteSnapshot([]*board.Entity{e})
}

// Evict removes an entity that was physically deleted from the board.
func (s *Store) Evict(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[id]; ok {
		delete(s.entities, id)
		s.touch()
	}
}

// Get returns a copy of the entity with the given id, deleted or not.
func (s *Store) Get(id string) (*board.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Len returns the number of mirrored entities, including deleted ones.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// Version increases every time the mirror changes. Renderers compare it with
// the version of their last frame to skip redundant repaints.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// VisibleEntities returns the non-deleted entities in paint order: zIndex
// ascending, then creation time, then id. The projection is rebuilt only
// after the mirror changed. The returned slice is a copy owned by the caller;
// the entities must be treated as read-only.
func (s *Store) VisibleEntities() []*board.Entity {
	s.mu.RLock()
	if !s.dirty && s.visible != nil {
		out := append([]*board.Entity(nil), s.visible...)
		s.mu.RUnlock()
		return out
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty || s.visible == nil {
		s.visible = s.project()
		s.dirty = false
	}
	return append([]*board.Entity(nil), s.visible...)
}

func (s *Store) project() []*board.Entity {
	out := make([]*board.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		if !e.Deleted {
			out = append(out, e)
		}
	}
	SortPaintOrder(out)
	return out
}

// put stores a private copy of e unless it is older than the held entity.
// Callers hold the write lock.
func (s *Store) put(e *board.Entity) {
	if e == nil || e.ID == "" {
		return
	}
	if held, ok := s.entities[e.ID]; ok && e.Revision < held.Revision {
		return
	}
	s.entities[e.ID] = e.Clone()
	s.touch()
}

func (s *Store) touch() {
	s.dirty = true
	s.version++
}

// SortPaintOrder sorts entities bottom to top.
func SortPaintOrder(entities []*board.Entity) {
	sort.SliceStable(entities, func(i, j int) bool {
		a, b := entities[i], entities[j]
		if a.ZIndex != b.ZIndex {
			return a.ZIndex < b.ZIndex
		}
		if a.CreatedAtMs != b.CreatedAtMs {
			return a.CreatedAtMs < b.CreatedAtMs
		}
		return a.ID < b.ID
	})
}
