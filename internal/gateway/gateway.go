// Package gateway is the only write path to a board's entity collection.
//
// Every user-level write records its undo entry here, after the transport has
// accepted it. Undo and redo replay through the same gateway with recording
// switched off, so history bookkeeping cannot be bypassed or doubled.
package gateway

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dyluth/easel/internal/history"
	"github.com/dyluth/easel/pkg/board"
	"github.com/google/uuid"
)

// Transport is the durable collection. *board.Client implements it.
type Transport interface {
	CreateEntity(ctx context.Context, e *board.Entity) error
	GetEntity(ctx context.Context, entityID string) (*board.Entity, error)
	PatchEntity(ctx context.Context, entityID string, p board.Patch) (board.WriteResult, error)
	SetDeleted(ctx context.Context, entityID string, deleted bool) (board.WriteResult, error)
}

// Mirror is the local entity view. The gateway reads it to compute inverse
// patches and writes accepted changes into it ahead of the feed echo, stamped
// with the revision the transport reported. The mirror must drop entities
// older than the revision it holds. *store.Store implements it.
type Mirror interface {
	Get(id string) (*board.Entity, bool)
	Apply(e *board.Entity)
}

// Warning is a non-fatal write failure reported on the side channel.
type Warning struct {
	Op       string
	EntityID string
	Err      error
	At       time.Time
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s %s: %v", w.Op, w.EntityID, w.Err)
}

func (w Warning) Unwrap() error {
	return w.Err
}

// Gateway funnels all entity writes through one place.
type Gateway struct {
	transport Transport
	mirror    Mirror
	log       *history.Log
	ownerID   string
	timeout   time.Duration
	newID     func() string
	now       func() time.Time
	warnings  chan Warning
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithWriteTimeout bounds every transport call. Zero means no timeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.timeout = d }
}

// WithIDGenerator overrides UUID generation for new entities.
func WithIDGenerator(f func() string) Option {
	return func(g *Gateway) { g.newID = f }
}

// New returns a gateway writing as ownerID.
func New(t Transport, m Mirror, l *history.Log, ownerID string, opts ...Option) *Gateway {
	g := &Gateway{
		transport: t,
		mirror:    m,
		log:       l,
		ownerID:   ownerID,
		newID:     func() string { return uuid.New().String() },
		now:       time.Now,
		warnings:  make(chan Warning, 32),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Warnings delivers write failures. Warnings are dropped when nobody drains
// the channel; they are always logged.
func (g *Gateway) Warnings() <-chan Warning {
	return g.warnings
}

// NewID returns a fresh entity id. Callers that need the id before the write
// is issued use this and set it on the draft.
func (g *Gateway) NewID() string {
	return g.newID()
}

// Create writes a new entity built from draft and returns its id. The id is
// assigned before the write, so it is returned even when the write fails.
func (g *Gateway) Create(ctx context.Context, draft *board.Entity) (string, error) {
	e := draft.Clone()
	if e.ID == "" {
		e.ID = g.newID()
	}
	if e.OwnerID == "" {
		e.OwnerID = g.ownerID
	}
	e.Deleted = false

	err := g.withTimeout(ctx, func(ctx context.Context) error {
		return g.transport.CreateEntity(ctx, e)
	})
	if err != nil {
		return e.ID, g.warn("create", e.ID, err)
	}

	g.mirror.Apply(e)
	g.log.Record(history.Entry{EntityID: e.ID, Kind: history.KindCreate})
	return e.ID, nil
}

// Patch writes a partial update and records it with the values it replaced.
func (g *Gateway) Patch(ctx context.Context, entityID string, p board.Patch) error {
	cur, err := g.current(ctx, entityID)
	if err != nil {
		return g.warn("patch", entityID, err)
	}
	if cur == nil {
		return nil
	}
	inverse, err := p.Capture(cur)
	if err != nil {
		return g.warn("patch", entityID, err)
	}
	return g.Commit(ctx, entityID, p, inverse)
}

// Commit writes p and records it with an explicitly supplied inverse. Direct
// manipulation uses it on release, where the inverse is the state from before
// the live patches of the gesture.
func (g *Gateway) Commit(ctx context.Context, entityID string, p board.Patch, inverse board.Patch) error {
	applied, err := g.write(ctx, "patch", entityID, p)
	if err != nil || !applied {
		return err
	}

	forward := p.Clone()
	inv := inverse.Clone()
	g.log.Record(history.Entry{
		EntityID: entityID,
		Kind:     history.KindPatch,
		Inverse:  &inv,
		Forward:  &forward,
	})
	return nil
}

// PatchLive writes a partial update without recording history. Used for the
// intermediate states of a gesture: stroke points while drawing, geometry
// while dragging.
func (g *Gateway) PatchLive(ctx context.Context, entityID string, p board.Patch) error {
	_, err := g.write(ctx, "patch", entityID, p)
	return err
}

// SoftDelete hides an entity. Deleting an entity that is already deleted in
// the durable collection is a no-op and records nothing.
func (g *Gateway) SoftDelete(ctx context.Context, entityID string) error {
	return g.toggle(ctx, entityID, true)
}

// Restore un-hides an entity. Restoring a visible entity is a no-op.
func (g *Gateway) Restore(ctx context.Context, entityID string) error {
	return g.toggle(ctx, entityID, false)
}

// Discard soft-deletes an entity and forgets that it was ever created, so undo
// skips it. Used for accidental taps with the pen.
func (g *Gateway) Discard(ctx context.Context, entityID string) error {
	if _, err := g.setDeleted(ctx, "discard", entityID, true); err != nil {
		return err
	}
	g.log.Forget(entityID)
	return nil
}

// ReplayDeleted implements history.Replayer.
func (g *Gateway) ReplayDeleted(ctx context.Context, entityID string, deleted bool) error {
	_, err := g.setDeleted(ctx, "replay", entityID, deleted)
	return err
}

// ReplayPatch implements history.Replayer.
func (g *Gateway) ReplayPatch(ctx context.Context, entityID string, p board.Patch) error {
	_, err := g.write(ctx, "replay", entityID, p)
	return err
}

func (g *Gateway) toggle(ctx context.Context, entityID string, deleted bool) error {
	op := "delete"
	kind := history.KindDelete
	if !deleted {
		op, kind = "restore", history.KindRestore
	}

	changed, err := g.setDeleted(ctx, op, entityID, deleted)
	if err != nil || !changed {
		return err
	}
	g.log.Record(history.Entry{EntityID: entityID, Kind: kind})
	return nil
}

// write sends a patch and mirrors the result. A target that no longer exists
// yields (false, nil).
func (g *Gateway) write(ctx context.Context, op, entityID string, p board.Patch) (bool, error) {
	var res board.WriteResult
	err := g.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		res, err = g.transport.PatchEntity(ctx, entityID, p)
		return err
	})
	if err != nil {
		return false, g.warn(op, entityID, err)
	}
	if !res.Applied {
		return false, nil
	}

	if cur, ok := g.mirror.Get(entityID); ok {
		if updated, err := p.Apply(cur); err == nil {
			updated.UpdatedAtMs = g.now().UnixMilli()
			updated.Revision = res.Revision
			g.mirror.Apply(updated)
		}
	}
	return true, nil
}

// setDeleted writes the flag and reports whether the durable value changed.
func (g *Gateway) setDeleted(ctx context.Context, op, entityID string, deleted bool) (bool, error) {
	var res board.WriteResult
	err := g.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		res, err = g.transport.SetDeleted(ctx, entityID, deleted)
		return err
	})
	if err != nil {
		return false, g.warn(op, entityID, err)
	}
	if !res.Applied {
		return false, nil
	}

	if cur, ok := g.mirror.Get(entityID); ok {
		cur.Deleted = deleted
		cur.Revision = res.Revision
		if res.Changed {
			cur.UpdatedAtMs = g.now().UnixMilli()
		}
		g.mirror.Apply(cur)
	}
	return res.Changed, nil
}

// current returns the entity from the mirror, falling back to the transport
// for entities whose creation has not reached the feed yet. A nil entity with
// a nil error means the id does not resolve.
func (g *Gateway) current(ctx context.Context, entityID string) (*board.Entity, error) {
	if e, ok := g.mirror.Get(entityID); ok {
		return e, nil
	}

	var e *board.Entity
	err := g.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		e, err = g.transport.GetEntity(ctx, entityID)
		return err
	})
	if err != nil {
		if board.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

func (g *Gateway) withTimeout(ctx context.Context, f func(context.Context) error) error {
	if g.timeout <= 0 {
		return f(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return f(ctx)
}

func (g *Gateway) warn(op, entityID string, err error) error {
	w := Warning{Op: op, EntityID: entityID, Err: err, At: g.now()}
	log.Printf("[Gateway] %s %s failed: %v", op, entityID, err)
	select {
	case g.warnings <- w:
	default:
	}
	return w
}
