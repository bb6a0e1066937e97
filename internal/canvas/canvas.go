// Package canvas wires the board client, entity store, gateway, history,
// drawing session and presence channel into one client of a shared board.
//
// A Canvas has a single event loop (Run) that owns every mutation of local
// state. The public methods are safe to call from any goroutine: reads go
// straight to lock-protected state, mutations are enqueued for the loop and
// return immediately. Write failures surface on Warnings.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dyluth/easel/internal/drawing"
	"github.com/dyluth/easel/internal/gateway"
	"github.com/dyluth/easel/internal/history"
	"github.com/dyluth/easel/internal/presence"
	"github.com/dyluth/easel/internal/render"
	"github.com/dyluth/easel/internal/store"
	"github.com/dyluth/easel/internal/viewport"
	"github.com/dyluth/easel/pkg/board"
)

// ErrStopped is returned by mutating calls once the event loop has exited.
var ErrStopped = errors.New("canvas is not running")

// Backend is the shared board. *board.Client implements it.
type Backend interface {
	gateway.Transport
	presence.Publisher
	BoardID() string
	ListEntities(ctx context.Context) ([]*board.Entity, error)
	ListPresence(ctx context.Context) ([]*board.Presence, error)
	SubscribeEntityEvents(ctx context.Context) (*board.Subscription[board.EntityEvent], error)
	SubscribePresenceEvents(ctx context.Context) (*board.Subscription[*board.Presence], error)
}

// Config configures a Canvas.
type Config struct {
	Identity     board.Identity
	Drawing      drawing.Options
	Presence     presence.Options
	HistoryLimit int
	WriteTimeout time.Duration
	ZoomLimits   viewport.Limits
	// TickInterval drives throttle flushes and presence heartbeats.
	TickInterval time.Duration
	// HitTolerance is the pointer slop for hit tests, in screen units.
	HitTolerance float64
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig(id board.Identity) Config {
	return Config{
		Identity:     id,
		Drawing:      drawing.DefaultOptions(),
		Presence:     presence.DefaultOptions(),
		HistoryLimit: history.DefaultLimit,
		WriteTimeout: 5 * time.Second,
		ZoomLimits:   viewport.DefaultLimits,
		TickInterval: 50 * time.Millisecond,
		HitTolerance: 4,
	}
}

type command struct {
	name string
	run  func(ctx context.Context, now time.Time) error
}

// Canvas is one collaborator's view of a board.
type Canvas struct {
	backend Backend
	cfg     Config
	now     func() time.Time

	store    *store.Store
	log      *history.Log
	gw       *gateway.Gateway
	history  *history.Coordinator
	session  *drawing.Session
	presence *presence.Channel

	cmds    chan command
	changes chan struct{}
	ready   chan struct{}
	done    chan struct{}
	running sync.Once

	mu        sync.RWMutex
	vp        viewport.Viewport
	tool      drawing.Tool
	selection string
}

// New builds a canvas for the backend's board. Call Run to start it.
func New(backend Backend, cfg Config) (*Canvas, error) {
	if err := cfg.Identity.Validate(); err != nil {
		return nil, fmt.Errorf("invalid identity: %w", err)
	}
	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("tick interval must be positive, got %s", cfg.TickInterval)
	}

	c := &Canvas{
		backend: backend,
		cfg:     cfg,
		now:     time.Now,
		store:   store.New(),
		log:     history.NewLog(cfg.HistoryLimit),
		cmds:    make(chan command, 256),
		changes: make(chan struct{}, 1),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
		vp:      viewport.Identity(),
		tool:    drawing.ToolSelect,
	}
	c.gw = gateway.New(backend, c.store, c.log, cfg.Identity.UserID, gateway.WithWriteTimeout(cfg.WriteTimeout))
	c.history = history.NewCoordinator(c.log, c.gw)
	c.session = drawing.NewSession(c.gw, drawing.SceneFunc(c.hitTest), cfg.Drawing)
	c.presence = presence.NewChannel(backend, cfg.Identity, cfg.Presence)
	return c, nil
}

// BoardID returns the board this canvas is attached to.
func (c *Canvas) BoardID() string {
	return c.backend.BoardID()
}

// Ready is closed once the initial snapshot has been loaded.
func (c *Canvas) Ready() <-chan struct{} {
	return c.ready
}

// Changes receives a value whenever the rendered frame may have changed.
// Notifications are coalesced; a slow reader sees one pending notification.
func (c *Canvas) Changes() <-chan struct{} {
	return c.changes
}

// Warnings delivers write failures.
func (c *Canvas) Warnings() <-chan gateway.Warning {
	return c.gw.Warnings()
}

// VisibleEntities returns the non-deleted entities in paint order.
func (c *Canvas) VisibleEntities() []*board.Entity {
	return c.store.VisibleEntities()
}

// LivePresence returns the other collaborators seen within the presence
// timeout.
func (c *Canvas) LivePresence() []board.Presence {
	return c.presence.Live(c.now())
}

// Viewport returns the current viewport.
func (c *Canvas) Viewport() viewport.Viewport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vp
}

// Tool returns the active tool as of the last processed command.
func (c *Canvas) Tool() drawing.Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tool
}

// Selection returns the selected entity id as of the last processed command.
func (c *Canvas) Selection() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selection
}

// CanUndo reports whether there is anything to undo.
func (c *Canvas) CanUndo() bool { return c.log.CanUndo() }

// CanRedo reports whether there is anything to redo.
func (c *Canvas) CanRedo() bool { return c.log.CanRedo() }

// Frame composes the current display list.
func (c *Canvas) Frame() render.Frame {
	return render.Compose(c.VisibleEntities(), c.LivePresence(), c.Viewport())
}

// SetViewport replaces the viewport.
func (c *Canvas) SetViewport(v viewport.Viewport) error {
	if err := v.Validate(); err != nil {
		return err
	}
	v.Scale = c.cfg.ZoomLimits.Clamp(v.Scale)
	c.mu.Lock()
	c.vp = v
	c.mu.Unlock()
	c.notify()
	return nil
}

// ZoomAt zooms by exp(delta) keeping the canvas point under the screen point
// p in place.
func (c *Canvas) ZoomAt(p board.Point, delta float64) {
	c.setViewport(func(vp viewport.Viewport) viewport.Viewport { return c.cfg.ZoomLimits.ZoomAt(p, delta, vp) })
}

// Pan shifts the viewport by a screen-space offset.
func (c *Canvas) Pan(dx, dy float64) {
	c.setViewport(func(vp viewport.Viewport) viewport.Viewport { return viewport.Pan(vp, dx, dy) })
}

// setViewport applies step under the lock. A result with a non-finite pan or
// scale is dropped and the viewport stays as it was.
func (c *Canvas) setViewport(step func(viewport.Viewport) viewport.Viewport) {
	c.mu.Lock()
	next := step(c.vp)
	ok := next.Validate() == nil
	if ok {
		c.vp = next
	}
	c.mu.Unlock()
	if ok {
		c.notify()
	}
}

// CreateEntity enqueues the creation of draft and returns the id it will
// have. Only validation errors are returned; write failures are warnings.
func (c *Canvas) CreateEntity(draft *board.Entity) (string, error) {
	e := draft.Clone()
	if e.ID == "" {
		e.ID = c.gw.NewID()
	}
	if e.OwnerID == "" {
		e.OwnerID = c.cfg.Identity.UserID
	}
	if err := e.Validate(); err != nil {
		return "", err
	}
	return e.ID, c.enqueue("create", func(ctx context.Context, _ time.Time) error {
		_, err := c.gw.Create(ctx, e)
		return err
	})
}

// PatchEntity enqueues a recorded partial update.
func (c *Canvas) PatchEntity(entityID string, p board.Patch) error {
	if p.IsEmpty() {
		return fmt.Errorf("patch for %s has no fields", entityID)
	}
	p = p.Clone()
	return c.enqueue("patch", func(ctx context.Context, _ time.Time) error {
		return c.gw.Patch(ctx, entityID, p)
	})
}

// DeleteEntity enqueues a soft delete.
func (c *Canvas) DeleteEntity(entityID string) error {
	return c.enqueue("delete", func(ctx context.Context, _ time.Time) error {
		return c.gw.SoftDelete(ctx, entityID)
	})
}

// RestoreEntity enqueues a restore.
func (c *Canvas) RestoreEntity(entityID string) error {
	return c.enqueue("restore", func(ctx context.Context, _ time.Time) error {
		return c.gw.Restore(ctx, entityID)
	})
}

// Undo enqueues an undo of the newest local action.
func (c *Canvas) Undo() error {
	return c.enqueue("undo", func(ctx context.Context, _ time.Time) error {
		_, err := c.history.Undo(ctx)
		return err
	})
}

// Redo enqueues a redo of the newest undone action.
func (c *Canvas) Redo() error {
	return c.enqueue("redo", func(ctx context.Context, _ time.Time) error {
		_, err := c.history.Redo(ctx)
		return err
	})
}

// SetTool enqueues a tool change.
func (c *Canvas) SetTool(t drawing.Tool) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return c.enqueue("set_tool", func(ctx context.Context, _ time.Time) error {
		return c.session.SetTool(ctx, t)
	})
}

// Pointer feeds a raw screen-space pointer event. It is converted to canvas
// space with the viewport current at the time of the call.
func (c *Canvas) Pointer(ev render.PointerEvent) error {
	if err := ev.Type.Validate(); err != nil {
		return err
	}
	p := viewport.ScreenToCanvas(ev.Point(), c.Viewport())
	return c.enqueue("pointer_"+string(ev.Type), func(ctx context.Context, now time.Time) error {
		if err := c.presence.Publish(ctx, now, p.X, p.Y); err != nil {
			log.Printf("[Canvas] Presence write failed: %v", err)
		}
		switch ev.Type {
		case render.PointerDown:
			return c.session.PointerDown(ctx, now, p)
		case render.PointerMove:
			return c.session.PointerMove(ctx, now, p)
		default:
			return c.session.PointerUp(ctx, now, p)
		}
	})
}

// Sync blocks until every command enqueued before it has been processed.
func (c *Canvas) Sync(ctx context.Context) error {
	processed := make(chan struct{})
	if err := c.enqueue("sync", func(context.Context, time.Time) error {
		close(processed)
		return nil
	}); err != nil {
		return err
	}
	select {
	case <-processed:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Canvas) enqueue(name string, run func(ctx context.Context, now time.Time) error) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}
	select {
	case c.cmds <- command{name: name, run: run}:
		return nil
	case <-c.done:
		return ErrStopped
	}
}

func (c *Canvas) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// hitTest runs on the event loop; the tolerance follows the zoom so the slop
// is constant on screen.
func (c *Canvas) hitTest(p board.Point) (render.Hit, bool) {
	tol := c.cfg.HitTolerance / c.Viewport().Scale
	return render.HitTest(c.store.VisibleEntities(), p, tol)
}
