// Package history keeps one client's undo and redo stacks.
//
// History is local and never shared: it only ever contains actions this
// client performed. Entries are plain data interpreted by the Coordinator, so
// the stacks hold no references to live entities.
package history

import (
	"context"
	"fmt"
	"sync"

	"github.com/dyluth/easel/pkg/board"
)

// Kind is the type of action an entry records.
type Kind string

const (
	KindCreate  Kind = "create"
	KindDelete  Kind = "delete"
	KindRestore Kind = "restore"
	KindPatch   Kind = "patch"
)

// Validate checks that the kind is known.
func (k Kind) Validate() error {
	switch k {
	case KindCreate, KindDelete, KindRestore, KindPatch:
		return nil
	default:
		return fmt.Errorf("unknown history entry kind: %q", k)
	}
}

// Entry is one undoable action.
type Entry struct {
	EntityID string       `json:"entity_id"`
	Kind     Kind         `json:"kind"`
	Inverse  *board.Patch `json:"inverse,omitempty"` // patch only: values before the action
	Forward  *board.Patch `json:"forward,omitempty"` // patch only: values the action wrote
}

// Validate checks that a patch entry carries both directions.
func (e Entry) Validate() error {
	if e.EntityID == "" {
		return fmt.Errorf("history entry has no entity id")
	}
	if err := e.Kind.Validate(); err != nil {
		return err
	}
	if e.Kind == KindPatch && (e.Inverse == nil || e.Forward == nil) {
		return fmt.Errorf("patch entry for %s needs inverse and forward patches", e.EntityID)
	}
	return nil
}

// DefaultLimit is the undo depth used when none is configured.
const DefaultLimit = 200

// Log is a pair of bounded stacks with linear-history discipline: recording a
// new action clears the redo stack.
type Log struct {
	mu    sync.Mutex
	undo  []Entry
	redo  []Entry
	limit int
}

// NewLog returns an empty log keeping at most limit undo entries.
// A non-positive limit uses DefaultLimit.
func NewLog(limit int) *Log {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Log{limit: limit}
}

// Record pushes a freshly performed action and invalidates redo history.
func (l *Log) Record(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.undo = append(l.undo, e)
	if len(l.undo) > l.limit {
		l.undo = append([]Entry(nil), l.undo[len(l.undo)-l.limit:]...)
	}
	l.redo = nil
}

// Forget drops the newest create entry for entityID, as if the creation had
// never been recorded. Entries recorded after it are kept.
func (l *Log) Forget(entityID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := len(l.undo) - 1; i >= 0; i-- {
		if l.undo[i].EntityID == entityID && l.undo[i].Kind == KindCreate {
			l.undo = append(l.undo[:i], l.undo[i+1:]...)
			return true
		}
	}
	return false
}

// CanUndo reports whether the undo stack is non-empty.
func (l *Log) CanUndo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.undo) > 0
}

// CanRedo reports whether the redo stack is non-empty.
func (l *Log) CanRedo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.redo) > 0
}

// Len returns the depth of both stacks.
func (l *Log) Len() (undo, redo int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.undo), len(l.redo)
}

// Clear empties both stacks.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.undo, l.redo = nil, nil
}

// Undo entries oldest first, for inspection.
func (l *Log) Undo() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.undo...)
}

func (l *Log) peekUndo() (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.undo) == 0 {
		return Entry{}, false
	}
	return l.undo[len(l.undo)-1], true
}

func (l *Log) peekRedo() (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.redo) == 0 {
		return Entry{}, false
	}
	return l.redo[len(l.redo)-1], true
}

// moveUndoToRedo pops the top undo entry onto the redo stack.
func (l *Log) moveUndoToRedo() {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.undo)
	l.redo = append(l.redo, l.undo[n-1])
	l.undo = l.undo[:n-1]
}

// moveRedoToUndo pops the top redo entry back onto the undo stack without
// clearing the rest of the redo stack.
func (l *Log) moveRedoToUndo() {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.redo)
	l.undo = append(l.undo, l.redo[n-1])
	l.redo = l.redo[:n-1]
}

// Replayer issues writes on behalf of undo and redo. Replayed writes must not
// record history themselves, and must treat targets that no longer exist as
// successful no-ops.
type Replayer interface {
	ReplayDeleted(ctx context.Context, entityID string, deleted bool) error
	ReplayPatch(ctx context.Context, entityID string, p board.Patch) error
}

// Coordinator interprets log entries as writes.
type Coordinator struct {
	log *Log
	r   Replayer
}

// NewCoordinator returns a coordinator replaying entries of log through r.
func NewCoordinator(log *Log, r Replayer) *Coordinator {
	return &Coordinator{log: log, r: r}
}

// Log returns the underlying log.
func (c *Coordinator) Log() *Log {
	return c.log
}

// Undo reverts the newest recorded action. An empty stack is a no-op and
// returns (false, nil). If the inverse write fails the entry stays on the
// undo stack so the user can retry.
func (c *Coordinator) Undo(ctx context.Context) (bool, error) {
	e, ok := c.log.peekUndo()
	if !ok {
		return false, nil
	}

	var err error
	switch e.Kind {
	case KindCreate, KindRestore:
		err = c.r.ReplayDeleted(ctx, e.EntityID, true)
	case KindDelete:
		err = c.r.ReplayDeleted(ctx, e.EntityID, false)
	case KindPatch:
		if e.Inverse == nil {
			err = fmt.Errorf("patch entry for %s has no inverse", e.EntityID)
			break
		}
		err = c.r.ReplayPatch(ctx, e.EntityID, *e.Inverse)
	default:
		err = fmt.Errorf("unknown history entry kind: %q", e.Kind)
	}
	if err != nil {
		return false, fmt.Errorf("failed to undo %s of %s: %w", e.Kind, e.EntityID, err)
	}

	c.log.moveUndoToRedo()
	return true, nil
}

// Redo reissues the most recently undone action. An empty stack is a no-op.
func (c *Coordinator) Redo(ctx context.Context) (bool, error) {
	e, ok := c.log.peekRedo()
	if !ok {
		return false, nil
	}

	var err error
	switch e.Kind {
	case KindCreate, KindRestore:
		err = c.r.ReplayDeleted(ctx, e.EntityID, false)
	case KindDelete:
		err = c.r.ReplayDeleted(ctx, e.EntityID, true)
	case KindPatch:
		if e.Forward == nil {
			err = fmt.Errorf("patch entry for %s has no forward patch", e.EntityID)
			break
		}
		err = c.r.ReplayPatch(ctx, e.EntityID, *e.Forward)
	default:
		err = fmt.Errorf("unknown history entry kind: %q", e.Kind)
	}
	if err != nil {
		return false, fmt.Errorf("failed to redo %s of %s: %w", e.Kind, e.EntityID, err)
	}

	c.log.moveRedoToUndo()
	return true, nil
}
