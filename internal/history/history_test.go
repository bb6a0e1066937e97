package history

import (
	"context"
	"errors"
	"testing"

	"github.com/dyluth/easel/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	id      string
	deleted *bool
	patch   *board.Patch
}

type fakeReplayer struct {
	calls []call
	err   error
}

func (f *fakeReplayer) ReplayDeleted(_ context.Context, id string, deleted bool) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, call{id: id, deleted: &deleted})
	return nil
}

func (f *fakeReplayer) ReplayPatch(_ context.Context, id string, p board.Patch) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, call{id: id, patch: &p})
	return nil
}

func ptr[T any](v T) *T { return &v }

func TestUndoInterpretsEntries(t *testing.T) {
	inverse := board.Patch{Text: ptr("before")}
	forward := board.Patch{Text: ptr("after")}

	tests := []struct {
		name     string
		entry    Entry
		undoCall call
		redoCall call
	}{
		{"create", Entry{EntityID: "a", Kind: KindCreate}, call{id: "a", deleted: ptr(true)}, call{id: "a", deleted: ptr(false)}},
		{"delete", Entry{EntityID: "a", Kind: KindDelete}, call{id: "a", deleted: ptr(false)}, call{id: "a", deleted: ptr(true)}},
		{"restore", Entry{EntityID: "a", Kind: KindRestore}, call{id: "a", deleted: ptr(true)}, call{id: "a", deleted: ptr(false)}},
		{"patch", Entry{EntityID: "a", Kind: KindPatch, Inverse: &inverse, Forward: &forward}, call{id: "a", patch: &inverse}, call{id: "a", patch: &forward}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeReplayer{}
			log := NewLog(0)
			c := NewCoordinator(log, r)
			log.Record(tt.entry)

			ok, err := c.Undo(context.Background())
			require.NoError(t, err)
			require.True(t, ok)

			ok, err = c.Redo(context.Background())
			require.NoError(t, err)
			require.True(t, ok)

			require.Len(t, r.calls, 2)
			assert.Equal(t, tt.undoCall, r.calls[0])
			assert.Equal(t, tt.redoCall, r.calls[1])

			undo, redo := log.Len()
			assert.Equal(t, 1, undo)
			assert.Equal(t, 0, redo)
		})
	}
}

func TestEmptyStacksAreNoOps(t *testing.T) {
	r := &fakeReplayer{}
	c := NewCoordinator(NewLog(0), r)

	ok, err := c.Undo(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Redo(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, r.calls)
}

func TestNewActionClearsRedo(t *testing.T) {
	r := &fakeReplayer{}
	log := NewLog(0)
	c := NewCoordinator(log, r)

	log.Record(Entry{EntityID: "a", Kind: KindCreate})
	_, err := c.Undo(context.Background())
	require.NoError(t, err)
	assert.True(t, log.CanRedo())

	log.Record(Entry{EntityID: "b", Kind: KindCreate})
	assert.False(t, log.CanRedo())

	ok, err := c.Redo(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok, "redo after a new action is a no-op")
}

func TestRedoKeepsRemainingRedoEntries(t *testing.T) {
	r := &fakeReplayer{}
	log := NewLog(0)
	c := NewCoordinator(log, r)
	log.Record(Entry{EntityID: "a", Kind: KindCreate})
	log.Record(Entry{EntityID: "b", Kind: KindCreate})

	for i := 0; i < 2; i++ {
		_, err := c.Undo(context.Background())
		require.NoError(t, err)
	}
	_, err := c.Redo(context.Background())
	require.NoError(t, err)

	undo, redo := log.Len()
	assert.Equal(t, 1, undo)
	assert.Equal(t, 1, redo)
	assert.Equal(t, "a", log.Undo()[0].EntityID)
}

func TestFailedReplayKeepsEntry(t *testing.T) {
	r := &fakeReplayer{err: errors.New("connection refused")}
	log := NewLog(0)
	c := NewCoordinator(log, r)
	log.Record(Entry{EntityID: "a", Kind: KindDelete})

	ok, err := c.Undo(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
	assert.True(t, log.CanUndo())
	assert.False(t, log.CanRedo())

	r.err = nil
	ok, err = c.Undo(context.Background())
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestLogLimit(t *testing.T) {
	log := NewLog(3)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		log.Record(Entry{EntityID: id, Kind: KindCreate})
	}
	entries := log.Undo()
	require.Len(t, entries, 3)
	assert.Equal(t, "c", entries[0].EntityID)
	assert.Equal(t, "e", entries[2].EntityID)
}

func TestForget(t *testing.T) {
	log := NewLog(0)
	log.Record(Entry{EntityID: "a", Kind: KindCreate})
	log.Record(Entry{EntityID: "b", Kind: KindCreate})
	log.Record(Entry{EntityID: "a", Kind: KindPatch, Inverse: &board.Patch{}, Forward: &board.Patch{}})

	assert.True(t, log.Forget("a"))
	entries := log.Undo()
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].EntityID)
	assert.Equal(t, KindPatch, entries[1].Kind)

	assert.False(t, log.Forget("a"))
	log.Clear()
	assert.False(t, log.CanUndo())
}

func TestEntryValidate(t *testing.T) {
	assert.NoError(t, Entry{EntityID: "a", Kind: KindCreate}.Validate())
	assert.Error(t, Entry{Kind: KindCreate}.Validate())
	assert.Error(t, Entry{EntityID: "a", Kind: "move"}.Validate())
	assert.Error(t, Entry{EntityID: "a", Kind: KindPatch}.Validate())
}
