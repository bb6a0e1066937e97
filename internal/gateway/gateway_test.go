package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/dyluth/easel/internal/history"
	"github.com/dyluth/easel/internal/store"
	"github.com/dyluth/easel/pkg/board"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memTransport is an in-memory durable collection.
type memTransport struct {
	entities map[string]*board.Entity
	fail     error
	clock    int64
	writes   int
}

func newMemTransport() *memTransport {
	return &memTransport{entities: make(map[string]*board.Entity)}
}

func (m *memTransport) CreateEntity(_ context.Context, e *board.Entity) error {
	if m.fail != nil {
		return m.fail
	}
	if err := e.Validate(); err != nil {
		return err
	}
	m.writes++
	m.clock++
	e.CreatedAtMs = m.clock
	e.Revision = 1
	m.entities[e.ID] = e.Clone()
	return nil
}

func (m *memTransport) GetEntity(_ context.Context, id string) (*board.Entity, error) {
	e, ok := m.entities[id]
	if !ok {
		return nil, redis.Nil
	}
	return e.Clone(), nil
}

func (m *memTransport) PatchEntity(_ context.Context, id string, p board.Patch) (board.WriteResult, error) {
	if m.fail != nil {
		return board.WriteResult{}, m.fail
	}
	e, ok := m.entities[id]
	if !ok {
		return board.WriteResult{}, nil
	}
	updated, err := p.Apply(e)
	if err != nil {
		return board.WriteResult{}, err
	}
	m.writes++
	updated.Revision = e.Revision + 1
	m.entities[id] = updated
	return board.WriteResult{Applied: true, Changed: true, Revision: updated.Revision}, nil
}

func (m *memTransport) SetDeleted(_ context.Context, id string, deleted bool) (board.WriteResult, error) {
	if m.fail != nil {
		return board.WriteResult{}, m.fail
	}
	e, ok := m.entities[id]
	if !ok {
		return board.WriteResult{}, nil
	}
	if e.Deleted == deleted {
		return board.WriteResult{Applied: true, Revision: e.Revision}, nil
	}
	m.writes++
	e.Deleted = deleted
	e.Revision++
	return board.WriteResult{Applied: true, Changed: true, Revision: e.Revision}, nil
}

type fixture struct {
	transport *memTransport
	store     *store.Store
	log       *history.Log
	gw        *Gateway
	history   *history.Coordinator
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		transport: newMemTransport(),
		store:     store.New(),
		log:       history.NewLog(0),
	}
	f.gw = New(f.transport, f.store, f.log, "ada")
	f.history = history.NewCoordinator(f.log, f.gw)
	return f
}

func rectangleDraft(x, y, w, h float64) *board.Entity {
	return &board.Entity{Shape: &board.Rectangle{
		Position: board.Point{X: x, Y: y},
		Size:     board.Size{Width: w, Height: h},
		Color:    "#000000",
	}}
}

func ptr[T any](v T) *T { return &v }

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns id and owner, mirrors and records", func(t *testing.T) {
		f := setup(t)
		id, err := f.gw.Create(ctx, rectangleDraft(50, 50, 100, 40))
		require.NoError(t, err)
		require.NotEmpty(t, id)

		e, ok := f.store.Get(id)
		require.True(t, ok)
		assert.Equal(t, "ada", e.OwnerID)
		assert.Equal(t, []history.Entry{{EntityID: id, Kind: history.KindCreate}}, f.log.Undo())
	})

	t.Run("keeps a preassigned id", func(t *testing.T) {
		f := setup(t)
		draft := rectangleDraft(0, 0, 1, 1)
		draft.ID = f.gw.NewID()
		id, err := f.gw.Create(ctx, draft)
		require.NoError(t, err)
		assert.Equal(t, draft.ID, id)
	})

	t.Run("transport failure records nothing and warns", func(t *testing.T) {
		f := setup(t)
		f.transport.fail = errors.New("connection reset")

		id, err := f.gw.Create(ctx, rectangleDraft(0, 0, 1, 1))
		require.Error(t, err)
		assert.NotEmpty(t, id, "id is assigned before the write")
		assert.False(t, f.log.CanUndo())
		assert.Equal(t, 0, f.store.Len())

		select {
		case w := <-f.gw.Warnings():
			assert.Equal(t, "create", w.Op)
			assert.ErrorIs(t, w, f.transport.fail)
		default:
			t.Fatal("expected a warning")
		}
	})
}

func TestPatchRecordsInverse(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id, err := f.gw.Create(ctx, rectangleDraft(50, 50, 100, 40))
	require.NoError(t, err)

	require.NoError(t, f.gw.Patch(ctx, id, board.Patch{Position: &board.Point{X: 0, Y: 0}}))

	entries := f.log.Undo()
	require.Len(t, entries, 2)
	patch := entries[1]
	assert.Equal(t, history.KindPatch, patch.Kind)
	assert.Equal(t, &board.Point{X: 50, Y: 50}, patch.Inverse.Position)
	assert.Equal(t, &board.Point{X: 0, Y: 0}, patch.Forward.Position)
	assert.Nil(t, patch.Inverse.Size)

	e, _ := f.store.Get(id)
	assert.Equal(t, board.Point{}, e.Shape.(*board.Rectangle).Position, "mirror updated optimistically")
}

func TestPatchRejectsForeignField(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id, err := f.gw.Create(ctx, rectangleDraft(0, 0, 1, 1))
	require.NoError(t, err)

	err = f.gw.Patch(ctx, id, board.Patch{Text: ptr("nope")})
	assert.Error(t, err)
	undo, _ := f.log.Len()
	assert.Equal(t, 1, undo)
}

func TestPatchLiveIsUntracked(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id, err := f.gw.Create(ctx, &board.Entity{Shape: &board.Stroke{Points: []board.Point{{}}}})
	require.NoError(t, err)

	require.NoError(t, f.gw.PatchLive(ctx, id, board.Patch{Points: []board.Point{{}, {X: 1}}}))
	undo, _ := f.log.Len()
	assert.Equal(t, 1, undo)

	e, _ := f.store.Get(id)
	assert.Len(t, e.Shape.(*board.Stroke).Points, 2)
}

func TestIdempotentToggle(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id, err := f.gw.Create(ctx, rectangleDraft(0, 0, 1, 1))
	require.NoError(t, err)

	t.Run("restore of a visible entity is a no-op", func(t *testing.T) {
		writes := f.transport.writes
		require.NoError(t, f.gw.Restore(ctx, id))
		assert.Equal(t, writes, f.transport.writes)
		undo, _ := f.log.Len()
		assert.Equal(t, 1, undo)
	})

	t.Run("deleting twice equals deleting once", func(t *testing.T) {
		require.NoError(t, f.gw.SoftDelete(ctx, id))
		require.NoError(t, f.gw.SoftDelete(ctx, id))
		undo, _ := f.log.Len()
		assert.Equal(t, 2, undo)
		assert.Empty(t, f.store.VisibleEntities())

		ok, err := f.history.Undo(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Len(t, f.store.VisibleEntities(), 1, "one undo reverses the double delete")
	})
}

// TestLateEchoDoesNotSwallowToggle replays the feed echo of the create after
// the delete was mirrored. The restore that follows must still be written.
func TestLateEchoDoesNotSwallowToggle(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id, err := f.gw.Create(ctx, rectangleDraft(0, 0, 1, 1))
	require.NoError(t, err)
	createEcho, err := f.transport.GetEntity(ctx, id)
	require.NoError(t, err)

	require.NoError(t, f.gw.SoftDelete(ctx, id))
	f.store.Apply(createEcho)

	require.NoError(t, f.gw.Restore(ctx, id))
	assert.False(t, f.transport.entities[id].Deleted, "restore reached the durable collection")
	undo, _ := f.log.Len()
	assert.Equal(t, 3, undo)

	e, ok := f.store.Get(id)
	require.True(t, ok)
	assert.False(t, e.Deleted)
	assert.Equal(t, f.transport.entities[id].Revision, e.Revision)

	t.Run("a toggle decided by the durable state", func(t *testing.T) {
		// The mirror claims deleted while the collection says visible
		stale := e.Clone()
		stale.Deleted = true
		stale.Revision = e.Revision + 1
		f.store.Apply(stale)

		writes := f.transport.writes
		require.NoError(t, f.gw.Restore(ctx, id))
		assert.Equal(t, writes, f.transport.writes)
		undo, _ := f.log.Len()
		assert.Equal(t, 3, undo, "nothing changed, nothing recorded")

		require.NoError(t, f.gw.SoftDelete(ctx, id))
		assert.True(t, f.transport.entities[id].Deleted)
		undo, _ = f.log.Len()
		assert.Equal(t, 4, undo)
	})
}

func TestLateEchoDoesNotSkewInverse(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id, err := f.gw.Create(ctx, rectangleDraft(50, 50, 10, 10))
	require.NoError(t, err)
	createEcho, err := f.transport.GetEntity(ctx, id)
	require.NoError(t, err)

	require.NoError(t, f.gw.Patch(ctx, id, board.Patch{Position: &board.Point{X: 1, Y: 1}}))
	f.store.Apply(createEcho)
	require.NoError(t, f.gw.Patch(ctx, id, board.Patch{Position: &board.Point{X: 2, Y: 2}}))

	entries := f.log.Undo()
	require.Len(t, entries, 3)
	assert.Equal(t, &board.Point{X: 1, Y: 1}, entries[2].Inverse.Position)
}

func TestStaleTargets(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id, err := f.gw.Create(ctx, rectangleDraft(0, 0, 1, 1))
	require.NoError(t, err)
	require.NoError(t, f.gw.SoftDelete(ctx, id))

	// Board deletion evicts the entity everywhere
	delete(f.transport.entities, id)
	f.store.Evict(id)

	ok, err := f.history.Undo(ctx)
	assert.NoError(t, err, "undo on an evicted entity is a successful no-op")
	assert.True(t, ok)

	assert.NoError(t, f.gw.Patch(ctx, id, board.Patch{Color: ptr("red")}))
	assert.NoError(t, f.gw.SoftDelete(ctx, id))
	assert.NoError(t, f.gw.ReplayPatch(ctx, id, board.Patch{Color: ptr("red")}))
	undo, _ := f.log.Len()
	assert.Equal(t, 1, undo, "writes to unresolvable ids record nothing")
}

func TestUndoAfterConcurrentDelete(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id, err := f.gw.Create(ctx, rectangleDraft(0, 0, 1, 1))
	require.NoError(t, err)

	// Another collaborator deletes the entity
	_, err = f.transport.SetDeleted(ctx, id, true)
	require.NoError(t, err)
	remote, _ := f.transport.GetEntity(ctx, id)
	f.store.Apply(remote)

	ok, err := f.history.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, f.transport.entities[id].Deleted)
}

func TestDiscardForgetsCreate(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	keep, err := f.gw.Create(ctx, rectangleDraft(0, 0, 1, 1))
	require.NoError(t, err)
	tap, err := f.gw.Create(ctx, &board.Entity{Shape: &board.Stroke{Points: []board.Point{{}}}})
	require.NoError(t, err)

	require.NoError(t, f.gw.Discard(ctx, tap))
	assert.Equal(t, []history.Entry{{EntityID: keep, Kind: history.KindCreate}}, f.log.Undo())
	assert.True(t, f.transport.entities[tap].Deleted)
}

// TestUndoInverseLaw runs random action sequences and checks that undoing each
// action in reverse order restores the visible set.
func TestUndoInverseLaw(t *testing.T) {
	ctx := context.Background()

	for seed := int64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			f := setup(t)

			// Pre-existing entities created by someone else
			for i := 0; i < 3; i++ {
				e := rectangleDraft(float64(i), 0, 10, 10)
				e.ID = f.gw.NewID()
				require.NoError(t, f.transport.CreateEntity(ctx, e))
				f.store.Apply(f.transport.entities[e.ID])
			}
			before := visibleSnapshot(f.store)

			actions := 0
			for step := 0; step < 15; step++ {
				visible := f.store.VisibleEntities()
				undoBefore, _ := f.log.Len()
				switch op := rng.Intn(3); {
				case op == 0 || len(visible) == 0:
					_, err := f.gw.Create(ctx, rectangleDraft(rng.Float64()*100, rng.Float64()*100, 5, 5))
					require.NoError(t, err)
				case op == 1:
					target := visible[rng.Intn(len(visible))]
					require.NoError(t, f.gw.Patch(ctx, target.ID, board.Patch{
						Position: &board.Point{X: rng.Float64(), Y: rng.Float64()},
						Color:    ptr(fmt.Sprintf("#%06x", rng.Intn(1<<24))),
					}))
				default:
					target := visible[rng.Intn(len(visible))]
					require.NoError(t, f.gw.SoftDelete(ctx, target.ID))
				}
				undoAfter, _ := f.log.Len()
				actions += undoAfter - undoBefore
			}

			for i := 0; i < actions; i++ {
				ok, err := f.history.Undo(ctx)
				require.NoError(t, err)
				require.True(t, ok)
			}

			assert.Equal(t, before, visibleSnapshot(f.store))
		})
	}
}

// visibleSnapshot captures the visible set without write timestamps.
func visibleSnapshot(s *store.Store) map[string]board.Shape {
	out := make(map[string]board.Shape)
	for _, e := range s.VisibleEntities() {
		out[e.ID] = e.Shape
	}
	return out
}
