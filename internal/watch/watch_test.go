package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/easel/pkg/board"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rect(id string) *board.Entity {
	return &board.Entity{
		ID:      id,
		OwnerID: "ada",
		Shape: &board.Rectangle{
			Position: board.Point{X: 1, Y: 2}, Size: board.Size{Width: 3, Height: 4},
			Color: "#000000", StrokeWidth: 1,
		},
	}
}

func fixedStreamer(format OutputFormat) (*Streamer, *bytes.Buffer) {
	var buf bytes.Buffer
	s := NewStreamer(&buf, format)
	s.now = func() time.Time { return time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC) }
	return s, &buf
}

func TestStreamerEntityLifecycle(t *testing.T) {
	s, buf := fixedStreamer(OutputFormatDefault)
	id := "a3f5b8c9-1d2e-4f7a-9b1c-3d5e6f8a9b0c"
	e := rect(id)

	require.NoError(t, s.Entity(board.EntityEvent{ID: id, Entity: e}))
	require.NoError(t, s.Entity(board.EntityEvent{ID: id, Entity: e}))

	deleted := e.Clone()
	deleted.Deleted = true
	require.NoError(t, s.Entity(board.EntityEvent{ID: id, Entity: deleted}))
	require.NoError(t, s.Entity(board.EntityEvent{ID: id, Entity: e}))
	require.NoError(t, s.Entity(board.EntityEvent{ID: id, Evicted: true}))

	assert.Equal(t, strings.Join([]string{
		"[09:30:00] + rectangle a3f5b8c9 by ada",
		"[09:30:00] ~ rectangle a3f5b8c9",
		"[09:30:00] - rectangle a3f5b8c9",
		"[09:30:00] ↺ rectangle a3f5b8c9 restored",
		"[09:30:00] x a3f5b8c9 evicted",
	}, "\n")+"\n", buf.String())
}

func TestStreamerSeedSuppressesKnownState(t *testing.T) {
	s, buf := fixedStreamer(OutputFormatDefault)
	id := uuid.NewString()
	e := rect(id)
	s.Seed([]*board.Entity{e}, []*board.Presence{{UserID: "grace", DisplayName: "Grace"}})

	require.NoError(t, s.Entity(board.EntityEvent{ID: id, Entity: e}))
	require.NoError(t, s.Presence(&board.Presence{UserID: "grace", DisplayName: "Grace", X: 5}))
	require.NoError(t, s.Presence(&board.Presence{UserID: "grace", Left: true}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "~ rectangle")
	assert.Equal(t, "[09:30:00] ← Grace (grace) left", lines[1], "the name is remembered from the join")
}

func TestStreamerPresence(t *testing.T) {
	s, buf := fixedStreamer(OutputFormatJSON)

	require.NoError(t, s.Presence(&board.Presence{UserID: "ada", Left: true}), "unknown leavers are ignored")
	require.NoError(t, s.Presence(&board.Presence{UserID: "ada", DisplayName: "Ada"}))
	require.NoError(t, s.Presence(&board.Presence{UserID: "ada", DisplayName: "Ada", X: 10}))
	require.NoError(t, s.Presence(&board.Presence{UserID: "ada", Left: true}))

	var events []Event
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		events = append(events, ev)
	}
	require.Len(t, events, 2)
	assert.Equal(t, Event{Timestamp: "2026-10-19T09:30:00Z", Type: EventJoined, UserID: "ada", DisplayName: "Ada"}, events[0])
	assert.Equal(t, EventLeft, events[1].Type)
	assert.Equal(t, "Ada", events[1].DisplayName)
}

// syncBuffer is written by the stream goroutine and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStreamActivity(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := board.NewClient(&redis.Options{Addr: mr.Addr()}, "demo")
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	existing := rect(uuid.NewString())
	require.NoError(t, client.CreateEntity(ctx, existing))

	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- StreamActivity(ctx, client, OutputFormatJSON, out) }()

	// The stream is live once an update to the seeded entity shows up.
	require.Eventually(t, func() bool {
		if strings.Contains(out.String(), existing.ID) {
			return true
		}
		_, _ = client.PatchEntity(ctx, existing.ID, board.Patch{Color: strPtr("#111111")})
		return false
	}, 5*time.Second, 50*time.Millisecond)
	assert.Contains(t, out.String(), `"event_type":"entity_updated","entity_id":"`+existing.ID)

	probe := rect(uuid.NewString())
	require.NoError(t, client.CreateEntity(ctx, probe))
	_, err = client.SetDeleted(ctx, probe.ID, true)
	require.NoError(t, err)
	require.NoError(t, client.WritePresence(ctx, &board.Presence{UserID: "grace", DisplayName: "Grace"}, time.Minute))

	require.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, EventDeleted) && strings.Contains(s, EventJoined)
	}, 5*time.Second, 20*time.Millisecond)

	assert.Contains(t, out.String(), `"event_type":"entity_created","entity_id":"`+probe.ID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop after cancel")
	}
}

func TestPollForEntity(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := board.NewClient(&redis.Options{Addr: mr.Addr()}, "demo")
	require.NoError(t, err)
	defer client.Close()
	ctx := context.Background()

	t.Run("returns entity created later", func(t *testing.T) {
		e := rect(uuid.NewString())
		go func() {
			time.Sleep(200 * time.Millisecond)
			_ = client.CreateEntity(context.Background(), e.Clone())
		}()

		found, err := PollForEntity(ctx, client, e.ID, 3*time.Second)
		require.NoError(t, err)
		assert.Equal(t, e.ID, found.ID)
	})

	t.Run("times out", func(t *testing.T) {
		_, err := PollForEntity(ctx, client, uuid.NewString(), 300*time.Millisecond)
		assert.ErrorContains(t, err, "timeout waiting for entity")
	})

	t.Run("honors cancellation", func(t *testing.T) {
		cctx, ccancel := context.WithCancel(ctx)
		ccancel()
		_, err := PollForEntity(cctx, client, uuid.NewString(), time.Second)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func strPtr(s string) *string { return &s }
