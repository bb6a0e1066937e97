package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/easel/internal/canvas"
	"github.com/dyluth/easel/internal/drawing"
	"github.com/dyluth/easel/internal/render"
	"github.com/dyluth/easel/pkg/board"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder logs every call as a string.
type recorder struct {
	calls     []string
	selection string
	failUndo  bool
}

func (r *recorder) log(format string, a ...any) { r.calls = append(r.calls, fmt.Sprintf(format, a...)) }

func (r *recorder) SetTool(t drawing.Tool) error { r.log("tool %s", t); return nil }
func (r *recorder) Pointer(ev render.PointerEvent) error {
	r.log("%s %g,%g", ev.Type, ev.X, ev.Y)
	return nil
}
func (r *recorder) ZoomAt(p board.Point, delta float64) { r.log("zoom %g,%g %g", p.X, p.Y, delta) }
func (r *recorder) Pan(dx, dy float64)                  { r.log("pan %g,%g", dx, dy) }
func (r *recorder) PatchEntity(id string, p board.Patch) error {
	r.log("patch %s %v", id, p.Fields())
	return nil
}
func (r *recorder) DeleteEntity(id string) error { r.log("delete %s", id); return nil }
func (r *recorder) Undo() error {
	if r.failUndo {
		return errors.New("boom")
	}
	r.log("undo")
	return nil
}
func (r *recorder) Redo() error                { r.log("redo"); return nil }
func (r *recorder) Selection() string          { return r.selection }
func (r *recorder) Sync(context.Context) error { r.log("sync"); return nil }

const sample = `name: sample
steps:
  - tool: pen
  - down: {x: 1, y: 2}
  - move: {x: 3, y: 4}
  - up: {x: 3, y: 4}
  - drag: {from: {x: 0, y: 0}, to: {x: 10, y: 20}, steps: 2}
  - zoom: {at: {x: 5, y: 5}, delta: 0.5}
  - pan: {x: -10, y: 4}
  - patch: {color: "#ff0000"}
  - undo: 2
  - redo: 1
  - delete: selected
  - delete: abc
  - wait: 1ms
`

func TestParseAndRun(t *testing.T) {
	s, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, "sample", s.Name)
	require.Len(t, s.Steps, 13)
	assert.Equal(t, "drag", s.Steps[4].Action())
	assert.Equal(t, time.Millisecond, s.Steps[12].Wait)

	r := &recorder{selection: "sel-1"}
	require.NoError(t, Run(context.Background(), r, s))

	assert.Equal(t, []string{
		"tool pen",
		"pointerdown 1,2",
		"pointermove 3,4",
		"pointerup 3,4",
		"pointerdown 0,0",
		"pointermove 5,10",
		"pointermove 10,20",
		"pointerup 10,20",
		"zoom 5,5 0.5",
		"pan -10,4",
		"sync",
		"patch sel-1 [color]",
		"undo",
		"undo",
		"redo",
		"sync",
		"delete sel-1",
		"delete abc",
		"sync",
	}, r.calls)
}

func TestParseRejectsBadScripts(t *testing.T) {
	tests := map[string]string{
		"no steps":        "name: empty\nsteps: []\n",
		"two actions":     "steps:\n  - undo: 1\n    redo: 1\n",
		"empty step":      "steps:\n  - {}\n",
		"unknown tool":    "steps:\n  - tool: laser\n",
		"unknown key":     "steps:\n  - jump: 1\n",
		"empty patch":     "steps:\n  - patch: {}\n",
		"negative drag":   "steps:\n  - drag: {from: {x: 0, y: 0}, to: {x: 1, y: 1}, steps: -1}\n",
		"not yaml at all": "steps: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestRunReportsFailingStep(t *testing.T) {
	s, err := Parse([]byte("steps:\n  - tool: select\n  - undo: 1\n"))
	require.NoError(t, err)

	err = Run(context.Background(), &recorder{failUndo: true}, s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 2 (undo): boom")
}

func TestRunNeedsSelection(t *testing.T) {
	s, err := Parse([]byte("steps:\n  - delete: selected\n"))
	require.NoError(t, err)

	err = Run(context.Background(), &recorder{}, s)
	assert.ErrorContains(t, err, "nothing is selected")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gesture.yml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Steps, 13)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorContains(t, err, "failed to read script")
}

// TestRunAgainstCanvas draws and moves a rectangle on a real canvas.
func TestRunAgainstCanvas(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	client, err := board.NewClientFromRedis(rdb, "script-board")
	require.NoError(t, err)

	cfg := canvas.DefaultConfig(board.Identity{UserID: "ada", DisplayName: "Ada", Color: "#e91e63"})
	cfg.TickInterval = 10 * time.Millisecond
	c, err := canvas.New(client, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()
	<-c.Ready()

	s, err := Parse([]byte(`steps:
  - tool: rectangle
  - down: {x: 10, y: 10}
  - up: {x: 10, y: 10}
  - tool: select
  - drag: {from: {x: 20, y: 20}, to: {x: 60, y: 40}}
  - patch: {color: "#00ff00"}
`))
	require.NoError(t, err)
	require.NoError(t, Run(ctx, c, s))

	require.Eventually(t, func() bool {
		visible := c.VisibleEntities()
		if len(visible) != 1 {
			return false
		}
		rect, ok := visible[0].Shape.(*board.Rectangle)
		return ok && rect.Position == (board.Point{X: 50, Y: 30}) && rect.Color == "#00ff00"
	}, 2*time.Second, 10*time.Millisecond)

	stored, err := client.ListEntities(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "#00ff00", stored[0].Shape.(*board.Rectangle).Color)
}
