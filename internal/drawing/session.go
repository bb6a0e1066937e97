// Package drawing turns pointer gestures into entity writes.
//
// A Session owns the gesture state machine for one client: which tool is
// active, whether a stroke is being drawn or an entity dragged, and the
// throttle that coalesces live patches. It never touches history directly;
// everything goes through the Writer, whose Commit and Create record undo
// entries and whose PatchLive does not.
package drawing

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/easel/internal/render"
	"github.com/dyluth/easel/internal/throttle"
	"github.com/dyluth/easel/pkg/board"
)

// Tool is the active input tool.
type Tool string

const (
	ToolSelect    Tool = "select"
	ToolPen       Tool = "pen"
	ToolRectangle Tool = "rectangle"
	ToolEllipse   Tool = "ellipse"
	ToolText      Tool = "text"
	ToolSticky    Tool = "sticky"
)

// Validate checks that the tool is known.
func (t Tool) Validate() error {
	switch t {
	case ToolSelect, ToolPen, ToolRectangle, ToolEllipse, ToolText, ToolSticky:
		return nil
	default:
		return fmt.Errorf("unknown tool: %q", t)
	}
}

// State is the gesture state.
type State string

const (
	StateIdle     State = "idle"
	StateDrawing  State = "drawing"
	StateDragging State = "dragging"
)

// Writer is the slice of the mutation gateway a session writes through.
// *gateway.Gateway implements it.
type Writer interface {
	NewID() string
	Create(ctx context.Context, draft *board.Entity) (string, error)
	PatchLive(ctx context.Context, entityID string, p board.Patch) error
	Commit(ctx context.Context, entityID string, p, inverse board.Patch) error
	Discard(ctx context.Context, entityID string) error
}

// Scene answers hit tests in canvas space.
type Scene interface {
	HitTest(p board.Point) (render.Hit, bool)
}

// SceneFunc adapts a function to Scene.
type SceneFunc func(p board.Point) (render.Hit, bool)

// HitTest calls f.
func (f SceneFunc) HitTest(p board.Point) (render.Hit, bool) { return f(p) }

// Style is applied to newly created entities.
type Style struct {
	Color       string  `yaml:"color"`
	StickyColor string  `yaml:"sticky_color"`
	StrokeWidth float64 `yaml:"stroke_width"`
	FontSize    float64 `yaml:"font_size"`
}

// Options configures a Session.
type Options struct {
	// MinStrokePoints is the smallest stroke kept on release; shorter strokes
	// are treated as accidental taps and discarded.
	MinStrokePoints int
	// FlushInterval bounds how often live patches are written.
	FlushInterval time.Duration
	Style         Style
	// Default extents for click-created shapes.
	ShapeSize  board.Size
	TextSize   board.Size
	StickySize board.Size
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		MinStrokePoints: 2,
		FlushInterval:   50 * time.Millisecond,
		Style: Style{
			Color:       "#212121",
			StickyColor: "#fff59d",
			StrokeWidth: 2,
			FontSize:    16,
		},
		ShapeSize:  board.Size{Width: 120, Height: 80},
		TextSize:   board.Size{Width: 200, Height: 32},
		StickySize: board.Size{Width: 160, Height: 160},
	}
}

// minResize keeps a resized box from collapsing.
const minResize = 1.0

type drag struct {
	id      string
	handle  render.Handle
	origin  board.Point
	last    board.Point
	start   *board.Entity
	inverse board.Patch
	moved   bool // a live patch has been written
}

// Session is the per-client gesture state machine. It is not safe for
// concurrent use; the canvas event loop owns it.
type Session struct {
	w     Writer
	scene Scene
	opts  Options

	tool     Tool
	state    State
	selected string

	// drawing
	strokeID string
	points   []board.Point
	sent     int

	drag *drag
	live *throttle.Coalescer[board.Patch]
}

// NewSession returns an idle session with the select tool active.
func NewSession(w Writer, scene Scene, opts Options) *Session {
	return &Session{
		w:     w,
		scene: scene,
		opts:  opts,
		tool:  ToolSelect,
		state: StateIdle,
		live:  throttle.Every[board.Patch](opts.FlushInterval),
	}
}

// Tool returns the active tool.
func (s *Session) Tool() Tool { return s.tool }

// State returns the gesture state.
func (s *Session) State() State { return s.state }

// Selection returns the selected entity id, or "" when nothing is selected.
func (s *Session) Selection() string { return s.selected }

// Select sets the selection directly.
func (s *Session) Select(id string) { s.selected = id }

// SetTool switches tools. A gesture in progress is finished at its last
// known point first.
func (s *Session) SetTool(ctx context.Context, t Tool) error {
	if err := t.Validate(); err != nil {
		return err
	}
	var err error
	switch s.state {
	case StateDrawing:
		err = s.endStroke(ctx, s.points[len(s.points)-1])
	case StateDragging:
		err = s.endDrag(ctx, s.drag.last)
	}
	s.tool = t
	if t != ToolSelect {
		s.selected = ""
	}
	return err
}

// PointerDown starts a gesture at p (canvas space).
func (s *Session) PointerDown(ctx context.Context, now time.Time, p board.Point) error {
	if s.state != StateIdle {
		// A lost pointer-up; treat the new press as a release first.
		if err := s.PointerUp(ctx, now, p); err != nil {
			return err
		}
	}

	switch s.tool {
	case ToolPen:
		return s.beginStroke(ctx, p)
	case ToolSelect:
		return s.beginDrag(p)
	case ToolRectangle, ToolEllipse, ToolText, ToolSticky:
		id, err := s.w.Create(ctx, &board.Entity{Shape: s.defaultShape(p)})
		if err != nil {
			return err
		}
		s.selected = id
		return nil
	default:
		return nil
	}
}

// PointerMove extends the current gesture. Moves while idle are ignored.
func (s *Session) PointerMove(ctx context.Context, now time.Time, p board.Point) error {
	switch s.state {
	case StateDrawing:
		s.points = append(s.points, p)
		return s.offer(ctx, now, s.strokeID, board.Patch{Points: clonePoints(s.points)})
	case StateDragging:
		s.drag.last = p
		return s.offer(ctx, now, s.drag.id, s.dragPatch(p))
	default:
		return nil
	}
}

// PointerUp ends the current gesture. The session is idle afterwards even
// when the final write fails.
func (s *Session) PointerUp(ctx context.Context, now time.Time, p board.Point) error {
	switch s.state {
	case StateDrawing:
		return s.endStroke(ctx, p)
	case StateDragging:
		return s.endDrag(ctx, p)
	default:
		return nil
	}
}

// Tick writes a coalesced live patch once the throttle allows it.
func (s *Session) Tick(ctx context.Context, now time.Time) error {
	p, ok := s.live.Flush(now)
	if !ok {
		return nil
	}
	switch s.state {
	case StateDrawing:
		return s.send(ctx, s.strokeID, p)
	case StateDragging:
		return s.send(ctx, s.drag.id, p)
	default:
		return nil
	}
}

func (s *Session) offer(ctx context.Context, now time.Time, id string, p board.Patch) error {
	out, ok := s.live.Offer(now, p)
	if !ok {
		return nil
	}
	return s.send(ctx, id, out)
}

func (s *Session) send(ctx context.Context, id string, p board.Patch) error {
	switch s.state {
	case StateDrawing:
		s.sent = len(p.Points)
	case StateDragging:
		s.drag.moved = true
	}
	return s.w.PatchLive(ctx, id, p)
}

func (s *Session) beginStroke(ctx context.Context, p board.Point) error {
	id := s.w.NewID()
	draft := &board.Entity{ID: id, Shape: &board.Stroke{
		Points:      []board.Point{p},
		Color:       s.opts.Style.Color,
		StrokeWidth: s.opts.Style.StrokeWidth,
	}}
	if _, err := s.w.Create(ctx, draft); err != nil {
		return err
	}
	s.state = StateDrawing
	s.strokeID = id
	s.points = []board.Point{p}
	s.sent = 1
	s.live.Reset()
	return nil
}

func (s *Session) endStroke(ctx context.Context, p board.Point) error {
	if last := s.points[len(s.points)-1]; last != p {
		s.points = append(s.points, p)
	}
	id, points, sent := s.strokeID, s.points, s.sent
	s.state, s.strokeID, s.points, s.sent = StateIdle, "", nil, 0
	s.live.Reset()

	if len(points) < s.opts.MinStrokePoints {
		return s.w.Discard(ctx, id)
	}
	if len(points) == sent {
		return nil
	}
	return s.w.PatchLive(ctx, id, board.Patch{Points: points})
}

func (s *Session) beginDrag(p board.Point) error {
	hit, ok := s.scene.HitTest(p)
	if !ok {
		s.selected = ""
		return nil
	}
	e := hit.Entity.Clone()
	handle := hit.Handle
	if _, _, bounded := board.Box(e.Shape); !bounded {
		handle = render.HandleBody
	}
	s.selected = e.ID
	s.state = StateDragging
	s.drag = &drag{
		id:      e.ID,
		handle:  handle,
		origin:  p,
		last:    p,
		start:   e,
		inverse: board.GeometryOf(e),
	}
	s.live.Reset()
	return nil
}

func (s *Session) endDrag(ctx context.Context, p board.Point) error {
	d := s.drag
	final := s.dragPatch(p)
	s.state, s.drag = StateIdle, nil
	s.live.Reset()

	if p == d.origin {
		// Back where it started: nothing to record, but live patches may
		// have moved it.
		if d.moved {
			return s.w.PatchLive(ctx, d.id, final)
		}
		return nil
	}
	return s.w.Commit(ctx, d.id, final, d.inverse)
}

// dragPatch computes the geometry for the drag in progress with the pointer
// at p.
func (s *Session) dragPatch(p board.Point) board.Patch {
	d := s.drag
	delta := p.Sub(d.origin)

	if stroke, ok := d.start.Shape.(*board.Stroke); ok {
		moved := make([]board.Point, len(stroke.Points))
		for i, pt := range stroke.Points {
			moved[i] = pt.Add(delta)
		}
		return board.Patch{Points: moved}
	}

	pos, size, _ := board.Box(d.start.Shape)
	if d.handle == render.HandleResize {
		size.Width = max(size.Width+delta.X, minResize)
		size.Height = max(size.Height+delta.Y, minResize)
		return board.Patch{Size: &size}
	}
	pos = pos.Add(delta)
	return board.Patch{Position: &pos}
}

func (s *Session) defaultShape(p board.Point) board.Shape {
	st := s.opts.Style
	switch s.tool {
	case ToolRectangle:
		return &board.Rectangle{Position: p, Size: s.opts.ShapeSize, Color: st.Color, StrokeWidth: st.StrokeWidth}
	case ToolEllipse:
		return &board.Ellipse{Position: p, Size: s.opts.ShapeSize, Color: st.Color, StrokeWidth: st.StrokeWidth}
	case ToolText:
		return &board.Text{Position: p, Size: s.opts.TextSize, Color: st.Color, FontSize: st.FontSize}
	case ToolSticky:
		return &board.Sticky{Position: p, Size: s.opts.StickySize, Color: st.StickyColor, FontSize: st.FontSize}
	default:
		panic(fmt.Sprintf("drawing: no default shape for tool %q", s.tool))
	}
}

func clonePoints(points []board.Point) []board.Point {
	out := make([]board.Point, len(points))
	copy(out, points)
	return out
}
