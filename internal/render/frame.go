// Package render turns the visible entity set into a screen-space display list
// and answers hit tests.
//
// Rendering is a pure function of (entities, cursors, viewport). Nothing here
// owns state: the canvas loop composes a fresh Frame whenever the entity store
// or the presence map changes and hands it to whatever paints it.
package render

import (
	"fmt"

	"github.com/dyluth/easel/internal/viewport"
	"github.com/dyluth/easel/pkg/board"
)

// EventType is the phase of a pointer gesture.
type EventType string

const (
	PointerDown EventType = "down"
	PointerMove EventType = "move"
	PointerUp   EventType = "up"
)

// Validate checks that the event type is known.
func (t EventType) Validate() error {
	switch t {
	case PointerDown, PointerMove, PointerUp:
		return nil
	default:
		return fmt.Errorf("unknown pointer event type: %q", t)
	}
}

// PointerEvent is the only raw input the canvas accepts. X and Y are in
// screen space.
type PointerEvent struct {
	Type EventType `json:"type" yaml:"type"`
	X    float64   `json:"x" yaml:"x"`
	Y    float64   `json:"y" yaml:"y"`
}

// Point returns the event position.
func (e PointerEvent) Point() board.Point {
	return board.Point{X: e.X, Y: e.Y}
}

// Item is one entity in screen space.
type Item struct {
	EntityID    string        `json:"id"`
	Kind        board.Kind    `json:"kind"`
	Bounds      Rect          `json:"bounds"`
	Points      []board.Point `json:"points,omitempty"`
	Color       string        `json:"color"`
	StrokeWidth float64       `json:"stroke_width,omitempty"`
	FontSize    float64       `json:"font_size,omitempty"`
	Text        string        `json:"text,omitempty"`
	Filled      bool          `json:"filled,omitempty"`
}

// Cursor is a collaborator's pointer in screen space.
type Cursor struct {
	UserID      string  `json:"user_id"`
	DisplayName string  `json:"display_name"`
	Color       string  `json:"color"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}

// Frame is a complete display list. Items are in paint order.
type Frame struct {
	Viewport viewport.Viewport `json:"viewport"`
	Items    []Item            `json:"items"`
	Cursors  []Cursor          `json:"cursors"`
}

// Compose projects entities (paint order, visible only) and cursors (canvas
// space) through the viewport.
func Compose(entities []*board.Entity, cursors []board.Presence, v viewport.Viewport) Frame {
	f := Frame{
		Viewport: v,
		Items:    make([]Item, 0, len(entities)),
		Cursors:  make([]Cursor, 0, len(cursors)),
	}
	for _, e := range entities {
		if e.Deleted || e.Shape == nil {
			continue
		}
		f.Items = append(f.Items, item(e, v))
	}
	for _, c := range cursors {
		p := viewport.CanvasToScreen(board.Point{X: c.X, Y: c.Y}, v)
		f.Cursors = append(f.Cursors, Cursor{
			UserID:      c.UserID,
			DisplayName: c.DisplayName,
			Color:       c.Color,
			X:           p.X,
			Y:           p.Y,
		})
	}
	return f
}

func item(e *board.Entity, v viewport.Viewport) Item {
	it := Item{EntityID: e.ID, Kind: e.Kind(), Bounds: toScreen(Bounds(e.Shape), v)}

	switch s := e.Shape.(type) {
	case *board.Stroke:
		it.Color = s.Color
		it.StrokeWidth = viewport.ScaleLength(s.StrokeWidth, v)
		it.Points = make([]board.Point, len(s.Points))
		for i, p := range s.Points {
			it.Points[i] = viewport.CanvasToScreen(p, v)
		}
	case *board.Rectangle:
		it.Color = s.Color
		it.StrokeWidth = viewport.ScaleLength(s.StrokeWidth, v)
	case *board.Ellipse:
		it.Color = s.Color
		it.StrokeWidth = viewport.ScaleLength(s.StrokeWidth, v)
	case *board.Text:
		it.Color = s.Color
		it.FontSize = viewport.ScaleLength(s.FontSize, v)
		it.Text = s.Text
	case *board.Sticky:
		it.Color = s.Color
		it.FontSize = viewport.ScaleLength(s.FontSize, v)
		it.Text = s.Text
		it.Filled = true
	default:
		panic(fmt.Sprintf("render: unhandled shape %T", e.Shape))
	}
	return it
}

func toScreen(r Rect, v viewport.Viewport) Rect {
	return Rect{Min: viewport.CanvasToScreen(r.Min, v), Max: viewport.CanvasToScreen(r.Max, v)}
}
