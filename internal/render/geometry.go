package render

import (
	"fmt"
	"math"

	"github.com/dyluth/easel/pkg/board"
)

// Rect is an axis-aligned box.
type Rect struct {
	Min board.Point `json:"min"`
	Max board.Point `json:"max"`
}

// Width of the box.
func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

// Height of the box.
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Inset grows the box by d on every side (shrinks for negative d).
func (r Rect) Inset(d float64) Rect {
	return Rect{
		Min: board.Point{X: r.Min.X - d, Y: r.Min.Y - d},
		Max: board.Point{X: r.Max.X + d, Y: r.Max.Y + d},
	}
}

// Contains reports whether p lies inside the box, edges included.
func (r Rect) Contains(p board.Point) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// Bounds returns the canvas-space bounding box of a shape. Stroke bounds
// include half the stroke width.
func Bounds(s board.Shape) Rect {
	switch v := s.(type) {
	case *board.Stroke:
		if len(v.Points) == 0 {
			return Rect{}
		}
		r := Rect{Min: v.Points[0], Max: v.Points[0]}
		for _, p := range v.Points[1:] {
			r.Min.X = math.Min(r.Min.X, p.X)
			r.Min.Y = math.Min(r.Min.Y, p.Y)
			r.Max.X = math.Max(r.Max.X, p.X)
			r.Max.Y = math.Max(r.Max.Y, p.Y)
		}
		return r.Inset(v.StrokeWidth / 2)
	case *board.Rectangle:
		return box(v.Position, v.Size)
	case *board.Ellipse:
		return box(v.Position, v.Size)
	case *board.Text:
		return box(v.Position, v.Size)
	case *board.Sticky:
		return box(v.Position, v.Size)
	default:
		panic(fmt.Sprintf("render: unhandled shape %T", s))
	}
}

func box(pos board.Point, size board.Size) Rect {
	return Rect{Min: pos, Max: board.Point{X: pos.X + size.Width, Y: pos.Y + size.Height}}
}

// segmentDistance returns the distance from p to the segment ab.
func segmentDistance(p, a, b board.Point) float64 {
	ab := b.Sub(a)
	lenSq := ab.X*ab.X + ab.Y*ab.Y
	if lenSq == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*ab.X + (p.Y-a.Y)*ab.Y) / lenSq
	t = math.Max(0, math.Min(1, t))
	closest := board.Point{X: a.X + t*ab.X, Y: a.Y + t*ab.Y}
	return math.Hypot(p.X-closest.X, p.Y-closest.Y)
}
