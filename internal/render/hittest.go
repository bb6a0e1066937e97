package render

import (
	"fmt"
	"math"

	"github.com/dyluth/easel/pkg/board"
)

// Handle is the part of an entity a pointer landed on.
type Handle string

const (
	HandleBody   Handle = "body"
	HandleResize Handle = "resize" // bottom-right corner of a bounded shape
)

// Hit is the result of a successful hit test.
type Hit struct {
	Entity *board.Entity
	Handle Handle
}

// HitTest returns the topmost entity under p. entities must be in paint order
// (bottom first), as returned by the entity store. tolerance is in canvas
// units; callers convert a screen-space slop with the viewport scale.
func HitTest(entities []*board.Entity, p board.Point, tolerance float64) (Hit, bool) {
	for i := len(entities) - 1; i >= 0; i-- {
		e := entities[i]
		if e.Deleted || e.Shape == nil {
			continue
		}
		if handle, ok := hitShape(e.Shape, p, tolerance); ok {
			return Hit{Entity: e, Handle: handle}, true
		}
	}
	return Hit{}, false
}

func hitShape(s board.Shape, p board.Point, tol float64) (Handle, bool) {
	switch v := s.(type) {
	case *board.Stroke:
		reach := tol + v.StrokeWidth/2
		if len(v.Points) == 1 {
			return HandleBody, math.Hypot(p.X-v.Points[0].X, p.Y-v.Points[0].Y) <= reach
		}
		for i := 1; i < len(v.Points); i++ {
			if segmentDistance(p, v.Points[i-1], v.Points[i]) <= reach {
				return HandleBody, true
			}
		}
		return "", false
	case *board.Rectangle:
		return hitBox(Bounds(v), p, tol, nil)
	case *board.Ellipse:
		return hitBox(Bounds(v), p, tol, insideEllipse)
	case *board.Text:
		return hitBox(Bounds(v), p, tol, nil)
	case *board.Sticky:
		return hitBox(Bounds(v), p, tol, nil)
	default:
		panic(fmt.Sprintf("render: unhandled shape %T", s))
	}
}

// hitBox checks the resize handle first, then the body. inside refines the
// body test for non-rectangular shapes.
func hitBox(r Rect, p board.Point, tol float64, inside func(Rect, board.Point, float64) bool) (Handle, bool) {
	if math.Abs(p.X-r.Max.X) <= tol && math.Abs(p.Y-r.Max.Y) <= tol {
		return HandleResize, true
	}
	if !r.Inset(tol).Contains(p) {
		return "", false
	}
	if inside != nil && !inside(r, p, tol) {
		return "", false
	}
	return HandleBody, true
}

func insideEllipse(r Rect, p board.Point, tol float64) bool {
	rx, ry := r.Width()/2+tol, r.Height()/2+tol
	if rx <= 0 || ry <= 0 {
		return false
	}
	cx, cy := (r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2
	dx, dy := (p.X-cx)/rx, (p.Y-cy)/ry
	return dx*dx+dy*dy <= 1
}
