// Package viewport maps between screen space and canvas space.
//
// A Viewport is local to one client and never persisted. Screen coordinates
// relate to canvas coordinates by
//
//	screen = canvas*Scale + Pan
//	canvas = (screen - Pan) / Scale
package viewport

import (
	"fmt"
	"math"

	"github.com/dyluth/easel/pkg/board"
)

// Viewport is a pan offset (in screen units) and a zoom scale.
type Viewport struct {
	PanX  float64 `json:"pan_x" yaml:"pan_x"`
	PanY  float64 `json:"pan_y" yaml:"pan_y"`
	Scale float64 `json:"scale" yaml:"scale"`
}

// Identity returns the viewport where screen and canvas coincide.
func Identity() Viewport {
	return Viewport{Scale: 1}
}

// Validate checks that the scale is positive and finite and the pan is finite.
func (v Viewport) Validate() error {
	if !(v.Scale > 0) || math.IsInf(v.Scale, 0) {
		return fmt.Errorf("viewport scale must be positive and finite, got %g", v.Scale)
	}
	for _, p := range []float64{v.PanX, v.PanY} {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("viewport pan must be finite, got (%g, %g)", v.PanX, v.PanY)
		}
	}
	return nil
}

// ScreenToCanvas maps a screen point into canvas space.
func ScreenToCanvas(p board.Point, v Viewport) board.Point {
	return board.Point{
		X: (p.X - v.PanX) / v.Scale,
		Y: (p.Y - v.PanY) / v.Scale,
	}
}

// CanvasToScreen maps a canvas point into screen space.
func CanvasToScreen(p board.Point, v Viewport) board.Point {
	return board.Point{
		X: p.X*v.Scale + v.PanX,
		Y: p.Y*v.Scale + v.PanY,
	}
}

// Limits bounds the zoom scale.
type Limits struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// DefaultLimits allows zooming from 10% to 800%.
var DefaultLimits = Limits{Min: 0.1, Max: 8}

// Clamp returns scale limited to [Min, Max].
func (l Limits) Clamp(scale float64) float64 {
	return math.Min(math.Max(scale, l.Min), l.Max)
}

// ZoomAt zooms by exp(delta) around a screen point using DefaultLimits.
func ZoomAt(p board.Point, delta float64, v Viewport) Viewport {
	return DefaultLimits.ZoomAt(p, delta, v)
}

// ZoomAt zooms by a factor of exp(delta), so equal and opposite deltas cancel.
// The canvas point under p before the zoom is still under p afterwards.
func (l Limits) ZoomAt(p board.Point, delta float64, v Viewport) Viewport {
	anchor := ScreenToCanvas(p, v)
	scale := l.Clamp(v.Scale * math.Exp(delta))
	return Viewport{
		PanX:  p.X - anchor.X*scale,
		PanY:  p.Y - anchor.Y*scale,
		Scale: scale,
	}
}

// Pan shifts the viewport by a screen-space offset.
func Pan(v Viewport, dx, dy float64) Viewport {
	v.PanX += dx
	v.PanY += dy
	return v
}

// ScaleLength converts a canvas-space length to screen space.
func ScaleLength(l float64, v Viewport) float64 {
	return l * v.Scale
}
