package board

import (
	"fmt"
	"math"
)

// Shape is the closed set of entity variants. The unexported methods keep the
// set sealed to this package, so a type switch over the five variants below is
// exhaustive.
type Shape interface {
	Kind() Kind
	Validate() error
	clone() Shape
}

// Stroke is a freehand polyline. Points grow while the stroke is being drawn
// and are fixed once the drawing gesture ends.
type Stroke struct {
	Points      []Point
	Color       string
	StrokeWidth float64
}

// Rectangle is an axis-aligned box anchored at its top-left corner.
type Rectangle struct {
	Position    Point
	Size        Size
	Color       string
	StrokeWidth float64
}

// Ellipse is inscribed in the box given by Position and Size.
type Ellipse struct {
	Position    Point
	Size        Size
	Color       string
	StrokeWidth float64
}

// Text is a free-floating label.
type Text struct {
	Position Point
	Size     Size
	Color    string
	FontSize float64
	Text     string
}

// Sticky is a filled note with text.
type Sticky struct {
	Position Point
	Size     Size
	Color    string
	FontSize float64
	Text     string
}

func (*Stroke) Kind() Kind    { return KindStroke }
func (*Rectangle) Kind() Kind { return KindRectangle }
func (*Ellipse) Kind() Kind   { return KindEllipse }
func (*Text) Kind() Kind      { return KindText }
func (*Sticky) Kind() Kind    { return KindSticky }

func (s *Stroke) Validate() error {
	if len(s.Points) == 0 {
		return fmt.Errorf("stroke must have at least one point")
	}
	if err := validatePoints(s.Points); err != nil {
		return err
	}
	return validateStrokeWidth(s.StrokeWidth)
}

func (r *Rectangle) Validate() error {
	if err := validateBox(r.Position, r.Size); err != nil {
		return err
	}
	return validateStrokeWidth(r.StrokeWidth)
}

func (e *Ellipse) Validate() error {
	if err := validateBox(e.Position, e.Size); err != nil {
		return err
	}
	return validateStrokeWidth(e.StrokeWidth)
}

func (t *Text) Validate() error {
	if err := validateBox(t.Position, t.Size); err != nil {
		return err
	}
	return validateFontSize(t.FontSize)
}

func (s *Sticky) Validate() error {
	if err := validateBox(s.Position, s.Size); err != nil {
		return err
	}
	return validateFontSize(s.FontSize)
}

func (s *Stroke) clone() Shape {
	c := *s
	c.Points = append([]Point(nil), s.Points...)
	return &c
}

func (r *Rectangle) clone() Shape { c := *r; return &c }
func (e *Ellipse) clone() Shape   { c := *e; return &c }
func (t *Text) clone() Shape      { c := *t; return &c }
func (s *Sticky) clone() Shape    { c := *s; return &c }

// NewShape returns a zero-valued shape of the given kind.
func NewShape(k Kind) (Shape, error) {
	switch k {
	case KindStroke:
		return &Stroke{}, nil
	case KindRectangle:
		return &Rectangle{}, nil
	case KindEllipse:
		return &Ellipse{}, nil
	case KindText:
		return &Text{}, nil
	case KindSticky:
		return &Sticky{}, nil
	default:
		return nil, fmt.Errorf("unknown entity kind: %q", k)
	}
}

// Box returns the position and size of a bounded shape. ok is false for strokes.
func Box(s Shape) (pos Point, size Size, ok bool) {
	switch v := s.(type) {
	case *Rectangle:
		return v.Position, v.Size, true
	case *Ellipse:
		return v.Position, v.Size, true
	case *Text:
		return v.Position, v.Size, true
	case *Sticky:
		return v.Position, v.Size, true
	case *Stroke:
		return Point{}, Size{}, false
	default:
		panic(fmt.Sprintf("board: unhandled shape %T", s))
	}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func validatePosition(p Point) error {
	if !finite(p.X, p.Y) {
		return fmt.Errorf("position must be finite, got (%g, %g)", p.X, p.Y)
	}
	return nil
}

func validatePoints(points []Point) error {
	for _, p := range points {
		if !finite(p.X, p.Y) {
			return fmt.Errorf("points must be finite, got (%g, %g)", p.X, p.Y)
		}
	}
	return nil
}

func validateBox(p Point, s Size) error {
	if err := validatePosition(p); err != nil {
		return err
	}
	return validateSize(s)
}

func validateSize(s Size) error {
	if !finite(s.Width, s.Height) {
		return fmt.Errorf("size must be finite, got %gx%g", s.Width, s.Height)
	}
	if s.Width < 0 || s.Height < 0 {
		return fmt.Errorf("size must not be negative, got %gx%g", s.Width, s.Height)
	}
	return nil
}

func validateStrokeWidth(w float64) error {
	if w < 0 {
		return fmt.Errorf("stroke width must not be negative, got %g", w)
	}
	return nil
}

func validateFontSize(f float64) error {
	if f <= 0 {
		return fmt.Errorf("font size must be positive, got %g", f)
	}
	return nil
}
