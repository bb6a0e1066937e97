package board

import "fmt"

// Patch is a partial update of an entity. A nil field is left untouched.
// Identity fields (id, owner, kind, deleted, created time) cannot be patched;
// deletion goes through SetDeleted.
type Patch struct {
	Position    *Point   `json:"position,omitempty" yaml:"position,omitempty"`
	Size        *Size    `json:"size,omitempty" yaml:"size,omitempty"`
	Points      []Point  `json:"points,omitempty" yaml:"points,omitempty"`
	Color       *string  `json:"color,omitempty" yaml:"color,omitempty"`
	StrokeWidth *float64 `json:"stroke_width,omitempty" yaml:"stroke_width,omitempty"`
	FontSize    *float64 `json:"font_size,omitempty" yaml:"font_size,omitempty"`
	Text        *string  `json:"text,omitempty" yaml:"text,omitempty"`
	ZIndex      *int64   `json:"z_index,omitempty" yaml:"z_index,omitempty"`
}

// fieldSet exposes the patchable style and geometry fields of one shape
// variant. A nil pointer means the variant does not carry that field.
type fieldSet struct {
	position    *Point
	size        *Size
	points      *[]Point
	color       *string
	strokeWidth *float64
	fontSize    *float64
	text        *string
}

func fieldsOf(s Shape) fieldSet {
	switch v := s.(type) {
	case *Stroke:
		return fieldSet{points: &v.Points, color: &v.Color, strokeWidth: &v.StrokeWidth}
	case *Rectangle:
		return fieldSet{position: &v.Position, size: &v.Size, color: &v.Color, strokeWidth: &v.StrokeWidth}
	case *Ellipse:
		return fieldSet{position: &v.Position, size: &v.Size, color: &v.Color, strokeWidth: &v.StrokeWidth}
	case *Text:
		return fieldSet{position: &v.Position, size: &v.Size, color: &v.Color, fontSize: &v.FontSize, text: &v.Text}
	case *Sticky:
		return fieldSet{position: &v.Position, size: &v.Size, color: &v.Color, fontSize: &v.FontSize, text: &v.Text}
	default:
		panic(fmt.Sprintf("board: unhandled shape %T", s))
	}
}

// IsEmpty reports whether the patch touches no field.
func (p Patch) IsEmpty() bool {
	return p.Position == nil && p.Size == nil && p.Points == nil && p.Color == nil &&
		p.StrokeWidth == nil && p.FontSize == nil && p.Text == nil && p.ZIndex == nil
}

// Fields returns the names of the touched fields in hash-field form.
func (p Patch) Fields() []string {
	var names []string
	if p.Position != nil {
		names = append(names, "position")
	}
	if p.Size != nil {
		names = append(names, "size")
	}
	if p.Points != nil {
		names = append(names, "points")
	}
	if p.Color != nil {
		names = append(names, "color")
	}
	if p.StrokeWidth != nil {
		names = append(names, "stroke_width")
	}
	if p.FontSize != nil {
		names = append(names, "font_size")
	}
	if p.Text != nil {
		names = append(names, "text")
	}
	if p.ZIndex != nil {
		names = append(names, "z_index")
	}
	return names
}

// Validate checks the patch against the kind it will be applied to.
func (p Patch) Validate(k Kind) error {
	shape, err := NewShape(k)
	if err != nil {
		return err
	}
	return p.check(fieldsOf(shape), k)
}

func (p Patch) check(fs fieldSet, k Kind) error {
	bad := func(field string) error {
		return fmt.Errorf("field %q does not apply to a %s", field, k)
	}
	switch {
	case p.Position != nil && fs.position == nil:
		return bad("position")
	case p.Size != nil && fs.size == nil:
		return bad("size")
	case p.Points != nil && fs.points == nil:
		return bad("points")
	case p.StrokeWidth != nil && fs.strokeWidth == nil:
		return bad("stroke_width")
	case p.FontSize != nil && fs.fontSize == nil:
		return bad("font_size")
	case p.Text != nil && fs.text == nil:
		return bad("text")
	}
	if p.Points != nil && len(p.Points) == 0 {
		return fmt.Errorf("points must not be empty")
	}
	if err := validatePoints(p.Points); err != nil {
		return err
	}
	if p.Position != nil {
		if err := validatePosition(*p.Position); err != nil {
			return err
		}
	}
	if p.Size != nil {
		if err := validateSize(*p.Size); err != nil {
			return err
		}
	}
	if p.StrokeWidth != nil {
		if err := validateStrokeWidth(*p.StrokeWidth); err != nil {
			return err
		}
	}
	if p.FontSize != nil {
		if err := validateFontSize(*p.FontSize); err != nil {
			return err
		}
	}
	return nil
}

// Apply returns a copy of e with the patch applied. The input is not modified.
func (p Patch) Apply(e *Entity) (*Entity, error) {
	if e == nil || e.Shape == nil {
		return nil, fmt.Errorf("cannot patch an entity without a shape")
	}
	out := e.Clone()
	fs := fieldsOf(out.Shape)
	if err := p.check(fs, out.Kind()); err != nil {
		return nil, err
	}
	if p.Position != nil {
		*fs.position = *p.Position
	}
	if p.Size != nil {
		*fs.size = *p.Size
	}
	if p.Points != nil {
		*fs.points = append([]Point(nil), p.Points...)
	}
	if p.Color != nil {
		*fs.color = *p.Color
	}
	if p.StrokeWidth != nil {
		*fs.strokeWidth = *p.StrokeWidth
	}
	if p.FontSize != nil {
		*fs.fontSize = *p.FontSize
	}
	if p.Text != nil {
		*fs.text = *p.Text
	}
	if p.ZIndex != nil {
		out.ZIndex = *p.ZIndex
	}
	if err := out.Shape.Validate(); err != nil {
		return nil, fmt.Errorf("patched %s is invalid: %w", out.Kind(), err)
	}
	return out, nil
}

// Capture returns a patch holding e's current values for exactly the fields
// this patch touches. Applying the result after p restores those fields.
func (p Patch) Capture(e *Entity) (Patch, error) {
	if e == nil || e.Shape == nil {
		return Patch{}, fmt.Errorf("cannot capture from an entity without a shape")
	}
	fs := fieldsOf(e.Shape)
	if err := p.check(fs, e.Kind()); err != nil {
		return Patch{}, err
	}
	var inv Patch
	if p.Position != nil {
		v := *fs.position
		inv.Position = &v
	}
	if p.Size != nil {
		v := *fs.size
		inv.Size = &v
	}
	if p.Points != nil {
		inv.Points = append([]Point{}, (*fs.points)...)
	}
	if p.Color != nil {
		v := *fs.color
		inv.Color = &v
	}
	if p.StrokeWidth != nil {
		v := *fs.strokeWidth
		inv.StrokeWidth = &v
	}
	if p.FontSize != nil {
		v := *fs.fontSize
		inv.FontSize = &v
	}
	if p.Text != nil {
		v := *fs.text
		inv.Text = &v
	}
	if p.ZIndex != nil {
		v := e.ZIndex
		inv.ZIndex = &v
	}
	return inv, nil
}

// Clone returns a deep copy of the patch.
func (p Patch) Clone() Patch {
	c := p
	if p.Points != nil {
		c.Points = append([]Point{}, p.Points...)
	}
	return c
}

// GeometryOf returns a patch carrying the current geometry of e: position and
// size for bounded shapes, points for strokes.
func GeometryOf(e *Entity) Patch {
	switch v := e.Shape.(type) {
	case *Stroke:
		return Patch{Points: append([]Point{}, v.Points...)}
	case *Rectangle, *Ellipse, *Text, *Sticky:
		pos, size, _ := Box(v)
		return Patch{Position: &pos, Size: &size}
	default:
		panic(fmt.Sprintf("board: unhandled shape %T", e.Shape))
	}
}
