package board

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestPatchApply(t *testing.T) {
	sticky := &Entity{
		ID: uuid.New().String(),
		Shape: &Sticky{
			Position: Point{X: 1, Y: 2},
			Size:     Size{Width: 160, Height: 120},
			Color:    "#fff59d",
			FontSize: 16,
			Text:     "hello",
		},
	}

	t.Run("applies relevant fields to a copy", func(t *testing.T) {
		out, err := Patch{Text: ptr("bye"), ZIndex: ptr(int64(7))}.Apply(sticky)
		require.NoError(t, err)
		assert.Equal(t, "bye", out.Shape.(*Sticky).Text)
		assert.Equal(t, int64(7), out.ZIndex)
		assert.Equal(t, "hello", sticky.Shape.(*Sticky).Text, "input must not change")
		assert.Equal(t, int64(0), sticky.ZIndex)
	})

	t.Run("rejects stroke width on a sticky", func(t *testing.T) {
		_, err := Patch{StrokeWidth: ptr(2.0)}.Apply(sticky)
		assert.Error(t, err)
	})

	t.Run("rejects invalid resulting geometry", func(t *testing.T) {
		_, err := Patch{Size: &Size{Width: -1, Height: 5}}.Apply(sticky)
		assert.Error(t, err)
	})

	t.Run("stroke points are copied", func(t *testing.T) {
		stroke := &Entity{ID: uuid.New().String(), Shape: &Stroke{Points: []Point{{}}}}
		points := []Point{{X: 1}, {X: 2}}
		out, err := Patch{Points: points}.Apply(stroke)
		require.NoError(t, err)
		points[0].X = 99
		assert.Equal(t, 1.0, out.Shape.(*Stroke).Points[0].X)
	})
}

func TestPatchCapture(t *testing.T) {
	rect := &Entity{
		ID:     uuid.New().String(),
		ZIndex: 3,
		Shape: &Rectangle{
			Position: Point{X: 50, Y: 50},
			Size:     Size{Width: 100, Height: 40},
			Color:    "red",
		},
	}

	forward := Patch{Position: &Point{X: 0, Y: 0}, ZIndex: ptr(int64(9))}
	inverse, err := forward.Capture(rect)
	require.NoError(t, err)

	assert.Equal(t, &Point{X: 50, Y: 50}, inverse.Position)
	assert.Equal(t, int64(3), *inverse.ZIndex)
	assert.Nil(t, inverse.Size, "untouched fields stay out of the inverse")
	assert.Nil(t, inverse.Color)

	moved, err := forward.Apply(rect)
	require.NoError(t, err)
	restored, err := inverse.Apply(moved)
	require.NoError(t, err)
	assert.Equal(t, rect, restored)
}

func TestPatchValidate(t *testing.T) {
	tests := []struct {
		name  string
		kind  Kind
		patch Patch
		ok    bool
	}{
		{"points on stroke", KindStroke, Patch{Points: []Point{{}}}, true},
		{"empty points", KindStroke, Patch{Points: []Point{}}, false},
		{"position on stroke", KindStroke, Patch{Position: &Point{}}, false},
		{"text on ellipse", KindEllipse, Patch{Text: ptr("x")}, false},
		{"text on text", KindText, Patch{Text: ptr("x")}, true},
		{"zero font size", KindText, Patch{FontSize: ptr(0.0)}, false},
		{"color on anything", KindRectangle, Patch{Color: ptr("blue")}, true},
		{"unknown kind", Kind("triangle"), Patch{}, false},
		{"nan point", KindStroke, Patch{Points: []Point{{X: math.NaN()}}}, false},
		{"infinite point", KindStroke, Patch{Points: []Point{{Y: math.Inf(-1)}}}, false},
		{"nan position", KindRectangle, Patch{Position: &Point{X: math.NaN()}}, false},
		{"infinite position", KindSticky, Patch{Position: &Point{Y: math.Inf(1)}}, false},
		{"nan size", KindEllipse, Patch{Size: &Size{Width: math.NaN()}}, false},
		{"infinite size", KindText, Patch{Size: &Size{Height: math.Inf(1)}}, false},
		{"finite position", KindRectangle, Patch{Position: &Point{X: -5, Y: 1e9}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Validate(tt.kind)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestGeometryOf(t *testing.T) {
	stroke := &Entity{Shape: &Stroke{Points: []Point{{X: 1, Y: 1}}}}
	assert.Equal(t, Patch{Points: []Point{{X: 1, Y: 1}}}, GeometryOf(stroke))

	ellipse := &Entity{Shape: &Ellipse{Position: Point{X: 2}, Size: Size{Width: 3}}}
	g := GeometryOf(ellipse)
	assert.Equal(t, &Point{X: 2}, g.Position)
	assert.Equal(t, &Size{Width: 3}, g.Size)
}

func TestPatchFields(t *testing.T) {
	assert.True(t, Patch{}.IsEmpty())
	assert.Equal(t, []string{"position", "text"}, Patch{Position: &Point{}, Text: ptr("")}.Fields())
}
