// Package script replays scripted pointer gestures against a canvas.
//
// A script is a YAML document with a list of steps. Each step carries exactly
// one action; pointer coordinates are in screen space, as a UI would deliver
// them:
//
//	name: two boxes
//	steps:
//	  - tool: rectangle
//	  - down: {x: 40, y: 40}
//	  - up: {x: 40, y: 40}
//	  - tool: select
//	  - drag: {from: {x: 50, y: 50}, to: {x: 200, y: 120}}
//	  - undo: 1
package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dyluth/easel/internal/drawing"
	"github.com/dyluth/easel/internal/render"
	"github.com/dyluth/easel/pkg/board"
	"gopkg.in/yaml.v3"
)

// SelectedEntity is the delete target meaning "whatever is selected".
const SelectedEntity = "selected"

// defaultDragSteps is the number of intermediate moves in a drag step.
const defaultDragSteps = 4

// Script is a named list of steps.
type Script struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step is one scripted action. Exactly one field is set.
type Step struct {
	Tool   drawing.Tool  `yaml:"tool,omitempty"`
	Down   *board.Point  `yaml:"down,omitempty"`
	Move   *board.Point  `yaml:"move,omitempty"`
	Up     *board.Point  `yaml:"up,omitempty"`
	Drag   *Drag         `yaml:"drag,omitempty"`
	Zoom   *Zoom         `yaml:"zoom,omitempty"`
	Pan    *board.Point  `yaml:"pan,omitempty"`
	Patch  *board.Patch  `yaml:"patch,omitempty"` // Applied to the selection
	Undo   int           `yaml:"undo,omitempty"`
	Redo   int           `yaml:"redo,omitempty"`
	Delete string        `yaml:"delete,omitempty"` // Entity id or "selected"
	Wait   time.Duration `yaml:"wait,omitempty"`
}

// Drag is a press at From, Steps evenly spaced moves and a release at To.
type Drag struct {
	From  board.Point `yaml:"from"`
	To    board.Point `yaml:"to"`
	Steps int         `yaml:"steps,omitempty"`
}

// Zoom zooms by exp(Delta) around the screen point At.
type Zoom struct {
	At    board.Point `yaml:"at"`
	Delta float64     `yaml:"delta"`
}

// Target is the canvas surface a script drives. *canvas.Canvas implements it.
type Target interface {
	SetTool(t drawing.Tool) error
	Pointer(ev render.PointerEvent) error
	ZoomAt(p board.Point, delta float64)
	Pan(dx, dy float64)
	PatchEntity(entityID string, p board.Patch) error
	DeleteEntity(entityID string) error
	Undo() error
	Redo() error
	Selection() string
	Sync(ctx context.Context) error
}

// Action names the single action a step carries.
func (s Step) Action() string {
	actions := s.actions()
	if len(actions) != 1 {
		return ""
	}
	return actions[0]
}

func (s Step) actions() []string {
	var set []string
	add := func(ok bool, name string) {
		if ok {
			set = append(set, name)
		}
	}
	add(s.Tool != "", "tool")
	add(s.Down != nil, "down")
	add(s.Move != nil, "move")
	add(s.Up != nil, "up")
	add(s.Drag != nil, "drag")
	add(s.Zoom != nil, "zoom")
	add(s.Pan != nil, "pan")
	add(s.Patch != nil, "patch")
	add(s.Undo != 0, "undo")
	add(s.Redo != 0, "redo")
	add(s.Delete != "", "delete")
	add(s.Wait != 0, "wait")
	return set
}

// Validate checks a single step.
func (s Step) Validate() error {
	actions := s.actions()
	switch len(actions) {
	case 0:
		return errors.New("step has no action")
	case 1:
	default:
		return fmt.Errorf("step has more than one action: %v", actions)
	}

	switch {
	case s.Tool != "":
		return s.Tool.Validate()
	case s.Drag != nil && s.Drag.Steps < 0:
		return fmt.Errorf("drag steps must be >= 0, got %d", s.Drag.Steps)
	case s.Patch != nil && s.Patch.IsEmpty():
		return errors.New("patch has no fields")
	case s.Undo < 0 || s.Redo < 0:
		return errors.New("undo and redo counts must be positive")
	case s.Wait < 0:
		return fmt.Errorf("wait must be positive, got %s", s.Wait)
	}
	return nil
}

// Validate checks every step.
func (s *Script) Validate() error {
	if len(s.Steps) == 0 {
		return errors.New("script has no steps")
	}
	for i, step := range s.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

// Parse decodes and validates a script. Unknown keys are rejected.
func Parse(data []byte) (*Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	s := &Script{}
	if err := dec.Decode(s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	return s, nil
}

// Load reads a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return Parse(data)
}

// Run plays every step against t and waits until the canvas has processed
// them all.
func Run(ctx context.Context, t Target, s *Script) error {
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := play(ctx, t, step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Action(), err)
		}
	}
	return t.Sync(ctx)
}

func play(ctx context.Context, t Target, step Step) error {
	switch {
	case step.Tool != "":
		return t.SetTool(step.Tool)
	case step.Down != nil:
		return pointer(t, render.PointerDown, *step.Down)
	case step.Move != nil:
		return pointer(t, render.PointerMove, *step.Move)
	case step.Up != nil:
		return pointer(t, render.PointerUp, *step.Up)
	case step.Drag != nil:
		return drag(t, *step.Drag)
	case step.Zoom != nil:
		// The viewport changes immediately; earlier pointer events were
		// already converted when they were enqueued.
		t.ZoomAt(step.Zoom.At, step.Zoom.Delta)
		return nil
	case step.Pan != nil:
		t.Pan(step.Pan.X, step.Pan.Y)
		return nil
	case step.Patch != nil:
		id, err := selection(ctx, t)
		if err != nil {
			return err
		}
		return t.PatchEntity(id, *step.Patch)
	case step.Undo > 0:
		return repeat(step.Undo, t.Undo)
	case step.Redo > 0:
		return repeat(step.Redo, t.Redo)
	case step.Delete != "":
		id := step.Delete
		if id == SelectedEntity {
			var err error
			if id, err = selection(ctx, t); err != nil {
				return err
			}
		}
		return t.DeleteEntity(id)
	case step.Wait > 0:
		select {
		case <-time.After(step.Wait):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return errors.New("step has no action")
}

func pointer(t Target, typ render.EventType, p board.Point) error {
	return t.Pointer(render.PointerEvent{Type: typ, X: p.X, Y: p.Y})
}

func drag(t Target, d Drag) error {
	steps := d.Steps
	if steps == 0 {
		steps = defaultDragSteps
	}
	if err := pointer(t, render.PointerDown, d.From); err != nil {
		return err
	}
	delta := d.To.Sub(d.From)
	for i := 1; i <= steps; i++ {
		f := float64(i) / float64(steps)
		p := board.Point{X: d.From.X + delta.X*f, Y: d.From.Y + delta.Y*f}
		if err := pointer(t, render.PointerMove, p); err != nil {
			return err
		}
	}
	return pointer(t, render.PointerUp, d.To)
}

// selection waits for queued gestures so the selection reflects them.
func selection(ctx context.Context, t Target) (string, error) {
	if err := t.Sync(ctx); err != nil {
		return "", err
	}
	id := t.Selection()
	if id == "" {
		return "", errors.New("nothing is selected")
	}
	return id, nil
}

func repeat(n int, f func() error) error {
	for i := 0; i < n; i++ {
		if err := f(); err != nil {
			return err
		}
	}
	return nil
}
