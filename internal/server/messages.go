package server

import (
	"fmt"

	"github.com/dyluth/easel/internal/drawing"
	"github.com/dyluth/easel/internal/render"
)

// Inbound message types sent by a remote renderer.
const (
	MsgPointer = "pointer"
	MsgTool    = "tool"
	MsgUndo    = "undo"
	MsgRedo    = "redo"
	MsgZoom    = "zoom"
	MsgPan     = "pan"
	MsgDelete  = "delete"
)

// Outbound message types.
const (
	MsgFrame   = "frame"
	MsgWarning = "warning"
	MsgError   = "error"
)

// Inbound is a message from a remote renderer. Which fields are read depends
// on Type.
type Inbound struct {
	Type     string               `json:"type"`
	Pointer  *render.PointerEvent `json:"pointer,omitempty"`
	Tool     drawing.Tool         `json:"tool,omitempty"`
	X        float64              `json:"x,omitempty"`
	Y        float64              `json:"y,omitempty"`
	Delta    float64              `json:"delta,omitempty"`
	EntityID string               `json:"entity_id,omitempty"` // Empty deletes the selection
}

// Validate checks that the fields Type needs are present.
func (m Inbound) Validate() error {
	switch m.Type {
	case MsgPointer:
		if m.Pointer == nil {
			return fmt.Errorf("pointer message without pointer event")
		}
		return m.Pointer.Type.Validate()
	case MsgTool:
		return m.Tool.Validate()
	case MsgUndo, MsgRedo, MsgZoom, MsgPan, MsgDelete:
		return nil
	default:
		return fmt.Errorf("unknown message type: %q", m.Type)
	}
}

// Outbound is a message to a remote renderer.
type Outbound struct {
	Type      string        `json:"type"`
	Frame     *render.Frame `json:"frame,omitempty"`
	Tool      drawing.Tool  `json:"tool,omitempty"`
	Selection string        `json:"selection,omitempty"`
	CanUndo   bool          `json:"can_undo,omitempty"`
	CanRedo   bool          `json:"can_redo,omitempty"`
	Message   string        `json:"message,omitempty"`
}

var errNothingSelected = fmt.Errorf("nothing is selected")
