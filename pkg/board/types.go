package board

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Entity is a persisted drawable object: a stroke, a primitive shape or a
// text/sticky node. Entities are the unit of persistence and of undo.
type Entity struct {
	ID          string // UUID - assigned by the creating client, immutable
	OwnerID     string // Creating user's id (informational only)
	ZIndex      int64  // Paint order, higher paints on top
	Deleted     bool   // Soft-delete flag, only flipped through the mutation gateway
	CreatedAtMs int64  // Server-assigned creation time, the feed's ordering key
	UpdatedAtMs int64  // Last write time as reported by the writing client
	Revision    int64  // Write counter kept by Redis, higher is newer
	Shape       Shape  // Kind-specific geometry and style
}

// Kind names the variant of an entity's shape.
type Kind string

const (
	KindStroke    Kind = "stroke"
	KindRectangle Kind = "rectangle"
	KindEllipse   Kind = "ellipse"
	KindText      Kind = "text"
	KindSticky    Kind = "sticky"
)

// Kinds lists every entity kind in a stable order.
var Kinds = []Kind{KindStroke, KindRectangle, KindEllipse, KindText, KindSticky}

// Validate checks that the kind is one of the known variants.
func (k Kind) Validate() error {
	switch k {
	case KindStroke, KindRectangle, KindEllipse, KindText, KindSticky:
		return nil
	default:
		return fmt.Errorf("unknown entity kind: %q", k)
	}
}

// Point is a coordinate pair. Whether it is in screen or canvas space depends on
// where it is used; everything persisted is in canvas space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by d.
func (p Point) Add(d Point) Point {
	return Point{X: p.X + d.X, Y: p.Y + d.Y}
}

// Sub returns the vector from q to p.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Size is the extent of a bounded shape.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Identity is the externally supplied description of a collaborator.
type Identity struct {
	UserID      string `yaml:"id" json:"user_id"`
	DisplayName string `yaml:"name" json:"display_name"`
	Color       string `yaml:"color" json:"color"`
}

// Validate checks that the identity carries a user id.
func (i Identity) Validate() error {
	if i.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	return nil
}

// Presence is the ephemeral liveness record of one collaborator. It is
// overwritten on every update and never tracked by undo.
type Presence struct {
	UserID      string  `json:"user_id"`
	DisplayName string  `json:"display_name"`
	Color       string  `json:"color"`
	X           float64 `json:"x"` // Canvas space
	Y           float64 `json:"y"` // Canvas space
	LastSeenMs  int64   `json:"last_seen_ms"`
	Left        bool    `json:"left,omitempty"` // Set on the final record a client publishes when it disconnects
}

// Kind returns the entity's kind, derived from its shape variant.
func (e *Entity) Kind() Kind {
	if e.Shape == nil {
		return ""
	}
	return e.Shape.Kind()
}

// Validate checks the entity's identity fields and shape.
func (e *Entity) Validate() error {
	if !isValidUUID(e.ID) {
		return fmt.Errorf("invalid entity id: %q", e.ID)
	}
	if e.Shape == nil {
		return fmt.Errorf("entity %s has no shape", e.ID)
	}
	if err := e.Shape.Validate(); err != nil {
		return fmt.Errorf("invalid %s: %w", e.Shape.Kind(), err)
	}
	return nil
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := *e
	if e.Shape != nil {
		c.Shape = e.Shape.clone()
	}
	return &c
}

var boardIDPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,62}[a-z0-9])?$`)

// ValidateBoardID checks that a board id is safe to embed in Redis keys.
func ValidateBoardID(id string) error {
	if id == "" {
		return fmt.Errorf("board id cannot be empty")
	}
	if !boardIDPattern.MatchString(id) {
		return fmt.Errorf("invalid board id %q: use lowercase letters, digits and hyphens", id)
	}
	return nil
}

// isValidUUID checks if a string is a valid UUID.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
