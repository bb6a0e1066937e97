// Package filter selects board entities for the inspection commands.
package filter

import (
	"path/filepath"

	"github.com/dyluth/easel/pkg/board"
)

// Criteria defines filtering criteria for entities.
// All filters are ANDed together.
type Criteria struct {
	SinceMs        int64  // Creation time lower bound, 0 = no filter
	UntilMs        int64  // Creation time upper bound, 0 = no filter
	KindGlob       string // Glob over the kind name, e.g. "s*" for strokes and stickies
	Owner          string // Exact owner id
	IncludeDeleted bool   // Keep soft-deleted entities
}

// Matches returns true if the entity passes every criterion. Zero criteria
// match everything except soft-deleted entities.
func (c *Criteria) Matches(e *board.Entity) bool {
	if e.Deleted && !c.IncludeDeleted {
		return false
	}
	if c.SinceMs > 0 && e.CreatedAtMs < c.SinceMs {
		return false
	}
	if c.UntilMs > 0 && e.CreatedAtMs > c.UntilMs {
		return false
	}
	if c.KindGlob != "" {
		matched, err := filepath.Match(c.KindGlob, string(e.Kind()))
		if err != nil || !matched {
			return false
		}
	}
	if c.Owner != "" && e.OwnerID != c.Owner {
		return false
	}
	return true
}

// Apply returns the matching entities, preserving order.
func (c *Criteria) Apply(entities []*board.Entity) []*board.Entity {
	out := make([]*board.Entity, 0, len(entities))
	for _, e := range entities {
		if c.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// Validate rejects malformed glob patterns up front.
func (c *Criteria) Validate() error {
	if c.KindGlob == "" {
		return nil
	}
	_, err := filepath.Match(c.KindGlob, "")
	return err
}
