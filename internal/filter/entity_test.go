package filter

import (
	"testing"

	"github.com/dyluth/easel/pkg/board"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func entity(kind board.Kind, owner string, createdMs int64, deleted bool) *board.Entity {
	shape, _ := board.NewShape(kind)
	return &board.Entity{
		ID:          uuid.NewString(),
		OwnerID:     owner,
		CreatedAtMs: createdMs,
		Deleted:     deleted,
		Shape:       shape,
	}
}

func TestCriteriaMatches(t *testing.T) {
	rect := entity(board.KindRectangle, "ada", 2000, false)
	sticky := entity(board.KindSticky, "grace", 3000, false)
	stroke := entity(board.KindStroke, "ada", 1000, false)
	gone := entity(board.KindEllipse, "ada", 2500, true)

	tests := []struct {
		name     string
		criteria Criteria
		want     []*board.Entity
	}{
		{"no filters hides deleted", Criteria{}, []*board.Entity{rect, sticky, stroke}},
		{"include deleted", Criteria{IncludeDeleted: true}, []*board.Entity{rect, sticky, stroke, gone}},
		{"kind glob", Criteria{KindGlob: "s*"}, []*board.Entity{sticky, stroke}},
		{"exact kind", Criteria{KindGlob: "rectangle"}, []*board.Entity{rect}},
		{"owner", Criteria{Owner: "grace"}, []*board.Entity{sticky}},
		{"since", Criteria{SinceMs: 2000}, []*board.Entity{rect, sticky}},
		{"until", Criteria{UntilMs: 2000}, []*board.Entity{rect, stroke}},
		{"combined", Criteria{Owner: "ada", SinceMs: 1500, IncludeDeleted: true}, []*board.Entity{rect, gone}},
		{"bad glob matches nothing", Criteria{KindGlob: "["}, []*board.Entity{}},
	}

	all := []*board.Entity{rect, sticky, stroke, gone}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.criteria.Apply(all))
		})
	}
}

func TestCriteriaValidate(t *testing.T) {
	assert.NoError(t, (&Criteria{}).Validate())
	assert.NoError(t, (&Criteria{KindGlob: "rect*"}).Validate())
	assert.Error(t, (&Criteria{KindGlob: "["}).Validate())
}
