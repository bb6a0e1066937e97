// Package inventory formats board entities for the `easel entities` command.
package inventory

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/easel/pkg/board"
	"github.com/olekukonko/tablewriter"
)

// OutputFormat selects how a listing is written.
type OutputFormat string

const (
	OutputFormatDefault OutputFormat = "default"
	OutputFormatJSONL   OutputFormat = "jsonl"
)

// FormatTable writes entities as a table, preceded by a title and followed by
// a count. Returns the number of entities written.
func FormatTable(w io.Writer, entities []*board.Entity, boardID string, now time.Time) (int, error) {
	if len(entities) == 0 {
		fmt.Fprintf(w, "No entities found on board '%s'\n", boardID)
		return 0, nil
	}

	fmt.Fprintf(w, "Entities on board '%s':\n\n", boardID)

	rows := make([][]string, 0, len(entities))
	for _, e := range entities {
		rows = append(rows, []string{
			formatID(e.ID),
			formatKind(e),
			formatOwner(e.OwnerID),
			fmt.Sprintf("%d", e.ZIndex),
			formatGeometry(e.Shape),
			formatAge(e.CreatedAtMs, now),
			formatLabel(e.Shape),
		})
	}

	table := tablewriter.NewWriter(w)
	table.Header("ID", "Kind", "Owner", "Z", "Geometry", "Age", "Label")
	if err := table.Bulk(rows); err != nil {
		return 0, fmt.Errorf("failed to build table: %w", err)
	}
	if err := table.Render(); err != nil {
		return 0, fmt.Errorf("failed to render table: %w", err)
	}

	noun := "entity"
	if len(entities) != 1 {
		noun = "entities"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(entities), noun)
	return len(entities), nil
}

// FormatJSONL writes one compact JSON document per entity.
func FormatJSONL(w io.Writer, entities []*board.Entity) error {
	for _, e := range entities {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal entity %s: %w", e.ID, err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatSingleJSON writes one entity as indented JSON.
func FormatSingleJSON(w io.Writer, e *board.Entity) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entity %s: %w", e.ID, err)
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	return nil
}

func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatKind marks soft-deleted entities, which only appear with --all.
func formatKind(e *board.Entity) string {
	if e.Deleted {
		return string(e.Kind()) + " (deleted)"
	}
	return string(e.Kind())
}

func formatOwner(owner string) string {
	if owner == "" {
		return "-"
	}
	if len(owner) > 16 {
		return owner[:13] + "..."
	}
	return owner
}

// formatGeometry shows position and size for boxed shapes and the point
// count for strokes.
func formatGeometry(s board.Shape) string {
	if s == nil {
		return "-"
	}
	pos, size, ok := board.Box(s)
	if !ok {
		n := len(s.(*board.Stroke).Points)
		if n == 1 {
			return "1 point"
		}
		return fmt.Sprintf("%d points", n)
	}
	return fmt.Sprintf("%g,%g %gx%g", pos.X, pos.Y, size.Width, size.Height)
}

// formatLabel returns the first non-blank line of a text or sticky, capped
// at 30 characters. Other shapes show their color.
func formatLabel(s board.Shape) string {
	var text, color string
	switch v := s.(type) {
	case *board.Text:
		text, color = v.Text, v.Color
	case *board.Sticky:
		text, color = v.Text, v.Color
	case *board.Rectangle:
		color = v.Color
	case *board.Ellipse:
		color = v.Color
	case *board.Stroke:
		color = v.Color
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if r := []rune(line); len(r) > 30 {
			return string(r[:27]) + "..."
		}
		return line
	}
	if color == "" {
		return "-"
	}
	return color
}

func formatAge(createdMs int64, now time.Time) string {
	if createdMs == 0 {
		return "-"
	}
	diff := now.Sub(time.UnixMilli(createdMs))
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", max(0, int(diff.Seconds())))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
