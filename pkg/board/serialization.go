package board

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between entities and Redis hashes
//
// Redis stores entities as string-to-string hashes with one field per scalar.
// The stroke point list is JSON-encoded into a single field. Only the fields
// carried by an entity's kind are written, so a patch can never leave stray
// geometry behind on another kind.

// EntityToHash converts an entity to Redis hash form. Every value is a string,
// which lets the same map double as the JSON payload of an entity event.
func EntityToHash(e *Entity) (map[string]interface{}, error) {
	if e.Shape == nil {
		return nil, fmt.Errorf("entity %s has no shape", e.ID)
	}

	hash := map[string]interface{}{
		"id":            e.ID,
		"owner_id":      e.OwnerID,
		"kind":          string(e.Kind()),
		"z_index":       strconv.FormatInt(e.ZIndex, 10),
		"deleted":       strconv.FormatBool(e.Deleted),
		"created_at_ms": strconv.FormatInt(e.CreatedAtMs, 10),
		"updated_at_ms": strconv.FormatInt(e.UpdatedAtMs, 10),
		"revision":      strconv.FormatInt(e.Revision, 10),
	}

	fs := fieldsOf(e.Shape)
	if fs.position != nil {
		hash["x"] = formatFloat(fs.position.X)
		hash["y"] = formatFloat(fs.position.Y)
	}
	if fs.size != nil {
		hash["width"] = formatFloat(fs.size.Width)
		hash["height"] = formatFloat(fs.size.Height)
	}
	if fs.points != nil {
		pointsJSON, err := json.Marshal(*fs.points)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal points: %w", err)
		}
		hash["points"] = string(pointsJSON)
	}
	if fs.color != nil {
		hash["color"] = *fs.color
	}
	if fs.strokeWidth != nil {
		hash["stroke_width"] = formatFloat(*fs.strokeWidth)
	}
	if fs.fontSize != nil {
		hash["font_size"] = formatFloat(*fs.fontSize)
	}
	if fs.text != nil {
		hash["text"] = *fs.text
	}

	return hash, nil
}

// HashToEntity converts a Redis hash back to an entity.
func HashToEntity(hash map[string]string) (*Entity, error) {
	kind := Kind(hash["kind"])
	shape, err := NewShape(kind)
	if err != nil {
		return nil, err
	}

	zIndex, err := parseInt(hash, "z_index")
	if err != nil {
		return nil, err
	}
	createdAtMs, err := parseInt(hash, "created_at_ms")
	if err != nil {
		return nil, err
	}
	updatedAtMs, err := parseInt(hash, "updated_at_ms")
	if err != nil {
		return nil, err
	}
	revision, err := parseInt(hash, "revision")
	if err != nil {
		return nil, err
	}
	deleted := false
	if raw := hash["deleted"]; raw != "" {
		deleted, err = strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid deleted field: %w", err)
		}
	}

	fs := fieldsOf(shape)
	if fs.position != nil {
		if fs.position.X, err = parseFloat(hash, "x"); err != nil {
			return nil, err
		}
		if fs.position.Y, err = parseFloat(hash, "y"); err != nil {
			return nil, err
		}
	}
	if fs.size != nil {
		if fs.size.Width, err = parseFloat(hash, "width"); err != nil {
			return nil, err
		}
		if fs.size.Height, err = parseFloat(hash, "height"); err != nil {
			return nil, err
		}
	}
	if fs.points != nil {
		if raw := hash["points"]; raw != "" {
			if err := json.Unmarshal([]byte(raw), fs.points); err != nil {
				return nil, fmt.Errorf("failed to unmarshal points: %w", err)
			}
		}
		if *fs.points == nil {
			*fs.points = []Point{}
		}
	}
	if fs.color != nil {
		*fs.color = hash["color"]
	}
	if fs.strokeWidth != nil {
		if *fs.strokeWidth, err = parseFloat(hash, "stroke_width"); err != nil {
			return nil, err
		}
	}
	if fs.fontSize != nil {
		if *fs.fontSize, err = parseFloat(hash, "font_size"); err != nil {
			return nil, err
		}
	}
	if fs.text != nil {
		*fs.text = hash["text"]
	}

	return &Entity{
		ID:          hash["id"],
		OwnerID:     hash["owner_id"],
		ZIndex:      zIndex,
		Deleted:     deleted,
		CreatedAtMs: createdAtMs,
		UpdatedAtMs: updatedAtMs,
		Revision:    revision,
		Shape:       shape,
	}, nil
}

// PatchToHash converts a patch into the hash fields it overwrites.
func PatchToHash(p Patch) (map[string]string, error) {
	fields := make(map[string]string)
	if p.Position != nil {
		fields["x"] = formatFloat(p.Position.X)
		fields["y"] = formatFloat(p.Position.Y)
	}
	if p.Size != nil {
		fields["width"] = formatFloat(p.Size.Width)
		fields["height"] = formatFloat(p.Size.Height)
	}
	if p.Points != nil {
		pointsJSON, err := json.Marshal(p.Points)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal points: %w", err)
		}
		fields["points"] = string(pointsJSON)
	}
	if p.Color != nil {
		fields["color"] = *p.Color
	}
	if p.StrokeWidth != nil {
		fields["stroke_width"] = formatFloat(*p.StrokeWidth)
	}
	if p.FontSize != nil {
		fields["font_size"] = formatFloat(*p.FontSize)
	}
	if p.Text != nil {
		fields["text"] = *p.Text
	}
	if p.ZIndex != nil {
		fields["z_index"] = strconv.FormatInt(*p.ZIndex, 10)
	}
	return fields, nil
}

// entityDocument is the JSON form of an entity used by the CLI and the HTTP API.
type entityDocument struct {
	ID          string  `json:"id"`
	OwnerID     string  `json:"owner_id"`
	Kind        Kind    `json:"kind"`
	ZIndex      int64   `json:"z_index"`
	Deleted     bool    `json:"deleted"`
	CreatedAtMs int64   `json:"created_at_ms"`
	UpdatedAtMs int64   `json:"updated_at_ms"`
	Revision    int64   `json:"revision"`
	Position    *Point  `json:"position,omitempty"`
	Size        *Size   `json:"size,omitempty"`
	Points      []Point `json:"points,omitempty"`
	Color       string  `json:"color,omitempty"`
	StrokeWidth float64 `json:"stroke_width,omitempty"`
	FontSize    float64 `json:"font_size,omitempty"`
	Text        string  `json:"text,omitempty"`
}

// MarshalJSON encodes the entity as a flat document with kind-specific fields.
func (e Entity) MarshalJSON() ([]byte, error) {
	if e.Shape == nil {
		return nil, fmt.Errorf("entity %s has no shape", e.ID)
	}
	doc := entityDocument{
		ID:          e.ID,
		OwnerID:     e.OwnerID,
		Kind:        e.Kind(),
		ZIndex:      e.ZIndex,
		Deleted:     e.Deleted,
		CreatedAtMs: e.CreatedAtMs,
		UpdatedAtMs: e.UpdatedAtMs,
		Revision:    e.Revision,
	}
	fs := fieldsOf(e.Shape)
	if fs.position != nil {
		pos, size := *fs.position, *fs.size
		doc.Position, doc.Size = &pos, &size
	}
	if fs.points != nil {
		doc.Points = *fs.points
	}
	doc.Color = *fs.color
	if fs.strokeWidth != nil {
		doc.StrokeWidth = *fs.strokeWidth
	}
	if fs.fontSize != nil {
		doc.FontSize = *fs.fontSize
	}
	if fs.text != nil {
		doc.Text = *fs.text
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes the flat document form. Fields foreign to the kind are
// rejected rather than silently dropped.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var doc entityDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	shape, err := NewShape(doc.Kind)
	if err != nil {
		return err
	}
	p := Patch{Position: doc.Position, Size: doc.Size, Points: doc.Points}
	if doc.Color != "" {
		p.Color = &doc.Color
	}
	if doc.StrokeWidth != 0 {
		p.StrokeWidth = &doc.StrokeWidth
	}
	if doc.FontSize != 0 {
		p.FontSize = &doc.FontSize
	}
	if doc.Text != "" {
		p.Text = &doc.Text
	}
	fs := fieldsOf(shape)
	if err := p.check(fs, doc.Kind); err != nil {
		return err
	}
	if p.Position != nil {
		*fs.position = *p.Position
	}
	if p.Size != nil {
		*fs.size = *p.Size
	}
	if p.Points != nil {
		*fs.points = p.Points
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
	*e = Entity{
		ID:          doc.ID,
		OwnerID:     doc.OwnerID,
		ZIndex:      doc.ZIndex,
		Deleted:     doc.Deleted,
		CreatedAtMs: doc.CreatedAtMs,
		UpdatedAtMs: doc.UpdatedAtMs,
		Revision:    doc.Revision,
		Shape:       shape,
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseFloat(hash map[string]string, field string) (float64, error) {
	raw := hash[field]
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s field: %w", field, err)
	}
	return v, nil
}

func parseInt(hash map[string]string, field string) (int64, error) {
	raw := hash[field]
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s field: %w", field, err)
	}
	return v, nil
}
