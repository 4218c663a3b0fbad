// Package overlay defines the persisted field-overlay model: the versioned
// list of editable boxes layered on top of the original PDF pages, plus the
// store that owns mutation and persistence.
package overlay

import (
	"encoding/json"
	"fmt"

	"github.com/fieldscope/fieldscope/internal/geometry"
)

// CurrentVersion is the overlay schema version this engine produces.
const CurrentVersion = 1

// MaxBoxes is the hard cap on the number of boxes in one overlay. Additions
// beyond the cap are dropped deterministically by insertion order and
// surfaced as a warning, never as an error.
const MaxBoxes = 2000

// Box is one editable field rectangle on a page.
//
// Display text resolves as: Value if present (a JSON null counts as present
// and displays empty), otherwise a lookup of Key in the externally supplied
// value map, otherwise the empty string. Setting one of Value/Key clears
// dependence on the other.
type Box struct {
	ID       string   `json:"id"`
	Page     int      `json:"page"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	W        float64  `json:"w"`
	H        float64  `json:"h"`
	Value    *string  `json:"value,omitempty"`
	Key      *string  `json:"key,omitempty"`
	FontSize *float64 `json:"fontSize,omitempty"`
	Erase    bool     `json:"erase,omitempty"`
}

// Rect returns the box geometry as a rectangle.
func (b Box) Rect() geometry.Rect {
	return geometry.Rect{X: b.X, Y: b.Y, W: b.W, H: b.H}
}

// Valid reports whether the box satisfies the persisted-model invariants.
func (b Box) Valid() bool {
	return b.ID != "" && b.Page >= 1 && b.Rect().IsFinite() && b.W > 0 && b.H > 0
}

// DisplayText resolves the text shown inside the box against the external
// field-value map.
func (b Box) DisplayText(values map[string]string) string {
	if b.Value != nil {
		return *b.Value
	}
	if b.Key != nil {
		return values[*b.Key]
	}
	return ""
}

// boxJSON mirrors Box for unmarshaling. Value needs raw handling so that an
// explicit null is kept distinct from an absent key.
type boxJSON struct {
	ID       string          `json:"id"`
	Page     int             `json:"page"`
	X        float64         `json:"x"`
	Y        float64         `json:"y"`
	W        float64         `json:"w"`
	H        float64         `json:"h"`
	Value    json.RawMessage `json:"value"`
	Key      *string         `json:"key"`
	FontSize *float64        `json:"fontSize"`
	Erase    bool            `json:"erase"`
}

// UnmarshalJSON decodes a box, mapping an explicit `"value": null` to an
// empty string so the display-resolution order survives a round trip.
func (b *Box) UnmarshalJSON(data []byte) error {
	var raw boxJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = Box{
		ID:       raw.ID,
		Page:     raw.Page,
		X:        raw.X,
		Y:        raw.Y,
		W:        raw.W,
		H:        raw.H,
		Key:      raw.Key,
		FontSize: raw.FontSize,
		Erase:    raw.Erase,
	}
	if len(raw.Value) > 0 {
		if string(raw.Value) == "null" {
			empty := ""
			b.Value = &empty
		} else {
			var s string
			if err := json.Unmarshal(raw.Value, &s); err != nil {
				return fmt.Errorf("box %s: value is not a string: %w", raw.ID, err)
			}
			b.Value = &s
		}
	}
	return nil
}

// Overlay is the sole persisted artifact: a versioned box list.
type Overlay struct {
	Version int   `json:"version"`
	Boxes   []Box `json:"boxes"`
}

// Empty returns a valid overlay with no boxes.
func Empty() Overlay {
	return Overlay{Version: CurrentVersion, Boxes: []Box{}}
}

// Parse decodes overlay JSON. Malformed input, an unknown version, or a
// non-array box list all degrade silently to an empty overlay; Parse never
// returns an error. Boxes that violate the model invariants are dropped.
func Parse(data []byte) Overlay {
	if len(data) == 0 {
		return Empty()
	}
	var probe struct {
		Version int             `json:"version"`
		Boxes   json.RawMessage `json:"boxes"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Empty()
	}
	if probe.Version != CurrentVersion {
		return Empty()
	}
	var boxes []Box
	if err := json.Unmarshal(probe.Boxes, &boxes); err != nil {
		return Empty()
	}
	out := Overlay{Version: CurrentVersion, Boxes: make([]Box, 0, len(boxes))}
	for _, b := range boxes {
		if b.Valid() {
			out.Boxes = append(out.Boxes, b)
		}
	}
	return out
}

// Serialize encodes the overlay as JSON.
func Serialize(o Overlay) ([]byte, error) {
	if o.Boxes == nil {
		o.Boxes = []Box{}
	}
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize overlay: %w", err)
	}
	return data, nil
}
