package overlay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestBoxValid(t *testing.T) {
	tests := []struct {
		name string
		box  Box
		want bool
	}{
		{name: "valid", box: Box{ID: "a", Page: 1, W: 10, H: 10}, want: true},
		{name: "missing_id", box: Box{Page: 1, W: 10, H: 10}, want: false},
		{name: "page_zero", box: Box{ID: "a", Page: 0, W: 10, H: 10}, want: false},
		{name: "zero_width", box: Box{ID: "a", Page: 1, W: 0, H: 10}, want: false},
		{name: "negative_height", box: Box{ID: "a", Page: 1, W: 10, H: -1}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.box.Valid())
		})
	}
}

func TestBoxDisplayText(t *testing.T) {
	values := map[string]string{"SELLER_NAME": "Jane Roe"}

	tests := []struct {
		name string
		box  Box
		want string
	}{
		{name: "value_wins", box: Box{Value: strp("hand-typed"), Key: strp("SELLER_NAME")}, want: "hand-typed"},
		{name: "empty_value_still_wins", box: Box{Value: strp(""), Key: strp("SELLER_NAME")}, want: ""},
		{name: "key_lookup", box: Box{Key: strp("SELLER_NAME")}, want: "Jane Roe"},
		{name: "unknown_key", box: Box{Key: strp("NOPE")}, want: ""},
		{name: "neither", box: Box{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.box.DisplayText(values))
		})
	}
}

func TestBoxUnmarshalNullValue(t *testing.T) {
	// An explicit null value must stay "present" so it keeps masking the
	// key lookup after a round trip.
	var b Box
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","page":1,"x":0,"y":0,"w":10,"h":10,"value":null,"key":"K"}`), &b))

	require.NotNil(t, b.Value)
	assert.Equal(t, "", *b.Value)
	assert.Equal(t, "", b.DisplayText(map[string]string{"K": "masked"}))
}

func TestBoxUnmarshalAbsentValue(t *testing.T) {
	var b Box
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","page":1,"x":0,"y":0,"w":10,"h":10,"key":"K"}`), &b))

	assert.Nil(t, b.Value)
	assert.Equal(t, "from map", b.DisplayText(map[string]string{"K": "from map"}))
}

func TestParseTolerance(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty_input", data: ""},
		{name: "malformed_json", data: "{nope"},
		{name: "unknown_version", data: `{"version":99,"boxes":[]}`},
		{name: "boxes_not_array", data: `{"version":1,"boxes":{"a":1}}`},
		{name: "null_boxes_value_type", data: `{"version":1,"boxes":[{"id":"a","page":1,"w":1,"h":1,"value":7}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Parse([]byte(tt.data))
			assert.Equal(t, CurrentVersion, o.Version)
			assert.Empty(t, o.Boxes)
		})
	}
}

func TestParseDropsInvalidBoxes(t *testing.T) {
	data := `{"version":1,"boxes":[
		{"id":"good","page":1,"x":1,"y":2,"w":30,"h":20},
		{"id":"","page":1,"x":1,"y":2,"w":30,"h":20},
		{"id":"flat","page":1,"x":1,"y":2,"w":0,"h":20},
		{"id":"pageless","page":0,"x":1,"y":2,"w":30,"h":20}
	]}`

	o := Parse([]byte(data))
	require.Len(t, o.Boxes, 1)
	assert.Equal(t, "good", o.Boxes[0].ID)
}

func TestSerializeRoundTrip(t *testing.T) {
	fs := 11.5
	in := Overlay{
		Version: CurrentVersion,
		Boxes: []Box{
			{ID: "a", Page: 1, X: 10, Y: 20, W: 120, H: 22, Key: strp("SELLER_NAME")},
			{ID: "b", Page: 2, X: 5, Y: 6, W: 80, H: 18, Value: strp("by hand"), FontSize: &fs, Erase: true},
			{ID: "c", Page: 2, X: 1, Y: 2, W: 50, H: 16, Value: strp("")},
		},
	}

	data, err := Serialize(in)
	require.NoError(t, err)

	out := Parse(data)
	require.Len(t, out.Boxes, 3)
	assert.Equal(t, in.Boxes[0], out.Boxes[0])
	assert.Equal(t, in.Boxes[1], out.Boxes[1])
	// The empty-string value survives distinct from absent.
	require.NotNil(t, out.Boxes[2].Value)
	assert.Equal(t, "", *out.Boxes[2].Value)
}

func TestSerializeNilBoxes(t *testing.T) {
	data, err := Serialize(Overlay{Version: CurrentVersion})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"boxes":[]`)
}
