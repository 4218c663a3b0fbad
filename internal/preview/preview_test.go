package preview

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldscope/fieldscope/internal/overlay"
)

func TestBlankDimensions(t *testing.T) {
	img := Blank(612, 792, 2.0)
	b := img.Bounds()
	assert.Equal(t, 1224, b.Dx())
	assert.Equal(t, 1584, b.Dy())
}

func TestRenderKeepsDimensions(t *testing.T) {
	key := "SELLER_NAME"
	boxes := []overlay.Box{
		{ID: "a", Page: 1, X: 50, Y: 100, W: 200, H: 22, Key: &key},
		{ID: "b", Page: 2, X: 50, Y: 100, W: 200, H: 22},
	}

	img := Render(Blank(612, 792, 1.0), boxes, 1, 1.0)
	b := img.Bounds()
	assert.Equal(t, 612, b.Dx())
	assert.Equal(t, 792, b.Dy())
}

func TestWritePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page-1.png")
	boxes := []overlay.Box{{ID: "a", Page: 1, X: 10, Y: 10, W: 100, H: 20}}

	require.NoError(t, WritePNG(path, Blank(200, 100, 1.0), boxes, 1, 1.0))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 200, decoded.Bounds().Dx())
}

func TestBoxLabel(t *testing.T) {
	key := "BUYER_NAME"
	val := "Jane Roe"
	empty := ""

	tests := []struct {
		name string
		box  overlay.Box
		want string
	}{
		{name: "key_wins", box: overlay.Box{Key: &key, Value: &val}, want: "BUYER_NAME"},
		{name: "value_only", box: overlay.Box{Value: &val}, want: "Jane Roe"},
		{name: "empty_value", box: overlay.Box{Value: &empty}, want: ""},
		{name: "unbound", box: overlay.Box{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, boxLabel(tt.box))
		})
	}
}
