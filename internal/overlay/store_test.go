package overlay

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBox(id string, page int) Box {
	return Box{ID: id, Page: page, X: 10, Y: 10, W: 100, H: 20}
}

// recordingSave captures every persisted overlay.
type recordingSave struct {
	saves []Overlay
	fail  bool
}

func (r *recordingSave) fn(o Overlay) error {
	if r.fail {
		return errors.New("disk full")
	}
	r.saves = append(r.saves, o)
	return nil
}

func TestStoreAddAndGet(t *testing.T) {
	rec := &recordingSave{}
	s := NewStore(rec.fn, 0)

	warning, err := s.Add(testBox("a", 1))
	require.NoError(t, err)
	assert.Empty(t, warning)

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, 1, s.Len())

	_, ok = s.Get("missing")
	assert.False(t, ok)

	// Every mutation persists the full list.
	require.Len(t, rec.saves, 1)
	assert.Equal(t, CurrentVersion, rec.saves[0].Version)
	assert.Len(t, rec.saves[0].Boxes, 1)
}

func TestStoreAddInvalidBox(t *testing.T) {
	s := NewStore(nil, 0)
	_, err := s.Add(Box{ID: "bad", Page: 1, W: 0, H: 10})
	assert.Error(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestStoreAddCapWarning(t *testing.T) {
	rec := &recordingSave{}
	s := NewStore(rec.fn, 2)

	for i := 0; i < 2; i++ {
		warning, err := s.Add(testBox(fmt.Sprintf("b%d", i), 1))
		require.NoError(t, err)
		assert.Empty(t, warning)
	}

	// The cap drops the box with a warning, never an error.
	warning, err := s.Add(testBox("overflow", 1))
	require.NoError(t, err)
	assert.NotEmpty(t, warning)
	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("overflow")
	assert.False(t, ok)
}

func TestStoreAddAll(t *testing.T) {
	rec := &recordingSave{}
	s := NewStore(rec.fn, 3)

	added, warning, err := s.AddAll([]Box{
		testBox("a", 1),
		{ID: "invalid", Page: 1, W: 0, H: 5},
		testBox("b", 1),
		testBox("c", 2),
		testBox("d", 2),
	})
	require.NoError(t, err)

	// The added slice holds exactly the boxes that made it in; the skipped
	// invalid box is neither added nor blamed on the cap.
	require.Len(t, added, 3)
	assert.Equal(t, "a", added[0].ID)
	assert.Equal(t, "b", added[1].ID)
	assert.Equal(t, "c", added[2].ID)
	assert.Contains(t, warning, "1 boxes dropped")
	assert.Equal(t, 3, s.Len())

	// One batch, one persisted write.
	assert.Len(t, rec.saves, 1)
}

func TestStoreAddAllInvalidBoxesDoNotWarn(t *testing.T) {
	s := NewStore(nil, 0)

	added, warning, err := s.AddAll([]Box{
		{ID: "invalid", Page: 1, W: 0, H: 5},
		testBox("a", 1),
	})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, "a", added[0].ID)
	assert.Empty(t, warning)
}

func TestStoreAddAllEmptyBatchDoesNotPersist(t *testing.T) {
	rec := &recordingSave{}
	s := NewStore(rec.fn, 0)

	added, _, err := s.AddAll(nil)
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Empty(t, rec.saves)
}

func TestStoreClear(t *testing.T) {
	rec := &recordingSave{}
	s := NewStore(rec.fn, 0)
	_, err := s.Add(testBox("a", 1))
	require.NoError(t, err)

	require.NoError(t, s.Clear())
	assert.Equal(t, 0, s.Len())

	// Clearing persists an empty overlay.
	require.Len(t, rec.saves, 2)
	assert.Empty(t, rec.saves[1].Boxes)
}

func TestStoreUpsertGeometry(t *testing.T) {
	s := NewStore(nil, 0)
	_, err := s.Add(testBox("a", 1))
	require.NoError(t, err)

	x, w := 42.0, 250.0
	require.NoError(t, s.Upsert("a", Patch{X: &x, W: &w}))

	got, _ := s.Get("a")
	assert.Equal(t, 42.0, got.X)
	assert.Equal(t, 250.0, got.W)
	assert.Equal(t, 10.0, got.Y)
}

func TestStoreUpsertValueClearsKey(t *testing.T) {
	s := NewStore(nil, 0)
	box := testBox("a", 1)
	key := "SELLER_NAME"
	box.Key = &key
	_, err := s.Add(box)
	require.NoError(t, err)

	val := "typed over"
	vp := &val
	require.NoError(t, s.Upsert("a", Patch{Value: &vp}))

	got, _ := s.Get("a")
	require.NotNil(t, got.Value)
	assert.Equal(t, "typed over", *got.Value)
	assert.Nil(t, got.Key)

	// And setting the key back clears the value.
	newKey := "BUYER_NAME"
	kp := &newKey
	require.NoError(t, s.Upsert("a", Patch{Key: &kp}))
	got, _ = s.Get("a")
	assert.Nil(t, got.Value)
	require.NotNil(t, got.Key)
	assert.Equal(t, "BUYER_NAME", *got.Key)
}

func TestStoreUpsertMissingID(t *testing.T) {
	s := NewStore(nil, 0)
	err := s.Upsert("ghost", Patch{})
	assert.Error(t, err)
}

func TestStoreUpsertRejectsInvalidatingPatch(t *testing.T) {
	s := NewStore(nil, 0)
	_, err := s.Add(testBox("a", 1))
	require.NoError(t, err)

	w := -5.0
	assert.Error(t, s.Upsert("a", Patch{W: &w}))

	got, _ := s.Get("a")
	assert.Equal(t, 100.0, got.W)
}

func TestStoreDelete(t *testing.T) {
	rec := &recordingSave{}
	s := NewStore(rec.fn, 0)
	_, err := s.Add(testBox("a", 1))
	require.NoError(t, err)

	require.NoError(t, s.Delete("a"))
	assert.Equal(t, 0, s.Len())

	// Deleting a missing id is a no-op and does not persist.
	persists := len(rec.saves)
	require.NoError(t, s.Delete("a"))
	assert.Len(t, rec.saves, persists)
}

func TestStoreFailedPersistKeepsState(t *testing.T) {
	rec := &recordingSave{}
	s := NewStore(rec.fn, 0)
	_, err := s.Add(testBox("a", 1))
	require.NoError(t, err)

	rec.fail = true
	_, err = s.Add(testBox("b", 1))
	assert.Error(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestStoreLoadDoesNotPersist(t *testing.T) {
	rec := &recordingSave{}
	s := NewStore(rec.fn, 0)

	s.Load(Overlay{Version: CurrentVersion, Boxes: []Box{testBox("a", 1), testBox("b", 2)}})
	assert.Equal(t, 2, s.Len())
	assert.Empty(t, rec.saves)
}

func TestStoreSnapshot(t *testing.T) {
	s := NewStore(nil, 0)
	_, err := s.Add(testBox("a", 1))
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, CurrentVersion, snap.Version)
	require.Len(t, snap.Boxes, 1)

	// The snapshot is a copy, not a view.
	snap.Boxes[0].X = 999
	got, _ := s.Get("a")
	assert.Equal(t, 10.0, got.X)
}
