package overlay

import (
	"fmt"
	"sync"
)

// SaveFunc persists a complete overlay. The store hands every mutation to it
// as one unit; there is no partial or delta protocol.
type SaveFunc func(Overlay) error

// Patch describes a partial box update. Nil fields are left unchanged.
// SetValue/SetKey use a double pointer so a patch can distinguish "leave
// alone" (nil) from "set to this" from "clear" (pointer to nil).
type Patch struct {
	X        *float64
	Y        *float64
	W        *float64
	H        *float64
	FontSize *float64
	Value    **string
	Key      **string
	Erase    *bool
}

// Store is the canonical versioned box list for one document-editing
// session. All mutations are synchronous and replace the persisted overlay
// in full, so a user edit and a completed detection pass can never
// interleave partially; the last writer wins by call order.
type Store struct {
	mu    sync.Mutex
	boxes []Box
	save  SaveFunc
	cap   int
}

// NewStore creates a store persisting through save. A nil save func keeps
// the store purely in-memory. maxBoxes <= 0 falls back to MaxBoxes.
func NewStore(save SaveFunc, maxBoxes int) *Store {
	if maxBoxes <= 0 {
		maxBoxes = MaxBoxes
	}
	return &Store{save: save, cap: maxBoxes}
}

// Load replaces the in-memory state from a previously persisted overlay
// without writing back.
func (s *Store) Load(o Overlay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boxes = append([]Box(nil), o.Boxes...)
}

// Boxes returns a copy of the current box list.
func (s *Store) Boxes() []Box {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Box(nil), s.boxes...)
}

// Len returns the current number of boxes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.boxes)
}

// Get returns the box with the given id.
func (s *Store) Get(id string) (Box, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.boxes {
		if b.ID == id {
			return b, true
		}
	}
	return Box{}, false
}

// Add appends a box. When the cap is already reached the box is dropped and
// a warning string is returned; this is never an error.
func (s *Store) Add(box Box) (warning string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !box.Valid() {
		return "", fmt.Errorf("invalid box %q", box.ID)
	}
	if len(s.boxes) >= s.cap {
		return fmt.Sprintf("overlay box limit of %d reached; box not added", s.cap), nil
	}
	next := append(append([]Box(nil), s.boxes...), box)
	if err := s.persist(next); err != nil {
		return "", err
	}
	s.boxes = next
	return "", nil
}

// AddAll appends boxes in order, truncating deterministically at the cap.
// The whole batch is persisted as one write. Returns the boxes actually
// added and a warning when the cap dropped any; invalid boxes are skipped
// silently and never counted as dropped.
func (s *Store) AddAll(boxes []Box) (added []Box, warning string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := append([]Box(nil), s.boxes...)
	dropped := 0
	for _, b := range boxes {
		if !b.Valid() {
			continue
		}
		if len(next) >= s.cap {
			dropped++
			continue
		}
		next = append(next, b)
		added = append(added, b)
	}
	if dropped > 0 {
		warning = fmt.Sprintf("overlay box limit of %d reached; %d boxes dropped", s.cap, dropped)
	}
	if len(added) == 0 {
		return nil, warning, nil
	}
	if err := s.persist(next); err != nil {
		return nil, "", err
	}
	s.boxes = next
	return added, warning, nil
}

// Upsert applies a patch to the box with the given id.
func (s *Store) Upsert(id string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, b := range s.boxes {
		if b.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("no box with id %q", id)
	}
	next := append([]Box(nil), s.boxes...)
	b := next[idx]
	if patch.X != nil {
		b.X = *patch.X
	}
	if patch.Y != nil {
		b.Y = *patch.Y
	}
	if patch.W != nil {
		b.W = *patch.W
	}
	if patch.H != nil {
		b.H = *patch.H
	}
	if patch.FontSize != nil {
		b.FontSize = patch.FontSize
	}
	if patch.Value != nil {
		b.Value = *patch.Value
		if b.Value != nil {
			b.Key = nil
		}
	}
	if patch.Key != nil {
		b.Key = *patch.Key
		if b.Key != nil {
			b.Value = nil
		}
	}
	if patch.Erase != nil {
		b.Erase = *patch.Erase
	}
	if !b.Valid() {
		return fmt.Errorf("patch would invalidate box %q", id)
	}
	next[idx] = b
	if err := s.persist(next); err != nil {
		return err
	}
	s.boxes = next
	return nil
}

// Delete removes the box with the given id. Deleting a missing id is a
// no-op.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]Box, 0, len(s.boxes))
	for _, b := range s.boxes {
		if b.ID != id {
			next = append(next, b)
		}
	}
	if len(next) == len(s.boxes) {
		return nil
	}
	if err := s.persist(next); err != nil {
		return err
	}
	s.boxes = next
	return nil
}

// Clear removes all boxes.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(nil); err != nil {
		return err
	}
	s.boxes = nil
	return nil
}

// persist hands the full next list to the save collaborator. Callers hold
// the mutex.
func (s *Store) persist(next []Box) error {
	if s.save == nil {
		return nil
	}
	o := Overlay{Version: CurrentVersion, Boxes: next}
	if o.Boxes == nil {
		o.Boxes = []Box{}
	}
	if err := s.save(o); err != nil {
		return fmt.Errorf("failed to persist overlay: %w", err)
	}
	return nil
}

// Snapshot returns the overlay as currently held.
func (s *Store) Snapshot() Overlay {
	return Overlay{Version: CurrentVersion, Boxes: s.Boxes()}
}
