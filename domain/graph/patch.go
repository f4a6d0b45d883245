package graph

import "encoding/json"

// Field is a tri-state JSON value for partial updates. A field can be absent
// from the payload (Present false, leave the column untouched), an explicit
// null (Present true, Valid false, clear the column), or a value.
type Field[T any] struct {
	Present bool
	Valid   bool
	Value   T
}

// UnmarshalJSON is only invoked for keys that appear in the payload, which is
// what distinguishes absent from null.
func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Present = true
	if string(b) == "null" {
		var zero T
		f.Value = zero
		f.Valid = false
		return nil
	}
	if err := json.Unmarshal(b, &f.Value); err != nil {
		return err
	}
	f.Valid = true
	return nil
}

// Ptr returns the value as a nullable pointer: nil for explicit null.
func (f Field[T]) Ptr() *T {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// NodePatch carries a partial node update. Only present fields are written.
// Nullable fields clear on explicit null; positions are not nullable and an
// explicit null is rejected before the patch reaches the store.
type NodePatch struct {
	Label     Field[string]  `json:"label"`
	Content   Field[string]  `json:"content"`
	Type      Field[string]  `json:"type"`
	Color     Field[string]  `json:"color"`
	ChapterID Field[string]  `json:"chapter_id"`
	ImageID   Field[string]  `json:"image_id"`
	PositionX Field[float64] `json:"position_x"`
	PositionY Field[float64] `json:"position_y"`
}

// Empty reports whether the patch would modify nothing.
func (p NodePatch) Empty() bool {
	return !p.Label.Present && !p.Content.Present && !p.Type.Present &&
		!p.Color.Present && !p.ChapterID.Present && !p.ImageID.Present &&
		!p.PositionX.Present && !p.PositionY.Present
}

// CanvasPatch carries a partial canvas update.
type CanvasPatch struct {
	Title Field[string] `json:"title"`
}

// Empty reports whether the patch would modify nothing.
func (p CanvasPatch) Empty() bool {
	return !p.Title.Present
}
