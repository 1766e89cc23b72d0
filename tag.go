package wechaty

import "fmt"

// Tag is a label attached to contacts. Tags carry only an id.
type Tag struct {
	accessory
}

func newTag(w *Wechaty, id string) *Tag {
	return &Tag{accessory: accessory{wechaty: w, id: id}}
}

func (t *Tag) markDirty() {}

func (t *Tag) String() string {
	return fmt.Sprintf("Tag<%s>", t.id)
}
