package objects

// Item is the record exchanged with caches, downloaders and transports.
// A nil Base means the object is known to exist but is not resolved yet.
type Item struct {
	BaseID string `json:"baseId"`
	Base   *Base  `json:"base,omitempty"`

	// Size is the encoded payload size in bytes, used for batching heuristics.
	Size int `json:"size,omitempty"`
}

// Stub returns an Item carrying only an id.
func Stub(id string) Item {
	return Item{BaseID: id}
}

// Resolved reports whether the item carries a decoded Base.
func (i Item) Resolved() bool {
	return i.Base != nil
}

// ItemSink receives items as a stage produces them. Implementations must not
// block for long: they are called from batch and download goroutines.
type ItemSink func(item Item)
