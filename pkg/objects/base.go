// Package objects defines the records of a content-addressed object graph:
// Base nodes, their ordered closures, chunked array fragments, and the Item
// envelope used by caches and transports.
package objects

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Wire names of the fields every Base carries.
const (
	FieldID          = "id"
	FieldSpeckleType = "speckle_type"
	FieldClosure     = "__closure"
	FieldData        = "data"
	FieldReferenceID = "referencedId"

	// ReferenceType is the speckle_type of an inline reference to another object.
	ReferenceType = "reference"
	chunkMarker   = "DataChunk"
)

// ErrNotBase is returned when a payload lacks the id or speckle_type of a Base.
var ErrNotBase = errors.New("object is not a base")

// Closure maps every child id referenced by an object to its traversal cost,
// in declaration order.
type Closure = orderedmap.OrderedMap[string, int]

// NewClosure returns an empty closure.
func NewClosure() *Closure {
	return orderedmap.New[string, int]()
}

// Base is a node of the object graph. Bases are immutable once decoded:
// callers that need a modified copy use Clone.
type Base struct {
	ID          string
	SpeckleType string
	Closure     *Closure

	// Properties holds every other field of the payload as decoded by
	// encoding/json (map[string]any, []any, float64, string, bool, nil).
	Properties map[string]any
}

// UnmarshalJSON decodes a Base, keeping the declaration order of __closure.
func (b *Base) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	out := Base{Properties: make(map[string]any, len(fields))}
	for name, raw := range fields {
		switch name {
		case FieldID:
			if err := json.Unmarshal(raw, &out.ID); err != nil {
				return fmt.Errorf("decode %s: %w", FieldID, err)
			}
		case FieldSpeckleType:
			if err := json.Unmarshal(raw, &out.SpeckleType); err != nil {
				return fmt.Errorf("decode %s: %w", FieldSpeckleType, err)
			}
		case FieldClosure:
			if string(raw) == "null" {
				continue
			}
			c := NewClosure()
			if err := json.Unmarshal(raw, c); err != nil {
				return fmt.Errorf("decode %s: %w", FieldClosure, err)
			}
			out.Closure = c
		default:
			var v any
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("decode %s: %w", name, err)
			}
			out.Properties[name] = v
		}
	}

	*b = out
	return nil
}

// MarshalJSON encodes the Base using the wire field names.
func (b *Base) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(b.Properties)+3)
	for k, v := range b.Properties {
		m[k] = v
	}
	m[FieldID] = b.ID
	m[FieldSpeckleType] = b.SpeckleType
	if b.Closure != nil && b.Closure.Len() > 0 {
		m[FieldClosure] = b.Closure
	}
	return json.Marshal(m)
}

// Get returns a dynamic property.
func (b *Base) Get(name string) (any, bool) {
	v, ok := b.Properties[name]
	return v, ok
}

// IsChunk reports whether b is a DataChunk fragment of a larger array.
func (b *Base) IsChunk() bool {
	return strings.Contains(b.SpeckleType, chunkMarker)
}

// ChunkData returns the values carried by a DataChunk.
func (b *Base) ChunkData() []any {
	data, _ := b.Properties[FieldData].([]any)
	return data
}

// ClosureIDs returns the closure ids in declaration order.
func (b *Base) ClosureIDs() []string {
	if b.Closure == nil {
		return nil
	}
	ids := make([]string, 0, b.Closure.Len())
	for p := b.Closure.Oldest(); p != nil; p = p.Next() {
		ids = append(ids, p.Key)
	}
	return ids
}

// ClosureLen returns the number of closure entries.
func (b *Base) ClosureLen() int {
	if b.Closure == nil {
		return 0
	}
	return b.Closure.Len()
}

// Clone returns a copy whose property map can be modified freely. Property
// values themselves are shared.
func (b *Base) Clone() *Base {
	c := &Base{
		ID:          b.ID,
		SpeckleType: b.SpeckleType,
		Closure:     b.Closure,
		Properties:  make(map[string]any, len(b.Properties)),
	}
	for k, v := range b.Properties {
		c.Properties[k] = v
	}
	return c
}

// ParseBase decodes a single Base and checks that it has an identity.
func ParseBase(data []byte) (*Base, error) {
	var b Base
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	if b.ID == "" || b.SpeckleType == "" {
		return nil, ErrNotBase
	}
	return &b, nil
}

// ParseBaseArray decodes a JSON array of Bases.
func ParseBaseArray(data string) ([]*Base, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal([]byte(data), &raws); err != nil {
		return nil, fmt.Errorf("decode object array: %w", err)
	}

	out := make([]*Base, 0, len(raws))
	for i, raw := range raws {
		b, err := ParseBase(raw)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}
