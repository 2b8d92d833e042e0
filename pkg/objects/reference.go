package objects

// ReferenceID returns the target id when v is an inline reference object
// such as {"referencedId": "abc", "speckle_type": "reference"}.
func ReferenceID(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	id, ok := m[FieldReferenceID].(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// NewReference builds the inline form of a reference to id.
func NewReference(id string) map[string]any {
	return map[string]any{
		FieldReferenceID: id,
		FieldSpeckleType: ReferenceType,
	}
}

// ReferenceArrays returns, for every array-valued property made only of
// references, the referenced ids in array order. These are the properties
// that may have been split into DataChunks.
func (b *Base) ReferenceArrays() map[string][]string {
	var out map[string][]string
	for name, v := range b.Properties {
		arr, ok := v.([]any)
		if !ok || len(arr) == 0 {
			continue
		}

		ids := make([]string, 0, len(arr))
		for _, el := range arr {
			id, ok := ReferenceID(el)
			if !ok {
				ids = nil
				break
			}
			ids = append(ids, id)
		}
		if ids == nil {
			continue
		}

		if out == nil {
			out = make(map[string][]string)
		}
		out[name] = ids
	}
	return out
}
