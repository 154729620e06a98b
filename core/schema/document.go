package schema

// Document is the canonical in-memory representation of a stored record:
// a JSON-shaped mapping from field name to value. The engine never caches
// documents; each read re-fetches from the persistence collaborator.
type Document map[string]any

// Reserved field names managed by the engine, not declared in schemas.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// ID returns the document's opaque identifier, or "" when unset.
func (d Document) ID() string {
	id, _ := d[FieldID].(string)
	return id
}

// String returns the named field as a string, or "" when absent or not a string.
func (d Document) String(field string) string {
	s, _ := d[field].(string)
	return s
}

// Clone returns a shallow copy one level deep: top-level map and slice values
// are copied, nested structures are shared. Enough isolation for the hook
// pipeline, which replaces rather than mutates nested values.
func (d Document) Clone() Document {
	if d == nil {
		return Document{}
	}
	out := make(Document, len(d))
	for k, v := range d {
		switch t := v.(type) {
		case map[string]any:
			m := make(map[string]any, len(t))
			for mk, mv := range t {
				m[mk] = mv
			}
			out[k] = m
		case []any:
			s := make([]any, len(t))
			copy(s, t)
			out[k] = s
		default:
			out[k] = v
		}
	}
	return out
}
