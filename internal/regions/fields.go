package regions

import (
	"fmt"

	"github.com/google/uuid"
)

// Fields is the field set of a persisted region. Values must be JSON-encodable.
type Fields map[string]any

// Record is a persisted region reference: the kind tag plus its fields.
type Record struct {
	Type   string `json:"type"`
	Fields Fields `json:"fields"`
}

func IDFields(id uuid.UUID) Fields {
	f := Fields{}
	f.PutUUID("id", id)
	return f
}

func (f Fields) PutUUID(key string, id uuid.UUID) {
	f[key] = id.String()
}

// UUID reads a UUID field. It accepts the string form produced by PutUUID and
// uuid.UUID values set directly.
func (f Fields) UUID(key string) (uuid.UUID, error) {
	v, ok := f[key]
	if !ok || v == nil {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	switch t := v.(type) {
	case uuid.UUID:
		return t, nil
	case string:
		id, err := uuid.Parse(t)
		if err != nil {
			return uuid.Nil, fmt.Errorf("field %s: %w", key, err)
		}
		return id, nil
	default:
		return uuid.Nil, fmt.Errorf("field %s: unexpected %T", key, v)
	}
}
