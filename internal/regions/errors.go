package regions

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrInvalidReference = errors.New("invalid region reference")
	ErrUnknownKind      = errors.New("unknown region kind")
	ErrMissingField     = errors.New("missing field")
	ErrConflict         = errors.New("provider conflict")
)

// CorruptedError reports a persisted region record that cannot be restored.
type CorruptedError struct {
	Kind string
	ID   uuid.UUID
	Err  error
}

func (e *CorruptedError) Error() string {
	if e.ID != uuid.Nil {
		return fmt.Sprintf("corrupted %s record %s: %v", e.Kind, e.ID, e.Err)
	}
	return fmt.Sprintf("corrupted %s record: %v", e.Kind, e.Err)
}

func (e *CorruptedError) Unwrap() error { return e.Err }

// InvalidReference is the error providers return from Decode when the backend
// has no claim with the persisted identity.
func InvalidReference(kind string, id uuid.UUID) error {
	return &CorruptedError{Kind: kind, ID: id, Err: ErrInvalidReference}
}
