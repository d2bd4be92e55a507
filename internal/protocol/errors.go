package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Query layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrWorldNotFound = "E_WORLD_NOT_FOUND"
	ErrNotFound      = "E_NOT_FOUND"
	ErrStale         = "E_STALE"
	ErrBusy          = "E_BUSY"
	ErrForbidden     = "E_FORBIDDEN"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrBadRequest:      {},
	ErrWorldNotFound:   {},
	ErrNotFound:        {},
	ErrStale:           {},
	ErrBusy:            {},
	ErrForbidden:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
