// Package regions is the provider-agnostic surface for land-claim regions.
//
// Each claim backend contributes a Provider that wraps its native claim objects
// in its own Region implementation. A Registry fans point and name queries out
// to every registered provider and owns the record codec used to persist
// region references by identity.
//
// The Registry is built once at startup and is read-only afterwards. It does
// no locking; callers that reach it from several goroutines must funnel the
// queries through a single goroutine (see internal/query).
package regions

import (
	"iter"

	"github.com/google/uuid"

	"regionhooks.ai/internal/geom"
	"regionhooks.ai/internal/host"
)

type Region interface {
	// ID is the backend-assigned claim identity, stable across restarts.
	ID() uuid.UUID
	// Kind is the codec tag of the concrete variant, e.g. "ClaimRegion".
	Kind() string
	Provider() Provider

	// Contains reports whether the block containing loc lies inside the claim.
	Contains(loc host.Location) bool

	IsMember(p host.Player) bool
	Members() []host.Player
	IsOwner(p host.Player) bool
	// Owners is empty for administrator claims.
	Owners() []host.Player

	// Blocks enumerates the claim's blocks. Degenerate claims yield nothing.
	Blocks() iter.Seq[host.Block]

	// Fields is the persisted form: the identity only.
	Fields() Fields

	String() string
}

// Bounded regions are boxes. Bounds returns exactly the box Blocks walks,
// so callers can size a region without enumerating it. ok is false when
// Blocks would yield nothing for lack of a world or claim.
type Bounded interface {
	Bounds() (w *host.World, box geom.AABB, ok bool)
}

type Provider interface {
	Name() string
	RegionKind() string

	RegionsAt(loc host.Location) []Region
	// RegionByName resolves a claim by identity string or human name. Lookup
	// failures of any kind report false.
	RegionByName(w *host.World, name string) (Region, bool)

	SupportsMultipleOwners() bool
	// CanBuild is false where no claim covers loc.
	CanBuild(p host.Player, loc host.Location) bool

	// Decode rehydrates a region from its persisted fields. A claim that no
	// longer exists is an invalid reference.
	Decode(f Fields) (Region, error)
}

// Key identifies a region across providers; usable as a map key.
type Key struct {
	Kind string
	ID   uuid.UUID
}

func KeyOf(r Region) Key {
	return Key{Kind: r.Kind(), ID: r.ID()}
}

// Equal reports whether a and b wrap the same backend claim.
func Equal(a, b Region) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return KeyOf(a) == KeyOf(b)
}
