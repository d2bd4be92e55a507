// Package claimhook adapts the claim library (internal/claimstore) to the
// regions.Provider contract.
package claimhook

import (
	"io"
	"iter"
	"log"

	"github.com/google/uuid"

	"regionhooks.ai/internal/claimstore"
	"regionhooks.ai/internal/geom"
	"regionhooks.ai/internal/host"
	"regionhooks.ai/internal/regions"
)

const (
	ProviderName = "Claims"
	Kind         = "ClaimRegion"
)

// Core is the slice of the claim library the hook consumes.
type Core interface {
	ClaimAt(world uuid.UUID, pos geom.Vec3i) *claimstore.Claim
	Claim(id uuid.UUID) *claimstore.Claim
	ClaimByName(world *uuid.UUID, name string) *claimstore.Claim
	User(id uuid.UUID) *claimstore.User
	AdminUser() *claimstore.User
}

type Hook struct {
	core     Core
	platform host.Platform
	log      *log.Logger
}

func New(core Core, platform host.Platform, logger *log.Logger) *Hook {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Hook{core: core, platform: platform, log: logger}
}

func (h *Hook) Name() string                 { return ProviderName }
func (h *Hook) RegionKind() string           { return Kind }
func (h *Hook) SupportsMultipleOwners() bool { return false }

func (h *Hook) RegionsAt(loc host.Location) []regions.Region {
	if loc.World == nil {
		return nil
	}
	c := h.core.ClaimAt(loc.World.ID, loc.Block())
	if c == nil {
		return nil
	}
	return []regions.Region{h.wrap(c)}
}

// RegionByName accepts a claim UUID in its 36 character text form or a claim
// name. The claim must be in w.
func (h *Hook) RegionByName(w *host.World, name string) (r regions.Region, ok bool) {
	if w == nil {
		return nil, false
	}
	defer func() {
		if v := recover(); v != nil {
			h.log.Printf("claimhook: lookup %q panicked: %v", name, v)
			r, ok = nil, false
		}
	}()
	var c *claimstore.Claim
	if len(name) == 36 {
		if id, err := uuid.Parse(name); err == nil {
			c = h.core.Claim(id)
		}
	}
	if c == nil {
		c = h.core.ClaimByName(&w.ID, name)
	}
	if c == nil {
		return nil, false
	}
	claimWorld, found := h.platform.World(c.WorldID())
	if !found || claimWorld.ID != w.ID {
		return nil, false
	}
	return h.wrap(c), true
}

// CanBuild defers to the claim covering loc. Unclaimed land is not buildable.
func (h *Hook) CanBuild(p host.Player, loc host.Location) bool {
	if loc.World == nil {
		return false
	}
	pos := loc.Block()
	c := h.core.ClaimAt(loc.World.ID, pos)
	if c == nil {
		return false
	}
	return c.CanBreak(p, pos, h.core.User(p.ID))
}

func (h *Hook) Decode(f regions.Fields) (regions.Region, error) {
	id, err := f.UUID("id")
	if err != nil {
		return nil, err
	}
	c := h.core.Claim(id)
	if c == nil {
		return nil, regions.InvalidReference(Kind, id)
	}
	return h.wrap(c), nil
}

func (h *Hook) wrap(c *claimstore.Claim) *Region {
	return &Region{hook: h, claim: c}
}

// Region is a claim from the claim library.
type Region struct {
	hook  *Hook
	claim *claimstore.Claim
}

func (r *Region) ID() uuid.UUID              { return r.claim.ID() }
func (r *Region) Kind() string               { return Kind }
func (r *Region) Provider() regions.Provider { return r.hook }
func (r *Region) Fields() regions.Fields     { return regions.IDFields(r.claim.ID()) }
func (r *Region) String() string             { return "Claim #" + r.claim.ID().String() }

func (r *Region) Contains(loc host.Location) bool {
	if r.claim.Deleted() || loc.World == nil || loc.World.ID != r.claim.WorldID() {
		return false
	}
	p := loc.Block()
	return r.claim.Contains(p.X, p.Y, p.Z)
}

// The claim library has no member tier: members are the owners.
func (r *Region) IsMember(p host.Player) bool { return r.IsOwner(p) }
func (r *Region) Members() []host.Player      { return r.Owners() }

func (r *Region) IsOwner(p host.Player) bool {
	if r.claim.Deleted() {
		return false
	}
	return p.ID == r.claim.OwnerID()
}

// Owners is empty for administrator claims: they have no player owner.
func (r *Region) Owners() []host.Player {
	if r.claim.Deleted() {
		return nil
	}
	owner := r.claim.OwnerID()
	if r.claim.IsAdminClaim() || owner == r.hook.core.AdminUser().ID() {
		return nil
	}
	return []host.Player{r.hook.platform.OfflinePlayer(owner)}
}

// Bounds is the claim's corners with the height clamped to the world.
// Claims whose world is unknown have none.
func (r *Region) Bounds() (*host.World, geom.AABB, bool) {
	if r.claim.Deleted() {
		return nil, geom.AABB{}, false
	}
	w, ok := r.hook.platform.World(r.claim.WorldID())
	if !ok || w == nil {
		return nil, geom.AABB{}, false
	}
	box := geom.NewAABB(r.claim.LesserBoundaryCorner(), r.claim.GreaterBoundaryCorner()).ClampMaxY(w.MaxHeight - 1)
	return w, box, true
}

func (r *Region) Blocks() iter.Seq[host.Block] {
	return func(yield func(host.Block) bool) {
		w, box, ok := r.Bounds()
		if !ok {
			return
		}
		for p := range box.All() {
			if !yield(host.Block{World: w, Pos: p}) {
				return
			}
		}
	}
}
