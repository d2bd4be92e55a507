// Package landhook exposes anchor/radius lands (internal/landstore) as
// regions. Lands have an owner and a member tier, and cover the full height
// of their world.
package landhook

import (
	"io"
	"iter"
	"log"
	"sort"

	"github.com/google/uuid"

	"regionhooks.ai/internal/geom"
	"regionhooks.ai/internal/host"
	"regionhooks.ai/internal/landstore"
	"regionhooks.ai/internal/regions"
)

const (
	ProviderName = "Lands"
	Kind         = "LandRegion"
)

type Core interface {
	At(world uuid.UUID, pos geom.Vec3i) (landstore.LandClaim, bool)
	Get(id uuid.UUID) (landstore.LandClaim, bool)
	ByName(world uuid.UUID, name string) (landstore.LandClaim, bool)
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
	pos := loc.Block()
	if pos.Y < 0 || pos.Y >= loc.World.MaxHeight {
		return nil
	}
	c, ok := h.core.At(loc.World.ID, pos)
	if !ok {
		return nil
	}
	return []regions.Region{h.wrap(c.LandID)}
}

// RegionByName accepts a land id or a land name within w.
func (h *Hook) RegionByName(w *host.World, name string) (regions.Region, bool) {
	if w == nil {
		return nil, false
	}
	if id, err := uuid.Parse(name); err == nil {
		if c, ok := h.core.Get(id); ok && c.World == w.ID {
			return h.wrap(id), true
		}
	}
	c, ok := h.core.ByName(w.ID, name)
	if !ok {
		return nil, false
	}
	return h.wrap(c.LandID), true
}

// CanBuild applies the land's member and flag rules. Unclaimed land is not
// buildable.
func (h *Hook) CanBuild(p host.Player, loc host.Location) bool {
	if loc.World == nil {
		return false
	}
	c, ok := h.core.At(loc.World.ID, loc.Block())
	if !ok {
		return false
	}
	return c.PermissionsFor(p.ID).CanBuild
}

func (h *Hook) Decode(f regions.Fields) (regions.Region, error) {
	id, err := f.UUID("id")
	if err != nil {
		return nil, err
	}
	if _, ok := h.core.Get(id); !ok {
		return nil, regions.InvalidReference(Kind, id)
	}
	return h.wrap(id), nil
}

func (h *Hook) wrap(id uuid.UUID) *Region {
	return &Region{hook: h, id: id}
}

// Region is a land looked up by id on every query; a deleted land answers
// false and empty.
type Region struct {
	hook *Hook
	id   uuid.UUID
}

func (r *Region) ID() uuid.UUID              { return r.id }
func (r *Region) Kind() string               { return Kind }
func (r *Region) Provider() regions.Provider { return r.hook }
func (r *Region) Fields() regions.Fields     { return regions.IDFields(r.id) }
func (r *Region) String() string             { return "Land #" + r.id.String() }

func (r *Region) land() (landstore.LandClaim, bool) {
	return r.hook.core.Get(r.id)
}

func (r *Region) Contains(loc host.Location) bool {
	c, ok := r.land()
	if !ok || loc.World == nil || loc.World.ID != c.World {
		return false
	}
	pos := loc.Block()
	return pos.Y >= 0 && pos.Y < loc.World.MaxHeight && c.Contains(pos)
}

func (r *Region) IsOwner(p host.Player) bool {
	c, ok := r.land()
	return ok && c.Owner != uuid.Nil && p.ID == c.Owner
}

func (r *Region) IsMember(p host.Player) bool {
	c, ok := r.land()
	return ok && c.IsMember(p.ID)
}

// Owners is empty for server-owned land.
func (r *Region) Owners() []host.Player {
	c, ok := r.land()
	if !ok || c.Owner == uuid.Nil {
		return nil
	}
	return []host.Player{r.hook.platform.OfflinePlayer(c.Owner)}
}

// Members lists the owner first, then members ordered by id.
func (r *Region) Members() []host.Player {
	c, ok := r.land()
	if !ok {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(c.Members))
	for id, in := range c.Members {
		if in && id != c.Owner {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	out := r.Owners()
	for _, id := range ids {
		out = append(out, r.hook.platform.OfflinePlayer(id))
	}
	return out
}

// Bounds is the land's full-height column.
func (r *Region) Bounds() (*host.World, geom.AABB, bool) {
	c, ok := r.land()
	if !ok {
		return nil, geom.AABB{}, false
	}
	w, ok := r.hook.platform.World(c.World)
	if !ok || w == nil || w.MaxHeight <= 0 {
		return nil, geom.AABB{}, false
	}
	box := geom.NewAABB(
		geom.Vec3i{X: c.Anchor.X - c.Radius, Y: 0, Z: c.Anchor.Z - c.Radius},
		geom.Vec3i{X: c.Anchor.X + c.Radius, Y: w.MaxHeight - 1, Z: c.Anchor.Z + c.Radius},
	)
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
