package claimstore

import (
	"sort"

	"github.com/google/uuid"

	"regionhooks.ai/internal/geom"
	"regionhooks.ai/internal/host"
)

// AdminUserID owns administrator claims.
var AdminUserID = uuid.MustParse("00000000-0000-0000-0000-000000000000")

type User struct {
	id uuid.UUID
}

func (u *User) ID() uuid.UUID { return u.id }

// Claim is a live handle: accessors read the store's current state, so
// renames, resizes and trust changes are visible through existing handles.
// After Delete, here or through another connection, the handle keeps its last
// state and reports Deleted.
type Claim struct {
	s *Store

	id      uuid.UUID
	seq     int64
	name    string
	owner   uuid.UUID
	world   uuid.UUID
	admin   bool
	box     geom.AABB
	trusted map[uuid.UUID]bool
	deleted bool
}

func (c *Claim) ID() uuid.UUID { return c.id }

func (c *Claim) Name() string {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return c.name
}

func (c *Claim) OwnerID() uuid.UUID {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return c.owner
}

func (c *Claim) IsAdminClaim() bool {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return c.admin
}

func (c *Claim) WorldID() uuid.UUID {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return c.world
}

func (c *Claim) LesserBoundaryCorner() geom.Vec3i {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return c.box.Min
}

func (c *Claim) GreaterBoundaryCorner() geom.Vec3i {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return c.box.Max
}

// Deleted checks the database for changes first, so deletes committed by
// another process are seen without a lookup.
func (c *Claim) Deleted() bool {
	c.s.refresh()
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return c.deleted
}

// Contains is inclusive on both corners.
func (c *Claim) Contains(x, y, z int) bool {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return c.box.Contains(geom.Vec3i{X: x, Y: y, Z: z})
}

func (c *Claim) Trusted() []uuid.UUID {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(c.trusted))
	for id := range c.trusted {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// CanBreak reports whether p may break blocks at pos. The owner and trusted
// users may; on administrator claims only the admin user and trusted users may.
func (c *Claim) CanBreak(p host.Player, pos geom.Vec3i, u *User) bool {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	if c.deleted || !c.box.Contains(pos) {
		return false
	}
	id := p.ID
	if u != nil {
		id = u.id
	}
	if c.trusted[id] {
		return true
	}
	if c.admin {
		return id == AdminUserID
	}
	return id == c.owner
}

