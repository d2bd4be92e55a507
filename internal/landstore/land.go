package landstore

import (
	"github.com/google/uuid"

	"regionhooks.ai/internal/geom"
)

type Flags struct {
	AllowBuild  bool `json:"allow_build"`
	AllowBreak  bool `json:"allow_break"`
	AllowDamage bool `json:"allow_damage"`
	AllowTrade  bool `json:"allow_trade"`
}

const (
	ClaimTypeDefault   = "DEFAULT"
	ClaimTypeHomestead = "HOMESTEAD"
	ClaimTypeCityCore  = "CITY_CORE"
)

// DefaultFlags returns the visitor flags a new land of claimType starts with.
func DefaultFlags(claimType string) Flags {
	switch claimType {
	case ClaimTypeCityCore:
		return Flags{AllowTrade: true}
	default:
		return Flags{}
	}
}

// Maintenance stages: 0 ok, 1 late (no expansion), 2 unprotected.
const (
	MaintenanceOK          = 0
	MaintenanceLate        = 1
	MaintenanceUnprotected = 2
)

// LandClaim is a full-height square column centred on Anchor.
type LandClaim struct {
	LandID    uuid.UUID          `json:"land_id"`
	Name      string             `json:"name,omitempty"`
	World     uuid.UUID          `json:"world"`
	Owner     uuid.UUID          `json:"owner"` // uuid.Nil for server-owned land
	ClaimType string             `json:"claim_type"`
	Anchor    geom.Vec3i         `json:"anchor"`
	Radius    int                `json:"radius"` // square radius in blocks
	Flags     Flags              `json:"flags"`
	Members   map[uuid.UUID]bool `json:"members,omitempty"`

	MaintenanceStage int `json:"maintenance_stage,omitempty"`
}

// Contains ignores height.
func (c *LandClaim) Contains(pos geom.Vec3i) bool {
	dx := pos.X - c.Anchor.X
	if dx < 0 {
		dx = -dx
	}
	dz := pos.Z - c.Anchor.Z
	if dz < 0 {
		dz = -dz
	}
	return dx <= c.Radius && dz <= c.Radius
}

// IsMember is true for the owner and for listed members.
func (c *LandClaim) IsMember(id uuid.UUID) bool {
	if c.Owner != uuid.Nil && id == c.Owner {
		return true
	}
	return c.Members[id]
}

func (c *LandClaim) clone() LandClaim {
	out := *c
	if c.Members != nil {
		out.Members = make(map[uuid.UUID]bool, len(c.Members))
		for k, v := range c.Members {
			out.Members[k] = v
		}
	}
	return out
}
