package landstore

import "github.com/google/uuid"

type Permissions struct {
	CanBuild  bool
	CanBreak  bool
	CanDamage bool
	CanTrade  bool
}

// WildPermissions apply outside any land and on unprotected land.
func WildPermissions() Permissions {
	return Permissions{
		CanBuild:  true,
		CanBreak:  true,
		CanDamage: false,
		CanTrade:  true,
	}
}

func ForLand(isMember bool, maintenanceStage int, flags Flags) Permissions {
	if isMember {
		return Permissions{
			CanBuild:  true,
			CanBreak:  true,
			CanDamage: flags.AllowDamage,
			CanTrade:  true,
		}
	}
	if maintenanceStage >= MaintenanceUnprotected {
		return WildPermissions()
	}
	return Permissions{
		CanBuild:  flags.AllowBuild,
		CanBreak:  flags.AllowBreak,
		CanDamage: flags.AllowDamage,
		CanTrade:  flags.AllowTrade,
	}
}

// PermissionsFor resolves what player may do on c.
func (c *LandClaim) PermissionsFor(player uuid.UUID) Permissions {
	return ForLand(c.IsMember(player), c.MaintenanceStage, c.Flags)
}
