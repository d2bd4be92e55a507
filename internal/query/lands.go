package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"regionhooks.ai/internal/landstore"
	"regionhooks.ai/internal/protocol"
)

// LandAdmin is the land store as seen by admin messages. Mutations run on
// the loop goroutine, so the land provider never races them.
type LandAdmin interface {
	Put(c landstore.LandClaim) (landstore.LandClaim, error)
	Delete(id uuid.UUID) error
	SetMember(id, player uuid.UUID, member bool) (landstore.LandClaim, error)
	All() []landstore.LandClaim
}

// SetLands enables land administration. Call it before Run.
func (l *Loop) SetLands(s LandAdmin) { l.lands = s }

func (l *Loop) handleLand(msg protocol.QueryMsg, res protocol.ResultMsg) protocol.ResultMsg {
	switch msg.Type {
	case protocol.TypeLandList:
		all := l.lands.All()
		res.Lands = make([]protocol.LandSpec, 0, len(all))
		for _, c := range all {
			res.Lands = append(res.Lands, LandSpec(c))
		}
	case protocol.TypeLandCreate:
		if msg.Land == nil {
			return fail(res, protocol.ErrBadRequest, "land is required")
		}
		c, err := LandFromSpec(*msg.Land)
		if err != nil {
			return fail(res, protocol.ErrBadRequest, err.Error())
		}
		if _, ok := l.platform.World(c.World); !ok {
			return fail(res, protocol.ErrWorldNotFound, "unknown world "+msg.Land.World)
		}
		c.LandID = uuid.Nil
		saved, err := l.lands.Put(c)
		if err != nil {
			return fail(res, protocol.ErrBadRequest, err.Error())
		}
		res.Lands = []protocol.LandSpec{LandSpec(saved)}
	case protocol.TypeLandDelete:
		id, err := landID(msg)
		if err != nil {
			return fail(res, protocol.ErrBadRequest, err.Error())
		}
		if err := l.lands.Delete(id); err != nil {
			return landFail(res, err)
		}
	case protocol.TypeLandMember:
		id, err := landID(msg)
		if err != nil {
			return fail(res, protocol.ErrBadRequest, err.Error())
		}
		player, err := uuid.Parse(strings.TrimSpace(msg.Player))
		if err != nil {
			return fail(res, protocol.ErrBadRequest, "player must be a uuid")
		}
		saved, err := l.lands.SetMember(id, player, !msg.Remove)
		if err != nil {
			return landFail(res, err)
		}
		res.Lands = []protocol.LandSpec{LandSpec(saved)}
	}
	l.log.Printf("query: %s %s ok", msg.Type, msg.ReqID)
	res.OK = true
	return res
}

func landID(msg protocol.QueryMsg) (uuid.UUID, error) {
	if msg.Land == nil {
		return uuid.Nil, fmt.Errorf("land.id is required")
	}
	id, err := uuid.Parse(strings.TrimSpace(msg.Land.ID))
	if err != nil {
		return uuid.Nil, fmt.Errorf("land.id: %w", err)
	}
	return id, nil
}

func landFail(res protocol.ResultMsg, err error) protocol.ResultMsg {
	if errors.Is(err, landstore.ErrNotFound) {
		return fail(res, protocol.ErrNotFound, err.Error())
	}
	return fail(res, protocol.ErrInternal, err.Error())
}

// LandSpec is the wire form of c.
func LandSpec(c landstore.LandClaim) protocol.LandSpec {
	out := protocol.LandSpec{
		ID:        c.LandID.String(),
		Name:      c.Name,
		World:     c.World.String(),
		ClaimType: c.ClaimType,
		Anchor:    [3]int{c.Anchor.X, c.Anchor.Y, c.Anchor.Z},
		Radius:    c.Radius,
		Flags: &protocol.LandFlags{
			AllowBuild:  c.Flags.AllowBuild,
			AllowBreak:  c.Flags.AllowBreak,
			AllowDamage: c.Flags.AllowDamage,
			AllowTrade:  c.Flags.AllowTrade,
		},
	}
	if c.Owner != uuid.Nil {
		out.Owner = c.Owner.String()
	}
	for id, in := range c.Members {
		if in {
			out.Members = append(out.Members, id.String())
		}
	}
	sort.Strings(out.Members)
	return out
}

// LandFromSpec parses a wire land. An empty ID or owner stays uuid.Nil.
func LandFromSpec(s protocol.LandSpec) (landstore.LandClaim, error) {
	var (
		c   landstore.LandClaim
		err error
	)
	if id := strings.TrimSpace(s.ID); id != "" {
		if c.LandID, err = uuid.Parse(id); err != nil {
			return c, fmt.Errorf("land.id: %w", err)
		}
	}
	if c.World, err = uuid.Parse(strings.TrimSpace(s.World)); err != nil {
		return c, fmt.Errorf("land.world: %w", err)
	}
	if owner := strings.TrimSpace(s.Owner); owner != "" {
		if c.Owner, err = uuid.Parse(owner); err != nil {
			return c, fmt.Errorf("land.owner: %w", err)
		}
	}
	c.Name = s.Name
	c.ClaimType = strings.ToUpper(strings.TrimSpace(s.ClaimType))
	if c.ClaimType == "" {
		c.ClaimType = landstore.ClaimTypeDefault
	}
	c.Anchor.X, c.Anchor.Y, c.Anchor.Z = s.Anchor[0], s.Anchor[1], s.Anchor[2]
	c.Radius = s.Radius
	c.Flags = landstore.DefaultFlags(c.ClaimType)
	if s.Flags != nil {
		c.Flags = landstore.Flags{
			AllowBuild:  s.Flags.AllowBuild,
			AllowBreak:  s.Flags.AllowBreak,
			AllowDamage: s.Flags.AllowDamage,
			AllowTrade:  s.Flags.AllowTrade,
		}
	}
	for _, m := range s.Members {
		id, err := uuid.Parse(strings.TrimSpace(m))
		if err != nil {
			return c, fmt.Errorf("land.members: %w", err)
		}
		if c.Members == nil {
			c.Members = map[uuid.UUID]bool{}
		}
		c.Members[id] = true
	}
	return c, nil
}
