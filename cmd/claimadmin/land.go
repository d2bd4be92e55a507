package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"regionhooks.ai/internal/landstore"
	"regionhooks.ai/internal/protocol"
	"regionhooks.ai/internal/query"
)

// landOps is the land store as claimadmin uses it: opened directly, or
// through a running regiond that holds the store's lock.
type landOps interface {
	Put(c landstore.LandClaim) (landstore.LandClaim, error)
	Delete(id uuid.UUID) error
	SetMember(id, player uuid.UUID, member bool) (landstore.LandClaim, error)
	All() ([]landstore.LandClaim, error)
	Close() error
}

func landCmd(args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: claimadmin land <create|list|delete|member> [flags]", errUsage)
	}
	fs := flag.NewFlagSet("land "+args[0], flag.ContinueOnError)
	c := commonFlags(fs)
	dir := fs.String("dir", "./data/lands", "land store directory")
	server := fs.String("server", "", "regiond admin websocket, e.g. ws://127.0.0.1:8090/admin/v1/ws (default: open -dir directly)")
	open := func() (landOps, error) { return openLands(*dir, *server) }
	switch args[0] {
	case "create":
		name := fs.String("name", "", "land name")
		owner := fs.String("owner", "", "owner uuid (empty for server land)")
		world := fs.String("world", "", "world name or uuid")
		anchor := fs.String("anchor", "", "anchor x,y,z")
		radius := fs.Int("radius", 16, "square radius in blocks")
		claimType := fs.String("type", landstore.ClaimTypeDefault, "claim type (DEFAULT, HOMESTEAD, CITY_CORE)")
		if err := fs.Parse(args[1:]); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		land := landstore.LandClaim{Name: *name, Radius: *radius, ClaimType: strings.ToUpper(strings.TrimSpace(*claimType))}
		land.Flags = landstore.DefaultFlags(land.ClaimType)
		var err error
		if land.World, err = c.world(*world); err != nil {
			return err
		}
		if land.Anchor, err = parseVec3(*anchor); err != nil {
			return fmt.Errorf("%w: bad -anchor: %v", errUsage, err)
		}
		if strings.TrimSpace(*owner) != "" {
			if land.Owner, err = uuid.Parse(strings.TrimSpace(*owner)); err != nil {
				return fmt.Errorf("%w: bad -owner: %v", errUsage, err)
			}
		}
		return withLands(open, func(s landOps) error {
			saved, err := s.Put(land)
			if err != nil {
				return err
			}
			c.record("create", "land", saved.LandID, map[string]any{"name": saved.Name, "radius": saved.Radius})
			fmt.Fprintf(out, "created %s\n", saved.LandID)
			return nil
		})
	case "list":
		if err := fs.Parse(args[1:]); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return withLands(open, func(s landOps) error {
			all, err := s.All()
			if err != nil {
				return err
			}
			for _, l := range all {
				fmt.Fprintf(out, "%s\t%s\t%s\t%d,%d,%d\tr=%d\tmembers=%d\n",
					l.LandID, l.Name, l.ClaimType, l.Anchor.X, l.Anchor.Y, l.Anchor.Z, l.Radius, len(l.Members))
			}
			return nil
		})
	case "delete":
		if err := fs.Parse(args[1:]); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		id, err := claimArg(fs)
		if err != nil {
			return err
		}
		return withLands(open, func(s landOps) error {
			if err := s.Delete(id); err != nil {
				return err
			}
			c.record("delete", "land", id, nil)
			fmt.Fprintf(out, "deleted %s\n", id)
			return nil
		})
	case "member":
		player := fs.String("player", "", "player uuid")
		remove := fs.Bool("remove", false, "remove instead of add")
		if err := fs.Parse(args[1:]); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		id, err := claimArg(fs)
		if err != nil {
			return err
		}
		pid, err := uuid.Parse(strings.TrimSpace(*player))
		if err != nil {
			return fmt.Errorf("%w: bad -player: %v", errUsage, err)
		}
		return withLands(open, func(s landOps) error {
			l, err := s.SetMember(id, pid, !*remove)
			if err != nil {
				return err
			}
			action := "add_member"
			if *remove {
				action = "remove_member"
			}
			c.record(action, "land", id, map[string]any{"player": pid.String()})
			fmt.Fprintf(out, "land %s members=%d\n", id, len(l.Members))
			return nil
		})
	default:
		return fmt.Errorf("%w: unknown land command %q", errUsage, args[0])
	}
}

func withLands(open func() (landOps, error), fn func(landOps) error) error {
	s, err := open()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func openLands(dir, server string) (landOps, error) {
	if server = strings.TrimSpace(server); server != "" {
		return dialLands(server)
	}
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: missing -dir", errUsage)
	}
	s, err := landstore.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open %s (pass -server while regiond is running): %w", dir, err)
	}
	return localLands{s}, nil
}

type localLands struct{ *landstore.Store }

func (l localLands) All() ([]landstore.LandClaim, error) { return l.Store.All(), nil }

// remoteLands sends admin messages to regiond, which applies them on its
// query loop.
type remoteLands struct {
	conn *websocket.Conn
	seq  int
}

func dialLands(url string) (*remoteLands, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &remoteLands{conn: conn}, nil
}

func (r *remoteLands) Close() error { return r.conn.Close() }

func (r *remoteLands) call(q protocol.QueryMsg) ([]landstore.LandClaim, error) {
	r.seq++
	q.ProtocolVersion = protocol.Version
	q.ReqID = fmt.Sprintf("claimadmin-%d", r.seq)
	b, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	_ = r.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := r.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return nil, err
	}
	_ = r.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, b, err = r.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var res protocol.ResultMsg
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	if !res.OK {
		if res.Code == protocol.ErrNotFound {
			return nil, fmt.Errorf("%s: %w", res.Message, landstore.ErrNotFound)
		}
		return nil, errors.New(res.Code + ": " + res.Message)
	}
	out := make([]landstore.LandClaim, 0, len(res.Lands))
	for _, spec := range res.Lands {
		c, err := query.LandFromSpec(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *remoteLands) one(q protocol.QueryMsg) (landstore.LandClaim, error) {
	lands, err := r.call(q)
	if err != nil {
		return landstore.LandClaim{}, err
	}
	if len(lands) != 1 {
		return landstore.LandClaim{}, fmt.Errorf("%s: expected one land, got %d", q.Type, len(lands))
	}
	return lands[0], nil
}

func (r *remoteLands) Put(c landstore.LandClaim) (landstore.LandClaim, error) {
	spec := query.LandSpec(c)
	spec.ID = ""
	return r.one(protocol.QueryMsg{Type: protocol.TypeLandCreate, Land: &spec})
}

func (r *remoteLands) Delete(id uuid.UUID) error {
	_, err := r.call(protocol.QueryMsg{Type: protocol.TypeLandDelete, Land: &protocol.LandSpec{ID: id.String()}})
	return err
}

func (r *remoteLands) SetMember(id, player uuid.UUID, member bool) (landstore.LandClaim, error) {
	return r.one(protocol.QueryMsg{Type: protocol.TypeLandMember, Land: &protocol.LandSpec{ID: id.String()}, Player: player.String(), Remove: !member})
}

func (r *remoteLands) All() ([]landstore.LandClaim, error) {
	return r.call(protocol.QueryMsg{Type: protocol.TypeLandList})
}
