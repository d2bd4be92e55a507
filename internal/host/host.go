// Package host models the parts of the game server the region layer reads:
// worlds, locations, blocks and offline player identities.
package host

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"regionhooks.ai/internal/geom"
)

type World struct {
	ID        uuid.UUID
	Name      string
	MaxHeight int
}

func (w *World) String() string {
	if w == nil {
		return "<nil world>"
	}
	return w.Name
}

// Location is a point in a world. Coordinates may be fractional.
type Location struct {
	World   *World
	X, Y, Z float64
}

func At(w *World, x, y, z float64) Location {
	return Location{World: w, X: x, Y: y, Z: z}
}

// BlockAt is the location of the block's minimum corner.
func BlockAt(w *World, p geom.Vec3i) Location {
	return Location{World: w, X: float64(p.X), Y: float64(p.Y), Z: float64(p.Z)}
}

// Block returns the integer block coordinates containing the location.
func (l Location) Block() geom.Vec3i {
	return geom.Vec3i{
		X: int(math.Floor(l.X)),
		Y: int(math.Floor(l.Y)),
		Z: int(math.Floor(l.Z)),
	}
}

type Block struct {
	World *World
	Pos   geom.Vec3i
}

func (b Block) String() string {
	return fmt.Sprintf("%s(%d,%d,%d)", b.World, b.Pos.X, b.Pos.Y, b.Pos.Z)
}

// Player is an offline player identity. Name is empty when the server never saw the player.
type Player struct {
	ID   uuid.UUID
	Name string
}

func (p Player) String() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID.String()
}

type Platform interface {
	World(id uuid.UUID) (*World, bool)
	WorldByName(name string) (*World, bool)
	OfflinePlayer(id uuid.UUID) Player
}

// Server is an in-process Platform. Worlds are registered at startup; player
// names may be recorded at any time.
type Server struct {
	mu      sync.RWMutex
	worlds  map[uuid.UUID]*World
	byName  map[string]*World
	players map[uuid.UUID]string
}

func NewServer(worlds ...*World) *Server {
	s := &Server{
		worlds:  map[uuid.UUID]*World{},
		byName:  map[string]*World{},
		players: map[uuid.UUID]string{},
	}
	for _, w := range worlds {
		s.AddWorld(w)
	}
	return s
}

func (s *Server) AddWorld(w *World) {
	if w == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.worlds[w.ID] = w
	s.byName[strings.ToLower(w.Name)] = w
}

func (s *Server) World(id uuid.UUID) (*World, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.worlds[id]
	return w, ok
}

func (s *Server) WorldByName(name string) (*World, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.byName[strings.ToLower(strings.TrimSpace(name))]
	return w, ok
}

func (s *Server) Worlds() []*World {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*World, 0, len(s.worlds))
	for _, w := range s.worlds {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Server) SeePlayer(id uuid.UUID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[id] = name
}

func (s *Server) OfflinePlayer(id uuid.UUID) Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Player{ID: id, Name: s.players[id]}
}
