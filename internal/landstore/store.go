// Package landstore keeps anchor/radius land claims in Badger. All lands are
// cached in memory; Badger is the write-through durable copy.
package landstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"

	"regionhooks.ai/internal/geom"
)

var (
	ErrNotFound   = errors.New("land not found")
	ErrOutOfRange = errors.New("land out of range")
)

// MaxCoord bounds every block a land covers on the X and Z axes.
const MaxCoord = 30_000_000

const keyPrefix = "land:"

type Store struct {
	db *badger.DB

	mu    sync.RWMutex
	lands map[uuid.UUID]*LandClaim
}

// Open opens (or creates) the store in dir. An empty dir keeps everything in memory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	s := &Store{db: db, lands: map[uuid.UUID]*LandClaim{}}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	prefix := []byte(keyPrefix)
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var c LandClaim
				if err := json.Unmarshal(val, &c); err != nil {
					return fmt.Errorf("decode %s: %w", item.Key(), err)
				}
				s.lands[c.LandID] = &c
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func landKey(id uuid.UUID) []byte {
	return []byte(keyPrefix + id.String())
}

// Put creates or replaces a land. A zero LandID is assigned a fresh one.
func (s *Store) Put(c LandClaim) (LandClaim, error) {
	if c.LandID == uuid.Nil {
		c.LandID = uuid.New()
	}
	if c.Radius < 0 {
		return LandClaim{}, fmt.Errorf("land %s: negative radius", c.LandID)
	}
	if c.Radius > MaxCoord || !inRange(c.Anchor.X, c.Radius) || !inRange(c.Anchor.Z, c.Radius) {
		return LandClaim{}, fmt.Errorf("land %s: %w", c.LandID, ErrOutOfRange)
	}
	if c.ClaimType == "" {
		c.ClaimType = ClaimTypeDefault
	}
	c.Name = strings.TrimSpace(c.Name)
	stored := c.clone()
	b, err := json.Marshal(&stored)
	if err != nil {
		return LandClaim{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(landKey(c.LandID), b)
	})
	if err != nil {
		return LandClaim{}, fmt.Errorf("put land %s: %w", c.LandID, err)
	}
	s.lands[c.LandID] = &stored
	return stored.clone(), nil
}

func (s *Store) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lands[id]; !ok {
		return ErrNotFound
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(landKey(id))
	})
	if err != nil {
		return fmt.Errorf("delete land %s: %w", id, err)
	}
	delete(s.lands, id)
	return nil
}

// SetMember adds or removes player from the land's members.
func (s *Store) SetMember(id, player uuid.UUID, member bool) (LandClaim, error) {
	c, ok := s.Get(id)
	if !ok {
		return LandClaim{}, ErrNotFound
	}
	if member {
		if c.Members == nil {
			c.Members = map[uuid.UUID]bool{}
		}
		c.Members[player] = true
	} else {
		delete(c.Members, player)
	}
	return s.Put(c)
}

// Get returns a copy of the land.
func (s *Store) Get(id uuid.UUID) (LandClaim, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.lands[id]
	if !ok {
		return LandClaim{}, false
	}
	return c.clone(), true
}

// At returns the land covering pos in world. Overlaps resolve to the smallest
// radius, then the lowest id.
func (s *Store) At(world uuid.UUID, pos geom.Vec3i) (LandClaim, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *LandClaim
	for _, c := range s.lands {
		if c.World != world || !c.Contains(pos) {
			continue
		}
		if best == nil || c.Radius < best.Radius || (c.Radius == best.Radius && c.LandID.String() < best.LandID.String()) {
			best = c
		}
	}
	if best == nil {
		return LandClaim{}, false
	}
	return best.clone(), true
}

// ByName matches case-insensitively within world; the lowest id wins.
func (s *Store) ByName(world uuid.UUID, name string) (LandClaim, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return LandClaim{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *LandClaim
	for _, c := range s.lands {
		if c.World != world || !strings.EqualFold(c.Name, name) {
			continue
		}
		if best == nil || c.LandID.String() < best.LandID.String() {
			best = c
		}
	}
	if best == nil {
		return LandClaim{}, false
	}
	return best.clone(), true
}

func (s *Store) All() []LandClaim {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LandClaim, 0, len(s.lands))
	for _, c := range s.lands {
		out = append(out, c.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LandID.String() < out[j].LandID.String() })
	return out
}

func inRange(v, radius int) bool {
	return v >= -MaxCoord+radius && v <= MaxCoord-radius
}
