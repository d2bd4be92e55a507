// Package claimstore is the claim library backing the "Claims" region
// provider. Claims are axis-aligned boxes owned by one player (or by the
// administrator) and persisted in SQLite; the full set is kept in memory.
//
// Several processes may open the same database. Every lookup first checks
// PRAGMA data_version and reloads the cache when another connection has
// committed, updating existing Claim handles in place.
package claimstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"regionhooks.ai/internal/geom"
)

var (
	ErrNotFound   = errors.New("claim not found")
	ErrOutOfRange = errors.New("claim corner out of range")
)

// MaxCoord bounds every claim corner on each axis.
const MaxCoord = 30_000_000

type Store struct {
	db *sql.DB

	mu          sync.RWMutex
	claims      map[uuid.UUID]*Claim
	nextSeq     int64
	dataVersion int64
}

// Spec describes a claim to create. Corners may be given in any order.
type Spec struct {
	Name    string
	Owner   uuid.UUID
	World   uuid.UUID
	Admin   bool
	Corner1 geom.Vec3i
	Corner2 geom.Vec3i
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db, claims: map[uuid.UUID]*Claim{}, dataVersion: -1}
	s.mu.Lock()
	err = s.syncLocked()
	s.mu.Unlock()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS claims (
			id TEXT PRIMARY KEY,
			seq INTEGER NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			owner TEXT NOT NULL,
			world TEXT NOT NULL,
			admin INTEGER NOT NULL DEFAULT 0,
			min_x INTEGER NOT NULL,
			min_y INTEGER NOT NULL,
			min_z INTEGER NOT NULL,
			max_x INTEGER NOT NULL,
			max_y INTEGER NOT NULL,
			max_z INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS claims_world ON claims(world);`,
		`CREATE TABLE IF NOT EXISTS claim_trust (
			claim_id TEXT NOT NULL REFERENCES claims(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			PRIMARY KEY (claim_id, user_id)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Refresh reloads the cache if the database changed since the last check.
func (s *Store) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncLocked()
}

// refresh is Refresh for lookups: a failed check serves the cached claims.
func (s *Store) refresh() {
	_ = s.Refresh()
}

func (s *Store) syncLocked() error {
	var v int64
	if err := s.db.QueryRow(`PRAGMA data_version;`).Scan(&v); err != nil {
		return fmt.Errorf("data_version: %w", err)
	}
	if v == s.dataVersion {
		return nil
	}
	fresh, err := s.readClaims()
	if err != nil {
		return err
	}
	for id, old := range s.claims {
		if _, ok := fresh[id]; !ok {
			old.deleted = true
			delete(s.claims, id)
		}
	}
	for id, c := range fresh {
		if c.seq >= s.nextSeq {
			s.nextSeq = c.seq + 1
		}
		if old, ok := s.claims[id]; ok {
			old.seq, old.name, old.owner, old.world = c.seq, c.name, c.owner, c.world
			old.admin, old.box, old.trusted = c.admin, c.box, c.trusted
			continue
		}
		s.claims[id] = c
	}
	s.dataVersion = v
	return nil
}

func (s *Store) readClaims() (map[uuid.UUID]*Claim, error) {
	rows, err := s.db.Query(`SELECT id,seq,name,owner,world,admin,min_x,min_y,min_z,max_x,max_y,max_z FROM claims`)
	if err != nil {
		return nil, fmt.Errorf("load claims: %w", err)
	}
	defer rows.Close()
	out := map[uuid.UUID]*Claim{}
	for rows.Next() {
		var (
			id, owner, world string
			c                = &Claim{s: s, trusted: map[uuid.UUID]bool{}}
		)
		if err := rows.Scan(&id, &c.seq, &c.name, &owner, &world, &c.admin,
			&c.box.Min.X, &c.box.Min.Y, &c.box.Min.Z, &c.box.Max.X, &c.box.Max.Y, &c.box.Max.Z); err != nil {
			return nil, fmt.Errorf("load claims: %w", err)
		}
		if c.id, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("load claims: id %q: %w", id, err)
		}
		if c.owner, err = uuid.Parse(owner); err != nil {
			return nil, fmt.Errorf("load claims: owner of %s: %w", id, err)
		}
		if c.world, err = uuid.Parse(world); err != nil {
			return nil, fmt.Errorf("load claims: world of %s: %w", id, err)
		}
		if err := checkBox(c.box); err != nil {
			return nil, fmt.Errorf("load claims: %s: %w", id, err)
		}
		out[c.id] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load claims: %w", err)
	}

	trust, err := s.db.Query(`SELECT claim_id,user_id FROM claim_trust`)
	if err != nil {
		return nil, fmt.Errorf("load trust: %w", err)
	}
	defer trust.Close()
	for trust.Next() {
		var cid, uid string
		if err := trust.Scan(&cid, &uid); err != nil {
			return nil, fmt.Errorf("load trust: %w", err)
		}
		claimID, err1 := uuid.Parse(cid)
		userID, err2 := uuid.Parse(uid)
		if err1 != nil || err2 != nil {
			continue
		}
		if c := out[claimID]; c != nil {
			c.trusted[userID] = true
		}
	}
	if err := trust.Err(); err != nil {
		return nil, fmt.Errorf("load trust: %w", err)
	}
	return out, nil
}

func checkBox(b geom.AABB) error {
	for _, v := range []int{b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z} {
		if v < -MaxCoord || v > MaxCoord {
			return fmt.Errorf("%w: %d", ErrOutOfRange, v)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, spec Spec) (*Claim, error) {
	owner := spec.Owner
	if spec.Admin {
		owner = AdminUserID
	}
	box := geom.NewAABB(spec.Corner1, spec.Corner2)
	if err := checkBox(box); err != nil {
		return nil, fmt.Errorf("create claim: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.syncLocked(); err != nil {
		return nil, err
	}

	c := &Claim{
		s:       s,
		id:      uuid.New(),
		seq:     s.nextSeq,
		name:    strings.TrimSpace(spec.Name),
		owner:   owner,
		world:   spec.World,
		admin:   spec.Admin,
		box:     box,
		trusted: map[uuid.UUID]bool{},
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO claims(id,seq,name,owner,world,admin,min_x,min_y,min_z,max_x,max_y,max_z) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.id.String(), c.seq, c.name, c.owner.String(), c.world.String(), c.admin,
		box.Min.X, box.Min.Y, box.Min.Z, box.Max.X, box.Max.Y, box.Max.Z)
	if err != nil {
		return nil, fmt.Errorf("create claim: %w", err)
	}
	s.nextSeq++
	s.claims[c.id] = c
	return c, nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claimLocked(id)
	if !ok {
		return ErrNotFound
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM claims WHERE id=?`, id.String()); err != nil {
		return fmt.Errorf("delete claim %s: %w", id, err)
	}
	c.deleted = true
	delete(s.claims, id)
	return nil
}

func (s *Store) Rename(ctx context.Context, id uuid.UUID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claimLocked(id)
	if !ok {
		return ErrNotFound
	}
	name = strings.TrimSpace(name)
	if _, err := s.db.ExecContext(ctx, `UPDATE claims SET name=? WHERE id=?`, name, id.String()); err != nil {
		return fmt.Errorf("rename claim %s: %w", id, err)
	}
	c.name = name
	return nil
}

func (s *Store) Resize(ctx context.Context, id uuid.UUID, a, b geom.Vec3i) error {
	box := geom.NewAABB(a, b)
	if err := checkBox(box); err != nil {
		return fmt.Errorf("resize claim %s: %w", id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claimLocked(id)
	if !ok {
		return ErrNotFound
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE claims SET min_x=?,min_y=?,min_z=?,max_x=?,max_y=?,max_z=? WHERE id=?`,
		box.Min.X, box.Min.Y, box.Min.Z, box.Max.X, box.Max.Y, box.Max.Z, id.String())
	if err != nil {
		return fmt.Errorf("resize claim %s: %w", id, err)
	}
	c.box = box
	return nil
}

// claimLocked syncs and looks up id. A failed sync falls back to the cache;
// the write that follows reports the database error.
func (s *Store) claimLocked(id uuid.UUID) (*Claim, bool) {
	_ = s.syncLocked()
	c, ok := s.claims[id]
	return c, ok
}

func (s *Store) Trust(ctx context.Context, id, user uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claimLocked(id)
	if !ok {
		return ErrNotFound
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO claim_trust(claim_id,user_id) VALUES(?,?)`, id.String(), user.String())
	if err != nil {
		return fmt.Errorf("trust %s on %s: %w", user, id, err)
	}
	c.trusted[user] = true
	return nil
}

func (s *Store) Untrust(ctx context.Context, id, user uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claimLocked(id)
	if !ok {
		return ErrNotFound
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM claim_trust WHERE claim_id=? AND user_id=?`, id.String(), user.String())
	if err != nil {
		return fmt.Errorf("untrust %s on %s: %w", user, id, err)
	}
	delete(c.trusted, user)
	return nil
}

// Claims returns every live claim in creation order.
func (s *Store) Claims() []*Claim {
	s.refresh()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Claim, 0, len(s.claims))
	for _, c := range s.claims {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// ClaimAt returns the claim covering pos in world, or nil. Where claims
// overlap the smallest one wins, then the oldest.
func (s *Store) ClaimAt(world uuid.UUID, pos geom.Vec3i) *Claim {
	s.refresh()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *Claim
	for _, c := range s.claims {
		if c.world != world || !c.box.Contains(pos) {
			continue
		}
		if best == nil {
			best = c
			continue
		}
		cv, bv := c.box.Volume(), best.box.Volume()
		if cv < bv || (cv == bv && c.seq < best.seq) {
			best = c
		}
	}
	return best
}

func (s *Store) Claim(id uuid.UUID) *Claim {
	s.refresh()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.claims[id]
}

// ClaimByName returns the oldest claim with the given name (case-insensitive).
// A nil world searches every world.
func (s *Store) ClaimByName(world *uuid.UUID, name string) *Claim {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	s.refresh()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *Claim
	for _, c := range s.claims {
		if world != nil && c.world != *world {
			continue
		}
		if !strings.EqualFold(c.name, name) {
			continue
		}
		if best == nil || c.seq < best.seq {
			best = c
		}
	}
	return best
}

func (s *Store) User(id uuid.UUID) *User { return &User{id: id} }

func (s *Store) AdminUser() *User { return &User{id: AdminUserID} }
