package claimstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"regionhooks.ai/internal/geom"
	"regionhooks.ai/internal/host"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claims.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestStore_CreateAndLookup(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	world := uuid.New()
	owner := uuid.New()

	c, err := s.Create(ctx, Spec{Name: "Home", Owner: owner, World: world, Corner1: geom.Vec3i{X: 10, Y: 300, Z: 10}, Corner2: geom.Vec3i{}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.LesserBoundaryCorner() != (geom.Vec3i{}) || c.GreaterBoundaryCorner() != (geom.Vec3i{X: 10, Y: 300, Z: 10}) {
		t.Fatalf("corners not normalized: %+v %+v", c.LesserBoundaryCorner(), c.GreaterBoundaryCorner())
	}
	if got := s.ClaimAt(world, geom.Vec3i{X: 5, Y: 5, Z: 5}); got != c {
		t.Fatalf("ClaimAt inside: got %v", got)
	}
	if got := s.ClaimAt(world, geom.Vec3i{X: 11, Y: 5, Z: 5}); got != nil {
		t.Fatalf("ClaimAt outside: got %v", got)
	}
	if got := s.ClaimAt(uuid.New(), geom.Vec3i{X: 5, Y: 5, Z: 5}); got != nil {
		t.Fatalf("ClaimAt in other world: got %v", got)
	}
	if got := s.Claim(c.ID()); got != c {
		t.Fatalf("Claim by id: got %v", got)
	}
	if got := s.ClaimByName(nil, "home"); got != c {
		t.Fatalf("ClaimByName any world: got %v", got)
	}
	other := uuid.New()
	if got := s.ClaimByName(&other, "home"); got != nil {
		t.Fatalf("ClaimByName wrong world: got %v", got)
	}
}

func TestStore_ClaimAtPrefersSmallest(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	world := uuid.New()
	big, _ := s.Create(ctx, Spec{Owner: uuid.New(), World: world, Corner1: geom.Vec3i{}, Corner2: geom.Vec3i{X: 100, Y: 100, Z: 100}})
	small, _ := s.Create(ctx, Spec{Owner: uuid.New(), World: world, Corner1: geom.Vec3i{X: 10, Y: 10, Z: 10}, Corner2: geom.Vec3i{X: 20, Y: 20, Z: 20}})
	if got := s.ClaimAt(world, geom.Vec3i{X: 15, Y: 15, Z: 15}); got != small {
		t.Fatalf("expected nested claim to win")
	}
	if got := s.ClaimAt(world, geom.Vec3i{X: 50, Y: 50, Z: 50}); got != big {
		t.Fatalf("expected outer claim")
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.db")
	ctx := context.Background()
	world, owner, friend := uuid.New(), uuid.New(), uuid.New()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	c, err := s.Create(ctx, Spec{Name: "farm", Owner: owner, World: world, Corner1: geom.Vec3i{X: -5, Y: 0, Z: -5}, Corner2: geom.Vec3i{X: 5, Y: 64, Z: 5}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	admin, err := s.Create(ctx, Spec{Name: "spawn", World: world, Admin: true, Corner1: geom.Vec3i{X: 100}, Corner2: geom.Vec3i{X: 120, Y: 10, Z: 20}})
	if err != nil {
		t.Fatalf("Create admin: %v", err)
	}
	if err := s.Trust(ctx, c.ID(), friend); err != nil {
		t.Fatalf("Trust: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got := s2.Claim(c.ID())
	if got == nil {
		t.Fatalf("claim lost across reopen")
	}
	if got.Name() != "farm" || got.OwnerID() != owner || got.WorldID() != world || got.IsAdminClaim() {
		t.Fatalf("unexpected reloaded claim: name=%q owner=%s", got.Name(), got.OwnerID())
	}
	if tr := got.Trusted(); len(tr) != 1 || tr[0] != friend {
		t.Fatalf("trust lost: %v", tr)
	}
	a := s2.Claim(admin.ID())
	if a == nil || !a.IsAdminClaim() || a.OwnerID() != AdminUserID {
		t.Fatalf("admin claim not restored: %v", a)
	}

	next, err := s2.Create(ctx, Spec{Name: "farm", Owner: owner, World: world, Corner2: geom.Vec3i{X: 1}})
	if err != nil {
		t.Fatalf("Create after reopen: %v", err)
	}
	if s2.ClaimByName(&world, "farm") != got {
		t.Fatalf("oldest claim should win a shared name")
	}
	if claims := s2.Claims(); len(claims) != 3 || claims[2] != next {
		t.Fatalf("claims should be in creation order: %v", claims)
	}
}

func TestStore_MutationsVisibleThroughHandles(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	world := uuid.New()
	c, _ := s.Create(ctx, Spec{Name: "a", Owner: uuid.New(), World: world, Corner2: geom.Vec3i{X: 3, Y: 3, Z: 3}})

	if err := s.Rename(ctx, c.ID(), "b"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if c.Name() != "b" {
		t.Fatalf("rename not visible: %q", c.Name())
	}
	if err := s.Resize(ctx, c.ID(), geom.Vec3i{X: 10}, geom.Vec3i{X: 20, Y: 5, Z: 5}); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if c.Contains(1, 1, 1) || !c.Contains(15, 1, 1) {
		t.Fatalf("resize not visible")
	}
	if err := s.Delete(ctx, c.ID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !c.Deleted() || s.Claim(c.ID()) != nil {
		t.Fatalf("delete not visible")
	}
	if err := s.Delete(ctx, c.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: got %v", err)
	}
	if err := s.Rename(ctx, uuid.New(), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rename missing: got %v", err)
	}
}

func TestClaim_CanBreak(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	world := uuid.New()
	owner, friend, stranger := uuid.New(), uuid.New(), uuid.New()
	c, _ := s.Create(ctx, Spec{Owner: owner, World: world, Corner2: geom.Vec3i{X: 9, Y: 9, Z: 9}})
	_ = s.Trust(ctx, c.ID(), friend)
	in := geom.Vec3i{X: 1, Y: 1, Z: 1}

	can := func(id uuid.UUID, pos geom.Vec3i) bool {
		return c.CanBreak(host.Player{ID: id}, pos, s.User(id))
	}
	if !can(owner, in) || !can(friend, in) || can(stranger, in) {
		t.Fatalf("owner/trusted/stranger mismatch")
	}
	if can(owner, geom.Vec3i{X: 50}) {
		t.Fatalf("outside the claim nobody can break through it")
	}
	if err := s.Untrust(ctx, c.ID(), friend); err != nil {
		t.Fatalf("Untrust: %v", err)
	}
	if can(friend, in) {
		t.Fatalf("untrusted friend should be denied")
	}

	admin, _ := s.Create(ctx, Spec{World: world, Admin: true, Corner1: geom.Vec3i{X: 100}, Corner2: geom.Vec3i{X: 110, Y: 9, Z: 9}})
	at := geom.Vec3i{X: 105, Y: 1, Z: 1}
	if admin.CanBreak(host.Player{ID: owner}, at, nil) {
		t.Fatalf("players cannot break admin claims")
	}
	if !admin.CanBreak(host.Player{}, at, s.AdminUser()) {
		t.Fatalf("admin user can break admin claims")
	}
}

func TestStore_SeesChangesFromAnotherConnection(t *testing.T) {
	daemon, path := openTemp(t)
	admin, err := Open(path)
	if err != nil {
		t.Fatalf("Open admin: %v", err)
	}
	defer admin.Close()
	ctx := context.Background()
	world := uuid.New()

	c, err := admin.Create(ctx, Spec{Name: "farm", Owner: uuid.New(), World: world, Corner2: geom.Vec3i{X: 4, Y: 4, Z: 4}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	h := daemon.Claim(c.ID())
	if h == nil || daemon.ClaimAt(world, geom.Vec3i{X: 1, Y: 1, Z: 1}) != h {
		t.Fatalf("claim created by another connection not visible")
	}

	if err := admin.Rename(ctx, c.ID(), "orchard"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if daemon.ClaimByName(&world, "orchard") != h || h.Name() != "orchard" {
		t.Fatalf("rename not visible through the existing handle: %q", h.Name())
	}

	if err := admin.Delete(ctx, c.ID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !h.Deleted() {
		t.Fatalf("handle should report the external delete")
	}
	if daemon.Claim(c.ID()) != nil || daemon.ClaimAt(world, geom.Vec3i{X: 1, Y: 1, Z: 1}) != nil {
		t.Fatalf("deleted claim still resolves")
	}

	// The daemon can create after the admin without reusing sequence numbers.
	d, err := daemon.Create(ctx, Spec{Owner: uuid.New(), World: world, Corner2: geom.Vec3i{X: 1, Y: 1, Z: 1}})
	if err != nil {
		t.Fatalf("Create on daemon: %v", err)
	}
	if d.seq <= c.seq {
		t.Fatalf("sequence reused: %d <= %d", d.seq, c.seq)
	}
}

func TestStore_RejectsOutOfRangeCorners(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	_, err := s.Create(ctx, Spec{Owner: uuid.New(), World: uuid.New(), Corner2: geom.Vec3i{X: MaxCoord + 1}})
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Create: expected ErrOutOfRange, got %v", err)
	}
	c, err := s.Create(ctx, Spec{Owner: uuid.New(), World: uuid.New(), Corner1: geom.Vec3i{X: -MaxCoord}, Corner2: geom.Vec3i{X: MaxCoord}})
	if err != nil {
		t.Fatalf("Create at the limit: %v", err)
	}
	if err := s.Resize(ctx, c.ID(), geom.Vec3i{}, geom.Vec3i{Z: -MaxCoord - 1}); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Resize: expected ErrOutOfRange, got %v", err)
	}
	if c.GreaterBoundaryCorner().X != MaxCoord {
		t.Fatalf("rejected resize changed the claim")
	}
}
