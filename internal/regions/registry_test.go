package regions

import (
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"regionhooks.ai/internal/geom"
	"regionhooks.ai/internal/host"
)

type fakeRegion struct {
	prov  *fakeProvider
	id    uuid.UUID
	name  string
	world *host.World
	box   geom.AABB
}

func (r *fakeRegion) ID() uuid.UUID             { return r.id }
func (r *fakeRegion) Kind() string              { return r.prov.kind }
func (r *fakeRegion) Provider() Provider        { return r.prov }
func (r *fakeRegion) IsMember(host.Player) bool { return false }
func (r *fakeRegion) Members() []host.Player    { return nil }
func (r *fakeRegion) IsOwner(host.Player) bool  { return false }
func (r *fakeRegion) Owners() []host.Player     { return nil }
func (r *fakeRegion) Fields() Fields            { return IDFields(r.id) }
func (r *fakeRegion) String() string            { return "fake #" + r.id.String() }
func (r *fakeRegion) Contains(loc host.Location) bool {
	return loc.World == r.world && r.box.Contains(loc.Block())
}
func (r *fakeRegion) Blocks() iter.Seq[host.Block] {
	return func(yield func(host.Block) bool) {
		for p := range r.box.All() {
			if !yield(host.Block{World: r.world, Pos: p}) {
				return
			}
		}
	}
}

type fakeProvider struct {
	name    string
	kind    string
	multi   bool
	allow   bool
	panics  bool
	regions []*fakeRegion
}

func (p *fakeProvider) Name() string                 { return p.name }
func (p *fakeProvider) RegionKind() string           { return p.kind }
func (p *fakeProvider) SupportsMultipleOwners() bool { return p.multi }

func (p *fakeProvider) add(w *host.World, name string, a, b geom.Vec3i) *fakeRegion {
	r := &fakeRegion{prov: p, id: uuid.New(), name: name, world: w, box: geom.NewAABB(a, b)}
	p.regions = append(p.regions, r)
	return r
}

func (p *fakeProvider) RegionsAt(loc host.Location) []Region {
	if p.panics {
		panic("backend exploded")
	}
	var out []Region
	for _, r := range p.regions {
		if r.Contains(loc) {
			out = append(out, r)
		}
	}
	return out
}

func (p *fakeProvider) RegionByName(w *host.World, name string) (Region, bool) {
	if p.panics {
		panic("backend exploded")
	}
	for _, r := range p.regions {
		if r.world == w && strings.EqualFold(r.name, name) {
			return r, true
		}
	}
	return nil, false
}

func (p *fakeProvider) CanBuild(_ host.Player, loc host.Location) bool {
	if p.panics {
		panic("backend exploded")
	}
	return p.allow
}

func (p *fakeProvider) Decode(f Fields) (Region, error) {
	id, err := f.UUID("id")
	if err != nil {
		return nil, err
	}
	for _, r := range p.regions {
		if r.id == id {
			return r, nil
		}
	}
	return nil, InvalidReference(p.kind, id)
}

func testWorld() *host.World {
	return &host.World{ID: uuid.New(), Name: "world", MaxHeight: 256}
}

func TestRegister_IdempotentAndConflicts(t *testing.T) {
	reg := NewRegistry(nil, nil)
	a := &fakeProvider{name: "Alpha", kind: "AlphaRegion"}
	if err := reg.Register(a); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(a); err != nil {
		t.Fatalf("second register of same provider must be a no-op: %v", err)
	}
	if n := len(reg.Providers()); n != 1 {
		t.Fatalf("providers: got %d want 1", n)
	}
	err := reg.Register(&fakeProvider{name: "alpha", kind: "Other"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected name conflict, got %v", err)
	}
	err = reg.Register(&fakeProvider{name: "Beta", kind: "AlphaRegion"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected kind conflict, got %v", err)
	}
	if _, ok := reg.Provider("ALPHA"); !ok {
		t.Fatalf("provider lookup should be case-insensitive")
	}
}

func TestRegionsAt_UnionsProvidersInOrder(t *testing.T) {
	w := testWorld()
	a := &fakeProvider{name: "A", kind: "ARegion"}
	b := &fakeProvider{name: "B", kind: "BRegion"}
	ra := a.add(w, "spawn", geom.Vec3i{}, geom.Vec3i{X: 10, Y: 10, Z: 10})
	rb := b.add(w, "spawn", geom.Vec3i{X: 5}, geom.Vec3i{X: 20, Y: 10, Z: 10})

	reg := NewRegistry(nil, nil)
	_ = reg.Register(a)
	_ = reg.Register(b)

	got := reg.RegionsAt(host.At(w, 6, 1, 1))
	if len(got) != 2 || !Equal(got[0], ra) || !Equal(got[1], rb) {
		t.Fatalf("unexpected regions: %v", got)
	}
	if got := reg.RegionsAt(host.At(w, 50, 1, 1)); len(got) != 0 {
		t.Fatalf("expected no regions, got %v", got)
	}

	first, ok := reg.RegionByName(w, "SPAWN")
	if !ok || !Equal(first, ra) {
		t.Fatalf("first registered provider should win the name: %v", first)
	}
	if _, ok := reg.RegionByName(testWorld(), "spawn"); ok {
		t.Fatalf("name in another world must be absent")
	}
}

func TestRegistry_PanickingProviderIsIsolated(t *testing.T) {
	w := testWorld()
	bad := &fakeProvider{name: "Bad", kind: "BadRegion", panics: true}
	good := &fakeProvider{name: "Good", kind: "GoodRegion", allow: true}
	r := good.add(w, "home", geom.Vec3i{}, geom.Vec3i{X: 3, Y: 3, Z: 3})

	promReg := prometheus.NewRegistry()
	m := NewMetrics(promReg)
	reg := NewRegistry(nil, m)
	_ = reg.Register(bad)
	_ = reg.Register(good)

	got := reg.RegionsAt(host.At(w, 1, 1, 1))
	if len(got) != 1 || !Equal(got[0], r) {
		t.Fatalf("good provider result lost: %v", got)
	}
	if found, ok := reg.RegionByName(w, "home"); !ok || !Equal(found, r) {
		t.Fatalf("name lookup should skip the broken provider")
	}
	if reg.CanBuild(host.Player{ID: uuid.New()}, host.At(w, 1, 1, 1)) {
		t.Fatalf("a panicking provider must deny building")
	}
	if n := testutil.ToFloat64(m.panics.WithLabelValues("Bad", "regions_at")); n != 1 {
		t.Fatalf("panic counter: got %v", n)
	}
}

func TestCanBuild_AllProvidersMustAllow(t *testing.T) {
	w := testWorld()
	p := host.Player{ID: uuid.New()}
	loc := host.At(w, 0, 0, 0)

	empty := NewRegistry(nil, nil)
	if !empty.CanBuild(p, loc) {
		t.Fatalf("no providers means no protection")
	}

	reg := NewRegistry(nil, nil)
	_ = reg.Register(&fakeProvider{name: "Open", kind: "OpenRegion", allow: true})
	if !reg.CanBuild(p, loc) {
		t.Fatalf("single allowing provider should allow")
	}
	_ = reg.Register(&fakeProvider{name: "Closed", kind: "ClosedRegion", allow: false})
	if reg.CanBuild(p, loc) {
		t.Fatalf("any denying provider should deny")
	}
}

func TestSupportsMultipleOwners(t *testing.T) {
	reg := NewRegistry(nil, nil)
	_ = reg.Register(&fakeProvider{name: "A", kind: "ARegion"})
	if reg.SupportsMultipleOwners() {
		t.Fatalf("no provider supports multiple owners yet")
	}
	_ = reg.Register(&fakeProvider{name: "B", kind: "BRegion", multi: true})
	if !reg.SupportsMultipleOwners() {
		t.Fatalf("expected multiple owners once B is registered")
	}
}

func TestEncodeDecode_Roundtrip(t *testing.T) {
	w := testWorld()
	p := &fakeProvider{name: "A", kind: "ARegion"}
	r := p.add(w, "x", geom.Vec3i{}, geom.Vec3i{X: 1, Y: 1, Z: 1})
	reg := NewRegistry(nil, NewMetrics(prometheus.NewRegistry()))
	_ = reg.Register(p)

	rec, err := reg.Encode(r)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if rec.Type != "ARegion" || len(rec.Fields) != 1 || rec.Fields["id"] != r.id.String() {
		t.Fatalf("unexpected record: %+v", rec)
	}
	back, err := reg.Decode(rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !Equal(back, r) {
		t.Fatalf("roundtrip mismatch: %v vs %v", back, r)
	}
}

func TestDecode_Failures(t *testing.T) {
	p := &fakeProvider{name: "A", kind: "ARegion"}
	reg := NewRegistry(nil, nil)
	_ = reg.Register(p)

	gone := uuid.New()
	_, err := reg.Decode(Record{Type: "ARegion", Fields: IDFields(gone)})
	var ce *CorruptedError
	if !errors.As(err, &ce) || !errors.Is(err, ErrInvalidReference) || ce.ID != gone {
		t.Fatalf("expected invalid reference carrying the id, got %v", err)
	}
	if !strings.Contains(err.Error(), gone.String()) {
		t.Fatalf("error should name the identity: %v", err)
	}

	_, err = reg.Decode(Record{Type: "Nope", Fields: Fields{}})
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected unknown kind, got %v", err)
	}

	_, err = reg.Decode(Record{Type: "ARegion", Fields: Fields{}})
	if !errors.As(err, &ce) || !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected corrupted missing field, got %v", err)
	}

	if _, err := reg.Encode(&fakeRegion{prov: &fakeProvider{kind: "Unbound"}, id: uuid.New()}); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("encoding an unbound kind should fail, got %v", err)
	}
}

func TestDecode_CountsFailuresBySource(t *testing.T) {
	p := &fakeProvider{name: "A", kind: "ARegion"}
	m := NewMetrics(prometheus.NewRegistry())
	reg := NewRegistry(nil, m)
	_ = reg.Register(p)
	r := p.add(testWorld(), "home", geom.Vec3i{}, geom.Vec3i{X: 1, Y: 1, Z: 1})

	_, _ = reg.Decode(Record{Type: "Nope", Fields: Fields{}})
	_, _ = reg.Resolve(Record{Type: "ARegion", Fields: Fields{}})
	if _, err := reg.Resolve(Record{Type: "ARegion", Fields: r.Fields()}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if n := testutil.ToFloat64(m.failures.WithLabelValues("Nope", "record")); n != 1 {
		t.Fatalf("unknown kind failures: got %v", n)
	}
	if n := testutil.ToFloat64(m.failures.WithLabelValues("ARegion", "query")); n != 1 {
		t.Fatalf("query failures: got %v", n)
	}
	if n := testutil.ToFloat64(m.failures.WithLabelValues("ARegion", "record")); n != 0 {
		t.Fatalf("query decodes must not count as record failures: got %v", n)
	}
	if n := testutil.ToFloat64(m.decodes.WithLabelValues("ARegion", "query")); n != 1 {
		t.Fatalf("query decodes: got %v", n)
	}
}

func TestEqualAndKey(t *testing.T) {
	p := &fakeProvider{name: "A", kind: "ARegion"}
	id := uuid.New()
	a := &fakeRegion{prov: p, id: id}
	b := &fakeRegion{prov: p, id: id}
	if !Equal(a, b) {
		t.Fatalf("same kind and id should be equal")
	}
	set := map[Key]bool{KeyOf(a): true}
	if !set[KeyOf(b)] {
		t.Fatalf("keys should collide for equal regions")
	}
	other := &fakeRegion{prov: &fakeProvider{kind: "BRegion"}, id: id}
	if Equal(a, other) {
		t.Fatalf("same id in a different kind is a different region")
	}
	if !Equal(nil, nil) || Equal(a, nil) {
		t.Fatalf("nil handling")
	}
}
