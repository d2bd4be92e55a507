package luaregions

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Shopify/go-lua"
	"github.com/google/uuid"

	"regionhooks.ai/internal/claimstore"
	"regionhooks.ai/internal/geom"
	"regionhooks.ai/internal/host"
	"regionhooks.ai/internal/landstore"
	"regionhooks.ai/internal/persistence/varstore"
	"regionhooks.ai/internal/regions"
	"regionhooks.ai/internal/regions/claimhook"
	"regionhooks.ai/internal/regions/landhook"
)

type fixture struct {
	state  *lua.State
	claims *claimstore.Store
	lands  *landstore.Store
	world  *host.World
	vars   *varstore.Store
	owner  uuid.UUID
	claim  *claimstore.Claim
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	claims, err := claimstore.Open(filepath.Join(t.TempDir(), "claims.db"))
	if err != nil {
		t.Fatalf("claimstore: %v", err)
	}
	t.Cleanup(func() { _ = claims.Close() })
	lands, err := landstore.Open("")
	if err != nil {
		t.Fatalf("landstore: %v", err)
	}
	t.Cleanup(func() { _ = lands.Close() })

	w := &host.World{ID: uuid.New(), Name: "world", MaxHeight: 64}
	srv := host.NewServer(w)
	reg := regions.NewRegistry(nil, nil)
	if err := reg.Register(claimhook.New(claims, srv, nil)); err != nil {
		t.Fatalf("Register claims: %v", err)
	}
	if err := reg.Register(landhook.New(lands, srv, nil)); err != nil {
		t.Fatalf("Register lands: %v", err)
	}

	owner := uuid.New()
	c, err := claims.Create(context.Background(), claimstore.Spec{Name: "home", Owner: owner, World: w.ID, Corner2: geom.Vec3i{X: 2, Y: 2, Z: 2}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	vars := varstore.New(reg, nil, varstore.Options{})
	state := NewState(Env{Registry: reg, Platform: srv, Vars: vars})
	state.PushString(owner.String())
	state.SetGlobal("OWNER")
	state.PushString(c.ID().String())
	state.SetGlobal("CLAIM_ID")
	return &fixture{state: state, claims: claims, lands: lands, world: w, vars: vars, owner: owner, claim: c}
}

func (f *fixture) run(t *testing.T, src string) {
	t.Helper()
	if err := lua.DoString(f.state, src); err != nil {
		t.Fatalf("lua: %v", err)
	}
}

func (f *fixture) globalInt(t *testing.T, name string) int {
	t.Helper()
	f.state.Global(name)
	defer f.state.Pop(1)
	n, ok := f.state.ToInteger(-1)
	if !ok {
		t.Fatalf("global %s is not a number", name)
	}
	return n
}

func TestRegionMethods(t *testing.T) {
	f := newFixture(t)
	f.run(t, `
		local rs = regions.at("world", 1.5, 1, 1)
		assert(#rs == 1, "expected one region")
		local r = rs[1]
		assert(r:kind() == "ClaimRegion")
		assert(r:id() == CLAIM_ID)
		assert(tostring(r) == "Claim #" .. CLAIM_ID)
		assert(r:contains("world", 2, 2, 2))
		assert(not r:contains("world", 3, 2, 2))
		assert(r:is_owner(OWNER) and r:is_member(OWNER))
		local owners = r:owners()
		assert(#owners == 1 and owners[1] == OWNER)
		assert(#r:members() == 1)
		assert(regions.named("world", "home") == r)
		assert(regions.named("world", "nope") == nil)
		assert(not regions.multiple_owners())

		total = r:blocks(function(x, y, z) end)
		seen = 0
		r:blocks(function(x, y, z)
			seen = seen + 1
			if seen == 4 then return false end
		end)
	`)
	if got := f.globalInt(t, "total"); got != 27 {
		t.Fatalf("total blocks = %d", got)
	}
	if got := f.globalInt(t, "seen"); got != 4 {
		t.Fatalf("blocks should stop when fn returns false, saw %d", got)
	}
}

func TestCanBuild_AllBackendsMustAllow(t *testing.T) {
	f := newFixture(t)
	f.run(t, `assert(not regions.can_build(OWNER, "world", 1, 1, 1), "no land covers the claim")`)

	if _, err := f.lands.Put(landstore.LandClaim{World: f.world.ID, Owner: f.owner, Radius: 8}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	f.run(t, `
		assert(regions.can_build(OWNER, "world", 1, 1, 1))
		assert(not regions.can_build("`+uuid.NewString()+`", "world", 1, 1, 1))
		assert(#regions.at("world", 1, 1, 1) == 2)
	`)
}

func TestVars(t *testing.T) {
	f := newFixture(t)
	f.run(t, `
		local r = regions.named("world", CLAIM_ID)
		vars.set("home", r)
		vars.set("count", 2)
		vars.set("label", "spawn")
		vars.set("open", true)
		assert(vars.get("home") == r)
		assert(vars.get("count") == 2)
		vars.set("label", nil)
		assert(vars.get("label") == nil)
	`)
	r, ok := f.vars.Region("home")
	if !ok || r.ID() != f.claim.ID() {
		t.Fatalf("home variable not a region: %v", r)
	}
	if v, _ := f.vars.Get("open"); v != true {
		t.Fatalf("open = %#v", v)
	}
	if _, ok := f.vars.Get("label"); ok {
		t.Fatalf("setting nil should delete")
	}
}

func TestArgumentErrors(t *testing.T) {
	f := newFixture(t)
	for _, src := range []string{
		`regions.at("nowhere", 0, 0, 0)`,
		`regions.can_build("not-a-uuid", "world", 0, 0, 0)`,
		`local r = regions.named("world", "home"); r:blocks(5)`,
		`vars.set("t", {})`,
	} {
		err := lua.DoString(f.state, src)
		if err == nil {
			t.Fatalf("%s: expected error", src)
		}
		if strings.TrimSpace(err.Error()) == "" {
			t.Fatalf("%s: empty error", src)
		}
	}
}
