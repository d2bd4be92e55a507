// Package luaregions exposes the region registry and script variables to Lua.
//
//	regions.at(world, x, y, z)           -> { region... }
//	regions.named(world, name)           -> region | nil
//	regions.can_build(player, world, x, y, z) -> bool
//	regions.multiple_owners()            -> bool
//	regions.log(msg)
//	vars.set(name, value) / vars.get(name)
//
// Regions are userdata with id, kind, contains, is_owner, is_member, owners,
// members and blocks(fn). Players are identified by UUID strings.
package luaregions

import (
	"fmt"
	"io"
	"log"

	"github.com/Shopify/go-lua"
	"github.com/google/uuid"

	"regionhooks.ai/internal/host"
	"regionhooks.ai/internal/persistence/varstore"
	"regionhooks.ai/internal/regions"
)

const regionTypeName = "region"

type Env struct {
	Registry *regions.Registry
	Platform host.Platform
	// Vars may be nil; the vars table is then not installed.
	Vars *varstore.Store
	Log  *log.Logger
}

// NewState returns a state with the standard libraries and the region API.
func NewState(env Env) *lua.State {
	state := lua.NewState()
	lua.OpenLibraries(state)
	Open(state, env)
	return state
}

// Open installs the region API into state.
func Open(state *lua.State, env Env) {
	if env.Log == nil {
		env.Log = log.New(io.Discard, "", 0)
	}
	b := &binding{env: env}
	b.registerRegionType(state)

	state.NewTable()
	lua.SetFunctions(state, []lua.RegistryFunction{
		{Name: "at", Function: b.regionsAt},
		{Name: "named", Function: b.regionNamed},
		{Name: "can_build", Function: b.canBuild},
		{Name: "multiple_owners", Function: b.multipleOwners},
		{Name: "log", Function: b.logf},
	}, 0)
	state.SetGlobal("regions")

	if env.Vars != nil {
		state.NewTable()
		lua.SetFunctions(state, []lua.RegistryFunction{
			{Name: "set", Function: b.varSet},
			{Name: "get", Function: b.varGet},
		}, 0)
		state.SetGlobal("vars")
	}
}

// RunFile executes a script file in state.
func RunFile(state *lua.State, path string) error {
	if err := lua.DoFile(state, path); err != nil {
		return fmt.Errorf("run %s: %w", path, err)
	}
	return nil
}

type binding struct {
	env Env
}

func (b *binding) registerRegionType(state *lua.State) {
	lua.NewMetaTable(state, regionTypeName)
	state.NewTable()
	lua.SetFunctions(state, []lua.RegistryFunction{
		{Name: "id", Function: regionID},
		{Name: "kind", Function: regionKind},
		{Name: "contains", Function: b.regionContains},
		{Name: "is_owner", Function: b.regionIsOwner},
		{Name: "is_member", Function: b.regionIsMember},
		{Name: "owners", Function: regionOwners},
		{Name: "members", Function: regionMembers},
		{Name: "blocks", Function: regionBlocks},
	}, 0)
	state.SetField(-2, "__index")
	lua.SetFunctions(state, []lua.RegistryFunction{
		{Name: "__tostring", Function: regionString},
		{Name: "__eq", Function: regionEqual},
	}, 0)
	state.Pop(1)
}

func pushRegion(state *lua.State, r regions.Region) {
	state.PushUserData(r)
	lua.SetMetaTableNamed(state, regionTypeName)
}

func checkRegion(state *lua.State, index int) regions.Region {
	ud := lua.CheckUserData(state, index, regionTypeName)
	if r, ok := ud.(regions.Region); ok && r != nil {
		return r
	}
	lua.ArgumentError(state, index, "region expected")
	return nil
}

func (b *binding) checkWorld(state *lua.State, index int) *host.World {
	name := lua.CheckString(state, index)
	w, ok := b.env.Platform.WorldByName(name)
	if !ok {
		lua.ArgumentError(state, index, "unknown world "+name)
		return nil
	}
	return w
}

func (b *binding) checkLocation(state *lua.State, index int) host.Location {
	w := b.checkWorld(state, index)
	x := lua.CheckNumber(state, index+1)
	y := lua.CheckNumber(state, index+2)
	z := lua.CheckNumber(state, index+3)
	return host.At(w, x, y, z)
}

func (b *binding) checkPlayer(state *lua.State, index int) host.Player {
	s := lua.CheckString(state, index)
	id, err := uuid.Parse(s)
	if err != nil {
		lua.ArgumentError(state, index, "player uuid expected")
		return host.Player{}
	}
	return b.env.Platform.OfflinePlayer(id)
}

func (b *binding) regionsAt(state *lua.State) int {
	loc := b.checkLocation(state, 1)
	found := b.env.Registry.RegionsAt(loc)
	state.CreateTable(len(found), 0)
	for i, r := range found {
		pushRegion(state, r)
		state.RawSetInt(-2, i+1)
	}
	return 1
}

func (b *binding) regionNamed(state *lua.State) int {
	w := b.checkWorld(state, 1)
	name := lua.CheckString(state, 2)
	r, ok := b.env.Registry.RegionByName(w, name)
	if !ok {
		state.PushNil()
		return 1
	}
	pushRegion(state, r)
	return 1
}

func (b *binding) canBuild(state *lua.State) int {
	p := b.checkPlayer(state, 1)
	loc := b.checkLocation(state, 2)
	state.PushBoolean(b.env.Registry.CanBuild(p, loc))
	return 1
}

func (b *binding) multipleOwners(state *lua.State) int {
	state.PushBoolean(b.env.Registry.SupportsMultipleOwners())
	return 1
}

func (b *binding) logf(state *lua.State) int {
	b.env.Log.Printf("lua: %s", lua.CheckString(state, 1))
	return 0
}

func regionID(state *lua.State) int {
	state.PushString(checkRegion(state, 1).ID().String())
	return 1
}

func regionKind(state *lua.State) int {
	state.PushString(checkRegion(state, 1).Kind())
	return 1
}

func regionString(state *lua.State) int {
	state.PushString(checkRegion(state, 1).String())
	return 1
}

func regionEqual(state *lua.State) int {
	a, _ := lua.TestUserData(state, 1, regionTypeName).(regions.Region)
	c, _ := lua.TestUserData(state, 2, regionTypeName).(regions.Region)
	state.PushBoolean(a != nil && c != nil && regions.Equal(a, c))
	return 1
}

func (b *binding) regionContains(state *lua.State) int {
	r := checkRegion(state, 1)
	state.PushBoolean(r.Contains(b.checkLocation(state, 2)))
	return 1
}

func (b *binding) regionIsOwner(state *lua.State) int {
	r := checkRegion(state, 1)
	state.PushBoolean(r.IsOwner(b.checkPlayer(state, 2)))
	return 1
}

func (b *binding) regionIsMember(state *lua.State) int {
	r := checkRegion(state, 1)
	state.PushBoolean(r.IsMember(b.checkPlayer(state, 2)))
	return 1
}

func pushPlayers(state *lua.State, players []host.Player) {
	state.CreateTable(len(players), 0)
	for i, p := range players {
		state.PushString(p.ID.String())
		state.RawSetInt(-2, i+1)
	}
}

func regionOwners(state *lua.State) int {
	pushPlayers(state, checkRegion(state, 1).Owners())
	return 1
}

func regionMembers(state *lua.State) int {
	pushPlayers(state, checkRegion(state, 1).Members())
	return 1
}

// regionBlocks calls fn(x, y, z) for every block and returns how many were
// visited. Returning false from fn stops the walk.
func regionBlocks(state *lua.State) int {
	r := checkRegion(state, 1)
	lua.CheckType(state, 2, lua.TypeFunction)
	n := 0
	for blk := range r.Blocks() {
		n++
		state.PushValue(2)
		state.PushInteger(blk.Pos.X)
		state.PushInteger(blk.Pos.Y)
		state.PushInteger(blk.Pos.Z)
		state.Call(3, 1)
		stop := state.IsBoolean(-1) && !state.ToBoolean(-1)
		state.Pop(1)
		if stop {
			break
		}
	}
	state.PushInteger(n)
	return 1
}

func (b *binding) varSet(state *lua.State) int {
	name := lua.CheckString(state, 1)
	var v any
	switch state.TypeOf(2) {
	case lua.TypeNil, lua.TypeNone:
		b.env.Vars.Delete(name)
		return 0
	case lua.TypeString:
		v, _ = state.ToString(2)
	case lua.TypeNumber:
		v, _ = state.ToNumber(2)
	case lua.TypeBoolean:
		v = state.ToBoolean(2)
	case lua.TypeUserData:
		v = checkRegion(state, 2)
	default:
		lua.ArgumentError(state, 2, "region, string, number or boolean expected")
		return 0
	}
	if err := b.env.Vars.Set(name, v); err != nil {
		lua.Errorf(state, "%s", err.Error())
	}
	return 0
}

func (b *binding) varGet(state *lua.State) int {
	v, ok := b.env.Vars.Get(lua.CheckString(state, 1))
	if !ok {
		state.PushNil()
		return 1
	}
	switch x := v.(type) {
	case regions.Region:
		pushRegion(state, x)
	case string:
		state.PushString(x)
	case float64:
		state.PushNumber(x)
	case bool:
		state.PushBoolean(x)
	default:
		state.PushNil()
	}
	return 1
}
