package main

import (
	_ "embed"
	"fmt"
	"strings"

	mgl "github.com/go-gl/mathgl/mgl32"
	lua "github.com/yuin/gopher-lua"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

//go:embed resources/walk.lua
var builtinScript string

const builtinScriptName = "builtin"

func luaRegister(l *lua.LState, name string, f func(*lua.LState) int) {
	l.Register(name, f)
}
func strArg(l *lua.LState, argi int) string {
	if !lua.LVCanConvToString(l.Get(argi)) {
		l.RaiseError("\nArgument %v is not a string: %v\n", argi, l.Get(argi))
	}
	return l.ToString(argi)
}
func numArg(l *lua.LState, argi int) float64 {
	num, ok := l.Get(argi).(lua.LNumber)
	if !ok {
		l.RaiseError("\nArgument %v is not a number: %v\n", argi, l.Get(argi))
	}
	return float64(num)
}
func vecArg(l *lua.LState, argi int) mgl.Vec3 {
	return mgl.Vec3{float32(numArg(l, argi)), float32(numArg(l, argi+1)), float32(numArg(l, argi+2))}
}
func pushVec(l *lua.LState, v mgl.Vec3) int {
	l.Push(lua.LNumber(v[0]))
	l.Push(lua.LNumber(v[1]))
	l.Push(lua.LNumber(v[2]))
	return 3
}

// Script drives limb targets from a Lua tick(t, dt) function.
type Script struct {
	l    *lua.LState
	name string
	tick lua.LValue
}

// newScript loads file, or the bundled sine wave driver when file is
// "builtin", and binds its API to sys.
func newScript(sys *System, file string) (*Script, error) {
	l := lua.NewState()
	s := &Script{l: l, name: file}
	s.registerFunctions(sys)

	var err error
	if file == builtinScriptName {
		err = l.DoString(builtinScript)
	} else {
		err = l.DoFile(file)
	}
	if err != nil {
		l.Close()
		return nil, fmt.Errorf("script %q: %w", file, err)
	}
	s.tick = l.GetGlobal("tick")
	if s.tick.Type() != lua.LTFunction {
		l.Close()
		return nil, fmt.Errorf("script %q does not define tick(t, dt)", file)
	}
	return s, nil
}

func (s *Script) registerFunctions(sys *System) {
	limbArg := func(l *lua.LState, argi int) *limb {
		name := strArg(l, argi)
		lb, ok := sys.limbs[name]
		if !ok {
			names := maps.Keys(sys.limbs)
			slices.Sort(names)
			l.RaiseError("\nUnknown limb: %v (have %v)\n", name, strings.Join(names, ", "))
		}
		return lb
	}
	luaRegister(s.l, "setTarget", func(l *lua.LState) int {
		limbArg(l, 1).req.Target = vecArg(l, 2)
		return 0
	})
	luaRegister(s.l, "setPole", func(l *lua.LState) int {
		limbArg(l, 1).req.Pole = vecArg(l, 2)
		return 0
	})
	luaRegister(s.l, "setNormal", func(l *lua.LState) int {
		lb := limbArg(l, 1)
		lb.req.SurfaceNormal = vecArg(l, 2)
		lb.req.Right = sys.body.Right
		return 0
	})
	luaRegister(s.l, "setVelocity", func(l *lua.LState) int {
		sys.body.Velocity = vecArg(l, 1)
		return 0
	})
	luaRegister(s.l, "root", func(l *lua.LState) int {
		return pushVec(l, limbArg(l, 1).root())
	})
	luaRegister(s.l, "tip", func(l *lua.LState) int {
		return pushVec(l, limbArg(l, 1).tip())
	})
	luaRegister(s.l, "reach", func(l *lua.LState) int {
		lb := limbArg(l, 1)
		if m := lb.rt.Model(); m != nil {
			l.Push(lua.LNumber(m.Length()))
		} else {
			l.Push(lua.LNumber(0))
		}
		return 1
	})
	luaRegister(s.l, "body", func(l *lua.LState) int {
		return pushVec(l, sys.body.Position)
	})
}

// Tick calls tick(t, dt).
func (s *Script) Tick(t, dt float32) error {
	return s.l.CallByParam(lua.P{Fn: s.tick, NRet: 0, Protect: true}, lua.LNumber(t), lua.LNumber(dt))
}

func (s *Script) Close() {
	s.l.Close()
}
