package recipe

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/ZebulonRouseFrantzich/envprep/internal/output"
)

// Only these standard libraries are opened for recipes.
var safeLibs = []struct {
	name string
	open lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// Base functions that reach the filesystem or load code.
var blockedGlobals = []string{
	"dofile", "loadfile", "load", "loadstring",
	"require", "module", "getfenv", "setfenv",
	"collectgarbage", "rawset", "rawget", "rawequal",
}

// newSandbox returns a Lua state with no os, io, package or debug library.
// print is routed to log.
func newSandbox(log output.Logger) *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range safeLibs {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, L.GetTop())
		for i := range parts {
			parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
		}
		log.Info(strings.Join(parts, "\t"))
		return 0
	}))
	return L
}

// checkPath rejects empty path arguments before they reach the filesystem.
func checkPath(L *lua.LState, n int, what string) string {
	p := L.CheckString(n)
	if strings.TrimSpace(p) == "" {
		L.ArgError(n, fmt.Sprintf("%s must not be empty", what))
	}
	return p
}
