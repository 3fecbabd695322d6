package platform

import (
	lua "github.com/yuin/gopher-lua"
)

// InjectTable publishes fp into the Lua state as a read-only global named
// "platform". It should be called before any recipe code is loaded.
func InjectTable(L *lua.LState, fp Fingerprint) {
	t := L.NewTable()

	L.SetField(t, "os", lua.LString(fp.Family))
	L.SetField(t, "arch", lua.LString(fp.Arch))
	L.SetField(t, "distro", optString(fp.DistroID))
	L.SetField(t, "version", optString(fp.Version.String()))
	L.SetField(t, "version_name", optString(fp.VersionName))

	L.SetField(t, "is_linux", lua.LBool(fp.IsLinux()))
	L.SetField(t, "is_windows", lua.LBool(fp.IsWindows()))
	L.SetField(t, "is_macos", lua.LBool(fp.IsMacOS()))
	L.SetField(t, "is_freebsd", lua.LBool(fp.IsFreeBSD()))
	L.SetField(t, "is_solaris", lua.LBool(fp.IsSolaris()))
	L.SetField(t, "with_apt", lua.LBool(fp.WithApt()))
	L.SetField(t, "with_yum", lua.LBool(fp.WithYum()))

	// when(condition, value) returns value if condition holds, nil otherwise.
	L.SetField(t, "when", L.NewFunction(func(L *lua.LState) int {
		if L.CheckBool(1) {
			L.Push(L.Get(2))
		} else {
			L.Push(lua.LNil)
		}
		return 1
	}))

	L.SetGlobal("platform", ReadOnly(L, t, "platform"))
}

func optString(s string) lua.LValue {
	if s == "" {
		return lua.LNil
	}
	return lua.LString(s)
}

// ReadOnly returns a proxy that reads through to table and raises on any write.
func ReadOnly(L *lua.LState, table *lua.LTable, name string) *lua.LTable {
	mt := L.NewTable()
	L.SetField(mt, "__index", table)
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("%s table is read-only and cannot be modified", name)
		return 0
	}))
	L.SetField(mt, "__metatable", lua.LString("protected"))

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)
	return proxy
}
