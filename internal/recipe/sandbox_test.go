package recipe

import (
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"

	"github.com/ZebulonRouseFrantzich/envprep/internal/testutil"
)

func TestSandbox_Blocked(t *testing.T) {
	tests := []struct {
		name   string
		code   string
		errMsg string
	}{
		{"os.execute", `os.execute("ls")`, "attempt to index"},
		{"os.getenv", `x = os.getenv("PATH")`, "attempt to index"},
		{"io.open", `f = io.open("/etc/passwd")`, "attempt to index"},
		{"io.popen", `f = io.popen("ls")`, "attempt to index"},
		{"debug", `debug.getinfo(1)`, "attempt to index"},
		{"package", `package.path = "/tmp/?.lua"`, "attempt to index"},
		{"require", `require("socket")`, "attempt to call"},
		{"dofile", `dofile("/tmp/evil.lua")`, "attempt to call"},
		{"loadfile", `loadfile("/tmp/evil.lua")`, "attempt to call"},
		{"load", `load("return 1")`, "attempt to call"},
		{"loadstring", `loadstring("return 1")`, "attempt to call"},
		{"setfenv", `setfenv(1, {})`, "attempt to call"},
		{"rawset", `rawset({}, "k", 1)`, "attempt to call"},
		{"rawget", `x = rawget({}, "k")`, "attempt to call"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			L := newSandbox(&testutil.Logger{})
			defer L.Close()

			err := L.DoString(tt.code)
			if err == nil {
				t.Fatalf("%q ran inside the sandbox", tt.code)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error = %v, want substring %q", err, tt.errMsg)
			}
		})
	}
}

func TestSandbox_SafeLibraries(t *testing.T) {
	L := newSandbox(&testutil.Logger{})
	defer L.Close()

	code := `
		local parts = {}
		for v in string.gmatch("1.2.11", "%d+") do table.insert(parts, v) end
		joined = table.concat(parts, "-")
		root = math.floor(math.sqrt(17))
		kind = type(tonumber("42"))
		ok = pcall(error, "boom") == false
	`
	if err := L.DoString(code); err != nil {
		t.Fatalf("safe code failed: %v", err)
	}

	if got := L.GetGlobal("joined").String(); got != "1-2-11" {
		t.Errorf("joined = %q", got)
	}
	if got := L.GetGlobal("root"); lua.LVAsNumber(got) != 4 {
		t.Errorf("root = %v", got)
	}
	if got := L.GetGlobal("kind").String(); got != "number" {
		t.Errorf("kind = %q", got)
	}
	if L.GetGlobal("ok") != lua.LTrue {
		t.Error("pcall unavailable")
	}
}

func TestSandbox_PrintGoesToLogger(t *testing.T) {
	log := &testutil.Logger{}
	L := newSandbox(log)
	defer L.Close()

	if err := L.DoString(`print("configuring", 3, nil)`); err != nil {
		t.Fatal(err)
	}
	if !log.Contains("INFO", "configuring\t3\tnil") {
		t.Errorf("print not logged: %v", log.Lines())
	}
}
