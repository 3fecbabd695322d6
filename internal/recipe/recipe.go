// Package recipe runs build-preparation scripts written in Lua. A recipe sees
// a read-only "platform" table describing the host and a "tools" table that
// exposes downloading, verification, extraction, patching and native package
// installation.
package recipe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/ZebulonRouseFrantzich/envprep/internal/acquire"
	"github.com/ZebulonRouseFrantzich/envprep/internal/archive"
	"github.com/ZebulonRouseFrantzich/envprep/internal/fetch"
	"github.com/ZebulonRouseFrantzich/envprep/internal/output"
	"github.com/ZebulonRouseFrantzich/envprep/internal/platform"
	"github.com/ZebulonRouseFrantzich/envprep/internal/sysreq"
)

// Getter is satisfied by acquire.Pipeline.
type Getter interface {
	Get(ctx context.Context, url string, opts acquire.GetOptions) (*archive.Result, error)
}

// Installer is satisfied by sysreq.PackageTool.
type Installer interface {
	Install(ctx context.Context, candidates []string, opts sysreq.InstallOptions) error
}

// Env holds the collaborators a recipe's tools call into. Nil collaborators
// make the matching tool raise an error when used.
type Env struct {
	Fingerprint platform.Fingerprint
	Getter      Getter
	Downloader  acquire.Downloader
	Unpacker    acquire.Unpacker
	Installer   Installer
	Fetch       fetch.Options // defaults for download and get
	Dir         string        // relative paths resolve here; "" is the working directory
	Log         output.Logger
}

// Error reports a recipe that failed. Err is the Go error raised by a tool
// when there was one, the Lua error otherwise.
type Error struct {
	Recipe string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("recipe %s: %v", e.Recipe, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// run is the state of one recipe execution.
type run struct {
	env     Env
	ctx     context.Context
	toolErr error
}

// RunFile executes the recipe at path.
func RunFile(ctx context.Context, path string, env Env) error {
	code, err := os.ReadFile(path)
	if err != nil {
		return &Error{Recipe: filepath.Base(path), Err: err}
	}
	return RunString(ctx, filepath.Base(path), string(code), env)
}

// RunString executes code under name.
func RunString(ctx context.Context, name, code string, env Env) error {
	if env.Log == nil {
		env.Log = output.Nop()
	}
	if env.Dir == "" {
		env.Dir = "."
	}

	L := newSandbox(env.Log)
	defer L.Close()
	L.SetContext(ctx)

	r := &run{env: env, ctx: ctx}
	platform.InjectTable(L, env.Fingerprint)
	L.SetGlobal("tools", platform.ReadOnly(L, r.toolsTable(L), "tools"))

	env.Log.Debug("running recipe", "recipe", name, "platform", env.Fingerprint.String())
	fn, err := L.Load(strings.NewReader(code), name)
	if err != nil {
		return &Error{Recipe: name, Err: err}
	}
	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		if r.toolErr != nil && strings.Contains(err.Error(), r.toolErr.Error()) {
			return &Error{Recipe: name, Err: r.toolErr}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &Error{Recipe: name, Err: ctxErr}
		}
		var apiErr *lua.ApiError
		if errors.As(err, &apiErr) && apiErr.Object != nil {
			return &Error{Recipe: name, Err: errors.New(apiErr.Object.String())}
		}
		return &Error{Recipe: name, Err: err}
	}
	return nil
}

// fail records err and raises it in the Lua state.
func (r *run) fail(L *lua.LState, err error) int {
	r.toolErr = err
	L.RaiseError("%s", err.Error())
	return 0
}

func (r *run) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.env.Dir, p)
}
