package recipe

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/cpu"
	lua "github.com/yuin/gopher-lua"

	"github.com/ZebulonRouseFrantzich/envprep/internal/acquire"
	"github.com/ZebulonRouseFrantzich/envprep/internal/archive"
	"github.com/ZebulonRouseFrantzich/envprep/internal/checksum"
	"github.com/ZebulonRouseFrantzich/envprep/internal/fetch"
	"github.com/ZebulonRouseFrantzich/envprep/internal/patch"
	"github.com/ZebulonRouseFrantzich/envprep/internal/sysreq"
)

var errNoCollaborator = errors.New("not available in this environment")

func (r *run) toolsTable(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	L.SetFuncs(t, map[string]lua.LGFunction{
		"get":             r.get,
		"download":        r.download,
		"unzip":           r.unzip,
		"check_sha1":      r.checker(checksum.SHA1),
		"check_md5":       r.checker(checksum.MD5),
		"check_sha256":    r.checker(checksum.SHA256),
		"patch":           r.patch,
		"replace_in_file": r.replaceInFile,
		"cpu_count":       r.cpuCount,
		"human_size":      humanSize,
		"system_install":  r.systemInstall,
	})
	return t
}

// get(url [, {destination, sha1, md5, sha256, keep_permissions, verify,
// retry, retry_wait}]) -> extracted entry count
func (r *run) get(L *lua.LState) int {
	url := L.CheckString(1)
	opts := L.OptTable(2, L.NewTable())
	if r.env.Getter == nil {
		return r.fail(L, fmt.Errorf("get: %w", errNoCollaborator))
	}

	getOpts := acquire.GetOptions{
		Destination:     r.path(optField(opts, "destination", ".")),
		Fetch:           r.fetchOptions(opts),
		KeepPermissions: lua.LVAsBool(opts.RawGetString("keep_permissions")),
	}
	for _, algo := range []checksum.Algorithm{checksum.SHA1, checksum.MD5, checksum.SHA256} {
		if v := opts.RawGetString(string(algo)); v.Type() == lua.LTString {
			getOpts.Checksums = append(getOpts.Checksums, checksum.Spec{Algorithm: algo, Expected: v.String()})
		}
	}

	res, err := r.env.Getter.Get(r.ctx, url, getOpts)
	if err != nil {
		return r.fail(L, err)
	}
	return r.pushResult(L, res)
}

// download(url, filename [, {verify, retry, retry_wait}])
func (r *run) download(L *lua.LState) int {
	url := L.CheckString(1)
	dest := checkPath(L, 2, "filename")
	opts := L.OptTable(3, L.NewTable())
	if r.env.Downloader == nil {
		return r.fail(L, fmt.Errorf("download: %w", errNoCollaborator))
	}
	if err := r.env.Downloader.Download(r.ctx, url, r.path(dest), r.fetchOptions(opts)); err != nil {
		return r.fail(L, err)
	}
	return 0
}

// unzip(filename [, destination [, keep_permissions]]) -> extracted entry count
func (r *run) unzip(L *lua.LState) int {
	src := checkPath(L, 1, "filename")
	dest := L.OptString(2, ".")
	keep := L.OptBool(3, false)
	if r.env.Unpacker == nil {
		return r.fail(L, fmt.Errorf("unzip: %w", errNoCollaborator))
	}
	res, err := r.env.Unpacker.Extract(r.path(src), r.path(dest), archive.Options{KeepPermissions: keep})
	if err != nil {
		return r.fail(L, err)
	}
	return r.pushResult(L, res)
}

// pushResult returns the extracted count. Per-entry failures were already
// reported by the extractor and do not stop the recipe.
func (r *run) pushResult(L *lua.LState, res *archive.Result) int {
	n := 0
	if res != nil {
		n = len(res.Extracted)
	}
	L.Push(lua.LNumber(n))
	return 1
}

func (r *run) checker(algo checksum.Algorithm) lua.LGFunction {
	return func(L *lua.LState) int {
		file := checkPath(L, 1, "file")
		expected := L.CheckString(2)
		if err := checksum.Verify(r.path(file), algo, expected); err != nil {
			return r.fail(L, err)
		}
		return 0
	}
}

// patch{base_path, patch_file, patch_string, strip}
func (r *run) patch(L *lua.LState) int {
	opts := L.CheckTable(1)
	p := patch.Options{
		BasePath: r.path(optField(opts, "base_path", ".")),
		Content:  optField(opts, "patch_string", ""),
		Strip:    int(lua.LVAsNumber(opts.RawGetString("strip"))),
	}
	if f := optField(opts, "patch_file", ""); f != "" {
		p.File = r.path(f)
	}
	if err := patch.Apply(p, r.env.Log); err != nil {
		return r.fail(L, err)
	}
	return 0
}

// replace_in_file(file, search, replace) -> replacements made
func (r *run) replaceInFile(L *lua.LState) int {
	file := r.path(checkPath(L, 1, "file"))
	search := L.CheckString(2)
	replace := L.CheckString(3)
	if search == "" {
		L.ArgError(2, "search must not be empty")
	}

	info, err := os.Stat(file)
	if err != nil {
		return r.fail(L, fmt.Errorf("replace_in_file: %w", err))
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return r.fail(L, fmt.Errorf("replace_in_file: %w", err))
	}
	content := string(data)
	n := strings.Count(content, search)
	if n > 0 {
		content = strings.ReplaceAll(content, search, replace)
		if err := os.WriteFile(file, []byte(content), info.Mode().Perm()); err != nil {
			return r.fail(L, fmt.Errorf("replace_in_file: %w", err))
		}
	}
	L.Push(lua.LNumber(n))
	return 1
}

// cpu_count() -> logical CPUs, 1 when unknown
func (r *run) cpuCount(L *lua.LState) int {
	n, err := cpu.CountsWithContext(r.ctx, true)
	if err != nil || n < 1 {
		r.env.Log.Warn("could not count CPUs, defaulting to 1", "error", err)
		n = 1
	}
	L.Push(lua.LNumber(n))
	return 1
}

// human_size(bytes) -> "1.5 MiB"
func humanSize(L *lua.LState) int {
	n := L.CheckNumber(1)
	if n < 0 {
		L.ArgError(1, "size must not be negative")
	}
	L.Push(lua.LString(humanize.IBytes(uint64(n))))
	return 1
}

// system_install(name | {names...} [, {update, force}])
func (r *run) systemInstall(L *lua.LState) int {
	var names []string
	switch v := L.CheckAny(1).(type) {
	case lua.LString:
		names = []string{string(v)}
	case *lua.LTable:
		v.ForEach(func(_, item lua.LValue) {
			if s, ok := item.(lua.LString); ok {
				names = append(names, string(s))
			}
		})
	default:
		L.ArgError(1, "expected a package name or a list of names")
	}
	if len(names) == 0 {
		L.ArgError(1, "no package names given")
	}

	opts := L.OptTable(2, L.NewTable())
	installOpts := sysreq.DefaultInstallOptions()
	if v := opts.RawGetString("update"); v != lua.LNil {
		installOpts.Update = lua.LVAsBool(v)
	}
	installOpts.Force = lua.LVAsBool(opts.RawGetString("force"))

	if r.env.Installer == nil {
		return r.fail(L, fmt.Errorf("system_install: %w", errNoCollaborator))
	}
	if err := r.env.Installer.Install(r.ctx, names, installOpts); err != nil {
		return r.fail(L, err)
	}
	return 0
}

func (r *run) fetchOptions(opts *lua.LTable) fetch.Options {
	o := r.env.Fetch
	if v := opts.RawGetString("verify"); v != lua.LNil {
		o.Verify = lua.LVAsBool(v)
	}
	if v, ok := opts.RawGetString("retry").(lua.LNumber); ok {
		o.Retry = int(v)
	}
	if v, ok := opts.RawGetString("retry_wait").(lua.LNumber); ok {
		o.RetryWait = time.Duration(float64(v) * float64(time.Second))
	}
	return o
}

func optField(t *lua.LTable, key, def string) string {
	if v, ok := t.RawGetString(key).(lua.LString); ok && v != "" {
		return string(v)
	}
	return def
}
