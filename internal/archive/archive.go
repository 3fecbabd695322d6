// Package archive unpacks zip and tar archives into a destination directory.
//
// Extraction isolates failures per entry: an entry that cannot be written,
// that would escape the destination, or whose path would exceed the Windows
// path limit is logged and recorded in the Result while the remaining
// entries are still extracted. Only failures that affect the whole archive
// (it cannot be opened or decompressed) are returned as errors.
package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZebulonRouseFrantzich/envprep/internal/output"
	"github.com/ZebulonRouseFrantzich/envprep/internal/platform"
)

// windowsMaxPath is the classic MAX_PATH limit.
const windowsMaxPath = 260

// tarSuffixes select the tar extractor; anything else is treated as zip.
var tarSuffixes = []string{
	".tar.gz", ".tgz",
	".tbz2", ".tar.bz2",
	".tar.xz", ".txz",
	".tar.zst", ".tzst",
	".tar",
}

// IsTarball reports whether name is dispatched to the tar extractor.
func IsTarball(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range tarSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// Options controls extraction.
type Options struct {
	// KeepPermissions applies the permission bits stored in zip entries.
	// Ignored on Windows. Tar entries always keep their mode.
	KeepPermissions bool
}

// EntryError is a failure confined to a single archive entry.
type EntryError struct {
	Name string
	Err  error
}

func (e EntryError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Name, e.Err)
}

func (e EntryError) Unwrap() error { return e.Err }

// ErrPathTooLong marks entries skipped by the Windows path limit.
var ErrPathTooLong = errors.New("filename too long")

// ErrIllegalPath marks entries that would land outside the destination.
var ErrIllegalPath = errors.New("illegal file path")

// Result describes a finished extraction.
type Result struct {
	Destination string   // absolute
	Extracted   []string // entry names written
	Failures    []EntryError
}

// Err joins the per-entry failures, or returns nil if there were none.
func (r *Result) Err() error {
	if r == nil || len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

func (r *Result) fail(c *output.Console, name string, err error) {
	c.Warn("Error extract "+name, "error", err)
	r.Failures = append(r.Failures, EntryError{Name: name, Err: err})
}

// Extractor unpacks archives for a given platform family.
type Extractor struct {
	family  platform.Family
	console *output.Console
}

// NewExtractor creates an extractor that applies the rules of family and
// reports through console.
func NewExtractor(family platform.Family, console *output.Console) *Extractor {
	if console == nil {
		console = output.Discard()
	}
	return &Extractor{family: family, console: console}
}

// Extract unpacks src into dest ("" means the working directory).
func (e *Extractor) Extract(src, dest string, opts Options) (*Result, error) {
	if dest == "" {
		dest = "."
	}
	abs, err := filepath.Abs(dest)
	if err != nil {
		return nil, fmt.Errorf("resolve destination: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create dest dir: %w", err)
	}

	res := &Result{Destination: abs}
	if IsTarball(src) {
		err = e.extractTar(src, res)
	} else {
		err = e.extractZip(src, res, opts)
	}
	return res, err
}

// checkEntry returns the target path for name, or why it must be skipped.
func (e *Extractor) checkEntry(dest, name string) (string, error) {
	if e.family == platform.Windows && len(name)+len(dest) >= windowsMaxPath {
		return "", ErrPathTooLong
	}
	target := filepath.Join(dest, filepath.FromSlash(name))
	if !within(dest, target) {
		return "", ErrIllegalPath
	}
	if err := noSymlinkParents(dest, target); err != nil {
		return "", err
	}
	return target, nil
}

func within(dir, path string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(os.PathSeparator))
}

// noSymlinkParents rejects target when a directory between dest and target
// is a symlink, since writing through it could land outside dest.
func noSymlinkParents(dest, target string) error {
	rel, err := filepath.Rel(dest, filepath.Dir(target))
	if err != nil || rel == "." {
		return nil
	}
	cur := dest
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return ErrIllegalPath
		}
	}
	return nil
}

// linkStaysIn follows linkname from dir one component at a time, expanding
// symlinks already on disk, and reports whether it ends inside dest.
// dir must be inside dest with no symlinked parents.
func linkStaysIn(dest, dir, linkname string) bool {
	root, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return false
	}
	cur := filepath.Join(root, relTo(dest, dir))
	if filepath.IsAbs(linkname) {
		cur = filepath.VolumeName(linkname) + string(os.PathSeparator)
	}
	for _, part := range strings.Split(filepath.ToSlash(linkname), "/") {
		switch part {
		case "", ".":
		case "..":
			cur = filepath.Dir(cur)
		default:
			cur = filepath.Join(cur, part)
			info, err := os.Lstat(cur)
			if err != nil || info.Mode()&os.ModeSymlink == 0 {
				continue
			}
			if cur, err = filepath.EvalSymlinks(cur); err != nil {
				return false
			}
		}
	}
	return within(root, cur)
}
