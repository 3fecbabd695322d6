// Package patch applies unified diffs to a directory tree.
//
// A patch is applied all-or-nothing: every hunk of every file is applied in
// memory first, and the tree is only written once all of them matched.
package patch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/ZebulonRouseFrantzich/envprep/internal/output"
)

const devNull = "/dev/null"

// Options selects the patch and where it applies. File wins over Content.
// With neither set Apply does nothing.
type Options struct {
	BasePath string // directory paths in the patch are relative to
	File     string // path to a patch file
	Content  string // patch text
	Strip    int    // leading path components to remove
}

// ErrOutsideBase is returned for a file diff whose path resolves outside
// the base directory.
var ErrOutsideBase = errors.New("path escapes the base directory")

// ParseError reports a patch that contained no usable file diff.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Failed to parse patch: %s: %v", e.Source, e.Err)
	}
	return "Failed to parse patch: " + e.Source
}

func (e *ParseError) Unwrap() error { return e.Err }

// ApplyError reports a patch that does not apply.
type ApplyError struct {
	Source string
	File   string
	Err    error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("Failed to apply patch: %s: %s: %v", e.Source, e.File, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// tagged prefixes diagnostics with the patch name.
type tagged struct {
	log output.Logger
	tag string
}

func (t tagged) info(format string, args ...interface{}) {
	t.log.Info(t.tag + ": " + fmt.Sprintf(format, args...))
}

func (t tagged) warn(format string, args ...interface{}) {
	t.log.Warn(t.tag + ": " + fmt.Sprintf(format, args...))
}

// edit is the pending result for one file.
type edit struct {
	source  string // file read, "" for creations
	target  string // file written
	remove  bool
	content []byte
	mode    os.FileMode
}

// Apply applies the patch described by opts. Diagnostics go to log.
func Apply(opts Options, log output.Logger) error {
	if log == nil {
		log = output.Nop()
	}

	var (
		data   []byte
		source string
		tag    = "patch"
	)
	switch {
	case opts.File != "":
		b, err := os.ReadFile(opts.File)
		if err != nil {
			return &ParseError{Source: opts.File, Err: err}
		}
		data, source, tag = b, opts.File, opts.File
	case opts.Content != "":
		data, source = []byte(opts.Content), "string"
	default:
		return nil
	}
	t := tagged{log: log, tag: tag}

	fileDiffs, err := diff.ParseMultiFileDiff(data)
	if err != nil {
		return &ParseError{Source: source, Err: err}
	}
	var usable []*diff.FileDiff
	for _, fd := range fileDiffs {
		if len(fd.Hunks) == 0 {
			if fd.OrigName != "" || fd.NewName != "" {
				t.warn("no hunks for %s", displayName(fd))
			}
			continue
		}
		usable = append(usable, fd)
	}
	if len(usable) == 0 {
		return &ParseError{Source: source}
	}

	edits := make([]edit, 0, len(usable))
	for _, fd := range usable {
		ed, skip, err := plan(fd, opts, t)
		if err != nil {
			return &ApplyError{Source: source, File: displayName(fd), Err: err}
		}
		if !skip {
			edits = append(edits, ed)
		}
	}

	for _, ed := range edits {
		if err := commit(ed); err != nil {
			return &ApplyError{Source: source, File: ed.target, Err: err}
		}
	}
	return nil
}

func displayName(fd *diff.FileDiff) string {
	if fd.NewName != "" && fd.NewName != devNull {
		return fd.NewName
	}
	return fd.OrigName
}

// stripPath removes n leading components of a slash-separated patch path.
func stripPath(name string, n int) (string, error) {
	name = strings.TrimSpace(name)
	if n <= 0 {
		return name, nil
	}
	parts := strings.Split(strings.TrimLeft(name, "/"), "/")
	if len(parts) <= n {
		return "", fmt.Errorf("cannot strip %d components from %q", n, name)
	}
	return strings.Join(parts[n:], "/"), nil
}

func resolve(base, name string, strip int) (string, error) {
	if name == "" || name == devNull {
		return "", nil
	}
	rel, err := stripPath(name, strip)
	if err != nil {
		return "", err
	}
	if base == "" {
		base = "."
	}
	base = filepath.Clean(base)
	path := filepath.Join(base, filepath.FromSlash(rel))
	if r, err := filepath.Rel(base, path); err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", name, ErrOutsideBase)
	}
	return path, nil
}

// plan computes the new content for one file diff without touching disk.
func plan(fd *diff.FileDiff, opts Options, t tagged) (edit, bool, error) {
	source, err := resolve(opts.BasePath, fd.OrigName, opts.Strip)
	if err != nil {
		return edit{}, false, err
	}
	target, err := resolve(opts.BasePath, fd.NewName, opts.Strip)
	if err != nil {
		return edit{}, false, err
	}

	ed := edit{source: source, target: target, mode: 0o644}
	if target == "" {
		ed.target, ed.remove = source, true
	}
	if ed.target == "" {
		return edit{}, false, errors.New("patch names no file")
	}

	var text file
	if source != "" {
		info, err := os.Stat(source)
		if err != nil {
			return edit{}, false, fmt.Errorf("source file: %w", err)
		}
		ed.mode = info.Mode().Perm()
		raw, err := os.ReadFile(source)
		if err != nil {
			return edit{}, false, err
		}
		text = splitFile(raw)
	} else {
		text = file{eol: "\n", trailingEOL: true}
	}

	lines, offsets, err := applyHunks(text.lines, fd.Hunks)
	if err != nil {
		if source != "" && alreadyApplied(text.lines, fd.Hunks) {
			t.warn("already patched %s", ed.target)
			return edit{}, true, nil
		}
		return edit{}, false, err
	}
	for _, o := range offsets {
		t.info("hunk #%d succeeded at offset %d", o.hunk, o.offset)
	}

	t.info("patching file %s", ed.target)
	if !ed.remove {
		text.lines = lines
		ed.content = text.bytes()
	}
	return ed, false, nil
}

func commit(ed edit) error {
	if ed.remove {
		return os.Remove(ed.target)
	}
	if err := os.MkdirAll(filepath.Dir(ed.target), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(ed.target, ed.content, ed.mode); err != nil {
		return err
	}
	if ed.source != "" && ed.source != ed.target {
		return os.Remove(ed.source)
	}
	return nil
}
