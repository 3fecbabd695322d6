package patch

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// file is a text file split into lines without terminators.
type file struct {
	lines       []string
	eol         string
	trailingEOL bool
}

func splitFile(raw []byte) file {
	s := string(raw)
	f := file{eol: "\n", trailingEOL: strings.HasSuffix(s, "\n")}
	if strings.Contains(s, "\r\n") {
		f.eol = "\r\n"
	}
	s = strings.TrimSuffix(s, "\n")
	if s == "" && !f.trailingEOL {
		return f
	}
	for _, l := range strings.Split(s, "\n") {
		f.lines = append(f.lines, strings.TrimSuffix(l, "\r"))
	}
	return f
}

func (f file) bytes() []byte {
	if len(f.lines) == 0 {
		return nil
	}
	s := strings.Join(f.lines, f.eol)
	if f.trailingEOL {
		s += f.eol
	}
	return []byte(s)
}

// hunkLines splits a hunk body into the lines it expects and the lines it
// produces.
func hunkLines(h *diff.Hunk) (before, after []string, err error) {
	body := strings.TrimSuffix(string(h.Body), "\n")
	if body == "" {
		return nil, nil, nil
	}
	for _, l := range strings.Split(body, "\n") {
		l = strings.TrimSuffix(l, "\r")
		if l == "" {
			before, after = append(before, ""), append(after, "")
			continue
		}
		switch l[0] {
		case ' ':
			before, after = append(before, l[1:]), append(after, l[1:])
		case '-':
			before = append(before, l[1:])
		case '+':
			after = append(after, l[1:])
		case '\\':
			// "\ No newline at end of file"
		default:
			return nil, nil, fmt.Errorf("malformed hunk line %q", l)
		}
	}
	return before, after, nil
}

type offsetNote struct {
	hunk   int
	offset int
}

// applyHunks applies hunks in order. Each hunk must match exactly; it is
// tried at its stated position first and then at the nearest position after
// the previous hunk.
func applyHunks(lines []string, hunks []*diff.Hunk) ([]string, []offsetNote, error) {
	out := append([]string(nil), lines...)
	var notes []offsetNote
	delta, floor := 0, 0

	for i, h := range hunks {
		before, after, err := hunkLines(h)
		if err != nil {
			return nil, nil, fmt.Errorf("hunk #%d: %w", i+1, err)
		}

		want := int(h.OrigStartLine) - 1
		if h.OrigLines == 0 {
			want = int(h.OrigStartLine)
		}
		want += delta
		if want < floor {
			want = floor
		}

		pos := findBlock(out, before, want, floor)
		if pos < 0 {
			return nil, nil, fmt.Errorf("hunk #%d FAILED at %d", i+1, h.OrigStartLine)
		}
		if pos != want {
			notes = append(notes, offsetNote{hunk: i + 1, offset: pos - want})
		}

		tail := append([]string(nil), out[pos+len(before):]...)
		out = append(append(out[:pos], after...), tail...)

		delta += len(after) - len(before) + (pos - want)
		floor = pos + len(after)
	}
	return out, notes, nil
}

// findBlock returns the index nearest to want (not before floor) at which
// block occurs in lines, or -1.
func findBlock(lines, block []string, want, floor int) int {
	last := len(lines) - len(block)
	for d := 0; ; d++ {
		hi, lo := want+d, want-d
		if hi > last && lo < floor {
			return -1
		}
		if hi >= floor && hi <= last && matchAt(lines, block, hi) {
			return hi
		}
		if d > 0 && lo >= floor && lo <= last && matchAt(lines, block, lo) {
			return lo
		}
	}
}

func matchAt(lines, block []string, at int) bool {
	if at < 0 || at+len(block) > len(lines) {
		return false
	}
	for i, l := range block {
		if lines[at+i] != l {
			return false
		}
	}
	return true
}

// alreadyApplied reports whether every hunk's result is already present.
func alreadyApplied(lines []string, hunks []*diff.Hunk) bool {
	for _, h := range hunks {
		_, after, err := hunkLines(h)
		if err != nil || len(after) == 0 {
			return false
		}
		if findBlock(lines, after, max(int(h.NewStartLine)-1, 0), 0) < 0 {
			return false
		}
	}
	return true
}
