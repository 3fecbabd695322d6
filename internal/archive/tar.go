package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	bzip2Magic = []byte("BZh")
	xzMagic    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	zstdMagic  = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// decompress sniffs the stream's compression from its magic bytes.
func decompress(r *bufio.Reader) (io.Reader, func(), error) {
	head, _ := r.Peek(6)
	noop := func() {}

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("create gzip reader: %w", err)
		}
		return zr, func() { zr.Close() }, nil
	case bytes.HasPrefix(head, bzip2Magic):
		return bzip2.NewReader(r), noop, nil
	case bytes.HasPrefix(head, xzMagic):
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("create xz reader: %w", err)
		}
		return xr, noop, nil
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("create zstd reader: %w", err)
		}
		return zr, zr.Close, nil
	default:
		return r, noop, nil
	}
}

func (e *Extractor) extractTar(src string, res *Result) error {
	file, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	stream, closeStream, err := decompress(bufio.NewReader(file))
	if err != nil {
		return err
	}
	defer closeStream()

	tr := tar.NewReader(stream)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		target, err := e.checkEntry(res.Destination, header.Name)
		if err != nil {
			res.fail(e.console, header.Name, err)
			continue
		}

		written, err := e.writeTarEntry(tr, header, target, res.Destination)
		if err != nil {
			res.fail(e.console, header.Name, err)
			continue
		}
		if written {
			res.Extracted = append(res.Extracted, header.Name)
		}
	}
}

// writeTarEntry materializes one header. It reports false for entry types
// that are skipped (devices, fifos).
func (e *Extractor) writeTarEntry(tr *tar.Reader, h *tar.Header, target, dest string) (bool, error) {
	mode := os.FileMode(h.Mode).Perm()

	switch h.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(target, 0o755); err != nil {
			return false, err
		}
		return true, os.Chmod(target, mode|0o700)

	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return false, fmt.Errorf("create parent dir: %w", err)
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
		if err != nil {
			return false, fmt.Errorf("create file: %w", err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return false, fmt.Errorf("write file: %w", err)
		}
		if err := out.Close(); err != nil {
			return false, err
		}
		return true, os.Chmod(target, mode)

	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return false, fmt.Errorf("create parent dir: %w", err)
		}
		if !linkStaysIn(dest, filepath.Dir(target), h.Linkname) {
			return false, fmt.Errorf("symlink to %s: %w", h.Linkname, ErrIllegalPath)
		}
		_ = os.Remove(target)
		return true, os.Symlink(h.Linkname, target)

	case tar.TypeLink:
		source, err := e.checkEntry(dest, h.Linkname)
		if err != nil {
			return false, fmt.Errorf("hard link to %s: %w", h.Linkname, err)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return false, fmt.Errorf("create parent dir: %w", err)
		}
		_ = os.Remove(target)
		return true, os.Link(source, target)

	default:
		return false, nil
	}
}

// relTo expresses path relative to base, or returns path unchanged when
// that is impossible (which checkEntry then rejects).
func relTo(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return rel
}
