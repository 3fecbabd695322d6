package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"

	"github.com/ZebulonRouseFrantzich/envprep/internal/output"
	"github.com/ZebulonRouseFrantzich/envprep/internal/platform"
)

func (e *Extractor) extractZip(src string, res *Result, opts Options) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	var total uint64
	for _, f := range r.File {
		total += f.UncompressedSize64
	}
	e.console.Info(fmt.Sprintf("Unzipping %s, this can take a while", humanize.IBytes(total)))

	bar := output.NewProgress(e.console, int64(total), "Unzipping")
	defer bar.Finish()

	keepPerms := opts.KeepPermissions && e.family != platform.Windows
	for _, f := range r.File {
		bar.Add(int64(f.UncompressedSize64))

		target, err := e.checkEntry(res.Destination, f.Name)
		if err != nil {
			res.fail(e.console, f.Name, err)
			continue
		}
		if err := writeZipEntry(f, target); err != nil {
			res.fail(e.console, f.Name, err)
			continue
		}
		if keepPerms {
			if err := os.Chmod(target, zipMode(f.ExternalAttrs)); err != nil {
				res.fail(e.console, f.Name, err)
				continue
			}
		}
		res.Extracted = append(res.Extracted, f.Name)
	}
	return nil
}

func writeZipEntry(f *zip.File, target string) error {
	if strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry: %w", err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("write file: %w", err)
	}
	return out.Close()
}

// zipMode converts the Unix mode stored in the high 16 bits of a zip
// entry's external attributes into an os.FileMode, keeping the setuid,
// setgid and sticky bits.
func zipMode(externalAttrs uint32) os.FileMode {
	unix := externalAttrs >> 16 & 0xFFF
	mode := os.FileMode(unix & 0o777)
	if unix&0o4000 != 0 {
		mode |= os.ModeSetuid
	}
	if unix&0o2000 != 0 {
		mode |= os.ModeSetgid
	}
	if unix&0o1000 != 0 {
		mode |= os.ModeSticky
	}
	return mode
}
