// Package acquire composes download, verification and extraction into the
// single "get this archive into that directory" operation.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/envprep/internal/archive"
	"github.com/ZebulonRouseFrantzich/envprep/internal/checksum"
	"github.com/ZebulonRouseFrantzich/envprep/internal/fetch"
	"github.com/ZebulonRouseFrantzich/envprep/internal/output"
)

// Downloader is the part of fetch.Fetcher the pipeline needs.
type Downloader interface {
	Download(ctx context.Context, url, dest string, opts fetch.Options) error
}

// Unpacker is the part of archive.Extractor the pipeline needs.
type Unpacker interface {
	Extract(src, dest string, opts archive.Options) (*archive.Result, error)
}

// GetOptions controls Get.
type GetOptions struct {
	Destination     string // "" means the working directory
	Fetch           fetch.Options
	Checksums       []checksum.Spec // verified before extraction when set
	KeepPermissions bool
}

// DefaultGetOptions extracts into the working directory with default fetch
// settings.
func DefaultGetOptions() GetOptions {
	return GetOptions{Fetch: fetch.DefaultOptions()}
}

// Pipeline fetches, verifies and unpacks archives.
type Pipeline struct {
	downloader Downloader
	unpacker   Unpacker
	log        output.Logger
}

// New creates a Pipeline.
func New(d Downloader, u Unpacker, log output.Logger) *Pipeline {
	if log == nil {
		log = output.Nop()
	}
	return &Pipeline{downloader: d, unpacker: u, log: log}
}

// ArchiveName returns the file name Get downloads rawURL to: the last path
// segment, ignoring any query or fragment.
func ArchiveName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("url %q has no file name", rawURL)
	}
	return name, nil
}

// Get downloads rawURL into the destination directory, verifies it when
// checksums are given, extracts it there and removes the downloaded archive.
// Removal failures are logged, not returned.
func (p *Pipeline) Get(ctx context.Context, rawURL string, opts GetOptions) (*archive.Result, error) {
	name, err := ArchiveName(rawURL)
	if err != nil {
		return nil, err
	}

	dest := opts.Destination
	if dest == "" {
		dest = "."
	}
	archivePath := filepath.Join(dest, name)

	if err := p.downloader.Download(ctx, rawURL, archivePath, opts.Fetch); err != nil {
		return nil, err
	}
	defer p.remove(archivePath)

	if err := checksum.VerifyAll(archivePath, opts.Checksums); err != nil {
		return nil, err
	}

	res, err := p.unpacker.Extract(archivePath, dest, archive.Options{KeepPermissions: opts.KeepPermissions})
	if err != nil {
		return res, fmt.Errorf("unpack %s: %w", name, err)
	}
	return res, nil
}

func (p *Pipeline) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.log.Warn("could not remove downloaded archive", "path", path, "error", err)
	}
}
