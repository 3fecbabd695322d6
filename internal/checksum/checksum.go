// Package checksum verifies downloaded files against expected digests,
// checksum listings and detached OpenPGP signatures.
package checksum

import (
	"bufio"
	"crypto/md5"  //nolint:gosec // legacy upstream digests
	"crypto/sha1" //nolint:gosec // legacy upstream digests
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Algorithm names a digest function.
type Algorithm string

const (
	SHA1   Algorithm = "sha1"
	MD5    Algorithm = "md5"
	SHA256 Algorithm = "sha256"
)

// ParseAlgorithm accepts "sha1", "md5" or "sha256" in any case.
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case SHA1, MD5, SHA256:
		return a, nil
	}
	return "", fmt.Errorf("unsupported checksum algorithm %q", s)
}

func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case SHA1:
		return sha1.New(), nil //nolint:gosec
	case MD5:
		return md5.New(), nil //nolint:gosec
	case SHA256:
		return sha256.New(), nil
	}
	return nil, fmt.Errorf("unsupported checksum algorithm %q", string(a))
}

// Spec pairs an algorithm with the expected hex digest.
type Spec struct {
	Algorithm Algorithm
	Expected  string
}

// IntegrityError reports a digest mismatch.
type IntegrityError struct {
	Algorithm Algorithm
	File      string // base name
	Computed  string
	Expected  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s signature failed for '%s' file. Computed signature: %s",
		e.Algorithm, e.File, e.Computed)
}

// Sum returns the lowercase hex digest of the file at path, read in a
// single streamed pass.
func Sum(path string, algo Algorithm) (string, error) {
	h, err := algo.newHash()
	if err != nil {
		return "", err
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify checks the file at path against expected, compared case-insensitively.
// A mismatch yields *IntegrityError.
func Verify(path string, algo Algorithm, expected string) error {
	computed, err := Sum(path, algo)
	if err != nil {
		return err
	}
	if !strings.EqualFold(computed, strings.TrimSpace(expected)) {
		return &IntegrityError{
			Algorithm: algo,
			File:      filepath.Base(path),
			Computed:  computed,
			Expected:  expected,
		}
	}
	return nil
}

// VerifyAll checks every spec in order and stops at the first failure.
func VerifyAll(path string, specs []Spec) error {
	for _, s := range specs {
		if err := Verify(path, s.Algorithm, s.Expected); err != nil {
			return err
		}
	}
	return nil
}

func VerifySHA1(path, expected string) error   { return Verify(path, SHA1, expected) }
func VerifyMD5(path, expected string) error    { return Verify(path, MD5, expected) }
func VerifySHA256(path, expected string) error { return Verify(path, SHA256, expected) }

// Lookup finds the digest for filename in a checksum listing.
// Format: "abc123def456  filename.tar.gz" (a leading '*' marks binary mode).
func Lookup(checksumPath, filename string) (string, error) {
	file, err := os.Open(checksumPath)
	if err != nil {
		return "", fmt.Errorf("open checksum file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}

		name := strings.TrimPrefix(parts[1], "*")
		if name == filename || filepath.Base(name) == filename {
			return parts[0], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan checksum file: %w", err)
	}

	return "", fmt.Errorf("checksum not found for %s", filename)
}
