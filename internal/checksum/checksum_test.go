package checksum

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const payload = "envprep test payload\n"

var digests = map[Algorithm]string{
	SHA256: "1d61bc75a944092f94e43b9f90fbe7bc3da7bf0a47a67be6cec77dd8fe406cee",
	SHA1:   "d933334b1a0a785df78d4f23e4b6f820f33fb987",
	MD5:    "277e8a2aa956d01123f52f73f66a7e81",
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestSum(t *testing.T) {
	path := writeFile(t, "payload.txt", payload)

	for algo, want := range digests {
		t.Run(string(algo), func(t *testing.T) {
			got, err := Sum(path, algo)
			if err != nil {
				t.Fatalf("Sum: %v", err)
			}
			if got != want {
				t.Errorf("Sum = %s, want %s", got, want)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	path := writeFile(t, "payload.txt", payload)

	tests := []struct {
		name     string
		algo     Algorithm
		expected string
		wantErr  bool
	}{
		{"sha256_match", SHA256, digests[SHA256], false},
		{"sha256_uppercase", SHA256, strings.ToUpper(digests[SHA256]), false},
		{"sha1_match", SHA1, digests[SHA1], false},
		{"md5_match", MD5, digests[MD5], false},
		{"sha256_mismatch", SHA256, digests[SHA1], true},
		{"md5_mismatch", MD5, "00000000000000000000000000000000", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(path, tt.algo, tt.expected)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var ie *IntegrityError
			if !errors.As(err, &ie) {
				t.Fatalf("expected *IntegrityError, got %v", err)
			}
			if ie.File != "payload.txt" || ie.Algorithm != tt.algo || ie.Computed != digests[tt.algo] {
				t.Errorf("unexpected error fields: %+v", ie)
			}
			if !strings.Contains(err.Error(), "payload.txt") || !strings.Contains(err.Error(), string(tt.algo)) {
				t.Errorf("message missing file or algorithm: %q", err.Error())
			}
		})
	}
}

func TestVerify_SingleBitMutation(t *testing.T) {
	mutated := []byte(payload)
	mutated[0] ^= 0x01
	path := writeFile(t, "payload.txt", string(mutated))

	for algo, want := range digests {
		t.Run(string(algo), func(t *testing.T) {
			var ie *IntegrityError
			if err := Verify(path, algo, want); !errors.As(err, &ie) {
				t.Fatalf("expected *IntegrityError, got %v", err)
			}
		})
	}
}

func TestVerify_Helpers(t *testing.T) {
	path := writeFile(t, "payload.txt", payload)

	if err := VerifySHA256(path, digests[SHA256]); err != nil {
		t.Errorf("VerifySHA256: %v", err)
	}
	if err := VerifySHA1(path, digests[SHA1]); err != nil {
		t.Errorf("VerifySHA1: %v", err)
	}
	if err := VerifyMD5(path, digests[MD5]); err != nil {
		t.Errorf("VerifyMD5: %v", err)
	}
}

func TestVerify_MissingFile(t *testing.T) {
	err := Verify(filepath.Join(t.TempDir(), "absent"), SHA256, digests[SHA256])
	if err == nil {
		t.Fatal("expected error")
	}
	var ie *IntegrityError
	if errors.As(err, &ie) {
		t.Error("missing file should not be reported as an integrity failure")
	}
}

func TestVerifyAll(t *testing.T) {
	path := writeFile(t, "payload.txt", payload)

	ok := []Spec{{SHA256, digests[SHA256]}, {MD5, digests[MD5]}}
	if err := VerifyAll(path, ok); err != nil {
		t.Errorf("VerifyAll: %v", err)
	}

	bad := []Spec{{SHA256, digests[SHA256]}, {SHA1, digests[MD5]}}
	var ie *IntegrityError
	if err := VerifyAll(path, bad); !errors.As(err, &ie) || ie.Algorithm != SHA1 {
		t.Errorf("VerifyAll = %v, want sha1 integrity error", err)
	}
}

func TestParseAlgorithm(t *testing.T) {
	for _, in := range []string{"sha256", "SHA1", " md5 "} {
		if _, err := ParseAlgorithm(in); err != nil {
			t.Errorf("ParseAlgorithm(%q): %v", in, err)
		}
	}
	if _, err := ParseAlgorithm("crc32"); err == nil {
		t.Error("expected error for crc32")
	}
}

func TestLookup(t *testing.T) {
	listing := strings.Join([]string{
		"# release checksums",
		digests[SHA256] + "  tool-linux-amd64.tar.gz",
		"abcdef *dist/tool-darwin-arm64.zip",
		"",
	}, "\n")
	path := writeFile(t, "SHA256SUMS", listing)

	tests := []struct {
		name    string
		file    string
		want    string
		wantErr bool
	}{
		{"exact", "tool-linux-amd64.tar.gz", digests[SHA256], false},
		{"binary_mode_with_path", "tool-darwin-arm64.zip", "abcdef", false},
		{"missing", "tool-windows.zip", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Lookup(path, tt.file)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Lookup = %q, want %q", got, tt.want)
			}
		})
	}
}
