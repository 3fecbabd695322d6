package checksum

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// ReadKeyring parses an armored or binary OpenPGP public keyring.
func ReadKeyring(r io.Reader) (openpgp.EntityList, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read keyring: %w", err)
	}

	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		keyring, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}
	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}
	return keyring, nil
}

// VerifySignature checks a detached signature (armored or binary) over the
// file at path.
func VerifySignature(path, signaturePath string, keyring openpgp.EntityList) error {
	sig, err := os.ReadFile(signaturePath)
	if err != nil {
		return fmt.Errorf("open signature: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	_, err = openpgp.CheckArmoredDetachedSignature(keyring, file, bytes.NewReader(sig), nil)
	if err != nil {
		if _, serr := file.Seek(0, io.SeekStart); serr != nil {
			return fmt.Errorf("rewind %s: %w", path, serr)
		}
		_, err = openpgp.CheckDetachedSignature(keyring, file, bytes.NewReader(sig), nil)
	}
	if err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}
	return nil
}
