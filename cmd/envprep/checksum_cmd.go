package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/envprep/internal/checksum"
)

func newChecksumCommand(a *app) *cobra.Command {
	var (
		algorithm string
		expected  string
		sumFile   string
		signature string
		keyring   string
	)
	cmd := &cobra.Command{
		Use:   "checksum FILE",
		Short: "Print or verify a file digest or detached signature",
		Long: `Without --expected or --sum-file the digest is printed.
--sum-file reads the expected digest from a SHA256SUMS style listing.
--signature with --keyring verifies an OpenPGP detached signature.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := args[0]
			algo, err := checksum.ParseAlgorithm(algorithm)
			if err != nil {
				return err
			}

			if signature != "" {
				if keyring == "" {
					return fmt.Errorf("--signature requires --keyring")
				}
				f, err := os.Open(keyring)
				if err != nil {
					return fmt.Errorf("open keyring: %w", err)
				}
				defer f.Close()
				keys, err := checksum.ReadKeyring(f)
				if err != nil {
					return err
				}
				if err := checksum.VerifySignature(file, signature, keys); err != nil {
					return err
				}
				a.printf("%s: signature OK\n", file)
			}

			if sumFile != "" {
				expected, err = checksum.Lookup(sumFile, filepath.Base(file))
				if err != nil {
					return err
				}
			}

			if expected == "" {
				if signature != "" {
					return nil
				}
				sum, err := checksum.Sum(file, algo)
				if err != nil {
					return err
				}
				a.printf("%s  %s\n", sum, file)
				return nil
			}

			if err := checksum.Verify(file, algo, expected); err != nil {
				return err
			}
			a.printf("%s: %s OK\n", file, algo)
			return nil
		},
	}
	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", "sha256", "sha1, md5 or sha256")
	cmd.Flags().StringVarP(&expected, "expected", "e", "", "expected hex digest")
	cmd.Flags().StringVar(&sumFile, "sum-file", "", "checksum listing to look the file up in")
	cmd.Flags().StringVar(&signature, "signature", "", "detached OpenPGP signature")
	cmd.Flags().StringVar(&keyring, "keyring", "", "public keyring for --signature")
	return cmd
}
