package main

import (
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/envprep/internal/acquire"
	"github.com/ZebulonRouseFrantzich/envprep/internal/archive"
	"github.com/ZebulonRouseFrantzich/envprep/internal/checksum"
)

func newDownloadCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download URL [FILE]",
		Short: "Download a file, retrying on failure",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]
			dest := ""
			if len(args) == 2 {
				dest = args[1]
			} else {
				name, err := acquire.ArchiveName(url)
				if err != nil {
					return err
				}
				dest = name
			}

			start := time.Now()
			if err := a.fetcher().Download(cmd.Context(), url, dest, a.fetchOptionsFromFlags(cmd)); err != nil {
				return err
			}
			specs, err := checksumFlags(cmd)
			if err != nil {
				return err
			}
			if err := checksum.VerifyAll(dest, specs); err != nil {
				return err
			}
			a.printf("%s (%s) in %s\n", dest, fileSize(dest), formatDuration(time.Since(start)))
			return nil
		},
	}
	addFetchFlags(cmd)
	addChecksumFlags(cmd)
	return cmd
}

func newUnpackCommand(a *app) *cobra.Command {
	var keepPerms bool
	cmd := &cobra.Command{
		Use:   "unpack ARCHIVE [DIR]",
		Short: "Extract a zip or tar archive",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := "."
			if len(args) == 2 {
				dest = args[1]
			}
			res, err := a.extractor().Extract(args[0], dest, archive.Options{KeepPermissions: keepPerms})
			if err != nil {
				return err
			}
			a.printResult(res)
			return res.Err()
		},
	}
	cmd.Flags().BoolVar(&keepPerms, "keep-permissions", false, "apply permission bits stored in zip entries")
	return cmd
}

func newGetCommand(a *app) *cobra.Command {
	var (
		dest      string
		keepPerms bool
	)
	cmd := &cobra.Command{
		Use:   "get URL",
		Short: "Download, verify and extract an archive, then delete it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := checksumFlags(cmd)
			if err != nil {
				return err
			}
			opts := acquire.GetOptions{
				Destination:     dest,
				Fetch:           a.fetchOptionsFromFlags(cmd),
				Checksums:       specs,
				KeepPermissions: keepPerms,
			}
			res, err := a.pipeline().Get(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			a.printResult(res)
			return res.Err()
		},
	}
	cmd.Flags().StringVarP(&dest, "dest", "d", "", "destination directory (default: working directory)")
	cmd.Flags().BoolVar(&keepPerms, "keep-permissions", false, "apply permission bits stored in zip entries")
	addFetchFlags(cmd)
	addChecksumFlags(cmd)
	return cmd
}

func (a *app) printResult(res *archive.Result) {
	a.printf("extracted %d entries to %s\n", len(res.Extracted), res.Destination)
	if n := len(res.Failures); n > 0 {
		a.printf("%d entries failed\n", n)
	}
}

func addChecksumFlags(cmd *cobra.Command) {
	cmd.Flags().String("sha1", "", "expected SHA-1 digest")
	cmd.Flags().String("md5", "", "expected MD5 digest")
	cmd.Flags().String("sha256", "", "expected SHA-256 digest")
}

func checksumFlags(cmd *cobra.Command) ([]checksum.Spec, error) {
	var specs []checksum.Spec
	for _, algo := range []checksum.Algorithm{checksum.SHA1, checksum.MD5, checksum.SHA256} {
		v, err := cmd.Flags().GetString(string(algo))
		if err != nil {
			return nil, err
		}
		if v != "" {
			specs = append(specs, checksum.Spec{Algorithm: algo, Expected: v})
		}
	}
	return specs, nil
}

func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "unknown size"
	}
	return humanize.IBytes(uint64(info.Size()))
}
