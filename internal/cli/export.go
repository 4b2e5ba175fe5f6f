package cli

import (
	"bytes"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pylock/pkg/fsutil"
	"github.com/matzehuels/pylock/pkg/lock"
)

// exportCommand creates the export command.
func (c *CLI) exportCommand() *cobra.Command {
	var (
		groups        []string
		dev           bool
		prod          bool
		output        string
		withoutHashes bool
	)

	cmd := &cobra.Command{
		Use:   "export [flags]",
		Short: "Export the lock as requirements.txt",
		Long: `Write the locked packages of the selected groups in requirements.txt
format, with markers and --hash options, for use with pip install
--require-hashes.`,
		Example: `  pylock export -o requirements.txt
  pylock export --dev --without-hashes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			l, err := lock.Read(s.lockPath())
			if err != nil {
				return err
			}
			if l.IsStale(s.project.Fingerprint()) {
				printWarning(c.errOut(), "Lock is out of date with %s", relPath(s.project.Path))
			}
			selected, err := s.project.SelectGroups(groups, dev, prod)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			pkgs := l.InGroups(selected)
			if err := lock.ExportRequirements(&buf, pkgs, !withoutHashes); err != nil {
				return err
			}
			if output == "" {
				return writeTo(c.Out, "stdout", buf.Bytes())
			}
			if err := fsutil.WriteFileAtomic(output, buf.Bytes(), 0o644); err != nil {
				return err
			}
			printSuccess(c.Out, "Exported %s", plural(len(pkgs), "package"))
			printFile(c.Out, output)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&groups, "group", "G", nil, "dependency groups to include (\":all\" for every group)")
	cmd.Flags().BoolVarP(&dev, "dev", "d", false, "include all dev groups")
	cmd.Flags().BoolVar(&prod, "prod", false, "exclude dev groups")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&withoutHashes, "without-hashes", false, "omit --hash options")

	return cmd
}
