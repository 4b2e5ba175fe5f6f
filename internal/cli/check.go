package cli

import (
	"github.com/spf13/cobra"

	pkgerrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/lock"
)

// checkCommand creates the check command.
func (c *CLI) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that the lock file is current and consistent",
		Long: `Compare the lock's content hash with pyproject.toml and verify that every
locked dependency is satisfied by the locked versions. Exits with status 6
when the lock is missing, stale or inconsistent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			path := s.lockPath()
			l, err := lock.Read(path)
			if err != nil {
				return err
			}
			if l.IsStale(s.project.Fingerprint()) {
				return pkgerrors.New(pkgerrors.ErrCodeStaleLock, "%s is out of date with %s", relPath(path), relPath(s.project.Path))
			}
			roots, err := s.project.Requirements(s.project.Groups()...)
			if err != nil {
				return err
			}
			g, err := l.Graph(roots)
			if err != nil {
				return err
			}
			if bad := g.Unsatisfied(); len(bad) > 0 {
				for _, e := range bad {
					printDetail(c.errOut(), "%s", e)
				}
				return pkgerrors.New(pkgerrors.ErrCodeCorruptLock, "%s has %s", relPath(path), plural(len(bad), "unsatisfied requirement"))
			}
			printSuccess(c.Out, "%s is up to date (%s)", relPath(path), plural(len(l.Packages), "package"))
			return nil
		},
	}
}
