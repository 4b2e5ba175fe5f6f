package cli

import (
	"slices"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pylock/pkg/envsync"
	pkgerrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/lock"
)

// syncCommand creates the sync command.
func (c *CLI) syncCommand() *cobra.Command {
	var (
		groups  []string
		dev     bool
		prod    bool
		noCheck bool
		noClean bool
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "sync [flags]",
		Short: "Make the environment match the lock file",
		Long: `Install, upgrade and remove packages until the interpreter's environment
holds exactly the locked packages of the selected groups.

The default group is always selected. Use -G to add groups (":all" selects
every group), --dev for all dev groups, and --prod to drop dev groups.`,
		Example: `  pylock sync
  pylock sync --dev
  pylock sync -G docs --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := c.openSession(ctx)
			if err != nil {
				return err
			}
			p := s.project
			out := c.Out

			l, err := lock.Read(s.lockPath())
			if err != nil {
				return err
			}
			if l.IsStale(p.Fingerprint()) {
				if !noCheck {
					return pkgerrors.New(pkgerrors.ErrCodeStaleLock, "%s is out of date with %s; run pylock lock", relPath(s.lockPath()), relPath(p.Path))
				}
				printWarning(c.errOut(), "Lock is out of date with %s", relPath(p.Path))
			}

			selected, err := p.SelectGroups(groups, dev, prod)
			if err != nil {
				return err
			}

			in, err := s.interpreter(ctx)
			if err != nil {
				return err
			}
			env := s.cfg.Environment(in.Env)
			locked, err := l.Select(selected, env)
			if err != nil {
				return err
			}
			installed, err := in.Installed(ctx)
			if err != nil {
				return err
			}
			keep := envsync.Protected
			if p.Name != "" {
				keep = append(slices.Clone(keep), p.Name)
			}
			actions := envsync.Plan(locked, installed.Without(keep...))
			if noClean {
				actions = slices.DeleteFunc(actions, func(a envsync.Action) bool { return a.Kind == envsync.KindRemove })
			}

			if len(actions) == 0 {
				printSuccess(out, "Environment is up to date (%s)", plural(len(locked), "package"))
				return nil
			}
			printPlan(out, actions)
			if dryRun {
				printInfo(out, "Dry run, %s not applied", plural(len(actions), "action"))
				return nil
			}

			prog := newProgress(s.logger)
			rep, err := envsync.Execute(ctx, s.installer(in), actions, s.logger)
			if err != nil {
				if len(rep.Skipped) > 0 {
					printDetail(c.errOut(), "%s not attempted", plural(len(rep.Skipped), "action"))
				}
				return err
			}
			prog.done("Applied " + plural(len(rep.Steps), "action"))
			printSuccess(out, "Synced %s in groups %s", plural(len(locked), "package"), joinNames(selected))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&groups, "group", "G", nil, "dependency groups to include (\":all\" for every group)")
	cmd.Flags().BoolVarP(&dev, "dev", "d", false, "include all dev groups")
	cmd.Flags().BoolVar(&prod, "prod", false, "exclude dev groups")
	cmd.Flags().BoolVar(&noCheck, "no-check", false, "sync even if the lock is out of date")
	cmd.Flags().BoolVar(&noClean, "no-clean", false, "keep packages that are not in the lock")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the plan without applying it")

	return cmd
}
