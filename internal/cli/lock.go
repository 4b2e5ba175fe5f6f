package cli

import (
	"context"
	"slices"

	"github.com/spf13/cobra"

	pkgerrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/lock"
	"github.com/matzehuels/pylock/pkg/pep440"
	"github.com/matzehuels/pylock/pkg/pep508"
	"github.com/matzehuels/pylock/pkg/resolve"
)

// lockOptions controls a re-lock.
type lockOptions struct {
	strategy string   // empty means the configured strategy
	update   []string // names to re-resolve freely under reuse and eager
	dryRun   bool
}

// lockCommand creates the lock command.
func (c *CLI) lockCommand() *cobra.Command {
	var opts lockOptions

	cmd := &cobra.Command{
		Use:   "lock [flags]",
		Short: "Resolve pyproject.toml into a lock file",
		Long: `Resolve every dependency group of the project and write pylock.lock.

Strategies:
  all    resolve from scratch, newest versions first
  reuse  keep locked versions except for the packages named by --update
  eager  like reuse, but also re-resolve the dependencies of updated packages`,
		Example: `  pylock lock
  pylock lock --update requests
  pylock lock --strategy eager --update django --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			_, err = s.relock(cmd.Context(), opts)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "lock strategy: all, reuse, eager (default from config)")
	cmd.Flags().StringSliceVarP(&opts.update, "update", "u", nil, "packages to update (implies reuse unless --strategy is given)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "show changes without writing the lock")

	return cmd
}

// relock resolves the whole project and writes the lock unless dryRun is
// set. It returns the new lock.
func (s *session) relock(ctx context.Context, opts lockOptions) (*lock.Lock, error) {
	p := s.project
	groups := p.Groups()
	roots, err := p.Requirements(groups...)
	if err != nil {
		return nil, err
	}
	groupRoots, err := p.GroupRoots(groups...)
	if err != nil {
		return nil, err
	}

	strategy, err := s.strategy(opts)
	if err != nil {
		return nil, err
	}
	update := make([]string, 0, len(opts.update))
	for _, name := range opts.update {
		update = append(update, pep508.CanonicalName(name))
	}

	path := s.lockPath()
	old := s.previousLock(path)

	preferred, err := preferredVersions(old, roots, strategy, update)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("locking", "strategy", strategy, "groups", groups, "roots", len(roots), "preferred", len(preferred))
	g, err := s.resolve(ctx, roots, preferred)
	if err != nil {
		return nil, err
	}

	lockOpts := lock.Options{
		Strategy:       strategy,
		Groups:         groupRoots,
		RequiresPython: p.RequiresPython.String(),
	}
	var updated *lock.Lock
	if opts.dryRun {
		updated = lock.FromGraph(g, p.Fingerprint(), lockOpts)
	} else {
		updated, err = lock.Write(path, g, p.Fingerprint(), lockOpts)
		if err != nil {
			return nil, err
		}
	}

	out := s.cli.Out
	changes := lock.Diff(old, updated)
	if len(changes) == 0 {
		printInfo(out, "No changes")
	}
	printChanges(out, changes)
	if opts.dryRun {
		printInfo(out, "Dry run, %s not written", relPath(path))
		return updated, nil
	}
	printSuccess(out, "Locked %s", plural(len(updated.Packages), "package"))
	printFile(out, relPath(path))
	return updated, nil
}

// resolve resolves roots for the target environment.
func (s *session) resolve(ctx context.Context, roots []pep508.Requirement, preferred map[string]pep440.Version) (*resolve.Graph, error) {
	env, err := s.environment(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkRequiresPython(env); err != nil {
		return nil, err
	}
	prov, release, err := s.provider(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	prog := newProgress(s.logger)
	spin := newSpinner(ctx, s.cli.errOut(), "Resolving dependencies...")
	if !s.cli.verbose {
		spin.Start()
	}
	g, err := resolve.New(prov, resolve.Options{
		Env:              env,
		AllowPrereleases: s.project.AllowPrereleases,
		Preferred:        preferred,
		MaxRounds:        s.cfg.MaxRounds,
		Logger:           s.logger,
	}).Resolve(ctx, roots)
	spin.Stop()
	if err != nil {
		return nil, err
	}
	prog.done("Resolved " + plural(g.Len(), "package"))
	return g, nil
}

// strategy picks the effective strategy. Naming packages to update
// without a strategy means reuse.
func (s *session) strategy(opts lockOptions) (string, error) {
	strategy := opts.strategy
	if strategy == "" {
		strategy = s.cfg.Strategy
		if len(opts.update) > 0 && strategy == lock.StrategyAll {
			strategy = lock.StrategyReuse
		}
	}
	if !slices.Contains([]string{lock.StrategyAll, lock.StrategyReuse, lock.StrategyEager}, strategy) {
		return "", pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "unknown strategy %q", strategy)
	}
	return strategy, nil
}

// previousLock reads the existing lock. A missing or unreadable lock is
// treated as absent.
func (s *session) previousLock(path string) *lock.Lock {
	old, err := lock.Read(path)
	switch {
	case err == nil:
		return old
	case pkgerrors.Is(err, pkgerrors.ErrCodeLockNotFound):
	default:
		printWarning(s.cli.errOut(), "Ignoring unreadable lock: %s", pkgerrors.UserMessage(err))
	}
	return nil
}

// checkRequiresPython rejects a target interpreter the project excludes.
func (s *session) checkRequiresPython(env pep508.Environment) error {
	spec := s.project.RequiresPython
	if spec.IsEmpty() {
		return nil
	}
	v, err := pep440.Parse(env.PythonFullVersion)
	if err != nil {
		return nil
	}
	if !spec.Contains(v) {
		return pkgerrors.New(pkgerrors.ErrCodeInvalidProject,
			"target python %s does not satisfy requires-python %s", v, spec)
	}
	return nil
}

// preferredVersions returns the versions the resolver should try first.
// Under reuse every locked version except the updated names is preferred;
// eager also frees everything the updated names depend on.
func preferredVersions(old *lock.Lock, roots []pep508.Requirement, strategy string, update []string) (map[string]pep440.Version, error) {
	if old == nil || strategy == lock.StrategyAll {
		return nil, nil
	}
	preferred := old.Versions()
	free := update
	if strategy == lock.StrategyEager && len(update) > 0 {
		g, err := old.Graph(roots)
		if err != nil {
			return nil, err
		}
		free = g.Reachable(update)
	}
	for _, name := range free {
		delete(preferred, name)
	}
	return preferred, nil
}
