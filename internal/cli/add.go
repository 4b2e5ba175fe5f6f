package cli

import (
	"github.com/spf13/cobra"

	pkgerrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/lock"
	"github.com/matzehuels/pylock/pkg/pep508"
	"github.com/matzehuels/pylock/pkg/project"
)

// devGroup is the group --dev edits when no group is named.
const devGroup = "dev"

// editFlags are shared by add and remove.
type editFlags struct {
	group  string
	dev    bool
	noLock bool
}

func (f *editFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.group, "group", "G", "", "dependency group to edit (default \"default\", or \"dev\" with --dev)")
	cmd.Flags().BoolVarP(&f.dev, "dev", "d", false, "edit a dev dependency group")
	cmd.Flags().BoolVar(&f.noLock, "no-lock", false, "only edit pyproject.toml, do not re-lock")
}

// target returns the group name to edit.
func (f *editFlags) target() string {
	switch {
	case f.group != "":
		return f.group
	case f.dev:
		return devGroup
	}
	return project.DefaultGroup
}

// addCommand creates the add command.
func (c *CLI) addCommand() *cobra.Command {
	var (
		flags        editFlags
		requirements string
	)

	cmd := &cobra.Command{
		Use:   "add [requirements...]",
		Short: "Add dependencies to pyproject.toml and re-lock",
		Long: `Add requirements to a dependency group. A requirement naming a package the
group already has replaces it in place. Unless --no-lock is given, the
project is re-locked keeping every other locked version.`,
		Example: `  pylock add "requests>=2.31"
  pylock add --dev pytest
  pylock add -G docs -r docs/requirements.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs := make([]pep508.Requirement, 0, len(args))
			for _, arg := range args {
				r, err := pep508.ParseRequirement(arg)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.ErrCodeInvalidInput, err, "requirement %q", arg)
				}
				reqs = append(reqs, r)
			}
			if requirements != "" {
				imported, err := project.ReadRequirementsFile(requirements)
				if err != nil {
					return err
				}
				for _, line := range imported.Skipped {
					printWarning(c.errOut(), "Skipped %q", line)
				}
				reqs = append(reqs, imported.Requirements...)
			}
			if len(reqs) == 0 {
				return pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "nothing to add")
			}

			s, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			group := flags.target()
			if err := s.project.Add(group, flags.dev, reqs...); err != nil {
				return err
			}
			names := make([]string, 0, len(reqs))
			for _, r := range reqs {
				names = append(names, r.Name)
				printDetail(c.Out, "%s: %s", group, r)
			}
			return s.commitEdit(cmd, flags, lockOptions{update: names})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&requirements, "requirements", "r", "", "import requirements from a requirements.txt file")

	return cmd
}

// removeCommand creates the remove command.
func (c *CLI) removeCommand() *cobra.Command {
	var flags editFlags

	cmd := &cobra.Command{
		Use:   "remove packages...",
		Short: "Remove dependencies from pyproject.toml and re-lock",
		Example: `  pylock remove requests
  pylock remove --dev pytest`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			group := flags.target()
			if err := s.project.Remove(group, flags.dev, args...); err != nil {
				return err
			}
			for _, name := range args {
				printDetail(c.Out, "%s: -%s", group, pep508.CanonicalName(name))
			}
			return s.commitEdit(cmd, flags, lockOptions{strategy: lock.StrategyReuse})
		},
	}

	flags.register(cmd)

	return cmd
}

// commitEdit re-locks the edited project and then saves pyproject.toml, so
// a failed resolution leaves the declaration untouched.
func (s *session) commitEdit(cmd *cobra.Command, flags editFlags, opts lockOptions) error {
	if !flags.noLock {
		if _, err := s.relock(cmd.Context(), opts); err != nil {
			return err
		}
	}
	if err := s.project.Save(); err != nil {
		return err
	}
	printSuccess(s.cli.Out, "Updated %s", relPath(s.project.Path))
	if flags.noLock {
		printNextStep(s.cli.Out, "Lock with", "pylock lock")
	}
	return nil
}
