package cli

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pylock/internal/config"
	"github.com/matzehuels/pylock/pkg/buildinfo"
	"github.com/matzehuels/pylock/pkg/cache"
	"github.com/matzehuels/pylock/pkg/envsync"
	pkgerrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/provider"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "pylock"

	// redisPrefix namespaces keys when several tools share a Redis server.
	redisPrefix = "pylock:"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Out    io.Writer // command output
	Err    io.Writer // warnings and the progress spinner

	// Global flags.
	projectDir  string
	interpreter string
	noCache     bool
	refresh     bool
	verbose     bool

	// Seams for tests. Nil means the production implementation.
	newProvider func(store cache.Cache, cfg *config.Config, sources []provider.Source) provider.Provider
	inspect     func(ctx context.Context, python string) (*envsync.Interpreter, error)
	installer   func(in *envsync.Interpreter) envsync.Installer
	environ     map[string]string
	userConfig  string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Out:    os.Stdout,
		Err:    os.Stderr,
	}
}

func (c *CLI) errOut() io.Writer {
	if c.Err == nil {
		return os.Stderr
	}
	return c.Err
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "pylock resolves, locks and syncs Python dependencies",
		Long: `pylock resolves the dependencies declared in pyproject.toml into a lock
file with exact versions and hashes, and makes an environment match it.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if c.verbose {
				c.SetLogLevel(LogDebug)
				installLoggingHooks(c.Logger)
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return pkgerrors.Wrap(pkgerrors.ErrCodeInvalidInput, err, "%s", cmd.CommandPath())
	})

	flags := root.PersistentFlags()
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	flags.StringVarP(&c.projectDir, "project", "p", ".", "project directory (searched upwards for pyproject.toml)")
	flags.StringVar(&c.interpreter, "python", "", "python interpreter of the target environment")
	flags.BoolVar(&c.noCache, "no-cache", false, "disable the metadata cache")
	flags.BoolVar(&c.refresh, "refresh", false, "ignore cached version listings")

	root.AddCommand(c.lockCommand())
	root.AddCommand(c.syncCommand())
	root.AddCommand(c.addCommand())
	root.AddCommand(c.removeCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.checkCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// versionCommand prints build information.
func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printKeyValue(c.Out, "version", buildinfo.Version)
			printKeyValue(c.Out, "commit", buildinfo.Commit)
			printKeyValue(c.Out, "built", buildinfo.Date)
		},
	}
}
