package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pylock/internal/config"
	"github.com/matzehuels/pylock/pkg/cache"
	"github.com/matzehuels/pylock/pkg/project"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the package metadata cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheConfig loads settings for the cache commands, which work with or
// without a project.
func (c *CLI) cacheConfig() (*config.Config, error) {
	dir := ""
	if path, err := project.Find(c.projectDir); err == nil {
		dir = filepath.Dir(path)
	}
	return c.loadConfig(dir)
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached index response and metadata entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.cacheConfig()
			if err != nil {
				return err
			}
			store, err := openCache(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			clearer, ok := store.(cache.Clearer)
			if !ok {
				printInfo(c.Out, "Caching is disabled")
				return nil
			}
			if err := clearer.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			printSuccess(c.Out, "Cleared the %s cache", cfg.Cache.Backend)
			if cfg.Cache.Backend == config.CacheFile {
				printDetail(c.Out, "Directory: %s", cfg.Cache.Dir)
			}
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where the cache is kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.cacheConfig()
			if err != nil {
				return err
			}
			switch cfg.Cache.Backend {
			case config.CacheRedis:
				fmt.Fprintln(c.Out, cfg.Cache.RedisURL)
			case config.CacheNone:
				printInfo(c.Out, "Caching is disabled")
			default:
				fmt.Fprintln(c.Out, cfg.Cache.Dir)
			}
			return nil
		},
	}
}
