package cli

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pylock/internal/config"
	"github.com/matzehuels/pylock/pkg/build"
	"github.com/matzehuels/pylock/pkg/cache"
	"github.com/matzehuels/pylock/pkg/envsync"
	pkgerrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/pep508"
	"github.com/matzehuels/pylock/pkg/project"
	"github.com/matzehuels/pylock/pkg/provider"
)

// retryDelay is the first backoff step between index retries.
const retryDelay = time.Second

// session is the state one project command works with.
type session struct {
	cli     *CLI
	cfg     *config.Config
	project *project.Project
	logger  *log.Logger
}

// openSession finds the project from the --project flag and loads the
// configuration layered around it.
func (c *CLI) openSession(ctx context.Context) (*session, error) {
	path, err := project.Find(c.projectDir)
	if err != nil {
		return nil, err
	}
	p, err := project.Load(path)
	if err != nil {
		return nil, err
	}
	cfg, err := c.loadConfig(p.Dir())
	if err != nil {
		return nil, err
	}
	return &session{cli: c, cfg: cfg, project: p, logger: loggerFromContext(ctx)}, nil
}

// loadConfig loads settings for dir and applies the global flags.
func (c *CLI) loadConfig(dir string) (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		UserFile:   c.userConfig,
		ProjectDir: dir,
		Environ:    c.environ,
	})
	if err != nil {
		return nil, err
	}
	if c.interpreter != "" {
		cfg.Interpreter = c.interpreter
	}
	if c.noCache {
		cfg.Cache.Backend = config.CacheNone
	}
	return cfg, nil
}

// lockPath is where the project's lock lives.
func (s *session) lockPath() string {
	return filepath.Join(s.project.Dir(), s.cfg.LockFile)
}

// openCache opens the configured cache backend.
func openCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case config.CacheNone:
		return cache.NewNullCache(), nil
	case config.CacheRedis:
		store, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL, redisPrefix)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfig, err, "open redis cache")
		}
		return store, nil
	}
	store, err := cache.NewFileCache(cfg.Cache.Dir)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfig, err, "open cache %s", cfg.Cache.Dir)
	}
	return store, nil
}

// provider builds the package index client. The returned function releases
// the cache.
func (s *session) provider(ctx context.Context) (provider.Provider, func(), error) {
	store, err := openCache(ctx, s.cfg)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if err := store.Close(); err != nil {
			s.logger.Debug("close cache", "err", err)
		}
	}
	sources := s.cfg.Sources(s.project.Sources)
	if s.cli.newProvider != nil {
		return s.cli.newProvider(store, s.cfg, sources), release, nil
	}

	backends := build.Chain{build.Static{}}
	if len(s.cfg.BuildHook) > 0 {
		backends = append(backends, &build.Command{
			Path:   s.cfg.BuildHook[0],
			Args:   s.cfg.BuildHook[1:],
			Logger: s.logger,
		})
	}
	p := provider.NewPyPI(store, sources,
		provider.WithLogger(s.logger),
		provider.WithConcurrency(s.cfg.Concurrency),
		provider.WithListingTTL(s.cfg.ListingTTL),
		provider.WithRetry(s.cfg.RetryAttempts, retryDelay),
		provider.WithHTTPClient(&http.Client{Timeout: s.cfg.Timeout}),
		provider.WithBuildBackend(backends),
		provider.WithRefresh(s.cli.refresh),
	)
	return p, release, nil
}

// interpreter inspects the configured interpreter.
func (s *session) interpreter(ctx context.Context) (*envsync.Interpreter, error) {
	if s.cli.inspect != nil {
		return s.cli.inspect(ctx, s.cfg.Interpreter)
	}
	return envsync.Inspect(ctx, s.cfg.Interpreter)
}

// environment is the marker environment to resolve for. An explicit
// target Python makes the interpreter optional.
func (s *session) environment(ctx context.Context) (pep508.Environment, error) {
	in, err := s.interpreter(ctx)
	if err != nil {
		if s.cfg.Target.Python == "" {
			return pep508.Environment{}, err
		}
		s.logger.Debug("interpreter unavailable, using target python", "python", s.cfg.Target.Python, "err", err)
		return s.cfg.Environment(pep508.Environment{}), nil
	}
	return s.cfg.Environment(in.Env), nil
}

// installer returns what carries out sync actions for in.
func (s *session) installer(in *envsync.Interpreter) envsync.Installer {
	if s.cli.installer != nil {
		return s.cli.installer(in)
	}
	return &envsync.Pip{Python: in.Path, Logger: s.logger}
}

// relPath shortens path relative to the working directory for display.
func relPath(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	if rel, err := filepath.Rel(wd, path); err == nil && len(rel) < len(path) {
		return rel
	}
	return path
}
