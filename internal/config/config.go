// Package config loads pylock settings.
//
// Settings are layered; later layers override earlier ones key by key:
//
//  1. built-in defaults ([Default])
//  2. the user file, $XDG_CONFIG_HOME/pylock/config.toml
//  3. the project file, .pylock.toml next to pyproject.toml
//  4. PYLOCK_* environment variables
//
// Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	pkgerrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/lock"
	"github.com/matzehuels/pylock/pkg/pep508"
	"github.com/matzehuels/pylock/pkg/provider"
	"github.com/matzehuels/pylock/pkg/resolve"
)

const (
	appName = "pylock"

	// ProjectFile is the per-project settings file name.
	ProjectFile = ".pylock.toml"

	// EnvPrefix prefixes every environment variable.
	EnvPrefix = "PYLOCK_"
)

// Cache backends.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Config holds every setting.
type Config struct {
	IndexURL       string        `toml:"index_url" env:"INDEX_URL"`
	ExtraIndexURLs []string      `toml:"extra_index_urls" env:"EXTRA_INDEX_URLS" envSeparator:","`
	Concurrency    int           `toml:"concurrency" env:"CONCURRENCY"`
	Timeout        time.Duration `toml:"timeout" env:"TIMEOUT"`
	RetryAttempts  int           `toml:"retry_attempts" env:"RETRY_ATTEMPTS"`
	ListingTTL     time.Duration `toml:"listing_ttl" env:"LISTING_TTL"`
	MaxRounds      int           `toml:"max_rounds" env:"MAX_ROUNDS"`
	LockFile       string        `toml:"lock_file" env:"LOCK_FILE"`
	Strategy       string        `toml:"strategy" env:"STRATEGY"`
	Interpreter    string        `toml:"interpreter" env:"INTERPRETER"`
	BuildHook      []string      `toml:"build_hook" env:"BUILD_HOOK" envSeparator:" "`

	Cache  CacheConfig  `toml:"cache" envPrefix:"CACHE_"`
	Target TargetConfig `toml:"target" envPrefix:"TARGET_"`
}

// CacheConfig selects where index responses and metadata are kept.
type CacheConfig struct {
	Backend  string `toml:"backend" env:"BACKEND"`
	Dir      string `toml:"dir" env:"DIR"`
	RedisURL string `toml:"redis_url" env:"REDIS_URL"`
}

// TargetConfig describes the environment to resolve for. Empty fields are
// taken from the interpreter or the host.
type TargetConfig struct {
	Python         string `toml:"python" env:"PYTHON"`
	Platform       string `toml:"platform" env:"PLATFORM"`
	Machine        string `toml:"machine" env:"MACHINE"`
	Implementation string `toml:"implementation" env:"IMPLEMENTATION"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		IndexURL:      provider.DefaultSource.URL,
		Concurrency:   provider.DefaultConcurrency,
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		ListingTTL:    time.Hour,
		MaxRounds:     resolve.DefaultMaxRounds,
		LockFile:      lock.DefaultFilename,
		Strategy:      lock.StrategyAll,
		Interpreter:   "python3",
		Cache:         CacheConfig{Backend: CacheFile},
	}
}

// Options controls where [Load] looks.
type Options struct {
	UserFile   string            // defaults to UserFile()
	ProjectDir string            // directory holding .pylock.toml; skipped when empty
	Environ    map[string]string // defaults to the process environment
}

// Load layers the configuration sources described in the package doc.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	userFile := opts.UserFile
	if userFile == "" {
		userFile, _ = UserFile()
	}
	if userFile != "" {
		if err := cfg.mergeFile(userFile); err != nil {
			return nil, err
		}
	}
	if opts.ProjectDir != "" {
		if err := cfg.mergeFile(filepath.Join(opts.ProjectDir, ProjectFile)); err != nil {
			return nil, err
		}
	}

	envOpts := env.Options{Prefix: EnvPrefix, Environment: opts.Environ}
	if err := env.ParseWithOptions(cfg, envOpts); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfig, err, "environment")
	}

	if cfg.Cache.Dir == "" {
		dir, err := CacheDir()
		if err == nil {
			cfg.Cache.Dir = dir
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile decodes path over c. A missing file is not an error; unknown
// keys are.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfig, err, "read %s", path)
	}
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfig, err, "%s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch {
	case c.Concurrency < 1:
		return pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "concurrency must be at least 1, got %d", c.Concurrency)
	case c.RetryAttempts < 1:
		return pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "retry_attempts must be at least 1, got %d", c.RetryAttempts)
	case c.Timeout <= 0:
		return pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "timeout must be positive")
	case c.MaxRounds < 1:
		return pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "max_rounds must be at least 1, got %d", c.MaxRounds)
	case !slices.Contains([]string{lock.StrategyAll, lock.StrategyReuse, lock.StrategyEager}, c.Strategy):
		return pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "strategy must be all, reuse or eager, got %q", c.Strategy)
	case !slices.Contains([]string{CacheFile, CacheRedis, CacheNone}, c.Cache.Backend):
		return pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "cache.backend must be file, redis or none, got %q", c.Cache.Backend)
	case c.Cache.Backend == CacheRedis && c.Cache.RedisURL == "":
		return pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "cache.redis_url is required for the redis backend")
	}
	if err := pkgerrors.ValidateFilename(c.LockFile); err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfig, err, "lock_file %q", c.LockFile)
	}
	for _, u := range c.ExtraIndexURLs {
		if err := pkgerrors.ValidateURL(u); err != nil {
			return pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfig, err, "extra_index_urls: %q", u)
		}
	}
	if c.IndexURL != "" {
		if err := pkgerrors.ValidateURL(c.IndexURL); err != nil {
			return pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfig, err, "index_url: %q", c.IndexURL)
		}
	}
	return nil
}

// Sources applies the configured index URLs to the project's sources: the
// index URL replaces the "pypi" source and extra URLs are appended.
func (c *Config) Sources(project []provider.Source) []provider.Source {
	out := slices.Clone(project)
	if len(out) == 0 {
		out = []provider.Source{provider.DefaultSource}
	}
	for i := range out {
		if out[i].Name == provider.DefaultSource.Name && c.IndexURL != "" {
			out[i].URL = c.IndexURL
		}
	}
	for i, u := range c.ExtraIndexURLs {
		out = append(out, provider.Source{Name: "extra-" + strconv.Itoa(i+1), URL: u})
	}
	return out
}

// Environment returns the marker environment to resolve for: detected
// (usually read from the interpreter) with the target overrides applied.
// Target.Python replaces the detected interpreter entirely.
func (c *Config) Environment(detected pep508.Environment) pep508.Environment {
	e := detected
	if c.Target.Python != "" {
		e = pep508.ForPython(c.Target.Python)
	}
	switch c.Target.Platform {
	case "":
	case "win32", "windows":
		e.OSName, e.SysPlatform, e.PlatformSystem = "nt", "win32", "Windows"
	case "darwin", "macos":
		e.OSName, e.SysPlatform, e.PlatformSystem = "posix", "darwin", "Darwin"
	case "linux":
		e.OSName, e.SysPlatform, e.PlatformSystem = "posix", "linux", "Linux"
	default:
		e.SysPlatform = c.Target.Platform
	}
	if c.Target.Machine != "" {
		e.PlatformMachine = c.Target.Machine
	}
	switch strings.ToLower(c.Target.Implementation) {
	case "":
	case "pypy":
		e.ImplementationName, e.PlatformPythonImplementation = "pypy", "PyPy"
	case "cpython":
		e.ImplementationName, e.PlatformPythonImplementation = "cpython", "CPython"
	default:
		e.ImplementationName = strings.ToLower(c.Target.Implementation)
		e.PlatformPythonImplementation = c.Target.Implementation
	}
	return e
}

// UserFile returns the user settings path using the XDG convention
// (~/.config/pylock/config.toml).
func UserFile() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// CacheDir returns the default cache directory using the XDG convention
// (~/.cache/pylock).
func CacheDir() (string, error) {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
