// Package cli implements the pylock command-line interface.
//
// The commands are:
//   - lock: resolve pyproject.toml into pylock.lock
//   - sync: make an environment match the lock
//   - add, remove: edit pyproject.toml and re-lock
//   - graph: draw the locked graph (DOT, JSON, SVG, PNG, PDF)
//   - export: write requirements.txt with hashes
//   - check: report whether the lock is current
//   - cache: manage the metadata cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging, which also
// installs observability hooks that log every pin, backjump and index
// fetch. Loggers are passed through context.Context.
//
// # Exit codes
//
// [ExitCode] maps error codes to process exit codes; see its table.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pylock/pkg/observability"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
// It is safe for sequential use by a single goroutine; concurrent calls to done will race.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Resolved 42 packages (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger returns a new context with the given logger attached.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx.
// If no logger is attached, it returns log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// loggingHooks reports resolver and fetch events at debug level.
type loggingHooks struct {
	logger *log.Logger
}

func installLoggingHooks(l *log.Logger) {
	h := loggingHooks{logger: l}
	observability.SetResolverHooks(h)
	observability.SetFetchHooks(h)
	observability.SetCacheHooks(h)
	observability.SetHTTPHooks(h)
}

func (h loggingHooks) OnResolveStart(_ context.Context, roots int) {
	h.logger.Debug("resolving", "roots", roots)
}

func (h loggingHooks) OnPin(_ context.Context, name, version string, depth int) {
	h.logger.Debug("pin", "name", name, "version", version, "depth", depth)
}

func (h loggingHooks) OnBackjump(_ context.Context, from, to int, culprits []string) {
	h.logger.Debug("backjump", "from", from, "to", to, "culprits", culprits)
}

func (h loggingHooks) OnResolveComplete(_ context.Context, pinned, rounds int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("resolution failed", "rounds", rounds, "elapsed", d.Round(time.Millisecond))
		return
	}
	h.logger.Debug("resolution complete", "pinned", pinned, "rounds", rounds, "elapsed", d.Round(time.Millisecond))
}

func (h loggingHooks) OnFetchStart(_ context.Context, kind, name string) {
	h.logger.Debug("fetch", "kind", kind, "name", name)
}

func (h loggingHooks) OnFetchComplete(_ context.Context, kind, name string, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("fetch failed", "kind", kind, "name", name, "err", err)
		return
	}
	h.logger.Debug("fetched", "kind", kind, "name", name, "elapsed", d.Round(time.Millisecond))
}

func (h loggingHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h loggingHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h loggingHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h loggingHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("request", "method", method, "host", host, "path", path)
}

func (h loggingHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debug("response", "method", method, "host", host, "path", path, "status", status, "elapsed", d.Round(time.Millisecond))
}

func (h loggingHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Debug("request failed", "method", method, "host", host, "path", path, "err", err)
}

var (
	_ observability.ResolverHooks = loggingHooks{}
	_ observability.FetchHooks    = loggingHooks{}
	_ observability.CacheHooks    = loggingHooks{}
	_ observability.HTTPHooks     = loggingHooks{}
)
