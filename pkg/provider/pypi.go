package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"deps.dev/util/pypi"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/pylock/pkg/build"
	"github.com/matzehuels/pylock/pkg/cache"
	"github.com/matzehuels/pylock/pkg/integrations"
	pypiclient "github.com/matzehuels/pylock/pkg/integrations/pypi"
	"github.com/matzehuels/pylock/pkg/observability"
	"github.com/matzehuels/pylock/pkg/pep440"
	"github.com/matzehuels/pylock/pkg/pep508"
)

// DefaultConcurrency bounds parallel index requests.
const DefaultConcurrency = 8

// Source is a configured package index.
type Source struct {
	Name     string `toml:"name"`
	URL      string `toml:"url"`
	Username string `toml:"username,omitempty"`
	Password string `toml:"password,omitempty"`
}

// DefaultSource is the public Python Package Index.
var DefaultSource = Source{Name: "pypi", URL: pypiclient.DefaultIndexURL}

type options struct {
	logger      *log.Logger
	backend     build.Backend
	concurrency int
	listingTTL  time.Duration
	attempts    int
	retryDelay  time.Duration
	httpClient  *http.Client
	refresh     bool
	parser      *pep508.Parser
}

// Option configures a [PyPI] provider.
type Option func(*options)

// WithLogger sets the logger for fetch progress at debug level.
func WithLogger(l *log.Logger) Option { return func(o *options) { o.logger = l } }

// WithBuildBackend sets the backend used for releases that only ship an sdist.
func WithBuildBackend(b build.Backend) Option { return func(o *options) { o.backend = b } }

// WithConcurrency bounds parallel prefetches.
func WithConcurrency(n int) Option { return func(o *options) { o.concurrency = n } }

// WithListingTTL sets how long version listings stay cached.
func WithListingTTL(d time.Duration) Option { return func(o *options) { o.listingTTL = d } }

// WithRetry sets the attempt count and first delay for transient failures.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(o *options) { o.attempts, o.retryDelay = attempts, delay }
}

// WithHTTPClient replaces the HTTP client of every index.
func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.httpClient = c } }

// WithRefresh ignores cached version listings.
func WithRefresh(refresh bool) Option { return func(o *options) { o.refresh = refresh } }

// WithParser shares a requirement parser across providers. By default each
// provider builds its own.
func WithParser(p *pep508.Parser) Option { return func(o *options) { o.parser = p } }

type index struct {
	name   string
	client *pypiclient.Client
}

// PyPI is the production [Provider]. Results are memoized for the lifetime
// of the value, which is one resolution run; concurrent requests for the
// same key share one fetch.
type PyPI struct {
	indexes     []index
	store       cache.Cache
	backend     build.Backend
	logger      *log.Logger
	concurrency int
	refresh     bool
	parser      *pep508.Parser

	flight   singleflight.Group
	mu       sync.Mutex
	versions map[string][]Release
	failed   map[string]error
	requires map[string][]pep508.Requirement
}

// NewPyPI creates a provider over sources, tried in order. With no sources
// the public index is used. store persists listings and release metadata
// between runs.
func NewPyPI(store cache.Cache, sources []Source, opts ...Option) *PyPI {
	o := options{
		backend:     build.Static{},
		concurrency: DefaultConcurrency,
		listingTTL:  time.Hour,
		attempts:    3,
		retryDelay:  time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if store == nil {
		store = cache.NewNullCache()
	}
	if len(sources) == 0 {
		sources = []Source{DefaultSource}
	}
	if o.parser == nil {
		o.parser = pep508.NewParser(0)
	}

	p := &PyPI{
		store:       store,
		backend:     o.backend,
		logger:      o.logger,
		concurrency: max(o.concurrency, 1),
		refresh:     o.refresh,
		parser:      o.parser,
		versions:    map[string][]Release{},
		failed:      map[string]error{},
		requires:    map[string][]pep508.Requirement{},
	}
	for _, s := range sources {
		copts := []integrations.ClientOption{
			integrations.WithRetry(o.attempts, o.retryDelay),
			integrations.WithKeyer(cache.NewScopedKeyer(nil, s.Name+":")),
		}
		if o.httpClient != nil {
			copts = append(copts, integrations.WithHTTPClient(o.httpClient))
		}
		if o.logger != nil {
			copts = append(copts, integrations.WithLogger(o.logger))
		}
		headers := integrations.BasicAuthHeader(s.Username, s.Password)
		p.indexes = append(p.indexes, index{
			name:   s.Name,
			client: pypiclient.NewClient(store, s.URL, o.listingTTL, headers, copts...),
		})
	}
	return p
}

// Versions implements Provider.
func (p *PyPI) Versions(ctx context.Context, name string) ([]Release, error) {
	name = pep508.CanonicalName(name)
	p.mu.Lock()
	rs, ok := p.versions[name]
	ferr := p.failed[name]
	p.mu.Unlock()
	if ok {
		return slices.Clone(rs), nil
	}
	if ferr != nil {
		return nil, ferr
	}

	v, err, _ := p.flight.Do("versions:"+name, func() (any, error) {
		hooks := observability.Fetch()
		hooks.OnFetchStart(ctx, "versions", name)
		start := time.Now()
		rs, err := p.fetchVersions(ctx, name)
		hooks.OnFetchComplete(ctx, "versions", name, time.Since(start), err)

		p.mu.Lock()
		defer p.mu.Unlock()
		if err != nil {
			if ctx.Err() == nil {
				p.failed[name] = err
			}
			return nil, err
		}
		p.versions[name] = rs
		return rs, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]Release)), nil
}

func (p *PyPI) fetchVersions(ctx context.Context, name string) ([]Release, error) {
	var lastErr error
	for _, ix := range p.indexes {
		proj, err := ix.client.FetchProject(ctx, name, p.refresh)
		if errors.Is(err, integrations.ErrNotFound) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			p.debug("index failed", "index", ix.name, "name", name, "err", err)
			continue
		}
		rs := p.convert(name, ix.name, proj)
		p.debug("fetched versions", "name", name, "index", ix.name, "count", len(rs))
		return rs, nil
	}
	if lastErr == nil {
		lastErr = ErrNotFound
	}
	return nil, Unavailable(name, lastErr)
}

func (p *PyPI) convert(name, source string, proj *pypiclient.Project) []Release {
	out := make([]Release, 0, len(proj.Releases))
	for _, r := range proj.Releases {
		if len(r.Files) == 0 {
			continue
		}
		v, err := pep440.Parse(r.Version)
		if err != nil {
			p.debug("skipping invalid version", "name", name, "version", r.Version)
			continue
		}
		rel := Release{
			Name:           name,
			Version:        v,
			RequiresPython: r.RequiresPython(),
			Yanked:         r.Yanked(),
			Source:         source,
			raw:            r.Version,
		}
		for _, f := range r.Files {
			file := File{Name: f.Filename, URL: f.URL}
			if h := f.SHA256(); h != "" {
				file.Hash = "sha256:" + h
			}
			rel.Files = append(rel.Files, file)
		}
		slices.SortFunc(rel.Files, func(a, b File) int { return strings.Compare(a.Name, b.Name) })
		out = append(out, rel)
	}
	slices.SortStableFunc(out, func(a, b Release) int {
		if c := b.Version.Compare(a.Version); c != 0 {
			return c
		}
		return strings.Compare(a.raw, b.raw)
	})
	return slices.CompactFunc(out, func(a, b Release) bool { return a.Version.Equal(b.Version) })
}

// Requirements implements Provider.
func (p *PyPI) Requirements(ctx context.Context, name string, version pep440.Version, extras []string, env pep508.Environment) ([]pep508.Requirement, error) {
	all, err := p.allRequirements(ctx, pep508.CanonicalName(name), version)
	if err != nil {
		return nil, err
	}
	return pep508.Filter(all, env, extras), nil
}

func (p *PyPI) allRequirements(ctx context.Context, name string, version pep440.Version) ([]pep508.Requirement, error) {
	key := name + "==" + version.String()
	p.mu.Lock()
	reqs, ok := p.requires[key]
	p.mu.Unlock()
	if ok {
		return reqs, nil
	}

	v, err, _ := p.flight.Do("requires:"+key, func() (any, error) {
		hooks := observability.Fetch()
		hooks.OnFetchStart(ctx, "metadata", key)
		start := time.Now()
		reqs, err := p.fetchRequirements(ctx, name, version)
		hooks.OnFetchComplete(ctx, "metadata", key, time.Since(start), err)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.requires[key] = reqs
		p.mu.Unlock()
		return reqs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]pep508.Requirement), nil
}

func (p *PyPI) fetchRequirements(ctx context.Context, name string, version pep440.Version) ([]pep508.Requirement, error) {
	rel, ix, err := p.release(ctx, name, version)
	if err != nil {
		return nil, err
	}

	ckey := ix.client.Keyer().MetadataKey(name, version.String())
	texts, hit, err := cache.GetJSON[[]string](ctx, p.store, ckey)
	if err != nil {
		p.debug("metadata cache read failed", "key", ckey, "err", err)
	}
	if hit {
		observability.Cache().OnCacheHit(ctx, "metadata")
	} else {
		observability.Cache().OnCacheMiss(ctx, "metadata")
		texts, err = p.fetchRequirementTexts(ctx, ix, rel)
		if err != nil {
			return nil, err
		}
		if err := cache.SetJSON(ctx, p.store, ckey, texts, 0); err != nil {
			p.debug("metadata cache write failed", "key", ckey, "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "metadata", len(texts))
		}
	}

	reqs := make([]pep508.Requirement, 0, len(texts))
	for _, t := range texts {
		r, err := p.parser.Requirement(t)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", name, version, err)
		}
		reqs = append(reqs, r)
	}
	return reqs, nil
}

// release finds the listing entry for name==version and the index that
// served it.
func (p *PyPI) release(ctx context.Context, name string, version pep440.Version) (Release, index, error) {
	rs, err := p.Versions(ctx, name)
	if err != nil {
		return Release{}, index{}, err
	}
	for _, r := range rs {
		if !r.Version.Equal(version) {
			continue
		}
		for _, ix := range p.indexes {
			if ix.name == r.Source {
				return r, ix, nil
			}
		}
	}
	return Release{}, index{}, Unavailable(name+" "+version.String(), ErrNotFound)
}

// fetchRequirementTexts tries, in order: the JSON API's requires_dist, the
// PEP 658 metadata file of a wheel, the wheel itself, and finally the build
// backend on the sdist.
func (p *PyPI) fetchRequirementTexts(ctx context.Context, ix index, rel Release) ([]string, error) {
	meta, err := ix.client.FetchRelease(ctx, rel.Name, rel.raw)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, Unavailable(rel.Name+" "+rel.raw, err)
	}
	if meta.RequiresDist != nil {
		return meta.RequiresDist, nil
	}

	var wheel, sdist *pypiclient.File
	for i := range meta.Files {
		f := &meta.Files[i]
		switch {
		case f.IsWheel() && wheel == nil:
			wheel = f
		case !f.IsWheel() && sdist == nil:
			sdist = f
		}
	}

	if wheel != nil {
		texts, err := p.wheelRequirements(ctx, ix, *wheel)
		if err == nil {
			return texts, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.debug("wheel metadata failed", "file", wheel.Filename, "err", err)
	}
	if sdist != nil {
		data, err := ix.client.Download(ctx, *sdist)
		if err != nil {
			return nil, Unavailable(rel.Name+" "+rel.raw, err)
		}
		md, err := p.backend.Metadata(ctx, build.Artifact{Filename: sdist.Filename, Data: data})
		if err != nil {
			return nil, err
		}
		texts := make([]string, 0, len(md.Requires))
		for _, r := range md.Requires {
			texts = append(texts, r.String())
		}
		return texts, nil
	}
	if wheel == nil {
		p.debug("release lists no files", "name", rel.Name, "version", rel.raw)
	}
	return nil, Unavailable(rel.Name+" "+rel.raw, errors.New("no usable metadata"))
}

func (p *PyPI) wheelRequirements(ctx context.Context, ix index, f pypiclient.File) ([]string, error) {
	text, err := ix.client.FetchCoreMetadata(ctx, f)
	var md pypi.Metadata
	switch {
	case err == nil:
		md, err = pypi.ParseMetadata(ctx, text)
		if err != nil {
			return nil, err
		}
	case errors.Is(err, integrations.ErrNotFound):
		data, err := ix.client.Download(ctx, f)
		if err != nil {
			return nil, err
		}
		wmd, err := pypi.WheelMetadata(ctx, bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, err
		}
		md = *wmd
	default:
		return nil, err
	}

	texts := make([]string, 0, len(md.Dependencies))
	for _, d := range md.Dependencies {
		r, err := pep508.FromDependency(d)
		if err != nil {
			return nil, err
		}
		texts = append(texts, r.String())
	}
	return texts, nil
}

// Prefetch implements Prefetcher. Errors are remembered and reported when
// the resolver asks for the name.
func (p *PyPI) Prefetch(ctx context.Context, names []string) {
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for _, name := range names {
		g.Go(func() error {
			_, _ = p.Versions(ctx, name)
			return nil
		})
	}
	_ = g.Wait()
}

func (p *PyPI) debug(msg string, kv ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, kv...)
	}
}

var (
	_ Provider   = (*PyPI)(nil)
	_ Prefetcher = (*PyPI)(nil)
)
