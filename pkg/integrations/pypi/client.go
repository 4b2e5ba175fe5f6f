package pypi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/pylock/pkg/cache"
	"github.com/matzehuels/pylock/pkg/integrations"
)

// DefaultIndexURL is the simple index URL of the public Python Package Index.
const DefaultIndexURL = "https://pypi.org/simple"

// ErrDigestMismatch is returned by [Client.Download] when the downloaded
// bytes do not match the sha256 digest published by the index.
var ErrDigestMismatch = errors.New("digest mismatch")

// Project lists every release of one project on an index.
type Project struct {
	Name     string    `json:"name"`
	Releases []Release `json:"releases"`
}

// Release is one published version and its distribution files.
type Release struct {
	Version string `json:"version"`
	Files   []File `json:"files"`
}

// Yanked reports whether every file of the release was yanked (PEP 592).
func (r Release) Yanked() bool {
	if len(r.Files) == 0 {
		return false
	}
	for _, f := range r.Files {
		if !f.Yanked {
			return false
		}
	}
	return true
}

// RequiresPython returns the first Requires-Python declared by a file.
func (r Release) RequiresPython() string {
	for _, f := range r.Files {
		if f.RequiresPython != "" {
			return f.RequiresPython
		}
	}
	return ""
}

// File is a single wheel or sdist.
type File struct {
	Filename       string            `json:"filename"`
	URL            string            `json:"url"`
	Hashes         map[string]string `json:"hashes,omitempty"`
	RequiresPython string            `json:"requires_python,omitempty"`
	Yanked         bool              `json:"yanked,omitempty"`
	PackageType    string            `json:"packagetype,omitempty"`
	Size           int64             `json:"size,omitempty"`
}

// IsWheel reports whether the file is a built wheel.
func (f File) IsWheel() bool { return strings.HasSuffix(f.Filename, ".whl") }

// SHA256 returns the sha256 digest published for the file, or "".
func (f File) SHA256() string { return f.Hashes["sha256"] }

// ReleaseMetadata is the per-version view of the JSON API.
type ReleaseMetadata struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	// RequiresDist is nil when the index did not extract dependency
	// metadata for this release, which differs from an empty list.
	RequiresDist   []string `json:"requires_dist"`
	RequiresPython string   `json:"requires_python,omitempty"`
	Files          []File   `json:"files"`
}

// Client provides access to a package index that serves the PyPI JSON API.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a client for the index at indexURL. Simple index URLs
// ("https://pypi.org/simple") are mapped onto their JSON API root. Project
// listings are cached for cacheTTL; per-release metadata never expires.
func NewClient(backend cache.Cache, indexURL string, cacheTTL time.Duration, headers map[string]string, opts ...integrations.ClientOption) *Client {
	base := JSONBase(indexURL)
	return &Client{
		Client:  integrations.NewClient(backend, base, cacheTTL, headers, opts...),
		baseURL: base,
	}
}

// JSONBase returns the JSON API root for a simple index URL.
func JSONBase(indexURL string) string {
	if indexURL == "" {
		indexURL = DefaultIndexURL
	}
	u := strings.TrimRight(indexURL, "/")
	if strings.HasSuffix(u, "/simple") {
		u = strings.TrimSuffix(u, "/simple") + "/pypi"
	}
	return u
}

// BaseURL returns the JSON API root this client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchProject lists all releases of a project.
//
// The name is normalized per PEP 503. If refresh is true the cached listing
// is ignored. Returns an error wrapping [integrations.ErrNotFound] when the
// index does not know the project.
func (c *Client) FetchProject(ctx context.Context, name string, refresh bool) (*Project, error) {
	name = integrations.NormalizePkgName(name)
	var p Project
	err := c.Cached(ctx, "project:"+name, refresh, &p, func() error {
		return c.fetchProject(ctx, name, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) fetchProject(ctx context.Context, name string, p *Project) error {
	var data projectResponse
	if err := c.Get(ctx, fmt.Sprintf("%s/%s/json", c.baseURL, integrations.URLEncode(name)), &data); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: project %s on %s", err, name, c.baseURL)
		}
		return err
	}
	*p = Project{Name: integrations.NormalizePkgName(data.Info.Name)}
	if p.Name == "" {
		p.Name = name
	}
	for version, files := range data.Releases {
		p.Releases = append(p.Releases, Release{Version: version, Files: convertFiles(files)})
	}
	return nil
}

// FetchRelease returns the metadata of one release. Releases are immutable
// upstream so results are cached without expiry.
func (c *Client) FetchRelease(ctx context.Context, name, version string) (*ReleaseMetadata, error) {
	name = integrations.NormalizePkgName(name)
	var m ReleaseMetadata
	err := c.CachedImmutable(ctx, "release:"+name+"=="+version, &m, func() error {
		return c.fetchRelease(ctx, name, version, &m)
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) fetchRelease(ctx context.Context, name, version string, m *ReleaseMetadata) error {
	var data releaseResponse
	url := fmt.Sprintf("%s/%s/%s/json", c.baseURL, integrations.URLEncode(name), integrations.URLEncode(version))
	if err := c.Get(ctx, url, &data); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: %s %s on %s", err, name, version, c.baseURL)
		}
		return err
	}
	*m = ReleaseMetadata{
		Name:           integrations.NormalizePkgName(data.Info.Name),
		Version:        data.Info.Version,
		RequiresDist:   data.Info.RequiresDist,
		RequiresPython: data.Info.RequiresPython,
		Files:          convertFiles(data.URLs),
	}
	return nil
}

// FetchCoreMetadata downloads the PEP 658 metadata file published next to a
// distribution file. Returns an error wrapping [integrations.ErrNotFound] if
// the index does not serve one.
func (c *Client) FetchCoreMetadata(ctx context.Context, f File) (string, error) {
	var text string
	err := c.CachedImmutable(ctx, "core-metadata:"+f.URL, &text, func() error {
		var err error
		text, err = c.GetText(ctx, f.URL+".metadata")
		return err
	})
	return text, err
}

// Download fetches a distribution file and verifies its sha256 digest when
// the index published one. Downloads are not cached.
func (c *Client) Download(ctx context.Context, f File) ([]byte, error) {
	var data []byte
	err := c.Retry(ctx, func() error {
		var err error
		data, err = c.GetBytes(ctx, f.URL)
		return err
	})
	if err != nil {
		return nil, err
	}
	if want := f.SHA256(); want != "" {
		sum := sha256.Sum256(data)
		if got := hex.EncodeToString(sum[:]); got != want {
			return nil, fmt.Errorf("%w: %s: got %s, want %s", ErrDigestMismatch, f.Filename, got, want)
		}
	}
	return data, nil
}

func convertFiles(in []apiFile) []File {
	out := make([]File, 0, len(in))
	for _, f := range in {
		hashes := make(map[string]string, len(f.Digests))
		for algo, d := range f.Digests {
			if d != "" {
				hashes[algo] = d
			}
		}
		out = append(out, File{
			Filename:       f.Filename,
			URL:            f.URL,
			Hashes:         hashes,
			RequiresPython: f.RequiresPython,
			Yanked:         f.Yanked,
			PackageType:    f.PackageType,
			Size:           f.Size,
		})
	}
	return out
}

type projectResponse struct {
	Info     apiInfo              `json:"info"`
	Releases map[string][]apiFile `json:"releases"`
}

type releaseResponse struct {
	Info apiInfo   `json:"info"`
	URLs []apiFile `json:"urls"`
}

type apiInfo struct {
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	RequiresDist   []string `json:"requires_dist"`
	RequiresPython string   `json:"requires_python"`
}

type apiFile struct {
	Filename       string            `json:"filename"`
	URL            string            `json:"url"`
	Digests        map[string]string `json:"digests"`
	RequiresPython string            `json:"requires_python"`
	Yanked         bool              `json:"yanked"`
	PackageType    string            `json:"packagetype"`
	Size           int64             `json:"size"`
}
