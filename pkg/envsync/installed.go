package envsync

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"deps.dev/util/pypi"

	pkgerrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/pep440"
	"github.com/matzehuels/pylock/pkg/pep508"
)

// Installed maps canonical distribution names to installed versions.
type Installed map[string]pep440.Version

// Protected lists distributions that sync never removes because the
// environment's own tooling depends on them.
var Protected = []string{"pip", "setuptools", "wheel"}

// Without returns a copy of i without the given names.
func (i Installed) Without(names ...string) Installed {
	out := make(Installed, len(i))
	for name, v := range i {
		out[name] = v
	}
	for _, name := range names {
		delete(out, pep508.CanonicalName(name))
	}
	return out
}

func unreadable(cause error, format string, args ...any) error {
	return pkgerrors.Wrap(pkgerrors.ErrCodeEnvironmentUnreadable, cause, format, args...)
}

// ReadInstalled scans the *.dist-info and *.egg-info directories of the
// given site-packages directories. Later directories do not override
// earlier ones, matching import precedence. Any unreadable directory or
// metadata file is reported as [errors.ErrCodeEnvironmentUnreadable].
func ReadInstalled(ctx context.Context, sitePackages ...string) (Installed, error) {
	out := Installed{}
	for _, dir := range sitePackages {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, unreadable(err, "cannot list %s", dir)
		}
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			var metaFile string
			switch {
			case strings.HasSuffix(e.Name(), ".dist-info"):
				metaFile = "METADATA"
			case strings.HasSuffix(e.Name(), ".egg-info") && e.IsDir():
				metaFile = "PKG-INFO"
			default:
				continue
			}
			name, version, err := readDistribution(ctx, filepath.Join(dir, e.Name(), metaFile))
			if errors.Is(err, fs.ErrNotExist) {
				// Half-removed distributions leave empty metadata dirs behind.
				continue
			}
			if err != nil {
				return nil, unreadable(err, "cannot read %s", e.Name())
			}
			if _, seen := out[name]; !seen {
				out[name] = version
			}
		}
	}
	return out, nil
}

func readDistribution(ctx context.Context, path string) (string, pep440.Version, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", pep440.Version{}, err
	}
	md, err := pypi.ParseMetadata(ctx, string(data))
	if err != nil {
		return "", pep440.Version{}, err
	}
	if md.Name == "" {
		return "", pep440.Version{}, errors.New("metadata has no Name")
	}
	v, err := pep440.Parse(md.Version)
	if err != nil {
		return "", pep440.Version{}, err
	}
	return pep508.CanonicalName(md.Name), v, nil
}
