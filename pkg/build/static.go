package build

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"deps.dev/util/pypi"
)

// Static reads the metadata an sdist already carries in PKG-INFO. It does
// not execute any code.
type Static struct{}

// Metadata implements Backend.
func (Static) Metadata(ctx context.Context, a Artifact) (*Metadata, error) {
	if a.Path != "" {
		info, err := os.Stat(a.Path)
		if err != nil {
			return nil, &Error{Artifact: a.String(), Err: err}
		}
		if info.IsDir() {
			return staticTree(ctx, a)
		}
		data, err := os.ReadFile(a.Path)
		if err != nil {
			return nil, &Error{Artifact: a.String(), Err: err}
		}
		a.Data = data
		if a.Filename == "" {
			a.Filename = filepath.Base(a.Path)
		}
	}

	md, err := pypi.SdistMetadata(ctx, a.Filename, bytes.NewReader(a.Data))
	if err != nil {
		var unsupported pypi.UnsupportedError
		if errors.As(err, &unsupported) {
			return nil, ErrUnsupported
		}
		return nil, &Error{Artifact: a.String(), Err: err}
	}
	if md.Name == "" {
		return nil, ErrUnsupported
	}
	out, err := FromCoreMetadata(*md, "")
	if err != nil {
		return nil, &Error{Artifact: a.String(), Err: err}
	}
	return out, nil
}

func staticTree(ctx context.Context, a Artifact) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(a.Path, "PKG-INFO"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrUnsupported
	}
	if err != nil {
		return nil, &Error{Artifact: a.String(), Err: err}
	}
	md, err := ParseCoreMetadata(ctx, string(data))
	if err != nil {
		return nil, &Error{Artifact: a.String(), Err: err}
	}
	return md, nil
}

// headerValue returns the first value of an RFC 822 style header in the
// metadata head, which the core metadata parser does not expose for
// Requires-Python.
func headerValue(text, name string) string {
	sc := bufio.NewScanner(strings.NewReader(text))
	prefix := strings.ToLower(name) + ":"
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			break
		}
		if strings.HasPrefix(strings.ToLower(line), prefix) {
			return strings.TrimSpace(line[len(prefix):])
		}
	}
	return ""
}
