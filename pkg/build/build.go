package build

import (
	"context"
	"errors"
	"fmt"

	"deps.dev/util/pypi"

	pkgerrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/pep508"
)

// ErrUnsupported is returned by a backend that cannot handle an artifact,
// letting [Chain] move on to the next one.
var ErrUnsupported = errors.New("artifact not supported by backend")

// Artifact references a source distribution, either in memory or on disk.
type Artifact struct {
	Filename string // original file name, used to detect the archive format
	Path     string // local file or source tree; empty when Data is set
	Data     []byte
}

func (a Artifact) String() string {
	if a.Path != "" {
		return a.Path
	}
	return a.Filename
}

// Metadata is what a backend reports for an artifact.
type Metadata struct {
	Name           string
	Version        string
	Requires       []pep508.Requirement
	RequiresPython string
}

// Backend produces core metadata for an artifact.
type Backend interface {
	Metadata(ctx context.Context, a Artifact) (*Metadata, error)
}

// Error is a build backend failure.
type Error struct {
	Artifact string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("build backend failed for %s: %v", e.Artifact, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode implements errors.Coder.
func (e *Error) ErrorCode() pkgerrors.Code { return pkgerrors.ErrCodeBuildBackendFailure }

// FromCoreMetadata converts parsed METADATA or PKG-INFO.
func FromCoreMetadata(md pypi.Metadata, requiresPython string) (*Metadata, error) {
	out := &Metadata{
		Name:           pep508.CanonicalName(md.Name),
		Version:        md.Version,
		RequiresPython: requiresPython,
	}
	for _, d := range md.Dependencies {
		r, err := pep508.FromDependency(d)
		if err != nil {
			return nil, err
		}
		out.Requires = append(out.Requires, r)
	}
	return out, nil
}

// ParseCoreMetadata parses the text of a METADATA or PKG-INFO file.
func ParseCoreMetadata(ctx context.Context, text string) (*Metadata, error) {
	md, err := pypi.ParseMetadata(ctx, text)
	if err != nil {
		return nil, err
	}
	return FromCoreMetadata(md, headerValue(text, "Requires-Python"))
}

// Chain tries each backend in order and returns the first success. A
// backend answering [ErrUnsupported] is skipped; any other failure stops
// the chain.
type Chain []Backend

// Metadata implements Backend.
func (c Chain) Metadata(ctx context.Context, a Artifact) (*Metadata, error) {
	for _, b := range c {
		md, err := b.Metadata(ctx, a)
		if err == nil {
			return md, nil
		}
		if !errors.Is(err, ErrUnsupported) {
			return nil, err
		}
	}
	return nil, &Error{Artifact: a.String(), Err: ErrUnsupported}
}
