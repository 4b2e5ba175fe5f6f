package build

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Command runs an external build hook. The artifact path is appended to
// Args; the hook must print the METADATA text of the built distribution on
// standard output and exit zero.
type Command struct {
	Path   string
	Args   []string
	Dir    string
	Env    []string
	Logger *log.Logger
}

// Metadata implements Backend.
func (c *Command) Metadata(ctx context.Context, a Artifact) (*Metadata, error) {
	if c.Path == "" {
		return nil, ErrUnsupported
	}
	path := a.Path
	if path == "" {
		tmp, err := os.MkdirTemp("", "pylock-build-*")
		if err != nil {
			return nil, &Error{Artifact: a.String(), Err: err}
		}
		defer os.RemoveAll(tmp)
		path = filepath.Join(tmp, filepath.Base(a.Filename))
		if err := os.WriteFile(path, a.Data, 0o644); err != nil {
			return nil, &Error{Artifact: a.String(), Err: err}
		}
	}

	cmd := exec.CommandContext(ctx, c.Path, append(append([]string{}, c.Args...), path)...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if c.Logger != nil {
		c.Logger.Debug("running build hook", "cmd", c.Path, "artifact", a.String())
	}
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, &Error{Artifact: a.String(), Err: fmt.Errorf("%s: %s", filepath.Base(c.Path), msg)}
	}
	md, err := ParseCoreMetadata(ctx, stdout.String())
	if err != nil {
		return nil, &Error{Artifact: a.String(), Err: err}
	}
	return md, nil
}
