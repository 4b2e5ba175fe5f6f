package envsync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	pkgerrors "github.com/matzehuels/pylock/pkg/errors"
)

// Installer carries out a single action.
type Installer interface {
	Apply(ctx context.Context, a Action) error
}

// Step records the outcome of one action.
type Step struct {
	Action   Action
	Err      error
	Duration time.Duration
}

// OK reports whether the step succeeded.
func (s Step) OK() bool { return s.Err == nil }

// Report is the outcome of [Execute]: every attempted step in order.
type Report struct {
	Steps   []Step
	Skipped []Action // not attempted after a failure
}

// Failed returns the failing step, if any.
func (r Report) Failed() (Step, bool) {
	for _, s := range r.Steps {
		if !s.OK() {
			return s, true
		}
	}
	return Step{}, false
}

// Execute applies actions in order and stops at the first failure. The
// returned error wraps the failing action's error with
// [errors.ErrCodeInstallFailed].
func Execute(ctx context.Context, inst Installer, actions []Action, logger *log.Logger) (Report, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	var rep Report
	for i, a := range actions {
		if err := ctx.Err(); err != nil {
			rep.Skipped = actions[i:]
			return rep, err
		}
		start := time.Now()
		err := inst.Apply(ctx, a)
		rep.Steps = append(rep.Steps, Step{Action: a, Err: err, Duration: time.Since(start)})
		if err != nil {
			rep.Skipped = actions[i+1:]
			logger.Debug("action failed", "action", a, "err", err)
			return rep, pkgerrors.Wrap(pkgerrors.ErrCodeInstallFailed, err, "%s", a)
		}
		logger.Debug("action done", "action", a, "elapsed", time.Since(start))
	}
	return rep, nil
}

// Pip installs and removes distributions by running pip with the target
// interpreter. Installs never pull in dependencies; the lock already
// names every package.
type Pip struct {
	Python string   // interpreter path; "python3" when empty
	Args   []string // extra arguments for pip install, e.g. an index URL
	Logger *log.Logger
}

// Apply implements Installer.
func (p *Pip) Apply(ctx context.Context, a Action) error {
	switch a.Kind {
	case KindRemove:
		return p.run(ctx, "uninstall", "--yes", a.Name)
	case KindInstall, KindUpgrade:
		spec := a.Name + "==" + a.To.String()
		args := append([]string{"install", "--no-deps", "--disable-pip-version-check"}, p.Args...)
		if hashes := a.Package.Hashes(); len(hashes) > 0 {
			reqs, err := hashedRequirement(spec, hashes)
			if err != nil {
				return err
			}
			defer reqs.cleanup()
			args = append(args, "--require-hashes", "-r", reqs.path)
		} else {
			args = append(args, spec)
		}
		return p.run(ctx, args...)
	}
	return fmt.Errorf("unknown action kind %q", a.Kind)
}

func (p *Pip) run(ctx context.Context, args ...string) error {
	python := p.Python
	if python == "" {
		python = "python3"
	}
	cmd := exec.CommandContext(ctx, python, append([]string{"-m", "pip"}, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if p.Logger != nil {
		p.Logger.Debug("running pip", "args", strings.Join(args, " "))
	}
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("pip %s: %w", args[0], err)
		}
		return fmt.Errorf("pip %s: %w: %s", args[0], err, msg)
	}
	return nil
}

// DryRun logs actions without changing anything.
type DryRun struct {
	W io.Writer
}

// Apply implements Installer.
func (d DryRun) Apply(_ context.Context, a Action) error {
	_, err := fmt.Fprintln(d.W, a)
	return err
}

var (
	_ Installer = (*Pip)(nil)
	_ Installer = DryRun{}
)
