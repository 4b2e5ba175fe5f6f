package resolve

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pylock/pkg/pep440"
	"github.com/matzehuels/pylock/pkg/pep508"
)

// DefaultMaxRounds bounds the number of search steps.
const DefaultMaxRounds = 100000

// Options configures a resolution.
type Options struct {
	Env              pep508.Environment        // marker environment of the target
	Python           pep440.Version            // interpreter for Requires-Python (default: from Env)
	AllowPrereleases bool                      // consider pre-releases everywhere
	Preferred        map[string]pep440.Version // versions to try first, by canonical name
	MaxRounds        int                       // search step limit (default: 100000)
	Logger           *log.Logger               // debug output (optional)
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = DefaultMaxRounds
	}
	if opts.Python.IsZero() {
		for _, s := range []string{opts.Env.PythonFullVersion, opts.Env.PythonVersion} {
			if v, err := pep440.Parse(s); err == nil {
				opts.Python = v
				break
			}
		}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return opts
}
