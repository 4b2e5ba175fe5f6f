package envsync

import (
	"os"
	"strings"
)

type tempRequirements struct {
	path string
}

func (t tempRequirements) cleanup() { _ = os.Remove(t.path) }

// hashedRequirement writes a one-line requirements file carrying every
// allowed hash, since pip only accepts --hash inside requirement files.
func hashedRequirement(spec string, hashes []string) (tempRequirements, error) {
	f, err := os.CreateTemp("", "pylock-req-*.txt")
	if err != nil {
		return tempRequirements{}, err
	}
	var b strings.Builder
	b.WriteString(spec)
	for _, h := range hashes {
		b.WriteString(" --hash=" + h)
	}
	b.WriteByte('\n')
	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return tempRequirements{}, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return tempRequirements{}, err
	}
	return tempRequirements{path: f.Name()}, nil
}
