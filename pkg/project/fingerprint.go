package project

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"

	"github.com/matzehuels/pylock/pkg/pep508"
)

type fingerprintInput struct {
	Dependencies     []string            `json:"dependencies"`
	Optional         map[string][]string `json:"optional-dependencies"`
	Dev              map[string][]string `json:"dev-dependencies"`
	RequiresPython   string              `json:"requires-python"`
	Sources          []string            `json:"sources"`
	AllowPrereleases bool                `json:"allow-prereleases"`
}

// Fingerprint returns "sha256:" and the hex digest of a canonical form of
// everything that influences resolution. Formatting, comments and the
// order of requirements inside a group do not change it.
func (p *Project) Fingerprint() string {
	in := fingerprintInput{
		Dependencies:     canonical(p.Dependencies),
		Optional:         map[string][]string{},
		Dev:              map[string][]string{},
		RequiresPython:   p.RequiresPython.String(),
		AllowPrereleases: p.AllowPrereleases,
	}
	for g, reqs := range p.Optional {
		in.Optional[g] = canonical(reqs)
	}
	for g, reqs := range p.Dev {
		in.Dev[g] = canonical(reqs)
	}
	// Source order matters; credentials do not.
	for _, s := range p.Sources {
		in.Sources = append(in.Sources, s.Name+"="+s.URL)
	}
	// Map keys are emitted sorted.
	data, _ := json.Marshal(in)
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func canonical(reqs []pep508.Requirement) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.String())
	}
	slices.Sort(out)
	return slices.Compact(out)
}
