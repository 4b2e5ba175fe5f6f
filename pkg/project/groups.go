package project

import (
	"maps"
	"slices"

	pkgerrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/pep508"
)

// Groups returns every group name: the default group first, then the
// optional and dev groups sorted by name.
func (p *Project) Groups() []string {
	names := map[string]bool{}
	for g := range p.Optional {
		names[g] = true
	}
	for g := range p.Dev {
		names[g] = true
	}
	return append([]string{DefaultGroup}, slices.Sorted(maps.Keys(names))...)
}

// DevGroups returns the dev group names, sorted.
func (p *Project) DevGroups() []string {
	return slices.Sorted(maps.Keys(p.Dev))
}

// OptionalGroups returns the optional-dependency group names, sorted.
func (p *Project) OptionalGroups() []string {
	return slices.Sorted(maps.Keys(p.Optional))
}

// HasGroup reports whether group is declared.
func (p *Project) HasGroup(group string) bool {
	group = pep508.CanonicalName(group)
	if group == DefaultGroup {
		return true
	}
	_, opt := p.Optional[group]
	_, dev := p.Dev[group]
	return opt || dev
}

// Group returns the direct requirements of one group. References to the
// project itself with extras ("myproject[test]") are replaced by the
// requirements of those optional groups.
func (p *Project) Group(group string) ([]pep508.Requirement, error) {
	group = pep508.CanonicalName(group)
	if !p.HasGroup(group) {
		return nil, pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "unknown dependency group %q", group)
	}
	return p.expand(p.declared(group), map[string]bool{group: true}), nil
}

func (p *Project) declared(group string) []pep508.Requirement {
	if group == DefaultGroup {
		return p.Dependencies
	}
	return append(slices.Clone(p.Optional[group]), p.Dev[group]...)
}

func (p *Project) expand(reqs []pep508.Requirement, visiting map[string]bool) []pep508.Requirement {
	var out []pep508.Requirement
	for _, r := range reqs {
		if p.Name == "" || r.Name != p.Name {
			out = append(out, r)
			continue
		}
		for _, extra := range r.Extras {
			if visiting[extra] {
				continue
			}
			visiting[extra] = true
			out = append(out, p.expand(p.Optional[extra], visiting)...)
			delete(visiting, extra)
		}
	}
	return out
}

// Requirements returns the deduplicated direct requirements of groups in
// the order they are declared.
func (p *Project) Requirements(groups ...string) ([]pep508.Requirement, error) {
	var out []pep508.Requirement
	seen := map[string]bool{}
	for _, g := range groups {
		reqs, err := p.Group(g)
		if err != nil {
			return nil, err
		}
		for _, r := range reqs {
			if s := r.String(); !seen[s] {
				seen[s] = true
				out = append(out, r)
			}
		}
	}
	return out, nil
}

// GroupRoots maps each group to the names it requires directly, the shape
// a lock uses to record group membership.
func (p *Project) GroupRoots(groups ...string) (map[string][]string, error) {
	out := make(map[string][]string, len(groups))
	for _, g := range groups {
		reqs, err := p.Group(g)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, r := range reqs {
			if !slices.Contains(names, r.Name) {
				names = append(names, r.Name)
			}
		}
		out[pep508.CanonicalName(g)] = names
	}
	return out, nil
}

// SelectGroups turns command-line group selection into group names.
// Without explicit groups the default group is selected, plus every dev
// group when dev is set. prod drops all dev groups.
func (p *Project) SelectGroups(explicit []string, dev, prod bool) ([]string, error) {
	var out []string
	add := func(g string) {
		if !slices.Contains(out, g) {
			out = append(out, g)
		}
	}
	add(DefaultGroup)
	for _, g := range explicit {
		if g == ":all" {
			for _, name := range p.Groups() {
				add(name)
			}
			continue
		}
		g = pep508.CanonicalName(g)
		if !p.HasGroup(g) {
			return nil, pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "unknown dependency group %q", g)
		}
		add(g)
	}
	if dev {
		for _, g := range p.DevGroups() {
			add(g)
		}
	}
	if prod {
		out = slices.DeleteFunc(out, func(g string) bool {
			_, isDev := p.Dev[g]
			_, isOpt := p.Optional[g]
			return isDev && !isOpt
		})
	}
	return out, nil
}
