package lock

import (
	"slices"
	"strings"

	"github.com/matzehuels/pylock/pkg/pep440"
)

// ChangeKind classifies a difference between two locks.
type ChangeKind string

const (
	Added      ChangeKind = "add"
	Removed    ChangeKind = "remove"
	Upgraded   ChangeKind = "upgrade"
	Downgraded ChangeKind = "downgrade"
)

// Change is one package that differs between two locks.
type Change struct {
	Name string
	Kind ChangeKind
	From pep440.Version // zero for Added
	To   pep440.Version // zero for Removed
}

func (c Change) String() string {
	switch c.Kind {
	case Added:
		return "+ " + c.Name + " " + c.To.String()
	case Removed:
		return "- " + c.Name + " " + c.From.String()
	}
	return "~ " + c.Name + " " + c.From.String() + " -> " + c.To.String()
}

// Diff lists the packages that differ between old and updated, sorted by
// name. A nil old lock counts as empty.
func Diff(old, updated *Lock) []Change {
	before := map[string]pep440.Version{}
	if old != nil {
		before = old.Versions()
	}
	after := map[string]pep440.Version{}
	if updated != nil {
		after = updated.Versions()
	}

	var out []Change
	for name, to := range after {
		from, ok := before[name]
		switch {
		case !ok:
			out = append(out, Change{Name: name, Kind: Added, To: to})
		case from.Less(to):
			out = append(out, Change{Name: name, Kind: Upgraded, From: from, To: to})
		case to.Less(from):
			out = append(out, Change{Name: name, Kind: Downgraded, From: from, To: to})
		}
	}
	for name, from := range before {
		if _, ok := after[name]; !ok {
			out = append(out, Change{Name: name, Kind: Removed, From: from})
		}
	}
	slices.SortFunc(out, func(a, b Change) int { return strings.Compare(a.Name, b.Name) })
	return out
}
