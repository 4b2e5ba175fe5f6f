package envsync

import (
	"slices"
	"strings"

	"github.com/matzehuels/pylock/pkg/lock"
	"github.com/matzehuels/pylock/pkg/pep440"
)

// Kind is the type of an [Action].
type Kind string

const (
	KindInstall Kind = "install"
	KindRemove  Kind = "remove"
	KindUpgrade Kind = "upgrade"
)

// Action is one step of a sync plan. Upgrade also covers downgrades; From
// and To tell them apart.
type Action struct {
	Kind    Kind
	Name    string
	From    pep440.Version // installed version, zero for installs
	To      pep440.Version // locked version, zero for removals
	Package lock.Package   // locked entry, empty for removals
}

// Install returns an action that installs name at version.
func Install(name string, version pep440.Version) Action {
	return Action{Kind: KindInstall, Name: name, To: version}
}

// Remove returns an action that uninstalls name.
func Remove(name string) Action {
	return Action{Kind: KindRemove, Name: name}
}

// Upgrade returns an action that replaces version from of name with to.
func Upgrade(name string, from, to pep440.Version) Action {
	return Action{Kind: KindUpgrade, Name: name, From: from, To: to}
}

// IsDowngrade reports whether an upgrade action moves to an older version.
func (a Action) IsDowngrade() bool {
	return a.Kind == KindUpgrade && a.To.Less(a.From)
}

func (a Action) String() string {
	switch a.Kind {
	case KindInstall:
		return "install " + a.Name + " " + a.To.String()
	case KindRemove:
		return "remove " + a.Name
	}
	return string(a.Kind) + " " + a.Name + " " + a.From.String() + " -> " + a.To.String()
}

// Plan returns the actions that turn installed into locked. Equal versions
// need nothing. Removals come first so that a package moving between
// names never has both installed.
func Plan(locked []lock.Package, installed Installed) []Action {
	want := make(map[string]lock.Package, len(locked))
	for _, p := range locked {
		want[p.Name] = p
	}

	var removes, changes []Action
	for name := range installed {
		if _, ok := want[name]; !ok {
			removes = append(removes, Remove(name))
		}
	}
	for name, p := range want {
		have, ok := installed[name]
		switch {
		case !ok:
			a := Install(name, p.Version)
			a.Package = p
			changes = append(changes, a)
		case !have.Equal(p.Version):
			a := Upgrade(name, have, p.Version)
			a.Package = p
			changes = append(changes, a)
		}
	}

	byName := func(a, b Action) int { return strings.Compare(a.Name, b.Name) }
	slices.SortFunc(removes, byName)
	slices.SortFunc(changes, byName)
	return append(removes, changes...)
}
