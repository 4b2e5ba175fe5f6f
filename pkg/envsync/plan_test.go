package envsync

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/matzehuels/pylock/pkg/lock"
	"github.com/matzehuels/pylock/pkg/pep440"
)

func pkg(name, version string) lock.Package {
	return lock.Package{Name: name, Version: pep440.MustParse(version)}
}

func installed(pairs ...string) Installed {
	out := Installed{}
	for i := 0; i+1 < len(pairs); i += 2 {
		out[pairs[i]] = pep440.MustParse(pairs[i+1])
	}
	return out
}

// actionStrings keeps comparisons independent of Package payloads.
func actionStrings(actions []Action) []string {
	var out []string
	for _, a := range actions {
		out = append(out, a.String())
	}
	return out
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name      string
		locked    []lock.Package
		installed Installed
		want      []string
	}{
		{
			name:      "remove extraneous and install missing",
			locked:    []lock.Package{pkg("foo", "1.0"), pkg("baz", "1.0")},
			installed: installed("foo", "1.0", "bar", "1.0"),
			want:      []string{"remove bar", "install baz 1.0"},
		},
		{
			name:      "empty environment",
			locked:    []lock.Package{pkg("b", "2.0"), pkg("a", "1.0")},
			installed: Installed{},
			want:      []string{"install a 1.0", "install b 2.0"},
		},
		{
			name:      "upgrade and downgrade",
			locked:    []lock.Package{pkg("a", "2.0"), pkg("b", "1.0")},
			installed: installed("a", "1.0", "b", "1.5"),
			want:      []string{"upgrade a 1.0 -> 2.0", "upgrade b 1.5 -> 1.0"},
		},
		{
			name:      "equal versions in different spellings",
			locked:    []lock.Package{pkg("a", "1.0")},
			installed: installed("a", "1.0.0"),
		},
		{
			name:      "removals precede installs",
			locked:    []lock.Package{pkg("a", "1.0")},
			installed: installed("z", "1.0", "y", "1.0"),
			want:      []string{"remove y", "remove z", "install a 1.0"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := actionStrings(Plan(tt.locked, tt.installed))
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Plan mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPlanOfLockIsEmpty(t *testing.T) {
	locked := []lock.Package{pkg("a", "1.0"), pkg("b", "2.0rc1"), pkg("c", "3")}
	inst := Installed{}
	for _, p := range locked {
		inst[p.Name] = p.Version
	}
	if got := Plan(locked, inst); len(got) != 0 {
		t.Errorf("Plan(L, L) = %v, want no actions", got)
	}
}

func TestPlanCarriesPackage(t *testing.T) {
	p := pkg("a", "1.0")
	p.Files = []lock.File{{Name: "a-1.0-py3-none-any.whl", Hash: "sha256:00"}}
	actions := Plan([]lock.Package{p}, Installed{})
	if len(actions) != 1 {
		t.Fatalf("got %d actions", len(actions))
	}
	if diff := cmp.Diff([]string{"sha256:00"}, actions[0].Package.Hashes()); diff != "" {
		t.Errorf("Package hashes mismatch (-want +got):\n%s", diff)
	}
}

func TestIsDowngrade(t *testing.T) {
	if !Upgrade("a", pep440.MustParse("2.0"), pep440.MustParse("1.0")).IsDowngrade() {
		t.Error("2.0 -> 1.0 should be a downgrade")
	}
	if Upgrade("a", pep440.MustParse("1.0"), pep440.MustParse("2.0")).IsDowngrade() {
		t.Error("1.0 -> 2.0 should not be a downgrade")
	}
	if Install("a", pep440.MustParse("1.0")).IsDowngrade() {
		t.Error("installs are never downgrades")
	}
}

func TestWithout(t *testing.T) {
	inst := installed("pip", "24.0", "Setuptools", "70.0", "requests", "2.32.3")
	got := inst.Without(Protected...)
	if _, ok := got["pip"]; ok {
		t.Error("pip should be removed")
	}
	if _, ok := got["requests"]; !ok {
		t.Error("requests should remain")
	}
	if len(inst) != 3 {
		t.Error("Without must not modify the receiver")
	}
}
