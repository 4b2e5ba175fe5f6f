package providertest

import (
	"context"
	"testing"

	"github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/pep440"
	"github.com/matzehuels/pylock/pkg/pep508"
)

func TestIndex(t *testing.T) {
	ctx := context.Background()
	ix := New(map[string][]string{
		"Foo 1.0": {"bar==1.0"},
		"foo 2.0": {"bar==2.0", `baz; extra == "x"`},
		"bar 1.0": nil,
	})
	ix.Yank("foo 1.0")

	rs, err := ix.Versions(ctx, "FOO")
	if err != nil {
		t.Fatal(err)
	}
	if len(rs) != 2 || rs[0].Version.String() != "2.0" || !rs[1].Yanked {
		t.Fatalf("Versions = %+v", rs)
	}
	if rs[0].Files[0].Hash == "" {
		t.Error("fixture files should carry a hash")
	}

	reqs, err := ix.Requirements(ctx, "foo", pep440.MustParse("2.0"), nil, pep508.Environment{})
	if err != nil || len(reqs) != 1 {
		t.Errorf("Requirements = %v, %v", reqs, err)
	}
	reqs, _ = ix.Requirements(ctx, "foo", pep440.MustParse("2.0"), []string{"x"}, pep508.Environment{})
	if len(reqs) != 2 {
		t.Errorf("Requirements with extra = %v", reqs)
	}

	if _, err := ix.Versions(ctx, "missing"); !errors.Is(err, errors.ErrCodeMetadataUnavailable) {
		t.Errorf("missing project: %v", err)
	}
	if ix.Calls("versions", "foo") != 1 {
		t.Errorf("Calls = %d", ix.Calls("versions", "foo"))
	}
}
