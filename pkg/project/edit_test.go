package project

import (
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/pep508"
)

func TestAddReplacesInPlace(t *testing.T) {
	path := writeProject(t, sample)
	p, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, p.Add(DefaultGroup, false,
		pep508.MustParseRequirement("Requests>=2.31"),
		pep508.MustParseRequirement(`colorama; sys_platform == "win32"`),
	))
	assert.Equal(t, []string{"requests>=2.31", "click", `colorama; sys_platform == "win32"`}, names(p, "default"))

	require.NoError(t, p.Save())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "# demo project\n[project]\n"), "leading comment kept")
	assert.Contains(t, text, `'colorama; sys_platform == "win32"'`)
	assert.Contains(t, text, "[tool.pdm.dev-dependencies]\ntest = [\"pytest>=7\"]")

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, p.Fingerprint(), again.Fingerprint())
}

func TestAddNewGroups(t *testing.T) {
	p, err := Parse([]byte(sample))
	require.NoError(t, err)

	require.NoError(t, p.Add("docs", true, pep508.MustParseRequirement("mkdocs")))
	require.NoError(t, p.Add("yaml", false, pep508.MustParseRequirement("pyyaml>=6")))

	assert.Equal(t, []string{"mkdocs"}, names(p, "docs"))
	assert.Equal(t, []string{"pyyaml>=6"}, names(p, "yaml"))
	assert.Contains(t, p.DevGroups(), "docs")
	assert.Contains(t, p.OptionalGroups(), "yaml")
	// Untouched groups survive.
	assert.Equal(t, []string{"pytest>=7"}, names(p, "test"))
}

func TestAddToEmptyDocument(t *testing.T) {
	p, err := Parse(nil)
	require.NoError(t, err)
	require.NoError(t, p.Add(DefaultGroup, false, pep508.MustParseRequirement("requests")))
	assert.Equal(t, "[project]\ndependencies = [\n    \"requests\",\n]\n", string(p.Bytes()))
}

func TestAddKeyToExistingTable(t *testing.T) {
	p, err := Parse([]byte("[project]\nname = \"x\"\n\n[tool.pdm]\nallow_prereleases = false\n"))
	require.NoError(t, err)
	require.NoError(t, p.Add(DefaultGroup, false, pep508.MustParseRequirement("a")))
	want := "[project]\nname = \"x\"\ndependencies = [\n    \"a\",\n]\n\n[tool.pdm]\nallow_prereleases = false\n"
	if diff := cmp.Diff(want, string(p.Bytes())); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestAddWrongGroupKind(t *testing.T) {
	p, err := Parse([]byte(sample))
	require.NoError(t, err)
	err = p.Add("test", false, pep508.MustParseRequirement("x"))
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput), "err = %v", err)
	err = p.Add(DefaultGroup, true, pep508.MustParseRequirement("x"))
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput), "err = %v", err)
}

func TestRemove(t *testing.T) {
	p, err := Parse([]byte(sample))
	require.NoError(t, err)
	before := p.Fingerprint()

	require.NoError(t, p.Remove(DefaultGroup, false, "Click"))
	assert.Equal(t, []string{"requests>=2.28"}, names(p, "default"))
	assert.NotEqual(t, before, p.Fingerprint())

	require.NoError(t, p.Remove("lint", true, "ruff"))
	assert.Empty(t, names(p, "lint"))
}

func TestRemoveUnknown(t *testing.T) {
	p, err := Parse([]byte(sample))
	require.NoError(t, err)
	original := string(p.Bytes())
	err = p.Remove(DefaultGroup, false, "click", "flask")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput), "err = %v", err)
	assert.Equal(t, original, string(p.Bytes()))
}

func TestReplaceArrayIgnoresBracketsInStrings(t *testing.T) {
	doc := "[project]\ndependencies = [\"a[x]\", # ]\n  'b[y]']\nname = \"n\"\n"
	got, err := replaceArray(doc, "project", "dependencies", []string{"c"})
	require.NoError(t, err)
	assert.Equal(t, "[project]\ndependencies = [\n    \"c\",\n]\nname = \"n\"\n", got)
}
