package project

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	pkgerrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/lock"
	"github.com/matzehuels/pylock/pkg/pep440"
	"github.com/matzehuels/pylock/pkg/pep508"
	"github.com/matzehuels/pylock/pkg/provider"
)

// Filename is the project declaration file name.
const Filename = "pyproject.toml"

// DefaultGroup holds [project] dependencies.
const DefaultGroup = lock.DefaultGroup

// Project is a parsed project declaration.
type Project struct {
	Path             string // pyproject.toml
	Name             string // canonical; empty for unnamed projects
	Version          string
	RequiresPython   pep440.SpecifierSet
	Dependencies     []pep508.Requirement
	Optional         map[string][]pep508.Requirement
	Dev              map[string][]pep508.Requirement
	Sources          []provider.Source
	AllowPrereleases bool

	data []byte
}

type pyproject struct {
	Project struct {
		Name                 string              `toml:"name"`
		Version              string              `toml:"version"`
		RequiresPython       string              `toml:"requires-python"`
		Dependencies         []string            `toml:"dependencies"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
	} `toml:"project"`
	Tool struct {
		PDM struct {
			DevDependencies  map[string][]string `toml:"dev-dependencies"`
			Source           []provider.Source   `toml:"source"`
			AllowPrereleases bool                `toml:"allow_prereleases"`
		} `toml:"pdm"`
	} `toml:"tool"`
}

func invalid(format string, args ...any) error {
	return pkgerrors.New(pkgerrors.ErrCodeInvalidProject, format, args...)
}

// Find walks up from dir to the nearest directory holding a pyproject.toml
// and returns the file's path.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(dir, Filename)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", pkgerrors.New(pkgerrors.ErrCodeInvalidProject, "no %s found", Filename)
		}
		dir = parent
	}
}

// Load reads the declaration at path. A directory is taken to contain a
// pyproject.toml.
func Load(path string) (*Project, error) {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		path = filepath.Join(path, Filename)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeInvalidProject, err, "no %s", path)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeInvalidProject, err, "read %s", path)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, err
	}
	p.Path = path
	return p, nil
}

// Parse decodes a pyproject.toml document.
func Parse(data []byte) (*Project, error) {
	var raw pyproject
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeInvalidProject, err, "pyproject.toml")
	}

	p := &Project{
		Version:          raw.Project.Version,
		Optional:         map[string][]pep508.Requirement{},
		Dev:              map[string][]pep508.Requirement{},
		AllowPrereleases: raw.Tool.PDM.AllowPrereleases,
		data:             data,
	}
	if raw.Project.Name != "" {
		if err := pkgerrors.ValidatePythonPackageName(raw.Project.Name); err != nil {
			return nil, invalid("project.name: %s", pkgerrors.UserMessage(err))
		}
		p.Name = pep508.CanonicalName(raw.Project.Name)
	}
	if raw.Project.RequiresPython != "" {
		spec, err := pep440.ParseSpecifierSet(raw.Project.RequiresPython)
		if err != nil {
			return nil, invalid("project.requires-python: %v", err)
		}
		p.RequiresPython = spec
	}

	var err error
	if p.Dependencies, err = parseRequirements("project.dependencies", raw.Project.Dependencies); err != nil {
		return nil, err
	}
	for group, lines := range raw.Project.OptionalDependencies {
		if err := pkgerrors.ValidateExtraName(group); err != nil {
			return nil, invalid("project.optional-dependencies.%s: %s", group, pkgerrors.UserMessage(err))
		}
		if p.Optional[pep508.CanonicalName(group)], err = parseRequirements("project.optional-dependencies."+group, lines); err != nil {
			return nil, err
		}
	}
	for group, lines := range raw.Tool.PDM.DevDependencies {
		if err := pkgerrors.ValidateExtraName(group); err != nil {
			return nil, invalid("tool.pdm.dev-dependencies.%s: %s", group, pkgerrors.UserMessage(err))
		}
		if p.Dev[pep508.CanonicalName(group)], err = parseRequirements("tool.pdm.dev-dependencies."+group, lines); err != nil {
			return nil, err
		}
	}
	for group := range p.Dev {
		if group == DefaultGroup {
			return nil, invalid("tool.pdm.dev-dependencies.%s: group name is reserved", group)
		}
	}
	if _, ok := p.Optional[DefaultGroup]; ok {
		return nil, invalid("project.optional-dependencies.%s: group name is reserved", DefaultGroup)
	}

	if p.Sources, err = parseSources(raw.Tool.PDM.Source); err != nil {
		return nil, err
	}
	return p, nil
}

func parseRequirements(field string, lines []string) ([]pep508.Requirement, error) {
	out := make([]pep508.Requirement, 0, len(lines))
	for i, line := range lines {
		r, err := pep508.ParseRequirement(line)
		if err != nil {
			return nil, invalid("%s[%d]: %v", field, i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// parseSources expands ${VAR} references and puts the public index first
// unless a source named "pypi" is declared.
func parseSources(raw []provider.Source) ([]provider.Source, error) {
	var out []provider.Source
	seen := map[string]bool{}
	for i, s := range raw {
		s.Name = strings.TrimSpace(s.Name)
		s.URL = os.ExpandEnv(s.URL)
		s.Username = os.ExpandEnv(s.Username)
		s.Password = os.ExpandEnv(s.Password)
		switch {
		case s.Name == "":
			return nil, invalid("tool.pdm.source[%d].name: missing", i)
		case s.URL == "":
			return nil, invalid("tool.pdm.source[%d].url: missing", i)
		case seen[s.Name]:
			return nil, invalid("tool.pdm.source[%d].name: duplicate source %q", i, s.Name)
		}
		if err := pkgerrors.ValidateURL(s.URL); err != nil {
			return nil, invalid("tool.pdm.source[%d].url: %s", i, pkgerrors.UserMessage(err))
		}
		seen[s.Name] = true
		out = append(out, s)
	}
	if !seen[provider.DefaultSource.Name] {
		out = slices.Insert(out, 0, provider.DefaultSource)
	}
	return out, nil
}

// Dir returns the directory holding the declaration.
func (p *Project) Dir() string { return filepath.Dir(p.Path) }

// LockPath returns the path of the lock next to the declaration.
func (p *Project) LockPath() string { return filepath.Join(p.Dir(), lock.DefaultFilename) }
