package project

import (
	"fmt"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	pkgerrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/fsutil"
	"github.com/matzehuels/pylock/pkg/pep508"
)

// target locates the array holding one group's requirements.
type target struct {
	table string // dotted table name
	key   string
	field string // for error messages
}

func (p *Project) locate(group string, dev bool) (target, error) {
	group = pep508.CanonicalName(group)
	var raw pyproject
	if _, err := toml.Decode(string(p.data), &raw); err != nil {
		return target{}, pkgerrors.Wrap(pkgerrors.ErrCodeInvalidProject, err, "pyproject.toml")
	}
	switch {
	case group == DefaultGroup && dev:
		return target{}, pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "the default group cannot be a dev group")
	case group == DefaultGroup:
		return target{table: "project", key: "dependencies", field: "project.dependencies"}, nil
	case dev:
		if _, ok := p.Optional[group]; ok {
			return target{}, pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "group %q is an optional-dependencies group", group)
		}
		key := rawKey(raw.Tool.PDM.DevDependencies, group)
		return target{table: "tool.pdm.dev-dependencies", key: key, field: "tool.pdm.dev-dependencies." + key}, nil
	default:
		if _, ok := p.Dev[group]; ok {
			return target{}, pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "group %q is a dev group", group)
		}
		key := rawKey(raw.Project.OptionalDependencies, group)
		return target{table: "project.optional-dependencies", key: key, field: "project.optional-dependencies." + key}, nil
	}
}

// rawKey returns the key as spelled in the file for a canonical group.
func rawKey(m map[string][]string, group string) string {
	for k := range m {
		if pep508.CanonicalName(k) == group {
			return k
		}
	}
	return group
}

func (p *Project) lines(t target) []string {
	var raw pyproject
	_, _ = toml.Decode(string(p.data), &raw)
	switch t.table {
	case "project":
		return raw.Project.Dependencies
	case "project.optional-dependencies":
		return raw.Project.OptionalDependencies[t.key]
	}
	return raw.Tool.PDM.DevDependencies[t.key]
}

// Add adds requirements to a group. A requirement naming a package already
// in the group replaces that entry in place; others are appended. The
// declaration is updated in memory; call [Project.Save] to persist it.
func (p *Project) Add(group string, dev bool, reqs ...pep508.Requirement) error {
	t, err := p.locate(group, dev)
	if err != nil {
		return err
	}
	lines := slices.Clone(p.lines(t))
	for _, r := range reqs {
		i := slices.IndexFunc(lines, func(line string) bool { return nameOf(line) == r.Name })
		if i >= 0 {
			lines[i] = r.String()
		} else {
			lines = append(lines, r.String())
		}
	}
	return p.rewrite(t, lines)
}

// Remove drops the named packages from a group. Naming a package the group
// does not require is an error and leaves the project unchanged.
func (p *Project) Remove(group string, dev bool, names ...string) error {
	t, err := p.locate(group, dev)
	if err != nil {
		return err
	}
	lines := slices.Clone(p.lines(t))
	for _, name := range names {
		name = pep508.CanonicalName(name)
		i := slices.IndexFunc(lines, func(line string) bool { return nameOf(line) == name })
		if i < 0 {
			return pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "%s does not require %s", t.field, name)
		}
		lines = slices.Delete(lines, i, i+1)
	}
	return p.rewrite(t, lines)
}

func nameOf(line string) string {
	r, err := pep508.ParseRequirement(line)
	if err != nil {
		return ""
	}
	return r.Name
}

func (p *Project) rewrite(t target, lines []string) error {
	data, err := replaceArray(string(p.data), t.table, t.key, lines)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrCodeInvalidProject, err, "%s", t.field)
	}
	updated, err := Parse([]byte(data))
	if err != nil {
		return err
	}
	updated.Path = p.Path
	if got := updated.lines(t); !slices.Equal(got, lines) {
		return pkgerrors.New(pkgerrors.ErrCodeInvalidProject, "%s: layout cannot be edited in place", t.field)
	}
	*p = *updated
	return nil
}

// Save writes the declaration back to its file atomically.
func (p *Project) Save() error {
	if p.Path == "" {
		return pkgerrors.New(pkgerrors.ErrCodeInternal, "project has no path")
	}
	return fsutil.WriteFileAtomic(p.Path, p.data, 0o644)
}

// Bytes returns the current declaration text.
func (p *Project) Bytes() []byte { return p.data }

// replaceArray rewrites the array value of key in [table], adding the key
// or the table when missing. Everything else in doc is left untouched.
func replaceArray(doc, table, key string, items []string) (string, error) {
	lines := strings.SplitAfter(doc, "\n")
	current := ""
	headerEnd, tableEnd := -1, -1 // byte offsets
	offset := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			name := headerName(trimmed)
			if current == table && tableEnd < 0 {
				tableEnd = offset
			}
			current = name
			if name == table {
				headerEnd = offset + len(line)
				tableEnd = -1
			}
		} else if current == table && keyMatches(trimmed, key) {
			eq := offset + strings.Index(line, "=")
			open := strings.IndexByte(doc[eq:], '[')
			if open < 0 {
				return "", fmt.Errorf("value of %s is not an array", key)
			}
			start := eq + open
			end, err := arrayEnd(doc, start)
			if err != nil {
				return "", err
			}
			return doc[:start] + renderArray(items) + doc[end:], nil
		}
		offset += len(line)
	}

	entry := formatKey(key) + " = " + renderArray(items) + "\n"
	if headerEnd < 0 {
		sep := ""
		if doc != "" && !strings.HasSuffix(doc, "\n") {
			sep = "\n"
		}
		if doc != "" {
			sep += "\n"
		}
		return doc + sep + "[" + table + "]\n" + entry, nil
	}
	if tableEnd < 0 {
		tableEnd = len(doc)
	}
	// Insert after the table's last non-blank line.
	at := tableEnd
	for at > headerEnd && (doc[at-1] == '\n' || doc[at-1] == ' ' || doc[at-1] == '\t') {
		at--
	}
	if at < len(doc) && doc[at] == '\n' {
		at++
	} else if at == len(doc) && !strings.HasSuffix(doc, "\n") {
		entry = "\n" + entry
	}
	return doc[:at] + entry + doc[at:], nil
}

// headerName normalizes "[ tool . pdm ]" and "[[tool.pdm.source]]".
func headerName(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	line = strings.Trim(line, "[]")
	parts := strings.Split(line, ".")
	for i, part := range parts {
		parts[i] = strings.Trim(strings.TrimSpace(part), `"'`)
	}
	return strings.Join(parts, ".")
}

func keyMatches(line, key string) bool {
	name, _, ok := strings.Cut(line, "=")
	if !ok {
		return false
	}
	return strings.Trim(strings.TrimSpace(name), `"'`) == key
}

func formatKey(key string) string {
	for _, c := range key {
		if !(c == '-' || c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')) {
			return quote(key)
		}
	}
	return key
}

// arrayEnd returns the offset just past the bracket closing the array that
// opens at doc[start].
func arrayEnd(doc string, start int) (int, error) {
	depth := 0
	for i := start; i < len(doc); i++ {
		switch doc[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		case '#':
			for i < len(doc) && doc[i] != '\n' {
				i++
			}
		case '\'':
			i++
			for i < len(doc) && doc[i] != '\'' {
				i++
			}
		case '"':
			i++
			for i < len(doc) && doc[i] != '"' {
				if doc[i] == '\\' {
					i++
				}
				i++
			}
		}
	}
	return 0, fmt.Errorf("unterminated array")
}

func renderArray(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteString("[\n")
	for _, item := range items {
		b.WriteString("    " + quote(item) + ",\n")
	}
	b.WriteString("]")
	return b.String()
}

// quote uses a literal string when s carries double quotes, as markers do.
func quote(s string) string {
	if strings.Contains(s, `"`) && !strings.ContainsAny(s, "'\n") {
		return "'" + s + "'"
	}
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s) + `"`
}
