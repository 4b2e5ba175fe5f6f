package project

import (
	"bufio"
	"io"
	"os"
	"strings"

	pkgerrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/pep508"
)

// Imported is the result of reading a requirements file.
type Imported struct {
	Requirements []pep508.Requirement
	Skipped      []string // options, editables and direct references
}

// ReadRequirementsFile reads a pip requirements file.
func ReadRequirementsFile(path string) (*Imported, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeInvalidInput, err, "open %s", path)
	}
	defer f.Close()
	return ParseRequirementsFile(f)
}

// ParseRequirementsFile parses requirements.txt lines. Comments and blank
// lines are ignored; backslash continuations are joined; "--hash" options
// trailing a requirement are dropped. Lines pip would treat as options or
// direct references are reported in Skipped. The first malformed
// requirement is an error naming its line.
func ParseRequirementsFile(r io.Reader) (*Imported, error) {
	out := &Imported{}
	seen := map[string]bool{}
	scanner := bufio.NewScanner(r)
	lineNo, start := 0, 0
	var pending strings.Builder
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if pending.Len() == 0 {
			start = lineNo
		}
		if strings.HasSuffix(line, `\`) {
			pending.WriteString(strings.TrimSuffix(line, `\`) + " ")
			continue
		}
		pending.WriteString(line)
		text := stripComment(pending.String())
		pending.Reset()

		if text == "" {
			continue
		}
		if text[0] == '-' || strings.Contains(text, "://") || strings.HasPrefix(text, "git+") || strings.HasPrefix(text, ".") {
			out.Skipped = append(out.Skipped, text)
			continue
		}
		if i := strings.Index(text, " --"); i >= 0 {
			text = strings.TrimSpace(text[:i])
		}
		req, err := pep508.ParseRequirement(text)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.ErrCodeInvalidInput, err, "requirements line %d", start)
		}
		if key := req.String(); !seen[key] {
			seen[key] = true
			out.Requirements = append(out.Requirements, req)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeInvalidInput, err, "read requirements")
	}
	return out, nil
}

// stripComment drops a trailing comment. A '#' only starts a comment at the
// start of a line or after whitespace.
func stripComment(line string) string {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "#") {
		return ""
	}
	for i := 1; i < len(line); i++ {
		if line[i] == '#' && (line[i-1] == ' ' || line[i-1] == '\t') {
			return strings.TrimSpace(line[:i])
		}
	}
	return line
}
