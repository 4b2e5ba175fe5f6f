package pep440

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"deps.dev/util/semver"
)

// Pre-release phases in ascending order.
const (
	phaseNone = iota
	phaseAlpha
	phaseBeta
	phaseRC
)

var phaseNames = [...]string{"", "a", "b", "rc"}

// Version is a parsed PEP 440 version. The zero value is not a valid
// version; use Parse. Versions are immutable values and safe to copy.
type Version struct {
	sv      *semver.Version // grammar and ordering
	epoch   int
	release []int
	phase   int // phaseNone when there is no pre-release segment
	preNum  int
	post    int // -1 when absent
	dev     int // -1 when absent
	local   []string
}

// Parse parses a PEP 440 version string. The grammar is the PyPI system of
// deps.dev/util/semver; the segments the specifier rules need are read
// back from its canonical form.
func Parse(text string) (Version, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	sv, err := semver.PyPI.Parse(s)
	if err != nil {
		return Version{}, &ParseError{Input: text, Reason: "not a valid PEP 440 version"}
	}
	if sv.IsWildcard() || strings.ContainsRune(s, '∞') {
		return Version{}, &ParseError{Input: text, Reason: "wildcards are only allowed in specifiers"}
	}
	v, err := decode(sv.Canon(false), releaseLen(s))
	if err != nil {
		return Version{}, &ParseError{Input: text, Reason: err.Error()}
	}
	v.sv = sv
	return v, nil
}

// MustParse is like Parse but panics on malformed input. Intended for
// tests and package-level constants.
func MustParse(text string) Version {
	v, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return v
}

// releaseLen counts the release segments as written. The canonical form
// pads short releases to three.
func releaseLen(s string) int {
	if _, rest, ok := strings.Cut(s, "!"); ok {
		s = rest
	}
	s = strings.TrimPrefix(s, "v")
	n := 1
	for i := 0; i < len(s); i++ {
		if s[i] == '.' && i+1 < len(s) && isDigit(s[i+1]) {
			n++
			continue
		}
		if !isDigit(s[i]) {
			break
		}
	}
	return n
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func outOfRange(segment string) error { return fmt.Errorf("%s segment out of range", segment) }

// decode splits a canonical version, E!N.N.N[{a|b|rc}N][.postN][.devN][+local].
func decode(canon string, n int) (Version, error) {
	v := Version{post: -1, dev: -1}
	s := canon
	if rest, local, ok := strings.Cut(s, "+"); ok {
		v.local = strings.Split(local, ".")
		s = rest
	}
	var err error
	if epoch, rest, ok := strings.Cut(s, "!"); ok {
		if v.epoch, err = strconv.Atoi(epoch); err != nil {
			return Version{}, outOfRange("epoch")
		}
		s = rest
	}
	if i := strings.LastIndex(s, ".dev"); i >= 0 {
		if v.dev, err = strconv.Atoi(s[i+len(".dev"):]); err != nil {
			return Version{}, outOfRange("dev")
		}
		s = s[:i]
	}
	if i := strings.LastIndex(s, ".post"); i >= 0 {
		if v.post, err = strconv.Atoi(s[i+len(".post"):]); err != nil {
			return Version{}, outOfRange("post")
		}
		s = s[:i]
	}
	if i := strings.IndexAny(s, "abr"); i >= 0 {
		num := s[i+1:]
		switch s[i] {
		case 'a':
			v.phase = phaseAlpha
		case 'b':
			v.phase = phaseBeta
		default:
			v.phase = phaseRC
			num = strings.TrimPrefix(num, "c")
		}
		if v.preNum, err = strconv.Atoi(num); err != nil {
			return Version{}, outOfRange("pre-release")
		}
		s = s[:i]
	}
	for _, part := range strings.Split(s, ".") {
		x, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, outOfRange("release")
		}
		v.release = append(v.release, x)
	}
	if n > 0 && n < len(v.release) {
		v.release = v.release[:n]
	}
	return v, nil
}

// IsZero reports whether v is the zero Version (never produced by Parse).
func (v Version) IsZero() bool { return len(v.release) == 0 }

// Epoch returns the version epoch.
func (v Version) Epoch() int { return v.epoch }

// Release returns a copy of the release segments.
func (v Version) Release() []int { return append([]int(nil), v.release...) }

// IsPrerelease reports whether v has a pre-release or dev-release segment.
func (v Version) IsPrerelease() bool { return v.phase != phaseNone || v.dev >= 0 }

// IsPostRelease reports whether v has a post-release segment.
func (v Version) IsPostRelease() bool { return v.post >= 0 }

// IsDevRelease reports whether v has a dev-release segment.
func (v Version) IsDevRelease() bool { return v.dev >= 0 }

// Local returns the normalized local segment, or "" if there is none.
func (v Version) Local() string { return strings.Join(v.local, ".") }

// Public returns v without its local segment.
func (v Version) Public() Version {
	if len(v.local) == 0 {
		return v
	}
	v.local = nil
	return MustParse(v.String())
}

// Base returns the epoch and release segments only.
func (v Version) Base() Version {
	if v.IsZero() {
		return Version{}
	}
	return MustParse(Version{epoch: v.epoch, release: v.release, post: -1, dev: -1}.String())
}

// String returns the normalized form of v.
func (v Version) String() string {
	if v.IsZero() {
		return ""
	}
	var b strings.Builder
	if v.epoch != 0 {
		fmt.Fprintf(&b, "%d!", v.epoch)
	}
	for i, n := range v.release {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(n))
	}
	if v.phase != phaseNone {
		fmt.Fprintf(&b, "%s%d", phaseNames[v.phase], v.preNum)
	}
	if v.post >= 0 {
		fmt.Fprintf(&b, ".post%d", v.post)
	}
	if v.dev >= 0 {
		fmt.Fprintf(&b, ".dev%d", v.dev)
	}
	if len(v.local) > 0 {
		b.WriteByte('+')
		b.WriteString(v.Local())
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Compare returns -1, 0 or +1 depending on whether v sorts before, equal
// to, or after o.
func (v Version) Compare(o Version) int { return Compare(v, o) }

// Equal reports whether v and o are the same version after normalization.
func (v Version) Equal(o Version) bool { return Compare(v, o) == 0 }

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool { return Compare(v, o) < 0 }

// Compare orders two versions by PEP 440 rules. The semver ordering
// leaves two ties open: a post-release of a pre-release against the bare
// pre-release when the post number is zero, and local segments on post or
// dev releases. Those are settled here.
func Compare(a, b Version) int {
	if c := a.sv.Compare(b.sv); c != 0 {
		return c
	}
	if c := cmp.Compare(a.post, b.post); c != 0 {
		return c
	}
	return compareLocal(a.local, b.local)
}

// compareLocal orders local segments: absent sorts first, numeric parts
// beat alphanumeric ones, and a shorter prefix sorts first.
func compareLocal(a, b []string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		an, aErr := strconv.Atoi(a[i])
		bn, bErr := strconv.Atoi(b[i])
		aNum, bNum := aErr == nil, bErr == nil
		switch {
		case aNum && bNum:
			if c := cmp.Compare(an, bn); c != 0 {
				return c
			}
		case aNum:
			return 1
		case bNum:
			return -1
		default:
			if c := strings.Compare(a[i], b[i]); c != 0 {
				return c
			}
		}
	}
	return cmp.Compare(len(a), len(b))
}
