package pep508

/*
Environment markers follow the PEP 508 grammar:

	marker      = marker_or
	marker_or   = marker_and ('or' marker_and)*
	marker_and  = marker_expr ('and' marker_expr)*
	marker_expr = marker_var marker_op marker_var
	            | '(' marker ')'
	marker_var  = env_var | python_str
	marker_op   = version_cmp | 'in' | 'not' wsp+ 'in'
	version_cmp = '<=' | '<' | '!=' | '==' | '>=' | '>' | '~=' | '==='

Chains of 'and'/'or' are accepted without parentheses, as pip does.
*/

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/pylock/pkg/pep440"
)

// Marker is a parsed environment marker. A nil *Marker always evaluates
// to true, which is how requirements without a marker are represented.
type Marker struct {
	node markerNode
}

type markerNode interface {
	eval(env Environment, extras map[string]bool) bool
	write(b *strings.Builder, parent nodeKind)
	// mentionsExtra reports whether the subtree references the extra variable.
	mentionsExtra() bool
}

type nodeKind int

const (
	kindTop nodeKind = iota
	kindAnd
	kindOr
)

// ParseMarker parses a marker expression.
func ParseMarker(text string) (*Marker, error) {
	p := &markerParser{input: text}
	node, err := p.parseOr()
	if err != nil {
		return nil, &ParseError{Input: text, Reason: err.Error()}
	}
	p.skipWsp()
	if p.pos < len(p.input) {
		return nil, &ParseError{Input: text, Reason: p.expected("end of marker").Error()}
	}
	return &Marker{node: node}, nil
}

// Evaluate reports whether the marker holds in env with the given extras
// requested. Extra names are compared in canonical form.
func (m *Marker) Evaluate(env Environment, extras []string) bool {
	if m == nil {
		return true
	}
	set := make(map[string]bool, len(extras))
	for _, e := range extras {
		set[CanonicalName(e)] = true
	}
	return m.node.eval(env, set)
}

// MentionsExtra reports whether the marker refers to the extra variable,
// meaning the requirement only applies when an extra is requested.
func (m *Marker) MentionsExtra() bool {
	return m != nil && m.node.mentionsExtra()
}

// WithoutExtra returns the marker with every comparison on the extra
// variable taken as satisfied, keeping the environment conditions. The
// result is nil when nothing else constrains it.
func (m *Marker) WithoutExtra() *Marker {
	if m == nil {
		return nil
	}
	n := stripExtra(m.node)
	if n == nil {
		return nil
	}
	return &Marker{node: n}
}

// stripExtra returns nil for a subtree that always holds once extra
// comparisons are dropped.
func stripExtra(n markerNode) markerNode {
	switch n := n.(type) {
	case exprNode:
		if n.mentionsExtra() {
			return nil
		}
		return n
	case andNode:
		var out andNode
		for _, c := range n {
			if kept := stripExtra(c); kept != nil {
				out = append(out, kept)
			}
		}
		switch len(out) {
		case 0:
			return nil
		case 1:
			return out[0]
		}
		return out
	case orNode:
		out := make(orNode, 0, len(n))
		for _, c := range n {
			kept := stripExtra(c)
			if kept == nil {
				return nil
			}
			out = append(out, kept)
		}
		if len(out) == 1 {
			return out[0]
		}
		return out
	}
	return n
}

// String returns the normalized marker text with double-quoted literals.
func (m *Marker) String() string {
	if m == nil {
		return ""
	}
	var b strings.Builder
	m.node.write(&b, kindTop)
	return b.String()
}

// Or joins markers with a logical OR. A nil operand always holds, so the
// result is nil if any operand is nil. Duplicate operands collapse.
func Or(markers ...*Marker) *Marker {
	if len(markers) == 0 {
		return nil
	}
	var nodes []markerNode
	seen := map[string]bool{}
	for _, m := range markers {
		if m == nil {
			return nil
		}
		s := m.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		nodes = append(nodes, m.node)
	}
	if len(nodes) == 1 {
		return &Marker{node: nodes[0]}
	}
	slices.SortFunc(nodes, func(a, b markerNode) int {
		return strings.Compare((&Marker{node: a}).String(), (&Marker{node: b}).String())
	})
	return &Marker{node: orNode(nodes)}
}

type andNode []markerNode

func (n andNode) eval(env Environment, extras map[string]bool) bool {
	for _, c := range n {
		if !c.eval(env, extras) {
			return false
		}
	}
	return true
}

func (n andNode) write(b *strings.Builder, _ nodeKind) {
	writeJoined(b, []markerNode(n), " and ", kindAnd, true)
}

func (n andNode) mentionsExtra() bool { return anyMentionsExtra(n) }

type orNode []markerNode

func (n orNode) eval(env Environment, extras map[string]bool) bool {
	for _, c := range n {
		if c.eval(env, extras) {
			return true
		}
	}
	return false
}

func (n orNode) write(b *strings.Builder, parent nodeKind) {
	writeJoined(b, []markerNode(n), " or ", kindOr, parent != kindAnd)
}

func (n orNode) mentionsExtra() bool { return anyMentionsExtra(n) }

func anyMentionsExtra(nodes []markerNode) bool {
	for _, c := range nodes {
		if c.mentionsExtra() {
			return true
		}
	}
	return false
}

// writeJoined prints children separated by sep, wrapped in parentheses
// unless bare is set.
func writeJoined(b *strings.Builder, nodes []markerNode, sep string, self nodeKind, bare bool) {
	if !bare {
		b.WriteByte('(')
	}
	for i, c := range nodes {
		if i > 0 {
			b.WriteString(sep)
		}
		c.write(b, self)
	}
	if !bare {
		b.WriteByte(')')
	}
}

// markerVar is either an environment variable reference or a literal.
type markerVar struct {
	name  string // variable name; empty for literals
	value string // literal value
}

func (v markerVar) resolve(env Environment) string {
	if v.name == "" {
		return v.value
	}
	val, _ := env.Lookup(v.name)
	return val
}

func (v markerVar) String() string {
	if v.name != "" {
		return v.name
	}
	return fmt.Sprintf("%q", v.value)
}

type exprNode struct {
	op          string
	left, right markerVar
}

func (n exprNode) mentionsExtra() bool { return n.left.name == "extra" || n.right.name == "extra" }

func (n exprNode) write(b *strings.Builder, _ nodeKind) {
	b.WriteString(n.left.String())
	b.WriteByte(' ')
	b.WriteString(n.op)
	b.WriteByte(' ')
	b.WriteString(n.right.String())
}

func (n exprNode) eval(env Environment, extras map[string]bool) bool {
	if n.mentionsExtra() {
		other := n.left
		if n.left.name == "extra" {
			other = n.right
		}
		has := extras[CanonicalName(other.value)]
		if n.op == "!=" {
			return !has
		}
		return has
	}
	l, r := n.left.resolve(env), n.right.resolve(env)

	// Prefer a version comparison when both sides are versions.
	if n.op != "===" && n.op != "in" && n.op != "not in" {
		if lv, err := pep440.Parse(l); err == nil {
			if spec, err := pep440.ParseSpecifier(n.op + r); err == nil {
				return spec.Contains(lv)
			}
		}
	}
	switch n.op {
	case "<=":
		return l <= r
	case "<":
		return l < r
	case "!=":
		return l != r
	case "==", "===":
		return l == r
	case ">=":
		return l >= r
	case ">":
		return l > r
	case "in":
		return strings.Contains(r, l)
	case "not in":
		return !strings.Contains(r, l)
	}
	// ~= on non-versions has no string meaning.
	return false
}

type markerParser struct {
	input string
	pos   int
}

func (p *markerParser) skipWsp() bool {
	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
	return p.pos > start
}

func (p *markerParser) accept(s string) bool {
	if !strings.HasPrefix(p.input[p.pos:], s) {
		return false
	}
	p.pos += len(s)
	return true
}

// acceptWord accepts a keyword only when it is not the prefix of a longer
// identifier ("or" must not match "os_name").
func (p *markerParser) acceptWord(w string) bool {
	rest := p.input[p.pos:]
	if !strings.HasPrefix(rest, w) {
		return false
	}
	if len(rest) > len(w) {
		c := rest[len(w)]
		if c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') {
			return false
		}
	}
	p.pos += len(w)
	return true
}

func (p *markerParser) expected(want string) error {
	end := p.input[p.pos:]
	if len(end) > 10 {
		end = end[:10]
	}
	if end == "" {
		end = "EOF"
	}
	return fmt.Errorf("expected %s, found %q", want, end)
}

func (p *markerParser) parseOr() (markerNode, error) {
	var nodes []markerNode
	for {
		n, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
		save := p.pos
		p.skipWsp()
		if !p.acceptWord("or") {
			p.pos = save
			break
		}
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return orNode(nodes), nil
}

func (p *markerParser) parseAnd() (markerNode, error) {
	var nodes []markerNode
	for {
		n, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
		save := p.pos
		p.skipWsp()
		if !p.acceptWord("and") {
			p.pos = save
			break
		}
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return andNode(nodes), nil
}

func (p *markerParser) parseExpr() (markerNode, error) {
	p.skipWsp()
	if p.accept("(") {
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		p.skipWsp()
		if !p.accept(")") {
			return nil, p.expected("closing )")
		}
		return n, nil
	}
	left, err := p.parseVar()
	if err != nil {
		return nil, err
	}
	op, err := p.parseOp()
	if err != nil {
		return nil, err
	}
	right, err := p.parseVar()
	if err != nil {
		return nil, err
	}
	if left.name == "" && right.name == "" {
		return nil, fmt.Errorf("marker compares two literals: %s %s %s", left, op, right)
	}
	if (left.name == "extra" || right.name == "extra") && op != "==" && op != "!=" {
		return nil, fmt.Errorf("extra can only be compared with == or !=, got %s", op)
	}
	return exprNode{op: op, left: left, right: right}, nil
}

// markerOps are ordered so that no operator is shadowed by its prefix.
var markerOps = []string{"===", "<=", "!=", "==", ">=", "~=", "<", ">"}

func (p *markerParser) parseOp() (string, error) {
	p.skipWsp()
	for _, op := range markerOps {
		if p.accept(op) {
			return op, nil
		}
	}
	if p.acceptWord("in") {
		return "in", nil
	}
	if p.acceptWord("not") {
		if !p.skipWsp() {
			return "", p.expected("whitespace in 'not in'")
		}
		if !p.acceptWord("in") {
			return "", p.expected("in after not")
		}
		return "not in", nil
	}
	return "", p.expected("marker operator")
}

func (p *markerParser) parseVar() (markerVar, error) {
	p.skipWsp()
	if p.pos < len(p.input) && (p.input[p.pos] == '\'' || p.input[p.pos] == '"') {
		q := p.input[p.pos]
		end := strings.IndexByte(p.input[p.pos+1:], q)
		if end < 0 {
			return markerVar{}, p.expected("closing quote")
		}
		v := markerVar{value: p.input[p.pos+1 : p.pos+1+end]}
		p.pos += end + 2
		return v, nil
	}
	for _, name := range append([]string{"extra"}, markerVariables...) {
		if p.acceptWord(name) {
			return markerVar{name: name}, nil
		}
	}
	// Legacy dotted spellings still found in old metadata.
	for legacy, name := range legacyVariables {
		if p.acceptWord(legacy) {
			return markerVar{name: name}, nil
		}
	}
	return markerVar{}, p.expected("string or variable name")
}

var legacyVariables = map[string]string{
	"os.name":                        "os_name",
	"sys.platform":                   "sys_platform",
	"platform.version":               "platform_version",
	"platform.machine":               "platform_machine",
	"platform.python_implementation": "platform_python_implementation",
}
