package pep508

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultParseCacheSize bounds the memoized parse results of a Parser.
// Large resolutions see a few thousand distinct requirement strings, most
// of them repeated.
const DefaultParseCacheSize = 4096

// Parser memoizes requirement and marker parsing. Build one per run with
// NewParser and hand it to whatever parses metadata repeatedly; it is safe
// for concurrent use. The package-level Parse functions do not cache.
type Parser struct {
	markers      *lru.Cache[string, *Marker]
	requirements *lru.Cache[string, Requirement]
}

// NewParser returns a Parser holding up to size results of each kind.
// A size below one selects DefaultParseCacheSize.
func NewParser(size int) *Parser {
	if size < 1 {
		size = DefaultParseCacheSize
	}
	return &Parser{
		markers:      mustCache[*Marker](size),
		requirements: mustCache[Requirement](size),
	}
}

func mustCache[V any](size int) *lru.Cache[string, V] {
	c, err := lru.New[string, V](size)
	if err != nil {
		panic(err)
	}
	return c
}

// Requirement is ParseRequirement with memoization. Callers get their own
// copy of the extras slice.
func (p *Parser) Requirement(text string) (Requirement, error) {
	if r, ok := p.requirements.Get(text); ok {
		return r.clone(), nil
	}
	r, err := parseRequirement(text, p.Marker)
	if err != nil {
		return Requirement{}, err
	}
	p.requirements.Add(text, r)
	return r.clone(), nil
}

// Marker is ParseMarker with memoization. Markers are immutable, so the
// cached value is shared.
func (p *Parser) Marker(text string) (*Marker, error) {
	if m, ok := p.markers.Get(text); ok {
		return m, nil
	}
	m, err := ParseMarker(text)
	if err != nil {
		return nil, err
	}
	p.markers.Add(text, m)
	return m, nil
}

// Len reports how many requirements are memoized.
func (p *Parser) Len() int { return p.requirements.Len() }
