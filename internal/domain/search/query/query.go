// Package query turns a search mode and a term into backend-neutral query specifications.
package query

import (
	"fmt"
	"unicode/utf8"

	"github.com/kailas-cloud/recherche/internal/domain"
	"github.com/kailas-cloud/recherche/internal/domain/search/mode"
)

// Kind is the shape of a single backend query.
type Kind string

// Query kinds. Composed mode expands into one of each.
const (
	KindFuzzy    Kind = "fuzzy"
	KindWildcard Kind = "wildcard"
)

// Field is a document path searched with a relevance weight.
type Field struct {
	Path   string
	Weight float64
}

// DefaultFields returns the fixed person search fields.
func DefaultFields() []Field {
	return []Field{
		{Path: "address.postalCode", Weight: 1.0},
		{Path: "address.locality", Weight: 1.0},
		{Path: "lastName", Weight: 1.0},
		{Path: "firstName", Weight: 1.0},
		{Path: "employer.ide", Weight: 1.0},
		{Path: "nss", Weight: 1.0},
	}
}

// Fuzziness bounds approximate matching.
type Fuzziness struct {
	Distance       int
	PrefixLength   int
	MaxExpansions  int
	Transpositions bool
}

// Spec is one backend query.
type Spec struct {
	Kind      Kind
	Term      string
	Fields    []Field
	Fuzziness Fuzziness
	Size      int
}

// Pattern returns the substring pattern used by wildcard queries.
func (s Spec) Pattern() string { return "*" + s.Term + "*" }

// Policy holds the configured fuzziness knobs. Distance is derived from the term.
type Policy struct {
	PrefixLength   int
	MaxExpansions  int
	Transpositions bool
}

// DefaultPolicy returns prefix 0, 50 expansions, transpositions on.
func DefaultPolicy() Policy {
	return Policy{MaxExpansions: 50, Transpositions: true}
}

const defaultSize = 20

// Engine builds query specs. It performs no I/O.
type Engine struct {
	fields []Field
	policy Policy
	size   int
}

// NewEngine creates an engine. Empty fields fall back to DefaultFields, size <= 0 to 20.
func NewEngine(fields []Field, policy Policy, size int) *Engine {
	if len(fields) == 0 {
		fields = DefaultFields()
	}
	if size <= 0 {
		size = defaultSize
	}
	if policy.MaxExpansions <= 0 {
		policy.MaxExpansions = DefaultPolicy().MaxExpansions
	}
	return &Engine{fields: fields, policy: policy, size: size}
}

// Fields returns a copy of the weighted field set.
func (e *Engine) Fields() []Field {
	out := make([]Field, len(e.fields))
	copy(out, e.fields)
	return out
}

// AutoDistance scales the edit distance with term length: 0 for up to 2 runes, 1 up to 5, else 2.
func AutoDistance(term string) int {
	switch n := utf8.RuneCountInString(term); {
	case n <= 2:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}

// Fuzziness returns the fuzziness applied to term.
func (e *Engine) Fuzziness(term string) Fuzziness {
	return Fuzziness{
		Distance:       AutoDistance(term),
		PrefixLength:   e.policy.PrefixLength,
		MaxExpansions:  e.policy.MaxExpansions,
		Transpositions: e.policy.Transpositions,
	}
}

// Build returns the query specs for m. Composed yields wildcard first, then fuzzy,
// both carrying the same term, fields and fuzziness.
func (e *Engine) Build(m mode.Mode, term string) ([]Spec, error) {
	fz := e.Fuzziness(term)
	spec := func(k Kind) Spec {
		return Spec{Kind: k, Term: term, Fields: e.Fields(), Fuzziness: fz, Size: e.size}
	}
	switch m {
	case mode.Fuzzy:
		return []Spec{spec(KindFuzzy)}, nil
	case mode.Wildcard:
		return []Spec{spec(KindWildcard)}, nil
	case mode.Composed:
		return []Spec{spec(KindWildcard), spec(KindFuzzy)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown search mode %q", domain.ErrInvalidArgument, string(m))
	}
}
