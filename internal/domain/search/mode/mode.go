package mode

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/recherche/internal/domain"
)

// Mode is the search strategy.
type Mode string

// Search mode constants.
const (
	// Fuzzy matches the term within an edit distance across the weighted fields.
	Fuzzy Mode = "fuzzy"
	// Wildcard matches the term as a substring (*term*) across the weighted fields.
	Wildcard Mode = "wildcard"
	// Composed runs wildcard then fuzzy and merges both result lists.
	Composed Mode = "composed"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Fuzzy || m == Wildcard || m == Composed
}

func (m Mode) String() string { return string(m) }

// Parse maps a user-supplied name to a Mode. Matching is case-insensitive.
func Parse(name string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(name)))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: unknown search mode %q", domain.ErrInvalidArgument, name)
	}
	return m, nil
}
