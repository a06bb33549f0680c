package domain

import (
	"fmt"
	"strings"
)

// Strategy tags which retrieval path produced a result.
type Strategy int

const (
	// StrategyNone marks a result produced by no search, e.g. a query
	// rejected by the topical pre-filter.
	StrategyNone Strategy = iota
	StrategyVector
	StrategyLexical
)

func (s Strategy) String() string {
	switch s {
	case StrategyVector:
		return "vector"
	case StrategyLexical:
		return "lexical"
	default:
		return "none"
	}
}

// MarshalText encodes the strategy by name.
func (s Strategy) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// SearchPolicy is the configured search strategy.
type SearchPolicy string

const (
	PolicyVector  SearchPolicy = "vector"
	PolicyLexical SearchPolicy = "lexical"
	PolicyAuto    SearchPolicy = "auto"
)

// ParsePolicy accepts vector, lexical or auto (case-insensitive). Empty means auto.
func ParsePolicy(s string) (SearchPolicy, error) {
	switch p := SearchPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyAuto, nil
	case PolicyVector, PolicyLexical, PolicyAuto:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown search strategy %q", ErrInvalidConfig, s)
	}
}
