package query

import (
	"fmt"

	"github.com/roach88/querykit/internal/filter"
)

// DistinctStrategy selects how duplicate root rows are removed.
type DistinctStrategy string

const (
	StrategyDistinct DistinctStrategy = "distinct"
	StrategyGroupBy  DistinctStrategy = "group_by"
)

// Config carries the defaults a Builder and planner apply.
type Config struct {
	// DefaultPageSize applies when a page number is given without a size.
	// 0 keeps such requests unpaginated.
	DefaultPageSize int

	// MaxPageSize caps every page size. 0 means no cap.
	MaxPageSize int

	DistinctStrategy DistinctStrategy

	// AllowDeepDive permits filter and sort paths that traverse relations.
	AllowDeepDive bool

	// ReadOnly marks every request read-only.
	ReadOnly bool

	Syntax filter.Syntax
}

// DefaultConfig returns deep dives on, the distinct strategy, a page size
// cap of 1000 and the default grammar.
func DefaultConfig() Config {
	return Config{
		MaxPageSize:      1000,
		DistinctStrategy: StrategyDistinct,
		AllowDeepDive:    true,
		ReadOnly:         true,
		Syntax:           filter.DefaultSyntax(),
	}
}

// Validate reports inconsistent settings.
func (c Config) Validate() error {
	switch c.DistinctStrategy {
	case StrategyDistinct, StrategyGroupBy:
	default:
		return fmt.Errorf("distinct strategy %q: want distinct or group_by", c.DistinctStrategy)
	}
	if c.DefaultPageSize < 0 || c.MaxPageSize < 0 {
		return fmt.Errorf("page sizes must not be negative")
	}
	if c.MaxPageSize > 0 && c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("default page size %d exceeds max page size %d", c.DefaultPageSize, c.MaxPageSize)
	}
	if c.Syntax.And == "" || c.Syntax.Or == "" {
		return fmt.Errorf("syntax: AND and OR tokens must be set")
	}
	return nil
}
