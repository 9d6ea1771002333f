package config

import (
	"errors"
	"fmt"
)

// ErrInvalidLimit is returned for zero or negative per-phase limits.
var ErrInvalidLimit = errors.New("invalid limit")

// Limits bounds one research phase: how many queries the LLM may generate,
// how many organic results are kept per query and how many tokens of page
// text each source may contribute to the prompt.
type Limits struct {
	Queries         int `json:"queries"`
	Results         int `json:"results"`
	TokensPerSource int `json:"tokens_per_source"`
}

// Validate rejects non-positive values. name is used in the error message.
func (l Limits) Validate(name string) error {
	switch {
	case l.Queries <= 0:
		return fmt.Errorf("%w: %s queries must be positive, got %d", ErrInvalidLimit, name, l.Queries)
	case l.Results <= 0:
		return fmt.Errorf("%w: %s results must be positive, got %d", ErrInvalidLimit, name, l.Results)
	case l.TokensPerSource <= 0:
		return fmt.Errorf("%w: %s tokens per source must be positive, got %d", ErrInvalidLimit, name, l.TokensPerSource)
	}
	return nil
}

// ValidateOverride rejects negative values. Zero means "keep the default"
// and is accepted.
func (l Limits) ValidateOverride(name string) error {
	switch {
	case l.Queries < 0:
		return fmt.Errorf("%w: %s queries must not be negative, got %d", ErrInvalidLimit, name, l.Queries)
	case l.Results < 0:
		return fmt.Errorf("%w: %s results must not be negative, got %d", ErrInvalidLimit, name, l.Results)
	case l.TokensPerSource < 0:
		return fmt.Errorf("%w: %s tokens per source must not be negative, got %d", ErrInvalidLimit, name, l.TokensPerSource)
	}
	return nil
}

// Merge returns l with every positive field of override applied.
func (l Limits) Merge(override Limits) Limits {
	if override.Queries > 0 {
		l.Queries = override.Queries
	}
	if override.Results > 0 {
		l.Results = override.Results
	}
	if override.TokensPerSource > 0 {
		l.TokensPerSource = override.TokensPerSource
	}
	return l
}

// RunLimits groups the limits of the three competitor research phases.
type RunLimits struct {
	Competition Limits `json:"competition"`
	Stats       Limits `json:"stats"`
	Products    Limits `json:"products"`
}

func (r RunLimits) Validate() error {
	if err := r.Competition.Validate("competition"); err != nil {
		return err
	}
	if err := r.Stats.Validate("stats"); err != nil {
		return err
	}
	return r.Products.Validate("products")
}
