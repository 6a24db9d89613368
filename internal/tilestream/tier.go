package tilestream

import (
	"fmt"
	"sort"
)

type TierConfig struct {
	// Radius in cells; the loaded neighbourhood is a square of side 2*Radius-1.
	Radius int
	// Camera heights above this skip the tier entirely.
	MaxVisibleHeight float64
}

// Tiers maps a tier edge length to its configuration.
type Tiers map[int64]TierConfig

func (c TierConfig) Validate(size int64) error {
	if size <= 0 {
		return fmt.Errorf("%w: tier size %d must be positive", ErrInvalidTier, size)
	}
	if c.Radius < 1 {
		return fmt.Errorf("%w: tier %d radius %d must be at least 1", ErrInvalidTier, size, c.Radius)
	}
	if c.MaxVisibleHeight <= 0 {
		return fmt.Errorf("%w: tier %d max visible height must be positive", ErrInvalidTier, size)
	}
	return nil
}

func (t Tiers) Validate() error {
	for size, c := range t {
		if err := c.Validate(size); err != nil {
			return err
		}
	}
	return nil
}

func (t Tiers) Clone() Tiers {
	out := make(Tiers, len(t))
	for size, c := range t {
		out[size] = c
	}
	return out
}

// Sizes returns tier sizes in ascending order.
func (t Tiers) Sizes() []int64 {
	sizes := make([]int64, 0, len(t))
	for size := range t {
		sizes = append(sizes, size)
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] < sizes[j] })
	return sizes
}
