package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidTierSpec = errors.New("invalid tier spec")

type TierSpec struct {
	Size             int64
	Radius           int
	MaxVisibleHeight float64
}

// ParseTiers parses "size:radius:maxHeight" entries separated by commas.
func ParseTiers(s string) ([]TierSpec, error) {
	var specs []TierSpec
	seen := make(map[int64]bool)

	for _, raw := range strings.Split(s, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		parts := strings.Split(raw, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w %q: expected size:radius:maxHeight", ErrInvalidTierSpec, raw)
		}

		size, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil || size <= 0 {
			return nil, fmt.Errorf("%w %q: size must be a positive integer", ErrInvalidTierSpec, raw)
		}

		radius, err := strconv.Atoi(parts[1])
		if err != nil || radius < 1 {
			return nil, fmt.Errorf("%w %q: radius must be at least 1", ErrInvalidTierSpec, raw)
		}

		height, err := strconv.ParseFloat(parts[2], 64)
		if err != nil || height <= 0 {
			return nil, fmt.Errorf("%w %q: max height must be positive", ErrInvalidTierSpec, raw)
		}

		if seen[size] {
			return nil, fmt.Errorf("%w %q: duplicate tier size %d", ErrInvalidTierSpec, raw, size)
		}
		seen[size] = true

		specs = append(specs, TierSpec{
			Size:             size,
			Radius:           radius,
			MaxVisibleHeight: height,
		})
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: at least one tier is required", ErrInvalidTierSpec)
	}

	return specs, nil
}
