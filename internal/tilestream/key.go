package tilestream

import (
	"fmt"
	"strconv"
	"strings"
)

// Key identifies one tile: the lower-left world corner of the cell and the
// edge length of its tier.
type Key struct {
	OriginX int64
	OriginY int64
	Size    int64
}

// String returns the canonical "x_y_size" form used in payload URLs.
func (k Key) String() string {
	return fmt.Sprintf("%d_%d_%d", k.OriginX, k.OriginY, k.Size)
}

func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("%w %q: expected x_y_size", ErrInvalidKey, s)
	}

	var vals [3]int64
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return Key{}, fmt.Errorf("%w %q: %v", ErrInvalidKey, s, err)
		}
		vals[i] = v
	}

	k := Key{OriginX: vals[0], OriginY: vals[1], Size: vals[2]}
	if k.Size <= 0 {
		return Key{}, fmt.Errorf("%w %q: size must be positive", ErrInvalidKey, s)
	}
	// rejects non-canonical spellings such as "+1" or "007"
	if k.String() != s {
		return Key{}, fmt.Errorf("%w %q: not in canonical form", ErrInvalidKey, s)
	}

	return k, nil
}

// Bounds is the half-open dataset box [XMin,XMax) x [YMin,YMax).
type Bounds struct {
	XMin int64
	XMax int64
	YMin int64
	YMax int64
}

func (b Bounds) Validate() error {
	if b.XMin >= b.XMax || b.YMin >= b.YMax {
		return fmt.Errorf("%w: empty dataset bounds %+v", ErrInvalidBounds, b)
	}
	return nil
}

func (b Bounds) Contains(x, y int64) bool {
	return x >= b.XMin && x < b.XMax && y >= b.YMin && y < b.YMax
}

func (b Bounds) ContainsKey(k Key) bool {
	return b.Contains(k.OriginX, k.OriginY)
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(b []byte) error {
	parsed, err := ParseKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
