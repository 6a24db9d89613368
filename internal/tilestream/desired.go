package tilestream

import (
	"math"

	"github.com/golang/geo/r3"
)

// DesiredSet is an immutable snapshot of the tiles that should be resident
// for one camera position.
type DesiredSet struct {
	Generation uint64

	keys    []Key
	members map[Key]struct{}
}

func newDesiredSet(keys []Key) *DesiredSet {
	members := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		members[k] = struct{}{}
	}
	return &DesiredSet{keys: keys, members: members}
}

func (d *DesiredSet) Contains(k Key) bool {
	if d == nil {
		return false
	}
	_, ok := d.members[k]
	return ok
}

// Keys returns the keys in fetch-initiation order. The slice must not be modified.
func (d *DesiredSet) Keys() []Key {
	if d == nil {
		return nil
	}
	return d.keys
}

func (d *DesiredSet) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// ComputeDesiredKeys unions the neighbourhoods of every tier visible from
// pos. Tiers are visited in ascending size so the result is deterministic.
func ComputeDesiredKeys(b Bounds, pos r3.Vector, tiers Tiers) *DesiredSet {
	var keys []Key
	if !finite(pos) {
		return newDesiredSet(keys)
	}
	for _, size := range tiers.Sizes() {
		tier := tiers[size]
		if pos.Z > tier.MaxVisibleHeight {
			continue
		}
		keys = append(keys, KeysAround(b, pos.X, pos.Y, size, tier.Radius)...)
	}
	return newDesiredSet(keys)
}

func finite(v r3.Vector) bool {
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
