package tilestream

import (
	"math"
	"sort"
)

// KeysAround returns the keys of the (2*radius-1)^2 cells centred on the cell
// containing (x, y), nearest first by Manhattan distance. Cells whose origin
// falls outside b are dropped. A position whose neighbourhood cannot reach
// b, including NaN and infinite coordinates, yields no keys.
func KeysAround(b Bounds, x, y float64, size int64, radius int) []Key {
	if size <= 0 || radius < 1 {
		return nil
	}
	r := int64(radius - 1)

	cx, ok := cellIndex(x, b.XMin, b.XMax, size, r)
	if !ok {
		return nil
	}
	cy, ok := cellIndex(y, b.YMin, b.YMax, size, r)
	if !ok {
		return nil
	}

	type offset struct {
		dx, dy int64
		dist   int64
	}
	offsets := make([]offset, 0, (2*r+1)*(2*r+1))
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			offsets = append(offsets, offset{dx: dx, dy: dy, dist: abs64(dx) + abs64(dy)})
		}
	}
	sort.SliceStable(offsets, func(i, j int) bool {
		return offsets[i].dist < offsets[j].dist
	})

	keys := make([]Key, 0, len(offsets))
	for _, o := range offsets {
		k := Key{
			OriginX: (cx+o.dx)*size + b.XMin,
			OriginY: (cy+o.dy)*size + b.YMin,
			Size:    size,
		}
		if !b.ContainsKey(k) {
			continue
		}
		keys = append(keys, k)
	}

	return keys
}

// cellIndex returns the index of the cell containing v along one axis. It
// fails when no cell within r of it lies in [lo, hi), which keeps the float to
// int64 conversion in range.
func cellIndex(v float64, lo, hi, size, r int64) (int64, bool) {
	f := math.Floor((v - float64(lo)) / float64(size))
	cells := math.Ceil((float64(hi) - float64(lo)) / float64(size))
	if !(f+float64(r) >= 0 && f-float64(r) < cells) {
		return 0, false
	}
	return int64(f), true
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
