package dispatch

import (
	"fmt"

	"github.com/samber/lo"
)

// Partition is a local work size followed by the split count: the number of
// sub-launches along the outermost global axis.
type Partition []uint32

// Dims is the number of local sizes in p.
func (p Partition) Dims() int { return len(p) - 1 }

// Local is the local work size part of p.
func (p Partition) Local() []uint32 { return p[:p.Dims()] }

// Splits is the trailing split count, never less than one.
func (p Partition) Splits() uint32 {
	if len(p) == 0 || p[len(p)-1] == 0 {
		return 1
	}
	return p[len(p)-1]
}

func product(v []uint32) uint64 {
	return lo.Reduce(v, func(acc uint64, x uint32, _ int) uint64 { return acc * uint64(x) }, uint64(1))
}

// greedy saturates K one axis at a time.
func greedy(gws []uint32, k uint32) []uint32 {
	l := make([]uint32, len(gws))
	rest := k
	for i, g := range gws {
		l[i] = min(g, rest)
		if l[i] == 0 {
			l[i] = 1
		}
		rest /= l[i]
		if rest == 0 {
			rest = 1
		}
	}
	return l
}

// table2D and table3D are the fixed shapes swept after the greedy candidate.
func table2D(l []uint32, k uint32) [][]uint32 {
	return [][]uint32{
		{l[1], l[0]},
		{k / 4, 4},
		{k / 16, 16},
		{k / 32, 32},
		{k / 64, 64},
		{k / 128, 128},
		{k / 256, 256},
		{k / 512, 512},
		{k, 1},
		{1, k},
	}
}

func table3D(_ []uint32, k uint32) [][]uint32 {
	return [][]uint32{
		{k / 16, 4, 4},
		{k / 32, 4, 8},
		{k / 32, 8, 4},
		{k / 64, 8, 8},
		{k / 64, 16, 4},
		{k / 128, 8, 16},
		{k / 128, 16, 8},
		{k / 128, 32, 4},
		{1, k / 32, 32},
		{1, k / 64, 64},
		{1, k / 128, 128},
		{3, 15, 9},
		{7, 15, 9},
		{9, 7, 15},
		{15, 7, 9},
		{1, k, 1},
		{4, 15, 8},
	}
}

var tables = map[int]func(l []uint32, k uint32) [][]uint32{
	2: table2D,
	3: table3D,
}

// fit makes local a valid partition for a kernel limited to k work items:
// zero axes become one, axes are clamped to the per-axis limits, and while
// the product is too large the axes are shrunk from the last one backwards.
func fit(local []uint32, k uint32, axisLimits []uint32) Partition {
	d := len(local)
	p := make(Partition, d+1)
	copy(p, local)
	for i := 0; i < d; i++ {
		if p[i] == 0 {
			p[i] = 1
		}
		if i < len(axisLimits) && axisLimits[i] > 0 && p[i] > axisLimits[i] {
			p[i] = axisLimits[i]
		}
	}
	for i := d - 1; i >= 0 && product(p[:d]) > uint64(k); i-- {
		rest := product(p[:d]) / uint64(p[i])
		p[i] = uint32(max(1, uint64(k)/rest))
	}
	p[d] = 1
	return p
}

// Candidates lists the partitions to sweep for a 2-D or 3-D launch over gws,
// greedy saturation first. axisLimits may be nil.
func Candidates(gws []uint32, k uint32, axisLimits []uint32) ([]Partition, error) {
	table, ok := tables[len(gws)]
	if !ok {
		return nil, fmt.Errorf("%w: %d dimensions", ErrBadRange, len(gws))
	}
	if k == 0 {
		k = 1
	}
	l := greedy(gws, k)
	raw := append([][]uint32{l}, table(l, k)...)
	out := lo.Map(raw, func(local []uint32, _ int) Partition { return fit(local, k, axisLimits) })
	return lo.UniqBy(out, func(p Partition) string { return fmt.Sprint([]uint32(p)) }), nil
}

// Candidates2D is Candidates for a 2-D range.
func Candidates2D(gws [2]uint32, k uint32, axisLimits []uint32) []Partition {
	out, _ := Candidates(gws[:], k, axisLimits)
	return out
}

// Candidates3D is Candidates for a 3-D range.
func Candidates3D(gws [3]uint32, k uint32, axisLimits []uint32) []Partition {
	out, _ := Candidates(gws[:], k, axisLimits)
	return out
}
