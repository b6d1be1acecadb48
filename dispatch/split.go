package dispatch

import "math"

// MaxKernelExeTime bounds a single submission, in microseconds. Mobile
// drivers reset the GPU when one kernel runs past their watchdog interval.
const MaxKernelExeTime = 1000.0

// SplitCount is how many sub-launches a launch that took elapsed µs needs so
// that each stays under limit µs: floor(elapsed/limit)+1, at most outer.
// A launch that already fits (elapsed <= limit) is not split.
func SplitCount(elapsed, limit float64, outer uint32) uint32 {
	if outer <= 1 || limit <= 0 || elapsed <= limit || math.IsNaN(elapsed) {
		return 1
	}
	q := math.Floor(elapsed / limit)
	if q+1 >= float64(outer) {
		return outer
	}
	return uint32(q) + 1
}

// SubRange is one slice of the outermost axis.
type SubRange struct {
	Offset uint32
	Size   uint32
}

// SubRanges cuts [0, outer) into blocks of floor(outer/splits). When splits
// does not divide outer, one more block holds the remainder, so the result
// has splits or splits+1 entries.
func SubRanges(outer, splits uint32) []SubRange {
	if outer == 0 {
		return nil
	}
	if splits == 0 {
		splits = 1
	}
	if splits > outer {
		splits = outer
	}
	block := outer / splits
	n := splits
	if outer%splits != 0 {
		n++
	}
	out := make([]SubRange, n)
	for i := uint32(0); i < n; i++ {
		size := block
		if i == n-1 {
			size = outer - i*block
		}
		out[i] = SubRange{Offset: i * block, Size: size}
	}
	return out
}
