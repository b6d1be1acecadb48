package simdevice

import "time"

// Cost model constants for DefaultCost.
const (
	NanosPerItem   = 2
	LaunchOverhead = 5 * time.Microsecond
	// Work groups narrower than a wavefront leave lanes idle.
	wavefront = 32
)

// DefaultCost charges a fixed overhead plus a per-item rate, slowed down
// when the work group does not fill a wavefront.
func DefaultCost(offset, global, local []uint32) time.Duration {
	items := uint64(1)
	for _, g := range global {
		items *= uint64(g)
	}
	group := uint64(1)
	for _, l := range local {
		group *= uint64(l)
	}
	ns := items * NanosPerItem
	if group < wavefront {
		ns = ns * wavefront / group
	}
	return LaunchOverhead + time.Duration(ns)
}

// PerItem returns a cost model charging a flat rate per work item.
func PerItem(rate time.Duration) CostFunc {
	return func(_, global, _ []uint32) time.Duration {
		items := int64(1)
		for _, g := range global {
			items *= int64(g)
		}
		return time.Duration(items) * rate
	}
}
