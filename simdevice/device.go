// Package simdevice is an in-process device with a virtual clock. It checks
// launches the way a driver would, charges each one a modelled cost, and
// records what was submitted. Tests and the CLI use it where no GPU is
// available.
package simdevice

import (
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/openfluke/kdispatch/runtime"
)

// Kernel is a named kernel. MaxWorkGroupSize, when set, lowers the device
// limit for this kernel the way register pressure does on real hardware.
type Kernel struct {
	KernelName       string
	MaxWorkGroupSize uint32
}

// Name returns KernelName.
func (k *Kernel) Name() string { return k.KernelName }

// Launch is one recorded submission.
type Launch struct {
	Kernel string
	Offset []uint32
	Global []uint32
	Local  []uint32
	Stats  runtime.CallStats
}

// CostFunc models the execution time of one submission.
type CostFunc func(offset, global, local []uint32) time.Duration

// FailFunc may reject the n-th submission (zero based) with a status.
type FailFunc func(n int, global, local []uint32) runtime.Status

// Device implements runtime.Runtime and runtime.CommandQueue.
type Device struct {
	MaxWorkGroupSize uint32
	WorkItemSizes    []uint32
	Cost             CostFunc
	Fail             FailFunc

	mu       sync.Mutex
	clock    uint64
	launches []Launch
}

// New returns a device with the given work-group limit and the default cost
// model.
func New(maxWorkGroupSize uint32) *Device {
	return &Device{MaxWorkGroupSize: maxWorkGroupSize}
}

// Install makes d the process-wide runtime.
func (d *Device) Install() {
	runtime.SetFactory(func() (runtime.Runtime, error) { return d, nil })
}

// KernelMaxWorkGroupSize is the device limit, lowered by the kernel's own
// MaxWorkGroupSize when that is set.
func (d *Device) KernelMaxWorkGroupSize(k runtime.Kernel) uint32 {
	kwg := d.MaxWorkGroupSize
	if sk, ok := k.(*Kernel); ok && sk.MaxWorkGroupSize > 0 && sk.MaxWorkGroupSize < kwg {
		kwg = sk.MaxWorkGroupSize
	}
	return kwg
}

// MaxWorkItemSizes returns the per-axis limits; nil means unlimited.
func (d *Device) MaxWorkItemSizes() []uint32 { return slices.Clone(d.WorkItemSizes) }

// CommandQueue returns d; the device is its own in-order queue.
func (d *Device) CommandQueue() runtime.CommandQueue { return d }

func (d *Device) check(k runtime.Kernel, offset, global, local []uint32) runtime.Status {
	dims := len(global)
	if dims == 0 || dims > 3 || len(local) != dims || (offset != nil && len(offset) != dims) {
		return runtime.InvalidWorkDimension
	}
	if slices.Contains(global, 0) {
		return runtime.InvalidGlobalWorkSize
	}
	if slices.Contains(local, 0) {
		return runtime.InvalidWorkGroupSize
	}
	if lo.Reduce(local, func(acc uint64, v uint32, _ int) uint64 { return acc * uint64(v) }, uint64(1)) >
		uint64(d.KernelMaxWorkGroupSize(k)) {
		return runtime.InvalidWorkGroupSize
	}
	for i, l := range local {
		if i < len(d.WorkItemSizes) && d.WorkItemSizes[i] > 0 && l > d.WorkItemSizes[i] {
			return runtime.InvalidWorkItemSize
		}
	}
	return runtime.Success
}

// EnqueueNDRange checks and records the launch and advances the clock.
func (d *Device) EnqueueNDRange(k runtime.Kernel, offset, global, local []uint32) (runtime.Event, runtime.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if st := d.check(k, offset, global, local); st != runtime.Success {
		return nil, st
	}
	if d.Fail != nil {
		if st := d.Fail(len(d.launches), global, local); st != runtime.Success {
			return nil, st
		}
	}
	if offset == nil {
		offset = make([]uint32, len(global))
	}

	cost := d.Cost
	if cost == nil {
		cost = DefaultCost
	}
	dur := cost(offset, global, local)
	if dur < 0 {
		dur = 0
	}
	stats := runtime.CallStats{
		QueuedNanos: d.clock,
		SubmitNanos: d.clock,
		StartNanos:  d.clock,
		EndNanos:    d.clock + uint64(dur.Nanoseconds()),
	}
	d.clock = stats.EndNanos

	d.launches = append(d.launches, Launch{
		Kernel: k.Name(),
		Offset: slices.Clone(offset),
		Global: slices.Clone(global),
		Local:  slices.Clone(local),
		Stats:  stats,
	})
	return &event{stats: stats}, runtime.Success
}

// Launches returns a copy of everything submitted so far.
func (d *Device) Launches() []Launch {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.launches)
}

// Reset forgets recorded launches and rewinds the clock.
func (d *Device) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.launches = nil
	d.clock = 0
}

// Now is the virtual clock in nanoseconds.
func (d *Device) Now() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clock
}

type event struct {
	stats runtime.CallStats
}

// Wait returns at once: the virtual queue finishes work as it is enqueued.
func (e *event) Wait() error                       { return nil }
func (e *event) Stats() (runtime.CallStats, error) { return e.stats, nil }
