// Package dispatch launches prepared kernels with a tuned work-group
// partition.
//
// Every dispatch goes through the tuner: the first time a tuning key is seen
// each candidate partition is timed and the fastest is stored; later
// dispatches replay it. A launch is cut into sub-launches along the
// outermost global axis so that no single submission runs longer than
// MaxKernelExeTime, which keeps mobile GPU watchdogs from resetting the
// device.
//
// The timed launch that decides the split count covers the whole range, so
// on a very large range that first launch can itself exceed the bound. The
// split blocks are floor(outer/S) rows with one extra block for the
// remainder; when S is close to outer that last block can be several times
// larger than the others (13 rows at S=7 leave a block of 6) and may also
// run past the bound.
package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/samber/lo"

	"github.com/openfluke/kdispatch/runtime"
	"github.com/openfluke/kdispatch/tuner"
)

// ErrBadRange is returned for a global range or partition of the wrong shape.
var ErrBadRange = errors.New("invalid dispatch range")

var logger = slog.Default()

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Dispatcher ties a runtime and a tuner together.
type Dispatcher struct {
	Runtime runtime.Runtime
	Tuner   *tuner.Tuner
	// MaxExecMicros is the per-submission bound; zero means MaxKernelExeTime.
	MaxExecMicros float64
}

// NewDispatcher uses the process-wide runtime and tuner.
func NewDispatcher() (*Dispatcher, error) {
	rt, err := runtime.Global()
	if err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	return &Dispatcher{Runtime: rt, Tuner: tuner.Get()}, nil
}

// TuningOrRun2DKernel dispatches kernel over gws on the process-wide runtime.
// lws holds the last known partition and receives the one that ran. When
// future is non-nil it is set up to wait for the dispatch.
func TuningOrRun2DKernel(kernel runtime.Kernel, tuningKey string, gws [2]uint32, lws *[]uint32, future *StatsFuture) error {
	d, err := NewDispatcher()
	if err != nil {
		return err
	}
	return d.Run2D(kernel, tuningKey, gws, lws, future)
}

// TuningOrRun3DKernel is TuningOrRun2DKernel for a 3-D range.
func TuningOrRun3DKernel(kernel runtime.Kernel, tuningKey string, gws [3]uint32, lws *[]uint32, future *StatsFuture) error {
	d, err := NewDispatcher()
	if err != nil {
		return err
	}
	return d.Run3D(kernel, tuningKey, gws, lws, future)
}

// Run2D is TuningOrRun2DKernel on d's runtime and tuner.
func (d *Dispatcher) Run2D(kernel runtime.Kernel, tuningKey string, gws [2]uint32, lws *[]uint32, future *StatsFuture) error {
	return d.run(kernel, tuningKey, gws[:], lws, future)
}

// Run3D is TuningOrRun3DKernel on d's runtime and tuner.
func (d *Dispatcher) Run3D(kernel runtime.Kernel, tuningKey string, gws [3]uint32, lws *[]uint32, future *StatsFuture) error {
	return d.run(kernel, tuningKey, gws[:], lws, future)
}

func (d *Dispatcher) axisLimits() []uint32 {
	if l, ok := d.Runtime.(runtime.WorkItemLimiter); ok {
		return l.MaxWorkItemSizes()
	}
	return nil
}

func (d *Dispatcher) run(kernel runtime.Kernel, key string, gws []uint32, lws *[]uint32, future *StatsFuture) error {
	if slices.Contains(gws, 0) {
		return fmt.Errorf("%w: global %v", ErrBadRange, gws)
	}
	tu := d.Tuner
	if tu == nil {
		tu = tuner.Get()
	}
	dims := len(gws)
	kwg := d.Runtime.KernelMaxWorkGroupSize(kernel)
	limits := d.axisLimits()

	var slot []uint32
	if lws != nil {
		slot = *lws
	}
	if len(slot) != dims+1 {
		resized := make([]uint32, dims+1)
		copy(resized, slot)
		slot = resized
	}
	// The caller's partition is the fallback when nothing is stored and the
	// tuner does not sweep; fill it with the greedy shape if unset.
	if slices.Contains(slot[:dims], 0) {
		copy(slot, fit(greedy(gws, max(kwg, 1)), max(kwg, 1), limits))
	}

	launcher := NewLauncher(d.Runtime.CommandQueue(), kernel, gws, d.MaxExecMicros)
	generate := func() [][]uint32 {
		cands, _ := Candidates(gws, kwg, limits)
		return lo.Map(cands, func(p Partition, _ int) []uint32 { return p })
	}
	execute := func(params []uint32, t tuner.Timer) error {
		return launcher.Launch(params, t)
	}

	err := tu.TuneOrRun(key, slot, generate, execute, launcher.Timer())
	if lws != nil {
		*lws = slot
	}
	if err != nil {
		logger.Error("dispatch failed", "kernel", kernel.Name(), "key", key, "global", gws, "error", err)
		return err
	}

	if future != nil {
		future.WaitFn = waitOn(launcher.Event())
	}
	return nil
}
