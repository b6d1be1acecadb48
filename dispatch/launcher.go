package dispatch

import (
	"fmt"
	"slices"

	"github.com/openfluke/kdispatch/runtime"
	"github.com/openfluke/kdispatch/tuner"
)

// Launcher submits one kernel over a fixed global range, split along the
// outermost axis.
type Launcher struct {
	Queue  runtime.CommandQueue
	Kernel runtime.Kernel
	Global []uint32
	// MaxExecMicros is the per-submission bound; zero means MaxKernelExeTime.
	MaxExecMicros float64

	slot eventSlot
}

// NewLauncher returns a launcher for kernel over global on q.
func NewLauncher(q runtime.CommandQueue, kernel runtime.Kernel, global []uint32, maxExecMicros float64) *Launcher {
	return &Launcher{
		Queue:         q,
		Kernel:        kernel,
		Global:        slices.Clone(global),
		MaxExecMicros: maxExecMicros,
	}
}

// Event is the event of the last submission, nil before the first.
func (l *Launcher) Event() runtime.Event { return l.slot.ev }

// Timer returns a profiling timer reading this launcher's events.
func (l *Launcher) Timer() *ProfilingTimer { return newProfilingTimer(&l.slot) }

func (l *Launcher) limit() float64 {
	if l.MaxExecMicros > 0 {
		return l.MaxExecMicros
	}
	return MaxKernelExeTime
}

// Launch runs the kernel with partition p.
//
// With a timer it first runs the whole range once, derives the split count
// from the measured time and stores it in p, then runs the split launches
// accumulating their time into the timer. Without a timer it runs the split
// launches using the count already stored in p.
func (l *Launcher) Launch(p Partition, t tuner.Timer) error {
	d := len(l.Global)
	if d == 0 || len(p) != d+1 {
		return fmt.Errorf("%w: partition %v for %d-D range", ErrBadRange, []uint32(p), d)
	}
	local := p.Local()
	outer := l.Global[d-1]

	splits := p.Splits()
	if t != nil {
		t.StartTiming()
		if err := l.enqueue(make([]uint32, d), l.Global, local); err != nil {
			return err
		}
		t.StopTiming()
		elapsed := t.ElapsedMicros()
		t.ClearTiming()
		splits = SplitCount(elapsed, l.limit(), outer)
		p[d] = splits
		logger.Debug("measured launch", "kernel", l.Kernel.Name(), "local", local,
			"micros", elapsed, "splits", splits)
	}

	offset := make([]uint32, d)
	size := slices.Clone(l.Global)
	for _, r := range SubRanges(outer, splits) {
		offset[d-1] = r.Offset
		size[d-1] = r.Size
		if err := l.enqueue(offset, size, local); err != nil {
			return err
		}
		if t != nil {
			t.AccumulateTiming()
		}
	}
	return nil
}

func (l *Launcher) enqueue(offset, global, local []uint32) error {
	ev, st := l.Queue.EnqueueNDRange(l.Kernel, offset, global, local)
	if st != runtime.Success {
		err := &runtime.SubmissionError{
			Code:   st,
			Kernel: l.Kernel.Name(),
			Offset: slices.Clone(offset),
			Global: slices.Clone(global),
			Local:  slices.Clone(local),
		}
		logger.Error("enqueue failed", "kernel", l.Kernel.Name(), "code", int32(st),
			"status", st.String(), "offset", offset, "global", global, "local", local)
		return err
	}
	l.slot.ev = ev
	return nil
}
