package dispatch

import (
	"errors"
	"sync/atomic"

	"github.com/openfluke/kdispatch/runtime"
)

// ErrFutureConsumed is returned by a second Wait on the same future.
var ErrFutureConsumed = errors.New("stats future already waited on")

// StatsFuture is filled in by a dispatch and waited on once by the caller.
type StatsFuture struct {
	WaitFn func(stats *runtime.CallStats) error
	used   atomic.Bool
}

// Wait blocks until the dispatch has finished. When stats is non-nil it is
// filled with the timestamps of the final submission.
func (f *StatsFuture) Wait(stats *runtime.CallStats) error {
	if f.WaitFn == nil {
		return nil
	}
	if !f.used.CompareAndSwap(false, true) {
		return ErrFutureConsumed
	}
	return f.WaitFn(stats)
}

// waitOn captures ev by value; the in-order queue makes the final event
// cover every earlier sub-launch.
func waitOn(ev runtime.Event) func(*runtime.CallStats) error {
	return func(stats *runtime.CallStats) error {
		if ev == nil {
			return nil
		}
		if err := ev.Wait(); err != nil {
			return err
		}
		if stats != nil {
			s, err := ev.Stats()
			if err != nil {
				return err
			}
			*stats = s
		}
		return nil
	}
}
