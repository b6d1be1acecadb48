package dispatch

import "github.com/openfluke/kdispatch/runtime"

// eventSlot holds the event of the most recent submission. The launcher
// overwrites it and the profiling timer reads it.
type eventSlot struct {
	ev runtime.Event
}

// ProfilingTimer times launches with the device timestamps of the event in
// its slot. StartTiming is a no-op: the device records the start itself.
type ProfilingTimer struct {
	slot        *eventSlot
	startNanos  uint64
	stopNanos   uint64
	accumulated float64
}

func newProfilingTimer(slot *eventSlot) *ProfilingTimer {
	return &ProfilingTimer{slot: slot}
}

// StartTiming is a no-op; the event carries its own start time.
func (t *ProfilingTimer) StartTiming() {}

// StopTiming waits for the current event and captures its start and end.
func (t *ProfilingTimer) StopTiming() {
	if t.slot == nil || t.slot.ev == nil {
		return
	}
	if err := t.slot.ev.Wait(); err != nil {
		logger.Warn("profiling wait failed", "error", err)
		return
	}
	stats, err := t.slot.ev.Stats()
	if err != nil {
		logger.Warn("profiling info unavailable", "error", err)
		return
	}
	t.startNanos, t.stopNanos = stats.StartNanos, stats.EndNanos
}

// AccumulateTiming stops and adds the elapsed time to the running total.
func (t *ProfilingTimer) AccumulateTiming() {
	t.StopTiming()
	t.accumulated += t.ElapsedMicros()
}

// ClearTiming resets both the last interval and the total.
func (t *ProfilingTimer) ClearTiming() {
	t.startNanos, t.stopNanos, t.accumulated = 0, 0, 0
}

// ElapsedMicros is the last captured interval.
func (t *ProfilingTimer) ElapsedMicros() float64 {
	if t.stopNanos <= t.startNanos {
		return 0
	}
	return float64(t.stopNanos-t.startNanos) / 1000.0
}

// AccumulatedMicros is the total since the last ClearTiming.
func (t *ProfilingTimer) AccumulatedMicros() float64 { return t.accumulated }
