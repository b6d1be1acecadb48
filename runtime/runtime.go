// Package runtime describes the device runtime that kernel dispatch talks to:
// kernels, an in-order command queue, and completion events carrying device
// timestamps.
//
// Backends (the WebGPU runtime, the simulated device) implement Runtime and
// register themselves with SetFactory. The rest of the module only ever sees
// the process-wide instance returned by Global.
package runtime

// Kernel is a compiled kernel with its arguments already bound.
type Kernel interface {
	Name() string
}

// CallStats holds the four device timestamps of one launch, in nanoseconds.
type CallStats struct {
	QueuedNanos uint64
	SubmitNanos uint64
	StartNanos  uint64
	EndNanos    uint64
}

// ElapsedMicros is the execution time between start and end.
func (s CallStats) ElapsedMicros() float64 {
	if s.EndNanos <= s.StartNanos {
		return 0
	}
	return float64(s.EndNanos-s.StartNanos) / 1000.0
}

// Event signals completion of one submission.
type Event interface {
	// Wait blocks until the submission has finished on the device.
	Wait() error
	// Stats returns the launch timestamps. Only meaningful after Wait.
	Stats() (CallStats, error)
}

// CommandQueue is an in-order device queue. EnqueueNDRange returns once the
// command is queued; it does not wait for execution. Implementations must not
// keep the slices they are given.
type CommandQueue interface {
	EnqueueNDRange(k Kernel, offset, global, local []uint32) (Event, Status)
}

// Runtime is the device runtime seen by the dispatch layer.
type Runtime interface {
	// KernelMaxWorkGroupSize is the largest local work size product the
	// device accepts for k.
	KernelMaxWorkGroupSize(k Kernel) uint32
	CommandQueue() CommandQueue
}

// WorkItemLimiter is implemented by runtimes that also bound each local axis
// separately.
type WorkItemLimiter interface {
	MaxWorkItemSizes() []uint32
}
