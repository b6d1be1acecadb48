package webgpu

import (
	"errors"
	"sync"
	"time"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/openfluke/kdispatch/detector"
	"github.com/openfluke/kdispatch/runtime"
)

var errNotWaited = errors.New("webgpu: event stats read before Wait")

var epoch = time.Now()

func nowNanos() uint64 { return uint64(time.Since(epoch)) }

// Runtime submits Kernels to the context device.
type Runtime struct {
	ctx *Context
}

// New returns a runtime on the process GPU context, creating it if needed.
func New() (*Runtime, error) {
	c, err := GetContext()
	if err != nil {
		return nil, err
	}
	return &Runtime{ctx: c}, nil
}

// Install registers the WebGPU backend as the process runtime.
func Install() {
	runtime.SetFactory(func() (runtime.Runtime, error) { return New() })
}

// KernelMaxWorkGroupSize is the device invocation limit; WebGPU does not
// report a per-pipeline value.
func (r *Runtime) KernelMaxWorkGroupSize(runtime.Kernel) uint32 {
	return r.ctx.Limits.MaxComputeInvocationsPerWorkgroup
}

// MaxWorkItemSizes returns the device per-axis work-group limits.
func (r *Runtime) MaxWorkItemSizes() []uint32 { return r.ctx.Limits.WorkItemSizes() }

// CommandQueue returns r; submissions go to the context queue.
func (r *Runtime) CommandQueue() runtime.CommandQueue { return r }

// pad3 widens a 1 to 3 element range, filling missing axes with fill.
func pad3(v []uint32, fill uint32) [3]uint32 {
	out := [3]uint32{fill, fill, fill}
	copy(out[:], v)
	return out
}

// workgroupCounts is ceil(global/local) per axis.
func workgroupCounts(global, local [3]uint32) [3]uint32 {
	var n [3]uint32
	for i := range n {
		n[i] = (global[i] + local[i] - 1) / local[i]
	}
	return n
}

// validate mirrors the NDRange checks of an OpenCL driver against l.
func validate(l detector.Limits, offset, global, local []uint32) runtime.Status {
	d := len(global)
	if d < 1 || d > 3 || len(local) != d || (offset != nil && len(offset) != d) {
		return runtime.InvalidWorkDimension
	}
	items := uint64(1)
	axes := l.WorkItemSizes()
	for i := 0; i < d; i++ {
		if global[i] == 0 {
			return runtime.InvalidGlobalWorkSize
		}
		if local[i] == 0 {
			return runtime.InvalidWorkGroupSize
		}
		if local[i] > axes[i] {
			return runtime.InvalidWorkItemSize
		}
		items *= uint64(local[i])
	}
	if items > uint64(l.MaxComputeInvocationsPerWorkgroup) {
		return runtime.InvalidWorkGroupSize
	}
	groups := workgroupCounts(pad3(global, 1), pad3(local, 1))
	for _, g := range groups {
		if g > l.MaxComputeWorkgroupsPerDimension {
			return runtime.InvalidGlobalWorkSize
		}
	}
	return runtime.Success
}

// EnqueueNDRange writes the sub-range into the kernel's dispatch_range
// uniform and submits one compute pass. The queue is in order, so the
// uniform write lands before this dispatch and after the previous one.
func (r *Runtime) EnqueueNDRange(k runtime.Kernel, offset, global, local []uint32) (runtime.Event, runtime.Status) {
	kern, ok := k.(*Kernel)
	if !ok || kern == nil || kern.Source == nil {
		return nil, runtime.InvalidKernel
	}
	if st := validate(r.ctx.Limits, offset, global, local); st != runtime.Success {
		return nil, st
	}

	queued := nowNanos()
	l3 := pad3(local, 1)
	g3 := pad3(global, 1)
	pipe, err := kern.pipeline(r.ctx, l3)
	if err != nil {
		logger.Error("pipeline build failed", "kernel", kern.Label, "error", err)
		return nil, runtime.InvalidKernel
	}

	r.ctx.Queue.WriteBuffer(kern.rangeBuf, 0, wgpu.ToBytes(rangeWords(pad3(offset, 0), g3)))

	enc, err := r.ctx.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, runtime.OutOfResources
	}
	groups := workgroupCounts(g3, l3)
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(pipe)
	pass.SetBindGroup(0, kern.bindGroup, nil)
	pass.SetBindGroup(1, kern.rangeBG, nil)
	pass.DispatchWorkgroups(groups[0], groups[1], groups[2])
	pass.End()

	cmd, err := enc.Finish(nil)
	enc.Release()
	if err != nil {
		return nil, runtime.OutOfResources
	}
	submitted := nowNanos()
	r.ctx.Queue.Submit(cmd)
	cmd.Release()

	return &event{dev: r.ctx.Device, stats: runtime.CallStats{
		QueuedNanos: queued,
		SubmitNanos: submitted,
		StartNanos:  submitted,
	}}, runtime.Success
}

// event timestamps are host side. Wait blocks until the queue drains, so the
// end time of an early sub-launch includes whatever was queued after it.
type event struct {
	dev   *wgpu.Device
	once  sync.Once
	stats runtime.CallStats
}

func (e *event) Wait() error {
	e.once.Do(func() {
		e.dev.Poll(true, nil)
		e.stats.EndNanos = nowNanos()
	})
	return nil
}

func (e *event) Stats() (runtime.CallStats, error) {
	if e.stats.EndNanos == 0 {
		return e.stats, errNotWaited
	}
	return e.stats, nil
}
