package webgpu

import (
	"fmt"
	"strings"
	"sync"

	"github.com/openfluke/webgpu/wgpu"
)

// Prelude is prepended to every kernel source. A launch over a sub-range
// sees its origin in dispatch_range.offset and its size in
// dispatch_range.extent; invocations past the extent must return early.
const Prelude = `struct DispatchRange {
	offset : vec4<u32>,
	extent : vec4<u32>,
};
@group(1) @binding(0) var<uniform> dispatch_range : DispatchRange;

`

const rangeUniformSize = 32

// Binding is one storage buffer of group(0), bound at its index.
type Binding struct {
	Buffer   *wgpu.Buffer
	ReadOnly bool
}

// Kernel is a WGSL compute entry point named "main". Source receives the
// local size and returns the shader text after the Prelude, typically via
// WorkgroupSize.
type Kernel struct {
	Label    string
	Source   func(local [3]uint32) string
	Bindings []Binding

	mu        sync.Mutex
	layout    *wgpu.PipelineLayout
	bgls      [2]*wgpu.BindGroupLayout
	bindGroup *wgpu.BindGroup
	rangeBuf  *wgpu.Buffer
	rangeBG   *wgpu.BindGroup
	pipelines map[[3]uint32]*wgpu.ComputePipeline
}

// NewKernel returns a kernel binding buffers to group(0) in order.
func NewKernel(label string, source func(local [3]uint32) string, bindings ...Binding) *Kernel {
	return &Kernel{Label: label, Source: source, Bindings: bindings}
}

// Name is the label used for pipelines and logs.
func (k *Kernel) Name() string { return k.Label }

// WorkgroupSize renders the compute attribute for a local size.
func WorkgroupSize(local [3]uint32) string {
	return fmt.Sprintf("@compute @workgroup_size(%d, %d, %d)", local[0], local[1], local[2])
}

// ShaderCode is the full WGSL module compiled for a local size.
func (k *Kernel) ShaderCode(local [3]uint32) string {
	var b strings.Builder
	b.WriteString(Prelude)
	b.WriteString(k.Source(local))
	return b.String()
}

// rangeWords is the dispatch_range uniform contents.
func rangeWords(offset, extent [3]uint32) []uint32 {
	return []uint32{offset[0], offset[1], offset[2], 0, extent[0], extent[1], extent[2], 0}
}

// build creates the layouts, bind groups and the range uniform once.
func (k *Kernel) build(c *Context) error {
	if k.layout != nil {
		return nil
	}

	entries := make([]wgpu.BindGroupLayoutEntry, len(k.Bindings))
	bgEntries := make([]wgpu.BindGroupEntry, len(k.Bindings))
	for i, b := range k.Bindings {
		typ := wgpu.BufferBindingTypeStorage
		if b.ReadOnly {
			typ = wgpu.BufferBindingTypeReadOnlyStorage
		}
		entries[i] = wgpu.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: wgpu.ShaderStageCompute,
			Buffer:     wgpu.BufferBindingLayout{Type: typ},
		}
		bgEntries[i] = wgpu.BindGroupEntry{Binding: uint32(i), Buffer: b.Buffer, Offset: 0, Size: b.Buffer.GetSize()}
	}

	var err error
	k.bgls[0], err = c.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   k.Label + "_bgl",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("bind group layout: %w", err)
	}
	k.bgls[1], err = c.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: k.Label + "_range_bgl",
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}},
		},
	})
	if err != nil {
		return fmt.Errorf("range bind group layout: %w", err)
	}

	k.rangeBuf, err = c.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: k.Label + "_range",
		Size:  rangeUniformSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("range buffer: %w", err)
	}

	k.bindGroup, err = c.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout:  k.bgls[0],
		Entries: bgEntries,
	})
	if err != nil {
		return fmt.Errorf("bind group: %w", err)
	}
	k.rangeBG, err = c.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: k.bgls[1],
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: k.rangeBuf, Offset: 0, Size: rangeUniformSize},
		},
	})
	if err != nil {
		return fmt.Errorf("range bind group: %w", err)
	}

	k.layout, err = c.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            k.Label + "_layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{k.bgls[0], k.bgls[1]},
	})
	if err != nil {
		return fmt.Errorf("pipeline layout: %w", err)
	}
	k.pipelines = map[[3]uint32]*wgpu.ComputePipeline{}
	return nil
}

// pipeline returns the compute pipeline for a local size, compiling it on
// first use.
func (k *Kernel) pipeline(c *Context, local [3]uint32) (*wgpu.ComputePipeline, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.build(c); err != nil {
		return nil, err
	}
	if p, ok := k.pipelines[local]; ok {
		return p, nil
	}

	shader, err := c.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          k.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: k.ShaderCode(local)},
	})
	if err != nil {
		return nil, fmt.Errorf("shader compile: %v", err)
	}
	defer shader.Release()

	p, err := c.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  fmt.Sprintf("%s_%dx%dx%d", k.Label, local[0], local[1], local[2]),
		Layout: k.layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     shader,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: %v", err)
	}
	k.pipelines[local] = p
	logger.Debug("compiled pipeline", "kernel", k.Label, "local", local)
	return p, nil
}

// Release frees every GPU object the kernel created. Bound buffers belong to
// the caller.
func (k *Kernel) Release() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, p := range k.pipelines {
		p.Release()
	}
	k.pipelines = nil
	if k.bindGroup != nil {
		k.bindGroup.Release()
		k.bindGroup = nil
	}
	if k.rangeBG != nil {
		k.rangeBG.Release()
		k.rangeBG = nil
	}
	if k.rangeBuf != nil {
		k.rangeBuf.Destroy()
		k.rangeBuf = nil
	}
	if k.layout != nil {
		k.layout.Release()
		k.layout = nil
	}
	for i, l := range k.bgls {
		if l != nil {
			l.Release()
			k.bgls[i] = nil
		}
	}
}
