package main

import (
	"fmt"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/openfluke/kdispatch/layout"
	"github.com/openfluke/kdispatch/webgpu"
)

// fillKernel writes index+1 into every element of the range, so a read back
// shows whether the split sub-launches covered it exactly. The elements live
// in a float32 argument image, four per texel.
type fillKernel struct {
	*webgpu.Kernel
	buf   *wgpu.Buffer
	shape layout.ImageShape
	items int
}

func newFillKernel(gws []uint32) (*fillKernel, error) {
	g := [3]uint32{1, 1, 1}
	copy(g[:], gws)
	items := int(g[0]) * int(g[1]) * int(g[2])

	img, err := layout.PackImage(make([]float32, items), layout.Shape{int64(items)}, layout.Argument, layout.Float32)
	if err != nil {
		return nil, err
	}
	buf, err := webgpu.UploadImage(img, wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	source := func(local [3]uint32) string {
		return fmt.Sprintf(`@group(0) @binding(0) var<storage, read_write> dst : array<f32>;

%s
fn main(@builtin(global_invocation_id) gid : vec3<u32>) {
	let e = dispatch_range.extent.xyz;
	if (gid.x >= e.x || gid.y >= e.y || gid.z >= e.z) { return; }
	let p = gid + dispatch_range.offset.xyz;
	let i = (p.z * %du + p.y) * %du + p.x;
	dst[i] = f32(i) + 1.0;
}
`, webgpu.WorkgroupSize(local), g[1], g[0])
	}
	return &fillKernel{
		Kernel: webgpu.NewKernel("fill", source, webgpu.Binding{Buffer: buf}),
		buf:    buf,
		shape:  img.Shape,
		items:  items,
	}, nil
}

// Verify reads the image back and checks every element was written once.
func (f *fillKernel) Verify() error {
	img, err := webgpu.DownloadImage(f.buf, f.shape, layout.Float32)
	if err != nil {
		return err
	}
	for i := 0; i < f.items; i++ {
		if v := img.Texel(i/4, 0)[i%4]; v != float32(i)+1 {
			return fmt.Errorf("element %d not covered: got %v", i, v)
		}
	}
	return nil
}

func (f *fillKernel) Release() {
	f.Kernel.Release()
	f.buf.Destroy()
}
