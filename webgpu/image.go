package webgpu

import (
	"errors"
	"fmt"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/openfluke/kdispatch/layout"
)

var errNoBuffer = errors.New("webgpu: nil buffer")

// imageBytes is the size of a packed RGBA image of shape and dt.
func imageBytes(shape layout.ImageShape, dt layout.ElementType) (uint64, error) {
	if dt.Size() == 0 {
		return 0, fmt.Errorf("%w: %s image", layout.ErrUnsupportedType, dt)
	}
	if shape.Width() <= 0 || shape.Height() <= 0 {
		return 0, fmt.Errorf("%w: image %v", layout.ErrInvalidShape, shape)
	}
	return uint64(shape.Width()) * uint64(shape.Height()) * 4 * uint64(dt.Size()), nil
}

// UploadImage creates a storage buffer holding the texels of img, in the
// order PackImage laid them out.
func UploadImage(img *layout.Image, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	want, err := imageBytes(img.Shape, img.Type)
	if err != nil {
		return nil, err
	}
	if uint64(len(img.Data)) != want {
		return nil, fmt.Errorf("%w: %d bytes for %v %s image", layout.ErrInvalidShape, len(img.Data), img.Shape, img.Type)
	}
	c, err := GetContext()
	if err != nil {
		return nil, err
	}
	buf, err := c.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    fmt.Sprintf("image_%dx%d_%s", img.Shape.Width(), img.Shape.Height(), img.Type),
		Contents: img.Data,
		Usage:    usage | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	return buf, nil
}

// DownloadImage reads buf back as an image of shape and dt once every
// submitted launch has finished. Texel then decodes float32 or float16
// channels alike.
func DownloadImage(buf *wgpu.Buffer, shape layout.ImageShape, dt layout.ElementType) (*layout.Image, error) {
	size, err := imageBytes(shape, dt)
	if err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, errNoBuffer
	}
	if buf.GetSize() < size {
		return nil, fmt.Errorf("%w: buffer holds %d bytes, image needs %d", layout.ErrInvalidShape, buf.GetSize(), size)
	}
	c, err := GetContext()
	if err != nil {
		return nil, err
	}
	data, err := readBack(c, buf, size)
	if err != nil {
		return nil, err
	}
	return &layout.Image{Shape: shape, Type: dt, Data: data}, nil
}

// readBack copies the first size bytes of buf through a mappable buffer.
func readBack(c *Context, buf *wgpu.Buffer, size uint64) ([]byte, error) {
	staging, err := c.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "image_readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("readback buffer: %w", err)
	}
	defer staging.Destroy()

	enc, err := c.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("readback encoder: %w", err)
	}
	enc.CopyBufferToBuffer(buf, 0, staging, 0, size)
	cmd, err := enc.Finish(nil)
	enc.Release()
	if err != nil {
		return nil, fmt.Errorf("readback command: %w", err)
	}
	c.Queue.Submit(cmd)
	cmd.Release()

	var status wgpu.BufferMapAsyncStatus
	mapped := false
	if err := staging.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status, mapped = s, true
	}); err != nil {
		return nil, fmt.Errorf("readback map: %w", err)
	}
	// Blocks until the copy and the map request have been processed.
	c.Device.Poll(true, nil)
	if !mapped {
		return nil, errors.New("webgpu: readback map did not complete")
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("webgpu: readback map status %v", status)
	}

	out := make([]byte, size)
	copy(out, staging.GetMappedRange(0, uint(size)))
	staging.Unmap()
	logger.Debug("image read back", "bytes", size)
	return out, nil
}
