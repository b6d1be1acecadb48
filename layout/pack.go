package layout

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// Image is a host copy of a packed RGBA image, row-major, four channels per
// texel, little-endian elements.
type Image struct {
	Shape ImageShape
	Type  ElementType
	Data  []byte
}

func (m *Image) texelOffset(x, y int) int {
	return (y*m.Shape.Width() + x) * 4 * m.Type.Size()
}

func (m *Image) set(x, y, ch int, v float32) {
	off := m.texelOffset(x, y) + ch*m.Type.Size()
	switch m.Type {
	case Float16:
		binary.LittleEndian.PutUint16(m.Data[off:], float16.Fromfloat32(v).Bits())
	default:
		binary.LittleEndian.PutUint32(m.Data[off:], math.Float32bits(v))
	}
}

// Texel reads the four channels at (x, y).
func (m *Image) Texel(x, y int) [4]float32 {
	var out [4]float32
	size := m.Type.Size()
	base := m.texelOffset(x, y)
	for ch := range out {
		off := base + ch*size
		switch m.Type {
		case Float16:
			out[ch] = float16.Frombits(binary.LittleEndian.Uint16(m.Data[off:])).Float32()
		default:
			out[ch] = math.Float32frombits(binary.LittleEndian.Uint32(m.Data[off:]))
		}
	}
	return out
}

// PackImage lays a host tensor out the way the image kernels expect it.
// Texels past the end of the packed axis are zero.
func PackImage(data []float32, shape Shape, role BufferRole, dt ElementType) (*Image, error) {
	if dt.Size() == 0 {
		return nil, unsupported("PackImage", dt)
	}
	img, err := CalImage2DShape(shape, role)
	if err != nil {
		return nil, err
	}
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	if int64(len(data)) != n {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrInvalidShape, len(data), shape)
	}

	m := &Image{
		Shape: img,
		Type:  dt,
		Data:  make([]byte, img.Width()*img.Height()*4*dt.Size()),
	}

	switch role {
	case Activation:
		N, H, W, C := int(shape[0]), int(shape[1]), int(shape[2]), int(shape[3])
		for b := 0; b < N; b++ {
			for h := 0; h < H; h++ {
				for w := 0; w < W; w++ {
					for c := 0; c < C; c++ {
						v := data[((b*H+h)*W+w)*C+c]
						m.set((c/4)*W+w, b*H+h, c%4, v)
					}
				}
			}
		}
	case Filter:
		H, W, I, O := int(shape[0]), int(shape[1]), int(shape[2]), int(shape[3])
		stride := int(RoundUp(int64(I), 4))
		for h := 0; h < H; h++ {
			for w := 0; w < W; w++ {
				for i := 0; i < I; i++ {
					for o := 0; o < O; o++ {
						v := data[((h*W+w)*I+i)*O+o]
						m.set((h*W+w)*stride+i, o/4, o%4, v)
					}
				}
			}
		}
	case Argument:
		for i, v := range data {
			m.set(i/4, 0, i%4, v)
		}
	}
	return m, nil
}
