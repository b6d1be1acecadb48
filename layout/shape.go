// Package layout maps tensors onto the 2-D RGBA images that the GPU kernels
// read and write. Four channels share one texel, so every image extent below
// rounds the packed axis up to a multiple of four.
package layout

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	ErrInvalidShape    = errors.New("invalid tensor shape")
	ErrUnsupportedRole = errors.New("unsupported buffer role")
	ErrUnsupportedType = errors.New("unsupported data type")
)

var logger = slog.Default()

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Shape is a tensor shape.
type Shape []int64

// ImageShape is the (width, height) extent of a 2-D image.
type ImageShape [2]int

func (s ImageShape) Width() int  { return s[0] }
func (s ImageShape) Height() int { return s[1] }

// BufferRole tells how a tensor is stored as an image.
type BufferRole int

const (
	Activation BufferRole = iota // NHWC
	Filter                       // HWIO
	Argument                     // 1-D
)

func (r BufferRole) String() string {
	switch r {
	case Activation:
		return "activation"
	case Filter:
		return "filter"
	case Argument:
		return "argument"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Rank is the number of extents a tensor of this role must have.
func (r BufferRole) Rank() int {
	switch r {
	case Activation, Filter:
		return 4
	case Argument:
		return 1
	default:
		return -1
	}
}

// RoundUp rounds v up to a multiple of factor.
func RoundUp(v, factor int64) int64 { return (v + factor - 1) / factor * factor }

// RoundUpDiv4 is ceil(v/4), the texel count for v channels.
func RoundUpDiv4(v int64) int64 { return (v + 3) / 4 }

func checkShape(shape Shape, role BufferRole) error {
	if len(shape) != role.Rank() {
		return fmt.Errorf("%w: %s wants %d extents, got %v", ErrInvalidShape, role, role.Rank(), shape)
	}
	for _, d := range shape {
		if d < 0 {
			return fmt.Errorf("%w: negative extent in %v", ErrInvalidShape, shape)
		}
	}
	return nil
}

// CalInOutputImageShape maps NHWC to [ceil(C/4)*W, N*H].
func CalInOutputImageShape(shape Shape) (ImageShape, error) {
	if err := checkShape(shape, Activation); err != nil {
		return ImageShape{}, err
	}
	return ImageShape{
		int(RoundUpDiv4(shape[3]) * shape[2]),
		int(shape[0] * shape[1]),
	}, nil
}

// CalFilterImageShape maps HWIO to [H*W*RoundUp(I,4), ceil(O/4)].
func CalFilterImageShape(shape Shape) (ImageShape, error) {
	if err := checkShape(shape, Filter); err != nil {
		return ImageShape{}, err
	}
	return ImageShape{
		int(shape[0] * shape[1] * RoundUp(shape[2], 4)),
		int(RoundUpDiv4(shape[3])),
	}, nil
}

// CalArgImageShape maps [S] to [ceil(S/4), 1].
func CalArgImageShape(shape Shape) (ImageShape, error) {
	if err := checkShape(shape, Argument); err != nil {
		return ImageShape{}, err
	}
	return ImageShape{int(RoundUpDiv4(shape[0])), 1}, nil
}

// CalImage2DShape picks the mapping for role.
func CalImage2DShape(shape Shape, role BufferRole) (ImageShape, error) {
	var (
		img ImageShape
		err error
	)
	switch role {
	case Filter:
		img, err = CalFilterImageShape(shape)
	case Activation:
		img, err = CalInOutputImageShape(shape)
	case Argument:
		img, err = CalArgImageShape(shape)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedRole, role)
	}
	if err != nil {
		logger.Error("image shape", "role", role.String(), "shape", []int64(shape), "error", err)
		return ImageShape{}, err
	}
	return img, nil
}
