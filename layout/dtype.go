package layout

import "fmt"

// ElementType is the element type of a tensor on the device.
type ElementType int

const (
	Float32 ElementType = iota + 1
	Float16
)

func (t ElementType) String() string {
	switch t {
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	default:
		return fmt.Sprintf("dtype(%d)", int(t))
	}
}

// Size is the element width in bytes, 0 for unknown types.
func (t ElementType) Size() int {
	switch t {
	case Float32:
		return 4
	case Float16:
		return 2
	default:
		return 0
	}
}

// ParseElementType accepts the names printed by String plus the kernel
// spellings "float" and "half".
func ParseElementType(s string) (ElementType, error) {
	switch s {
	case "float32", "float", "f32":
		return Float32, nil
	case "float16", "half", "f16":
		return Float16, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedType, s)
}

func unsupported(fn string, t ElementType) error {
	err := fmt.Errorf("%w: %s for %s", ErrUnsupportedType, t, fn)
	logger.Error("data type", "fn", fn, "dtype", int(t), "error", err)
	return err
}

// DtToCLDt is the kernel source spelling of t.
func DtToCLDt(t ElementType) (string, error) {
	switch t {
	case Float32:
		return "float", nil
	case Float16:
		return "half", nil
	}
	return "", unsupported("DtToCLDt", t)
}

// DtToCLCMDDt is the suffix of the image read/write builtins for t.
func DtToCLCMDDt(t ElementType) (string, error) {
	switch t {
	case Float32:
		return "f", nil
	case Float16:
		return "h", nil
	}
	return "", unsupported("DtToCLCMDDt", t)
}

// DtToUpstreamCLDt is the accumulator type for t; half accumulates in float.
func DtToUpstreamCLDt(t ElementType) (string, error) {
	switch t {
	case Float32, Float16:
		return "float", nil
	}
	return "", unsupported("DtToUpstreamCLDt", t)
}

// DtToUpstreamCLCMDDt is the builtin suffix matching DtToUpstreamCLDt.
func DtToUpstreamCLCMDDt(t ElementType) (string, error) {
	switch t {
	case Float32, Float16:
		return "f", nil
	}
	return "", unsupported("DtToUpstreamCLCMDDt", t)
}

// DtToWGSLDt is the WGSL scalar type for t.
func DtToWGSLDt(t ElementType) (string, error) {
	switch t {
	case Float32:
		return "f32", nil
	case Float16:
		return "f16", nil
	}
	return "", unsupported("DtToWGSLDt", t)
}
