package detector

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/openfluke/kdispatch/dispatch"
	"github.com/openfluke/kdispatch/tuner"
)

// EnvAdapter selects an adapter whose name or vendor contains its value.
const EnvAdapter = "KDISPATCH_ADAPTER"

// Reference ranges used for the recommended partitions in a Report.
var (
	Reference2D = [2]uint32{224, 224}
	Reference3D = [3]uint32{56, 56, 64}
)

/* ---------- public API ---------- */

// Report is a portable summary of the current adapter/device caps.
type Report struct {
	WhenISO       string            `json:"when_iso"`
	Runtime       string            `json:"runtime"` // "native" or "wasm" (best-effort)
	Backend       string            `json:"backend"`
	AdapterType   string            `json:"adapter_type"`
	VendorID      string            `json:"vendor_id_hex"`
	DeviceID      string            `json:"device_id_hex"`
	Name          string            `json:"name"`
	Driver        string            `json:"driver"`
	Recommended   Recommendations   `json:"recommended"`
	Limits        Limits            `json:"limits"`
	AdapterLimits Limits            `json:"adapter_limits"`
	Features      []string          `json:"features"`
	Env           map[string]string `json:"env,omitempty"`
}

type Limits struct {
	MaxComputeInvocationsPerWorkgroup uint32 `json:"max_compute_invocations_per_workgroup"`
	MaxComputeWorkgroupSizeX          uint32 `json:"max_compute_workgroup_size_x"`
	MaxComputeWorkgroupSizeY          uint32 `json:"max_compute_workgroup_size_y"`
	MaxComputeWorkgroupSizeZ          uint32 `json:"max_compute_workgroup_size_z"`
	MaxComputeWorkgroupsPerDimension  uint32 `json:"max_compute_workgroups_per_dimension"`
	MaxComputeWorkgroupStorageSize    uint32 `json:"max_compute_workgroup_storage_size"`
	MaxStorageBufferBindingSize       uint64 `json:"max_storage_buffer_binding_size"`
	MaxBufferSize                     uint64 `json:"max_buffer_size"`
}

// WorkItemSizes returns the per-axis work-group limits.
func (l Limits) WorkItemSizes() []uint32 {
	return []uint32{l.MaxComputeWorkgroupSizeX, l.MaxComputeWorkgroupSizeY, l.MaxComputeWorkgroupSizeZ}
}

// DefaultLimits are the WebGPU defaults a device gets when it is requested
// without required limits.
var DefaultLimits = Limits{
	MaxComputeInvocationsPerWorkgroup: 256,
	MaxComputeWorkgroupSizeX:          256,
	MaxComputeWorkgroupSizeY:          256,
	MaxComputeWorkgroupSizeZ:          64,
	MaxComputeWorkgroupsPerDimension:  65535,
	MaxComputeWorkgroupStorageSize:    16384,
	MaxStorageBufferBindingSize:       128 << 20,
	MaxBufferSize:                     256 << 20,
}

// FromSupported copies the compute limits out of an adapter query.
func FromSupported(s wgpu.SupportedLimits) Limits {
	return Limits{
		MaxComputeInvocationsPerWorkgroup: s.Limits.MaxComputeInvocationsPerWorkgroup,
		MaxComputeWorkgroupSizeX:          s.Limits.MaxComputeWorkgroupSizeX,
		MaxComputeWorkgroupSizeY:          s.Limits.MaxComputeWorkgroupSizeY,
		MaxComputeWorkgroupSizeZ:          s.Limits.MaxComputeWorkgroupSizeZ,
		MaxComputeWorkgroupsPerDimension:  s.Limits.MaxComputeWorkgroupsPerDimension,
		MaxComputeWorkgroupStorageSize:    s.Limits.MaxComputeWorkgroupStorageSize,
		MaxStorageBufferBindingSize:       s.Limits.MaxStorageBufferBindingSize,
		MaxBufferSize:                     s.Limits.MaxBufferSize,
	}
}

// DeviceLimits returns the limits in force on a device requested without
// required limits: the adapter's, capped at DefaultLimits. Zero adapter
// values are treated as unreported and take the default.
func DeviceLimits(adapter Limits) Limits {
	min32 := func(a, b uint32) uint32 {
		if a == 0 || b < a {
			return b
		}
		return a
	}
	min64 := func(a, b uint64) uint64 {
		if a == 0 || b < a {
			return b
		}
		return a
	}
	d := DefaultLimits
	return Limits{
		MaxComputeInvocationsPerWorkgroup: min32(adapter.MaxComputeInvocationsPerWorkgroup, d.MaxComputeInvocationsPerWorkgroup),
		MaxComputeWorkgroupSizeX:          min32(adapter.MaxComputeWorkgroupSizeX, d.MaxComputeWorkgroupSizeX),
		MaxComputeWorkgroupSizeY:          min32(adapter.MaxComputeWorkgroupSizeY, d.MaxComputeWorkgroupSizeY),
		MaxComputeWorkgroupSizeZ:          min32(adapter.MaxComputeWorkgroupSizeZ, d.MaxComputeWorkgroupSizeZ),
		MaxComputeWorkgroupsPerDimension:  min32(adapter.MaxComputeWorkgroupsPerDimension, d.MaxComputeWorkgroupsPerDimension),
		MaxComputeWorkgroupStorageSize:    min32(adapter.MaxComputeWorkgroupStorageSize, d.MaxComputeWorkgroupStorageSize),
		MaxStorageBufferBindingSize:       min64(adapter.MaxStorageBufferBindingSize, d.MaxStorageBufferBindingSize),
		MaxBufferSize:                     min64(adapter.MaxBufferSize, d.MaxBufferSize),
	}
}

type Recommendations struct {
	// Conservative 1D workgroup that should run everywhere.
	WorkgroupX uint32 `json:"workgroup_x"`
	WorkgroupY uint32 `json:"workgroup_y"`
	WorkgroupZ uint32 `json:"workgroup_z"`

	// First candidates for Reference2D and Reference3D, split count last.
	Partition2D []uint32 `json:"partition_2d"`
	Partition3D []uint32 `json:"partition_3d"`
}

// Recommend derives launch hints from device limits.
func Recommend(l Limits) Recommendations {
	wgX, wgY, wgZ := chooseWorkgroup(l)
	k := l.MaxComputeInvocationsPerWorkgroup
	axes := l.WorkItemSizes()
	rec := Recommendations{WorkgroupX: wgX, WorkgroupY: wgY, WorkgroupZ: wgZ}
	if c := dispatch.Candidates2D(Reference2D, k, axes); len(c) > 0 {
		rec.Partition2D = c[0]
	}
	if c := dispatch.Candidates3D(Reference3D, k, axes); len(c) > 0 {
		rec.Partition3D = c[0]
	}
	return rec
}

// DetectJSON runs a probe and returns the JSON string.
func DetectJSON() (string, error) {
	rep, err := Detect()
	if err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Detect probes the default adapter/device and synthesizes a report.
func Detect() (*Report, error) {
	inst := wgpu.CreateInstance(nil)
	if inst == nil {
		return nil, fmt.Errorf("wgpu.CreateInstance returned nil")
	}
	defer inst.Release()

	adapter, err := inst.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	if adapter == nil {
		return nil, fmt.Errorf("no adapter")
	}
	defer adapter.Release()

	info := adapter.GetInfo()
	adapterLimits := FromSupported(adapter.GetLimits())

	var feats []string
	for _, f := range adapter.EnumerateFeatures() {
		feats = append(feats, featureName(f))
	}

	device, err := adapter.RequestDevice(nil)
	if err != nil {
		return nil, fmt.Errorf("request device: %w", err)
	}
	defer device.Release()

	limits := DeviceLimits(adapterLimits)
	env := tuner.Env()
	if v := os.Getenv(EnvAdapter); v != "" {
		if env == nil {
			env = map[string]string{}
		}
		env[EnvAdapter] = v
	}

	return &Report{
		WhenISO:       time.Now().UTC().Format(time.RFC3339),
		Runtime:       detectRuntime(),
		Backend:       backendName(info.BackendType),
		AdapterType:   adapterTypeName(info.AdapterType),
		VendorID:      fmt.Sprintf("0x%04x", info.VendorId),
		DeviceID:      fmt.Sprintf("0x%04x", info.DeviceId),
		Name:          strings.TrimSpace(info.Name),
		Driver:        strings.TrimSpace(info.DriverDescription),
		Limits:        limits,
		AdapterLimits: adapterLimits,
		Features:      feats,
		Recommended:   Recommend(limits),
		Env:           env,
	}, nil
}

/* ---------- helpers ---------- */

func chooseWorkgroup(l Limits) (uint32, uint32, uint32) {
	maxX := l.MaxComputeWorkgroupSizeX
	maxTot := l.MaxComputeInvocationsPerWorkgroup

	candidates := []uint32{256, 128, 64, 32, 16, 8, 4, 1}
	for _, c := range candidates {
		if c <= maxX && c <= maxTot {
			return c, 1, 1
		}
	}
	// absolute portability fallback
	return 1, 1, 1
}

func featureName(f wgpu.FeatureName) string     { return f.String() }
func backendName(b wgpu.BackendType) string     { return b.String() }
func adapterTypeName(t wgpu.AdapterType) string { return t.String() }

func detectRuntime() string {
	if runtime.GOOS == "js" {
		return "wasm"
	}
	return "native"
}
