// Package webgpu runs kernels on a WebGPU device through
// github.com/openfluke/webgpu. It implements the runtime interfaces so the
// dispatch layer can tune and split launches on real hardware.
package webgpu

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/openfluke/kdispatch/detector"
)

var logger = slog.Default()

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Context holds the single WebGPU device of the process.
type Context struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	// Limits are the ones in force on Device, not the adapter maximums.
	Limits detector.Limits
	once   sync.Once
}

var ctx Context

// GetContext returns the singleton GPU context, initializing it if necessary.
func GetContext() (*Context, error) {
	var initErr error
	ctx.once.Do(func() {
		ctx.Instance = wgpu.CreateInstance(nil)
		if ctx.Instance == nil {
			initErr = fmt.Errorf("failed to create WebGPU instance")
			return
		}

		if want := strings.ToLower(strings.TrimSpace(os.Getenv(detector.EnvAdapter))); want != "" {
			for _, a := range ctx.Instance.EnumerateAdapters(nil) {
				info := a.GetInfo()
				if strings.Contains(strings.ToLower(info.Name), want) ||
					strings.Contains(strings.ToLower(info.VendorName), want) {
					logger.Info("adapter selected by name", "adapter", info.Name, "vendor", info.VendorName)
					ctx.Adapter = a
					break
				}
			}
		}

		tryInit := func(opts *wgpu.RequestAdapterOptions) error {
			if ctx.Adapter != nil {
				return nil
			}
			var err error
			ctx.Adapter, err = ctx.Instance.RequestAdapter(opts)
			return err
		}

		// Mobile parts expose a single adapter; desktops prefer the discrete one.
		initErr = tryInit(&wgpu.RequestAdapterOptions{
			PowerPreference: wgpu.PowerPreferenceHighPerformance,
		})
		if initErr != nil && ctx.Adapter == nil {
			logger.Warn("high performance adapter failed, falling back", "error", initErr)
			initErr = tryInit(&wgpu.RequestAdapterOptions{
				PowerPreference: wgpu.PowerPreferenceLowPower,
			})
		}
		if initErr != nil && ctx.Adapter == nil {
			logger.Warn("low power adapter failed, trying default", "error", initErr)
			initErr = tryInit(nil)
		}
		if ctx.Adapter == nil {
			initErr = fmt.Errorf("all adapter attempts failed: %v", initErr)
			return
		}
		initErr = nil

		info := ctx.Adapter.GetInfo()
		ctx.Limits = detector.DeviceLimits(detector.FromSupported(ctx.Adapter.GetLimits()))
		logger.Info("using GPU adapter", "adapter", info.Name, "vendor", info.VendorName,
			"max_invocations", ctx.Limits.MaxComputeInvocationsPerWorkgroup)

		var err error
		ctx.Device, err = ctx.Adapter.RequestDevice(nil)
		if err != nil {
			initErr = err
			return
		}
		ctx.Queue = ctx.Device.GetQueue()
	})

	if initErr != nil {
		return nil, initErr
	}
	if ctx.Device == nil || ctx.Queue == nil {
		return nil, fmt.Errorf("WebGPU device or queue not initialized")
	}
	return &ctx, nil
}
