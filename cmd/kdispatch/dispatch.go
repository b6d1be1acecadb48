package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfluke/kdispatch/dispatch"
	"github.com/openfluke/kdispatch/runtime"
	"github.com/openfluke/kdispatch/simdevice"
	"github.com/openfluke/kdispatch/webgpu"
)

func newCandidatesCmd() *cobra.Command {
	var (
		k    uint32
		axes []uint
	)
	cmd := &cobra.Command{
		Use:     "candidates [flags] GX GY [GZ]",
		Short:   "List the partitions swept for a 2-D or 3-D range",
		Example: "  kdispatch candidates --k 256 4 4 1024",
		Args:    cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			gws, err := parseUint32s(args)
			if err != nil {
				return err
			}
			limits := make([]uint32, len(axes))
			for i, a := range axes {
				limits[i] = uint32(a)
			}
			cands, err := dispatch.Candidates(gws, k, limits)
			if err != nil {
				return err
			}
			for _, p := range cands {
				fmt.Fprintln(cmd.OutOrStdout(), joinUint32s(p))
			}
			return nil
		},
	}
	cmd.Flags().Uint32Var(&k, "k", 256, "kernel work-group size limit")
	cmd.Flags().UintSliceVar(&axes, "axis-limits", nil, "per-axis work-group limits")
	return cmd
}

func newSplitCmd() *cobra.Command {
	var elapsed, limit float64
	cmd := &cobra.Command{
		Use:     "split [flags] OUTER",
		Short:   "Print the sub-ranges a measured launch is split into",
		Example: "  kdispatch split --elapsed-us 6000 1024",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseUint32s(args)
			if err != nil {
				return err
			}
			s := dispatch.SplitCount(elapsed, limit, v[0])
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "splits %d\n", s)
			for _, r := range dispatch.SubRanges(v[0], s) {
				fmt.Fprintf(out, "%d %d\n", r.Offset, r.Size)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&elapsed, "elapsed-us", 0, "measured full-range time in microseconds")
	cmd.Flags().Float64Var(&limit, "max-exec-us", dispatch.MaxKernelExeTime, "per-submission bound in microseconds")
	return cmd
}

type tuneOptions struct {
	backend   string
	key       string
	k         uint32
	axes      []uint
	nsPerItem time.Duration
	maxExecUS float64
	partition []uint
}

func newTuneCmd(root *rootOptions) *cobra.Command {
	opts := &tuneOptions{}
	cmd := &cobra.Command{
		Use:   "tune [flags] GX GY [GZ]",
		Short: "Tune or replay a dispatch over a 2-D or 3-D range",
		Long: "Runs a dispatch through the tuner. Without a stored entry the\n" +
			"candidates are swept and the fastest partition is saved to the\n" +
			"tuning table; with one it is replayed.",
		Example: "  kdispatch tune --backend sim --sim-per-item 100ns 4 4 1024\n" +
			"  kdispatch tune --backend webgpu --table tuning.json 512 512",
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			gws, err := parseUint32s(args)
			if err != nil {
				return err
			}
			return runTune(cmd, root, opts, gws)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.backend, "backend", "sim", "sim or webgpu")
	f.StringVar(&opts.key, "key", "", "tuning key (default derived from the range)")
	f.Uint32Var(&opts.k, "sim-k", 256, "simulated kernel work-group size limit")
	f.UintSliceVar(&opts.axes, "sim-axis-limits", nil, "simulated per-axis work-group limits")
	f.DurationVar(&opts.nsPerItem, "sim-per-item", 0, "simulated cost per work item (0 uses the default model)")
	f.Float64Var(&opts.maxExecUS, "max-exec-us", dispatch.MaxKernelExeTime, "per-submission bound in microseconds")
	f.UintSliceVar(&opts.partition, "partition", nil, "starting partition, local sizes then split count")
	return cmd
}

func runTune(cmd *cobra.Command, root *rootOptions, opts *tuneOptions, gws []uint32) error {
	t, err := openTuner(root)
	if err != nil {
		return err
	}
	defer t.Close()

	key := opts.key
	if key == "" {
		key = "cli/" + opts.backend + "/" + joinUint32s(gws)
	}

	var (
		rt     runtime.Runtime
		kernel runtime.Kernel
		verify func() error
	)
	switch opts.backend {
	case "sim":
		dev := simdevice.New(opts.k)
		for _, a := range opts.axes {
			dev.WorkItemSizes = append(dev.WorkItemSizes, uint32(a))
		}
		if opts.nsPerItem > 0 {
			dev.Cost = simdevice.PerItem(opts.nsPerItem)
		}
		rt = dev
		kernel = &simdevice.Kernel{KernelName: key}
	case "webgpu":
		wrt, err := webgpu.New()
		if err != nil {
			return err
		}
		fill, err := newFillKernel(gws)
		if err != nil {
			return err
		}
		defer fill.Release()
		rt, kernel, verify = wrt, fill.Kernel, fill.Verify
	default:
		return fmt.Errorf("unknown backend %q", opts.backend)
	}

	d := &dispatch.Dispatcher{Runtime: rt, Tuner: t, MaxExecMicros: opts.maxExecUS}
	lws := make([]uint32, len(opts.partition))
	for i, v := range opts.partition {
		lws[i] = uint32(v)
	}
	_, stored := t.Params(key)
	future := &dispatch.StatsFuture{}
	switch len(gws) {
	case 2:
		err = d.Run2D(kernel, key, [2]uint32{gws[0], gws[1]}, &lws, future)
	default:
		err = d.Run3D(kernel, key, [3]uint32{gws[0], gws[1], gws[2]}, &lws, future)
	}
	if err != nil {
		return err
	}

	var stats runtime.CallStats
	if err := future.Wait(&stats); err != nil {
		return err
	}
	if verify != nil {
		if err := verify(); err != nil {
			return err
		}
	}

	mode := "tuned"
	if stored {
		mode = "replayed"
	} else if t.Config().ReadOnly {
		mode = "default"
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "key        %s\n", key)
	fmt.Fprintf(out, "mode       %s\n", mode)
	fmt.Fprintf(out, "partition  %s\n", joinUint32s(lws))
	fmt.Fprintf(out, "last_us    %.3f\n", stats.ElapsedMicros())
	return t.Flush()
}
