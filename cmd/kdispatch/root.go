package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/openfluke/kdispatch/dispatch"
	"github.com/openfluke/kdispatch/layout"
	"github.com/openfluke/kdispatch/tuner"
	"github.com/openfluke/kdispatch/webgpu"
)

type rootOptions struct {
	logLevel string
	table    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "kdispatch",
		Short:         "Work-group tuning and latency-bounded kernel dispatch",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(cmd.ErrOrStderr(), opts.logLevel)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "debug, info, warn or error")
	cmd.PersistentFlags().StringVar(&opts.table, "table", "", "tuning table path (overrides "+tuner.EnvPath+")")

	cmd.AddCommand(
		newShapeCmd(),
		newDtypeCmd(),
		newCandidatesCmd(),
		newSplitCmd(),
		newTuneCmd(opts),
		newCacheCmd(opts),
		newProbeCmd(),
	)
	return cmd
}

func setupLogging(w io.Writer, level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("bad --log-level %q: %w", level, err)
	}
	l := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	layout.SetLogger(l)
	dispatch.SetLogger(l)
	tuner.SetLogger(l)
	webgpu.SetLogger(l)
	return nil
}

// openTuner builds a tuner from the environment and the --table flag.
func openTuner(opts *rootOptions) (*tuner.Tuner, error) {
	cfg := tuner.LoadConfig()
	if opts.table != "" {
		cfg.Path = opts.table
	}
	return tuner.New(cfg)
}

func parseUint32s(args []string) ([]uint32, error) {
	out := make([]uint32, len(args))
	for i, a := range args {
		v, err := strconv.ParseUint(strings.TrimSpace(a), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad size %q: %w", a, err)
		}
		out[i] = uint32(v)
	}
	return out, nil
}

func joinUint32s(v []uint32) string {
	return strings.Join(lo.Map(v, func(x uint32, _ int) string { return strconv.FormatUint(uint64(x), 10) }), ",")
}
