package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/openfluke/kdispatch/layout"
)

var roles = map[string]layout.BufferRole{
	"activation": layout.Activation,
	"filter":     layout.Filter,
	"argument":   layout.Argument,
}

func newShapeCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "shape [flags] DIM...",
		Short: "Print the 2-D image extent of a tensor shape",
		Example: "  kdispatch shape 1 7 7 3\n" +
			"  kdispatch shape --role filter 3 3 16 32",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, ok := roles[role]
			if !ok {
				return fmt.Errorf("%w: %q", layout.ErrUnsupportedRole, role)
			}
			shape := make(layout.Shape, len(args))
			for i, a := range args {
				v, err := strconv.ParseInt(a, 10, 64)
				if err != nil {
					return fmt.Errorf("bad dimension %q: %w", a, err)
				}
				shape[i] = v
			}
			img, err := layout.CalImage2DShape(shape, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d %d\n", img.Width(), img.Height())
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "activation", "activation, filter or argument")
	return cmd
}

func newDtypeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dtype TYPE",
		Short: "Print the kernel source names of an element type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := layout.ParseElementType(args[0])
			if err != nil {
				return err
			}
			names := []struct {
				label string
				fn    func(layout.ElementType) (string, error)
			}{
				{"cl", layout.DtToCLDt},
				{"cl_cmd", layout.DtToCLCMDDt},
				{"upstream", layout.DtToUpstreamCLDt},
				{"upstream_cmd", layout.DtToUpstreamCLCMDDt},
				{"wgsl", layout.DtToWGSLDt},
			}
			out := cmd.OutOrStdout()
			for _, n := range names {
				s, err := n.fn(dt)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-13s %s\n", n.label, s)
			}
			return nil
		},
	}
}
