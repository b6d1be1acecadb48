package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfluke/kdispatch/detector"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Print the WebGPU adapter limits and recommended partitions as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := detector.DetectJSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
}
