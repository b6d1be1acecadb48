package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or edit the tuning table",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every stored key and its parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := openTuner(root)
			if err != nil {
				return err
			}
			for _, k := range t.Keys() {
				p, _ := t.Params(k)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", k, joinUint32s(p))
			}
			return nil
		},
	}, &cobra.Command{
		Use:   "forget KEY...",
		Short: "Remove entries so they are tuned again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := openTuner(root)
			if err != nil {
				return err
			}
			for _, k := range args {
				t.Forget(k)
			}
			return t.Flush()
		},
	})
	return cmd
}
