package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/flowgraph/graph"
	"github.com/dshills/flowgraph/internal/app"
)

func newValidateCmd(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <workflow>...",
		Short: "Check workflow files and print their execution waves",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := app.NewLoader()
			failed := 0
			for _, location := range args {
				wf, err := loader.Load(cmd.Context(), location)
				if err == nil {
					var waves [][]string
					waves, err = graph.Plan(wf.Graph())
					if err == nil {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", location)
						for i, wave := range waves {
							fmt.Fprintf(cmd.OutOrStdout(), "  wave %d: %s\n", i, strings.Join(wave, ", "))
						}
						continue
					}
				}
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", location, err)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d workflows invalid", failed, len(args))
			}
			return nil
		},
	}
}
