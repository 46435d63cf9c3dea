package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/dshills/flowgraph/graph"
	"github.com/dshills/flowgraph/graph/emit"
	"github.com/dshills/flowgraph/internal/app"
)

type runOptions struct {
	events bool
	json   bool
	save   bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Execute a workflow file (YAML or JSON; local path or URL)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			wf, err := app.NewLoader().Load(ctx, args[0])
			if err != nil {
				return err
			}

			var appOpts app.Options
			appOpts.TraceWriter = cmd.ErrOrStderr()
			if opts.events {
				appOpts.Emitters = append(appOpts.Emitters, emit.NewLogEmitter(cmd.ErrOrStderr(), opts.json))
			}
			a, err := app.New(ctx, root.cfg, root.logger, appOpts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

			workflowID := ""
			if opts.save {
				if err := a.Store.SaveWorkflow(ctx, wf); err != nil {
					return fmt.Errorf("save workflow: %w", err)
				}
				workflowID = wf.ID
			}

			run, err := a.Execute(ctx, wf.Graph(), workflowID)
			if err != nil {
				root.logger.Warn("run not recorded", "error", err)
			}
			if err := printRun(cmd, run, opts.json); err != nil {
				return err
			}
			if run.Status == graph.RunFailed {
				return fmt.Errorf("run %s failed: %s", run.ID, run.Error)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.events, "events", false, "log engine events to stderr")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the run record (and events) as JSON")
	cmd.Flags().BoolVar(&opts.save, "save", false, "store the workflow and record the run")
	return cmd
}

func printRun(cmd *cobra.Command, run *graph.Run, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	for _, res := range run.Results {
		switch res.Status {
		case graph.StatusFailed:
			fmt.Fprintf(cmd.ErrOrStderr(), "wave %d  %-20s failed: %s\n", res.Wave, res.NodeID, res.Error)
		case graph.StatusSkipped:
			fmt.Fprintf(cmd.ErrOrStderr(), "wave %d  %-20s skipped: %s\n", res.Wave, res.NodeID, res.SkipReason)
		}
	}
	if run.FinalOutput != "" {
		fmt.Fprintln(out, run.FinalOutput)
	}
	return nil
}
