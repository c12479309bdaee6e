package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"benchbook/internal/blob"
)

// NewReportCommand groups report and export subcommands. Every subcommand
// writes an artifact to the configured blob destination and prints its key.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate reports, CSV exports, and charts",
	}
	cmd.AddCommand(newReportExperimentCommand(rootOpts))
	cmd.AddCommand(newReportProtocolCommand(rootOpts))
	cmd.AddCommand(newReportChecklistCommand(rootOpts))
	cmd.AddCommand(newReportInventoryCommand(rootOpts))
	cmd.AddCommand(newReportWeeklyCommand(rootOpts))
	cmd.AddCommand(newReportExportCommand(rootOpts))
	cmd.AddCommand(newReportChartCommand(rootOpts))
	return cmd
}

func emitArtifact(rootOpts *RootOptions, cmd *cobra.Command, info blob.Info) error {
	f := &Formatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	return f.Emit(info, fmt.Sprintf("Wrote %s (%d bytes)", info.Key, info.Size))
}

func newReportExperimentCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "experiment <id>",
		Short: "Write a full experiment report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			exp, err := app.Notebook.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			info, err := app.Renderer.ExperimentReport(cmd.Context(), exp)
			if err != nil {
				return err
			}
			return emitArtifact(rootOpts, cmd, info)
		},
	}
}

func newReportProtocolCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "protocol <id>",
		Short: "Write a protocol summary document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			p, err := app.Protocols.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			info, err := app.Renderer.ProtocolSummary(cmd.Context(), p)
			if err != nil {
				return err
			}
			return emitArtifact(rootOpts, cmd, info)
		},
	}
}

func newReportChecklistCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "checklist <id>",
		Short: "Write a printable protocol checklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			cl, err := app.Protocols.Checklist(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			info, err := app.Renderer.Checklist(cmd.Context(), cl)
			if err != nil {
				return err
			}
			return emitArtifact(rootOpts, cmd, info)
		},
	}
}

func newReportInventoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inventory",
		Short: "Write the grouped inventory report",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			samples, err := app.Ledger.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			info, err := app.Renderer.InventoryReport(cmd.Context(), samples)
			if err != nil {
				return err
			}
			return emitArtifact(rootOpts, cmd, info)
		},
	}
}

func newReportWeeklyCommand(rootOpts *RootOptions) *cobra.Command {
	var startStr, endStr string
	cmd := &cobra.Command{
		Use:   "weekly",
		Short: "Write an activity summary for a date window",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := time.Parse("2006-01-02", startStr)
			if err != nil {
				return fmt.Errorf("parse start date: %w", err)
			}
			end, err := time.Parse("2006-01-02", endStr)
			if err != nil {
				return fmt.Errorf("parse end date: %w", err)
			}
			// Make the end date inclusive through its last second.
			end = end.Add(24*time.Hour - time.Second)
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			experiments, err := app.Notebook.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			info, err := app.Renderer.WeeklySummary(cmd.Context(), experiments, start, end)
			if err != nil {
				return err
			}
			return emitArtifact(rootOpts, cmd, info)
		},
	}
	cmd.Flags().StringVar(&startStr, "start", "", "window start date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&endStr, "end", "", "window end date, YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newReportExportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <samples|usage|experiments>",
		Short: "Write a CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			var info blob.Info
			switch args[0] {
			case "samples":
				samples, err := app.Ledger.Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				info, err = app.Renderer.InventoryCSV(cmd.Context(), samples)
				if err != nil {
					return err
				}
			case "usage":
				samples, err := app.Ledger.Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				info, err = app.Renderer.UsageHistoryCSV(cmd.Context(), samples)
				if err != nil {
					return err
				}
			case "experiments":
				experiments, err := app.Notebook.Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				info, err = app.Renderer.ExperimentsCSV(cmd.Context(), experiments)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown export %q: must be samples, usage, or experiments", args[0])
			}
			return emitArtifact(rootOpts, cmd, info)
		},
	}
}

func newReportChartCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chart <inventory|locations|timeline>",
		Short: "Write a PNG chart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			var info blob.Info
			switch args[0] {
			case "inventory":
				samples, err := app.Ledger.Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				info, err = app.Renderer.InventoryChart(cmd.Context(), samples)
				if err != nil {
					return err
				}
			case "locations":
				samples, err := app.Ledger.Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				info, err = app.Renderer.InventoryLocationChart(cmd.Context(), samples)
				if err != nil {
					return err
				}
			case "timeline":
				experiments, err := app.Notebook.Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				info, err = app.Renderer.ExperimentTimeline(cmd.Context(), experiments)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown chart %q: must be inventory, locations, or timeline", args[0])
			}
			return emitArtifact(rootOpts, cmd, info)
		},
	}
}
