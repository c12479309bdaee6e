package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"benchbook/internal/ledger"
	"benchbook/pkg/domain"
)

// NewSampleCommand groups sample inventory subcommands.
func NewSampleCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Manage the sample inventory ledger",
	}
	cmd.AddCommand(newSampleAddCommand(rootOpts))
	cmd.AddCommand(newSampleUseCommand(rootOpts))
	cmd.AddCommand(newSampleUpdateCommand(rootOpts))
	cmd.AddCommand(newSampleShowCommand(rootOpts))
	cmd.AddCommand(newSampleListCommand(rootOpts))
	cmd.AddCommand(newSampleLowStockCommand(rootOpts))
	return cmd
}

func newSampleAddCommand(rootOpts *RootOptions) *cobra.Command {
	var in ledger.AddInput
	cmd := &cobra.Command{
		Use:   "add <sample-id>",
		Short: "Register a new sample",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			in.SampleID = args[0]
			s, err := app.Ledger.AddSample(cmd.Context(), in)
			if err != nil {
				return err
			}
			f := &Formatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(s, fmt.Sprintf("Added %s: %s %s at %s", s.SampleID, formatQty(s.Quantity), s.Unit, s.Location))
		},
	}
	cmd.Flags().StringVar(&in.SampleType, "type", "", "sample type, e.g. DNA, protein (required)")
	cmd.Flags().StringVar(&in.Description, "description", "", "short description")
	cmd.Flags().StringVar(&in.Location, "location", "", "storage location")
	cmd.Flags().Float64Var(&in.Quantity, "quantity", 0, "initial quantity (required)")
	cmd.Flags().StringVar(&in.Unit, "unit", "", "quantity unit, e.g. mL, ug (required)")
	cmd.Flags().StringVar(&in.Concentration, "concentration", "", "concentration label")
	cmd.Flags().StringVar(&in.Batch, "batch", "", "batch or lot number")
	cmd.Flags().StringVar(&in.Source, "source", "", "supplier or origin")
	cmd.Flags().StringVar(&in.Notes, "notes", "", "free-form notes")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("quantity")
	_ = cmd.MarkFlagRequired("unit")
	return cmd
}

func newSampleUseCommand(rootOpts *RootOptions) *cobra.Command {
	var in ledger.UseInput
	cmd := &cobra.Command{
		Use:   "use <sample-id>",
		Short: "Record consumption from a sample",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			in.SampleID = args[0]
			s, err := app.Ledger.UseSample(cmd.Context(), in)
			if err != nil {
				return err
			}
			f := &Formatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(s, fmt.Sprintf("Used %s %s of %s; %s %s remaining (%s)",
				formatQty(in.AmountUsed), in.Unit, s.SampleID, formatQty(s.Quantity), s.Unit, s.Status()))
		},
	}
	cmd.Flags().Float64Var(&in.AmountUsed, "amount", 0, "amount consumed (required)")
	cmd.Flags().StringVar(&in.Unit, "unit", "", "unit of the amount, must match the sample (required)")
	cmd.Flags().StringVar(&in.UsedBy, "by", "", "who used it")
	cmd.Flags().StringVar(&in.ExperimentID, "experiment", "", "experiment the usage belongs to")
	cmd.Flags().StringVar(&in.Notes, "notes", "", "free-form notes")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("unit")
	return cmd
}

func newSampleUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		description   string
		location      string
		concentration string
		notes         string
	)
	cmd := &cobra.Command{
		Use:   "update <sample-id>",
		Short: "Update descriptive fields of a sample",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			s, err := app.Ledger.UpdateSample(cmd.Context(), args[0], func(s *domain.Sample) error {
				if cmd.Flags().Changed("description") {
					s.Description = description
				}
				if cmd.Flags().Changed("location") {
					s.Location = location
				}
				if cmd.Flags().Changed("concentration") {
					s.Concentration = concentration
				}
				if cmd.Flags().Changed("notes") {
					s.Notes = notes
				}
				return nil
			})
			if err != nil {
				return err
			}
			f := &Formatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(s, "Updated "+s.SampleID)
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&location, "location", "", "new storage location")
	cmd.Flags().StringVar(&concentration, "concentration", "", "new concentration label")
	cmd.Flags().StringVar(&notes, "notes", "", "new notes")
	return cmd
}

func newSampleShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <sample-id>",
		Short: "Show a sample with its usage history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			s, err := app.Ledger.GetSample(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			f := &Formatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(s, sampleText(s))
		},
	}
}

func newSampleListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		sampleType string
		location   string
		status     string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List samples in insertion order",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			samples, err := app.Ledger.ListSamples(cmd.Context(), ledger.Filter{
				SampleType: sampleType,
				Location:   location,
				Status:     domain.SampleStatus(status),
			})
			if err != nil {
				return err
			}
			var b strings.Builder
			for _, s := range samples {
				fmt.Fprintf(&b, "%s  %s  %s %s  %s  %s\n",
					s.SampleID, s.SampleType, formatQty(s.Quantity), s.Unit, s.Status(), s.Location)
			}
			f := &Formatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(samples, strings.TrimRight(b.String(), "\n"))
		},
	}
	cmd.Flags().StringVar(&sampleType, "type", "", "only samples of this type")
	cmd.Flags().StringVar(&location, "location", "", "only samples at this location")
	cmd.Flags().StringVar(&status, "status", "", "only samples with this status (Available|Depleted)")
	return cmd
}

func newSampleLowStockCommand(rootOpts *RootOptions) *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "low-stock",
		Short: "List samples at or below a quantity threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			if !cmd.Flags().Changed("threshold") {
				threshold = app.Config.Reports.LowStockThreshold
			}
			samples, err := app.Ledger.LowStockAlerts(cmd.Context(), threshold)
			if err != nil {
				return err
			}
			var b strings.Builder
			for _, s := range samples {
				fmt.Fprintf(&b, "%s: %s %s (%s)\n", s.SampleID, formatQty(s.Quantity), s.Unit, s.Status())
			}
			f := &Formatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(samples, strings.TrimRight(b.String(), "\n"))
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 10, "quantity threshold")
	return cmd
}

func sampleText(s domain.Sample) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ID: %s\n", s.SampleID)
	fmt.Fprintf(&b, "Type: %s\n", s.SampleType)
	if s.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", s.Description)
	}
	fmt.Fprintf(&b, "Status: %s\n", s.Status())
	fmt.Fprintf(&b, "Quantity: %s %s\n", formatQty(s.Quantity), s.Unit)
	fmt.Fprintf(&b, "Location: %s\n", s.Location)
	if s.Concentration != "" {
		fmt.Fprintf(&b, "Concentration: %s\n", s.Concentration)
	}
	if len(s.UsageHistory) > 0 {
		fmt.Fprintf(&b, "Usage history:\n")
		for _, ev := range s.UsageHistory {
			fmt.Fprintf(&b, "  [%s] %s %s by %s", ev.Timestamp.Format("2006-01-02 15:04:05"), formatQty(ev.AmountUsed), ev.Unit, ev.UsedBy)
			if ev.ExperimentID != "" {
				fmt.Fprintf(&b, " (%s)", ev.ExperimentID)
			}
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatQty(q float64) string {
	if q == float64(int64(q)) {
		return fmt.Sprintf("%d", int64(q))
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", q), "0"), ".")
}
