package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"benchbook/internal/notebook"
	"benchbook/pkg/domain"
)

// NewExperimentCommand groups notebook subcommands.
func NewExperimentCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "experiment",
		Short: "Manage the experiment notebook",
	}
	cmd.AddCommand(newExperimentCreateCommand(rootOpts))
	cmd.AddCommand(newExperimentObserveCommand(rootOpts))
	cmd.AddCommand(newExperimentResultsCommand(rootOpts))
	cmd.AddCommand(newExperimentCompleteCommand(rootOpts))
	cmd.AddCommand(newExperimentShowCommand(rootOpts))
	cmd.AddCommand(newExperimentListCommand(rootOpts))
	cmd.AddCommand(newExperimentSearchCommand(rootOpts))
	return cmd
}

func newExperimentCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var in notebook.CreateInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Start a new experiment",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			exp, err := app.Notebook.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			f := &Formatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(exp, fmt.Sprintf("Started experiment %s: %s", exp.ID, exp.Title))
		},
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "experiment title (required)")
	cmd.Flags().StringVar(&in.ProtocolID, "protocol", "", "protocol identifier this experiment follows")
	cmd.Flags().StringVar(&in.Objective, "objective", "", "what the experiment aims to show")
	cmd.Flags().StringVar(&in.Hypothesis, "hypothesis", "", "expected outcome")
	cmd.Flags().StringSliceVar(&in.Materials, "material", nil, "material (repeatable)")
	cmd.Flags().StringSliceVar(&in.Tags, "tag", nil, "tag (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newExperimentObserveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "observe <id> <observation>",
		Short: "Append a timestamped observation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			exp, err := app.Notebook.AddObservation(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			f := &Formatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(exp, fmt.Sprintf("Recorded observation %d on %s", len(exp.Observations), exp.ID))
		},
	}
}

func newExperimentResultsCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		resultsJSON string
		dataFile    string
	)
	cmd := &cobra.Command{
		Use:   "results <id>",
		Short: "Merge result values into an experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			var results map[string]any
			if resultsJSON != "" {
				if err := json.Unmarshal([]byte(resultsJSON), &results); err != nil {
					return fmt.Errorf("parse results: %w", err)
				}
			}
			exp, err := app.Notebook.AddResults(cmd.Context(), args[0], results, dataFile)
			if err != nil {
				return err
			}
			f := &Formatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(exp, fmt.Sprintf("Recorded %d result value(s) on %s", len(results), exp.ID))
		},
	}
	cmd.Flags().StringVar(&resultsJSON, "values", "", `result values as a JSON object, e.g. '{"yield":"45 mg/L"}'`)
	cmd.Flags().StringVar(&dataFile, "data-file", "", "path of a data file to attach")
	return cmd
}

func newExperimentCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	var conclusions string
	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark an experiment completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			exp, err := app.Notebook.Complete(cmd.Context(), args[0], conclusions)
			if err != nil {
				return err
			}
			f := &Formatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(exp, fmt.Sprintf("Completed %s", exp.ID))
		},
	}
	cmd.Flags().StringVar(&conclusions, "conclusions", "", "closing conclusions")
	return cmd
}

func newExperimentShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a full experiment record",
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
			f := &Formatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(exp, experimentText(exp))
		},
	}
}

func newExperimentListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		status string
		tag    string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List experiments, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			summaries, err := app.Notebook.List(cmd.Context(), notebook.Filter{
				Status: domain.ExperimentStatus(status),
				Tag:    tag,
			})
			if err != nil {
				return err
			}
			f := &Formatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(summaries, summariesText(summaries))
		},
	}
	cmd.Flags().StringVar(&status, "status", "", `only experiments with this status ("In Progress"|"Completed")`)
	cmd.Flags().StringVar(&tag, "tag", "", "only experiments carrying this tag")
	return cmd
}

func newExperimentSearchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search experiments by title, objective, conclusions, or tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			matches, err := app.Notebook.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			f := &Formatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(matches, summariesText(matches))
		},
	}
}

func summariesText(summaries []domain.ExperimentSummary) string {
	var b strings.Builder
	for _, s := range summaries {
		fmt.Fprintf(&b, "%s  %-11s  %s", s.ID, s.Status, s.Title)
		if len(s.Tags) > 0 {
			fmt.Fprintf(&b, "  [%s]", strings.Join(s.Tags, ", "))
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func experimentText(exp domain.Experiment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", exp.Title, exp.Status())
	fmt.Fprintf(&b, "ID: %s\n", exp.ID)
	if exp.ProtocolID != "" {
		fmt.Fprintf(&b, "Protocol: %s\n", exp.ProtocolID)
	}
	if exp.Objective != "" {
		fmt.Fprintf(&b, "Objective: %s\n", exp.Objective)
	}
	for _, obs := range exp.Observations {
		fmt.Fprintf(&b, "  [%s] %s\n", obs.Timestamp.Format("2006-01-02 15:04:05"), obs.Observation)
	}
	if exp.Conclusions != "" {
		fmt.Fprintf(&b, "Conclusions: %s\n", exp.Conclusions)
	}
	return strings.TrimRight(b.String(), "\n")
}
