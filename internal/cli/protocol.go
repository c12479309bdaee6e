package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"benchbook/internal/protocolstore"
	"benchbook/pkg/domain"
)

// NewProtocolCommand groups protocol subcommands.
func NewProtocolCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "protocol",
		Short: "Manage versioned protocol documents",
	}
	cmd.AddCommand(newProtocolCreateCommand(rootOpts))
	cmd.AddCommand(newProtocolUpdateCommand(rootOpts))
	cmd.AddCommand(newProtocolShowCommand(rootOpts))
	cmd.AddCommand(newProtocolVersionsCommand(rootOpts))
	cmd.AddCommand(newProtocolListCommand(rootOpts))
	cmd.AddCommand(newProtocolSearchCommand(rootOpts))
	cmd.AddCommand(newProtocolTemplatesCommand(rootOpts))
	cmd.AddCommand(newProtocolFromTemplateCommand(rootOpts))
	return cmd
}

func newProtocolCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		name        string
		description string
		stepsJSON   string
		materials   []string
		tags        []string
		notes       string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new protocol (version 1)",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			steps, err := parseSteps(stepsJSON)
			if err != nil {
				return err
			}
			p, err := app.Protocols.Create(cmd.Context(), protocolstore.CreateInput{
				Name:        name,
				Description: description,
				Steps:       steps,
				Materials:   materials,
				Tags:        tags,
				Notes:       notes,
			})
			if err != nil {
				return err
			}
			f := &Formatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(p, fmt.Sprintf("Created protocol %s (version %d)", p.ID, p.Version))
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "protocol name (required)")
	cmd.Flags().StringVar(&description, "description", "", "short description")
	cmd.Flags().StringVar(&stepsJSON, "steps", "", `steps as a JSON array, e.g. '[{"action":"Mix"},{"action":"Incubate","duration":"30 min"}]'`)
	cmd.Flags().StringSliceVar(&materials, "material", nil, "required material (repeatable)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("steps")
	return cmd
}

func newProtocolUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		notes         string
		overridesJSON string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Create the next version of a protocol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			var overrides map[string]any
			if overridesJSON != "" {
				if err := json.Unmarshal([]byte(overridesJSON), &overrides); err != nil {
					return fmt.Errorf("parse overrides: %w", err)
				}
			}
			p, err := app.Protocols.Update(cmd.Context(), args[0], notes, overrides)
			if err != nil {
				return err
			}
			f := &Formatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(p, fmt.Sprintf("Created %s (version %d)", p.ID, p.Version))
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "change notes for the new version")
	cmd.Flags().StringVar(&overridesJSON, "set", "", "field overrides as a JSON object")
	return cmd
}

func newProtocolShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a protocol (latest version unless an exact id is given)",
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
			f := &Formatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(p, protocolText(p))
		},
	}
}

func newProtocolVersionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <id>",
		Short: "List every version in a protocol's chain, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			versions, err := app.Protocols.ListVersions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var b strings.Builder
			for _, v := range versions {
				fmt.Fprintf(&b, "v%d  %s  %s\n", v.Version, v.ID, v.CreatedAt.Format("2006-01-02 15:04:05"))
				if v.Notes != "" {
					fmt.Fprintf(&b, "    %s\n", v.Notes)
				}
			}
			f := &Formatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(versions, strings.TrimRight(b.String(), "\n"))
		},
	}
}

func newProtocolListCommand(rootOpts *RootOptions) *cobra.Command {
	var tag string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List latest protocol versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			summaries, err := app.Protocols.List(cmd.Context(), tag)
			if err != nil {
				return err
			}
			var b strings.Builder
			for _, s := range summaries {
				fmt.Fprintf(&b, "%s  v%d  %s", s.ID, s.Version, s.Name)
				if len(s.Tags) > 0 {
					fmt.Fprintf(&b, "  [%s]", strings.Join(s.Tags, ", "))
				}
				b.WriteByte('\n')
			}
			f := &Formatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(summaries, strings.TrimRight(b.String(), "\n"))
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "only protocols carrying this tag")
	return cmd
}

func newProtocolSearchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search latest protocol versions by name, description, or tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			matches, err := app.Protocols.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var b strings.Builder
			for _, p := range matches {
				fmt.Fprintf(&b, "%s  v%d  %s\n", p.ID, p.Version, p.Name)
			}
			f := &Formatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(matches, strings.TrimRight(b.String(), "\n"))
		},
	}
}

func newProtocolTemplatesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List built-in protocol templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := protocolstore.Templates()
			f := &Formatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(keys, strings.Join(keys, "\n"))
		},
	}
}

func newProtocolFromTemplateCommand(rootOpts *RootOptions) *cobra.Command {
	var overridesJSON string
	cmd := &cobra.Command{
		Use:   "from-template <template>",
		Short: "Create a protocol from a built-in template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()
			var overrides map[string]any
			if overridesJSON != "" {
				if err := json.Unmarshal([]byte(overridesJSON), &overrides); err != nil {
					return fmt.Errorf("parse overrides: %w", err)
				}
			}
			p, err := app.Protocols.CreateFromTemplate(cmd.Context(), args[0], overrides)
			if err != nil {
				return err
			}
			f := &Formatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(p, fmt.Sprintf("Created protocol %s (version %d)", p.ID, p.Version))
		},
	}
	cmd.Flags().StringVar(&overridesJSON, "set", "", "field overrides as a JSON object")
	return cmd
}

func parseSteps(raw string) ([]domain.Step, error) {
	var steps []domain.Step
	if err := json.Unmarshal([]byte(raw), &steps); err != nil {
		return nil, fmt.Errorf("parse steps: %w", err)
	}
	return steps, nil
}

func protocolText(p domain.Protocol) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (v%d)\n", p.Name, p.Version)
	fmt.Fprintf(&b, "ID: %s\n", p.ID)
	if p.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", p.Description)
	}
	if len(p.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(p.Tags, ", "))
	}
	for i, step := range p.Steps {
		fmt.Fprintf(&b, "  Step %d: %s\n", i+1, step.Action())
	}
	if p.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", p.Notes)
	}
	return strings.TrimRight(b.String(), "\n")
}
