// Package render turns read-only snapshots from the protocol store, sample
// ledger, and notebook into human-readable reports, CSV exports, and chart
// images. It never mutates anything it is handed; all formatting is
// deterministic given the same snapshot and clock.
package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"benchbook/pkg/domain"
)

const (
	ruleWide   = 80
	ruleNarrow = 70

	stampLayout = "2006-01-02 15:04:05"
)

func rule(n int, ch string) string { return strings.Repeat(ch, n) }

// lowStockThreshold marks the default quantity at or below which a sample
// appears in the inventory report's alert section.
const lowStockThreshold = 10.0

// ExperimentReport formats a full experiment write-up. Sections with no
// content are omitted entirely.
func ExperimentReport(exp domain.Experiment, generatedAt time.Time) string {
	var b strings.Builder
	line := func(s string) { b.WriteString(s); b.WriteByte('\n') }

	line(rule(ruleWide, "="))
	line("EXPERIMENT REPORT")
	line(rule(ruleWide, "="))
	line("")
	line("Title: " + exp.Title)
	line("Experiment ID: " + exp.ID)
	line("Date: " + exp.CreatedAt.Format(time.RFC3339))
	line("Status: " + string(exp.Status()))
	if exp.ProtocolID != "" {
		line("Protocol: " + exp.ProtocolID)
	}
	line("")

	if exp.Objective != "" {
		line("OBJECTIVE")
		line(rule(ruleWide, "-"))
		line(exp.Objective)
		line("")
	}
	if exp.Hypothesis != "" {
		line("HYPOTHESIS")
		line(rule(ruleWide, "-"))
		line(exp.Hypothesis)
		line("")
	}
	if len(exp.Materials) > 0 {
		line("MATERIALS")
		line(rule(ruleWide, "-"))
		for _, m := range exp.Materials {
			line("  - " + m)
		}
		line("")
	}
	if exp.ProtocolID != "" {
		line("METHODS")
		line(rule(ruleWide, "-"))
		line("Protocol: " + exp.ProtocolID)
		line("See protocol document for detailed procedures.")
		line("")
	}
	if len(exp.Observations) > 0 {
		line("OBSERVATIONS")
		line(rule(ruleWide, "-"))
		for i, obs := range exp.Observations {
			line(fmt.Sprintf("%d. [%s]", i+1, obs.Timestamp.Format(time.RFC3339)))
			line("   " + obs.Observation)
			line("")
		}
	}
	if len(exp.Results) > 0 {
		line("RESULTS")
		line(rule(ruleWide, "-"))
		for _, key := range sortedKeys(exp.Results) {
			line(fmt.Sprintf("  %s: %s", key, formatValue(exp.Results[key])))
		}
		line("")
	}
	if exp.Conclusions != "" {
		line("CONCLUSIONS")
		line(rule(ruleWide, "-"))
		line(exp.Conclusions)
		line("")
	}
	if len(exp.Attachments) > 0 {
		line("ATTACHMENTS")
		line(rule(ruleWide, "-"))
		for _, att := range exp.Attachments {
			line(fmt.Sprintf("  - %s: %s", att.Type, att.File))
		}
		line("")
	}

	line(rule(ruleWide, "="))
	line("Report generated: " + generatedAt.Format(stampLayout))
	b.WriteString(rule(ruleWide, "="))
	return b.String()
}

// ProtocolSummary formats a single protocol version as a procedure document.
func ProtocolSummary(p domain.Protocol, generatedAt time.Time) string {
	var b strings.Builder
	line := func(s string) { b.WriteString(s); b.WriteByte('\n') }

	line(rule(ruleWide, "="))
	line("PROTOCOL SUMMARY")
	line(rule(ruleWide, "="))
	line("")
	line("Protocol: " + p.Name)
	line("ID: " + p.ID)
	line(fmt.Sprintf("Version: %d", p.Version))
	line("Created: " + p.CreatedAt.Format(time.RFC3339))
	if len(p.Tags) > 0 {
		line("Tags: " + strings.Join(p.Tags, ", "))
	}
	line("")

	line("DESCRIPTION")
	line(rule(ruleWide, "-"))
	line(p.Description)
	line("")

	if len(p.Materials) > 0 {
		line("REQUIRED MATERIALS")
		line(rule(ruleWide, "-"))
		for i, m := range p.Materials {
			line(fmt.Sprintf("%d. %s", i+1, m))
		}
		line("")
	}

	line("PROCEDURE")
	line(rule(ruleWide, "-"))
	for i, step := range p.Steps {
		line(fmt.Sprintf("Step %d:", i+1))
		line("  Action: " + step.Action())
		for _, field := range []struct{ key, label string }{
			{"duration", "Duration"},
			{"temperature", "Temperature"},
			{"notes", "Notes"},
		} {
			if v, ok := step[field.key]; ok {
				if s := formatValue(v); s != "" {
					line(fmt.Sprintf("  %s: %s", field.label, s))
				}
			}
		}
		line("")
	}

	if p.Notes != "" {
		line("ADDITIONAL NOTES")
		line(rule(ruleWide, "-"))
		line(p.Notes)
		line("")
	}

	line(rule(ruleWide, "="))
	line("Report generated: " + generatedAt.Format(stampLayout))
	b.WriteString(rule(ruleWide, "="))
	return b.String()
}

// ChecklistText formats a checklist projection as a printable tick sheet.
func ChecklistText(cl domain.Checklist) string {
	var b strings.Builder
	line := func(s string) { b.WriteString(s); b.WriteByte('\n') }

	line("PROTOCOL CHECKLIST: " + cl.Name)
	line("Date: _____________  Performed by: _____________")
	line(fmt.Sprintf("Version: %d", cl.Version))
	line(rule(ruleNarrow, "="))
	if len(cl.Materials) > 0 {
		line("")
		line("MATERIALS CHECKLIST:")
		for _, item := range cl.Materials {
			line("[ ] " + item.Label)
		}
	}
	line("")
	line("PROCEDURE CHECKLIST:")
	for _, item := range cl.Steps {
		line("[ ] " + item.Label)
	}
	line("")
	line(rule(ruleNarrow, "="))
	line("Notes:")
	line(rule(ruleNarrow, "_"))
	b.WriteString(rule(ruleNarrow, "_"))
	return b.String()
}

// InventoryReport formats the full sample inventory grouped by type, with a
// trailing low-stock section for available samples at or below the default
// threshold.
func InventoryReport(samples []domain.Sample, generatedAt time.Time) string {
	var b strings.Builder
	line := func(s string) { b.WriteString(s); b.WriteByte('\n') }

	line(rule(ruleWide, "="))
	line("INVENTORY REPORT")
	line(rule(ruleWide, "="))
	line("")
	line("Generated: " + generatedAt.Format(stampLayout))
	line(fmt.Sprintf("Total Samples: %d", len(samples)))
	line("")

	byType := map[string][]domain.Sample{}
	for _, s := range samples {
		byType[s.SampleType] = append(byType[s.SampleType], s)
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	line("SUMMARY BY TYPE")
	line(rule(ruleWide, "-"))
	for _, t := range types {
		group := byType[t]
		var available, depleted int
		for _, s := range group {
			if s.Status() == domain.SampleAvailable {
				available++
			} else {
				depleted++
			}
		}
		line(t + ":")
		line(fmt.Sprintf("  Total: %d", len(group)))
		line(fmt.Sprintf("  Available: %d", available))
		line(fmt.Sprintf("  Depleted: %d", depleted))
	}
	line("")

	line("DETAILED INVENTORY")
	line(rule(ruleWide, "-"))
	line("")
	for _, t := range types {
		line(strings.ToUpper(t))
		line(rule(40, "-"))
		for _, s := range byType[t] {
			line("ID: " + s.SampleID)
			line("  Description: " + s.Description)
			line("  Status: " + string(s.Status()))
			line(fmt.Sprintf("  Quantity: %s %s", formatQuantity(s.Quantity), s.Unit))
			line("  Location: " + s.Location)
			if s.Concentration != "" {
				line("  Concentration: " + s.Concentration)
			}
			line("")
		}
	}

	var lowStock []domain.Sample
	for _, s := range samples {
		if s.Quantity <= lowStockThreshold && s.Status() == domain.SampleAvailable {
			lowStock = append(lowStock, s)
		}
	}
	if len(lowStock) > 0 {
		domain.SortSamplesByStock(lowStock)
		line("LOW STOCK ALERTS")
		line(rule(ruleWide, "-"))
		for _, s := range lowStock {
			line(fmt.Sprintf("!! %s: %s %s", s.SampleID, formatQuantity(s.Quantity), s.Unit))
		}
		line("")
	}

	line(rule(ruleWide, "="))
	line("END OF REPORT")
	b.WriteString(rule(ruleWide, "="))
	return b.String()
}

// WeeklySummary formats activity statistics for experiments created within
// the inclusive [start, end] window.
func WeeklySummary(experiments []domain.Experiment, start, end time.Time, generatedAt time.Time) string {
	var b strings.Builder
	line := func(s string) { b.WriteString(s); b.WriteByte('\n') }

	line(rule(ruleWide, "="))
	line("WEEKLY ACTIVITY SUMMARY")
	line(rule(ruleWide, "="))
	line("")
	line(fmt.Sprintf("Period: %s to %s", start.Format("2006-01-02"), end.Format("2006-01-02")))
	line("Generated: " + generatedAt.Format(stampLayout))
	line("")

	var window []domain.Experiment
	for _, exp := range experiments {
		if exp.CreatedAt.Before(start) || exp.CreatedAt.After(end) {
			continue
		}
		window = append(window, exp)
	}

	var completed, inProgress int
	for _, exp := range window {
		if exp.Status() == domain.ExperimentCompleted {
			completed++
		} else {
			inProgress++
		}
	}

	line("STATISTICS")
	line(rule(ruleWide, "-"))
	line(fmt.Sprintf("Total Experiments: %d", len(window)))
	line(fmt.Sprintf("Completed: %d", completed))
	line(fmt.Sprintf("In Progress: %d", inProgress))
	line("")

	if len(window) > 0 {
		line("EXPERIMENTS")
		line(rule(ruleWide, "-"))
		for _, exp := range window {
			line("")
			line(exp.Title)
			line("  ID: " + exp.ID)
			line("  Status: " + string(exp.Status()))
			line("  Date: " + exp.CreatedAt.Format(time.RFC3339))
			if len(exp.Tags) > 0 {
				line("  Tags: " + strings.Join(exp.Tags, ", "))
			}
		}
	} else {
		line("No experiments in this period.")
	}

	line("")
	line(rule(ruleWide, "="))
	line("END OF SUMMARY")
	b.WriteString(rule(ruleWide, "="))
	return b.String()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return formatQuantity(t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", t)
	}
}

// formatQuantity prints whole quantities without a decimal point and
// fractional ones with the shortest exact representation.
func formatQuantity(q float64) string {
	if q == float64(int64(q)) {
		return fmt.Sprintf("%d", int64(q))
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", q), "0"), ".")
}
