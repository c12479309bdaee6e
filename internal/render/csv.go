package render

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"
	"time"

	"benchbook/pkg/domain"
)

// SamplesCSV renders one row per sample. Usage history is excluded; it has
// its own export.
func SamplesCSV(samples []domain.Sample) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	header := []string{
		"sample_id", "type", "description", "location", "quantity", "unit",
		"concentration", "batch", "source", "status", "created", "updated",
	}
	if err := writer.Write(header); err != nil {
		return nil, err
	}
	for _, s := range samples {
		record := []string{
			s.SampleID,
			s.SampleType,
			s.Description,
			s.Location,
			formatQuantity(s.Quantity),
			s.Unit,
			s.Concentration,
			s.Batch,
			s.Source,
			string(s.Status()),
			s.CreatedAt.Format(time.RFC3339),
			s.UpdatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UsageCSV renders one row per usage event across all samples, in ledger
// order within each sample.
func UsageCSV(samples []domain.Sample) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	header := []string{"sample_id", "timestamp", "amount_used", "unit", "used_by", "experiment_id", "notes"}
	if err := writer.Write(header); err != nil {
		return nil, err
	}
	for _, s := range samples {
		for _, ev := range s.UsageHistory {
			record := []string{
				s.SampleID,
				ev.Timestamp.Format(time.RFC3339),
				formatQuantity(ev.AmountUsed),
				ev.Unit,
				ev.UsedBy,
				ev.ExperimentID,
				ev.Notes,
			}
			if err := writer.Write(record); err != nil {
				return nil, err
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExperimentsCSV renders one summary row per experiment.
func ExperimentsCSV(experiments []domain.Experiment) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	header := []string{"id", "title", "status", "protocol_id", "created", "completed", "observations", "tags"}
	if err := writer.Write(header); err != nil {
		return nil, err
	}
	for _, exp := range experiments {
		completed := ""
		if exp.CompletedAt != nil {
			completed = exp.CompletedAt.Format(time.RFC3339)
		}
		record := []string{
			exp.ID,
			exp.Title,
			string(exp.Status()),
			exp.ProtocolID,
			exp.CreatedAt.Format(time.RFC3339),
			completed,
			strconv.Itoa(len(exp.Observations)),
			strings.Join(exp.Tags, ";"),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
