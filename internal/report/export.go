package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Default artifact names inside the output directory.
const (
	ReportFile  = "keynote_kfa.md"
	SummaryFile = "keynote_kfa_notes.csv"
)

// DiagnosisMarker starts the line copied into the summary.
const DiagnosisMarker = "[DIAGNOSIS]"

// SummaryHeader is the CSV header row.
var SummaryHeader = []string{"chunk_id", "tags", "diagnosis_1line"}

// SummaryRow is one line of the CSV summary.
type SummaryRow struct {
	ChunkID   int
	Tags      string
	Diagnosis string
}

// Record returns the row as CSV fields in header order.
func (r SummaryRow) Record() []string {
	return []string{strconv.Itoa(r.ChunkID), r.Tags, r.Diagnosis}
}

// DiagnosisLine returns the first line of analysis that starts with the
// diagnosis marker, trimmed of surrounding whitespace, or "" if none does.
func DiagnosisLine(analysis string) string {
	for _, line := range strings.Split(analysis, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, DiagnosisMarker) {
			return line
		}
	}
	return ""
}

// Summarize derives one summary row per result, in input order.
// Tags is reserved and always empty.
func Summarize(results []Result) []SummaryRow {
	rows := make([]SummaryRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, SummaryRow{
			ChunkID:   r.Segment.Index,
			Diagnosis: DiagnosisLine(r.Analysis),
		})
	}
	return rows
}

// WriteReport writes the report text to path, creating parent directories
// and replacing any existing file.
func WriteReport(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// WriteSummary writes the CSV summary of results to path, creating parent
// directories and replacing any existing file.
func WriteSummary(path string, results []Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create summary directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create summary: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	w.UseCRLF = true

	if err := w.Write(SummaryHeader); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	for _, row := range Summarize(results) {
		if err := w.Write(row.Record()); err != nil {
			return fmt.Errorf("write summary row %d: %w", row.ChunkID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush summary: %w", err)
	}

	return file.Close()
}
