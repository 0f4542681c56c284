package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"
	"interview-insights-go/internal/synthesis"
	"interview-insights-go/internal/types"
)

const (
	SummarySheet  = "Summary"
	AudioSheet    = "Audio Metrics"
	VideoSheet    = "Video Metrics"
	AnalysisSheet = "Analysis"
	ContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Write renders one PipelineResult as an xlsx workbook.
func Write(w io.Writer, res types.PipelineResult) error {
	return WriteAll(w, []types.PipelineResult{res})
}

// WriteAll renders results as one workbook, one row per result on each sheet.
func WriteAll(w io.Writer, results []types.PipelineResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SummarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	summary := [][]any{{"Video File", "Interview Question", "Status", "Transcript", "Synthesis Error"}}
	for _, r := range results {
		transcript := ""
		if r.Transcript != nil {
			transcript = *r.Transcript
		}
		summary = append(summary, []any{r.VideoFile, r.InterviewQuestion, string(r.Status), transcript, r.SynthesisError})
	}
	if err := writeRows(f, SummarySheet, summary); err != nil {
		return err
	}

	if err := metricsSheet(f, AudioSheet, results, func(r types.PipelineResult) types.Metrics { return r.AudioMetrics }); err != nil {
		return err
	}
	if err := metricsSheet(f, VideoSheet, results, func(r types.PipelineResult) types.Metrics { return r.VideoMetrics }); err != nil {
		return err
	}

	analysis := [][]any{{"Video File", "Field", "Value"}}
	for _, r := range results {
		analysis = append(analysis, analysisRows(r)...)
	}
	if err := addSheet(f, AnalysisSheet, analysis); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// metricsSheet lays out metrics as columns so several results compare side by side.
func metricsSheet(f *excelize.File, sheet string, results []types.PipelineResult, pick func(types.PipelineResult) types.Metrics) error {
	keySet := map[string]struct{}{}
	for _, r := range results {
		for k := range pick(r) {
			keySet[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	header := []any{"Video File"}
	for _, k := range keys {
		header = append(header, synthesis.Label(k))
	}
	rows := [][]any{header}
	for _, r := range results {
		m := pick(r)
		row := []any{r.VideoFile}
		for _, k := range keys {
			row = append(row, cellValue(m[k]))
		}
		rows = append(rows, row)
	}
	return addSheet(f, sheet, rows)
}

func analysisRows(r types.PipelineResult) [][]any {
	switch v := r.SynthesizedAnalysis.(type) {
	case nil:
		return nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rows := make([][]any, 0, len(keys))
		for _, k := range keys {
			rows = append(rows, []any{r.VideoFile, synthesis.Label(k), cellValue(v[k])})
		}
		return rows
	default:
		return [][]any{{r.VideoFile, "Raw", cellValue(v)}}
	}
}

// cellValue keeps scalars as-is and flattens anything nested to JSON text.
func cellValue(v any) any {
	switch v.(type) {
	case nil:
		return ""
	case string, bool, int, int64, float64:
		return v
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func addSheet(f *excelize.File, sheet string, rows [][]any) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("new sheet %s: %w", sheet, err)
	}
	return writeRows(f, sheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
