package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"interview-insights-go/internal/pipeline"
	"interview-insights-go/internal/synthesis"
	"interview-insights-go/internal/types"
)

func newProcessCommand(app *appContext) *cobra.Command {
	var question string
	var asTable bool

	cmd := &cobra.Command{
		Use:   "process <video>",
		Short: "Run the pipeline on a local recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := app.orchestrator()
			if err != nil {
				return err
			}
			res, err := runFile(cmd, orch, args[0], question)
			if err != nil {
				return err
			}
			app.log.WithField("media_path", res.MediaPath).Info("recording retained")
			if asTable {
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, resultRows(res)))
				return nil
			}
			return writeJSON(cmd, res)
		},
	}
	cmd.Flags().StringVarP(&question, "question", "q", "", "Interview question the recording answers")
	cmd.Flags().BoolVar(&asTable, "table", false, "Print a table instead of JSON")
	return cmd
}

func runFile(cmd *cobra.Command, orch *pipeline.Orchestrator, path, question string) (types.PipelineResult, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.PipelineResult{}, fmt.Errorf("file does not exist: %s", path)
		}
		return types.PipelineResult{}, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()
	return orch.Run(cmd.Context(), pipeline.Submission{
		Filename: filepath.Base(path),
		Question: question,
		Content:  f,
	})
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func resultRows(res types.PipelineResult) [][]string {
	rows := [][]string{
		{"Video File", res.VideoFile},
		{"Question", res.InterviewQuestion},
		{"Status", string(res.Status)},
	}
	if res.Transcript != nil {
		rows = append(rows, []string{"Transcript", *res.Transcript})
	}
	rows = append(rows, metricRows("Audio", res.AudioMetrics)...)
	rows = append(rows, metricRows("Video", res.VideoMetrics)...)
	switch {
	case res.SynthesisError != "":
		rows = append(rows, []string{"Synthesis Error", res.SynthesisError})
	case res.SynthesizedAnalysis != nil:
		rows = append(rows, []string{"Analysis", compactJSON(res.SynthesizedAnalysis)})
	}
	return rows
}

func metricRows(prefix string, m types.Metrics) [][]string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{prefix + " " + synthesis.Label(k), compactJSON(m[k])})
	}
	return rows
}

func compactJSON(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSpace(string(b))
}
