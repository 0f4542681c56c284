package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"interview-insights-go/internal/pipeline"
	"interview-insights-go/internal/report"
	"interview-insights-go/internal/types"
)

func newBatchCommand(app *appContext) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "batch <sheet.xlsx>",
		Short: "Process every recording listed in a spreadsheet",
		Long:  "Reads a workbook with a video path column and an interview question column, runs each row through the pipeline and writes the completed results to a new workbook.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := report.LoadJobs(args[0])
			if err != nil {
				return err
			}
			orch, err := app.orchestrator()
			if err != nil {
				return err
			}

			var done []types.PipelineResult
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				res, err := runFile(cmd, orch, job.Path, job.Question)
				if err != nil {
					app.log.WithError(err).WithField("row", job.Row).WithField("path", job.Path).Warn("batch row failed")
					rows = append(rows, []string{strconv.Itoa(job.Row), job.Path, string(pipeline.KindOf(err)), err.Error()})
					continue
				}
				done = append(done, res)
				rows = append(rows, []string{strconv.Itoa(job.Row), job.Path, string(res.Status), ""})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Row", "Video", "Outcome", "Error"}, rows, 1))

			if len(done) == 0 {
				return fmt.Errorf("no rows completed")
			}
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create report: %w", err)
			}
			if err := report.WriteAll(f, done); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d result(s) to %s\n", len(done), outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "results.xlsx", "Workbook to write completed results to")
	return cmd
}
