package report

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Job is one row of a batch sheet: a media file and the question it answers.
type Job struct {
	Row      int
	Path     string
	Question string
}

// LoadJobs reads the first sheet of a workbook, locating the media and question
// columns by header. Rows without a media path are skipped.
func LoadJobs(path string) ([]Job, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	mediaIdx, questionIdx := -1, -1
	for i, h := range rows[0] {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "question"):
			if questionIdx == -1 {
				questionIdx = i
			}
		case strings.Contains(l, "video") || strings.Contains(l, "file") || strings.Contains(l, "path"):
			if mediaIdx == -1 {
				mediaIdx = i
			}
		}
	}
	if mediaIdx == -1 {
		return nil, fmt.Errorf("no video column in header %v", rows[0])
	}
	if questionIdx == -1 {
		return nil, fmt.Errorf("no question column in header %v", rows[0])
	}

	var out []Job
	for i, r := range rows[1:] {
		job := Job{Row: i + 2}
		if mediaIdx < len(r) {
			job.Path = strings.TrimSpace(r[mediaIdx])
		}
		if questionIdx < len(r) {
			job.Question = strings.TrimSpace(r[questionIdx])
		}
		if job.Path == "" {
			continue
		}
		out = append(out, job)
	}
	return out, nil
}
