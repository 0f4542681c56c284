package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"interview-insights-go/internal/command"
)

// Probe is the subset of ffprobe's JSON output the analyzers use.
type Probe struct {
	Streams []ProbeStream `json:"streams"`
	Format  struct {
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
		FormatName string `json:"format_name"`
	} `json:"format"`
}

type ProbeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	AvgFrameRate string `json:"avg_frame_rate,omitempty"`
	SampleRate   string `json:"sample_rate,omitempty"`
	Channels     int    `json:"channels,omitempty"`
}

// Prober runs ffprobe.
type Prober struct {
	ffprobePath string
	runner      command.Runner
}

func NewProber(ffprobePath string, runner command.Runner) *Prober {
	if runner == nil {
		runner = command.ExecRunner{}
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{ffprobePath: ffprobePath, runner: runner}
}

// Probe returns container and stream information for path.
func (p *Prober) Probe(ctx context.Context, path string) (Probe, error) {
	res, err := command.Exec(ctx, p.runner, p.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return Probe{}, fmt.Errorf("ffprobe: %w", err)
	}
	var out Probe
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return Probe{}, fmt.Errorf("ffprobe: decode output: %w", err)
	}
	return out, nil
}

// DurationSeconds parses the container duration; 0 when unknown.
func (p Probe) DurationSeconds() float64 {
	d, err := strconv.ParseFloat(strings.TrimSpace(p.Format.Duration), 64)
	if err != nil {
		return 0
	}
	return d
}

// Stream returns the first stream of the given codec type.
func (p Probe) Stream(codecType string) (ProbeStream, bool) {
	for _, s := range p.Streams {
		if s.CodecType == codecType {
			return s, true
		}
	}
	return ProbeStream{}, false
}

// FrameRate converts ffprobe's "num/den" rate into a float.
func (s ProbeStream) FrameRate() float64 {
	num, den, ok := strings.Cut(s.AvgFrameRate, "/")
	if !ok {
		f, _ := strconv.ParseFloat(s.AvgFrameRate, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
